// Package loader implements engine.Loader over HTTP.
//
// Every Fetch runs on its own goroutine and reports back through the
// engine's thread-safe Complete entry point, so the tick loop never
// blocks on the network:
//
//	ld := loader.New(eng, loader.WithTimeout(5*time.Second))
//	eng := engine.New(engine.WithLoader(ld))
//
// Response bodies are decoded by content type: JSON becomes an ir.Value,
// anything else is kept as text. fetchImage requests decode only the
// image header and yield {url, format, width, height}.
package loader
