package loader

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/roach88/cadence/internal/engine"
	"github.com/roach88/cadence/internal/ir"
)

// DefaultTimeout bounds a single request when no timeout option is given.
const DefaultTimeout = 10 * time.Second

// DefaultMaxBody caps how many bytes of a response body are read.
const DefaultMaxBody = 4 << 20

// Completer receives fetch results. *engine.Engine satisfies it.
type Completer interface {
	Complete(id string, success bool, result any) bool
}

// HTTPLoader fetches URLs with net/http and reports each outcome once.
type HTTPLoader struct {
	target  Completer
	client  *http.Client
	logger  *slog.Logger
	timeout time.Duration
	maxBody int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures an HTTPLoader.
type Option func(*HTTPLoader)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) Option {
	return func(l *HTTPLoader) {
		l.client = c
	}
}

// WithTimeout bounds each request. Zero or negative keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(l *HTTPLoader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithMaxBody caps the bytes read from a response.
func WithMaxBody(n int64) Option {
	return func(l *HTTPLoader) {
		if n > 0 {
			l.maxBody = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *HTTPLoader) {
		l.logger = logger
	}
}

// New creates an HTTPLoader reporting to target. Target may be nil and
// bound later with Bind, which lets the loader be passed to engine.New
// before the engine exists.
func New(target Completer, opts ...Option) *HTTPLoader {
	ctx, cancel := context.WithCancel(context.Background())
	l := &HTTPLoader{
		target:  target,
		client:  http.DefaultClient,
		logger:  slog.Default(),
		timeout: DefaultTimeout,
		maxBody: DefaultMaxBody,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Bind sets the completion target. Call before the first tick.
func (l *HTTPLoader) Bind(target Completer) {
	l.target = target
}

// Fetch starts req on a new goroutine.
func (l *HTTPLoader) Fetch(req engine.FetchRequest) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		result, err := l.load(req)
		if err != nil {
			l.logger.Warn("fetch failed",
				"id", req.ID,
				"node_id", req.NodeID,
				"name", req.Name,
				"url", req.URL,
				"error", err)
			l.complete(req.ID, false, err)
			return
		}
		l.logger.Debug("fetch completed",
			"id", req.ID,
			"node_id", req.NodeID,
			"url", req.URL)
		l.complete(req.ID, true, result)
	}()
}

func (l *HTTPLoader) complete(id string, success bool, result any) {
	if l.target == nil {
		l.logger.Error("fetch result with no target", "id", id)
		return
	}
	if !l.target.Complete(id, success, result) {
		l.logger.Debug("fetch result dropped, engine stopped", "id", id)
	}
}

// Wait blocks until every started fetch has reported.
func (l *HTTPLoader) Wait() {
	l.wg.Wait()
}

// Close cancels outstanding requests and waits for them to report.
// Cancelled requests complete as failures.
func (l *HTTPLoader) Close() {
	l.cancel()
	l.wg.Wait()
}

func (l *HTTPLoader) load(req engine.FetchRequest) (ir.Value, error) {
	ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: req.URL, Code: resp.StatusCode}
	}

	body := io.LimitReader(resp.Body, l.maxBody)
	if req.Image {
		return decodeImage(req.URL, body)
	}
	return decodeBody(resp.Header.Get("Content-Type"), body)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// IsStatusError reports whether err is a StatusError with the given code.
// A zero code matches any status.
func IsStatusError(err error, code int) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return code == 0 || se.Code == code
	}
	return false
}

func decodeBody(contentType string, r io.Reader) (ir.Value, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		v, err := ir.UnmarshalValue(data)
		if err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return v, nil
	}
	return ir.String(data), nil
}

func decodeImage(url string, r io.Reader) (ir.Value, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return ir.Object{
		"url":    ir.String(url),
		"format": ir.String(format),
		"width":  ir.Number(cfg.Width),
		"height": ir.Number(cfg.Height),
	}, nil
}
