package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes a commented starter config to path.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const template = `# cadence runtime settings

# Milliseconds between ticks. 0 runs ticks back to back.
tick_ms = 16

# Stop after this many ticks even if directives are still busy. 0 means no limit.
max_ticks = 10000

# debug, info, warn or error.
log_level = "info"

# SQLite trace store. Empty disables persistence.
database = "cadence.db"

# Serve Prometheus metrics on this address. Empty disables the endpoint.
metrics_addr = ""

fetch_timeout_ms = 10000
max_resolve_depth = 16
`
