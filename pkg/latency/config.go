package latency

import (
	"fmt"
	"time"
)

// Config is the file form of the tracker timings.
type Config struct {
	PendingTTLMs   int64 `toml:"pending_ttl_ms"`
	ReportWindowMs int64 `toml:"report_window_ms"`
}

// DefaultConfig matches PendingTTL and ReportWindow.
var DefaultConfig = Config{
	PendingTTLMs:   PendingTTL.Milliseconds(),
	ReportWindowMs: ReportWindow.Milliseconds(),
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.PendingTTLMs <= 0 {
		return fmt.Errorf("pending ttl must be positive, got %d", c.PendingTTLMs)
	}
	if c.ReportWindowMs <= 0 {
		return fmt.Errorf("report window must be positive, got %d", c.ReportWindowMs)
	}
	return nil
}

// Options converts c to tracker options. Zero fields keep the defaults.
func (c Config) Options() []Option {
	var opts []Option
	if c.PendingTTLMs > 0 {
		opts = append(opts, WithTTL(time.Duration(c.PendingTTLMs)*time.Millisecond))
	}
	if c.ReportWindowMs > 0 {
		opts = append(opts, WithWindow(time.Duration(c.ReportWindowMs)*time.Millisecond))
	}
	return opts
}
