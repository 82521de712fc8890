package cache

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/krisalay/imagecache/metrics"
)

// Config configures a Controller.
type Config struct {
	// RamBytesBudget is the soft ceiling for compressed+decoded bytes.
	RamBytesBudget int64

	// VideoBytesBudget is the soft ceiling for decoded bytes across all
	// rendered sizes.
	VideoBytesBudget int64

	// LoadersMax bounds concurrent Loaders. Defaults to 16.
	LoadersMax int

	// DecodeWorkers bounds concurrent blob-dimension decodes. Defaults to
	// LoadersMax.
	DecodeWorkers int

	// Headers are the default per-request HTTP headers, overridden per
	// Request call.
	Headers http.Header

	// HTTPClient is the client Loaders use. Defaults to a client with a
	// sane timeout if nil.
	HTTPClient *http.Client

	// HTTPTimeout bounds one Loader's fetch when non-zero.
	HTTPTimeout time.Duration

	// Metrics receives Hit/Miss/Eviction/Overflow counters. Defaults to a
	// no-op sink.
	Metrics metrics.Metrics

	// Logger is handed to the Network, which logs a warning each time
	// dispatch pauses for memory overflow. Defaults to logrus's standard
	// logger.
	Logger *logrus.Entry
}

func (c Config) withDefaults() Config {
	if c.LoadersMax <= 0 {
		c.LoadersMax = 16
	}
	if c.DecodeWorkers <= 0 {
		c.DecodeWorkers = c.LoadersMax
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NoopMetrics{}
	}
	if c.Logger == nil {
		c.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return c
}
