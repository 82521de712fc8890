// Package metrics defines how the cache reports what it is doing.
package metrics

// Metrics is an interface that defines what the cache wants to measure.
// Each method represents an event in the cache lifecycle; the Controller
// calls these whenever something happens.
type Metrics interface {

	// Hit is called when a RenderRequest is satisfied by an already-loaded Image.
	Hit()

	// Miss is called when a new fetch has to be enqueued for a URL.
	Miss()

	// Eviction is called when an Image is cleared to relieve RAM pressure.
	Eviction()

	// RequestEvicted is called when a single RenderRequest (not its whole
	// Image) is torn down to relieve video-memory pressure.
	RequestEvicted()

	// Overflow is called when eviction ran to completion and a budget is
	// still exceeded.
	Overflow()

	// BytesLoaded is called with the compressed byte count whenever an
	// Image finishes loading.
	BytesLoaded(n int64)
}

// NoopMetrics is a "do nothing" implementation of Metrics.
//
// Why do we need this?
// --------------------
// We don't want to force every consumer of the Controller to implement
// metrics. If someone does not care, the cache should still work without
// nil checks scattered through the hot path.
type NoopMetrics struct{}

func (NoopMetrics) Hit()              {}
func (NoopMetrics) Miss()             {}
func (NoopMetrics) Eviction()         {}
func (NoopMetrics) RequestEvicted()   {}
func (NoopMetrics) Overflow()         {}
func (NoopMetrics) BytesLoaded(int64) {}
