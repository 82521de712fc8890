// Package renderrequest implements the (Image, size, Bucket) binding: a
// request to display one Image at one pixel size inside one Bucket, and the
// state machine that tracks its readiness to paint.
//
// RenderRequest never holds a pointer to its Image or Bucket — only their
// ids. The Controller is the sole place that resolves an id to a struct
// (design note: arena-style ownership instead of the source's cyclic
// Image<->RenderRequest references).
package renderrequest

import (
	"sync"

	"github.com/krisalay/imagecache/events"
	"github.com/krisalay/imagecache/types"
)

// State is the RenderRequest lifecycle position.
type State int

const (
	StateCreated State = iota
	StateImagePending
	StateImageLoaded
	StateRendered
	StateCleared
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateImagePending:
		return "image-pending"
	case StateImageLoaded:
		return "image-loaded"
	case StateRendered:
		return "rendered"
	case StateCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// RenderedEvent fires when the view layer reports a successful paint.
type RenderedEvent struct {
	ID types.RequestID
}

// RenderRequest is one (Image, size, Bucket) binding.
type RenderRequest struct {
	ID       types.RequestID
	ImageID  types.ImageID
	BucketID types.BucketID
	Size     types.Size

	OnRendered events.Emitter[RenderedEvent]

	mu         sync.Mutex
	state      State
	visible    bool
	pinned     bool
	bucketLock bool
	bytesVideo int64
}

// New creates a RenderRequest in the `created` state. visible defaults to
// true — most consumers register a request because they are about to paint
// it on screen; off-screen registration is the exception and should call
// SetVisible(false) once known.
func New(id types.RequestID, image types.ImageID, bucket types.BucketID, size types.Size) *RenderRequest {
	return &RenderRequest{
		ID:       id,
		ImageID:  image,
		BucketID: bucket,
		Size:     size,
		state:    StateCreated,
		visible:  true,
	}
}

// MarkImagePending transitions out of `created` once the Image has been
// enqueued in the Network but has not yet reported a size.
func (r *RenderRequest) MarkImagePending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateCreated {
		r.state = StateImagePending
	}
}

// MarkImageLoaded transitions to `image-loaded` once the owning Image has
// emitted its `size` event, and records the request's video-memory cost.
func (r *RenderRequest) MarkImageLoaded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateCleared || r.state == StateRendered {
		return
	}
	r.state = StateImageLoaded
	r.bytesVideo = r.Size.BytesVideo()
}

// MarkRendered is called by the view layer after it paints the bitmap. It
// emits OnRendered, consumed by the owning Image to flip its decoded flag.
func (r *RenderRequest) MarkRendered() {
	r.mu.Lock()
	if r.state == StateCleared {
		r.mu.Unlock()
		return
	}
	r.state = StateRendered
	r.mu.Unlock()
	r.OnRendered.Emit(RenderedEvent{ID: r.ID})
}

// MarkCleared is the terminal transition, driven by view unmount or Bucket
// clear.
func (r *RenderRequest) MarkCleared() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateCleared
	r.OnRendered.Clear()
}

// State returns the current lifecycle position.
func (r *RenderRequest) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Rendered reports whether the request is currently in the rendered state;
// it returns false once the request has been cleared.
func (r *RenderRequest) Rendered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateRendered
}

// SetVisible records whether the view currently has this request on screen.
// Eviction prefers evicting non-visible requests first.
func (r *RenderRequest) SetVisible(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visible = v
}

// Visible reports the last-known on-screen state.
func (r *RenderRequest) Visible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible
}

// Pin sets or clears the per-request lock.
func (r *RenderRequest) Pin(locked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pinned = locked
}

// SetBucketLock is called by the Controller whenever the owning Bucket's
// lock flag changes, so IsLocked can answer without a round-trip.
func (r *RenderRequest) SetBucketLock(locked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bucketLock = locked
}

// IsLocked reports true when the Bucket is locked or this request is
// explicitly pinned.
func (r *RenderRequest) IsLocked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pinned || r.bucketLock
}

// BytesVideo returns the estimated decoded cost of this request's size. It
// is zero until the request reaches image-loaded.
func (r *RenderRequest) BytesVideo() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bytesVideo
}
