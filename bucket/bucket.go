// Package bucket implements the Bucket entity: a named group of
// RenderRequests sharing a lifecycle and aggregate load progress. Like
// Image and RenderRequest, Bucket cross-references by id only — it knows
// which RequestIDs it owns and which ImageID each belongs to, but never
// holds a RenderRequest or Image pointer.
package bucket

import (
	"sync"

	"github.com/krisalay/imagecache/events"
	"github.com/krisalay/imagecache/types"
)

// ProgressEvent reports the bucket's aggregate load progress, 0..1.
type ProgressEvent struct {
	Name     types.BucketID
	Fraction float64
}

// LoadEndEvent fires once every distinct Image referenced by the bucket has
// finished loading (success or failure).
type LoadEndEvent struct {
	Name types.BucketID
}

// ErrorEvent aggregates a fetch/blob failure from any referenced Image.
type ErrorEvent struct {
	Name types.BucketID
	Err  *types.CacheError
}

// RenderedEvent reports the bucket's rendered fraction, 0..1, each time a
// request within it renders.
type RenderedEvent struct {
	Name     types.BucketID
	Fraction float64
}

// ClearEvent fires once, as Bucket's terminal event.
type ClearEvent struct{ Name types.BucketID }

type imageProgress struct {
	loaded, total int64
	done          bool
	errored       bool
}

// Bucket names a group of RenderRequests.
type Bucket struct {
	Name types.BucketID

	OnProgress events.Emitter[ProgressEvent]
	OnLoadEnd  events.Emitter[LoadEndEvent]
	OnError    events.Emitter[ErrorEvent]
	OnRendered events.Emitter[RenderedEvent]
	OnClear    events.Emitter[ClearEvent]

	mu       sync.Mutex
	locked   bool
	cleared  bool
	requests map[types.RequestID]types.ImageID
	rendered map[types.RequestID]struct{}
	images   map[types.ImageID]*imageProgress
}

// New creates a Bucket. lock sets the initial lock state.
func New(name types.BucketID, lock bool) *Bucket {
	return &Bucket{
		Name:     name,
		locked:   lock,
		requests: make(map[types.RequestID]types.ImageID),
		rendered: make(map[types.RequestID]struct{}),
		images:   make(map[types.ImageID]*imageProgress),
	}
}

// Locked reports the bucket's current lock flag.
func (b *Bucket) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// SetLocked sets the bucket-level lock. Locking a Bucket implies every
// RenderRequest in it is locked; unlocking restores per-request locks only —
// the Controller is responsible for pushing the resulting per-request lock
// state down to each RenderRequest and Image.
func (b *Bucket) SetLocked(locked bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locked = locked
}

// AddRequest registers a RenderRequest id and the ImageID it refers to.
func (b *Bucket) AddRequest(id types.RequestID, image types.ImageID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cleared {
		return
	}
	b.requests[id] = image
	if _, ok := b.images[image]; !ok {
		b.images[image] = &imageProgress{}
	}
}

// RemoveRequest detaches a RenderRequest id. Once no other request in this
// bucket still references the same Image, its aggregate progress bookkeeping
// is dropped too, so a later re-add starts from zero rather than inheriting
// stale progress.
func (b *Bucket) RemoveRequest(id types.RequestID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	image, ok := b.requests[id]
	if !ok {
		return
	}
	delete(b.requests, id)
	delete(b.rendered, id)
	for _, img := range b.requests {
		if img == image {
			return
		}
	}
	delete(b.images, image)
}

// Requests returns a snapshot of request id -> image id.
func (b *Bucket) Requests() map[types.RequestID]types.ImageID {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[types.RequestID]types.ImageID, len(b.requests))
	for k, v := range b.requests {
		out[k] = v
	}
	return out
}

// SetImageProgress records a progress tick for one referenced Image and
// emits the bucket's recomputed aggregate fraction.
func (b *Bucket) SetImageProgress(image types.ImageID, loaded, total int64) {
	b.mu.Lock()
	p, ok := b.images[image]
	if !ok {
		b.mu.Unlock()
		return
	}
	p.loaded, p.total = loaded, total
	fraction := b.aggregateProgressLocked()
	b.mu.Unlock()
	b.OnProgress.Emit(ProgressEvent{Name: b.Name, Fraction: fraction})
}

// SetImageDone records that one referenced Image finished loading (success
// or failure) and, once every referenced Image is done, emits LoadEnd.
func (b *Bucket) SetImageDone(image types.ImageID, errored bool) {
	b.mu.Lock()
	p, ok := b.images[image]
	if !ok {
		b.mu.Unlock()
		return
	}
	p.done = true
	p.errored = errored
	allDone := true
	for _, ip := range b.images {
		if !ip.done {
			allDone = false
			break
		}
	}
	b.mu.Unlock()
	if allDone {
		b.OnLoadEnd.Emit(LoadEndEvent{Name: b.Name})
	}
}

// ReportError aggregates a failure from one referenced Image.
func (b *Bucket) ReportError(err *types.CacheError) {
	b.OnError.Emit(ErrorEvent{Name: b.Name, Err: err})
}

// MarkRequestRendered records that one owned request rendered, emitting the
// bucket's recomputed rendered fraction.
func (b *Bucket) MarkRequestRendered(id types.RequestID) {
	b.mu.Lock()
	if _, ok := b.requests[id]; !ok {
		b.mu.Unlock()
		return
	}
	b.rendered[id] = struct{}{}
	fraction := float64(len(b.rendered)) / float64(len(b.requests))
	b.mu.Unlock()
	b.OnRendered.Emit(RenderedEvent{Name: b.Name, Fraction: fraction})
}

// aggregateProgressLocked leaves out Images whose total size is not known
// yet (no Content-Length reported), so the fraction stays within 0..1.
func (b *Bucket) aggregateProgressLocked() float64 {
	var loaded, total int64
	for _, p := range b.images {
		if p.total <= 0 {
			continue
		}
		loaded += p.loaded
		total += p.total
	}
	if total == 0 {
		return 0
	}
	return float64(loaded) / float64(total)
}

// Progress returns the current aggregate load fraction, 0..1.
func (b *Bucket) Progress() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aggregateProgressLocked()
}

// RenderedFraction returns the current fraction of owned requests that have
// rendered.
func (b *Bucket) RenderedFraction() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		return 0
	}
	return float64(len(b.rendered)) / float64(len(b.requests))
}

// Clear detaches every owned RenderRequest and returns their ids so the
// caller (Controller) can unregister them from their Images. Idempotent.
func (b *Bucket) Clear() []types.RequestID {
	b.mu.Lock()
	if b.cleared {
		b.mu.Unlock()
		return nil
	}
	b.cleared = true
	ids := make([]types.RequestID, 0, len(b.requests))
	for id := range b.requests {
		ids = append(ids, id)
	}
	b.requests = make(map[types.RequestID]types.ImageID)
	b.rendered = make(map[types.RequestID]struct{})
	b.images = make(map[types.ImageID]*imageProgress)
	b.mu.Unlock()

	b.OnClear.Emit(ClearEvent{Name: b.Name})
	b.OnProgress.Clear()
	b.OnLoadEnd.Clear()
	b.OnError.Clear()
	b.OnRendered.Clear()
	b.OnClear.Clear()
	return ids
}
