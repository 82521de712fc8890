// Package cache implements the Controller: the single entry point that owns
// every Image, Bucket, and RenderRequest, drives the Network's Loader pool,
// and runs eviction whenever a budget is exceeded.
//
// Every Controller method takes the same *sync.Mutex around each read or
// write of the shared maps, the way the teacher's sharded cache takes a
// per-shard lock around a read-modify-write sequence. The lock covers each
// map access, not a whole operation: Network fetches and blob decodes run on
// their own goroutines (they must, to bound concurrency), and the settle and
// eviction passes they trigger run without holding the lock, so two of them
// can interleave.
package cache

import (
	"net/http"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/krisalay/imagecache/bucket"
	"github.com/krisalay/imagecache/decode"
	"github.com/krisalay/imagecache/events"
	"github.com/krisalay/imagecache/eviction"
	"github.com/krisalay/imagecache/imageentry"
	"github.com/krisalay/imagecache/metrics"
	"github.com/krisalay/imagecache/network"
	"github.com/krisalay/imagecache/registry"
	"github.com/krisalay/imagecache/renderrequest"
	"github.com/krisalay/imagecache/types"
)

// Controller is the top-level cache.
type Controller struct {
	ramBudget   int64
	videoBudget int64

	defaultHeaders http.Header
	metrics        metrics.Metrics

	images     *registry.ImageStore
	network    *network.Network
	decodePool *decode.Pool
	recency    *eviction.Recency
	sf         singleflight.Group

	nextRequestID atomic.Int64

	OnRamOverflow   events.Emitter[struct{}]
	OnVideoOverflow events.Emitter[struct{}]
	OnImageAdded    events.Emitter[ImageAddedEvent]
	OnImageRemoved  events.Emitter[ImageRemovedEvent]
	OnUpdate        events.Emitter[UpdateEvent]
	OnError         events.Emitter[ErrorEvent]

	mu            sync.Mutex
	buckets       map[types.BucketID]*bucket.Bucket
	requests      map[types.RequestID]*renderrequest.RenderRequest
	imageBuckets  map[types.ImageID]map[types.BucketID]struct{}
	imageRequests map[types.ImageID]map[types.RequestID]struct{}
	ramUsed       int64
	videoUsed     int64
	closed        bool
}

// New creates a Controller per cfg.
func New(cfg Config) *Controller {
	cfg = cfg.withDefaults()

	c := &Controller{
		ramBudget:      cfg.RamBytesBudget,
		videoBudget:    cfg.VideoBytesBudget,
		defaultHeaders: cfg.Headers,
		metrics:        cfg.Metrics,
		images:         registry.NewImageStore(),
		decodePool:     decode.NewPool(cfg.DecodeWorkers),
		recency:        eviction.NewRecency(),
		buckets:        make(map[types.BucketID]*bucket.Bucket),
		requests:       make(map[types.RequestID]*renderrequest.RenderRequest),
		imageBuckets:   make(map[types.ImageID]map[types.BucketID]struct{}),
		imageRequests:  make(map[types.ImageID]map[types.RequestID]struct{}),
	}
	c.network = network.New(cfg.LoadersMax, c.images, c.overBudget, cfg.HTTPClient, cfg.HTTPTimeout, cfg.Logger)
	return c
}

// overBudget is the Network's CheckMemory callback: dispatch pauses once RAM
// or video usage has reached its budget, not only once it has gone past it —
// an Image that would land exactly on the line still isn't safe to start
// loading another one behind it.
func (c *Controller) overBudget() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ramOver := c.ramBudget > 0 && c.ramUsed >= c.ramBudget
	videoOver := c.videoBudget > 0 && c.videoUsed >= c.videoBudget
	return ramOver || videoOver
}

// AddBucket creates a Bucket if one by this name does not already exist, or
// returns the existing one.
func (c *Controller) AddBucket(name types.BucketID, locked bool) *bucket.Bucket {
	c.mu.Lock()
	if b, ok := c.buckets[name]; ok {
		c.mu.Unlock()
		return b
	}
	b := bucket.New(name, locked)
	c.buckets[name] = b
	c.mu.Unlock()
	return b
}

// RemoveBucket clears and drops a Bucket, detaching every RenderRequest it
// owned.
func (c *Controller) RemoveBucket(name types.BucketID) {
	c.mu.Lock()
	b, ok := c.buckets[name]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.buckets, name)
	c.mu.Unlock()

	ids := b.Clear()
	for _, id := range ids {
		c.detachRequest(id)
	}
	c.settle()
}

// SetBucketLocked toggles a Bucket's lock flag and pushes the resulting
// per-request lock state down to every RenderRequest and Image it owns.
func (c *Controller) SetBucketLocked(name types.BucketID, locked bool) {
	c.mu.Lock()
	b, ok := c.buckets[name]
	if !ok {
		c.mu.Unlock()
		return
	}
	b.SetLocked(locked)
	reqIDs := b.Requests()
	var reqs []*renderrequest.RenderRequest
	for id := range reqIDs {
		if r, ok := c.requests[id]; ok {
			reqs = append(reqs, r)
		}
	}
	c.mu.Unlock()

	for _, r := range reqs {
		r.SetBucketLock(locked)
		if img, ok := c.images.Get(r.ImageID); ok {
			img.SetRequestLocked(r.ID, r.IsLocked())
		}
	}
}

// PinRequest sets or clears a single RenderRequest's explicit lock,
// independent of its Bucket's lock.
func (c *Controller) PinRequest(id types.RequestID, pinned bool) {
	c.mu.Lock()
	r, ok := c.requests[id]
	c.mu.Unlock()
	if !ok {
		return
	}
	r.Pin(pinned)
	if img, ok := c.images.Get(r.ImageID); ok {
		img.SetRequestLocked(id, r.IsLocked())
	}
}

// RequestOptions describes one Controller.Request call.
type RequestOptions struct {
	URL     string
	Size    types.Size
	Bucket  types.BucketID
	Headers http.Header

	// Hidden marks a request as off-screen from creation. RenderRequests
	// are visible by default — most requests are about to paint.
	Hidden bool
}

// Request binds url/size/bucket into a new RenderRequest, creating the
// Image if this is the first request for url and enqueuing it in the
// Network if it has not already loaded. Repeat calls for the same
// url/size/bucket share one Image but produce distinct RenderRequests.
func (c *Controller) Request(opts RequestOptions) (*renderrequest.RenderRequest, error) {
	c.mu.Lock()
	b, ok := c.buckets[opts.Bucket]
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, types.NewCacheError(types.ErrAborted, opts.URL, nil)
	}
	if !ok {
		return nil, types.NewCacheError(types.ErrNetwork, opts.URL, errBucketNotFound(opts.Bucket))
	}

	img, isNew := c.getOrCreateImage(opts.URL)
	if isNew {
		c.metrics.Miss()
		c.OnImageAdded.Emit(ImageAddedEvent{URL: opts.URL})
	} else if img.Loaded() {
		c.metrics.Hit()
	}

	id := c.nextRequestID.Add(1)
	req := renderrequest.New(id, opts.URL, opts.Bucket, opts.Size)
	if opts.Hidden {
		req.SetVisible(false)
	}

	c.mu.Lock()
	c.requests[id] = req
	if c.imageRequests[opts.URL] == nil {
		c.imageRequests[opts.URL] = make(map[types.RequestID]struct{})
	}
	c.imageRequests[opts.URL][id] = struct{}{}
	if c.imageBuckets[opts.URL] == nil {
		c.imageBuckets[opts.URL] = make(map[types.BucketID]struct{})
	}
	c.imageBuckets[opts.URL][opts.Bucket] = struct{}{}
	c.mu.Unlock()

	img.RegisterRequest(id)
	b.AddRequest(id, opts.URL)

	req.SetBucketLock(b.Locked())
	img.SetRequestLocked(id, req.IsLocked())

	url := opts.URL
	req.OnRendered.On(func(renderrequest.RenderedEvent) {
		img.MarkRequestRendered(id)
		c.recency.Touch(url)
		if bk, ok := c.bucketFor(opts.Bucket); ok {
			bk.MarkRequestRendered(id)
		}
		c.settle()
	})

	if img.GotSize() {
		req.MarkImageLoaded()
	} else {
		req.MarkImagePending()
		headers := opts.Headers
		if headers == nil {
			headers = c.defaultHeaders
		}
		c.network.Add(opts.URL, headers)
	}

	c.settle()
	return req, nil
}

// getOrCreateImage returns the Image for url, creating and wiring it exactly
// once even under concurrent Request calls for the same url — concurrent
// requests for one URL dedupe to a single fetch. singleflight guards the
// creation closure itself rather than sharing a cached result across calls —
// the Image it returns is a permanent registry entry, not a short-lived
// computed value, so every caller (new or concurrent) ends up resolving the
// same pointer out of the registry.
func (c *Controller) getOrCreateImage(url types.ImageID) (*imageentry.Image, bool) {
	var isNew bool
	v, _, _ := c.sf.Do(url, func() (interface{}, error) {
		if img, ok := c.images.Get(url); ok {
			return img, nil
		}
		img := imageentry.New(url, c.decodePool)
		c.wireImageEvents(img)
		c.images.Put(url, img)
		isNew = true
		return img, nil
	})
	return v.(*imageentry.Image), isNew
}

// Clear detaches a single RenderRequest, evicting its Image if that was the
// last reference.
func (c *Controller) Clear(id types.RequestID) {
	c.mu.Lock()
	r, ok := c.requests[id]
	c.mu.Unlock()
	if !ok {
		return
	}
	if b, ok := c.bucketFor(r.BucketID); ok {
		b.RemoveRequest(id)
	}
	c.detachRequest(id)
	c.settle()
}

func (c *Controller) bucketFor(name types.BucketID) (*bucket.Bucket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[name]
	return b, ok
}

// detachRequest removes id from every Controller index, unregisters it from
// its Image, marks it cleared, and evicts the Image if it is now unused.
// Callers are responsible for having already removed id from its Bucket.
func (c *Controller) detachRequest(id types.RequestID) {
	c.mu.Lock()
	r, ok := c.requests[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.requests, id)
	if reqs := c.imageRequests[r.ImageID]; reqs != nil {
		delete(reqs, id)
		if len(reqs) == 0 {
			delete(c.imageRequests, r.ImageID)
		}
	}
	c.mu.Unlock()

	img, ok := c.images.Get(r.ImageID)
	r.MarkCleared()
	if !ok {
		return
	}
	img.UnregisterRequest(id)

	if img.RequestCount() == 0 {
		c.evictImage(r.ImageID)
	}
}

// evictImage tears down one Image unconditionally: clears it, drops it from
// the registry and recency tracker, cancels any in-flight fetch, and emits
// image-removed.
func (c *Controller) evictImage(url types.ImageID) {
	img, ok := c.images.Get(url)
	if !ok {
		return
	}
	c.network.Remove(url)
	img.Clear()
	c.images.Delete(url)
	c.recency.Remove(url)

	c.mu.Lock()
	delete(c.imageBuckets, url)
	delete(c.imageRequests, url)
	c.mu.Unlock()

	c.OnImageRemoved.Emit(ImageRemovedEvent{URL: url})
}

// Shutdown aborts every in-flight fetch, stops the decode pool, and clears
// every Bucket. A Controller cannot be used again afterward.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	names := make([]types.BucketID, 0, len(c.buckets))
	for name := range c.buckets {
		names = append(names, name)
	}
	c.mu.Unlock()

	for _, name := range names {
		c.RemoveBucket(name)
	}
	c.network.Shutdown()
	c.decodePool.Close()
}

// Stats reports the Controller's current usage against both budgets.
func (c *Controller) Stats() UpdateEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return UpdateEvent{RamBytesUsed: c.ramUsed, VideoBytesUsed: c.videoUsed}
}

type bucketNotFoundError struct{ name types.BucketID }

func (e *bucketNotFoundError) Error() string { return "cache: no such bucket: " + e.name }

func errBucketNotFound(name types.BucketID) error { return &bucketNotFoundError{name: name} }
