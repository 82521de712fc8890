package cache

import (
	"github.com/krisalay/imagecache/eviction"
	"github.com/krisalay/imagecache/imageentry"
	"github.com/krisalay/imagecache/renderrequest"
	"github.com/krisalay/imagecache/types"
)

// settle recomputes ramBytesUsed/videoBytesUsed, runs eviction if either
// budget is exceeded, and emits update. Called after every Controller
// operation that can change usage: Request, a RenderRequest's rendered
// transition, an Image's size/loadend/fetch-error events, Clear, and
// RemoveBucket. An Image's blob-error event does not trigger it.
func (c *Controller) settle() {
	ramUsed := c.sumRam()
	videoUsed, videoCandidates := c.sumVideo()

	if c.ramBudget > 0 && ramUsed >= c.ramBudget {
		c.evictForRam()
		ramUsed = c.sumRam()
	}

	if c.videoBudget > 0 && videoUsed >= c.videoBudget {
		c.evictForVideo(videoCandidates)
		videoUsed, _ = c.sumVideo()
	}

	c.mu.Lock()
	c.ramUsed = ramUsed
	c.videoUsed = videoUsed
	c.mu.Unlock()

	c.OnUpdate.Emit(UpdateEvent{RamBytesUsed: ramUsed, VideoBytesUsed: videoUsed})

	if c.ramBudget > 0 && ramUsed >= c.ramBudget {
		c.metrics.Overflow()
		c.OnRamOverflow.Emit(struct{}{})
	}
	if c.videoBudget > 0 && videoUsed >= c.videoBudget {
		c.metrics.Overflow()
		c.OnVideoOverflow.Emit(struct{}{})
	}
}

func (c *Controller) sumRam() int64 {
	var total int64
	for _, img := range c.images.Snapshot() {
		total += img.GetBytesRam()
	}
	return total
}

// requestVideoCost pairs a RenderRequest with the Image it depends on, since
// eviction needs both the request's own size cost and its sibling count on
// the Image: only multi-size Images shed a single request rather than the
// whole Image.
type requestVideoCost struct {
	id      types.RequestID
	imageID types.ImageID
	locked  bool
	visible bool
	bytes   int64
}

// sumVideo totals video-memory cost over every request whose owning Image
// is decoded. bytesVideo is set as soon as a request reaches image-loaded,
// but an Image isn't holding a decoded bitmap until one of its requests
// renders it — so a request is only counted once its Image has a decoded
// bitmap backing it, not merely once its own bytesVideo is known. Once that
// happens, every request attached to the Image counts, including sibling
// requests that haven't themselves painted yet: they reuse the same decoded
// bitmap the Image already holds.
func (c *Controller) sumVideo() (int64, []requestVideoCost) {
	c.mu.Lock()
	reqs := make([]*renderrequest.RenderRequest, 0, len(c.requests))
	for _, r := range c.requests {
		reqs = append(reqs, r)
	}
	c.mu.Unlock()

	var total int64
	out := make([]requestVideoCost, 0, len(reqs))
	for _, r := range reqs {
		img, ok := c.images.Get(r.ImageID)
		if !ok || !img.Decoded() {
			continue
		}
		bv := r.BytesVideo()
		if bv == 0 {
			continue
		}
		total += bv
		out = append(out, requestVideoCost{
			id:      r.ID,
			imageID: r.ImageID,
			locked:  r.IsLocked(),
			visible: r.Visible(),
			bytes:   bv,
		})
	}
	return total, out
}

// evictForRam clears unlocked Images, least-recently-rendered first, until
// usage is back under budget or no unlocked candidate remains.
func (c *Controller) evictForRam() {
	order := c.recency.Order()
	snapshot := c.images.Snapshot()

	candidates := make([]eviction.Candidate, 0, len(snapshot))
	lookup := make(map[types.ImageID]*imageentry.Image, len(snapshot))
	for url, img := range snapshot {
		if img.IsLocked() {
			continue
		}
		lookup[url] = img
		candidates = append(candidates, eviction.Candidate{
			ImageID:      url,
			RequestCount: img.RequestCount(),
			BytesRam:     img.GetBytesRam(),
		})
	}

	ordered := eviction.BuildCandidates(candidates, order)
	used := c.sumRam()
	for _, cand := range ordered {
		if used < c.ramBudget {
			break
		}
		img := lookup[cand.ImageID]
		freed := img.GetBytesRam()
		c.evictRequestsOf(cand.ImageID)
		c.evictImage(cand.ImageID)
		c.metrics.Eviction()
		used -= freed
	}
}

// evictForVideo sheds individual RenderRequests belonging to multi-size
// Images, preferring non-visible ones, until video usage is back under
// budget. A single-size Image's only request is never evicted here —
// removing it would just evict the whole Image, which the RAM pass already
// handles.
func (c *Controller) evictForVideo(costs []requestVideoCost) {
	perImage := make(map[types.ImageID]int)
	for _, rc := range costs {
		perImage[rc.imageID]++
	}

	candList := make([]eviction.RequestCandidate, 0, len(costs))
	byID := make(map[types.RequestID]requestVideoCost, len(costs))
	for _, rc := range costs {
		if rc.locked || perImage[rc.imageID] < 2 {
			continue
		}
		byID[rc.id] = rc
		candList = append(candList, eviction.RequestCandidate{
			RequestID:  rc.id,
			Visible:    rc.visible,
			BytesVideo: rc.bytes,
		})
	}

	ordered := eviction.BuildRequestCandidates(candList)
	used, _ := c.sumVideo()
	for _, cand := range ordered {
		if used < c.videoBudget {
			break
		}
		rc := byID[cand.RequestID]
		if perImage[rc.imageID] < 2 {
			continue
		}
		if b, ok := c.bucketFor(c.bucketNameFor(rc.id)); ok {
			b.RemoveRequest(rc.id)
		}
		c.detachRequest(rc.id)
		perImage[rc.imageID]--
		c.metrics.RequestEvicted()
		used -= rc.bytes
	}
}

// evictRequestsOf detaches every RenderRequest still attached to an Image
// about to be evicted wholesale, so Clear-driven bookkeeping (Bucket
// refcounts, Controller indexes) stays consistent.
func (c *Controller) evictRequestsOf(url types.ImageID) {
	for _, r := range c.requestsForImage(url) {
		if b, ok := c.bucketFor(r.BucketID); ok {
			b.RemoveRequest(r.ID)
		}
		c.detachRequestNoEvict(r.ID)
	}
}

// detachRequestNoEvict is detachRequest without the zero-refcount Image
// eviction check, used while the caller is already in the middle of
// evicting that exact Image.
func (c *Controller) detachRequestNoEvict(id types.RequestID) {
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

	r.MarkCleared()
	if img, ok := c.images.Get(r.ImageID); ok {
		img.UnregisterRequest(id)
	}
}

func (c *Controller) bucketNameFor(id types.RequestID) types.BucketID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.requests[id]; ok {
		return r.BucketID
	}
	return ""
}
