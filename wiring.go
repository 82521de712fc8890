package cache

import (
	"github.com/krisalay/imagecache/bucket"
	"github.com/krisalay/imagecache/imageentry"
	"github.com/krisalay/imagecache/renderrequest"
	"github.com/krisalay/imagecache/types"
)

// wireImageEvents subscribes the Controller to one Image's event surface so
// progress, completion, and failure fan out to every Bucket that references
// it, and the size event moves every attached RenderRequest to image-loaded.
// RenderRequests receive no progress or failure events. Called exactly once
// per Image, from
// getOrCreateImage's creation closure.
func (c *Controller) wireImageEvents(img *imageentry.Image) {
	url := img.URL

	img.OnProgress.On(func(e imageentry.ProgressEvent) {
		for _, b := range c.bucketsForImage(url) {
			b.SetImageProgress(url, e.Loaded, e.Total)
		}
	})

	img.OnLoadEnd.On(func(e imageentry.LoadEndEvent) {
		c.metrics.BytesLoaded(e.Bytes)
		for _, b := range c.bucketsForImage(url) {
			b.SetImageDone(url, false)
		}
		c.settle()
	})

	img.OnSize.On(func(e imageentry.SizeEvent) {
		for _, r := range c.requestsForImage(url) {
			r.MarkImageLoaded()
		}
		c.settle()
	})

	img.OnBlobError.On(func(e imageentry.BlobErrorEvent) {
		c.OnError.Emit(ErrorEvent{URL: url, Err: e.Err})
		for _, b := range c.bucketsForImage(url) {
			b.ReportError(e.Err)
		}
	})

	img.OnFetchError.On(func(e imageentry.FetchErrorEvent) {
		c.OnError.Emit(ErrorEvent{URL: url, Err: e.Err})
		for _, b := range c.bucketsForImage(url) {
			b.SetImageDone(url, true)
			b.ReportError(e.Err)
		}
		c.settle()
	})
}

func (c *Controller) bucketsForImage(url types.ImageID) []*bucket.Bucket {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := c.imageBuckets[url]
	out := make([]*bucket.Bucket, 0, len(names))
	for name := range names {
		if b, ok := c.buckets[name]; ok {
			out = append(out, b)
		}
	}
	return out
}

func (c *Controller) requestsForImage(url types.ImageID) []*renderrequest.RenderRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := c.imageRequests[url]
	out := make([]*renderrequest.RenderRequest, 0, len(ids))
	for id := range ids {
		if r, ok := c.requests[id]; ok {
			out = append(out, r)
		}
	}
	return out
}
