// Package registry holds the Controller's global Image-by-URL index.
//
// This is the teacher's copy-on-write shard store (shard/store.go),
// adapted from a generic *types.CacheEntry map to a *imageentry.Image map.
// The Controller's registry is read far more often than written — every
// Network dispatch and every RenderRequest lookup reads it, while writes
// only happen on Controller.Request (new URL) and eviction (Image removed)
// — so the copy-on-write swap-the-whole-map technique pays for itself the
// same way it does in the teacher's shard.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/krisalay/imagecache/imageentry"
	"github.com/krisalay/imagecache/types"
)

// ImageStore is a lock-free-read, copy-on-write index of Images by URL.
// Reads never take writeMu; writers do, the same pairing the teacher's
// shard store uses (shard.go's EvictMu guarding shard/store.go's cowStore) —
// without it, two concurrent writers for different URLs can each copy the
// old map, apply their own change, and store it, silently losing whichever
// write lost the race to store last.
type ImageStore struct {
	data    atomic.Value // map[types.ImageID]*imageentry.Image
	size    atomic.Int64
	writeMu sync.Mutex
}

// NewImageStore creates an empty store.
func NewImageStore() *ImageStore {
	s := &ImageStore{}
	s.data.Store(make(map[types.ImageID]*imageentry.Image))
	return s
}

// Get retrieves an Image by URL.
func (s *ImageStore) Get(url types.ImageID) (*imageentry.Image, bool) {
	m := s.data.Load().(map[types.ImageID]*imageentry.Image)
	img, ok := m[url]
	return img, ok
}

// Put inserts or replaces the Image for a URL.
func (s *ImageStore) Put(url types.ImageID, img *imageentry.Image) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	old := s.data.Load().(map[types.ImageID]*imageentry.Image)
	n := make(map[types.ImageID]*imageentry.Image, len(old)+1)
	for k, v := range old {
		n[k] = v
	}
	n[url] = img
	s.data.Store(n)
	s.size.Store(int64(len(n)))
}

// Delete removes the Image for a URL, if present.
func (s *ImageStore) Delete(url types.ImageID) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	old := s.data.Load().(map[types.ImageID]*imageentry.Image)
	if _, ok := old[url]; !ok {
		return
	}
	n := make(map[types.ImageID]*imageentry.Image, len(old))
	for k, v := range old {
		if k != url {
			n[k] = v
		}
	}
	s.data.Store(n)
	s.size.Store(int64(len(n)))
}

// Size returns how many Images are currently indexed.
func (s *ImageStore) Size() int64 {
	return s.size.Load()
}

// Snapshot returns the current map. The returned map must be treated as
// read-only: it is shared with the store's internal state until the next
// Put/Delete.
func (s *ImageStore) Snapshot() map[types.ImageID]*imageentry.Image {
	return s.data.Load().(map[types.ImageID]*imageentry.Image)
}
