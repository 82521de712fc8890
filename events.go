package cache

import "github.com/krisalay/imagecache/types"

// ImageAddedEvent fires once per URL the first time any Request needs it.
type ImageAddedEvent struct{ URL types.ImageID }

// ImageRemovedEvent fires once an Image is cleared, whether by zero-refcount
// cleanup or by eviction.
type ImageRemovedEvent struct{ URL types.ImageID }

// UpdateEvent reports the Controller's current usage against both budgets,
// emitted after every operation that could change it.
type UpdateEvent struct {
	RamBytesUsed   int64
	VideoBytesUsed int64
}

// ErrorEvent aggregates a fetch/blob failure surfaced by some Image, for
// consumers that want a single feed independent of any Bucket.
type ErrorEvent struct {
	URL types.ImageID
	Err *types.CacheError
}
