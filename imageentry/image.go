// Package imageentry implements the Image entity: the cache entry for one
// source URL. It owns the compressed blob once fetched, the derived natural
// size, and the set of RenderRequest ids attached to it.
//
// Image never holds a pointer to a RenderRequest — only RequestIDs and the
// lock flag the Controller pushes down whenever a request's lock state
// changes. This keeps Image and renderrequest free of any import cycle
// (design note: arena-style, id-based cross-links).
package imageentry

import (
	"context"
	"sync"

	"github.com/krisalay/imagecache/decode"
	"github.com/krisalay/imagecache/events"
	"github.com/krisalay/imagecache/types"
)

// LoadStartEvent mirrors the Loader's start event, re-emitted on the Image.
type LoadStartEvent struct{ URL types.ImageID }

// ProgressEvent mirrors the Loader's progress event.
type ProgressEvent struct {
	URL           types.ImageID
	Loaded, Total int64
}

// LoadEndEvent fires once bytes have finished arriving, before decode.
type LoadEndEvent struct {
	URL   types.ImageID
	Bytes int64
}

// SizeEvent fires once natural dimensions are known.
type SizeEvent struct {
	URL  types.ImageID
	Size types.Size
}

// BlobErrorEvent fires when fetched bytes could not be decoded as an image.
type BlobErrorEvent struct {
	URL types.ImageID
	Err *types.CacheError
}

// FetchErrorEvent fires when the underlying fetch failed (network, timeout,
// or abort). The Controller relays it to its own OnError and to every Bucket
// referencing the Image; RenderRequests have no error event and do not
// receive it.
type FetchErrorEvent struct {
	URL types.ImageID
	Err *types.CacheError
}

// ClearEvent fires once, as the terminal event of an Image's life.
type ClearEvent struct{ URL types.ImageID }

// RequestAddedEvent / RequestRemovedEvent / RequestRenderedEvent track the
// attached RenderRequest set.
type RequestAddedEvent struct {
	URL types.ImageID
	ID  types.RequestID
}
type RequestRemovedEvent struct {
	URL types.ImageID
	ID  types.RequestID
}
type RequestRenderedEvent struct {
	URL types.ImageID
	ID  types.RequestID
}

// Image is the cache entry for one URL.
type Image struct {
	URL types.ImageID

	OnLoadStart      events.Emitter[LoadStartEvent]
	OnProgress       events.Emitter[ProgressEvent]
	OnLoadEnd        events.Emitter[LoadEndEvent]
	OnSize           events.Emitter[SizeEvent]
	OnBlobError      events.Emitter[BlobErrorEvent]
	OnFetchError     events.Emitter[FetchErrorEvent]
	OnClear          events.Emitter[ClearEvent]
	OnRequestAdded   events.Emitter[RequestAddedEvent]
	OnRequestRemoved events.Emitter[RequestRemovedEvent]
	OnRequestRendered events.Emitter[RequestRenderedEvent]

	decodePool *decode.Pool

	mu                sync.Mutex
	blob              []byte
	bytes             int64
	bytesUncompressed int64
	gotSize           bool
	decoded           bool
	loaded            bool
	cleared           bool
	requestLocks      map[types.RequestID]bool
}

// New creates an Image for url. pool is used to measure natural dimensions
// once bytes finish loading; it may be shared across every Image in a
// Controller.
func New(url types.ImageID, pool *decode.Pool) *Image {
	return &Image{
		URL:          url,
		decodePool:   pool,
		requestLocks: make(map[types.RequestID]bool),
	}
}

// RegisterRequest attaches a RenderRequest id to this Image.
func (img *Image) RegisterRequest(id types.RequestID) {
	img.mu.Lock()
	if img.cleared {
		img.mu.Unlock()
		return
	}
	img.requestLocks[id] = false
	img.mu.Unlock()
	img.OnRequestAdded.Emit(RequestAddedEvent{URL: img.URL, ID: id})
}

// UnregisterRequest detaches a RenderRequest id.
func (img *Image) UnregisterRequest(id types.RequestID) {
	img.mu.Lock()
	if img.cleared {
		img.mu.Unlock()
		return
	}
	if _, ok := img.requestLocks[id]; !ok {
		img.mu.Unlock()
		return
	}
	delete(img.requestLocks, id)
	img.mu.Unlock()
	img.OnRequestRemoved.Emit(RequestRemovedEvent{URL: img.URL, ID: id})
}

// SetRequestLocked updates the lock flag the Controller tracks for one
// attached request, used by IsLocked.
func (img *Image) SetRequestLocked(id types.RequestID, locked bool) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if _, ok := img.requestLocks[id]; ok {
		img.requestLocks[id] = locked
	}
}

// MarkRequestRendered records that one attached request has painted. An
// Image's decoded flag is the logical OR of its requests' rendered flags:
// once any request renders, the Image is decoded.
func (img *Image) MarkRequestRendered(id types.RequestID) {
	img.mu.Lock()
	if img.cleared {
		img.mu.Unlock()
		return
	}
	img.decoded = true
	img.mu.Unlock()
	img.OnRequestRendered.Emit(RequestRenderedEvent{URL: img.URL, ID: id})
}

// RequestCount returns how many RenderRequests are currently attached.
func (img *Image) RequestCount() int {
	img.mu.Lock()
	defer img.mu.Unlock()
	return len(img.requestLocks)
}

// IsLocked reports true if any attached request is locked.
func (img *Image) IsLocked() bool {
	img.mu.Lock()
	defer img.mu.Unlock()
	for _, locked := range img.requestLocks {
		if locked {
			return true
		}
	}
	return false
}

// OnLoaderStart is called by the Network when the underlying Loader begins.
func (img *Image) OnLoaderStart() {
	img.OnLoadStart.Emit(LoadStartEvent{URL: img.URL})
}

// OnLoaderProgress is called by the Network for each Loader progress tick.
func (img *Image) OnLoaderProgress(loaded, total int64) {
	img.OnProgress.Emit(ProgressEvent{URL: img.URL, Loaded: loaded, Total: total})
}

// OnLoaderLoad is called by the Network once the Loader succeeds. It stores
// the blob, emits loadend, and kicks off asynchronous dimension decode.
func (img *Image) OnLoaderLoad(b []byte) {
	img.mu.Lock()
	if img.cleared {
		img.mu.Unlock()
		return
	}
	img.blob = b
	img.bytes = int64(len(b))
	img.loaded = true
	pool := img.decodePool
	img.mu.Unlock()

	img.OnLoadEnd.Emit(LoadEndEvent{URL: img.URL, Bytes: int64(len(b))})

	if pool == nil {
		return
	}
	go func() {
		size, err := pool.Measure(context.Background(), b)
		if err != nil {
			img.onBlobError(err)
			return
		}
		img.onSizeResolved(size)
	}()
}

func (img *Image) onSizeResolved(size types.Size) {
	img.mu.Lock()
	if img.cleared {
		img.mu.Unlock()
		return
	}
	img.gotSize = true
	img.bytesUncompressed = size.BytesVideo()
	img.mu.Unlock()
	img.OnSize.Emit(SizeEvent{URL: img.URL, Size: size})
}

func (img *Image) onBlobError(err error) {
	img.mu.Lock()
	cleared := img.cleared
	img.mu.Unlock()
	if cleared {
		return
	}
	img.OnBlobError.Emit(BlobErrorEvent{URL: img.URL, Err: types.NewCacheError(types.ErrBlob, img.URL, err)})
}

// OnLoaderFailure is called by the Network when the Loader terminates in
// error/timeout/abort.
func (img *Image) OnLoaderFailure(kind types.ErrorKind, err error) {
	img.mu.Lock()
	cleared := img.cleared
	img.mu.Unlock()
	if cleared {
		return
	}
	img.OnFetchError.Emit(FetchErrorEvent{URL: img.URL, Err: types.NewCacheError(kind, img.URL, err)})
}

// GetBytesRam is the estimated RAM cost: compressed bytes plus, once
// decoded, the uncompressed bitmap estimate.
func (img *Image) GetBytesRam() int64 {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.decoded {
		return img.bytes + img.bytesUncompressed
	}
	return img.bytes
}

// GotSize reports whether natural dimensions have been measured.
func (img *Image) GotSize() bool {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.gotSize
}

// Decoded reports whether at least one attached request has rendered.
func (img *Image) Decoded() bool {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.decoded
}

// Loaded reports whether the fetch has completed successfully.
func (img *Image) Loaded() bool {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.loaded
}

// Blob returns the fetched bytes, or nil before load / after clear.
func (img *Image) Blob() []byte {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.blob
}

// Cleared reports whether Clear has already run.
func (img *Image) Cleared() bool {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.cleared
}

// Clear releases the blob, resets decode state, detaches every RenderRequest
// id, and emits clear. It is idempotent: a second call is a no-op.
func (img *Image) Clear() {
	img.mu.Lock()
	if img.cleared {
		img.mu.Unlock()
		return
	}
	img.cleared = true
	img.blob = nil
	img.bytes = 0
	img.bytesUncompressed = 0
	img.gotSize = false
	img.decoded = false
	img.loaded = false
	ids := make([]types.RequestID, 0, len(img.requestLocks))
	for id := range img.requestLocks {
		ids = append(ids, id)
	}
	img.requestLocks = make(map[types.RequestID]bool)
	img.mu.Unlock()

	for _, id := range ids {
		img.OnRequestRemoved.Emit(RequestRemovedEvent{URL: img.URL, ID: id})
	}
	img.OnClear.Emit(ClearEvent{URL: img.URL})

	img.OnLoadStart.Clear()
	img.OnProgress.Clear()
	img.OnLoadEnd.Clear()
	img.OnSize.Clear()
	img.OnBlobError.Clear()
	img.OnFetchError.Clear()
	img.OnRequestAdded.Clear()
	img.OnRequestRemoved.Clear()
	img.OnRequestRendered.Clear()
	img.OnClear.Clear()
}
