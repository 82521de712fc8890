package imageentry

import (
	"bytes"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/krisalay/imagecache/decode"
	"github.com/krisalay/imagecache/types"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestRegisterUnregisterRequest(t *testing.T) {
	img := New("http://x/a.png", nil)

	var added, removed []types.RequestID
	img.OnRequestAdded.On(func(e RequestAddedEvent) { added = append(added, e.ID) })
	img.OnRequestRemoved.On(func(e RequestRemovedEvent) { removed = append(removed, e.ID) })

	img.RegisterRequest(1)
	img.RegisterRequest(2)
	if img.RequestCount() != 2 {
		t.Fatalf("RequestCount() = %d, want 2", img.RequestCount())
	}

	img.UnregisterRequest(1)
	if img.RequestCount() != 1 {
		t.Fatalf("RequestCount() = %d, want 1", img.RequestCount())
	}
	if len(added) != 2 || len(removed) != 1 {
		t.Fatalf("added=%v removed=%v", added, removed)
	}
}

func TestIsLockedReflectsAnyLockedRequest(t *testing.T) {
	img := New("u", nil)
	img.RegisterRequest(1)
	img.RegisterRequest(2)
	if img.IsLocked() {
		t.Fatalf("expected unlocked initially")
	}
	img.SetRequestLocked(2, true)
	if !img.IsLocked() {
		t.Fatalf("expected locked once any request is locked")
	}
}

func TestOnLoaderLoadResolvesSize(t *testing.T) {
	pool := decode.NewPool(2)
	defer pool.Close()

	img := New("u", pool)

	sizeCh := make(chan types.Size, 1)
	img.OnSize.On(func(e SizeEvent) { sizeCh <- e.Size })

	var loadEnd bool
	img.OnLoadEnd.On(func(LoadEndEvent) { loadEnd = true })

	img.OnLoaderLoad(pngBytes(t, 32, 16))

	if !loadEnd {
		t.Fatalf("expected LoadEnd to fire synchronously")
	}

	select {
	case size := <-sizeCh:
		if size.Width != 32 || size.Height != 16 {
			t.Fatalf("size = %v, want 32x16", size)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for size event")
	}

	if !img.GotSize() || !img.Loaded() {
		t.Fatalf("expected GotSize and Loaded to be true")
	}
}

func TestOnLoaderLoadUndecodableBlobReportsBlobError(t *testing.T) {
	pool := decode.NewPool(1)
	defer pool.Close()

	img := New("u", pool)

	errCh := make(chan *types.CacheError, 1)
	img.OnBlobError.On(func(e BlobErrorEvent) { errCh <- e.Err })

	img.OnLoaderLoad([]byte("not an image"))

	select {
	case err := <-errCh:
		if err.Kind != types.ErrBlob {
			t.Fatalf("err.Kind = %v, want blob-error", err.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for blob error")
	}
}

func TestGetBytesRamAddsDecodedCostOnlyOnceDecoded(t *testing.T) {
	img := New("u", nil)
	img.OnLoaderLoad(pngBytes(t, 10, 10)) // no decode pool, size never resolves

	if got := img.GetBytesRam(); got != img.bytes {
		t.Fatalf("GetBytesRam() = %d, want just compressed bytes before decode", got)
	}

	img.RegisterRequest(1)
	img.MarkRequestRendered(1)
	img.bytesUncompressed = 400 // simulate a resolved size for this check

	if got := img.GetBytesRam(); got != img.bytes+400 {
		t.Fatalf("GetBytesRam() = %d, want bytes+uncompressed once decoded", got)
	}
}

func TestClearIsIdempotentAndDetachesRequests(t *testing.T) {
	img := New("u", nil)
	img.RegisterRequest(1)
	img.RegisterRequest(2)

	var cleared int
	img.OnClear.On(func(ClearEvent) { cleared++ })
	var removed int
	img.OnRequestRemoved.On(func(RequestRemovedEvent) { removed++ })

	img.Clear()
	img.Clear() // idempotent

	if cleared != 1 {
		t.Fatalf("cleared fired %d times, want 1", cleared)
	}
	if removed != 2 {
		t.Fatalf("removed fired %d times, want 2", removed)
	}
	if !img.Cleared() {
		t.Fatalf("expected Cleared() true")
	}
	if img.RequestCount() != 0 {
		t.Fatalf("RequestCount() = %d, want 0 after clear", img.RequestCount())
	}
}
