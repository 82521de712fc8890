package registry

import (
	"sync"
	"testing"

	"github.com/krisalay/imagecache/imageentry"
)

func TestPutGetDelete(t *testing.T) {
	s := NewImageStore()

	if _, ok := s.Get("u"); ok {
		t.Fatalf("expected empty store to miss")
	}

	img := imageentry.New("u", nil)
	s.Put("u", img)

	got, ok := s.Get("u")
	if !ok || got != img {
		t.Fatalf("Get() = %v, %v; want the stored pointer", got, ok)
	}
	if s.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", s.Size())
	}

	s.Delete("u")
	if _, ok := s.Get("u"); ok {
		t.Fatalf("expected miss after Delete")
	}
	if s.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", s.Size())
	}
}

func TestDeleteUnknownIsNoop(t *testing.T) {
	s := NewImageStore()
	s.Delete("missing")
	if s.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", s.Size())
	}
}

func TestSnapshotIsIndependentOfLaterWrites(t *testing.T) {
	s := NewImageStore()
	s.Put("a", imageentry.New("a", nil))

	snap := s.Snapshot()
	s.Put("b", imageentry.New("b", nil))

	if _, ok := snap["b"]; ok {
		t.Fatalf("earlier snapshot should not observe a later Put")
	}
	if _, ok := s.Snapshot()["b"]; !ok {
		t.Fatalf("a fresh snapshot should observe the later Put")
	}
}

func TestConcurrentPutIsRaceFree(t *testing.T) {
	s := NewImageStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			url := string(rune('a' + i%26))
			s.Put(url, imageentry.New(url, nil))
		}(i)
	}
	wg.Wait()
	if s.Size() == 0 {
		t.Fatalf("expected at least one entry after concurrent puts")
	}
}
