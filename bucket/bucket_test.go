package bucket

import "testing"

func TestRemoveRequestDropsStaleImageProgressOnLastReference(t *testing.T) {
	b := New("gallery", false)
	b.AddRequest(1, "img-a")
	b.AddRequest(2, "img-a")
	b.SetImageProgress("img-a", 50, 100)

	b.RemoveRequest(1)
	if got := b.Progress(); got != 0.5 {
		t.Fatalf("Progress() = %v, want 0.5 (img-a still referenced by request 2)", got)
	}

	b.RemoveRequest(2)
	b.AddRequest(3, "img-a")
	if got := b.Progress(); got != 0 {
		t.Fatalf("Progress() = %v after img-a's last reference was removed and re-added, want 0 (stale progress should have been dropped)", got)
	}
}

func TestAggregateProgress(t *testing.T) {
	b := New("gallery", false)
	b.AddRequest(1, "img-a")
	b.AddRequest(2, "img-b")

	var lastFraction float64
	b.OnProgress.On(func(e ProgressEvent) { lastFraction = e.Fraction })

	b.SetImageProgress("img-a", 50, 100)
	b.SetImageProgress("img-b", 25, 100)

	want := float64(50+25) / float64(100+100)
	if lastFraction != want {
		t.Fatalf("fraction = %v, want %v", lastFraction, want)
	}
}

func TestLoadEndFiresOnceEveryImageDone(t *testing.T) {
	b := New("gallery", false)
	b.AddRequest(1, "img-a")
	b.AddRequest(2, "img-b")

	var done int
	b.OnLoadEnd.On(func(LoadEndEvent) { done++ })

	b.SetImageDone("img-a", false)
	if done != 0 {
		t.Fatalf("done fired early, after only one of two images finished")
	}
	b.SetImageDone("img-b", true)
	if done != 1 {
		t.Fatalf("done = %d, want 1 once every image is done", done)
	}
}

func TestMarkRequestRenderedFraction(t *testing.T) {
	b := New("gallery", false)
	b.AddRequest(1, "img-a")
	b.AddRequest(2, "img-b")

	var frac float64
	b.OnRendered.On(func(e RenderedEvent) { frac = e.Fraction })

	b.MarkRequestRendered(1)
	if frac != 0.5 {
		t.Fatalf("fraction = %v, want 0.5", frac)
	}
	b.MarkRequestRendered(2)
	if frac != 1 {
		t.Fatalf("fraction = %v, want 1", frac)
	}
}

func TestClearIsIdempotentAndReturnsDetachedIDs(t *testing.T) {
	b := New("gallery", false)
	b.AddRequest(1, "img-a")
	b.AddRequest(2, "img-b")

	ids := b.Clear()
	if len(ids) != 2 {
		t.Fatalf("Clear() returned %d ids, want 2", len(ids))
	}
	if got := b.Clear(); got != nil {
		t.Fatalf("second Clear() = %v, want nil (idempotent)", got)
	}
	if len(b.Requests()) != 0 {
		t.Fatalf("expected no requests after clear")
	}
}

func TestLockedDefaultsAndToggles(t *testing.T) {
	b := New("gallery", true)
	if !b.Locked() {
		t.Fatalf("expected initial lock state true")
	}
	b.SetLocked(false)
	if b.Locked() {
		t.Fatalf("expected lock state false after SetLocked(false)")
	}
}
