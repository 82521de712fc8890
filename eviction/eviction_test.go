package eviction

import "testing"

func TestBuildCandidatesNeverRenderedSortsLast(t *testing.T) {
	cands := []Candidate{
		{ImageID: "rendered", RequestCount: 1, BytesRam: 100},
		{ImageID: "never", RequestCount: 1, BytesRam: 100},
	}
	order := []string{"rendered"} // only "rendered" has ever been touched

	got := BuildCandidates(cands, order)
	if got[0].ImageID != "rendered" {
		t.Fatalf("got[0] = %s, want the rendered image first — a never-rendered image is the one just requested and must not be evicted ahead of it", got[0].ImageID)
	}
}

func TestBuildCandidatesLeastRecentlyRenderedFirst(t *testing.T) {
	cands := []Candidate{
		{ImageID: "recent", RequestCount: 1, BytesRam: 1},
		{ImageID: "stale", RequestCount: 1, BytesRam: 1},
	}
	// Order is least-to-most recently rendered: "stale" at index 0.
	order := []string{"stale", "recent"}

	got := BuildCandidates(cands, order)
	if got[0].ImageID != "stale" {
		t.Fatalf("got[0] = %s, want stale first", got[0].ImageID)
	}
}

func TestBuildCandidatesTiebreakFewestRequestsThenLargestBytes(t *testing.T) {
	cands := []Candidate{
		{ImageID: "a", RequestCount: 2, BytesRam: 10},
		{ImageID: "b", RequestCount: 1, BytesRam: 5},
		{ImageID: "c", RequestCount: 1, BytesRam: 50},
	}
	got := BuildCandidates(cands, nil)

	// None ever rendered: tie broken by fewest requests, then largest bytes.
	if got[0].ImageID != "c" || got[1].ImageID != "b" || got[2].ImageID != "a" {
		t.Fatalf("got order %v, want [c b a]", ids(got))
	}
}

func ids(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.ImageID
	}
	return out
}

func TestBuildRequestCandidatesNotVisibleFirst(t *testing.T) {
	reqs := []RequestCandidate{
		{RequestID: 1, Visible: true, BytesVideo: 1000},
		{RequestID: 2, Visible: false, BytesVideo: 10},
	}
	got := BuildRequestCandidates(reqs)
	if got[0].RequestID != 2 {
		t.Fatalf("got[0].RequestID = %d, want 2 (not visible)", got[0].RequestID)
	}
}

func TestBuildRequestCandidatesLargestBytesWithinVisibility(t *testing.T) {
	reqs := []RequestCandidate{
		{RequestID: 1, Visible: true, BytesVideo: 100},
		{RequestID: 2, Visible: true, BytesVideo: 9000},
	}
	got := BuildRequestCandidates(reqs)
	if got[0].RequestID != 2 {
		t.Fatalf("got[0].RequestID = %d, want 2 (largest bytes)", got[0].RequestID)
	}
}
