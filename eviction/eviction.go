// Package eviction implements the Controller's candidate-selection
// algorithm: which unlocked Images/RenderRequests to clear first when a
// memory budget is exceeded.
package eviction

import (
	"sort"

	"github.com/krisalay/imagecache/types"
)

// Candidate is the eviction-relevant snapshot of one unlocked Image. Whether
// it was ever rendered is derived from its presence in the order slice
// BuildCandidates receives, not carried on the struct itself.
type Candidate struct {
	ImageID      types.ImageID
	RequestCount int
	BytesRam     int64
}

// BuildCandidates orders unlocked Images for RAM eviction: least-recently-
// rendered first. An Image that has never been rendered at all — still
// loading, or loaded but not yet painted — sorts after every rendered one:
// it's the thing most recently asked for, not the thing safest to reclaim,
// so it must not be evicted ahead of an Image nobody has touched in a
// while. Ties within the "never rendered" group, and any residual tie,
// break by fewest active requests, then by largest bytesRam.
func BuildCandidates(images []Candidate, order []types.ImageID) []Candidate {
	position := make(map[types.ImageID]int, len(order))
	for i, id := range order {
		position[id] = i
	}

	sorted := make([]Candidate, len(images))
	copy(sorted, images)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		pa, aok := position[a.ImageID]
		pb, bok := position[b.ImageID]
		switch {
		case !aok && !bok:
			// neither ever rendered: break by requests, then bytes
		case !aok && bok:
			return false // a never rendered, b already has a recency position: b evicts first
		case aok && !bok:
			return true // a has a recency position, b never rendered: a evicts first
		default:
			if pa != pb {
				return pa < pb // smaller position = less recently rendered = earlier in tail-first order
			}
		}
		if a.RequestCount != b.RequestCount {
			return a.RequestCount < b.RequestCount
		}
		return a.BytesRam > b.BytesRam
	})
	return sorted
}

// RequestCandidate is the eviction-relevant snapshot of one unlocked
// RenderRequest belonging to a multi-size Image, used by the video-memory
// eviction pass.
type RequestCandidate struct {
	RequestID types.RequestID
	Visible   bool
	BytesVideo int64
}

// BuildRequestCandidates orders RenderRequests for video-memory eviction:
// not-currently-visible requests first, then by largest bytesVideo.
func BuildRequestCandidates(reqs []RequestCandidate) []RequestCandidate {
	sorted := make([]RequestCandidate, len(reqs))
	copy(sorted, reqs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Visible != b.Visible {
			return !a.Visible // not-visible first
		}
		return a.BytesVideo > b.BytesVideo
	})
	return sorted
}
