// This file tracks "least-recently-rendered" order for Images. It is the
// same doubly-linked-list technique the teacher uses for its LRU eviction
// policy (eviction/lru.go), adapted from "most recently read key" to "most
// recently rendered Image".

package eviction

import (
	"sync"

	"github.com/krisalay/imagecache/types"
)

type recencyNode struct {
	id         types.ImageID
	prev, next *recencyNode
}

// Recency tracks the order in which Images were last rendered. head is the
// most recently rendered; tail is the least recently rendered — eviction
// walks from the tail.
//
// Touch/Remove/Order are reached from the Request path, decode-pool
// callbacks, and network completions concurrently (all of them funnel into
// settle()), so the list needs its own lock rather than assuming a caller
// already holds one.
type Recency struct {
	mu    sync.Mutex
	nodes map[types.ImageID]*recencyNode
	head  *recencyNode
	tail  *recencyNode
}

// NewRecency creates an empty recency tracker.
func NewRecency() *Recency {
	return &Recency{nodes: make(map[types.ImageID]*recencyNode)}
}

// Touch records that id was just rendered, moving it to the front (most
// recently rendered).
func (r *Recency) Touch(id types.ImageID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		r.moveToFront(n)
		return
	}
	n := &recencyNode{id: id}
	r.nodes[id] = n
	r.addFront(n)
}

// Remove drops id from the tracker entirely, e.g. once its Image is cleared.
func (r *Recency) Remove(id types.ImageID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		r.remove(n)
		delete(r.nodes, id)
	}
}

// Order returns ids from least-recently-rendered to most-recently-rendered.
// Ids never touched (never rendered) are not included — BuildCandidates
// sorts those after every id in this order.
func (r *Recency) Order() []types.ImageID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.ImageID, 0, len(r.nodes))
	for n := r.tail; n != nil; n = n.prev {
		out = append(out, n.id)
	}
	return out
}

func (r *Recency) addFront(n *recencyNode) {
	n.next = r.head
	if r.head != nil {
		r.head.prev = n
	}
	r.head = n
	if r.tail == nil {
		r.tail = n
	}
}

func (r *Recency) remove(n *recencyNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		r.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		r.tail = n.prev
	}
	n.prev = nil
	n.next = nil
}

func (r *Recency) moveToFront(n *recencyNode) {
	if n == r.head {
		return
	}
	r.remove(n)
	r.addFront(n)
}
