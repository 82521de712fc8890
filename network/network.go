// Package network implements the bounded-concurrency Loader pool: at most
// loadersMax Loaders run at once, queued Images dispatch in insertion order,
// and the pool pauses when the Controller reports memory overflow.
package network

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/krisalay/imagecache/events"
	"github.com/krisalay/imagecache/loader"
	"github.com/krisalay/imagecache/registry"
	"github.com/krisalay/imagecache/types"
)

// LoadEvent fires upward once an Image's fetch succeeds, mirroring spec
// §4.2's "load" event delivered past the Network to the Controller.
type LoadEvent struct {
	URL types.ImageID
}

// CheckMemory is asked before every dispatch: true means budgets are
// exceeded and dispatch should pause.
type CheckMemory func() bool

// Network is a bounded pool of Loaders dispatched on behalf of Images
// already registered in the given ImageStore.
type Network struct {
	maxProcesses int
	sem          *semaphore.Weighted

	images      *registry.ImageStore
	checkMemory CheckMemory
	client      *http.Client
	timeout     time.Duration
	log         *logrus.Entry

	OnLoad  events.Emitter[LoadEvent]
	OnPause events.Emitter[struct{}]

	mu         sync.Mutex
	queue      []types.ImageID
	queuedSet  map[types.ImageID]struct{}
	inFlight   map[types.ImageID]*loader.Loader
	headers    map[types.ImageID]http.Header
	closed     bool
	loaded     int64
	errored    int64

	wg sync.WaitGroup
}

// New creates a Network pool. checkMemory is normally the Controller's
// overflow check; client may be nil to use http.DefaultClient.
func New(maxProcesses int, images *registry.ImageStore, checkMemory CheckMemory, client *http.Client, timeout time.Duration, log *logrus.Entry) *Network {
	if maxProcesses <= 0 {
		maxProcesses = 16
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Network{
		maxProcesses: maxProcesses,
		sem:          semaphore.NewWeighted(int64(maxProcesses)),
		images:       images,
		checkMemory:  checkMemory,
		client:       client,
		timeout:      timeout,
		log:          log,
		queuedSet:    make(map[types.ImageID]struct{}),
		inFlight:     make(map[types.ImageID]*loader.Loader),
		headers:      make(map[types.ImageID]http.Header),
	}
}

// Add enqueues url for fetching unless it is already loaded, queued, or
// in flight. headers are the per-request headers to use for this URL's
// fetch; the first Add for a URL wins if called again with different
// headers before dispatch.
func (n *Network) Add(url types.ImageID, headers http.Header) {
	img, ok := n.images.Get(url)
	if !ok {
		return
	}
	if img.Loaded() {
		return
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	_, queued := n.queuedSet[url]
	_, inFlight := n.inFlight[url]
	if queued || inFlight {
		n.mu.Unlock()
		return
	}
	n.queue = append(n.queue, url)
	n.queuedSet[url] = struct{}{}
	if _, ok := n.headers[url]; !ok {
		n.headers[url] = headers
	}
	n.mu.Unlock()

	n.dispatch()
}

// Remove dequeues url if pending, or aborts its Loader if in flight.
func (n *Network) Remove(url types.ImageID) {
	n.mu.Lock()
	if _, ok := n.queuedSet[url]; ok {
		delete(n.queuedSet, url)
		for i, u := range n.queue {
			if u == url {
				n.queue = append(n.queue[:i], n.queue[i+1:]...)
				break
			}
		}
	}
	l, inFlight := n.inFlight[url]
	n.mu.Unlock()

	if inFlight {
		l.Abort()
	}
}

// dispatch drains the queue while slots are free and memory is not in
// overflow. It is safe to call from multiple goroutines concurrently.
func (n *Network) dispatch() {
	for {
		if n.checkMemory != nil && n.checkMemory() {
			n.log.Warn("network: memory overflow, pausing dispatch")
			n.OnPause.Emit(struct{}{})
			return
		}

		if !n.sem.TryAcquire(1) {
			return
		}

		n.mu.Lock()
		if n.closed || len(n.queue) == 0 {
			n.mu.Unlock()
			n.sem.Release(1)
			return
		}
		url := n.queue[0]
		n.queue = n.queue[1:]
		delete(n.queuedSet, url)
		hdr := n.headers[url]
		delete(n.headers, url)
		n.mu.Unlock()

		img, ok := n.images.Get(url)
		if !ok {
			n.sem.Release(1)
			continue
		}

		l := loader.New(url, hdr, n.timeout, n.client)

		n.mu.Lock()
		n.inFlight[url] = l
		n.mu.Unlock()

		l.OnStart.On(func(loader.StartEvent) { img.OnLoaderStart() })
		l.OnProgress.On(func(e loader.ProgressEvent) { img.OnLoaderProgress(e.Loaded, e.Total) })
		l.OnLoad.On(func(e loader.LoadEvent) {
			n.mu.Lock()
			n.loaded++
			n.mu.Unlock()
			img.OnLoaderLoad(e.Bytes)
			n.OnLoad.Emit(LoadEvent{URL: url})
		})
		l.OnError.On(func(e loader.ErrorEvent) {
			n.mu.Lock()
			n.errored++
			n.mu.Unlock()
			img.OnLoaderFailure(types.ErrNetwork, e.Err)
		})
		l.OnTimeout.On(func(loader.TimeoutEvent) {
			n.mu.Lock()
			n.errored++
			n.mu.Unlock()
			img.OnLoaderFailure(types.ErrTimeout, nil)
		})
		l.OnAbort.On(func(loader.AbortEvent) {
			img.OnLoaderFailure(types.ErrAborted, nil)
		})

		n.wg.Add(1)
		go n.run(l, url)
	}
}

func (n *Network) run(l *loader.Loader, url types.ImageID) {
	defer n.wg.Done()
	l.Fetch(context.Background())

	n.mu.Lock()
	delete(n.inFlight, url)
	n.mu.Unlock()

	n.sem.Release(1)
	n.dispatch()
}

// Stats returns the monotonic loaded/errored counters.
func (n *Network) Stats() (loaded, errored int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loaded, n.errored
}

// InFlight returns the number of Loaders currently running. Spec invariant:
// this never exceeds loadersMax.
func (n *Network) InFlight() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.inFlight)
}

// QueueLen returns the number of Images waiting to be dispatched.
func (n *Network) QueueLen() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

// Shutdown aborts every in-flight Loader, empties the queue, and waits for
// all dispatcher goroutines to exit.
func (n *Network) Shutdown() {
	n.mu.Lock()
	n.closed = true
	n.queue = nil
	n.queuedSet = make(map[types.ImageID]struct{})
	inFlight := make([]*loader.Loader, 0, len(n.inFlight))
	for _, l := range n.inFlight {
		inFlight = append(inFlight, l)
	}
	n.mu.Unlock()

	for _, l := range inFlight {
		l.Abort()
	}
	n.wg.Wait()
}
