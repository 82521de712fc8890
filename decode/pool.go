package decode

import (
	"context"
	"errors"
	"sync"

	"github.com/krisalay/imagecache/types"
)

// errPoolClosed is returned by Measure once Close has run; the caller sees
// it the same way it would see a cancelled context.
var errPoolClosed = errors.New("decode: pool closed")

// job is one pending dimension-measurement request.
type job struct {
	bytes  []byte
	result chan result
}

type result struct {
	size types.Size
	err  error
}

// Pool bounds how many blob-decode headers are parsed concurrently. Decoding
// is CPU-bound; without a cap, a burst of same-tick image completions would
// contend for cores just as badly as an unbounded Loader burst contends for
// sockets.
//
// The shape — a buffered job channel drained by a fixed set of worker
// goroutines, torn down by closing the channel and waiting on a WaitGroup —
// is the same one the teacher uses for its write-back policy; here each job
// carries its own result channel instead of firing-and-forgetting, because a
// missed image size is a correctness gap (the RenderRequest never reaches
// image-loaded), not a best-effort backing-store write.
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts a pool of `workers` decode goroutines.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{jobs: make(chan job, workers*4)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		size, err := NaturalSize(j.bytes)
		j.result <- result{size: size, err: err}
	}
}

// Measure submits b for dimension measurement and blocks until a worker
// processes it or ctx is done. The send is guarded by a read lock so it can
// never race Close's close(p.jobs) — Close takes the write lock before
// closing, so a Measure call already past this check is guaranteed to
// complete its send before Close can close the channel.
func (p *Pool) Measure(ctx context.Context, b []byte) (types.Size, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return types.Size{}, errPoolClosed
	}
	j := job{bytes: b, result: make(chan result, 1)}
	select {
	case p.jobs <- j:
	case <-ctx.Done():
		p.mu.RUnlock()
		return types.Size{}, ctx.Err()
	}
	p.mu.RUnlock()

	select {
	case r := <-j.result:
		return r.size, r.err
	case <-ctx.Done():
		return types.Size{}, ctx.Err()
	}
}

// Close stops accepting new work and waits for in-flight decodes to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
