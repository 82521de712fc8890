// Package loader implements the one-shot byte fetch contract: given a URL,
// fetch the byte stream, emitting start, zero-or-more progress, then exactly
// one terminal event (load, error, timeout, or abort).
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/krisalay/imagecache/events"
	"github.com/krisalay/imagecache/types"
)

// StartEvent fires once, before any bytes are read.
type StartEvent struct {
	URL string
}

// ProgressEvent reports cumulative bytes read so far. Total is -1 when the
// server did not report a Content-Length.
type ProgressEvent struct {
	URL    string
	Loaded int64
	Total  int64
}

// LoadEvent is the success terminal: the full byte stream and its length.
type LoadEvent struct {
	URL   string
	Bytes []byte
}

// ErrorEvent is the network-failure terminal.
type ErrorEvent struct {
	URL string
	Err *types.CacheError
}

// TimeoutEvent is the deadline-exceeded terminal.
type TimeoutEvent struct {
	URL string
}

// AbortEvent is the cancellation terminal.
type AbortEvent struct {
	URL string
}

// chunkSize bounds how much is read between progress events.
const chunkSize = 32 * 1024

// Loader performs one fetch of one URL. It is not reusable: once a terminal
// event has fired, Fetch must not be called again.
type Loader struct {
	URL     string
	Headers http.Header
	Timeout time.Duration

	OnStart    events.Emitter[StartEvent]
	OnProgress events.Emitter[ProgressEvent]
	OnLoad     events.Emitter[LoadEvent]
	OnError    events.Emitter[ErrorEvent]
	OnTimeout  events.Emitter[TimeoutEvent]
	OnAbort    events.Emitter[AbortEvent]

	client *http.Client

	mu       sync.Mutex
	cancel   context.CancelFunc
	terminal bool
}

// New builds a Loader for url. client is reused across Loaders by the
// Network pool; passing nil falls back to http.DefaultClient.
func New(url string, headers http.Header, timeout time.Duration, client *http.Client) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{URL: url, Headers: headers, Timeout: timeout, client: client}
}

// Fetch runs the fetch to completion, emitting exactly one terminal event.
// It blocks the calling goroutine; the Network pool calls it from a worker
// goroutine, never from the Controller's own goroutine.
func (l *Loader) Fetch(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	if l.Timeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, l.Timeout)
		defer timeoutCancel()
	}

	l.mu.Lock()
	if l.terminal {
		l.mu.Unlock()
		cancel()
		return
	}
	l.cancel = cancel
	l.mu.Unlock()
	defer cancel()

	l.OnStart.Emit(StartEvent{URL: l.URL})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		l.fail(ctx, err)
		return
	}
	for k, vs := range l.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := l.client.Do(req)
	if err != nil {
		l.fail(ctx, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		l.terminate(func() {
			l.OnError.Emit(ErrorEvent{URL: l.URL, Err: types.NewCacheError(
				types.ErrNetwork, l.URL,
				fmt.Errorf("unexpected status %d", resp.StatusCode))})
		})
		return
	}

	total := resp.ContentLength
	var buf []byte
	var loaded int64
	chunk := make([]byte, chunkSize)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			loaded += int64(n)
			l.OnProgress.Emit(ProgressEvent{URL: l.URL, Loaded: loaded, Total: total})
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			l.fail(ctx, readErr)
			return
		}
	}

	l.terminate(func() {
		l.OnLoad.Emit(LoadEvent{URL: l.URL, Bytes: buf})
	})
}

// fail classifies a transport error against the context as abort, timeout,
// or a plain network error.
func (l *Loader) fail(ctx context.Context, err error) {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		l.terminate(func() { l.OnAbort.Emit(AbortEvent{URL: l.URL}) })
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		l.terminate(func() { l.OnTimeout.Emit(TimeoutEvent{URL: l.URL}) })
	default:
		l.terminate(func() {
			l.OnError.Emit(ErrorEvent{URL: l.URL, Err: types.NewCacheError(types.ErrNetwork, l.URL, err)})
		})
	}
}

// terminate runs emit exactly once, guarding against double-terminal
// dispatch and making Abort-after-terminal a no-op.
func (l *Loader) terminate(emit func()) {
	l.mu.Lock()
	if l.terminal {
		l.mu.Unlock()
		return
	}
	l.terminal = true
	l.mu.Unlock()
	emit()
}

// Abort cancels an in-flight fetch. Idempotent: a second call, or a call
// after a terminal event already fired, does nothing.
func (l *Loader) Abort() {
	l.mu.Lock()
	cancel := l.cancel
	alreadyTerminal := l.terminal
	l.mu.Unlock()
	if cancel != nil && !alreadyTerminal {
		cancel()
	}
}
