package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/krisalay/imagecache/types"
)

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	l := New(srv.URL, nil, 0, srv.Client())

	var started bool
	l.OnStart.On(func(StartEvent) { started = true })

	loadCh := make(chan LoadEvent, 1)
	l.OnLoad.On(func(e LoadEvent) { loadCh <- e })

	l.Fetch(context.Background())

	if !started {
		t.Fatalf("expected OnStart to fire")
	}
	select {
	case e := <-loadCh:
		if string(e.Bytes) != "hello world" {
			t.Fatalf("Bytes = %q, want %q", e.Bytes, "hello world")
		}
	default:
		t.Fatalf("expected OnLoad to fire synchronously")
	}
}

func TestFetchNonSuccessStatusIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	l := New(srv.URL, nil, 0, srv.Client())

	errCh := make(chan *types.CacheError, 1)
	l.OnError.On(func(e ErrorEvent) { errCh <- e.Err })

	l.Fetch(context.Background())

	select {
	case err := <-errCh:
		if err.Kind != types.ErrNetwork {
			t.Fatalf("Kind = %v, want network-error", err.Kind)
		}
	default:
		t.Fatalf("expected OnError to fire")
	}
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("too slow"))
	}))
	defer srv.Close()

	l := New(srv.URL, nil, 5*time.Millisecond, srv.Client())

	var timedOut bool
	l.OnTimeout.On(func(TimeoutEvent) { timedOut = true })

	l.Fetch(context.Background())

	if !timedOut {
		t.Fatalf("expected OnTimeout to fire")
	}
}

func TestAbortDuringFetchFiresAbortNotLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("late"))
	}))
	defer srv.Close()

	l := New(srv.URL, nil, 0, srv.Client())

	abortCh := make(chan struct{}, 1)
	l.OnAbort.On(func(AbortEvent) { abortCh <- struct{}{} })
	var loaded bool
	l.OnLoad.On(func(LoadEvent) { loaded = true })

	done := make(chan struct{})
	go func() {
		l.Fetch(context.Background())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	l.Abort()
	<-done

	select {
	case <-abortCh:
	case <-time.After(time.Second):
		t.Fatalf("expected OnAbort to fire")
	}
	if loaded {
		t.Fatalf("expected OnLoad not to fire once aborted")
	}
}

func TestHeadersForwarded(t *testing.T) {
	gotHeader := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader <- r.Header.Get("X-Test")
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("X-Test", "value")
	l := New(srv.URL, h, 0, srv.Client())
	l.Fetch(context.Background())

	select {
	case v := <-gotHeader:
		if v != "value" {
			t.Fatalf("header = %q, want %q", v, "value")
		}
	default:
		t.Fatalf("expected server handler to run")
	}
}
