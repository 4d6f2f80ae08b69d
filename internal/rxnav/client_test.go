package rxnav

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cognicore/rxresolve/pkg/rxresolve/internalerr"
)

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func rxnavHandler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/REST/rxcui.json":
		switch r.URL.Query().Get("name") {
		case "Nexplanon", "Zyrtec":
			w.Write([]byte(`{"idGroup":{"name":"x","rxnormId":["1"]}}`))
		case "Tylenol":
			w.Write([]byte(`{"idGroup":{"name":"Tylenol","rxnormId":["202433"]}}`))
		default:
			w.Write([]byte(`{"idGroup":{"name":"unknown"}}`))
		}
	case "/REST/rxcui/202433/related.json":
		if r.URL.Query().Get("tty") != "IN" {
			http.Error(w, "bad tty", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"relatedGroup":{"conceptGroup":[{"tty":"IN","conceptProperties":[{"rxcui":"161","name":"acetaminophen","tty":"IN"}]}]}}`))
	case "/REST/rxcui/1/related.json":
		w.Write([]byte(`{"relatedGroup":{"conceptGroup":[{"tty":"IN"}]}}`))
	default:
		http.NotFound(w, r)
	}
}

func TestResolveOverride(t *testing.T) {
	srv, calls := newServer(t, rxnavHandler)
	c := New(srv.URL, DefaultOverrides, 0)

	got, err := c.Resolve(context.Background(), "Nexplanon 68 MG Drug Implant")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "Etonogestrel" {
		t.Errorf("Resolve = %q, want Etonogestrel", got)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (override skips ingredient lookup)", calls.Load())
	}
}

func TestResolveIngredient(t *testing.T) {
	srv, _ := newServer(t, rxnavHandler)
	c := New(srv.URL, nil, 0)

	got, err := c.Resolve(context.Background(), "Tylenol Extra Strength")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "acetaminophen" {
		t.Errorf("Resolve = %q, want acetaminophen", got)
	}
}

func TestResolveNoIngredient(t *testing.T) {
	srv, _ := newServer(t, rxnavHandler)
	c := New(srv.URL, nil, 0)

	if _, err := c.Resolve(context.Background(), "Zyrtec"); !errors.Is(err, internalerr.ErrNotResolved) {
		t.Errorf("err = %v, want ErrNotResolved", err)
	}
}

func TestResolveUnknownIsCached(t *testing.T) {
	srv, calls := newServer(t, rxnavHandler)
	c := New(srv.URL, nil, 0)

	for i := 0; i < 3; i++ {
		if _, err := c.Resolve(context.Background(), "Ozempic Pen"); !errors.Is(err, internalerr.ErrNotResolved) {
			t.Fatalf("err = %v, want ErrNotResolved", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestResolveServerError(t *testing.T) {
	srv, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	c := New(srv.URL, nil, 0)

	for i := 0; i < 2; i++ {
		_, err := c.Resolve(context.Background(), "Nexplanon")
		if err == nil || errors.Is(err, internalerr.ErrNotResolved) {
			t.Fatalf("err = %v, want transport error", err)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2: failures are not cached", calls.Load())
	}
}

func TestResolveMalformedJSON(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"idGroup":`))
	})
	c := New(srv.URL, nil, 0)

	if _, err := c.Resolve(context.Background(), "Nexplanon"); err == nil {
		t.Error("expected decode error")
	}
}

func TestResolveTimeout(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	c := New(srv.URL, nil, 0)
	c.HTTPClient = &http.Client{Timeout: 50 * time.Millisecond}

	if _, err := c.Resolve(context.Background(), "Nexplanon"); err == nil {
		t.Error("expected timeout error")
	}
}

func TestResolveEmptyName(t *testing.T) {
	c := New("http://127.0.0.1:0", nil, 0)
	if _, err := c.Resolve(context.Background(), "   "); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestSimpleName(t *testing.T) {
	tests := map[string]string{
		"Nexplanon 68 MG Drug Implant": "Nexplanon",
		"  Aleve ":                     "Aleve",
		"":                             "",
	}
	for in, want := range tests {
		if got := SimpleName(in); got != want {
			t.Errorf("SimpleName(%q) = %q, want %q", in, got, want)
		}
	}
}
