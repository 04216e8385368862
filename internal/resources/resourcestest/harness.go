// Package resourcestest wires a request engine, cache and session store
// against an httptest server for resource module tests.
package resourcestest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/apiclient"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/cache"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/config"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/session"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/storage"
)

// Harness is a fully wired client stack pointed at a test server.
type Harness struct {
	Server   *httptest.Server
	Engine   *apiclient.Client
	Cache    *cache.Store
	Sessions *session.Store
	Durable  *storage.Memory

	mu   sync.Mutex
	hits map[string]int
}

// New starts a server for mux and counts every request by "METHOD /path".
func New(t *testing.T, mux *http.ServeMux) *Harness {
	t.Helper()
	h := &Harness{hits: make(map[string]int)}
	h.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.hits[r.Method+" "+r.URL.Path]++
		h.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(h.Server.Close)

	h.Durable = storage.NewMemory()
	h.Cache = cache.New(cache.Options{Durable: h.Durable})
	h.Sessions = session.New(h.Durable, h.Cache, config.DefaultConfig().Session, nil)

	engine, err := apiclient.New(apiclient.Options{
		BaseURL:    h.Server.URL,
		Timeout:    5 * time.Second,
		HTTPClient: h.Server.Client(),
		Sessions:   h.Sessions,
	})
	require.NoError(t, err)
	h.Engine = engine
	return h
}

// Hits returns how many requests reached "METHOD /path".
func (h *Harness) Hits(route string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[route]
}

// JSON writes body with the given status.
func JSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// DecodeBody reads the request JSON body into a map.
func DecodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&out))
	return out
}
