// Package platformtest serves an in-memory management API over HTTP for
// tests of the readers and the extraction pipeline.
package platformtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Item is one resource held by the fake.
type Item struct {
	Name       string
	Properties map[string]interface{}
}

// Server is a fake management API. Collections are keyed by their path
// below the service ("apis", "apis/echo/operations", "products/starter/apis").
// Policies are keyed by their owner path ("" for the service, "apis/echo").
type Server struct {
	*httptest.Server

	// PageSize splits collections into pages linked by nextLink. Zero
	// returns everything in one page.
	PageSize int

	mu          sync.Mutex
	collections map[string][]Item
	policies    map[string]string
	failures    map[string]int
	requests    map[string]int
}

// NewServer starts a fake. Close it when done.
func NewServer() *Server {
	s := &Server{
		collections: make(map[string][]Item),
		policies:    make(map[string]string),
		failures:    make(map[string]int),
		requests:    make(map[string]int),
	}
	r := chi.NewRouter()
	r.Get("/*", s.handle)
	s.Server = httptest.NewServer(r)
	return s
}

// Add appends items to a collection.
func (s *Server) Add(collection string, items ...Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], items...)
}

// SetPolicy stores the policy document of an owner.
func (s *Server) SetPolicy(owner, document string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[owner] = document
}

// FailNext makes the next n requests to path answer 503. Paths are
// relative to the service; full ARM paths are accepted too.
func (s *Server) FailNext(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[ServicePath(path)] = n
}

// Requests returns how many requests path has received.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[ServicePath(path)]
}

// servicePrefix precedes the service name in full ARM paths.
const servicePrefix = "providers/Microsoft.ApiManagement/service/"

// ServicePath strips the subscription, resource group and service segments
// of an ARM path, so clients built from a models.Service reach the fake.
func ServicePath(p string) string {
	p = strings.Trim(p, "/")
	i := strings.Index(p, servicePrefix)
	if i < 0 {
		return p
	}
	rest := p[i+len(servicePrefix):]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		return rest[j+1:]
	}
	return ""
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	path := ServicePath(chi.URLParam(r, "*"))

	s.mu.Lock()
	s.requests[path]++
	if n := s.failures[path]; n > 0 {
		s.failures[path] = n - 1
		s.mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	s.mu.Unlock()

	if path == "" {
		writeJSON(w, map[string]interface{}{"name": "fake", "location": "local", "sku": map[string]interface{}{"name": "Developer", "capacity": 1}})
		return
	}
	if owner, ok := strings.CutSuffix(path, "policies/policy"); ok {
		s.servePolicy(w, strings.Trim(owner, "/"))
		return
	}
	s.serveCollection(w, r, path)
}

func (s *Server) servePolicy(w http.ResponseWriter, owner string) {
	s.mu.Lock()
	doc, ok := s.policies[owner]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"ResourceNotFound"}}`))
		return
	}
	writeJSON(w, map[string]interface{}{
		"name":       "policy",
		"properties": map[string]interface{}{"format": "rawxml", "value": doc},
	})
}

func (s *Server) serveCollection(w http.ResponseWriter, r *http.Request, path string) {
	s.mu.Lock()
	items := append([]Item(nil), s.collections[path]...)
	s.mu.Unlock()

	start, _ := strconv.Atoi(r.URL.Query().Get("$skip"))
	end := len(items)
	next := ""
	if s.PageSize > 0 && start+s.PageSize < end {
		end = start + s.PageSize
		next = s.URL + "/" + path + "?api-version=" + r.URL.Query().Get("api-version") + "&$skip=" + strconv.Itoa(end)
	}
	if start > len(items) {
		start = len(items)
	}

	value := make([]interface{}, 0, end-start)
	for _, it := range items[start:end] {
		props := it.Properties
		if props == nil {
			props = map[string]interface{}{}
		}
		value = append(value, map[string]interface{}{
			"id":         "/" + path + "/" + it.Name,
			"name":       it.Name,
			"properties": props,
		})
	}
	resp := map[string]interface{}{"value": value}
	if next != "" {
		resp["nextLink"] = next
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
