package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rflorenc/apim-template-extractor/internal/logging"
	"github.com/rflorenc/apim-template-extractor/internal/models"
)

func newTestClient(ts *httptest.Server) *Client {
	return &Client{
		baseURL:    ts.URL,
		apiVersion: models.APIManagementAPIVersion,
		tokens:     StaticToken("secret"),
		httpClient: ts.Client(),
		maxRetries: 3,
		minBackoff: time.Millisecond,
		maxBackoff: 5 * time.Millisecond,
		logger:     logging.Nop(),
	}
}

func TestClient_Get_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	body, err := c.Get(context.Background(), "/apis", nil)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if string(body) != `{"status":"ok"}` {
		t.Errorf("body = %q, want {\"status\":\"ok\"}", string(body))
	}
}

func TestClient_Get_AuthHeaderAndAPIVersion(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q, want Bearer secret", got)
		}
		if got := r.URL.Query().Get("api-version"); got != models.APIManagementAPIVersion {
			t.Errorf("api-version = %q, want %q", got, models.APIManagementAPIVersion)
		}
		if got := r.URL.Query().Get("format"); got != "rawxml" {
			t.Errorf("format = %q, want rawxml", got)
		}
		w.Write([]byte("{}"))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	if _, err := c.Get(context.Background(), "policies/policy", map[string][]string{"format": {"rawxml"}}); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
}

func TestClient_Get_NoTokenNoHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Error("Authorization header sent with empty token")
		}
		w.Write([]byte("{}"))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	c.tokens = StaticToken("")
	if _, err := c.Get(context.Background(), "/x", nil); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
}

func TestClient_Get_ErrorStatusNotRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":"InvalidAuthenticationToken"}}`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	_, err := c.Get(context.Background(), "/apis", nil)
	if err == nil {
		t.Fatal("Get should return error for 401")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("401 was attempted %d times, want 1", n)
	}
}

func TestClient_Get_RetriesThrottling(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	body, err := c.Get(context.Background(), "/apis", nil)
	if err != nil {
		t.Fatalf("Get returned error after transient failures: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", string(body))
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestClient_Get_RetryExhaustion(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	_, err := c.Get(context.Background(), "/apis", nil)
	if err == nil {
		t.Fatal("Get should fail once retries are exhausted")
	}
	if n := atomic.LoadInt32(&calls); n != 4 {
		t.Errorf("calls = %d, want 4 (1 + 3 retries)", n)
	}
}

func TestClient_GetAll_Pagination(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var resp map[string]interface{}
		if r.URL.Query().Get("page") == "" {
			resp = map[string]interface{}{
				"value":    []interface{}{map[string]interface{}{"name": "a1", "properties": map[string]interface{}{"displayName": "A1"}}},
				"nextLink": ts.URL + "/apis?api-version=2019-01-01&page=2",
			}
		} else {
			resp = map[string]interface{}{
				"value": []interface{}{map[string]interface{}{"name": "a2"}, map[string]interface{}{"name": "a3"}},
			}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	results, err := c.GetAll(context.Background(), "/apis")
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("GetAll returned %d results, want 3", len(results))
	}
	if results[0].Properties["displayName"] != "A1" {
		t.Errorf("results[0].displayName = %v, want A1", results[0].Properties["displayName"])
	}
	if results[2].Properties == nil {
		t.Error("missing properties should decode to an empty map")
	}
}

func TestClient_GetPolicy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/apis/echo/policies/policy":
			w.Write([]byte(`{"name":"policy","properties":{"format":"rawxml","value":"<policies />"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c := newTestClient(ts)
	doc, err := c.GetPolicy(context.Background(), "/apis/echo/policies/policy")
	if err != nil {
		t.Fatalf("GetPolicy returned error: %v", err)
	}
	if doc != "<policies />" {
		t.Errorf("doc = %q", doc)
	}

	doc, err = c.GetPolicy(context.Background(), "/apis/other/policies/policy")
	if err != nil {
		t.Fatalf("GetPolicy(404) should not error, got: %v", err)
	}
	if doc != "" {
		t.Errorf("GetPolicy(404) = %q, want empty", doc)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Get(ctx, "/apis", nil); err == nil {
		t.Fatal("Get with a cancelled context should fail")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("2"); got != 2*time.Second {
		t.Errorf("parseRetryAfter(2) = %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("parseRetryAfter(\"\") = %v", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Errorf("parseRetryAfter(soon) = %v", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		expect string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world", 5, "hello..."},
		{"empty", "", 5, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := truncate(tc.input, tc.maxLen)
			if got != tc.expect {
				t.Errorf("truncate(%q, %d) = %q, want %q", tc.input, tc.maxLen, got, tc.expect)
			}
		})
	}
}

func TestNewClient(t *testing.T) {
	svc := &models.Service{
		SubscriptionID: "sub",
		ResourceGroup:  "rg",
		Name:           "contoso",
		Token:          "tok",
	}
	c := NewClient(svc, nil, WithTimeout(5*time.Second), WithRetry(2, 0, 0))
	if c.baseURL != svc.BaseURL() {
		t.Errorf("baseURL = %q, want %q", c.baseURL, svc.BaseURL())
	}
	tok, _ := c.tokens.Token(context.Background())
	if tok != "tok" {
		t.Errorf("token = %q, want tok", tok)
	}
	if c.httpClient.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", c.httpClient.Timeout)
	}
	if c.maxRetries != 2 || c.minBackoff != 500*time.Millisecond {
		t.Errorf("retry settings = (%d, %v)", c.maxRetries, c.minBackoff)
	}
}
