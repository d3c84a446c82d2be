package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rflorenc/apim-template-extractor/internal/logging"
)

func TestParseServiceResponse(t *testing.T) {
	body := []byte(`{"name":"contoso","location":"West Europe","sku":{"name":"Developer","capacity":1},
		"properties":{"gatewayUrl":"https://contoso.azure-api.net","provisioningState":"Succeeded"}}`)
	info, err := ParseServiceResponse(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Name != "contoso" || info.SKU != "Developer" || info.Capacity != 1 {
		t.Errorf("info = %+v", info)
	}
	if info.GatewayURL != "https://contoso.azure-api.net" {
		t.Errorf("GatewayURL = %q", info.GatewayURL)
	}
}

func TestParseServiceResponse_MissingName(t *testing.T) {
	if _, err := ParseServiceResponse([]byte(`{"location":"x"}`)); err == nil {
		t.Fatal("expected error for missing name, got nil")
	}
}

func TestParseServiceResponse_InvalidJSON(t *testing.T) {
	if _, err := ParseServiceResponse([]byte(`not json`)); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestDescribe(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"name":"contoso","location":"West Europe","sku":{"name":"Premium","capacity":2}}`))
	}))
	defer ts.Close()

	src := NewSource(newTestClient(ts), logging.Nop())
	info, err := src.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if info.SKU != "Premium" {
		t.Errorf("SKU = %q, want Premium", info.SKU)
	}
}

func TestDescribe_Unauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	src := NewSource(newTestClient(ts), nil)
	if _, err := src.Describe(context.Background()); err == nil {
		t.Fatal("Describe should fail on 403")
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "2.0.0", -1},
		{"2.0.0", "1.0.0", 1},
		{"1.0", "1.0.0", 0},
		{"2019-01-01", "2018-01-01", 1},
		{"2018-01-01", "2019-01-01", -1},
		{"2019-12-01", "2019-01-01", 1},
		{"2021-01-01-preview", "2021-01-01", 0},
	}
	for _, tc := range tests {
		t.Run(tc.a+"_vs_"+tc.b, func(t *testing.T) {
			got := CompareVersions(tc.a, tc.b)
			if got != tc.want {
				t.Errorf("CompareVersions(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		version, min string
		want         bool
	}{
		{"2019-01-01", MinAPIVersion, true},
		{"2017-03-01", MinAPIVersion, false},
		{"", "2018-01-01", true},
		{"2019-01-01", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.version+"_gte_"+tc.min, func(t *testing.T) {
			got := VersionAtLeast(tc.version, tc.min)
			if got != tc.want {
				t.Errorf("VersionAtLeast(%q, %q) = %v, want %v", tc.version, tc.min, got, tc.want)
			}
		})
	}
}
