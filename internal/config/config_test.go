package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rflorenc/apim-template-extractor/internal/logging"
	"github.com/rflorenc/apim-template-extractor/internal/models"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_FlagsWin(t *testing.T) {
	path := writeFile(t, `
sourceApimName: contoso
destinationApimName: contoso-prod
resourceGroup: rg
subscriptionId: sub
fileFolder: out
apiName: echo
workers: 8
timeout: 30s
listen: ":9090"
`)
	c := &Config{APIName: "orders", Workers: 2}
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c.APIName != "orders" {
		t.Errorf("APIName = %q, want flag value orders", c.APIName)
	}
	if c.Workers != 2 {
		t.Errorf("Workers = %d, want flag value 2", c.Workers)
	}
	if c.SourceService != "contoso" || c.FileFolder != "out" {
		t.Errorf("file values not applied: %+v", c)
	}
	if c.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", c.Timeout)
	}
	if c.Listen != ":9090" {
		t.Errorf("Listen = %q", c.Listen)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	c := &Config{}
	if err := c.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if err := c.LoadFile(writeFile(t, "workers: [1, 2")); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestApplyDefaults(t *testing.T) {
	c := &Config{Workers: 1}
	c.ApplyDefaults()

	if c.Endpoint != models.DefaultManagementEndpoint {
		t.Errorf("Endpoint = %q", c.Endpoint)
	}
	if c.APIVersion != models.APIManagementAPIVersion {
		t.Errorf("APIVersion = %q", c.APIVersion)
	}
	if c.Workers != 1 {
		t.Errorf("Workers = %d, want 1 (already set)", c.Workers)
	}
	if c.MaxRetries != DefaultMaxRetries || c.Timeout != DefaultTimeout || c.Listen != DefaultListen {
		t.Errorf("defaults not applied: %+v", c)
	}
}

func TestValidate(t *testing.T) {
	c := &Config{}
	c.ApplyDefaults()
	err := c.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !models.IsKind(err, models.KindMissingParameter) {
		t.Errorf("error kind: %v", err)
	}
	for _, name := range []string{"sourceApimName", "destinationApimName", "resourceGroup", "subscriptionId", "fileFolder"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error does not name %s: %v", name, err)
		}
	}

	c = &Config{
		SourceService: "a", DestinationService: "b", ResourceGroup: "rg",
		SubscriptionID: "sub", FileFolder: "out",
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	c.APIVersion = "2017-03-01"
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "older than") {
		t.Errorf("expected api version error, got %v", err)
	}
}

func TestConversions(t *testing.T) {
	c := &Config{
		SourceService:      "contoso",
		DestinationService: "contoso-prod",
		ResourceGroup:      "rg",
		SubscriptionID:     "sub",
		APIName:            "echo",
		PolicyXMLBaseURL:   "https://storage/policies",
		Token:              "secret",
		LogLevel:           "debug",
		LogFormat:          "json",
	}
	c.ApplyDefaults()

	svc := c.Service()
	if svc.Name != "contoso" || svc.ResourceGroup != "rg" || svc.Token != "secret" {
		t.Errorf("Service() = %+v", svc)
	}

	opts := c.ExtractOptions()
	if opts.SourceService != "contoso" || opts.DestinationService != "contoso-prod" || opts.API != "echo" {
		t.Errorf("ExtractOptions() = %+v", opts)
	}
	if opts.PolicyXMLBaseURL != "https://storage/policies" || opts.Workers != c.Workers {
		t.Errorf("ExtractOptions() = %+v", opts)
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("options invalid: %v", err)
	}

	lc := c.Logging()
	if lc.Level != logging.LevelDebug || lc.Format != logging.FormatJSON {
		t.Errorf("Logging() = %+v", lc)
	}

	if n := len(c.ClientOptions()); n != 3 {
		t.Errorf("ClientOptions() returned %d options, want 3", n)
	}
}
