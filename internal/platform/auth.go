package platform

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// TokenSource supplies bearer tokens for the management API. Session handling
// lives behind this interface.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken always returns the same token. An empty token sends no
// Authorization header, which suits local fakes.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// EnvToken reads the token from an environment variable on every call.
type EnvToken struct {
	Var string
}

func (t EnvToken) Token(context.Context) (string, error) {
	v := os.Getenv(t.Var)
	if v == "" {
		return "", fmt.Errorf("environment variable %s is empty", t.Var)
	}
	return v, nil
}

// AzureCLIToken obtains a token from `az account get-access-token` once and
// caches it for the life of the process.
type AzureCLIToken struct {
	Command string // defaults to "az"

	once  sync.Once
	token string
	err   error
}

func (t *AzureCLIToken) Token(ctx context.Context) (string, error) {
	t.once.Do(func() {
		name := t.Command
		if name == "" {
			name = "az"
		}
		cmd := exec.CommandContext(ctx, name, "account", "get-access-token", "--query", "accessToken", "-o", "tsv")
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		out, err := cmd.Output()
		if err != nil {
			t.err = fmt.Errorf("az account get-access-token: %w: %s", err, strings.TrimSpace(stderr.String()))
			return
		}
		t.token = strings.TrimSpace(string(out))
	})
	return t.token, t.err
}

// DefaultTokenSource picks the token for a run: an explicit token wins, then
// AZURE_ACCESS_TOKEN, then the Azure CLI.
func DefaultTokenSource(explicit string) TokenSource {
	if explicit != "" {
		return StaticToken(explicit)
	}
	if os.Getenv("AZURE_ACCESS_TOKEN") != "" {
		return EnvToken{Var: "AZURE_ACCESS_TOKEN"}
	}
	return &AzureCLIToken{}
}
