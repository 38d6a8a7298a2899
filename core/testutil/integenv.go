// Package testutil provides shared helpers for integration tests that talk to
// a real Azure DevOps organisation.
package testutil

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// Keys read by the integration tests.
const (
	KeyOrgURL  = "OSDD_ADO_TEST_ORG_URL"
	KeyProject = "OSDD_ADO_TEST_PROJECT"
	KeyPAT     = "OSDD_ADO_TEST_PAT"
)

var (
	integEnvOnce sync.Once
	integEnvVars map[string]string
)

// IntegEnvPath is ~/.config/osdd-ado/.env.integ-test.
func IntegEnvPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "osdd-ado", ".env.integ-test")
}

func loadIntegEnvFile() map[string]string {
	integEnvOnce.Do(func() {
		integEnvVars = parseEnvFile(IntegEnvPath())
	})
	return integEnvVars
}

// parseEnvFile reads KEY=VALUE lines, skipping blanks and # comments.
// A missing file yields an empty map.
func parseEnvFile(path string) map[string]string {
	vars := map[string]string{}
	if path == "" {
		return vars
	}
	f, err := os.Open(path)
	if err != nil {
		return vars
	}
	defer func() { _ = f.Close() }()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, "="); ok {
			vars[strings.TrimSpace(k)] = strings.Trim(strings.TrimSpace(v), `"'`)
		}
	}
	return vars
}

// IntegEnv returns the value of key from the environment, falling back to
// the integ-test env file.
func IntegEnv(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return loadIntegEnvFile()[key]
}

// IntegEnvOrSkip returns the requested keys or skips t when any is missing
// or when running with -short.
func IntegEnvOrSkip(t testing.TB, keys ...string) map[string]string {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	vals := make(map[string]string, len(keys))
	for _, k := range keys {
		v := IntegEnv(k)
		if v == "" {
			t.Skipf("%s required (env var or %s)", k, IntegEnvPath())
		}
		vals[k] = v
	}
	return vals
}
