package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensdd/osdd-ado/core/hierarchy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, AuthAzureAuth, cfg.AuthMode)
	assert.Equal(t, DefaultFeatureTag, cfg.FeatureTag)
	assert.Equal(t, hierarchy.DefaultDelay, cfg.Delay)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := Config{
		OrgURL:        "https://dev.azure.com/org",
		Project:       "One",
		AssignedTo:    "dev@example.com",
		AreaPath:      "One\\Team",
		IterationPath: "One\\Sprint 1",
		AuthMode:      AuthPAT,
		FeatureTag:    "plans",
		Delay:         0,
	}
	require.NoError(t, Save(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("org_url: https://dev.azure.com/org\nproject: One\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "One", cfg.Project)
	assert.Equal(t, AuthAzureAuth, cfg.AuthMode)
	assert.Equal(t, hierarchy.DefaultDelay, cfg.Delay)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("org_url: [oops"), 0o600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "config: parse")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("OSDD_ADO_ORG_URL", "https://dev.azure.com/env")
	t.Setenv("OSDD_ADO_PROJECT", "EnvProject")
	t.Setenv("OSDD_ADO_ASSIGNED_TO", "")

	cfg := Config{OrgURL: "https://dev.azure.com/file", Project: "File", AssignedTo: "file@example.com"}
	cfg.ApplyEnv()

	assert.Equal(t, "https://dev.azure.com/env", cfg.OrgURL)
	assert.Equal(t, "EnvProject", cfg.Project)
	assert.Equal(t, "file@example.com", cfg.AssignedTo)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.OrgURL = "https://dev.azure.com/org"
	valid.Project = "One"
	assert.NoError(t, valid.Validate())

	err := Default().Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "org_url is required")
	assert.ErrorContains(t, err, "project is required")

	bad := valid
	bad.AuthMode = "kerberos"
	bad.Delay = -time.Second
	err = bad.Validate()
	assert.ErrorContains(t, err, `unknown auth_mode "kerberos"`)
	assert.ErrorContains(t, err, "delay cannot be negative")
}

func TestSet(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Set("org_url", "https://dev.azure.com/org/"))
	require.NoError(t, cfg.Set("project", "One"))
	require.NoError(t, cfg.Set("delay", "500ms"))
	require.NoError(t, cfg.Set("auth_mode", AuthPAT))

	assert.Equal(t, "https://dev.azure.com/org", cfg.OrgURL)
	assert.Equal(t, "One", cfg.Project)
	assert.Equal(t, 500*time.Millisecond, cfg.Delay)
	assert.Equal(t, AuthPAT, cfg.AuthMode)

	assert.ErrorContains(t, cfg.Set("delay", "soon"), "invalid delay")
	assert.ErrorContains(t, cfg.Set("colour", "blue"), "unknown key")
}

func TestItemDefaultsAndWebBase(t *testing.T) {
	cfg := Config{
		OrgURL:        "https://dev.azure.com/org/",
		Project:       "One",
		AssignedTo:    "dev@example.com",
		IterationPath: "One\\Sprint 1",
	}
	assert.Equal(t, hierarchy.ItemDefaults{AssignedTo: "dev@example.com", IterationPath: "One\\Sprint 1"}, cfg.ItemDefaults())
	assert.Equal(t, "https://dev.azure.com/org/One", cfg.WebBase())

	cfg.Project = "My Project"
	assert.Equal(t, "https://dev.azure.com/org/My%20Project", cfg.WebBase())
}
