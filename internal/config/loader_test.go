package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_Minimal(t *testing.T) {
	path := writeTempConfig(t, `
version: "1.0"
servers:
  - id: catalog
    priority: 10
    capabilities: ["list_resources"]
    transport: stdio
    transport_config:
      command: catalog-mcp-server
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0", cfg.Version)
	assert.Len(t, cfg.Servers, 1)
	assert.Equal(t, 3600, cfg.Orchestration.ResourceCacheTTLSeconds)
	assert.Equal(t, 1800, cfg.Orchestration.RefreshIntervalSeconds)
	assert.Equal(t, 3, cfg.Orchestration.MaxRetryAttempts)
	assert.True(t, cfg.Orchestration.IsFailFast())
	assert.True(t, cfg.Servers[0].IsEnabled())
}

func TestLoadConfig_EnvSubstitution(t *testing.T) {
	t.Setenv("CATALOG_DSN", "postgres://example/catalog")

	path := writeTempConfig(t, `
version: "1.0"
servers:
  - id: catalog
    priority: 10
    capabilities: ["list_resources"]
    transport: stdio
    transport_config:
      command: catalog-mcp-server
      env:
        DSN: "${CATALOG_DSN}"
        RETRIES: "${RETRIES:-3}"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://example/catalog", cfg.Servers[0].TransportConfig.Env["DSN"])
	assert.Equal(t, "3", cfg.Servers[0].TransportConfig.Env["RETRIES"])
}

func TestLoadConfig_MissingRequiredEnvVar(t *testing.T) {
	path := writeTempConfig(t, `
version: "1.0"
servers:
  - id: catalog
    priority: 10
    capabilities: ["list_resources"]
    transport: stdio
    transport_config:
      command: catalog-mcp-server
      env:
        DSN: "${UNSET_REQUIRED_VAR}"
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_DuplicateServerID(t *testing.T) {
	path := writeTempConfig(t, `
version: "1.0"
servers:
  - id: catalog
    priority: 10
    capabilities: ["list_resources"]
    transport: stdio
    transport_config:
      command: a
  - id: catalog
    priority: 20
    capabilities: ["list_resources"]
    transport: stdio
    transport_config:
      command: b
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_InvalidServerIDCharset(t *testing.T) {
	path := writeTempConfig(t, `
version: "1.0"
servers:
  - id: "Catalog Server"
    priority: 10
    capabilities: ["list_resources"]
    transport: stdio
    transport_config:
      command: a
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_MissingListResourcesCapability(t *testing.T) {
	path := writeTempConfig(t, `
version: "1.0"
servers:
  - id: catalog
    priority: 10
    capabilities: ["other"]
    transport: stdio
    transport_config:
      command: a
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_TransportConfigMismatch(t *testing.T) {
	path := writeTempConfig(t, `
version: "1.0"
servers:
  - id: catalog
    priority: 10
    capabilities: ["list_resources"]
    transport: sse
    transport_config:
      command: a
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_NoServers(t *testing.T) {
	path := writeTempConfig(t, `
version: "1.0"
servers: []
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
}
