package config

// GatewayConfig is the top-level configuration document (spec.md §6.2).
type GatewayConfig struct {
	Version       string              `yaml:"version" validate:"required"`
	Defaults      Defaults            `yaml:"defaults"`
	Orchestration OrchestrationConfig `yaml:"orchestration"`
	Servers       []ServerDescriptor  `yaml:"servers" validate:"required,min=1,dive"`
}

// Defaults carries fallback values applied to servers that don't declare
// their own timeout or retry behavior.
type Defaults struct {
	TimeoutMs     int `yaml:"timeout_ms,omitempty"`
	RetryAttempts int `yaml:"retry_attempts,omitempty"`
	RetryDelayMs  int `yaml:"retry_delay_ms,omitempty"`
}

// OrchestrationConfig controls the resource cache and recovery loop.
type OrchestrationConfig struct {
	ResourceCacheTTLSeconds int   `yaml:"resource_cache_ttl_s"`
	RefreshIntervalSeconds  int   `yaml:"refresh_interval_s"`
	FailFast                *bool `yaml:"fail_fast,omitempty"`
	MaxRetryAttempts        int   `yaml:"max_retry_attempts"`
}

// IsFailFast reports whether the fail-fast policy is active, defaulting to
// true when unset (spec.md §6.2).
func (o OrchestrationConfig) IsFailFast() bool {
	return o.FailFast == nil || *o.FailFast
}

// TransportKind names the supported subordinate-server transports.
type TransportKind string

const (
	TransportSSE   TransportKind = "sse"
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

// ServerDescriptor describes one subordinate MCP server (spec.md §6.2).
type ServerDescriptor struct {
	ID              string          `yaml:"id" validate:"required"`
	Name            string          `yaml:"name"`
	Enabled         *bool           `yaml:"enabled,omitempty"`
	Critical        bool            `yaml:"critical,omitempty"`
	Priority        int             `yaml:"priority" validate:"required,min=1,max=999"`
	Domains         []string        `yaml:"domains,omitempty"`
	Capabilities    []string        `yaml:"capabilities" validate:"required,min=1"`
	Transport       TransportKind   `yaml:"transport" validate:"required,oneof=sse stdio http"`
	TransportConfig TransportConfig `yaml:"transport_config"`
}

// IsEnabled reports whether the server is enabled, defaulting to true when
// the field is unset.
func (d ServerDescriptor) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// HasCapability reports whether the server declares the named capability.
func (d ServerDescriptor) HasCapability(name string) bool {
	for _, c := range d.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

// TransportConfig is a union of the per-transport settings; only the fields
// relevant to ServerDescriptor.Transport are populated after loading.
type TransportConfig struct {
	Endpoint  string            `yaml:"endpoint,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	TimeoutMs int               `yaml:"timeout_ms,omitempty"`
	APIKey    string            `yaml:"api_key,omitempty"`

	Command string            `yaml:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	Cwd     string            `yaml:"cwd,omitempty"`
}
