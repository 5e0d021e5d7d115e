package config

// DefaultOrchestrationConfig returns the spec-documented orchestration
// defaults, applied before a loaded document's values are merged in.
func DefaultOrchestrationConfig() OrchestrationConfig {
	return OrchestrationConfig{
		ResourceCacheTTLSeconds: 3600,
		RefreshIntervalSeconds:  1800,
		MaxRetryAttempts:        3,
	}
}

func applyOrchestrationDefaults(o OrchestrationConfig) OrchestrationConfig {
	d := DefaultOrchestrationConfig()
	if o.ResourceCacheTTLSeconds == 0 {
		o.ResourceCacheTTLSeconds = d.ResourceCacheTTLSeconds
	}
	if o.RefreshIntervalSeconds == 0 {
		o.RefreshIntervalSeconds = d.RefreshIntervalSeconds
	}
	if o.MaxRetryAttempts == 0 {
		o.MaxRetryAttempts = d.MaxRetryAttempts
	}
	return o
}
