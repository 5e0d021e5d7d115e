package config

import (
	"fmt"
	"os"
	"regexp"

	"sqlgateway/pkg/logging"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// LoadConfig reads, env-substitutes, parses and validates the configuration
// document at path (spec.md §6.2).
func LoadConfig(path string) (GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GatewayConfig{}, NewConfigurationError(path, filepathBase(path), "file", "load", "io", err.Error())
	}

	substituted, err := substituteEnv(string(data))
	if err != nil {
		return GatewayConfig{}, NewConfigurationErrorWithDetails(path, filepathBase(path), "file", "load", "env_substitution", err.Error(), "", nil)
	}

	var cfg GatewayConfig
	if err := yaml.Unmarshal([]byte(substituted), &cfg); err != nil {
		return GatewayConfig{}, NewConfigurationErrorWithDetails(path, filepathBase(path), "file", "load", "parse", "malformed configuration document", err.Error(), nil)
	}

	cfg.Orchestration = applyOrchestrationDefaults(cfg.Orchestration)

	if err := validate.Struct(cfg); err != nil {
		return GatewayConfig{}, translateStructValidation(path, err)
	}

	if err := validateBusinessRules(cfg); err != nil {
		return GatewayConfig{}, err
	}

	logging.Info("ConfigLoader", "loaded configuration from %s (%d servers)", path, len(cfg.Servers))
	return cfg, nil
}

func filepathBase(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// substituteEnv replaces ${VAR} and ${VAR:-default} occurrences in the raw
// document with environment values before YAML parsing (spec.md §6.2). A
// referenced variable with no default and no environment value is an error.
func substituteEnv(doc string) (string, error) {
	var firstErr error
	result := envPattern.ReplaceAllStringFunc(doc, func(match string) string {
		groups := envPattern.FindStringSubmatch(match)
		name := groups[1]
		hasDefault := groups[2] != ""
		def := groups[3]

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		if hasDefault {
			return def
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("required environment variable %q is not set", name)
		}
		return match
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

func translateStructValidation(path string, err error) error {
	collection := NewConfigurationErrorCollection()
	var verrs validator.ValidationErrors
	if ok := asValidationErrors(err, &verrs); ok {
		for _, fe := range verrs {
			collection.Add(NewConfigurationErrorWithDetails(
				path, filepathBase(path), "file", "validation", "schema",
				fmt.Sprintf("field %s failed constraint %q", fe.Namespace(), fe.Tag()),
				fmt.Sprintf("value: %v", fe.Value()), nil,
			))
		}
		return *collection
	}
	collection.Add(NewConfigurationError(path, filepathBase(path), "file", "validation", "schema", err.Error()))
	return *collection
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	*target = verrs
	return true
}

// validateBusinessRules applies constraints the struct tags can't express:
// unique server ids, id character set, and transport/transport_config
// consistency.
func validateBusinessRules(cfg GatewayConfig) error {
	collection := NewConfigurationErrorCollection()
	idPattern := regexp.MustCompile(`^[a-z0-9-]+$`)
	seen := make(map[string]bool, len(cfg.Servers))

	for _, s := range cfg.Servers {
		if !idPattern.MatchString(s.ID) {
			collection.Add(NewConfigurationError("", s.ID, "server", "servers", "validation",
				fmt.Sprintf("server id %q must match ^[a-z0-9-]+$", s.ID)))
		}
		if seen[s.ID] {
			collection.Add(NewConfigurationError("", s.ID, "server", "servers", "validation",
				fmt.Sprintf("duplicate server id %q", s.ID)))
		}
		seen[s.ID] = true

		if !s.HasCapability("list_resources") {
			collection.Add(NewConfigurationError("", s.ID, "server", "servers", "validation",
				fmt.Sprintf("server %q must declare the list_resources capability", s.ID)))
		}

		if err := validateTransportConfig(s); err != nil {
			collection.Add(NewConfigurationError("", s.ID, "server", "servers", "validation", err.Error()))
		}
	}

	if collection.HasErrors() {
		return *collection
	}
	return nil
}

func validateTransportConfig(s ServerDescriptor) error {
	tc := s.TransportConfig
	switch s.Transport {
	case TransportSSE, TransportHTTP:
		if tc.Endpoint == "" {
			return fmt.Errorf("transport %q requires transport_config.endpoint", s.Transport)
		}
	case TransportStdio:
		if tc.Command == "" {
			return fmt.Errorf("transport %q requires transport_config.command", s.Transport)
		}
	default:
		return fmt.Errorf("unsupported transport %q", s.Transport)
	}
	return nil
}
