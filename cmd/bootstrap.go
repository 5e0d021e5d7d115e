package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"sqlgateway/internal/config"
	"sqlgateway/internal/llm"
	"sqlgateway/internal/orchestrator"
	"sqlgateway/internal/registry"
	"sqlgateway/internal/resourcecache"

	"github.com/anthropics/anthropic-sdk-go"
)

const defaultAnthropicModel = "claude-sonnet-4-5"

// buildGateway loads the configuration at path and wires a Gateway from it.
// Callers own Shutdown.
func buildGateway(ctx context.Context, path string) (*orchestrator.Gateway, config.GatewayConfig, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, config.GatewayConfig{}, err
	}

	reg := registry.New()
	if err := reg.Start(ctx, cfg.Servers); err != nil {
		return nil, cfg, err
	}

	ttl := time.Duration(cfg.Orchestration.ResourceCacheTTLSeconds) * time.Second
	cache := resourcecache.New(reg, ttl)
	if cfg.Orchestration.RefreshIntervalSeconds > 0 {
		cache.StartBackgroundRefresher(ctx, time.Duration(cfg.Orchestration.RefreshIntervalSeconds)*time.Second)
	}

	llmClient, err := buildLLMClient()
	if err != nil {
		reg.Shutdown()
		return nil, cfg, err
	}

	gw := orchestrator.New(reg, cache, llmClient, cfg.Orchestration)
	return gw, cfg, nil
}

func buildLLMClient() (llm.Client, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	model := os.Getenv("SQLGATEWAY_ANTHROPIC_MODEL")
	if model == "" {
		model = defaultAnthropicModel
	}
	return llm.NewAnthropicClient(apiKey, anthropic.Model(model), 1024), nil
}
