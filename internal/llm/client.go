// Package llm declares the text-generation collaborator the prompt/response
// pipeline is built against. The orchestrator and recovery engine depend on
// the Client interface only, never on a concrete provider, so they can be
// exercised in tests with an in-memory stub (spec.md §6 "injected LLM
// client").
package llm

import "context"

// Client generates a single completion for a fully-built prompt. It is the
// only seam between the deterministic prompt/response pipeline and a real
// model provider.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
