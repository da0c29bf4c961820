package ai

import (
	"context"
	"fmt"
)

// AnthropicConfig placeholder for anthropic integration configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// AnthropicTriager is a stub implementation that can be expanded once the SDK is available.
type AnthropicTriager struct{}

// NewAnthropicTriager constructs a new stub triager.
func NewAnthropicTriager(cfg AnthropicConfig) (*AnthropicTriager, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	return &AnthropicTriager{}, nil
}

// Triage is not yet implemented for Anthropic models.
func (a *AnthropicTriager) Triage(ctx context.Context, input TriageInput) (TriageResult, error) {
	return TriageResult{}, fmt.Errorf("anthropic triager not implemented")
}
