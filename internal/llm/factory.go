package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const SystemPrompt = "You are an email classifier. Analyze emails and classify them as: " +
	"OA_INVITE (online assessment/coding test invitation), REJECTION, STATUS_UPDATE, or OTHER. " +
	"When asked for a summary, answer with one short sentence."

// NewProviderFromConfig builds the configured provider. "none" (or empty)
// returns a nil provider, which keeps the engine on keyword heuristics.
func NewProviderFromConfig(ctx context.Context, provider, endpoint, model, region string, timeout time.Duration) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "none":
		return nil, nil
	case "ollama":
		if strings.TrimSpace(model) == "" {
			return nil, fmt.Errorf("ollama model is required")
		}
		return NewOllama(endpoint, model, timeout), nil
	case "bedrock":
		b, err := NewBedrock(ctx, region, model, timeout)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", provider)
	}
}
