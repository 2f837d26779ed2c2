package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockClient implements Provider for Anthropic models on Amazon Bedrock.
type BedrockClient struct {
	Region  string
	Model   string
	Timeout time.Duration

	svc *bedrockruntime.Client
}

// NewBedrock initializes a Bedrock client using the default AWS config chain.
func NewBedrock(ctx context.Context, region, model string, timeout time.Duration) (*BedrockClient, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("bedrock model is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	lctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var opts []func(*awsconfig.LoadOptions) error
	if strings.TrimSpace(region) != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(lctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("AWS region not resolved; set ai.region or AWS_REGION")
	}
	return &BedrockClient{
		Region:  cfg.Region,
		Model:   model,
		Timeout: timeout,
		svc:     bedrockruntime.NewFromConfig(cfg),
	}, nil
}

func (b *BedrockClient) Name() string { return "bedrock" }

func (b *BedrockClient) Generate(ctx context.Context, prompt string) (string, error) {
	if !strings.Contains(strings.ToLower(b.Model), "anthropic.") {
		return "", fmt.Errorf("unsupported Bedrock model family for %q", b.Model)
	}
	body, err := json.Marshal(map[string]any{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        256,
		"temperature":       0.1,
		"system":            SystemPrompt,
		"messages": []any{
			map[string]any{
				"role":    "user",
				"content": []any{map[string]any{"type": "text", "text": prompt}},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode bedrock request: %w", err)
	}

	ictx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()
	out, err := b.svc.InvokeModel(ictx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.Model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke: %w", err)
	}

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("decode bedrock response: %w", err)
	}
	for _, c := range resp.Content {
		if c.Type == "text" && strings.TrimSpace(c.Text) != "" {
			return strings.TrimSpace(c.Text), nil
		}
	}
	return "", fmt.Errorf("empty response from bedrock")
}
