package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const DefaultOllamaEndpoint = "http://localhost:11434/api/generate"

// OllamaClient talks to a local Ollama server.
type OllamaClient struct {
	Endpoint string
	Model    string
	Timeout  time.Duration

	http *http.Client
}

func NewOllama(endpoint, model string, timeout time.Duration) *OllamaClient {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultOllamaEndpoint
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OllamaClient{
		Endpoint: endpoint,
		Model:    model,
		Timeout:  timeout,
		http:     &http.Client{Timeout: timeout},
	}
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (c *OllamaClient) Name() string { return "ollama" }

func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	data, err := json.Marshal(ollamaRequest{
		Model:   c.Model,
		Prompt:  prompt,
		System:  SystemPrompt,
		Stream:  false,
		Options: map[string]any{"temperature": 0.1},
	})
	if err != nil {
		return "", fmt.Errorf("encode ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %s", resp.Status)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return strings.TrimSpace(out.Response), nil
}

// Availability lists local models: the configured model present means ready,
// a reachable server without it means the model still has to be pulled.
func (c *OllamaClient) Availability(ctx context.Context) Availability {
	tagsURL := strings.Replace(c.Endpoint, "/api/generate", "/api/tags", 1)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tagsURL, nil)
	if err != nil {
		return Unavailable
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Unavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Unavailable
	}

	var tags struct {
		Models []struct {
			Name  string `json:"name"`
			Model string `json:"model"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return Unavailable
	}
	want := strings.ToLower(strings.TrimSpace(c.Model))
	for _, m := range tags.Models {
		for _, name := range []string{m.Name, m.Model} {
			n := strings.ToLower(name)
			if n == want || strings.TrimSuffix(n, ":latest") == want {
				return Readily
			}
		}
	}
	return AfterDownload
}
