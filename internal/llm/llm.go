package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lucasnoah/codeflow/internal/config"
)

// Message is one chat turn sent to a provider.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Request is a normalized completion request. Provider and Model may be left
// empty; Client.NewRequest fills in the configured defaults.
type Request struct {
	Messages    []Message `json:"messages"`
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	Temperature float32   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Usage reports token counts when the provider returns them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Response is a normalized completion response.
type Response struct {
	Content  string `json:"content"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Usage    Usage  `json:"usage"`
}

// Provider is one LLM backend.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Client normalizes all configured providers behind a single Complete call.
// Provider failures never propagate: callers get nil and decide whether to
// fall back to the next model in their sequence.
type Client struct {
	providers       map[string]Provider
	defaultModels   map[string]string
	defaultProvider string
	timeout         time.Duration
	logger          *slog.Logger
}

// NewClient creates an empty client; register providers before use.
func NewClient(defaultProvider string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		providers:       make(map[string]Provider),
		defaultModels:   make(map[string]string),
		defaultProvider: defaultProvider,
		timeout:         timeout,
		logger:          logger,
	}
}

// Register adds a provider under a name with its default model.
func (c *Client) Register(name string, p Provider, defaultModel string) {
	c.providers[name] = p
	c.defaultModels[name] = defaultModel
}

// HasProvider reports whether a provider is registered under name.
func (c *Client) HasProvider(name string) bool {
	_, ok := c.providers[name]
	return ok
}

// NewRequest builds a normalized request, defaulting provider and model from
// the client configuration when unset.
func (c *Client) NewRequest(messages []Message, provider, model string, temperature float32, maxTokens int) Request {
	if provider == "" {
		provider = c.defaultProvider
	}
	if model == "" {
		model = c.defaultModels[provider]
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return Request{
		Messages:    messages,
		Provider:    provider,
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// Complete sends the request to its provider with the client's timeout
// applied. Any failure — unknown provider, network error, provider error —
// is logged and reported as nil so calling strategies treat all failures
// uniformly and move on to their next fallback.
func (c *Client) Complete(ctx context.Context, req Request) *Response {
	p, ok := c.providers[req.Provider]
	if !ok {
		c.logger.Warn("completion requested for unknown provider", "provider", req.Provider)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := p.Complete(ctx, req)
	if err != nil {
		c.logger.Warn("completion failed", "provider", req.Provider, "model", req.Model, "error", err)
		return nil
	}
	if resp == nil || resp.Content == "" {
		c.logger.Warn("completion returned empty content", "provider", req.Provider, "model", req.Model)
		return nil
	}
	resp.Provider = req.Provider
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return resp
}

// FromConfig builds a Client with every usable configured provider
// registered. Providers that require an API key which isn't present in the
// environment are skipped with a warning rather than failing the whole
// client.
func FromConfig(cfg config.LLM, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := NewClient(cfg.DefaultProvider, config.ParseDuration(cfg.Timeout, 2*time.Minute), logger)

	for name, pc := range cfg.Providers {
		apiKey := ""
		if pc.APIKeyEnv != "" {
			apiKey = os.Getenv(pc.APIKeyEnv)
		}
		switch name {
		case "openai":
			if apiKey == "" {
				logger.Warn("skipping provider: API key not set", "provider", name, "env", pc.APIKeyEnv)
				continue
			}
			c.Register(name, NewOpenAIProvider(apiKey, pc.BaseURL, pc.Model), pc.Model)
		case "anthropic":
			if apiKey == "" {
				logger.Warn("skipping provider: API key not set", "provider", name, "env", pc.APIKeyEnv)
				continue
			}
			c.Register(name, NewAnthropicProvider(apiKey, pc.BaseURL, pc.Model), pc.Model)
		case "ollama":
			c.Register(name, NewOllamaProvider(pc.BaseURL, pc.Model), pc.Model)
		default:
			// Unknown names get an OpenAI-compatible client when a base
			// URL is configured; most local gateways speak that dialect.
			if pc.BaseURL == "" {
				logger.Warn("skipping provider: unknown type without base_url", "provider", name)
				continue
			}
			c.Register(name, NewOpenAIProvider(apiKey, pc.BaseURL, pc.Model), pc.Model)
		}
	}

	if len(c.providers) == 0 {
		return nil, fmt.Errorf("no usable LLM providers configured")
	}
	return c, nil
}
