package extractor

import (
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/DjEugeny/contact-parser-sub001/pkg/anthropic"
	"github.com/DjEugeny/contact-parser-sub001/pkg/groq"
	"github.com/DjEugeny/contact-parser-sub001/pkg/openrouter"
)

// completionMaxTokens bounds the size of a structured extraction reply.
const completionMaxTokens = 2048

// BuildClient constructs the ChatClient for a provider config. The API key
// is read from the environment variable the config names.
func BuildClient(cfg ProviderConfig) (ChatClient, error) {
	if cfg.APIKeyEnv == "" {
		return nil, eris.Errorf("provider %s: api_key_env not set", cfg.ID)
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, eris.Errorf("provider %s: environment variable %s is empty", cfg.ID, cfg.APIKeyEnv)
	}

	switch cfg.Type {
	case "openrouter":
		opts := []openrouter.Option{openrouter.WithModel(cfg.Model)}
		if cfg.Endpoint != "" {
			opts = append(opts, openrouter.WithBaseURL(cfg.Endpoint))
		}
		return &openrouterChat{client: openrouter.NewClient(key, opts...), model: cfg.Model}, nil

	case "groq":
		opts := []groq.Option{groq.WithModel(cfg.Model)}
		if cfg.Endpoint != "" {
			opts = append(opts, groq.WithBaseURL(cfg.Endpoint))
		}
		return &groqChat{client: groq.NewClient(key, opts...), model: cfg.Model}, nil

	case "anthropic":
		return &anthropicChat{client: anthropic.NewClient(key), model: cfg.Model}, nil

	default:
		return nil, eris.Errorf("provider %s: unknown type %q (supported: openrouter, groq, anthropic)", cfg.ID, cfg.Type)
	}
}

type openrouterChat struct {
	client openrouter.Client
	model  string
}

func (c *openrouterChat) Complete(ctx context.Context, system, user string) (string, error) {
	maxTokens := completionMaxTokens
	resp, err := c.client.ChatCompletion(ctx, openrouter.ChatCompletionRequest{
		Model: c.model,
		Messages: []openrouter.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", eris.New("openrouter: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

type groqChat struct {
	client groq.Client
	model  string
}

func (c *groqChat) Complete(ctx context.Context, system, user string) (string, error) {
	maxTokens := completionMaxTokens
	resp, err := c.client.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Model: c.model,
		Messages: []groq.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", eris.New("groq: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

type anthropicChat struct {
	client anthropic.Client
	model  string
}

func (c *anthropicChat) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: completionMaxTokens,
		System:    system,
		Messages:  []anthropic.Message{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
