package ai

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"

	"briefbot/config"
)

const defaultChatModel = "command-r-08-2024"

const chatPreamble = "You assist a newsletter editor with duplicate detection. Respond STRICTLY with valid JSON and nothing else."

// Cohere implements the engine's Completer interface on top of the Cohere
// Chat API.
type Cohere struct {
	client      *cohereclient.Client
	model       string
	temperature float64
}

// NewCohereFromEnv builds a Cohere client when COHERE_API_KEY is set, or
// returns nil (semantic stage disabled) when it is not.
func NewCohereFromEnv() *Cohere {
	apiKey := config.GetEnvOrDefault("COHERE_API_KEY", "")
	if apiKey == "" {
		return nil
	}

	// Force HTTP/1.1 to avoid HTTP/2 protocol errors against the Cohere
	// endpoint.
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}

	return &Cohere{
		client: cohereclient.NewClient(
			cohereclient.WithToken(apiKey),
			cohereclient.WithHTTPClient(httpClient),
		),
		model:       config.GetEnvOrDefault("COHERE_MODEL", defaultChatModel),
		temperature: config.GetEnvFloatOrDefault("COHERE_TEMPERATURE", 0.2),
	}
}

// Complete sends one prompt and returns the raw model text. The caller owns
// parsing and validation.
func (c *Cohere) Complete(ctx context.Context, prompt string) (string, error) {
	preamble := chatPreamble
	temperature := c.temperature

	resp, err := c.client.Chat(ctx, &cohere.ChatRequest{
		Message:     prompt,
		Model:       &c.model,
		Preamble:    &preamble,
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("cohere chat error: %w", err)
	}
	if resp == nil || resp.Text == "" {
		return "", errors.New("cohere chat returned empty response")
	}
	return resp.Text, nil
}
