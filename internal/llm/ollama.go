package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	ollamaDefaultURL   = "http://127.0.0.1:11434"
	ollamaDefaultModel = "llama3.1:8b"
)

// OllamaProvider implements Provider against a local Ollama server.
type OllamaProvider struct {
	serverURL string
	model     string
}

// NewOllama creates an Ollama provider. Empty arguments fall back to
// OLLAMA_BASE_URL / OLLAMA_MODEL and then to the local defaults.
func NewOllama(serverURL, model string) *OllamaProvider {
	if serverURL == "" {
		serverURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if serverURL == "" {
		serverURL = ollamaDefaultURL
	}
	if model == "" {
		model = os.Getenv("OLLAMA_MODEL")
	}
	if model == "" {
		model = ollamaDefaultModel
	}
	return &OllamaProvider{serverURL: serverURL, model: model}
}

func (o *OllamaProvider) Name() string { return "ollama" }

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, s Settings) (string, error) {
	model := s.Model
	if model == "" {
		model = o.model
	}

	client, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(o.serverURL))
	if err != nil {
		return "", fmt.Errorf("ollama: create client: %w", err)
	}

	opts := []llms.CallOption{llms.WithTemperature(s.Temperature)}
	if s.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(s.MaxTokens))
	}
	text, err := llms.GenerateFromSinglePrompt(ctx, client, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("ollama: request failed: %w", err)
	}
	return text, nil
}
