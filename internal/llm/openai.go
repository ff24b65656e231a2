package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

const openaiDefaultModel = "gpt-4o"

// OpenAIProvider implements Provider using the OpenAI Responses API.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAI creates an OpenAI provider using the OPENAI_API_KEY env var.
func NewOpenAI(opts ...option.RequestOption) (*OpenAIProvider, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		opts = append([]option.RequestOption{option.WithBaseURL(base)}, opts...)
	}
	return newOpenAI(append([]option.RequestOption{option.WithAPIKey(key)}, opts...)...), nil
}

func newOpenAI(opts ...option.RequestOption) *OpenAIProvider {
	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client}
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) Generate(ctx context.Context, prompt string, s Settings) (string, error) {
	model := s.Model
	if model == "" {
		model = openaiDefaultModel
	}

	maxTokens := s.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	resp, err := o.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:           shared.ResponsesModel(model),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(prompt)},
		MaxOutputTokens: openai.Int(int64(maxTokens)),
		Temperature:     openai.Float(s.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}

	text := resp.OutputText()
	if text == "" {
		return "", fmt.Errorf("openai: no text output in response")
	}
	return text, nil
}
