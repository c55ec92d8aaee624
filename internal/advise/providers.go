package advise

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/generative-ai-go/genai"
	openai "github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	googleoption "google.golang.org/api/option"
)

// advisorKeyEnv overrides the vendor key variable for whichever provider is
// selected.
const advisorKeyEnv = "SYNTHCHECK_ADVISOR_API_KEY"

// ErrTruncated reports that the model stopped at the token limit. The
// recommendation list would not parse, so the call fails early.
var ErrTruncated = errors.New("advise: response truncated at max tokens")

// apiKey returns the advisor key, falling back to the vendor variable.
func apiKey(vendorEnv string) (string, error) {
	if k := os.Getenv(advisorKeyEnv); k != "" {
		return k, nil
	}
	if k := os.Getenv(vendorEnv); k != "" {
		return k, nil
	}
	return "", fmt.Errorf("advise: neither %s nor %s is set", advisorKeyEnv, vendorEnv)
}

// joinText concatenates non-empty text parts.
func joinText(vendor string, parts []string) (string, error) {
	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return "", fmt.Errorf("advise: %s: response contained no text", vendor)
	}
	return text, nil
}

type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(model string) (Provider, error) {
	key, err := apiKey("ANTHROPIC_API_KEY")
	if err != nil {
		return nil, err
	}
	return &anthropicProvider{
		client: anthropic.NewClient(anthropicoption.WithAPIKey(key)),
		model:  model,
	}, nil
}

func (p *anthropicProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("advise: anthropic: %w", err)
	}
	if string(msg.StopReason) == "max_tokens" {
		return "", ErrTruncated
	}
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return joinText("anthropic", parts)
}

type openaiProvider struct {
	client openai.Client
	model  string
}

func newOpenAIProvider(model string) (Provider, error) {
	key, err := apiKey("OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	return &openaiProvider{
		client: openai.NewClient(openaioption.WithAPIKey(key)),
		model:  model,
	}, nil
}

func (p *openaiProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("advise: openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("advise: openai: response contained no choices")
	}
	choice := resp.Choices[0]
	if string(choice.FinishReason) == "length" {
		return "", ErrTruncated
	}
	return joinText("openai", []string{choice.Message.Content})
}

// googleProvider opens a client per call so the caller's context governs
// its lifetime.
type googleProvider struct {
	apiKey string
	model  string
}

func newGoogleProvider(model string) (Provider, error) {
	key, err := apiKey("GOOGLE_API_KEY")
	if err != nil {
		return nil, err
	}
	return &googleProvider{apiKey: key, model: model}, nil
}

func (p *googleProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	client, err := genai.NewClient(ctx, googleoption.WithAPIKey(p.apiKey))
	if err != nil {
		return "", fmt.Errorf("advise: google: client: %w", err)
	}
	defer client.Close()

	m := client.GenerativeModel(p.model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	m.SetMaxOutputTokens(int32(maxTokens))
	m.SetTemperature(float32(temperature))
	m.ResponseMIMEType = "application/json"

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("advise: google: %w", err)
	}
	var parts []string
	for _, cand := range resp.Candidates {
		if cand.FinishReason == genai.FinishReasonMaxTokens {
			return "", ErrTruncated
		}
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				parts = append(parts, string(t))
			}
		}
	}
	return joinText("google", parts)
}
