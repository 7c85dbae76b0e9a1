package gemini

import (
	"context"
	"fmt"

	"fittrack-be/pkg/llm"

	"google.golang.org/genai"
)

type GeminiProvider struct {
	client    *genai.Client
	ModelName string
}

var _ llm.LLMProvider = &GeminiProvider{}

func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiProvider{
		client:    client,
		ModelName: modelName,
	}, nil
}

func (g *GeminiProvider) build(history []llm.Message, opts []llm.Option) (string, []*genai.Content, *genai.GenerateContentConfig) {
	options := &llm.Options{
		Temperature: 0.7,
	}
	for _, opt := range opts {
		opt(options)
	}

	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		var role genai.Role = genai.RoleUser
		if msg.Role == llm.RoleAssistant || msg.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(options.Temperature)),
	}
	if options.MaxTokens > 0 {
		config.MaxOutputTokens = int32(options.MaxTokens)
	}
	if options.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(options.SystemInstruction, genai.RoleUser)
	}

	model := g.ModelName
	if options.Model != "" {
		model = options.Model
	}

	return model, contents, config
}

func (g *GeminiProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	model, contents, config := g.build(history, opts)

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}

func (g *GeminiProvider) ChatStream(ctx context.Context, history []llm.Message, opts ...llm.Option) (<-chan llm.StreamChunk, error) {
	model, contents, config := g.build(history, opts)

	chunks := make(chan llm.StreamChunk)
	go func() {
		defer close(chunks)

		finishReason := "stop"
		for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, config) {
			if err != nil {
				chunks <- llm.StreamChunk{Err: fmt.Errorf("gemini stream failed: %w", err)}
				return
			}

			if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
				finishReason = string(resp.Candidates[0].FinishReason)
			}

			text := resp.Text()
			if text == "" {
				continue
			}

			select {
			case chunks <- llm.StreamChunk{Text: text}:
			case <-ctx.Done():
				chunks <- llm.StreamChunk{Err: ctx.Err()}
				return
			}
		}

		chunks <- llm.StreamChunk{Done: true, FinishReason: finishReason}
	}()

	return chunks, nil
}
