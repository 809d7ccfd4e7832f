package opinion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider asks a Gemini model for a JSON opinion.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGemini opens a client; call Close when done.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiProvider{client: cl, model: model}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Complete(ctx context.Context, system, user string) ([]byte, error) {
	m := p.client.GenerativeModel(p.model)
	var temp float32
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}

	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	txt := firstText(resp)
	if txt == "" {
		return nil, errors.New("gemini returned no content")
	}
	return []byte(txt), nil
}

// Close releases the underlying client.
func (p *GeminiProvider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}
