package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"katsuo-market/internal/model"
)

// ErrNoJSON is returned when the model output carries no JSON array.
var ErrNoJSON = errors.New("no JSON array in model output")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenAIGenerator generates text with Google's Gemini API.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

// NewGenAIGenerator creates a Gemini-backed generator.
func NewGenAIGenerator(ctx context.Context, apiKey, model string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIGenerator{client: client, model: model}, nil
}

func (g *GenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return result.Text(), nil
}

// Summarizer turns feed entries into news items.
type Summarizer struct {
	gen Generator
	now func() time.Time
}

func NewSummarizer(gen Generator) *Summarizer {
	return &Summarizer{gen: gen, now: time.Now}
}

// Summarize asks the model to pick and summarize the entries relevant to the
// skipjack market. Items the model returns without a title or URL are
// dropped; a missing date becomes today.
func (s *Summarizer) Summarize(ctx context.Context, entries []FeedEntry) ([]model.NewsItem, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	text, err := s.gen.Generate(ctx, BuildPrompt(entries))
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var items []model.NewsItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}

	today := s.now().Format(model.DateLayout)
	out := items[:0]
	for _, it := range items {
		if strings.TrimSpace(it.Title) == "" || strings.TrimSpace(it.URL) == "" {
			continue
		}
		if _, err := model.ParseDate(it.Date); err != nil {
			it.Date = today
		}
		out = append(out, it)
	}
	return out, nil
}

// BuildPrompt renders the selection-and-summary instruction for entries.
func BuildPrompt(entries []FeedEntry) string {
	var sb strings.Builder
	sb.WriteString(`あなたは水産業界のアナリストです。
次のニュース一覧から、カツオ・漁業・水産市場・燃油価格・物流・消費動向に関係する重要なものを3〜5件選び、
以下の形式のJSON配列だけを出力してください。

[{"id": "一意のID", "date": "YYYY-MM-DD", "title": "短いタイトル", "source": "配信元",
  "url": "記事のURL", "category": "漁況|燃油|規制|市場", "summary": "カツオ相場への影響を含む100字程度の要約"}]

ニュース一覧:
`)
	for _, e := range entries {
		fmt.Fprintf(&sb, "- Title: %s, Link: %s", e.Title, e.Link)
		if e.Published != "" {
			fmt.Fprintf(&sb, ", Published: %s", e.Published)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ExtractJSON returns the JSON array in model output: the body of a
// ```json fence if present, otherwise the span from the first '[' to the
// last ']'.
func ExtractJSON(text string) (string, error) {
	if _, after, ok := strings.Cut(text, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body), nil
	}
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}
