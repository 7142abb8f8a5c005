package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// MerchantTag is the model's verdict for one merchant string.
type MerchantTag struct {
	Merchant       string `json:"merchant"`
	NormalizedName string `json:"normalized_name"`
	Category       string `json:"category"`
	IsRecurring    bool   `json:"is_recurring"`
}

// Tagger normalizes merchant names and assigns categories.
type Tagger interface {
	Tag(ctx context.Context, merchants []string) ([]MerchantTag, error)
}

// GeminiTagger calls the Gemini API through google.golang.org/genai.
type GeminiTagger struct {
	client *genai.Client
	model  string
}

// NewGeminiTagger creates a client from the environment (GOOGLE_API_KEY or
// Vertex AI settings).
func NewGeminiTagger(ctx context.Context, model string) (*GeminiTagger, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiTagger: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiTagger{client: client, model: model}, nil
}

// Tag implements Tagger.
func (g *GeminiTagger) Tag(ctx context.Context, merchants []string) ([]MerchantTag, error) {
	if len(merchants) == 0 {
		return nil, nil
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildPrompt(merchants)}},
		},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("Tag: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("Tag: empty response from model")
	}
	return parseTags(rawText)
}

func buildPrompt(merchants []string) string {
	var b strings.Builder
	b.WriteString("You normalize merchant names from US bank transactions.\n\n")
	b.WriteString("For each merchant string below return an object with:\n")
	b.WriteString("- \"merchant\": the input string, unchanged\n")
	b.WriteString("- \"normalized_name\": the clean brand name (e.g. \"SQ *BLUE BOTTLE 0123\" -> \"Blue Bottle Coffee\")\n")
	b.WriteString("- \"category\": exactly one of: " + strings.Join(Categories, ", ") + "\n")
	b.WriteString("- \"is_recurring\": true for subscriptions and bills that repeat on a schedule\n\n")
	b.WriteString("Merchants:\n")
	for _, m := range merchants {
		b.WriteString("- " + m + "\n")
	}
	b.WriteString("\nReturn ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n")
	return b.String()
}

// parseTags decodes the model output and canonicalizes categories.
func parseTags(raw string) ([]MerchantTag, error) {
	var tags []MerchantTag
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &tags); err != nil {
		return nil, fmt.Errorf("parseTags: unmarshal JSON: %w\nraw response: %s", err, raw)
	}

	out := tags[:0]
	for _, t := range tags {
		t.Merchant = strings.TrimSpace(t.Merchant)
		if t.Merchant == "" {
			continue
		}
		t.NormalizedName = strings.TrimSpace(t.NormalizedName)
		if t.NormalizedName == "" {
			t.NormalizedName = t.Merchant
		}
		t.Category = NormalizeCategory(t.Category)
		out = append(out, t)
	}
	return out, nil
}

// cleanModelJSON strips Markdown fences and text around a JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
