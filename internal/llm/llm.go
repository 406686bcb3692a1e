package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/sprintplan/internal/models"
)

// ExtractedFeature holds a single backlog feature extracted from markdown content.
type ExtractedFeature struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Complexity  string `json:"complexity"`
}

// Client wraps the Anthropic API for backlog extraction.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildPrompt constructs the system and user prompts for feature extraction.
func buildPrompt(content string, existing []string) (system string, user string) {
	system = `You extract product backlog features from markdown content. Return ONLY a JSON array of objects with these fields:
- "title": concise feature title
- "description": one or two sentences on what the feature delivers (can be empty string if the title is self-explanatory)
- "priority": one of "critical", "high", "medium", "low"
- "complexity": one of "simple", "moderate", "complex"

Rules:
- Each numbered/bulleted item that describes user-facing or technical capability is one feature
- Use "critical" only when the text says the item blocks a release or is urgent
- Default priority to "medium" and complexity to "moderate" unless context suggests otherwise
- "simple" is a small change to one screen or endpoint; "complex" spans several systems or needs new infrastructure
- Skip items whose title matches one of the existing features
- Never create placeholder features like "none" or "N/A"
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	if len(existing) > 0 {
		sb.WriteString("Existing features: ")
		sb.WriteString(strings.Join(existing, ", "))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Extract features from this markdown:\n\n")
	sb.WriteString(content)
	user = sb.String()
	return
}

// stripFence removes a surrounding markdown code fence, if any.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// parseFeatures decodes the model's reply and normalizes enum fields.
func parseFeatures(text string) ([]ExtractedFeature, error) {
	text = stripFence(text)

	var features []ExtractedFeature
	if err := json.Unmarshal([]byte(text), &features); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}

	out := features[:0]
	for _, f := range features {
		f.Title = strings.TrimSpace(f.Title)
		if f.Title == "" {
			continue
		}
		f.Priority = normalizePriority(f.Priority)
		f.Complexity = normalizeComplexity(f.Complexity)
		out = append(out, f)
	}
	return out, nil
}

func normalizePriority(p string) string {
	v := models.Priority(strings.ToLower(strings.TrimSpace(p)))
	if !v.Valid() {
		return string(models.PriorityMedium)
	}
	return string(v)
}

func normalizeComplexity(c string) string {
	v := models.Complexity(strings.ToLower(strings.TrimSpace(c)))
	if !v.Valid() {
		return string(models.ComplexityModerate)
	}
	return string(v)
}

// ExtractFeatures sends markdown content to the LLM and returns structured features.
// Titles in existing are passed along so the model can skip duplicates.
func (c *Client) ExtractFeatures(ctx context.Context, content string, existing []string) ([]ExtractedFeature, error) {
	systemPrompt, userPrompt := buildPrompt(content, existing)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return parseFeatures(text)
}
