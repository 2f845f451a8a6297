// Package narrative generates the grant-application interpretation of
// an analysis run. The AI path is optional: with no API key configured,
// or on any generation failure, the deterministic summary text is the
// narrative and the result is tagged summary-fallback.
package narrative

import (
	"context"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// Source tags where the narrative text came from.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "summary-fallback"
)

// Result is the generated narrative.
type Result struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
}

// Client is the message-generation surface the generator needs,
// abstracted for testing.
type Client interface {
	CreateMessage(ctx context.Context, system, prompt string) (string, error)
}

const systemPrompt = "You are a transportation planning analyst writing grant-ready corridor narratives for U.S. public funding applications."

// Generator produces grant narratives from analysis output.
type Generator struct {
	client Client
	model  string
}

// NewGenerator creates a narrative generator. With an empty API key the
// generator always falls back to the summary text.
func NewGenerator(apiKey, model string) *Generator {
	g := &Generator{model: model}
	if apiKey != "" {
		g.client = &sdkClient{
			client: sdk.NewClient(option.WithAPIKey(apiKey)),
			model:  model,
		}
	}
	return g
}

// NewGeneratorWithClient creates a generator over an explicit client.
func NewGeneratorWithClient(client Client) *Generator {
	return &Generator{client: client}
}

// Generate writes the 2-3 paragraph grant interpretation. metrics must
// be JSON-marshalable; it is embedded verbatim into the prompt so the
// model grounds its recommendations in the computed numbers.
func (g *Generator) Generate(ctx context.Context, metrics any, summaryText string) Result {
	fallback := Result{Text: summaryText, Source: SourceFallback}
	if g.client == nil {
		return fallback
	}

	metricsJSON, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		zap.L().Warn("narrative: marshal metrics for prompt", zap.Error(err))
		return fallback
	}

	prompt := strings.Join([]string{
		"Write exactly 2-3 concise paragraphs in natural language for a grant application narrative.",
		"Use the summary and metrics to interpret corridor need and opportunity.",
		"Include specific corridor recommendations (project types, sequencing, and why they match the data).",
		"Avoid markdown bullets and headings. Keep tone professional and evidence-based.",
		"",
		"CORRIDOR SUMMARY:",
		summaryText,
		"",
		"METRICS JSON:",
		string(metricsJSON),
	}, "\n")

	text, err := g.client.CreateMessage(ctx, systemPrompt, prompt)
	if err != nil {
		zap.L().Warn("narrative: generation failed, using summary fallback", zap.Error(err))
		return fallback
	}

	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return fallback
	}
	return Result{Text: cleaned, Source: SourceAI}
}

// sdkClient implements Client on the official anthropic-sdk-go.
type sdkClient struct {
	client sdk.Client
	model  string
}

func (c *sdkClient) CreateMessage(ctx context.Context, system, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   500,
		Temperature: sdk.Float(0.2),
		System:      []sdk.TextBlockParam{{Text: system}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
