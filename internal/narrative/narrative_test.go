package narrative

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubClient struct {
	system string
	prompt string
	text   string
	err    error
}

func (s *stubClient) CreateMessage(ctx context.Context, system, prompt string) (string, error) {
	s.system = system
	s.prompt = prompt
	return s.text, s.err
}

func TestGenerate_NoClientFallsBack(t *testing.T) {
	g := NewGenerator("", "claude-3-5-haiku-latest")
	got := g.Generate(context.Background(), map[string]int{"overallScore": 70}, "summary text")

	assert.Equal(t, SourceFallback, got.Source)
	assert.Equal(t, "summary text", got.Text)
}

func TestGenerate_AIPath(t *testing.T) {
	stub := &stubClient{text: "  The corridor shows strong need.  "}
	g := NewGeneratorWithClient(stub)

	got := g.Generate(context.Background(), map[string]int{"overallScore": 70}, "summary text")

	assert.Equal(t, SourceAI, got.Source)
	assert.Equal(t, "The corridor shows strong need.", got.Text)
	assert.Contains(t, stub.system, "transportation planning analyst")
	assert.Contains(t, stub.prompt, "CORRIDOR SUMMARY:")
	assert.Contains(t, stub.prompt, "summary text")
	assert.Contains(t, stub.prompt, "METRICS JSON:")
	assert.Contains(t, stub.prompt, `"overallScore": 70`)
}

func TestGenerate_APIErrorFallsBack(t *testing.T) {
	g := NewGeneratorWithClient(&stubClient{err: errors.New("overloaded")})
	got := g.Generate(context.Background(), map[string]int{}, "summary text")

	assert.Equal(t, SourceFallback, got.Source)
	assert.Equal(t, "summary text", got.Text)
}

func TestGenerate_EmptyResponseFallsBack(t *testing.T) {
	g := NewGeneratorWithClient(&stubClient{text: "   \n  "})
	got := g.Generate(context.Background(), map[string]int{}, "summary text")

	assert.Equal(t, SourceFallback, got.Source)
	assert.Equal(t, "summary text", got.Text)
}

func TestGenerate_UnmarshalableMetricsFallsBack(t *testing.T) {
	g := NewGeneratorWithClient(&stubClient{text: "never reached"})
	got := g.Generate(context.Background(), map[string]any{"bad": func() {}}, "summary text")

	assert.Equal(t, SourceFallback, got.Source)
}
