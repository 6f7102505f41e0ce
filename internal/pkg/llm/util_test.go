package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/bug_triage_server/config"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `{"bugs": []}`, `{"bugs": []}`},
		{"json fence", "```json\n{\"bugs\": []}\n```", `{"bugs": []}`},
		{"bare fence", "```\n[[\"a.py\"]]\n```", `[["a.py"]]`},
		{"language id", "```javascript\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence without newline", "```{\"a\": 1}```", `{"a": 1}`},
		{"surrounding whitespace", "  \n{\"a\": 1}\n ", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSONBlock(tt.input))
		})
	}
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), &config.LLMConfig{Provider: "nope"})
	assert.Error(t, err)
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), &config.LLMConfig{Provider: ProviderGemini})
	assert.Error(t, err)
}

func TestMockClients(t *testing.T) {
	ctx := context.Background()

	static := NewStaticClient(`{"ok": true}`)
	out, err := static.Generate(ctx, "sys", "p1")
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, out)
	assert.Equal(t, []string{"p1"}, static.Prompts())

	boom := errors.New("boom")
	_, err = NewFailingClient(boom).Generate(ctx, "", "")
	assert.ErrorIs(t, err, boom)

	tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = NewTimeoutClient().Generate(tctx, "", "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
