package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/StockAnalyzer/config"
	"github.com/dyike/StockAnalyzer/consts"
)

func conversation() []*schema.Message {
	return []*schema.Message{
		{Role: schema.User, Name: consts.TaskSource, Content: "Analyze stock AAPL with parameters {\"ticker\":\"AAPL\"}"},
		{Role: schema.Assistant, Name: consts.CodeGenerator, Content: "```python\nprint(1)\n```"},
		{Role: schema.Assistant, Name: consts.CodeExecutor, Content: "exit code 0, output: 1"},
	}
}

func TestAssistantReplyView(t *testing.T) {
	var seen []*schema.Message
	a, err := NewAssistant(context.Background(), AssistantConfig{
		Name:         consts.CodeGenerator,
		SystemPrompt: "You write code. Today is {current_date}.",
		Generate: func(_ context.Context, msgs []*schema.Message) (*schema.Message, error) {
			seen = msgs
			return schema.AssistantMessage("  fixed code  ", nil), nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, consts.CodeGenerator, a.Name())

	reply, err := a.Reply(context.Background(), conversation())
	require.NoError(t, err)
	assert.Equal(t, schema.Assistant, reply.Role)
	assert.Equal(t, consts.CodeGenerator, reply.Name)
	assert.Equal(t, "fixed code", reply.Content)

	require.Len(t, seen, 4)
	assert.Equal(t, schema.System, seen[0].Role)
	assert.NotContains(t, seen[0].Content, "{current_date}")

	assert.Equal(t, schema.User, seen[1].Role)
	assert.Equal(t, consts.TaskSource, seen[1].Name)
	assert.Contains(t, seen[1].Content, "{\"ticker\":\"AAPL\"}")

	assert.Equal(t, schema.Assistant, seen[2].Role)
	assert.Empty(t, seen[2].Name)

	assert.Equal(t, schema.User, seen[3].Role)
	assert.Equal(t, consts.CodeExecutor, seen[3].Name)
}

func TestAssistantReplyErrors(t *testing.T) {
	boom := errors.New("rate limited")
	a, err := NewAssistant(context.Background(), AssistantConfig{
		Name:         consts.ReportAgent,
		SystemPrompt: "report",
		Generate: func(context.Context, []*schema.Message) (*schema.Message, error) {
			return nil, boom
		},
	})
	require.NoError(t, err)

	_, err = a.Reply(context.Background(), conversation())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), consts.ReportAgent)

	a, err = NewAssistant(context.Background(), AssistantConfig{
		Name:         consts.ReportAgent,
		SystemPrompt: "report",
		Generate: func(context.Context, []*schema.Message) (*schema.Message, error) {
			return nil, nil
		},
	})
	require.NoError(t, err)
	_, err = a.Reply(context.Background(), conversation())
	assert.ErrorContains(t, err, "empty reply")
}

func TestNewAssistantValidation(t *testing.T) {
	_, err := NewAssistant(context.Background(), AssistantConfig{SystemPrompt: "x"})
	assert.Error(t, err)

	_, err = NewAssistant(context.Background(), AssistantConfig{Name: "n", SystemPrompt: "x"})
	assert.ErrorContains(t, err, "chat model is required")
}

func TestPromptsFormat(t *testing.T) {
	vars := map[string]any{"termination_hint": "End the report with TERMINATE."}
	for _, name := range []string{"code_generator", "code_executor", "report_agent"} {
		t.Run(name, func(t *testing.T) {
			text, err := LoadPrompt(name)
			require.NoError(t, err)

			var seen []*schema.Message
			a, err := NewAssistant(context.Background(), AssistantConfig{
				Name:         name,
				SystemPrompt: text,
				Vars:         vars,
				Generate: func(_ context.Context, msgs []*schema.Message) (*schema.Message, error) {
					seen = msgs
					return schema.AssistantMessage("ok", nil), nil
				},
			})
			require.NoError(t, err)
			_, err = a.Reply(context.Background(), conversation())
			require.NoError(t, err)
			assert.False(t, strings.Contains(seen[0].Content, "{"), "unformatted placeholder in %s", name)
		})
	}

	_, err := LoadPrompt("missing")
	assert.Error(t, err)
}

func TestNewChatModelRequiresKey(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.OpenAIAPIKey = ""
	_, err := NewChatModel(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	cfg.OpenAIAPIKey = "sk-test"
	cm, err := NewChatModel(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, cm)
}
