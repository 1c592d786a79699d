package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/StockAnalyzer/config"
	"github.com/dyike/StockAnalyzer/consts"
	"github.com/dyike/StockAnalyzer/internal/agents"
)

type fakeModel struct {
	mu      sync.Mutex
	systems []string
	tools   int
}

func (f *fakeModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(in) > 0 && in[0].Role == schema.System {
		f.systems = append(f.systems, in[0].Content)
	}
	return schema.AssistantMessage("noted", nil), nil
}

func (f *fakeModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	f.mu.Lock()
	f.tools += len(tools)
	f.mu.Unlock()
	return f, nil
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.CodeWorkDir = t.TempDir()
	cfg.OnlineTools = false
	cfg.MaxTurns = 3
	return cfg
}

func TestBuildTeamRequiresAPIKey(t *testing.T) {
	_, err := BuildTeam(context.Background(), testConfig(t))
	assert.ErrorIs(t, err, agents.ErrMissingAPIKey)
}

func TestBuildTeamRunsAllParticipants(t *testing.T) {
	cm := &fakeModel{}
	team, err := buildTeam(context.Background(), testConfig(t), cm)
	require.NoError(t, err)
	defer team.Close()

	assert.Equal(t, []string{consts.CodeGenerator, consts.CodeExecutor, consts.ReportAgent}, team.Order())

	msgs, err := team.Run(context.Background(), "Analyze stock AAPL with parameters {}")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, consts.ReportAgent, msgs[2].Source)

	require.Len(t, cm.systems, 3)
	assert.Contains(t, cm.systems[2], "end it with TERMINATE")
	assert.NotContains(t, cm.systems[2], "{termination_hint}")
	// generator and executor each bind only the code tool offline
	assert.Equal(t, 2, cm.tools)
}

func TestBuildTeamOnlineToolsAndNoKeyword(t *testing.T) {
	cfg := testConfig(t)
	cfg.OnlineTools = true
	cfg.TerminationKeyword = ""
	cm := &fakeModel{}

	team, err := buildTeam(context.Background(), cfg, cm)
	require.NoError(t, err)
	defer team.Close()

	// code + market + news for the generator, code for the executor
	assert.Equal(t, 4, cm.tools)

	_, err = team.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.NotContains(t, cm.systems[2], "TERMINATE")
}
