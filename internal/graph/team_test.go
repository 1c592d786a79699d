package graph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/StockAnalyzer/consts"
	"github.com/dyike/StockAnalyzer/internal/logger"
)

type scripted struct {
	name  string
	reply func(conv []*schema.Message) (string, error)
	seen  []int
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) Reply(_ context.Context, conv []*schema.Message) (*schema.Message, error) {
	s.seen = append(s.seen, len(conv))
	content, err := s.reply(conv)
	if err != nil {
		return nil, err
	}
	return &schema.Message{Role: schema.Assistant, Content: content}, nil
}

func echo(name string) *scripted {
	return &scripted{name: name, reply: func(conv []*schema.Message) (string, error) {
		return fmt.Sprintf("%s turn %d", name, len(conv)), nil
	}}
}

func trio() []Participant {
	return []Participant{echo(consts.CodeGenerator), echo(consts.CodeExecutor), echo(consts.ReportAgent)}
}

func sources(t *testing.T, team *Team, task string) []string {
	t.Helper()
	msgs, err := team.Run(context.Background(), task)
	require.NoError(t, err)
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		require.NotEmpty(t, m.ID)
		out = append(out, m.Source)
	}
	return out
}

func TestTeamRoundRobinUntilMaxTurns(t *testing.T) {
	team, err := NewTeam(context.Background(), trio(), WithMaxTurns(5), WithTerminationKeyword(""))
	require.NoError(t, err)

	assert.Equal(t, []string{
		consts.CodeGenerator, consts.CodeExecutor, consts.ReportAgent,
		consts.CodeGenerator, consts.CodeExecutor,
	}, sources(t, team, "Analyze stock AAPL"))
}

func TestTeamDefaultTurnLimit(t *testing.T) {
	team, err := NewTeam(context.Background(), trio(), WithTerminationKeyword(""))
	require.NoError(t, err)
	assert.Len(t, sources(t, team, "task"), consts.DefaultMaxTurns)
}

func TestTeamStopsOnTerminationKeyword(t *testing.T) {
	report := &scripted{name: consts.ReportAgent, reply: func([]*schema.Message) (string, error) {
		return "Final report.\nTERMINATE", nil
	}}
	team, err := NewTeam(context.Background(),
		[]Participant{echo(consts.CodeGenerator), echo(consts.CodeExecutor), report},
		WithMaxTurns(10))
	require.NoError(t, err)

	msgs, err := team.Run(context.Background(), "task")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, consts.ReportAgent, msgs[2].Source)
	assert.Contains(t, msgs[2].Content, "TERMINATE")
}

func TestTeamLogsWhyConversationEnded(t *testing.T) {
	var buf bytes.Buffer
	logger.Setup("info", &buf)
	t.Cleanup(func() { logger.Setup("info", nil) })

	report := &scripted{name: consts.ReportAgent, reply: func([]*schema.Message) (string, error) {
		return "done TERMINATE", nil
	}}
	team, err := NewTeam(context.Background(),
		[]Participant{echo(consts.CodeGenerator), echo(consts.CodeExecutor), report})
	require.NoError(t, err)
	_, err = team.Run(WithSessionID(context.Background(), "analysis_AAPL_00000001"), "task")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "session=analysis_AAPL_00000001 ended by Report_Agent after 3 turns")

	buf.Reset()
	capped, err := NewTeam(context.Background(), trio(), WithMaxTurns(2), WithTerminationKeyword(""))
	require.NoError(t, err)
	_, err = capped.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "reached the turn limit of 2")
	assert.NotContains(t, buf.String(), "ended by")
}

func TestTeamEveryoneSeesWholeConversation(t *testing.T) {
	gen, exec := echo(consts.CodeGenerator), echo(consts.CodeExecutor)
	team, err := NewTeam(context.Background(), []Participant{gen, exec}, WithMaxTurns(4))
	require.NoError(t, err)

	_, err = team.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, gen.seen)
	assert.Equal(t, []int{2, 4}, exec.seen)
}

func TestTeamRunDropsTaskMessage(t *testing.T) {
	team, err := NewTeam(context.Background(), trio(), WithMaxTurns(1))
	require.NoError(t, err)

	msgs, err := team.Run(context.Background(), "Analyze stock AAPL")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, consts.CodeGenerator, msgs[0].Source)
	assert.Equal(t, string(schema.Assistant), msgs[0].Role)
	assert.Equal(t, "Code_Generator turn 1", msgs[0].Content)
}

func TestTeamWrapsParticipantErrors(t *testing.T) {
	boom := errors.New("rate limited")
	exec := &scripted{name: consts.CodeExecutor, reply: func([]*schema.Message) (string, error) { return "", boom }}
	team, err := NewTeam(context.Background(), []Participant{echo(consts.CodeGenerator), exec})
	require.NoError(t, err)

	_, err = team.Run(WithSessionID(context.Background(), "analysis_AAPL_0000abcd"), "task")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPipeline)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestNewTeamRejectsBadParticipants(t *testing.T) {
	_, err := NewTeam(context.Background(), nil)
	assert.Error(t, err)

	_, err = NewTeam(context.Background(), []Participant{echo("a"), echo("a")})
	assert.Error(t, err)

	_, err = NewTeam(context.Background(), []Participant{echo(compose.END)})
	assert.Error(t, err)
}

func TestTeamClose(t *testing.T) {
	closed := 0
	team, err := NewTeam(context.Background(), trio(), WithCloser(func() error { closed++; return nil }))
	require.NoError(t, err)
	require.NoError(t, team.Close())
	assert.Equal(t, 1, closed)
	assert.Equal(t, []string{consts.CodeGenerator, consts.CodeExecutor, consts.ReportAgent}, team.Order())
}

func TestHandOff(t *testing.T) {
	order := []string{"a", "b", "c"}

	st := &TeamState{}
	assert.Equal(t, "a", handOff(order, st, "", "TERMINATE", 10))

	st = &TeamState{Turn: 1, LatestSpeaker: "c"}
	assert.Equal(t, "a", handOff(order, st, "still going", "TERMINATE", 10))

	st = &TeamState{Turn: 2, LatestSpeaker: "a"}
	assert.Equal(t, compose.END, handOff(order, st, "done TERMINATE", "TERMINATE", 10))
	assert.True(t, st.Terminated)

	st = &TeamState{Turn: 2, LatestSpeaker: "a"}
	assert.Equal(t, "b", handOff(order, st, "TERMINATE", "", 10))

	st = &TeamState{Turn: 10, LatestSpeaker: "a"}
	assert.Equal(t, compose.END, handOff(order, st, "", "TERMINATE", 10))
	assert.False(t, st.Terminated)
}
