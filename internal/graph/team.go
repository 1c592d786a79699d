package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/google/uuid"

	"github.com/dyike/StockAnalyzer/consts"
	"github.com/dyike/StockAnalyzer/internal/metrics"
	"github.com/dyike/StockAnalyzer/models"
)

// ErrPipeline wraps every failure of a team run.
var ErrPipeline = errors.New("agent pipeline failed")

// Participant takes one turn of the conversation.
type Participant interface {
	Name() string
	Reply(ctx context.Context, conv []*schema.Message) (*schema.Message, error)
}

type TeamOption func(*Team)

func WithMaxTurns(n int) TeamOption {
	return func(t *Team) {
		if n > 0 {
			t.maxTurns = n
		}
	}
}

// WithTerminationKeyword ends the conversation early once a reply contains
// keyword. An empty keyword disables early termination.
func WithTerminationKeyword(keyword string) TeamOption {
	return func(t *Team) { t.keyword = keyword }
}

func WithCallbacks(handlers ...callbacks.Handler) TeamOption {
	return func(t *Team) { t.handlers = append(t.handlers, handlers...) }
}

// WithCloser registers a release func run by Close, for resources the
// participants share.
func WithCloser(fn func() error) TeamOption {
	return func(t *Team) { t.closers = append(t.closers, fn) }
}

// Team is a round-robin group chat: participants speak in fixed order, each
// seeing the whole conversation, until the turn limit or the termination
// keyword.
type Team struct {
	order    []string
	maxTurns int
	keyword  string
	handlers []callbacks.Handler
	closers  []func() error
	runnable compose.Runnable[[]*schema.Message, []*schema.Message]
}

func NewTeam(ctx context.Context, participants []Participant, opts ...TeamOption) (*Team, error) {
	if len(participants) == 0 {
		return nil, errors.New("team needs at least one participant")
	}

	t := &Team{maxTurns: consts.DefaultMaxTurns, keyword: consts.DefaultTermKeyword}
	for _, opt := range opts {
		opt(t)
	}

	g := compose.NewGraph[[]*schema.Message, []*schema.Message](
		compose.WithGenLocalState(func(context.Context) *TeamState { return &TeamState{} }),
	)

	outMap := map[string]bool{compose.END: true}
	for _, p := range participants {
		name := p.Name()
		if name == "" || name == compose.START || name == compose.END || slices.Contains(t.order, name) {
			return nil, fmt.Errorf("invalid or duplicate participant name %q", name)
		}
		t.order = append(t.order, name)
		outMap[name] = true
	}

	for _, p := range participants {
		if err := g.AddLambdaNode(p.Name(), compose.InvokableLambda(t.turn(p)), compose.WithNodeName(p.Name())); err != nil {
			return nil, fmt.Errorf("add node %s: %w", p.Name(), err)
		}
	}
	for _, name := range t.order {
		if err := g.AddBranch(name, compose.NewGraphBranch(t.next, outMap)); err != nil {
			return nil, fmt.Errorf("add branch %s: %w", name, err)
		}
	}
	if err := g.AddEdge(compose.START, t.order[0]); err != nil {
		return nil, err
	}

	r, err := g.Compile(ctx,
		compose.WithGraphName("StockAnalyzer-Team"),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
		compose.WithMaxRunSteps(t.maxTurns*2+10),
	)
	if err != nil {
		return nil, fmt.Errorf("compile team graph: %w", err)
	}
	t.runnable = r
	return t, nil
}

func (t *Team) turn(p Participant) func(ctx context.Context, conv []*schema.Message) ([]*schema.Message, error) {
	return func(ctx context.Context, conv []*schema.Message) ([]*schema.Message, error) {
		reply, err := p.Reply(ctx, conv)
		if err != nil {
			return nil, err
		}
		reply.Role = schema.Assistant
		reply.Name = p.Name()
		metrics.TurnTotal.WithLabelValues(p.Name()).Inc()

		err = compose.ProcessState[*TeamState](ctx, func(_ context.Context, state *TeamState) error {
			state.Turn++
			state.LatestSpeaker = p.Name()
			return nil
		})
		if err != nil {
			return nil, err
		}
		return append(slices.Clone(conv), reply), nil
	}
}

func (t *Team) next(ctx context.Context, conv []*schema.Message) (next string, err error) {
	latest := ""
	if len(conv) > 0 {
		latest = conv[len(conv)-1].Content
	}
	var final TeamState
	err = compose.ProcessState[*TeamState](ctx, func(_ context.Context, state *TeamState) error {
		next = handOff(t.order, state, latest, t.keyword, t.maxTurns)
		final = *state
		return nil
	})
	if err == nil && next == compose.END {
		if final.Terminated {
			hlog.CtxInfof(ctx, "session=%s ended by %s after %d turns", SessionIDFrom(ctx), final.LatestSpeaker, final.Turn)
		} else {
			hlog.CtxInfof(ctx, "session=%s reached the turn limit of %d", SessionIDFrom(ctx), t.maxTurns)
		}
	}
	return next, err
}

// Run plays the conversation for task and returns the participant turns in
// order. The task message itself is not included.
func (t *Team) Run(ctx context.Context, task string) ([]models.Message, error) {
	input := []*schema.Message{{Role: schema.User, Name: consts.TaskSource, Content: task}}

	handlers := append(slices.Clone(t.handlers), NewLoggerCallback(SessionIDFrom(ctx), t.order...))
	out, err := t.runnable.Invoke(ctx, input, compose.WithCallbacks(handlers...))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
	}

	if len(out) > 0 {
		out = out[1:]
	}
	msgs := make([]models.Message, 0, len(out))
	for _, m := range out {
		msgs = append(msgs, models.Message{
			ID:      uuid.NewString(),
			Source:  m.Name,
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return msgs, nil
}

func (t *Team) Order() []string {
	return slices.Clone(t.order)
}

func (t *Team) Close() error {
	var errs []error
	for _, fn := range t.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}
