package agents

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/common/hlog"
)

// GenerateFunc produces the next assistant message for a formatted prompt.
type GenerateFunc func(ctx context.Context, msgs []*schema.Message) (*schema.Message, error)

type AssistantConfig struct {
	Name         string
	SystemPrompt string
	// Vars fill the placeholders of SystemPrompt. current_date is always set.
	Vars  map[string]any
	Model model.ToolCallingChatModel
	Tools []tool.BaseTool
	// MaxStep bounds the ReAct loop of a single turn.
	MaxStep int
	// Generate replaces Model and Tools when set.
	Generate GenerateFunc
}

// Assistant is one participant of the team conversation. With tools it runs
// a ReAct agent for each turn, without tools a single chat completion.
type Assistant struct {
	name     string
	template prompt.ChatTemplate
	vars     map[string]any
	generate GenerateFunc
}

func NewAssistant(ctx context.Context, cfg AssistantConfig) (*Assistant, error) {
	if cfg.Name == "" {
		return nil, errors.New("assistant name is required")
	}

	generate := cfg.Generate
	switch {
	case generate != nil:
	case cfg.Model == nil:
		return nil, fmt.Errorf("assistant %s: chat model is required", cfg.Name)
	case len(cfg.Tools) > 0:
		maxStep := cfg.MaxStep
		if maxStep <= 0 {
			maxStep = 12
		}
		agent, err := react.NewAgent(ctx, &react.AgentConfig{
			ToolCallingModel: cfg.Model,
			ToolsConfig: compose.ToolsNodeConfig{
				Tools: cfg.Tools,
			},
			MaxStep:               maxStep,
			StreamToolCallChecker: ToolCallChecker,
		})
		if err != nil {
			return nil, fmt.Errorf("assistant %s: create react agent: %w", cfg.Name, err)
		}
		generate = func(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
			return agent.Generate(ctx, msgs)
		}
	default:
		cm := cfg.Model
		generate = func(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
			return cm.Generate(ctx, msgs)
		}
	}

	return &Assistant{
		name: cfg.Name,
		template: prompt.FromMessages(schema.FString,
			schema.SystemMessage(cfg.SystemPrompt),
			schema.MessagesPlaceholder("history", false),
		),
		vars:     cfg.Vars,
		generate: generate,
	}, nil
}

func (a *Assistant) Name() string {
	return a.name
}

// Reply answers the shared conversation. The first message is the task.
func (a *Assistant) Reply(ctx context.Context, conv []*schema.Message) (*schema.Message, error) {
	vars := maps.Clone(a.vars)
	if vars == nil {
		vars = make(map[string]any)
	}
	vars["current_date"] = time.Now().Format("2006-01-02")
	vars["history"] = a.view(conv)

	msgs, err := a.template.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("%s: format prompt: %w", a.name, err)
	}

	start := time.Now()
	reply, err := a.generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.name, err)
	}
	if reply == nil {
		return nil, fmt.Errorf("%s: empty reply", a.name)
	}
	hlog.CtxDebugf(ctx, "%s replied in %s (%d chars)", a.name, time.Since(start).Round(time.Millisecond), len(reply.Content))

	return &schema.Message{
		Role:    schema.Assistant,
		Name:    a.name,
		Content: strings.TrimSpace(reply.Content),
	}, nil
}

// view renders the conversation from this assistant's point of view: its
// own turns as assistant messages, everyone else's as named user messages.
func (a *Assistant) view(conv []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(conv))
	for _, m := range conv {
		if m.Name == a.name {
			out = append(out, &schema.Message{Role: schema.Assistant, Content: m.Content})
			continue
		}
		out = append(out, &schema.Message{Role: schema.User, Name: m.Name, Content: m.Content})
	}
	return out
}
