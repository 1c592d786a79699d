package graph

import (
	"context"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	ecmodel "github.com/cloudwego/eino/components/model"
	ectool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/dyike/StockAnalyzer/internal/metrics"
)

const snippetLen = 120

type sessionKey struct{}

// WithSessionID tags the context of a run so its log lines can be told apart.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

func SessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// LoggerCallback logs team turns, tool calls and model usage of a run.
type LoggerCallback struct {
	SessionID string
	speakers  map[string]bool
}

var _ callbacks.Handler = (*LoggerCallback)(nil)

func NewLoggerCallback(sessionID string, speakers ...string) *LoggerCallback {
	cb := &LoggerCallback{SessionID: sessionID, speakers: make(map[string]bool, len(speakers))}
	for _, s := range speakers {
		cb.speakers[s] = true
	}
	return cb
}

// isTurn filters out lambdas nested inside the participants.
func (cb *LoggerCallback) isTurn(info *callbacks.RunInfo) bool {
	return info.Component == compose.ComponentOfLambda && cb.speakers[info.Name]
}

func (cb *LoggerCallback) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if info == nil {
		return ctx
	}
	switch {
	case cb.isTurn(info):
		if conv, ok := input.([]*schema.Message); ok {
			hlog.CtxInfof(ctx, "session=%s turn=%d speaker=%s started", cb.SessionID, len(conv), info.Name)
		}
	case info.Component == components.ComponentOfTool:
		if in := ectool.ConvCallbackInput(input); in != nil {
			hlog.CtxInfof(ctx, "session=%s tool=%s args=%s", cb.SessionID, info.Name, snippet(in.ArgumentsInJSON))
		}
	}
	return ctx
}

func (cb *LoggerCallback) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if info == nil {
		return ctx
	}
	switch {
	case cb.isTurn(info):
		if conv, ok := output.([]*schema.Message); ok && len(conv) > 0 {
			last := conv[len(conv)-1]
			hlog.CtxInfof(ctx, "session=%s speaker=%s said: %s", cb.SessionID, last.Name, snippet(last.Content))
		}
	case info.Component == components.ComponentOfChatModel:
		if out := ecmodel.ConvCallbackOutput(output); out != nil && out.TokenUsage != nil {
			metrics.LLMTokensTotal.WithLabelValues("input").Add(float64(out.TokenUsage.PromptTokens))
			metrics.LLMTokensTotal.WithLabelValues("output").Add(float64(out.TokenUsage.CompletionTokens))
		}
	}
	return ctx
}

func (cb *LoggerCallback) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	name := ""
	if info != nil {
		name = info.Name
	}
	hlog.CtxErrorf(ctx, "session=%s node=%s error: %v", cb.SessionID, name, err)
	return ctx
}

func (cb *LoggerCallback) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

func (cb *LoggerCallback) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetLen {
		return s
	}
	return string(r[:snippetLen]) + "..."
}
