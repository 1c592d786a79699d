package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/dyike/StockAnalyzer/config"
	"github.com/dyike/StockAnalyzer/consts"
	"github.com/dyike/StockAnalyzer/internal/agents"
	"github.com/dyike/StockAnalyzer/internal/cache"
	"github.com/dyike/StockAnalyzer/internal/executor"
	"github.com/dyike/StockAnalyzer/internal/tools"
	"github.com/dyike/StockAnalyzer/pkg/dataflows"
)

const marketCacheTTL = 5 * time.Minute

// BuildTeam assembles the Code_Generator, Code_Executor and Report_Agent
// team for cfg. The returned team owns the market data connections and must
// be closed.
func BuildTeam(ctx context.Context, cfg *config.Config) (*Team, error) {
	cm, err := agents.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return buildTeam(ctx, cfg, cm)
}

func buildTeam(ctx context.Context, cfg *config.Config, cm model.ToolCallingChatModel) (*Team, error) {
	exec, err := executor.New(executor.Config{
		WorkDir:   cfg.CodeWorkDir,
		PythonBin: cfg.PythonBin,
		Timeout:   cfg.CodeTimeoutDuration(),
	})
	if err != nil {
		return nil, fmt.Errorf("code executor: %w", err)
	}
	codeTool := tools.NewCodeExecutionTool(exec)

	var (
		opts  []TeamOption
		lp    *dataflows.LongportClient
		built bool
	)
	defer func() {
		if !built && lp != nil {
			_ = lp.Close()
		}
	}()
	generatorTools := []tool.BaseTool{codeTool}
	if cfg.OnlineTools {
		src := tools.MarketSources{
			Yahoo: dataflows.NewYahooFinanceClient(),
			Cache: cache.NewMarketDataCache(marketCacheTTL),
		}
		if cfg.HasLongport() {
			client, err := dataflows.NewLongportClient(dataflows.LongportConfig{
				AppKey:      cfg.LongportAppKey,
				AppSecret:   cfg.LongportAppSecret,
				AccessToken: cfg.LongportAccessToken,
			})
			if err != nil {
				hlog.CtxWarnf(ctx, "longport disabled, falling back to yahoo: %v", err)
			} else {
				lp = client
				src.Longport = lp
				opts = append(opts, WithCloser(lp.Close))
			}
		}
		generatorTools = append(generatorTools,
			tools.NewMarketTool(src),
			tools.NewStockNewsTool(dataflows.NewGoogleNewsClient()),
		)
	}

	hint := ""
	if cfg.TerminationKeyword != "" {
		hint = fmt.Sprintf("When the report is complete, end it with %s.", cfg.TerminationKeyword)
	}

	specs := []struct {
		name   string
		prompt string
		tools  []tool.BaseTool
		vars   map[string]any
	}{
		{consts.CodeGenerator, "code_generator", generatorTools, nil},
		{consts.CodeExecutor, "code_executor", []tool.BaseTool{codeTool}, nil},
		{consts.ReportAgent, "report_agent", nil, map[string]any{"termination_hint": hint}},
	}

	participants := make([]Participant, 0, len(specs))
	for _, s := range specs {
		sys, err := agents.LoadPrompt(s.prompt)
		if err != nil {
			return nil, err
		}
		a, err := agents.NewAssistant(ctx, agents.AssistantConfig{
			Name:         s.name,
			SystemPrompt: sys,
			Vars:         s.vars,
			Model:        cm,
			Tools:        s.tools,
			MaxStep:      cfg.MaxAgentSteps,
		})
		if err != nil {
			return nil, err
		}
		participants = append(participants, a)
	}

	opts = append(opts,
		WithMaxTurns(cfg.MaxTurns),
		WithTerminationKeyword(cfg.TerminationKeyword),
	)
	team, err := NewTeam(ctx, participants, opts...)
	if err != nil {
		return nil, err
	}
	built = true
	hlog.CtxInfof(ctx, "team ready: model=%s provider=%s online_tools=%v max_turns=%d",
		cfg.ModelName, cfg.LLMProvider, cfg.OnlineTools, cfg.MaxTurns)
	return team, nil
}
