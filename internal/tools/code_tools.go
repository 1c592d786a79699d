package tools

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/dyike/StockAnalyzer/consts"
	"github.com/dyike/StockAnalyzer/models"
)

type CodeRunner interface {
	Execute(ctx context.Context, code string) (*models.CodeExecutionOutput, error)
}

// NewCodeExecutionTool exposes runner as python_code_execution. Execution
// problems are reported in the output so the model can fix its code.
func NewCodeExecutionTool(runner CodeRunner) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: consts.ToolPythonExecution,
			Desc: "Execute Python code for stock analysis and return its exit code, stdout and stderr. " +
				"Markdown fenced blocks are accepted. Print every result you need; save charts to files.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"code": {
					Type:     schema.String,
					Desc:     "Python source to run",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, input models.CodeExecutionInput) (*models.CodeExecutionOutput, error) {
			start := time.Now()
			out, err := runner.Execute(ctx, input.Code)
			if err != nil {
				hlog.CtxWarnf(ctx, "code execution rejected: %v", err)
				observe(consts.ToolPythonExecution, start, "rejected")
				return &models.CodeExecutionOutput{ExitCode: -1, Stderr: err.Error()}, nil
			}
			outcome := "ok"
			if out.ExitCode != 0 {
				outcome = "error"
			}
			observe(consts.ToolPythonExecution, start, outcome)
			return out, nil
		},
	)
}
