package debug

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/devops"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/dyike/StockAnalyzer/config"
)

// EinoDebugger starts the eino devops server so the team graph can be
// inspected and replayed from the Eino Dev IDE plugin.
type EinoDebugger struct {
	config *config.Config
}

func NewEinoDebugger(cfg *config.Config) *EinoDebugger {
	return &EinoDebugger{config: cfg}
}

// Initialize must run before the team graph is compiled, otherwise the
// graph is not registered with the debug server.
func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.IsEnabled() {
		return nil
	}

	hlog.CtxInfof(ctx, "initializing eino debug server on port %d", d.config.EinoDebugPort)
	if err := devops.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}
	hlog.CtxInfof(ctx, "eino debug server ready at %s", d.GetDebugURL())
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.config != nil && d.config.EinoDebugEnabled
}

func (d *EinoDebugger) GetDebugURL() string {
	if !d.IsEnabled() {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.config.EinoDebugPort)
}
