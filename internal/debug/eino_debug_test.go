package debug

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dyike/StockAnalyzer/config"
)

func TestDisabledDebuggerIsNoop(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	d := NewEinoDebugger(cfg)

	assert.False(t, d.IsEnabled())
	assert.Empty(t, d.GetDebugURL())
	assert.NoError(t, d.Initialize(context.Background()))

	cfg.EinoDebugEnabled = true
	assert.Equal(t, "http://localhost:52538", d.GetDebugURL())
}
