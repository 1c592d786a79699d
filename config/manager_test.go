package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/StockAnalyzer/consts"
)

func TestManagerCreatesAndUpdates(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)

	path := filepath.Join(dir, "config.json")
	_, err = os.Stat(path)
	require.NoError(t, err, "config file not created")

	cfg := mgr.Get()
	cfg.StoreType = consts.StoreSQLite
	cfg.SQLitePath = filepath.Join(dir, "jobs.db")
	cfg.MaxTurns = 6

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, mgr.UpdateFromJSON(string(data)))

	updated := mgr.Get()
	assert.Equal(t, consts.StoreSQLite, updated.StoreType)
	assert.Equal(t, 6, updated.MaxTurns)

	// A second manager on the same dir sees the persisted file.
	again, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)
	assert.Equal(t, cfg.SQLitePath, again.Get().SQLitePath)
}

func TestManagerRejectsInvalidUpdate(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	require.NoError(t, err)

	cfg := mgr.Get()
	cfg.StoreType = "postgres"
	assert.Error(t, mgr.Update(cfg))
	assert.Equal(t, consts.StoreMemory, mgr.Get().StoreType)

	assert.Error(t, mgr.UpdateFromJSON("{not json"))
}

func TestManagerPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_turns": 4}`), 0o644))

	mgr, err := NewManager(WithConfigPath(path))
	require.NoError(t, err)

	cfg := mgr.Get()
	assert.Equal(t, 4, cfg.MaxTurns)
	assert.Equal(t, consts.DefaultTermKeyword, cfg.TerminationKeyword)
	assert.Equal(t, 8000, cfg.ServerPort)
}

func TestManagerWatchReloads(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir), WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Config, 1)
	require.NoError(t, mgr.Watch(ctx, func(cfg Config) {
		reloaded <- cfg
	}))

	cfg := mgr.Get()
	cfg.ModelName = "gpt-4o"
	require.NoError(t, writeConfigFile(mgr.Path(), cfg))

	select {
	case got := <-reloaded:
		assert.Equal(t, "gpt-4o", got.ModelName)
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not fire on config change")
	}
}

func TestRedactedMasksSecrets(t *testing.T) {
	cfg := *DefaultConfigWithRoot(t.TempDir())
	cfg.OpenAIAPIKey = "sk-live"
	cfg.RedisPassword = "hunter2"

	red := cfg.Redacted()
	assert.Equal(t, "******", red.OpenAIAPIKey)
	assert.Equal(t, "******", red.RedisPassword)
	assert.Empty(t, red.DeepSeekAPIKey)
	assert.Equal(t, "sk-live", cfg.OpenAIAPIKey)
}

func TestManagerSet(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)

	require.NoError(t, mgr.Set("max_turns", "3"))
	require.NoError(t, mgr.Set("online_tools", "false"))
	require.NoError(t, mgr.Set("openai_api_key", "sk-new"))
	require.NoError(t, mgr.Set("termination_keyword", ""))

	cfg := mgr.Get()
	assert.Equal(t, 3, cfg.MaxTurns)
	assert.False(t, cfg.OnlineTools)
	assert.Equal(t, "sk-new", cfg.OpenAIAPIKey)
	assert.Empty(t, cfg.TerminationKeyword)

	again, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)
	assert.Equal(t, cfg, again.Get())

	assert.Error(t, mgr.Set("no_such_key", "1"))
	assert.Error(t, mgr.Set("max_turns", "many"))
	assert.Error(t, mgr.Set("max_turns", "0"))
	assert.Error(t, mgr.Set("online_tools", "maybe"))
	assert.Equal(t, 3, mgr.Get().MaxTurns)
}

func TestManagerSetTriggersWatchInOtherManager(t *testing.T) {
	dir := t.TempDir()
	watched, err := NewManager(WithConfigDir(dir), WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan Config, 1)
	require.NoError(t, watched.Watch(ctx, func(cfg Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}))

	writer, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)
	require.NoError(t, writer.Set("model_name", "gpt-4o-mini"))

	select {
	case got := <-reloaded:
		assert.Equal(t, "gpt-4o-mini", got.ModelName)
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not see the change")
	}
}
