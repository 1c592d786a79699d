package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/spf13/cobra"

	"github.com/dyike/StockAnalyzer/config"
	"github.com/dyike/StockAnalyzer/internal/debug"
	"github.com/dyike/StockAnalyzer/internal/graph"
	"github.com/dyike/StockAnalyzer/internal/logger"
	"github.com/dyike/StockAnalyzer/internal/server"
	"github.com/dyike/StockAnalyzer/internal/service"
	"github.com/dyike/StockAnalyzer/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(st *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP analysis service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				host, port, err := splitAddr(addr)
				if err != nil {
					return err
				}
				st.cfg.ServerHost, st.cfg.ServerPort = host, port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, st)
		},
	}
	cmd.Flags().String("addr", "", "Listen address host:port, overrides SERVER_HOST/SERVER_PORT")
	return cmd
}

// teams tracks every team built during the process lifetime. A hot reload
// installs a new team while jobs may still run on the old one, so teams
// are only closed at shutdown.
type teams struct {
	mu  sync.Mutex
	all []*graph.Team
}

// build returns the pipeline for cfg. Without a usable model every job
// fails with the build error instead of the service refusing to start.
func (t *teams) build(ctx context.Context, cfg *config.Config) service.Pipeline {
	team, err := graph.BuildTeam(ctx, cfg)
	if err != nil {
		hlog.CtxErrorf(ctx, "agent team unavailable, jobs will fail: %v", err)
		return service.FailingPipeline{Err: err}
	}
	t.mu.Lock()
	t.all = append(t.all, team)
	t.mu.Unlock()
	return team
}

func (t *teams) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var errs []error
	for _, team := range t.all {
		errs = append(errs, team.Close())
	}
	t.all = nil
	return errors.Join(errs...)
}

// restartOnly lists the settings read once at startup that differ in next.
// Everything else reaches new jobs through the rebuilt team.
func restartOnly(running, next *config.Config) []string {
	var changed []string
	if running.Addr() != next.Addr() {
		changed = append(changed, "server address")
	}
	if running.StoreType != next.StoreType || running.SQLitePath != next.SQLitePath ||
		running.RedisAddr != next.RedisAddr || running.RedisDB != next.RedisDB ||
		running.RedisKeyPrefix != next.RedisKeyPrefix || running.RedisTTL != next.RedisTTL {
		changed = append(changed, "store")
	}
	if running.MaxConcurrentJobs != next.MaxConcurrentJobs {
		changed = append(changed, "max_concurrent_jobs")
	}
	if running.JobTimeoutDuration() != next.JobTimeoutDuration() {
		changed = append(changed, "job_timeout")
	}
	if running.EinoDebugEnabled != next.EinoDebugEnabled || running.EinoDebugPort != next.EinoDebugPort {
		changed = append(changed, "eino debug server")
	}
	return changed
}

func runServe(ctx context.Context, st *settings) error {
	cfg := st.cfg
	logger.Setup(cfg.LogLevel, nil)

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	if err := debug.NewEinoDebugger(cfg).Initialize(ctx); err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreType, err)
	}
	defer store.Close()

	var ts teams
	defer ts.close()

	analyzer := service.NewAnalyzer(store, ts.build(ctx, cfg), service.Options{
		MaxConcurrent: cfg.MaxConcurrentJobs,
		JobTimeout:    cfg.JobTimeoutDuration(),
	})

	if st.manager != nil {
		err := st.manager.Watch(ctx, func(next config.Config) {
			st.applyFlags(&next)
			logger.SetLevel(next.LogLevel)
			if stale := restartOnly(cfg, &next); len(stale) > 0 {
				hlog.CtxWarnf(ctx, "changes to %s take effect after a restart", strings.Join(stale, ", "))
			}
			analyzer.SetPipeline(ts.build(ctx, &next))
			hlog.CtxInfof(ctx, "configuration reloaded, new jobs use model %s", next.ModelName)
		})
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
	}

	h := server.NewRouter(server.NewHandler(analyzer)).Build(cfg.Addr())
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Run()
	}()
	hlog.CtxInfof(ctx, "stock analyzer listening on %s (store=%s)", cfg.Addr(), cfg.StoreType)

	select {
	case <-ctx.Done():
		hlog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		hlog.Warnf("http shutdown: %v", err)
	}
	if err := analyzer.Shutdown(shutdownCtx); err != nil {
		hlog.Warnf("job shutdown: %v", err)
	}
	return nil
}
