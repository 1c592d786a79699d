package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/dyike/StockAnalyzer/consts"
	"github.com/dyike/StockAnalyzer/internal/graph"
	"github.com/dyike/StockAnalyzer/internal/metrics"
	"github.com/dyike/StockAnalyzer/internal/storage"
	"github.com/dyike/StockAnalyzer/models"
)

// ErrClosed is returned by Submit after Shutdown.
var ErrClosed = errors.New("analyzer is shut down")

// storeWriteTimeout bounds the terminal record write, which must also
// succeed while the service is shutting down.
const storeWriteTimeout = 5 * time.Second

// Pipeline runs the agent conversation for one task.
type Pipeline interface {
	Run(ctx context.Context, task string) ([]models.Message, error)
}

// PipelineFunc adapts a function to Pipeline.
type PipelineFunc func(ctx context.Context, task string) ([]models.Message, error)

func (f PipelineFunc) Run(ctx context.Context, task string) ([]models.Message, error) {
	return f(ctx, task)
}

// FailingPipeline fails every job with Err. serve installs it when the
// agent team cannot be built, so submissions still get a session and a
// readable failure instead of a refused request.
type FailingPipeline struct {
	Err error
}

func (p FailingPipeline) Run(context.Context, string) ([]models.Message, error) {
	return nil, fmt.Errorf("%w: %w", graph.ErrPipeline, p.Err)
}

type Options struct {
	// MaxConcurrent caps jobs running the pipeline at once; 0 is unlimited.
	MaxConcurrent int
	// JobTimeout bounds one pipeline run; 0 is no deadline.
	JobTimeout time.Duration
}

type pipelineBox struct{ p Pipeline }

// Analyzer is the job runner: it records a session, runs the pipeline in the
// background and writes the outcome back to the store.
type Analyzer struct {
	store    storage.Store
	pipeline atomic.Pointer[pipelineBox]
	slots    chan struct{}
	timeout  time.Duration
	random   io.Reader

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewAnalyzer(store storage.Store, p Pipeline, opts Options) *Analyzer {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Analyzer{
		store:   store,
		timeout: opts.JobTimeout,
		random:  rand.Reader,
		ctx:     ctx,
		cancel:  cancel,
	}
	if opts.MaxConcurrent > 0 {
		a.slots = make(chan struct{}, opts.MaxConcurrent)
	}
	a.SetPipeline(p)
	return a
}

// SetPipeline swaps the pipeline used by jobs started from now on.
func (a *Analyzer) SetPipeline(p Pipeline) {
	a.pipeline.Store(&pipelineBox{p: p})
}

func (a *Analyzer) currentPipeline() Pipeline {
	return a.pipeline.Load().p
}

// Submit starts an analysis for params and returns its session id without
// waiting for the result.
func (a *Analyzer) Submit(ctx context.Context, params models.AnalysisParams) (string, error) {
	id, err := a.newSessionID(params.Ticker())
	if err != nil {
		return "", err
	}
	return a.RunAnalysis(ctx, id, params)
}

// RunAnalysis writes the initial record for sessionID and detaches the run.
// An existing record under sessionID is overwritten.
func (a *Analyzer) RunAnalysis(ctx context.Context, sessionID string, params models.AnalysisParams) (string, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return "", ErrClosed
	}
	a.wg.Add(1)
	a.mu.Unlock()

	params = params.Clone()
	status := models.StatusRunning
	if !a.tryAcquire() {
		status = models.StatusPending
	}
	rec := &models.JobRecord{Params: params, Status: status}
	if err := a.store.Put(ctx, sessionID, rec); err != nil {
		if status == models.StatusRunning {
			a.release()
		}
		a.wg.Done()
		return "", fmt.Errorf("store initial record: %w", err)
	}
	hlog.CtxInfof(ctx, "session=%s submitted status=%s", sessionID, status)

	go func() {
		defer a.wg.Done()
		if status == models.StatusPending && !a.waitForSlot(sessionID) {
			return
		}
		defer a.release()
		a.execute(sessionID, params)
	}()
	return sessionID, nil
}

// Get returns the record of sessionID or storage.ErrNotFound.
func (a *Analyzer) Get(ctx context.Context, sessionID string) (*models.JobRecord, error) {
	return a.store.Get(ctx, sessionID)
}

// Shutdown cancels running jobs and waits for their final records, bounded
// by ctx.
func (a *Analyzer) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running jobs: %w", ctx.Err())
	}
}

func (a *Analyzer) tryAcquire() bool {
	if a.slots == nil {
		return true
	}
	select {
	case a.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (a *Analyzer) release() {
	if a.slots != nil {
		<-a.slots
	}
}

func (a *Analyzer) waitForSlot(sessionID string) bool {
	select {
	case a.slots <- struct{}{}:
	case <-a.ctx.Done():
		a.finish(sessionID, models.JobUpdate{Status: models.StatusFailed, Error: "service shut down before the job started"})
		return false
	}
	a.finish(sessionID, models.JobUpdate{Status: models.StatusRunning})
	return true
}

func (a *Analyzer) execute(sessionID string, params models.AnalysisParams) {
	start := time.Now()
	metrics.JobsRunning.Inc()
	defer metrics.JobsRunning.Dec()

	ctx := graph.WithSessionID(a.ctx, sessionID)
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	msgs, err := a.runPipeline(ctx, a.currentPipeline(), BuildTask(params))
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("job timed out after %s: %w", a.timeout, err)
	}

	status := models.StatusCompleted
	update := models.JobUpdate{Status: status, Messages: models.Stringify(msgs)}
	if err != nil {
		status = models.StatusFailed
		update = models.JobUpdate{Status: status, Error: err.Error()}
		hlog.CtxErrorf(ctx, "session=%s failed after %s: %v", sessionID, time.Since(start).Round(time.Millisecond), err)
	} else {
		hlog.CtxInfof(ctx, "session=%s completed with %d messages in %s", sessionID, len(msgs), time.Since(start).Round(time.Millisecond))
	}
	metrics.JobTotal.WithLabelValues(string(status)).Inc()
	metrics.JobDuration.WithLabelValues(string(status)).Observe(time.Since(start).Seconds())
	a.finish(sessionID, update)
}

func (a *Analyzer) runPipeline(ctx context.Context, p Pipeline, task string) (msgs []models.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", graph.ErrPipeline, r)
		}
	}()
	if p == nil {
		return nil, fmt.Errorf("%w: no pipeline configured", graph.ErrPipeline)
	}
	return p.Run(ctx, task)
}

func (a *Analyzer) finish(sessionID string, u models.JobUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()
	if err := a.store.Update(ctx, sessionID, u); err != nil {
		hlog.CtxErrorf(ctx, "session=%s store %s record: %v", sessionID, u.Status, err)
	}
}

// BuildTask renders the task that opens the conversation.
func BuildTask(params models.AnalysisParams) string {
	return fmt.Sprintf("Analyze stock %s with parameters %s", params.Ticker(), params.JSON())
}

func (a *Analyzer) newSessionID(ticker string) (string, error) {
	var b [4]byte
	if _, err := io.ReadFull(a.random, b[:]); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return fmt.Sprintf("%s_%s_%s", consts.SessionPrefix, sanitizeTicker(ticker), hex.EncodeToString(b[:])), nil
}

// sanitizeTicker keeps the ticker a single URL path segment.
func sanitizeTicker(ticker string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return '_'
	}, ticker)
}
