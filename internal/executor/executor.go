package executor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/dyike/StockAnalyzer/models"
)

var (
	ErrWorkDirEscape = errors.New("code file escapes the work dir")
	ErrNoCode        = errors.New("no python code to execute")
)

const defaultMaxOutput = 16 << 10

var (
	fenceRe    = regexp.MustCompile("(?s)```[ \\t]*([\\w+-]*)[^\\n]*\\n(.*?)```")
	filenameRe = regexp.MustCompile(`^#\s*filename:\s*(\S+)`)
)

type Config struct {
	WorkDir   string
	PythonBin string
	Timeout   time.Duration
	// MaxOutput caps stdout and stderr separately, in bytes.
	MaxOutput int
}

// PythonExecutor runs model generated Python on the host, one file per
// snippet, inside a single work dir.
type PythonExecutor struct {
	cfg Config
}

func New(cfg Config) (*PythonExecutor, error) {
	if strings.TrimSpace(cfg.WorkDir) == "" {
		return nil, fmt.Errorf("work dir is required")
	}
	if cfg.PythonBin == "" {
		cfg.PythonBin = "python3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = defaultMaxOutput
	}
	abs, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolve work dir: %w", err)
	}
	cfg.WorkDir = abs
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	return &PythonExecutor{cfg: cfg}, nil
}

func (e *PythonExecutor) WorkDir() string {
	return e.cfg.WorkDir
}

// Execute runs every Python block found in code, in order, and stops at the
// first block that fails. Plain text without fences is treated as one block.
func (e *PythonExecutor) Execute(ctx context.Context, code string) (*models.CodeExecutionOutput, error) {
	blocks, err := ExtractBlocks(code)
	if err != nil {
		return nil, err
	}

	out := &models.CodeExecutionOutput{}
	var stdout, stderr strings.Builder
	for _, block := range blocks {
		path, err := e.writeBlock(block)
		if err != nil {
			return nil, err
		}
		res := e.run(ctx, path)
		stdout.WriteString(res.Stdout)
		stderr.WriteString(res.Stderr)
		out.ExitCode = res.ExitCode
		out.TimedOut = res.TimedOut
		if res.ExitCode != 0 {
			break
		}
	}
	out.Stdout = truncate(stdout.String(), e.cfg.MaxOutput)
	out.Stderr = truncate(stderr.String(), e.cfg.MaxOutput)
	return out, nil
}

func (e *PythonExecutor) writeBlock(block string) (string, error) {
	name := ""
	if first, _, _ := strings.Cut(block, "\n"); filenameRe.MatchString(strings.TrimSpace(first)) {
		name = filenameRe.FindStringSubmatch(strings.TrimSpace(first))[1]
	}
	if name == "" {
		sum := sha256.Sum256([]byte(block))
		name = "tmp_code_" + hex.EncodeToString(sum[:8]) + ".py"
	}

	path := filepath.Join(e.cfg.WorkDir, name)
	rel, err := filepath.Rel(e.cfg.WorkDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s", ErrWorkDirEscape, name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create code dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(block), 0o644); err != nil {
		return "", fmt.Errorf("write code file: %w", err)
	}
	return path, nil
}

func (e *PythonExecutor) run(ctx context.Context, path string) models.CodeExecutionOutput {
	execCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, e.cfg.PythonBin, path)
	cmd.Dir = e.cfg.WorkDir
	// Headless plotting; figures go to files in the work dir.
	cmd.Env = append(os.Environ(), "MPLBACKEND=Agg", "PYTHONUNBUFFERED=1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	res := models.CodeExecutionOutput{Stdout: stdout.String(), Stderr: stderr.String()}
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		res.ExitCode = -1
		res.TimedOut = true
		res.Stderr += fmt.Sprintf("\nexecution timed out after %s", e.cfg.Timeout)
		hlog.CtxWarnf(ctx, "python execution timed out: file=%s timeout=%s", filepath.Base(path), e.cfg.Timeout)
		return res
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			res.Stderr += err.Error()
		}
	}

	hlog.CtxDebugf(ctx, "python executed: file=%s exit_code=%d duration=%s", filepath.Base(path), res.ExitCode, duration)
	return res
}

// ExtractBlocks returns the Python sources inside markdown fences, or the
// whole text when it has no fences.
func ExtractBlocks(text string) ([]string, error) {
	matches := fenceRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		if strings.TrimSpace(text) == "" {
			return nil, ErrNoCode
		}
		return []string{text}, nil
	}

	var blocks []string
	for _, m := range matches {
		switch strings.ToLower(m[1]) {
		case "", "python", "py", "python3":
			if strings.TrimSpace(m[2]) != "" {
				blocks = append(blocks, m[2])
			}
		}
	}
	if len(blocks) == 0 {
		return nil, ErrNoCode
	}
	return blocks, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("\n... (%d bytes truncated)", len(s)-cut)
}
