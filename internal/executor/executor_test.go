package executor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func TestExtractBlocks(t *testing.T) {
	blocks, err := ExtractBlocks("print(1)")
	require.NoError(t, err)
	assert.Equal(t, []string{"print(1)"}, blocks)

	md := "Here:\n```python\nprint('a')\n```\nand\n```bash\nls\n```\n```\nprint('b')\n```"
	blocks, err = ExtractBlocks(md)
	require.NoError(t, err)
	assert.Equal(t, []string{"print('a')\n", "print('b')\n"}, blocks)

	_, err = ExtractBlocks("```sh\nrm -rf /\n```")
	assert.ErrorIs(t, err, ErrNoCode)

	_, err = ExtractBlocks("  \n")
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestNewCreatesWorkDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "analysis")
	e, err := New(Config{WorkDir: dir})
	require.NoError(t, err)

	info, err := os.Stat(e.WorkDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = New(Config{})
	assert.Error(t, err)
}

func TestExecuteRejectsEscape(t *testing.T) {
	e, err := New(Config{WorkDir: t.TempDir()})
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), "```python\n# filename: ../evil.py\nprint('x')\n```")
	assert.ErrorIs(t, err, ErrWorkDirEscape)
}

func TestExecutePython(t *testing.T) {
	requirePython(t)
	dir := t.TempDir()
	e, err := New(Config{WorkDir: dir, Timeout: 10 * time.Second})
	require.NoError(t, err)

	out, err := e.Execute(context.Background(), "```python\n# filename: hello.py\nprint('hello from python')\n```")
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
	assert.Contains(t, out.Stdout, "hello from python")
	assert.FileExists(t, filepath.Join(dir, "hello.py"))
}

func TestExecuteStopsOnFailure(t *testing.T) {
	requirePython(t)
	e, err := New(Config{WorkDir: t.TempDir(), Timeout: 10 * time.Second})
	require.NoError(t, err)

	code := "```python\nimport sys\nsys.exit(3)\n```\n```python\nprint('unreachable')\n```"
	out, err := e.Execute(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, 3, out.ExitCode)
	assert.NotContains(t, out.Stdout, "unreachable")
}

func TestExecuteTimeout(t *testing.T) {
	requirePython(t)
	e, err := New(Config{WorkDir: t.TempDir(), Timeout: 200 * time.Millisecond})
	require.NoError(t, err)

	out, err := e.Execute(context.Background(), "import time\ntime.sleep(5)")
	require.NoError(t, err)
	assert.True(t, out.TimedOut)
	assert.Equal(t, -1, out.ExitCode)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab\n... (1 bytes truncated)", truncate("abc", 2))

	// "€" is three bytes; a cut inside it backs off to the rune start.
	got := truncate("a€b", 2)
	assert.Equal(t, "a\n... (4 bytes truncated)", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "a€\n... (1 bytes truncated)", truncate("a€b", 4))
}
