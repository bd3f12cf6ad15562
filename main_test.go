package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Someblueman/codecomment/internal/commenter"
	"github.com/Someblueman/codecomment/internal/llm"
	"github.com/Someblueman/codecomment/internal/logging"
	"github.com/Someblueman/codecomment/internal/settings"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliResult struct {
	stdout string
	stderr string
	err    error
}

type harness struct {
	t        *testing.T
	fake     *llm.FakeClient
	settings string
	keys     []string
}

func newHarness(t *testing.T, reply string) *harness {
	t.Helper()
	t.Setenv(settings.EnvAPIKey, "")
	t.Setenv(envModel, "")
	return &harness{
		t:        t,
		fake:     llm.NewFakeClient(reply),
		settings: filepath.Join(t.TempDir(), settings.FileName),
	}
}

func (h *harness) run(stdin string, args ...string) cliResult {
	h.t.Helper()
	a := newApp()
	a.log = logging.Nop()
	a.newGenerator = func(ctx context.Context, apiKey, model string) (llm.Generator, error) {
		if err := llm.ValidateAPIKey(apiKey); err != nil {
			return nil, err
		}
		h.keys = append(h.keys, apiKey)
		return h.fake, nil
	}

	var stdout, stderr bytes.Buffer
	root := newRootCmd(a)
	root.SetArgs(append([]string{"--settings", h.settings}, args...))
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestAnnotateStdin(t *testing.T) {
	h := newHarness(t, "Adds one to the input.")
	t.Setenv(settings.EnvAPIKey, "env-key")

	res := h.run("def f(x):\n    return x + 1\n", "annotate", "--style", "brief")
	require.NoError(t, res.err)
	assert.Equal(t, "# Adds one to the input.\ndef f(x):\n    return x + 1\n", res.stdout)
	assert.Equal(t, []string{"env-key"}, h.keys)

	reqs := h.fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, llm.DefaultModel, reqs[0].Model)
	assert.Contains(t, reqs[0].User, "Generate a brief comment for this function:")
}

func TestAnnotateFileToOutput(t *testing.T) {
	h := newHarness(t, "Explains the construct.")
	t.Setenv(settings.EnvAPIKey, "env-key")
	t.Setenv(envModel, "custom-model")

	dir := t.TempDir()
	src := filepath.Join(dir, "sample.py")
	require.NoError(t, os.WriteFile(src, []byte(commenter.SampleSource), 0o644))

	res := h.run("", "annotate", src, "--out", filepath.Join(dir, "annotated"), "--indent")
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout)
	assert.Contains(t, res.stderr, "annotated.py (6 comments)")

	data, err := os.ReadFile(filepath.Join(dir, "annotated.py"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "return result\n"))
	lines := strings.Split(string(data), "\n")
	assert.Equal(t, "# Explains the construct.", lines[0])
	assert.Equal(t, "    # Explains the construct.", lines[3])
	assert.Equal(t, "    for i in range(2, n):", lines[4])

	for _, req := range h.fake.Requests() {
		assert.Equal(t, "custom-model", req.Model)
	}
}

func TestAnnotateWithoutKeyFails(t *testing.T) {
	h := newHarness(t, "unused")
	res := h.run("x = 1\n", "annotate")

	var authErr *commenter.AuthenticationError
	require.ErrorAs(t, res.err, &authErr)
	assert.Equal(t, 1, exitCode(res.err))
	assert.Zero(t, h.fake.Calls())
}

func TestAnnotateParseErrorExitCode(t *testing.T) {
	h := newHarness(t, "unused")
	t.Setenv(settings.EnvAPIKey, "env-key")

	res := h.run("def broken(:\n", "annotate")
	var parseErr *commenter.ParseError
	require.ErrorAs(t, res.err, &parseErr)
	assert.Equal(t, 2, exitCode(res.err))
	assert.Zero(t, h.fake.Calls())
}

func TestAnnotateServiceErrorPrintsNothing(t *testing.T) {
	h := newHarness(t, "")
	h.fake.Err = errors.New("quota exceeded")
	t.Setenv(settings.EnvAPIKey, "env-key")

	res := h.run(commenter.SampleSource, "annotate")
	var svcErr *commenter.ServiceError
	require.ErrorAs(t, res.err, &svcErr)
	assert.Empty(t, res.stdout)
	assert.Equal(t, 1, h.fake.Calls())
}

func TestAnnotateRejectsUnknownStyle(t *testing.T) {
	h := newHarness(t, "unused")
	res := h.run("x = 1\n", "annotate", "--style", "poetic")
	require.ErrorIs(t, res.err, commenter.ErrUnknownStyle)
}

func TestOutlineAndSample(t *testing.T) {
	h := newHarness(t, "unused")

	res := h.run("", "sample")
	require.NoError(t, res.err)
	assert.Equal(t, commenter.SampleSource+"\n", res.stdout)

	res = h.run(commenter.SampleSource, "outline")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "| 11 | function | process | self |")
	assert.Zero(t, h.fake.Calls())

	res = h.run("class :\n", "outline")
	assert.Equal(t, 2, exitCode(res.err))
}

func TestKeyAndThemeCommands(t *testing.T) {
	h := newHarness(t, "Adds one.")

	res := h.run("stored-key\n", "key", "set")
	require.NoError(t, res.err)
	assert.Equal(t, "API key updated\n", res.stdout)

	res = h.run("", "theme", "toggle")
	require.NoError(t, res.err)
	assert.Equal(t, "dark\n", res.stdout)

	res = h.run("", "theme")
	require.NoError(t, res.err)
	assert.Equal(t, "dark\n", res.stdout)

	res = h.run("def f(x):\n    return x + 1\n", "annotate")
	require.NoError(t, res.err)
	assert.True(t, strings.HasPrefix(res.stdout, "# Adds one.\n"))

	res = h.run("", "key", "clear")
	require.NoError(t, res.err)
	st, err := settings.NewStore(h.settings, false, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, settings.Settings{Theme: settings.ThemeDark}, st)

	res = h.run("", "key", "set", "   ")
	var authErr *commenter.AuthenticationError
	require.ErrorAs(t, res.err, &authErr)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(errors.Wrap(&commenter.ParseError{Line: 1, Column: 1, Message: "x"}, "annotate")))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}
