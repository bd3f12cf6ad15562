package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Someblueman/codecomment/internal/commenter"
	"github.com/Someblueman/codecomment/internal/llm"
	"github.com/Someblueman/codecomment/internal/settings"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingNotifier) Notify(title, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, title+": "+message)
}

func (r *recordingNotifier) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

type gateAnnotator struct {
	release chan struct{}
}

func (g *gateAnnotator) Annotate(ctx context.Context, source string, style commenter.Style) (commenter.Result, error) {
	<-g.release
	return commenter.Result{Text: "# done\n" + source}, nil
}

func fakeFactory(gen llm.Generator) AnnotatorFactory {
	return func(apiKey string) (Annotator, error) {
		if err := llm.ValidateAPIKey(apiKey); err != nil {
			return nil, err
		}
		return commenter.NewPipeline(commenter.NewSynthesizer(gen, ""), commenter.Splicer{}, nil), nil
	}
}

func startSession(t *testing.T, opts Options) *Session {
	t.Helper()
	t.Setenv(settings.EnvAPIKey, "")
	s, err := New(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return s
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestProcessWritesOutput(t *testing.T) {
	ctx := waitCtx(t)
	s := startSession(t, Options{Factory: fakeFactory(llm.NewFakeClient("Adds one to the input."))})

	require.NoError(t, s.SetCredential(ctx, "test-key"))
	require.NoError(t, s.SetStyle(ctx, "brief"))
	require.NoError(t, s.SetInput(ctx, "def f(x):\n    return x + 1\n"))

	batch, err := s.Process(ctx)
	require.NoError(t, err)
	res, err := batch.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "# Adds one to the input.\ndef f(x):\n    return x + 1", res.Text)

	v, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Text, v.Output)
	assert.Equal(t, StatusComplete, v.Status)
	assert.Equal(t, commenter.StyleBrief, v.Style)
	assert.False(t, v.Busy)
}

func TestProcessRejectsReentry(t *testing.T) {
	ctx := waitCtx(t)
	gate := &gateAnnotator{release: make(chan struct{})}
	s := startSession(t, Options{Factory: func(string) (Annotator, error) { return gate, nil }})

	require.NoError(t, s.SetCredential(ctx, "k"))
	require.NoError(t, s.LoadSample(ctx))

	first, err := s.Process(ctx)
	require.NoError(t, err)

	second, err := s.Process(ctx)
	assert.Nil(t, second)
	require.ErrorIs(t, err, ErrBusy)

	v, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, v.Busy)
	assert.Equal(t, StatusProcessing, v.Status)

	close(gate.release)
	<-first.Done()

	v, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, v.Busy)
	assert.Equal(t, "# done\n"+commenter.SampleSource, v.Output)

	third, err := s.Process(ctx)
	require.NoError(t, err)
	_, err = third.Wait(ctx)
	require.NoError(t, err)
}

func TestFailedBatchLeavesOutputUntouched(t *testing.T) {
	ctx := waitCtx(t)
	notifier := &recordingNotifier{}
	gen := &llm.FakeClient{Reply: "Adds one."}
	s := startSession(t, Options{Factory: fakeFactory(gen), Notifier: notifier})

	require.NoError(t, s.SetCredential(ctx, "k"))
	require.NoError(t, s.SetInput(ctx, "def f(x):\n    return x + 1"))
	batch, err := s.Process(ctx)
	require.NoError(t, err)
	good, err := batch.Wait(ctx)
	require.NoError(t, err)

	gen.Respond = func(int, llm.Request) (string, error) { return "", errors.New("service unavailable") }
	require.NoError(t, s.LoadSample(ctx))
	batch, err = s.Process(ctx)
	require.NoError(t, err)
	res, err := batch.Wait(ctx)

	var svcErr *commenter.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, commenter.Result{}, res)

	v, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, good.Text, v.Output)
	assert.Equal(t, StatusError, v.Status)
	assert.False(t, v.Busy)

	msgs := notifier.all()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "service unavailable")
}

func TestProcessParseErrorIsNotified(t *testing.T) {
	ctx := waitCtx(t)
	notifier := &recordingNotifier{}
	gen := llm.NewFakeClient("never")
	s := startSession(t, Options{Factory: fakeFactory(gen), Notifier: notifier})

	require.NoError(t, s.SetCredential(ctx, "k"))
	require.NoError(t, s.SetInput(ctx, "def broken(:\n"))
	batch, err := s.Process(ctx)
	require.NoError(t, err)
	_, err = batch.Wait(ctx)

	var parseErr *commenter.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Zero(t, gen.Calls())
	assert.Len(t, notifier.all(), 1)
}

func TestProcessWithoutCredentialFailsFast(t *testing.T) {
	ctx := waitCtx(t)
	notifier := &recordingNotifier{}
	s := startSession(t, Options{Factory: fakeFactory(llm.NewFakeClient("x")), Notifier: notifier})
	require.NoError(t, s.LoadSample(ctx))

	batch, err := s.Process(ctx)
	assert.Nil(t, batch)
	var authErr *commenter.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Len(t, notifier.all(), 1)

	v, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, v.Status)
	assert.False(t, v.Busy)
}

func TestProcessEmptyInput(t *testing.T) {
	ctx := waitCtx(t)
	s := startSession(t, Options{Factory: fakeFactory(llm.NewFakeClient("x"))})
	require.NoError(t, s.SetCredential(ctx, "k"))
	require.NoError(t, s.SetInput(ctx, "  \n\t\n"))

	batch, err := s.Process(ctx)
	assert.Nil(t, batch)
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestSetCredentialRejectsInvalidKey(t *testing.T) {
	ctx := waitCtx(t)
	s := startSession(t, Options{Factory: fakeFactory(llm.NewFakeClient("x"))})

	var authErr *commenter.AuthenticationError
	require.ErrorAs(t, s.SetCredential(ctx, "   "), &authErr)

	v, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, v.Status)
}

func TestClearAndStyle(t *testing.T) {
	ctx := waitCtx(t)
	s := startSession(t, Options{})

	require.NoError(t, s.LoadSample(ctx))
	v, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, commenter.SampleSource, v.Input)
	assert.Equal(t, commenter.DefaultStyle, v.Style)

	require.ErrorIs(t, s.SetStyle(ctx, "loud"), commenter.ErrUnknownStyle)

	require.NoError(t, s.Clear(ctx))
	v, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, v.Input)
	assert.Empty(t, v.Output)
	assert.Equal(t, StatusReady, v.Status)
}

func TestSettingsArePersisted(t *testing.T) {
	ctx := waitCtx(t)
	path := filepath.Join(t.TempDir(), settings.FileName)
	store := settings.NewStore(path, false, nil)

	var seen []string
	factory := func(key string) (Annotator, error) {
		seen = append(seen, key)
		return &gateAnnotator{}, nil
	}

	s := startSession(t, Options{Factory: factory, Store: store})
	require.NoError(t, s.SetCredential(ctx, "persisted-key"))
	theme, err := s.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.ThemeDark, theme)

	v, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.ThemeDark, v.Theme)
	assert.Equal(t, StatusKeyUpdated, v.Status)

	reloaded := startSession(t, Options{Factory: factory, Store: store})
	v, err = reloaded.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.ThemeDark, v.Theme)
	assert.Equal(t, []string{"persisted-key", "persisted-key"}, seen)
}

func TestOpenAndSave(t *testing.T) {
	ctx := waitCtx(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "in.py")
	require.NoError(t, os.WriteFile(src, []byte("for x in y:\n    pass\n"), 0o644))

	s := startSession(t, Options{Factory: fakeFactory(llm.NewFakeClient("Iterates."))})
	require.NoError(t, s.SetCredential(ctx, "k"))
	require.NoError(t, s.Open(ctx, src))

	batch, err := s.Process(ctx)
	require.NoError(t, err)
	_, err = batch.Wait(ctx)
	require.NoError(t, err)

	written, err := s.Save(ctx, filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out.py"), written)

	data, err := os.ReadFile(written)
	require.NoError(t, err)
	assert.Equal(t, "# Iterates.\nfor x in y:\n    pass\n", string(data))

	require.Error(t, s.Open(ctx, filepath.Join(dir, "missing.py")))
}

func TestSaveTerminatesLastLine(t *testing.T) {
	ctx := waitCtx(t)
	dir := t.TempDir()

	s := startSession(t, Options{Factory: fakeFactory(llm.NewFakeClient("Iterates."))})
	require.NoError(t, s.SetCredential(ctx, "k"))
	require.NoError(t, s.SetInput(ctx, "for x in y:\r\n    pass\r\n"))
	batch, err := s.Process(ctx)
	require.NoError(t, err)
	_, err = batch.Wait(ctx)
	require.NoError(t, err)

	written, err := s.Save(ctx, filepath.Join(dir, "crlf.py"))
	require.NoError(t, err)
	data, err := os.ReadFile(written)
	require.NoError(t, err)
	assert.Equal(t, "# Iterates.\r\nfor x in y:\r\n    pass\r\n", string(data))

	assert.Equal(t, "", withFinalNewline(""))
	assert.Equal(t, "a\n", withFinalNewline("a"))
	assert.Equal(t, "a\n", withFinalNewline("a\n"))
}

func TestRunStopsAndRejectsLaterCalls(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.NoError(t, s.SetInput(context.Background(), "x = 1"))
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	require.ErrorIs(t, s.SetInput(context.Background(), "y"), ErrClosed)
	require.ErrorIs(t, s.Run(context.Background()), ErrClosed)
}

func TestBatchWaitHonoursContext(t *testing.T) {
	b := newBatch()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)

	b.resolve(commenter.Result{Text: "a"}, nil)
	b.resolve(commenter.Result{Text: "b"}, nil)
	res, err := b.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", res.Text)
}
