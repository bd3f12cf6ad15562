// Package session owns the editable state of one commenting session: the
// input and output panes, the status line, the style and the theme. A single
// event loop applies every change; annotation batches run on a background
// goroutine and report back to the loop.
package session

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/Someblueman/codecomment/internal/commenter"
	"github.com/Someblueman/codecomment/internal/settings"
	"github.com/cockroachdb/errors"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// Status line texts.
const (
	StatusReady      = "Ready"
	StatusProcessing = "Processing code..."
	StatusComplete   = "Code processing completed"
	StatusError      = "Error occurred during processing"
	StatusKeyUpdated = "API key updated"
)

const (
	stateIdle       = "idle"
	stateProcessing = "processing"
	eventStart      = "start"
	eventFinish     = "finish"
)

var (
	// ErrBusy is returned by Process while a batch is still running.
	ErrBusy = errors.New("a batch is already being processed")
	// ErrEmptyInput is returned by Process when the input pane is blank.
	ErrEmptyInput = errors.New("no source to process")
	// ErrClosed is returned once the event loop has stopped.
	ErrClosed = errors.New("session closed")
)

// Annotator turns source text into annotated source text.
// *commenter.Pipeline satisfies it.
type Annotator interface {
	Annotate(ctx context.Context, source string, style commenter.Style) (commenter.Result, error)
}

// AnnotatorFactory builds an Annotator for a credential. It returns
// *commenter.AuthenticationError for an unusable credential.
type AnnotatorFactory func(apiKey string) (Annotator, error)

// Notifier presents an error to the user and returns once it was shown.
type Notifier interface {
	Notify(title, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(title, message string)

func (f NotifierFunc) Notify(title, message string) { f(title, message) }

// View is a snapshot of the displayed state.
type View struct {
	Input  string
	Output string
	Status string
	Style  commenter.Style
	Theme  settings.Theme
	Busy   bool
}

// Options configures a Session.
type Options struct {
	Factory AnnotatorFactory
	// Store persists the credential and theme. Nil keeps them in memory.
	Store    *settings.Store
	Notifier Notifier
	Logger   *zap.SugaredLogger
}

// Session is the controller behind one window or CLI invocation.
type Session struct {
	factory  AnnotatorFactory
	store    *settings.Store
	notifier Notifier
	log      *zap.SugaredLogger

	events  chan func()
	done    chan struct{}
	runOnce sync.Once

	// Owned by the event loop.
	machine   *fsm.FSM
	view      View
	settings  settings.Settings
	annotator Annotator
}

// New loads settings and, when a credential is available, builds the
// annotator. A credential the factory rejects is logged and left unset so
// Process reports it.
func New(opts Options) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Session{
		factory:  opts.Factory,
		store:    opts.Store,
		notifier: opts.Notifier,
		log:      log,
		events:   make(chan func()),
		done:     make(chan struct{}),
		settings: settings.Defaults(),
	}
	if s.notifier == nil {
		s.notifier = NotifierFunc(func(title, message string) {
			log.Errorw("notification", "title", title, "message", message)
		})
	}

	if s.store != nil {
		st, err := s.store.Load()
		if err != nil {
			return nil, errors.Wrap(err, "load settings")
		}
		s.settings = st
	}
	if key := s.settings.APIKey(); key != "" {
		annotator, err := s.buildAnnotator(key)
		if err != nil {
			log.Warnw("stored credential rejected", "error", err)
		} else {
			s.annotator = annotator
		}
	}

	s.view = View{
		Status: StatusReady,
		Style:  commenter.DefaultStyle,
		Theme:  s.settings.Theme,
	}
	s.machine = fsm.NewFSM(
		stateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{stateIdle}, Dst: stateProcessing},
			{Name: eventFinish, Src: []string{stateProcessing}, Dst: stateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debugw("session state", "event", e.Event, "from", e.Src, "to", e.Dst)
			},
		},
	)
	return s, nil
}

// Run processes posted events until ctx is done. It must be called exactly
// once; later calls return ErrClosed.
func (s *Session) Run(ctx context.Context) error {
	started := false
	s.runOnce.Do(func() { started = true })
	if !started {
		return ErrClosed
	}
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-s.events:
			fn()
		}
	}
}

// post runs fn on the event loop and waits for it to return.
func (s *Session) post(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case s.events <- wrapped:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Snapshot returns the current view.
func (s *Session) Snapshot(ctx context.Context) (View, error) {
	var v View
	err := s.post(ctx, func() {
		v = s.view
		v.Busy = s.machine.Current() == stateProcessing
	})
	return v, err
}

// SetInput replaces the input pane.
func (s *Session) SetInput(ctx context.Context, text string) error {
	return s.post(ctx, func() { s.view.Input = text })
}

// LoadSample replaces the input pane with the built-in sample.
func (s *Session) LoadSample(ctx context.Context) error {
	return s.SetInput(ctx, commenter.SampleSource)
}

// Clear empties both panes and resets the status line.
func (s *Session) Clear(ctx context.Context) error {
	return s.post(ctx, func() {
		s.view.Input = ""
		s.view.Output = ""
		s.view.Status = StatusReady
	})
}

// SetStyle selects the comment style for later batches.
func (s *Session) SetStyle(ctx context.Context, raw string) error {
	style, err := commenter.ParseStyle(raw)
	if err != nil {
		return err
	}
	return s.post(ctx, func() { s.view.Style = style })
}

// Open reads path into the input pane.
func (s *Session) Open(ctx context.Context, path string) error {
	if !commenter.IsSourcePath(path) {
		s.log.Warnw("file does not look like Python source", "path", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	return s.SetInput(ctx, string(data))
}

// Save writes the output pane to path, adding the default suffix when path
// has no extension, and returns the path written.
func (s *Session) Save(ctx context.Context, path string) (string, error) {
	v, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	path = commenter.WithDefaultSuffix(path)
	if err := os.WriteFile(path, []byte(withFinalNewline(v.Output)), 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}

// withFinalNewline terminates the last line of non-empty text, using CRLF when
// the text already does.
func withFinalNewline(text string) string {
	if text == "" || strings.HasSuffix(text, "\n") {
		return text
	}
	if strings.Contains(text, "\r\n") {
		return text + "\r\n"
	}
	return text + "\n"
}

// SetCredential validates key by building an annotator for it, then stores it.
func (s *Session) SetCredential(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	annotator, err := s.buildAnnotator(key)
	if err != nil {
		return err
	}

	var saveErr error
	err = s.post(ctx, func() {
		next := s.settings
		next.Credential = key
		if s.store != nil {
			if saveErr = s.store.Save(next); saveErr != nil {
				return
			}
		}
		s.settings = next
		s.annotator = annotator
		s.view.Status = StatusKeyUpdated
	})
	if err != nil {
		return err
	}
	return saveErr
}

// ToggleTheme flips the theme, persists it and returns the new value.
func (s *Session) ToggleTheme(ctx context.Context) (settings.Theme, error) {
	var (
		theme   settings.Theme
		saveErr error
	)
	err := s.post(ctx, func() {
		next := s.settings
		next.Theme = next.Theme.Toggle()
		if s.store != nil {
			if saveErr = s.store.Save(next); saveErr != nil {
				return
			}
		}
		s.settings = next
		s.view.Theme = next.Theme
		theme = next.Theme
	})
	if err != nil {
		return "", err
	}
	return theme, saveErr
}

// Process starts a batch over a snapshot of the input pane. It fails fast
// without a credential, returns ErrEmptyInput for a blank pane and ErrBusy
// while another batch runs.
func (s *Session) Process(ctx context.Context) (*Batch, error) {
	var (
		batch *Batch
		err   error
	)
	postErr := s.post(ctx, func() {
		if s.annotator == nil {
			err = &commenter.AuthenticationError{Reason: "set an API key first"}
			s.notifier.Notify("Error", "Please set your API key first")
			return
		}
		input := strings.TrimSpace(s.view.Input)
		if input == "" {
			err = ErrEmptyInput
			return
		}
		if !s.machine.Can(eventStart) {
			err = ErrBusy
			return
		}
		if err = s.machine.Event(context.Background(), eventStart); err != nil {
			err = errors.Wrap(err, "start batch")
			return
		}
		s.view.Status = StatusProcessing

		batch = newBatch()
		go s.work(batch, s.annotator, input, s.view.Style)
	})
	if postErr != nil {
		return nil, postErr
	}
	return batch, err
}

func (s *Session) work(b *Batch, annotator Annotator, input string, style commenter.Style) {
	res, err := annotate(annotator, input, style)
	complete := func() { s.complete(b, res, err) }
	select {
	case s.events <- complete:
	case <-s.done:
		b.resolve(res, err)
	}
}

func annotate(annotator Annotator, input string, style commenter.Style) (res commenter.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = commenter.Result{}
			err = errors.Newf("annotation panicked: %v", r)
		}
	}()
	return annotator.Annotate(context.Background(), input, style)
}

// complete runs on the event loop.
func (s *Session) complete(b *Batch, res commenter.Result, err error) {
	if err != nil {
		s.view.Status = StatusError
		s.log.Errorw("batch failed", "error", err)
		s.notifier.Notify("Error", err.Error())
	} else {
		s.view.Output = res.Text
		s.view.Status = StatusComplete
		s.log.Infow("batch complete", "batch", res.BatchID, "comments", len(res.Comments))
	}
	if ferr := s.machine.Event(context.Background(), eventFinish); ferr != nil {
		s.log.Warnw("finish batch", "error", ferr)
	}
	b.resolve(res, err)
}

func (s *Session) buildAnnotator(key string) (Annotator, error) {
	if s.factory == nil {
		return nil, &commenter.AuthenticationError{Reason: "no comment service configured"}
	}
	annotator, err := s.factory(key)
	if err != nil {
		return nil, err
	}
	if annotator == nil {
		return nil, &commenter.AuthenticationError{Reason: "no comment service configured"}
	}
	return annotator, nil
}
