package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Someblueman/codecomment/internal/commenter"
	"github.com/Someblueman/codecomment/internal/llm"
	"github.com/Someblueman/codecomment/internal/logging"
	"github.com/Someblueman/codecomment/internal/session"
	"github.com/Someblueman/codecomment/internal/settings"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const envModel = "CODECOMMENT_MODEL"

// generatorFunc builds the text generator for a credential.
type generatorFunc func(ctx context.Context, apiKey, model string) (llm.Generator, error)

type app struct {
	settingsPath string
	useKeyring   bool
	model        string
	verbose      bool
	rps          float64
	cacheSize    int

	newGenerator generatorFunc
	log          *zap.SugaredLogger
}

func newApp() *app {
	return &app{
		newGenerator: func(ctx context.Context, apiKey, model string) (llm.Generator, error) {
			return llm.NewGeminiClient(ctx, apiKey, model)
		},
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "codecomment",
		Short:         "Add generated comments above Python functions, classes and loops",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Sync(a.log)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.settingsPath, "settings", "", "Settings file (default "+settings.DefaultPath()+")")
	flags.BoolVar(&a.useKeyring, "keyring", false, "Keep the API key in the OS keyring")
	flags.StringVar(&a.model, "model", "", "Model name (default $"+envModel+" or "+llm.DefaultModel+")")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Verbose logging")
	flags.Float64Var(&a.rps, "rps", 0, "Maximum comment requests per second (0 = unlimited)")
	flags.IntVar(&a.cacheSize, "cache", 0, "Cache up to N identical comment requests (0 = off)")

	root.AddCommand(
		newAnnotateCmd(a),
		newOutlineCmd(),
		newSampleCmd(),
		newKeyCmd(a),
		newThemeCmd(a),
	)
	return root
}

func (a *app) setup() error {
	_ = godotenv.Load()

	if a.model == "" {
		a.model = strings.TrimSpace(os.Getenv(envModel))
	}
	if a.model == "" {
		a.model = llm.DefaultModel
	}
	if a.log == nil {
		logger, err := logging.New(logging.Options{Verbose: a.verbose})
		if err != nil {
			return err
		}
		a.log = logger
	}
	return nil
}

func (a *app) store() *settings.Store {
	return settings.NewStore(a.settingsPath, a.useKeyring, a.log)
}

func (a *app) factory(ctx context.Context, splicer commenter.Splicer) session.AnnotatorFactory {
	return func(apiKey string) (session.Annotator, error) {
		gen, err := a.newGenerator(ctx, apiKey, a.model)
		if err != nil {
			return nil, err
		}
		gen = llm.Wrap(gen, llm.RateLimit(a.rps, 1), llm.Cache(a.cacheSize))
		synth := commenter.NewSynthesizer(gen, a.model)
		return commenter.NewPipeline(synth, splicer, a.log), nil
	}
}

// withSession starts a session event loop for the duration of fn.
func (a *app) withSession(cmd *cobra.Command, splicer commenter.Splicer, fn func(ctx context.Context, s *session.Session) error) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := session.New(session.Options{
		Factory: a.factory(ctx, splicer),
		Store:   a.store(),
		Notifier: session.NotifierFunc(func(title, message string) {
			a.log.Debugw("notification", "title", title, "message", message)
		}),
		Logger: a.log,
	})
	if err != nil {
		return err
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = s.Run(ctx)
	}()
	err = fn(ctx, s)
	cancel()
	<-loopDone
	return err
}

func newAnnotateCmd(a *app) *cobra.Command {
	var (
		style  string
		out    string
		indent bool
	)
	cmd := &cobra.Command{
		Use:   "annotate [file]",
		Short: "Comment every function, class and loop (reads stdin without a file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := commenter.ParseStyle(style); err != nil {
				return err
			}
			splicer := commenter.Splicer{MatchIndent: indent}
			return a.withSession(cmd, splicer, func(ctx context.Context, s *session.Session) error {
				if len(args) == 1 {
					if err := s.Open(ctx, args[0]); err != nil {
						return err
					}
				} else {
					src, err := io.ReadAll(cmd.InOrStdin())
					if err != nil {
						return errors.Wrap(err, "read stdin")
					}
					if err := s.SetInput(ctx, string(src)); err != nil {
						return err
					}
				}
				if err := s.SetStyle(ctx, style); err != nil {
					return err
				}

				batch, err := s.Process(ctx)
				if err != nil {
					return err
				}
				res, err := batch.Wait(ctx)
				if err != nil {
					return err
				}

				if out == "" {
					fmt.Fprintln(cmd.OutOrStdout(), res.Text)
					return nil
				}
				path, err := s.Save(ctx, out)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%d comments)\n", path, len(res.Comments))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&style, "style", "s", string(commenter.DefaultStyle), "Comment style: brief, detailed or technical")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the result to this file instead of stdout")
	cmd.Flags().BoolVar(&indent, "indent", false, "Indent comments like the line they describe")
	return cmd
}

func newOutlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outline [file]",
		Short: "List the functions, classes and loops that would be commented",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args)
			if err != nil {
				return err
			}
			out, err := commenter.Outline(src)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newSampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Print a small Python sample to try annotate on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), commenter.SampleSource)
			return nil
		},
	}
}

func newKeyCmd(a *app) *cobra.Command {
	key := &cobra.Command{
		Use:   "key",
		Short: "Manage the API key",
	}
	key.AddCommand(
		&cobra.Command{
			Use:   "set [key]",
			Short: "Store the API key (prompts on stdin without an argument)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				value, err := readKey(cmd, args)
				if err != nil {
					return err
				}
				return a.withSession(cmd, commenter.Splicer{}, func(ctx context.Context, s *session.Session) error {
					if err := s.SetCredential(ctx, value); err != nil {
						return err
					}
					v, err := s.Snapshot(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), v.Status)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the stored API key",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := a.store().ClearCredential(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "API key cleared")
				return nil
			},
		},
	)
	return key
}

func newThemeCmd(a *app) *cobra.Command {
	theme := &cobra.Command{
		Use:   "theme",
		Short: "Show the stored theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store().Load()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.Theme)
			return nil
		},
	}
	theme.AddCommand(&cobra.Command{
		Use:   "toggle",
		Short: "Switch between light and dark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, commenter.Splicer{}, func(ctx context.Context, s *session.Session) error {
				next, err := s.ToggleTheme(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), next)
				return nil
			})
		},
	})
	return theme
}

func readSource(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", errors.Wrapf(err, "read %s", args[0])
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", errors.Wrap(err, "read stdin")
	}
	return string(data), nil
}

func readKey(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Enter your API key: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", errors.Wrap(err, "read key")
	}
	return strings.TrimSpace(line), nil
}
