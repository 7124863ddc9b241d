// Package cli wires the studio command tree. Every command shares one App,
// built once per invocation from configuration and torn down afterwards.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/virail/studio/internal/analyzer"
	"github.com/virail/studio/internal/notify"
	"github.com/virail/studio/internal/platform/config"
	"github.com/virail/studio/internal/platform/errs"
	"github.com/virail/studio/internal/platform/logger"
	"github.com/virail/studio/internal/present"
	"github.com/virail/studio/internal/session"
	"github.com/virail/studio/internal/studio"
)

// ErrReported marks a failure that has already been shown to the user.
var ErrReported = errors.New("cli: error already reported")

// App holds what commands share for one invocation.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	client   *studio.Client
	session  *session.Session
	notifier notify.Notifier
	metrics  analyzer.MetricsRecorder

	out    io.Writer
	errOut io.Writer
	format outputFormat

	configFile string
	output     string
	verbose    bool
}

// NewRootCmd builds the studio command tree.
func NewRootCmd() *cobra.Command {
	app := &App{}

	root := &cobra.Command{
		Use:   "studio",
		Short: "Virail Studio from the command line",
		Long: `studio analyzes websites and documents with Virail Studio, compares sites
against their competitors, and manages your account, plan, and usage.

Configuration is read from STUDIO_* environment variables, a .env file, and
studio.yaml in the working directory or the user config directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if app.logger != nil {
				_ = app.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.configFile, "config", "", "path to a config file (default: studio.yaml)")
	flags.StringVarP(&app.output, "output", "o", "text", "output format: text, json, or yaml")
	flags.BoolVarP(&app.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newAnalyzeCmd(app),
		newServeCmd(app),
		newLoginCmd(app),
		newRegisterCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newAnalysesCmd(app),
		newCompetitorsCmd(app),
		newPlansCmd(app),
		newSubscriptionCmd(app),
		newUsageCmd(app),
	)
	return root
}

func (a *App) init(cmd *cobra.Command) error {
	format, err := parseOutputFormat(a.output)
	if err != nil {
		return err
	}
	a.format = format
	a.out, a.errOut = cmd.OutOrStdout(), cmd.ErrOrStderr()

	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.verbose {
		level = "DEBUG"
	}
	a.logger = logger.New(level)
	a.metrics = analyzer.NewMetricsRecorder(a.logger)
	a.notifier = notify.Multi{notify.NewTerminal(a.errOut), notify.NewLogger(a.logger)}

	a.session = session.New(cfg.SessionFile, a.logger)
	if err := a.session.Open(); err != nil {
		a.logger.Warn("session not restored", zap.Error(err))
	}

	a.client, err = studio.NewClient(cfg.APIURL,
		studio.WithLogger(a.logger),
		studio.WithRateLimit(cfg.RateLimit),
		studio.WithTimeout(cfg.RequestTimeout),
		studio.WithTokenSource(a.session),
	)
	return err
}

// newController returns a controller for one analysis at a time. Its failure
// toasts go only to the log since commands render the full presentation.
func (a *App) newController() *analyzer.Controller {
	return analyzer.NewController(a.client,
		analyzer.WithLogger(a.logger),
		analyzer.WithMetrics(a.metrics),
		analyzer.WithNotifier(notify.NewLogger(a.logger)),
	)
}

// fail classifies err, shows it, and returns ErrReported. Validation errors
// and cancellation are returned untouched.
func (a *App) fail(err error, subjectURL string, opts ...present.Option) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, studio.ErrInvalidInput) || errors.Is(err, analyzer.ErrInvalidInput) ||
		errors.Is(err, context.Canceled) {
		return err
	}
	aerr := errs.Classify(err, subjectURL)
	a.logger.Debug("command failed",
		zap.Stringer("kind", aerr.Kind),
		zap.String("original_error", aerr.OriginalError),
	)
	if a.format != formatText {
		_ = a.write(aerr, nil)
		return ErrReported
	}
	if rerr := present.Render(a.errOut, present.Present(aerr, opts...)); rerr != nil {
		return errors.Join(aerr, rerr)
	}
	return ErrReported
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrReported):
		return 1
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "Interrupted.")
		return 130
	default:
		fmt.Fprintf(stderr, "Error: %s\n", strings.TrimPrefix(err.Error(), "studio: "))
		return 1
	}
}

// isTerminal reports whether stream, an input or output, is an interactive
// terminal.
func isTerminal(stream any) bool {
	f, ok := stream.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}
