package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/virail/studio/internal/analyzer"
	"github.com/virail/studio/internal/model"
	"github.com/virail/studio/internal/platform/errs"
	"github.com/virail/studio/internal/present"
)

type analyzeOptions struct {
	files       []string
	retries     int
	backoff     time.Duration
	concurrency int
	open        bool
}

func newAnalyzeCmd(app *App) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze [URL...]",
		Short: "Analyze websites or documents",
		Long: `Analyze one or more websites (by URL) or documents (with --file).

A single analysis shows simulated progress while it runs. Several inputs are
analyzed concurrently and summarized in a table.

Retryable failures (network, server, unknown) are re-run up to --retries
times. When a single analysis fails interactively you are offered a retry.`,
		Example: `  studio analyze https://example.com
  studio analyze --file report.pdf
  studio analyze https://a.com https://b.com --retries 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs := make([]analyzer.Input, 0, len(args)+len(opts.files))
			for _, u := range args {
				inputs = append(inputs, analyzer.WebsiteInput(u))
			}
			for _, f := range opts.files {
				inputs = append(inputs, fileInput(f))
			}
			if len(inputs) == 0 {
				return errors.New("nothing to analyze: pass a URL or --file")
			}
			if len(inputs) == 1 {
				return app.analyzeOne(cmd, inputs[0], opts)
			}
			return app.analyzeMany(cmd.Context(), inputs, opts)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&opts.files, "file", "f", nil, "document to analyze (repeatable)")
	f.IntVar(&opts.retries, "retries", 0, "re-run retryable failures this many times")
	f.DurationVar(&opts.backoff, "backoff", 2*time.Second, "wait before the first automatic retry (doubles each time)")
	f.IntVar(&opts.concurrency, "concurrency", 0, "analyses to run at once (default from config)")
	f.BoolVar(&opts.open, "open", false, "open the failing website in a browser")
	return cmd
}

func fileInput(path string) analyzer.Input {
	return analyzer.Input{File: &analyzer.FileInput{
		Name: path,
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}}
}

func (opts analyzeOptions) policy() analyzer.RetryPolicy {
	return analyzer.RetryPolicy{Attempts: max(opts.retries, 0), Backoff: opts.backoff}
}

func (a *App) analyzeOne(cmd *cobra.Command, in analyzer.Input, opts analyzeOptions) error {
	ctx := cmd.Context()
	ctrl := a.newController()
	interactive := isTerminal(cmd.InOrStdin()) && isTerminal(a.errOut)
	answers := bufio.NewReader(cmd.InOrStdin())

	for {
		result, err := a.runWithProgress(ctx, ctrl, in, opts.policy())
		if err == nil {
			return a.write(result, func(w io.Writer) error { return printResult(w, result) })
		}

		var aerr *errs.AnalysisError
		if !errors.As(err, &aerr) {
			return a.fail(err, in.URL)
		}
		if a.format != formatText {
			_ = a.write(aerr, nil)
			return ErrReported
		}

		retried := false
		p := present.Present(aerr, present.WithRetry(func(context.Context) error {
			if !ctrl.Retry() {
				return errors.New("this failure cannot be retried")
			}
			retried = true
			return nil
		}))
		if err := present.Render(a.errOut, p); err != nil {
			return err
		}

		if opts.open && p.OpenURL != nil {
			if err := p.OpenURL.Run(ctx); err != nil {
				a.logger.Warn("could not open browser", zap.Error(err))
			}
		}
		if p.Retry == nil || !interactive || !confirm(answers, a.errOut, "Try again?") {
			return ErrReported
		}
		if err := p.Retry.Run(ctx); err != nil || !retried {
			return ErrReported
		}
	}
}

func (a *App) runWithProgress(ctx context.Context, ctrl *analyzer.Controller, in analyzer.Input, policy analyzer.RetryPolicy) (*model.AnalysisResult, error) {
	if a.format != formatText || !isTerminal(a.errOut) {
		return analyzer.RunWithRetries(ctx, ctrl, in, policy)
	}

	states, cancel := ctrl.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		renderProgress(a.errOut, in.Subject(), states)
	}()

	result, err := analyzer.RunWithRetries(ctx, ctrl, in, policy)
	cancel()
	<-done
	return result, err
}

type batchItem struct {
	Subject string                `json:"subject" yaml:"subject"`
	Result  *model.AnalysisResult `json:"result,omitempty" yaml:"result,omitempty"`
	Error   *errs.AnalysisError   `json:"error,omitempty" yaml:"error,omitempty"`
	Invalid string                `json:"invalid,omitempty" yaml:"invalid,omitempty"`
}

func (a *App) analyzeMany(ctx context.Context, inputs []analyzer.Input, opts analyzeOptions) error {
	concurrency := opts.concurrency
	if concurrency <= 0 {
		concurrency = a.cfg.BatchConcurrency
	}

	batch := analyzer.Batch{
		NewController: a.newController,
		Concurrency:   concurrency,
		Retry:         opts.policy(),
	}
	outcomes, err := batch.Run(ctx, inputs)
	if err != nil {
		return err
	}

	items := make([]batchItem, len(outcomes))
	failed := 0
	for i, o := range outcomes {
		items[i] = batchItem{Subject: o.Input.Subject(), Result: o.Result}
		if o.Err == nil {
			continue
		}
		failed++
		var aerr *errs.AnalysisError
		switch {
		case errors.As(o.Err, &aerr):
			items[i].Error = aerr
		case errors.Is(o.Err, context.Canceled):
			return o.Err
		default:
			items[i].Invalid = o.Err.Error()
		}
	}

	if err := a.write(items, func(w io.Writer) error { return printBatch(w, items) }); err != nil {
		return err
	}
	if failed > 0 {
		return ErrReported
	}
	return nil
}

func printBatch(w io.Writer, items []batchItem) error {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		switch {
		case it.Result != nil:
			rows = append(rows, []string{it.Subject, it.Result.Status, formatScore(it.Result.Score), it.Result.ID})
		case it.Error != nil:
			p := present.Present(it.Error)
			rows = append(rows, []string{it.Subject, "failed", "-", p.Title})
		default:
			rows = append(rows, []string{it.Subject, "invalid", "-", it.Invalid})
		}
	}
	return table(w, []string{"Subject", "Status", "Score", "Detail"}, rows)
}

func printResult(w io.Writer, r *model.AnalysisResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis %s (%s)\n", r.ID, r.Status)
	fmt.Fprintf(&b, "Subject: %s\n", r.Subject())
	fmt.Fprintf(&b, "Score:   %s\n", formatScore(r.Score))
	if r.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Summary)
	}
	for _, s := range r.Sections {
		fmt.Fprintf(&b, "\n%s  %s\n", s.Title, faintStyle.Render(formatScore(s.Score)))
		for _, f := range s.Findings {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
		for _, rec := range s.Recommendations {
			fmt.Fprintf(&b, "  → %s\n", rec)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// confirm asks a yes/no question on w and reads the answer from r. Callers
// asking repeatedly share one reader.
func confirm(r *bufio.Reader, w io.Writer, question string) bool {
	_, _ = fmt.Fprintf(w, "%s [y/N] ", question)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
