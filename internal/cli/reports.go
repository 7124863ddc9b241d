package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/virail/studio/internal/model"
)

func newAnalysesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyses",
		Short: "Browse past analyses",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := app.client.ListAnalyses(cmd.Context(), limit)
			if err != nil {
				return app.fail(err, "")
			}
			return app.write(items, func(w io.Writer) error {
				if len(items) == 0 {
					_, err := fmt.Fprintln(w, "No analyses yet.")
					return err
				}
				rows := make([][]string, 0, len(items))
				for _, a := range items {
					subject := a.URL
					if subject == "" {
						subject = a.FileName
					}
					rows = append(rows, []string{a.ID, subject, a.Status, formatScore(a.Score), a.CreatedAt.Format("2006-01-02 15:04")})
				}
				return table(w, []string{"ID", "Subject", "Status", "Score", "Created"}, rows)
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of analyses to list")

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show one analysis report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.client.GetAnalysis(cmd.Context(), args[0])
			if err != nil {
				return app.fail(err, "")
			}
			return app.write(result, func(w io.Writer) error { return printResult(w, result) })
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}

func newCompetitorsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "competitors",
		Short: "Compare a website against its competitors",
	}

	var rivals []string
	analyze := &cobra.Command{
		Use:     "analyze URL",
		Short:   "Run a competitive analysis",
		Example: "  studio competitors analyze https://mine.com -c https://a.com -c https://b.com",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := app.client.AnalyzeCompetitors(cmd.Context(), model.CompetitorAnalysisRequest{
				URL:         args[0],
				Competitors: rivals,
			})
			if err != nil {
				return app.fail(err, args[0])
			}
			return app.write(report, func(w io.Writer) error { return printCompetitors(w, report) })
		},
	}
	analyze.Flags().StringArrayVarP(&rivals, "competitor", "c", nil, "competitor URL (repeatable, up to 10)")

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show a competitive analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := app.client.GetCompetitorAnalysis(cmd.Context(), args[0])
			if err != nil {
				return app.fail(err, "")
			}
			return app.write(report, func(w io.Writer) error { return printCompetitors(w, report) })
		},
	}

	cmd.AddCommand(analyze, get)
	return cmd
}

func printCompetitors(w io.Writer, r *model.CompetitorAnalysis) error {
	if _, err := fmt.Fprintf(w, "Competitive analysis %s for %s (%s)\n\n", r.ID, r.URL, r.Status); err != nil {
		return err
	}
	rows := make([][]string, 0, len(r.Competitors))
	for _, c := range r.Competitors {
		rows = append(rows, []string{c.URL, formatScore(c.Score), strings.Join(c.Strengths, "; "), strings.Join(c.Gaps, "; ")})
	}
	return table(w, []string{"Competitor", "Score", "Strengths", "Gaps"}, rows)
}
