package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/virail/studio/internal/model"
	"github.com/virail/studio/internal/notify"
)

func newPlansCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List available plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plans, err := app.client.Plans(cmd.Context())
			if err != nil {
				return app.fail(err, "")
			}
			return app.write(plans, func(w io.Writer) error {
				rows := make([][]string, 0, len(plans))
				for _, p := range plans {
					limit := "unlimited"
					if p.AnalysesLimit >= 0 {
						limit = fmt.Sprintf("%d analyses", p.AnalysesLimit)
					}
					rows = append(rows, []string{p.ID, p.Name, formatPrice(p), limit})
				}
				return table(w, []string{"ID", "Plan", "Price", "Includes"}, rows)
			})
		},
	}
}

func formatPrice(p model.Plan) string {
	if p.PriceCents == 0 {
		return "free"
	}
	price := fmt.Sprintf("%d.%02d %s", p.PriceCents/100, p.PriceCents%100, strings.ToUpper(p.Currency))
	if p.Interval != "" {
		price += "/" + p.Interval
	}
	return price
}

func newSubscriptionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscription",
		Short: "Show or change your subscription",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sub, err := app.client.Subscription(cmd.Context())
			if err != nil {
				return app.fail(err, "")
			}
			return app.write(sub, func(w io.Writer) error { return printSubscription(w, sub) })
		},
	}

	subscribe := &cobra.Command{
		Use:   "subscribe PLAN_ID",
		Short: "Switch to a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := app.client.Subscribe(cmd.Context(), args[0])
			if err != nil {
				return app.fail(err, "")
			}
			return app.write(sub, func(w io.Writer) error { return printSubscription(w, sub) })
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel at the end of the current period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.client.CancelSubscription(cmd.Context()); err != nil {
				return app.fail(err, "")
			}
			return app.notifier.Notify(cmd.Context(), notify.Toast{
				Title:       "Subscription cancelled",
				Description: "Your plan stays active until the end of the current period.",
				Variant:     notify.Default,
			})
		},
	}

	cmd.AddCommand(subscribe, cancel)
	return cmd
}

func printSubscription(w io.Writer, s *model.Subscription) error {
	renews := "renews"
	if s.CancelAtEnd {
		renews = "ends"
	}
	_, err := fmt.Fprintf(w, "Plan %s (%s), %s %s\n", s.PlanID, s.Status, renews, s.CurrentPeriodEnd.Format("2006-01-02"))
	return err
}

func newUsageCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show usage for the current billing period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			usage, err := app.client.UsageLimits(cmd.Context())
			if err != nil {
				return app.fail(err, "")
			}
			return app.write(usage, func(w io.Writer) error {
				rows := [][]string{
					usageRow("Analyses", usage.Analyses),
					usageRow("Competitor analyses", usage.CompetitorAnalyses),
				}
				if err := table(w, []string{"Quota", "Usage", "Remaining"}, rows); err != nil {
					return err
				}
				_, err := fmt.Fprintf(w, "\nResets %s\n", usage.ResetsAt.Format("2006-01-02"))
				return err
			})
		},
	}
}

func usageRow(name string, u model.Usage) []string {
	remaining := "unlimited"
	switch {
	case u.Exhausted():
		remaining = "none (limit reached)"
	case u.Remaining() >= 0:
		remaining = fmt.Sprint(u.Remaining())
	}
	return []string{name, formatLimit(u.Used, u.Limit), remaining}
}
