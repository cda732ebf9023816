package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/kaimana-labs/statebench/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded pipeline runs",
		Long:  `List runs stored in the local database and show the latest series for a metric.`,
	}

	cmd.AddCommand(listRunsCmd())
	cmd.AddCommand(showRunCmd())

	return cmd
}

func listRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		RunE: func(c *cobra.Command, _ []string) error {
			ctx := c.Context()

			store, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListRuns(ctx, viper.GetString("runs.metric"))
			if err != nil {
				return err
			}

			if len(runs) == 0 {
				fmt.Println(cli.InfoStyle.Render("No runs recorded yet. Use 'statebench build' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				headerStyle.Render("ID"),
				headerStyle.Render("Metric"),
				headerStyle.Render("Generated"),
				headerStyle.Render("Years"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 4),
				strings.Repeat("-", 36),
				strings.Repeat("-", 20),
				strings.Repeat("-", 5))

			for _, run := range runs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n",
					run.ID, run.MetricID, run.GeneratedAt.Format("2006-01-02 15:04:05"), run.YearCount)
			}

			return nil
		},
	}

	cmd.Flags().StringP("metric", "m", "", "Only list runs for this metric ID")
	_ = viper.BindPFlag("runs.metric", cmd.Flags().Lookup("metric"))

	return cmd
}

func showRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <metric-id>",
		Short: "Show the latest stored series for a metric",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()

			store, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			series, err := store.GetLatestRun(ctx, args[0])
			if err != nil {
				return err
			}

			var b strings.Builder
			w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Year\t%s\tPeer Avg\n", series.Target.Name())
			for i, year := range series.Years {
				fmt.Fprintf(w, "%d\t%s\t%s\n", year,
					formatValue(series.TargetValues[i]),
					formatValue(series.PeerValues[i]))
			}
			_ = w.Flush()

			title := fmt.Sprintf("%s (%s)", series.Title, series.GeneratedAt.Format("2006-01-02"))
			fmt.Println(cli.RenderBox(title, strings.TrimRight(b.String(), "\n")))
			return nil
		},
	}
}

func formatValue(v *float64) string {
	if v == nil {
		return "—"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
