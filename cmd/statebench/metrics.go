package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/kaimana-labs/statebench/internal/cli"
	"github.com/kaimana-labs/statebench/internal/config"
	"github.com/spf13/cobra"
)

func metricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Manage metric definitions",
		Long:  `Inspect the metrics configured for the pipeline.`,
	}

	cmd.AddCommand(listMetricsCmd())

	return cmd
}

func listMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured metrics",
		Long:  `Display every metric from the config file with its dataset and year range.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			metrics, err := config.LoadMetrics()
			if err != nil {
				return err
			}

			if len(metrics) == 0 {
				fmt.Println(cli.InfoStyle.Render("No metrics configured."))
				return nil
			}

			// Create table writer
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			// Header
			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				headerStyle.Render("ID"),
				headerStyle.Render("Title"),
				headerStyle.Render("Target"),
				headerStyle.Render("Years"),
				headerStyle.Render("Route"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 20),
				strings.Repeat("-", 40),
				strings.Repeat("-", 6),
				strings.Repeat("-", 9),
				strings.Repeat("-", 40))

			// List metrics
			for _, m := range metrics {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d-%d\t%s\n",
					m.ID, m.Title, m.TargetRegion, m.Years.Start, m.Years.End, m.Dataset.Route)
			}

			return nil
		},
	}
}
