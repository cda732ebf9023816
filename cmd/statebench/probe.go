package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/kaimana-labs/statebench/internal/aggregate"
	"github.com/kaimana-labs/statebench/internal/classify"
	"github.com/kaimana-labs/statebench/internal/cli"
	"github.com/kaimana-labs/statebench/internal/config"
	"github.com/kaimana-labs/statebench/internal/fetch"
	"github.com/kaimana-labs/statebench/internal/model"
	"github.com/kaimana-labs/statebench/internal/region"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func probeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe <metric-id>",
		Short: "Inspect classification for a single region",
		Long: `Probe fetches one metric's data for a single region and shows how each
category code was classified, along with the resulting per-year shares.
Useful when tuning the rule set.`,
		Args: cobra.ExactArgs(1),
		RunE: runProbe,
	}

	cmd.Flags().StringP("region", "r", "", "Region to probe (default: the metric's target)")
	_ = viper.BindPFlag("probe.region", cmd.Flags().Lookup("region"))

	return cmd
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	metricID := args[0]

	metrics, err := config.LoadMetrics()
	if err != nil {
		return err
	}

	var metric *model.Metric
	for i := range metrics {
		if metrics[i].ID == metricID {
			metric = &metrics[i]
			break
		}
	}
	if metric == nil {
		return fmt.Errorf("unknown metric id %q", metricID)
	}

	probeRegion := metric.TargetRegion
	if v := viper.GetString("probe.region"); v != "" {
		probeRegion, err = region.Parse(v)
		if err != nil {
			return err
		}
	}

	fetchConfig, err := config.LoadFetchConfig()
	if err != nil {
		return err
	}

	client, err := fetch.NewClient(fetchConfig)
	if err != nil {
		return err
	}

	classifier, err := loadClassifier()
	if err != nil {
		return err
	}

	observations, err := client.FetchAll(ctx, metric.Dataset, []region.Code{probeRegion}, metric.Years)
	if err != nil {
		return err
	}

	result := classifier.Classify(observations)

	fmt.Println(cli.FormatTitle(fmt.Sprintf("%s — %s", metric.Title, probeRegion.Name())))
	fmt.Printf("Observations: %d\n\n", len(observations))

	// Classification table
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Code\tDescription\tDisposition\n")
	fmt.Fprintf(w, "%s\t%s\t%s\n", strings.Repeat("-", 6), strings.Repeat("-", 40), strings.Repeat("-", 24))
	for _, d := range descriptorsByCode(observations) {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.code, d.description, disposition(result, d.code))
	}
	_ = w.Flush()

	// Per-year shares for the probed region
	shares := aggregate.Shares(observations, result)
	fmt.Println()
	sw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(sw, "Year\tNumerator\tDenominator\tShare\n")
	for _, s := range shares {
		if s.Region != probeRegion {
			continue
		}
		value := "—"
		if s.Value != nil {
			value = strconv.FormatFloat(*s.Value, 'f', 2, 64) + "%"
		}
		fmt.Fprintf(sw, "%d\t%.1f\t%.1f\t%s\n", s.Year, s.Numerator, s.Denominator, value)
	}
	return sw.Flush()
}

type probedCode struct {
	code        string
	description string
}

func descriptorsByCode(observations []model.Observation) []probedCode {
	seen := make(map[string]string)
	for _, o := range observations {
		code := strings.ToUpper(strings.TrimSpace(o.CategoryCode))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; !ok {
			seen[code] = o.Description
		}
	}

	codes := make([]probedCode, 0, len(seen))
	for code, description := range seen {
		codes = append(codes, probedCode{code: code, description: description})
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].code < codes[j].code })
	return codes
}

func disposition(result classify.Result, code string) string {
	switch {
	case result.Member[code]:
		return cli.FormatSuccess("member")
	case result.ExcludedFromDenominator[code]:
		return cli.FormatWarning("excluded from denominator")
	case result.ExcludedEverywhere[code]:
		return cli.SubtleStyle.Render("excluded everywhere")
	default:
		return "denominator only"
	}
}
