package main

import (
	"fmt"
	"log/slog"

	"github.com/kaimana-labs/statebench/internal/cli"
	"github.com/kaimana-labs/statebench/internal/config"
	"github.com/kaimana-labs/statebench/internal/export"
	"github.com/kaimana-labs/statebench/internal/fetch"
	"github.com/kaimana-labs/statebench/internal/model"
	"github.com/kaimana-labs/statebench/internal/pipeline"
	"github.com/kaimana-labs/statebench/internal/service"
	"github.com/kaimana-labs/statebench/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func buildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Fetch, classify and build every configured metric",
		Long: `Build runs the full pipeline for each metric in the config file: fetch
observations from the upstream API, classify category codes, compute shares
and the trailing year window, and write the comparison series to the
configured outputs. Metrics run independently; a failed metric is skipped.`,
		RunE: runBuild,
	}

	// Flags
	cmd.Flags().StringP("output", "o", "out", "Directory for JSON and CSV output")
	cmd.Flags().Bool("sheets", false, "Also write the Google Sheets dashboard")
	cmd.Flags().Bool("no-history", false, "Skip recording the run in the local database")
	cmd.Flags().Bool("progress", false, "Show a progress bar while fetching")
	cmd.Flags().Int("window", 0, "Override the trailing year window size")
	cmd.Flags().StringSlice("only", nil, "Build only the named metric IDs")

	// Bind to viper
	_ = viper.BindPFlag("build.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("build.sheets", cmd.Flags().Lookup("sheets"))
	_ = viper.BindPFlag("build.no_history", cmd.Flags().Lookup("no-history"))
	_ = viper.BindPFlag("fetch.progress", cmd.Flags().Lookup("progress"))
	_ = viper.BindPFlag("build.window", cmd.Flags().Lookup("window"))
	_ = viper.BindPFlag("build.only", cmd.Flags().Lookup("only"))

	return cmd
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	metrics, err := config.LoadMetrics()
	if err != nil {
		return err
	}

	if only := viper.GetStringSlice("build.only"); len(only) > 0 {
		metrics, err = filterMetrics(metrics, only)
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

	writers := []service.ReportWriter{}

	fileWriter, err := export.NewFileWriter(config.ExpandPath(viper.GetString("build.output")))
	if err != nil {
		return err
	}
	writers = append(writers, fileWriter)

	if viper.GetBool("build.sheets") {
		sheetsConfig, err := config.LoadSheetsConfig()
		if err != nil {
			return fmt.Errorf("sheets output requested but not configured: %w", err)
		}
		sheetsWriter, err := sheets.NewWriter(ctx, *sheetsConfig, slog.Default())
		if err != nil {
			return err
		}
		writers = append(writers, sheetsWriter)
	}

	var store service.RunStore
	if !viper.GetBool("build.no_history") {
		store, err = initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	runner, err := pipeline.New(pipeline.Config{
		Fetcher:     client,
		Classifier:  classifier,
		Writers:     writers,
		Store:       store,
		Logger:      slog.Default(),
		WindowYears: viper.GetInt("build.window"),
	})
	if err != nil {
		return err
	}

	stats, err := runner.Build(ctx, metrics)
	fmt.Println(cli.RenderBuildSummary(stats))
	return err
}

func filterMetrics(metrics []model.Metric, only []string) ([]model.Metric, error) {
	byID := make(map[string]model.Metric, len(metrics))
	for _, m := range metrics {
		byID[m.ID] = m
	}

	filtered := make([]model.Metric, 0, len(only))
	for _, id := range only {
		m, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown metric id %q", id)
		}
		filtered = append(filtered, m)
	}
	return filtered, nil
}
