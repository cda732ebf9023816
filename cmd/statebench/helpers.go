package main

import (
	"context"
	"fmt"

	"github.com/kaimana-labs/statebench/internal/classify"
	"github.com/kaimana-labs/statebench/internal/config"
	"github.com/kaimana-labs/statebench/internal/service"
	"github.com/kaimana-labs/statebench/internal/storage"
	"github.com/spf13/viper"
)

// initStore initializes the run store with proper path expansion.
func initStore(ctx context.Context) (service.RunStore, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/statebench/statebench.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	// Initialize storage
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// loadClassifier builds a classifier from the configured rule set, falling
// back to the built-in rules when none is configured.
func loadClassifier() (*classify.Classifier, error) {
	rules := classify.DefaultRuleSet()

	if path := viper.GetString("classify.rules"); path != "" {
		loaded, err := classify.LoadRuleSet(config.ExpandPath(path))
		if err != nil {
			return nil, fmt.Errorf("failed to load rule set: %w", err)
		}
		rules = loaded
	}

	return classify.NewClassifier(rules)
}
