// Package storage provides the run-history persistence layer.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kaimana-labs/statebench/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrInvalidRun   = errors.New("invalid metric series")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateSeries validates a metric series before it is persisted.
func validateSeries(series *model.MetricSeries) error {
	if series == nil {
		return fmt.Errorf("%w: series", ErrNilParameter)
	}
	if strings.TrimSpace(series.MetricID) == "" {
		return fmt.Errorf("%w: missing metric ID", ErrInvalidRun)
	}
	if series.GeneratedAt.IsZero() {
		return fmt.Errorf("%w: missing generation time", ErrInvalidRun)
	}
	if len(series.TargetValues) != len(series.Years) || len(series.PeerValues) != len(series.Years) {
		return fmt.Errorf("%w: value columns must align with the year axis", ErrInvalidRun)
	}
	return nil
}
