// Package storage defines persistence for labeled training queries and gazetteers.
package storage

import (
	"context"

	"github.com/Keshav04042001/mindmeld/internal/models"
)

// Storage holds labeled queries grouped by (domain, intent, label set) and
// named gazetteers.
type Storage interface {
	// Labeled query operations
	ReplaceQueries(ctx context.Context, domain, intent, labelSet string, queries []models.ProcessedQuery) error
	LabeledQueries(ctx context.Context, domain, intent, labelSet string) ([]models.ProcessedQuery, error)
	DeleteQueries(ctx context.Context, domain, intent, labelSet string) error
	CountQueries(ctx context.Context) (int64, error)

	// Gazetteer operations
	SaveGazetteer(ctx context.Context, gaz *models.Gazetteer) error
	Gazetteer(ctx context.Context, name string) (*models.Gazetteer, error)
	ListGazetteers(ctx context.Context) ([]string, error)

	Close() error
}
