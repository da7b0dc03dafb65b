package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/models"
)

// ResultStorage implements the RunStore interface for Badger
type ResultStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewResultStorage creates a new ResultStorage instance
func NewResultStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunStore {
	return &ResultStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ResultStorage) SaveResult(ctx context.Context, result *models.Result) error {
	if result.ID == "" {
		return fmt.Errorf("result ID is required")
	}
	if err := s.db.Store().Upsert(result.ID, result); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

func (s *ResultStorage) GetResult(ctx context.Context, id string) (*models.Result, error) {
	var result models.Result
	if err := s.db.Store().Get(id, &result); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("result %s: %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return &result, nil
}

func (s *ResultStorage) find(query *badgerhold.Query) ([]*models.Result, error) {
	var results []models.Result
	if err := s.db.Store().Find(&results, query); err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	out := make([]*models.Result, len(results))
	for i := range results {
		out[i] = &results[i]
	}
	return out, nil
}

// ListByRun returns the results of one run ordered by plugin name.
func (s *ResultStorage) ListByRun(ctx context.Context, runID string) ([]*models.Result, error) {
	return s.find(badgerhold.Where("RunID").Eq(runID).Index("RunID").SortBy("Plugin"))
}

// ListByPlugin returns every recorded outcome for a plugin, newest first.
func (s *ResultStorage) ListByPlugin(ctx context.Context, plugin string) ([]*models.Result, error) {
	return s.find(badgerhold.Where("Plugin").Eq(plugin).Index("Plugin").SortBy("FinishedAt").Reverse())
}

func (s *ResultStorage) ListRecent(ctx context.Context, limit int) ([]*models.Result, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("FinishedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	return s.find(query)
}

func (s *ResultStorage) DeleteRun(ctx context.Context, runID string) error {
	if err := s.db.Store().DeleteMatching(&models.Result{}, badgerhold.Where("RunID").Eq(runID).Index("RunID")); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	s.logger.Debug().Str("run_id", runID).Msg("Run results deleted")
	return nil
}
