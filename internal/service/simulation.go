// Package service orchestrates the run-invocation surfaces: it turns a
// configuration document into a completed batch and archives the
// results for later retrieval.
package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jialuechen/genmarket/internal/config"
	"github.com/jialuechen/genmarket/internal/domain"
	"github.com/jialuechen/genmarket/internal/sim"
	"github.com/jialuechen/genmarket/internal/store"
)

// SimulationService validates documents, runs batches, and archives
// results. The archive is optional; without one, results are only
// returned to the caller.
type SimulationService struct {
	logger  *zap.Logger
	archive *store.ResultStore
}

// NewSimulationService creates the service. archive may be nil.
func NewSimulationService(logger *zap.Logger, archive *store.ResultStore) *SimulationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulationService{logger: logger, archive: archive}
}

// BatchOutcome is what one invocation returns: the archive ID and the
// per-run results ordered by run index.
type BatchOutcome struct {
	BatchID string                    `json:"batch_id"`
	Results []domain.SimulationResult `json:"results"`
}

// RunDocument parses and validates one configuration document, runs
// the configured batch, and archives the outcome. Validation errors
// surface immediately; per-run failures are reported inside their
// result and do not fail the batch.
func (s *SimulationService) RunDocument(ctx context.Context, raw []byte) (*BatchOutcome, error) {
	doc, err := config.Parse(raw)
	if err != nil {
		return nil, err
	}

	batch := &sim.Batch{Logger: s.logger, Workers: doc.Workers}
	results := batch.Run(ctx, doc)

	outcome := &BatchOutcome{
		BatchID: uuid.New().String(),
		Results: results,
	}

	if s.archive != nil {
		if err := s.archive.SaveBatch(ctx, outcome.BatchID, raw, results); err != nil {
			// The batch already ran; losing the archive copy is not fatal.
			s.logger.Warn("failed to archive batch", zap.String("batch_id", outcome.BatchID), zap.Error(err))
		}
	}
	return outcome, nil
}

// GetBatch loads an archived batch by ID.
func (s *SimulationService) GetBatch(ctx context.Context, batchID string) ([]domain.SimulationResult, error) {
	if s.archive == nil {
		return nil, domain.ErrBatchNotFound
	}
	return s.archive.GetBatch(ctx, batchID)
}
