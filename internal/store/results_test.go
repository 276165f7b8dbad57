package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jialuechen/genmarket/internal/domain"
)

func openTestStore(t *testing.T) *ResultStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResults() []domain.SimulationResult {
	return []domain.SimulationResult{
		{
			RunIndex: 0,
			Seed:     11,
			Status:   domain.RunDone,
			Trades: []domain.Trade{
				{MakerOrderID: 1, TakerOrderID: 2, Price: 100, Quantity: 5, Timestamp: 1000},
			},
			Metrics: domain.Metrics{
				ExecutionPrice: decimal.NewFromInt(100),
				FilledQuantity: 5,
			},
		},
		{RunIndex: 1, Seed: 22, Status: domain.RunFailed, Error: "generation error at step 3: non-positive size"},
	}
}

func TestSaveBatch_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveBatch(ctx, "batch-1", []byte("liquidity: medium"), sampleResults()); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetBatch(ctx, "batch-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got))
	}
	if got[0].RunIndex != 0 || got[1].RunIndex != 1 {
		t.Errorf("runs must come back ordered by index: %d, %d", got[0].RunIndex, got[1].RunIndex)
	}
	if len(got[0].Trades) != 1 || got[0].Trades[0].Price != 100 {
		t.Errorf("trade payload lost: %+v", got[0].Trades)
	}
	if !got[0].Metrics.ExecutionPrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("metrics payload lost: %+v", got[0].Metrics)
	}
	if got[1].Status != domain.RunFailed || got[1].Error == "" {
		t.Errorf("failure marker lost: %+v", got[1])
	}
}

func TestGetBatch_UnknownID(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetBatch(context.Background(), "nope")
	if !errors.Is(err, domain.ErrBatchNotFound) {
		t.Errorf("expected ErrBatchNotFound, got %v", err)
	}
}

func TestSaveBatch_DuplicateIDRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveBatch(ctx, "dup", nil, sampleResults()); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveBatch(ctx, "dup", nil, sampleResults()); err == nil {
		t.Error("duplicate batch id must fail")
	}
}
