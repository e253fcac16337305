package archive

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/chrissnell/iopestimator/pkg/estimate"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)

	s, err := New(db, "sqlite", zap.NewNop().Sugar())
	if err != nil {
		db.Close()
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustEstimate(t *testing.T, readings []float64) *estimate.Report {
	t.Helper()
	r, err := estimate.Estimate(readings)
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	return r
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	readings := []float64{10, 12, 14, 16, 40}

	saved, err := s.Save(ctx, readings, mustEstimate(t, readings))
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("Save did not assign an id")
	}

	got, err := s.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !got.CreatedAt.Equal(saved.CreatedAt) {
		t.Errorf("CreatedAt = %v, expected %v", got.CreatedAt, saved.CreatedAt)
	}
	if len(got.Readings) != len(readings) || got.Readings[4] != 40 {
		t.Errorf("readings = %v, expected %v", got.Readings, readings)
	}
	if v, ok := got.Report.Value(estimate.MethodSafeTrimmedMean); !ok || v != 14 {
		t.Errorf("archived safe trimmed mean = %v (%v), expected 14", v, ok)
	}
	if got.Report.N != 5 {
		t.Errorf("archived N = %d, expected 5", got.Report.N)
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"not-a-uuid", "9b2f8d7e-3c41-4f6a-9a51-0d3c5e2b7a10"} {
		if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q) error = %v, expected ErrNotFound", id, err)
		}
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }

		readings := []float64{14, 15, float64(16 + i)}
		rec, err := s.Save(ctx, readings, mustEstimate(t, readings))
		if err != nil {
			t.Fatalf("Save returned error: %v", err)
		}
		ids = append(ids, rec.ID)
	}

	records, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != ids[2] || records[1].ID != ids[1] {
		t.Errorf("unexpected order: got %s, %s; expected %s, %s", records[0].ID, records[1].ID, ids[2], ids[1])
	}

	if _, err := s.List(ctx, 0); err == nil {
		t.Error("expected an error for a zero limit")
	}
}

func TestListEmpty(t *testing.T) {
	records, err := newTestStore(t).List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("expected an empty, non-nil list, got %#v", records)
	}
}

func TestRebind(t *testing.T) {
	s := &Store{driver: "postgres"}
	got := s.rebind("SELECT a FROM t WHERE b = ? AND c = ? LIMIT ?")
	if got != "SELECT a FROM t WHERE b = $1 AND c = $2 LIMIT $3" {
		t.Errorf("rebind = %q", got)
	}

	s.driver = "pgx"
	if got := s.rebind("DELETE FROM t WHERE id = ?"); got != "DELETE FROM t WHERE id = $1" {
		t.Errorf("pgx rebind = %q", got)
	}

	s.driver = "sqlite"
	if q := "SELECT ?"; s.rebind(q) != q {
		t.Error("sqlite queries must not be rewritten")
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(nil, "mysql", zap.NewNop().Sugar()); err == nil {
		t.Error("expected an error for an unsupported driver")
	}
}
