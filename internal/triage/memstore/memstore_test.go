package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/linnemanlabs/edtriage/internal/triage"
)

func rec(id, facility string, level triage.Level, score int, status triage.Status, createdAt time.Time) *triage.Record {
	return &triage.Record{
		ID:         id,
		PatientID:  "patient-" + id,
		FacilityID: facility,
		Result: triage.Result{
			Level:         level,
			PriorityScore: score,
		},
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestCreateGet(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now()

	r := rec("a", "f1", triage.Level3, 60, triage.StatusPending, now)
	if err := s.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, ok, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected record")
	}
	if got.ID != "a" || got.Result.Level != triage.Level3 {
		t.Errorf("got %+v", got)
	}

	// Mutating the returned copy must not affect the stored record.
	got.Status = triage.StatusCancelled
	again, _, _ := s.Get(ctx, "a")
	if again.Status != triage.StatusPending {
		t.Error("Get must return a copy")
	}

	_, ok, _ = s.Get(ctx, "missing")
	if ok {
		t.Error("expected miss for unknown id")
	}
}

func TestList_FilterAndOrder(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now()

	s.Create(ctx, rec("a", "f1", triage.Level4, 40, triage.StatusPending, now))
	s.Create(ctx, rec("b", "f1", triage.Level1, 100, triage.StatusPending, now.Add(time.Minute)))
	s.Create(ctx, rec("c", "f1", triage.Level1, 100, triage.StatusPending, now))
	s.Create(ctx, rec("d", "f2", triage.Level2, 80, triage.StatusPending, now))

	got, err := s.List(ctx, triage.ListFilter{FacilityID: "f1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// Priority score descending, then created ascending breaks the tie.
	wantOrder := []string{"c", "b", "a"}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, want)
		}
	}

	got, _ = s.List(ctx, triage.ListFilter{FacilityID: "f1", Level: triage.Level1})
	if len(got) != 2 {
		t.Errorf("level filter len = %d, want 2", len(got))
	}

	got, _ = s.List(ctx, triage.ListFilter{FacilityID: "f1", Limit: 1, Offset: 1})
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("paged = %v, want [b]", got)
	}

	got, _ = s.List(ctx, triage.ListFilter{FacilityID: "f1", Offset: 10})
	if len(got) != 0 {
		t.Errorf("overflow offset len = %d, want 0", len(got))
	}
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now()

	s.Create(ctx, rec("a", "f1", triage.Level2, 80, triage.StatusPending, now))

	later := now.Add(time.Hour)
	got, ok, err := s.UpdateStatus(ctx, "a", triage.StatusCompleted, "doctor-1", later)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !ok {
		t.Fatal("expected record")
	}
	if got.Status != triage.StatusCompleted || got.UpdatedBy != "doctor-1" || !got.UpdatedAt.Equal(later) {
		t.Errorf("got %+v", got)
	}

	_, ok, _ = s.UpdateStatus(ctx, "missing", triage.StatusCompleted, "doctor-1", later)
	if ok {
		t.Error("expected miss for unknown id")
	}
}

func TestActiveAggregates(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now()

	s.Create(ctx, rec("a", "f1", triage.Level1, 100, triage.StatusPending, now))
	s.Create(ctx, rec("b", "f1", triage.Level1, 100, triage.StatusInProgress, now))
	s.Create(ctx, rec("c", "f1", triage.Level3, 60, triage.StatusCompleted, now))
	s.Create(ctx, rec("d", "f1", triage.Level4, 40, triage.StatusCancelled, now))
	s.Create(ctx, rec("e", "f2", triage.Level2, 80, triage.StatusPending, now))

	n, err := s.ActiveCount(ctx, "f1")
	if err != nil {
		t.Fatalf("ActiveCount: %v", err)
	}
	if n != 2 {
		t.Errorf("active = %d, want 2 (completed and cancelled excluded)", n)
	}

	byLevel, err := s.ActiveByLevel(ctx, "f1")
	if err != nil {
		t.Fatalf("ActiveByLevel: %v", err)
	}
	if byLevel[triage.Level1] != 2 || byLevel[triage.Level3] != 0 {
		t.Errorf("byLevel = %v", byLevel)
	}
}

func TestTodayStats(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	done := rec("a", "f1", triage.Level3, 60, triage.StatusCompleted, now.Add(-2*time.Hour))
	done.UpdatedAt = now.Add(-1 * time.Hour) // one hour wait
	s.Create(ctx, done)
	s.Create(ctx, rec("b", "f1", triage.Level4, 40, triage.StatusPending, now.Add(-30*time.Minute)))
	s.Create(ctx, rec("c", "f1", triage.Level4, 40, triage.StatusPending, now.Add(-26*time.Hour))) // yesterday

	stats, err := s.TodayStats(ctx, "f1", now)
	if err != nil {
		t.Fatalf("TodayStats: %v", err)
	}
	if stats.SubmittedToday != 2 {
		t.Errorf("submitted = %d, want 2", stats.SubmittedToday)
	}
	if stats.CompletedToday != 1 {
		t.Errorf("completed = %d, want 1", stats.CompletedToday)
	}
	if stats.MeanWaitSeconds != 1800 {
		t.Errorf("mean wait = %.0f, want 1800", stats.MeanWaitSeconds)
	}
}

func TestWaitingList(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now()

	s.Create(ctx, rec("a", "f1", triage.Level4, 40, triage.StatusPending, now))
	s.Create(ctx, rec("b", "f1", triage.Level1, 100, triage.StatusInProgress, now))
	s.Create(ctx, rec("c", "f1", triage.Level2, 80, triage.StatusCompleted, now))

	got, err := s.WaitingList(ctx, "f1", 10)
	if err != nil {
		t.Fatalf("WaitingList: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("order = [%s %s], want [b a]", got[0].ID, got[1].ID)
	}

	got, _ = s.WaitingList(ctx, "f1", 1)
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("limited = %v, want [b]", got)
	}
}
