package triage

import (
	"context"
	"time"
)

// ListFilter narrows a facility-scoped listing. Zero values mean "no filter".
type ListFilter struct {
	FacilityID string
	Status     Status
	Level      Level
	PatientID  string
	Limit      int
	Offset     int
}

// DayStats are today's aggregate numbers for one facility.
type DayStats struct {
	SubmittedToday  int     `json:"submitted_today"`
	CompletedToday  int     `json:"completed_today"`
	MeanWaitSeconds float64 `json:"mean_wait_seconds"`
}

// QueueEntry is one row of the ranked waiting list.
type QueueEntry struct {
	ID            string    `json:"id"`
	PatientID     string    `json:"patient_id"`
	Level         Level     `json:"level"`
	PriorityScore int       `json:"priority_score"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store is the persistence interface for triage records. Creation and status
// transition are atomic; the aggregate reads back the dashboard.
type Store interface {
	Create(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, bool, error)
	List(ctx context.Context, f ListFilter) ([]*Record, error)

	// UpdateStatus transitions a record's status atomically. The second
	// return is false when no record with that id exists.
	UpdateStatus(ctx context.Context, id string, status Status, updatedBy string, at time.Time) (*Record, bool, error)

	// Dashboard aggregates, all scoped to one facility. Active means
	// status pending or in_progress.
	ActiveCount(ctx context.Context, facilityID string) (int, error)
	ActiveByLevel(ctx context.Context, facilityID string) (map[Level]int, error)
	TodayStats(ctx context.Context, facilityID string, now time.Time) (*DayStats, error)

	// WaitingList returns active records ordered by priority score
	// descending, then creation time ascending.
	WaitingList(ctx context.Context, facilityID string, limit int) ([]*QueueEntry, error)
}
