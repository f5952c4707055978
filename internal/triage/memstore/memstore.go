// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/edtriage/internal/triage"
)

// Store holds triage records in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	records map[string]*triage.Record // triage ID -> record
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		records: make(map[string]*triage.Record),
	}
}

// Create stores a copy of the record.
func (s *Store) Create(_ context.Context, r *triage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.records[r.ID] = &cp
	return nil
}

// Get retrieves a record by ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// List returns copies of records matching the filter, ordered by priority
// score descending then creation time ascending.
func (s *Store) List(_ context.Context, f triage.ListFilter) ([]*triage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*triage.Record
	for _, r := range s.records {
		if !matches(r, f) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sortByPriority(out)

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// UpdateStatus transitions a record's status under the write lock.
func (s *Store) UpdateStatus(_ context.Context, id string, status triage.Status, updatedBy string, at time.Time) (*triage.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	r.Status = status
	r.UpdatedBy = updatedBy
	r.UpdatedAt = at

	cp := *r
	return &cp, true, nil
}

// ActiveCount counts pending and in-progress records for a facility.
func (s *Store) ActiveCount(_ context.Context, facilityID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.records {
		if r.FacilityID == facilityID && active(r.Status) {
			n++
		}
	}
	return n, nil
}

// ActiveByLevel breaks the active count down by triage level.
func (s *Store) ActiveByLevel(_ context.Context, facilityID string) (map[triage.Level]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[triage.Level]int)
	for _, r := range s.records {
		if r.FacilityID == facilityID && active(r.Status) {
			out[r.Result.Level]++
		}
	}
	return out, nil
}

// TodayStats aggregates records created on the same calendar day as now.
func (s *Store) TodayStats(_ context.Context, facilityID string, now time.Time) (*triage.DayStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	y, m, d := now.Date()
	stats := &triage.DayStats{}
	var waitTotal float64
	for _, r := range s.records {
		if r.FacilityID != facilityID {
			continue
		}
		ry, rm, rd := r.CreatedAt.Date()
		if ry != y || rm != m || rd != d {
			continue
		}
		stats.SubmittedToday++
		if r.Status == triage.StatusCompleted {
			stats.CompletedToday++
		}
		waitTotal += r.UpdatedAt.Sub(r.CreatedAt).Seconds()
	}
	if stats.SubmittedToday > 0 {
		stats.MeanWaitSeconds = waitTotal / float64(stats.SubmittedToday)
	}
	return stats, nil
}

// WaitingList returns the ranked active queue for a facility.
func (s *Store) WaitingList(_ context.Context, facilityID string, limit int) ([]*triage.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var waiting []*triage.Record
	for _, r := range s.records {
		if r.FacilityID == facilityID && active(r.Status) {
			waiting = append(waiting, r)
		}
	}
	sortByPriority(waiting)

	if limit > 0 && len(waiting) > limit {
		waiting = waiting[:limit]
	}

	out := make([]*triage.QueueEntry, 0, len(waiting))
	for _, r := range waiting {
		out = append(out, &triage.QueueEntry{
			ID:            r.ID,
			PatientID:     r.PatientID,
			Level:         r.Result.Level,
			PriorityScore: r.Result.PriorityScore,
			Status:        r.Status,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out, nil
}

func active(s triage.Status) bool {
	return s == triage.StatusPending || s == triage.StatusInProgress
}

func matches(r *triage.Record, f triage.ListFilter) bool {
	if f.FacilityID != "" && r.FacilityID != f.FacilityID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Level != "" && r.Result.Level != f.Level {
		return false
	}
	if f.PatientID != "" && r.PatientID != f.PatientID {
		return false
	}
	return true
}

func sortByPriority(rs []*triage.Record) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Result.PriorityScore != rs[j].Result.PriorityScore {
			return rs[i].Result.PriorityScore > rs[j].Result.PriorityScore
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}
