// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/edtriage/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/edtriage/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists triage assessments in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store. The
// caller owns the pool's lifecycle.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const triageColumns = `id, patient_id, facility_id, chief_complaint, additional_notes, vital_signs,
	level, priority_score, notes, recommendations, estimated_wait_minutes,
	status, assessed_by, updated_by, created_at, updated_at`

// Create inserts a new triage record.
func (s *Store) Create(ctx context.Context, r *triage.Record) error {
	ctx, span := tracer.Start(ctx, "pgstore.Create", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	var vitalsJSON []byte
	if r.VitalSigns != nil {
		var err error
		vitalsJSON, err = json.Marshal(r.VitalSigns)
		if err != nil {
			return fmt.Errorf("marshal vital signs: %w", err)
		}
	}
	recsJSON, err := json.Marshal(r.Result.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}

	query := `INSERT INTO triage_assessments (` + triageColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err = s.pool.Exec(ctx, query,
		r.ID, r.PatientID, r.FacilityID, r.ChiefComplaint, r.AdditionalNotes, vitalsJSON,
		string(r.Result.Level), r.Result.PriorityScore, r.Result.Notes, recsJSON,
		r.Result.EstimatedWaitMinutes, string(r.Status), r.AssessedBy, r.UpdatedBy,
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert triage: %w", err)
	}
	return nil
}

// Get retrieves a triage record by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.Record, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + triageColumns + ` FROM triage_assessments WHERE id = $1`
	r, err := scanTriageRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// List returns records matching the filter, ordered by priority score
// descending then creation time ascending.
func (s *Store) List(ctx context.Context, f triage.ListFilter) ([]*triage.Record, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + triageColumns + ` FROM triage_assessments WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.FacilityID != "" {
		query += ` AND facility_id = ` + arg(f.FacilityID)
	}
	if f.Status != "" {
		query += ` AND status = ` + arg(string(f.Status))
	}
	if f.Level != "" {
		query += ` AND level = ` + arg(string(f.Level))
	}
	if f.PatientID != "" {
		query += ` AND patient_id = ` + arg(f.PatientID)
	}
	query += ` ORDER BY priority_score DESC, created_at ASC`
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += ` OFFSET ` + arg(f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query triage: %w", err)
	}
	defer rows.Close()

	var out []*triage.Record
	for rows.Next() {
		r, err := scanTriageRow(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate triage: %w", err)
	}
	return out, nil
}

// UpdateStatus transitions a record's status and returns the updated record.
func (s *Store) UpdateStatus(ctx context.Context, id string, status triage.Status, updatedBy string, at time.Time) (*triage.Record, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.UpdateStatus", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	query := `UPDATE triage_assessments
	SET status = $2, updated_by = $3, updated_at = $4
	WHERE id = $1
	RETURNING ` + triageColumns

	r, err := scanTriageRow(s.pool.QueryRow(ctx, query, id, string(status), updatedBy, at))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// ActiveCount counts pending and in-progress records for a facility.
func (s *Store) ActiveCount(ctx context.Context, facilityID string) (int, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ActiveCount", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM triage_assessments
		 WHERE facility_id = $1 AND status IN ('pending', 'in_progress')`,
		facilityID,
	).Scan(&n)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("count active: %w", err)
	}
	return n, nil
}

// ActiveByLevel breaks the active count down by triage level.
func (s *Store) ActiveByLevel(ctx context.Context, facilityID string) (map[triage.Level]int, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ActiveByLevel", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT level, COUNT(*) FROM triage_assessments
		 WHERE facility_id = $1 AND status IN ('pending', 'in_progress')
		 GROUP BY level`,
		facilityID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("count by level: %w", err)
	}
	defer rows.Close()

	out := make(map[triage.Level]int)
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("scan level count: %w", err)
		}
		out[triage.Level(level)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate level counts: %w", err)
	}
	return out, nil
}

// TodayStats aggregates records created on the same calendar day as now,
// in the database's time zone.
func (s *Store) TodayStats(ctx context.Context, facilityID string, now time.Time) (*triage.DayStats, error) {
	ctx, span := tracer.Start(ctx, "pgstore.TodayStats", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	stats := &triage.DayStats{}
	var meanWait *float64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'completed'),
		        AVG(EXTRACT(EPOCH FROM (updated_at - created_at)))
		 FROM triage_assessments
		 WHERE facility_id = $1 AND created_at >= $2 AND created_at < $3`,
		facilityID, dayStart, dayEnd,
	).Scan(&stats.SubmittedToday, &stats.CompletedToday, &meanWait)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("today stats: %w", err)
	}
	if meanWait != nil {
		stats.MeanWaitSeconds = *meanWait
	}
	return stats, nil
}

// WaitingList returns the ranked active queue for a facility.
func (s *Store) WaitingList(ctx context.Context, facilityID string, limit int) ([]*triage.QueueEntry, error) {
	ctx, span := tracer.Start(ctx, "pgstore.WaitingList", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT id, patient_id, level, priority_score, status, created_at
	 FROM triage_assessments
	 WHERE facility_id = $1 AND status IN ('pending', 'in_progress')
	 ORDER BY priority_score DESC, created_at ASC`
	args := []any{facilityID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query waiting list: %w", err)
	}
	defer rows.Close()

	var out []*triage.QueueEntry
	for rows.Next() {
		var (
			e      triage.QueueEntry
			level  string
			status string
		)
		if err := rows.Scan(&e.ID, &e.PatientID, &level, &e.PriorityScore, &status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		e.Level = triage.Level(level)
		e.Status = triage.Status(status)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate waiting list: %w", err)
	}
	return out, nil
}

// scanTriageRow scans a single row into a triage.Record.
// Returns (nil, nil) when no row is found.
func scanTriageRow(row pgx.Row) (*triage.Record, error) {
	var (
		r          triage.Record
		vitalsJSON []byte
		level      string
		recsJSON   []byte
		status     string
	)

	err := row.Scan(
		&r.ID, &r.PatientID, &r.FacilityID, &r.ChiefComplaint, &r.AdditionalNotes, &vitalsJSON,
		&level, &r.Result.PriorityScore, &r.Result.Notes, &recsJSON, &r.Result.EstimatedWaitMinutes,
		&status, &r.AssessedBy, &r.UpdatedBy, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	r.Result.Level = triage.Level(level)
	r.Status = triage.Status(status)

	if len(vitalsJSON) > 0 {
		r.VitalSigns = &triage.VitalSigns{}
		if err := json.Unmarshal(vitalsJSON, r.VitalSigns); err != nil {
			return nil, fmt.Errorf("unmarshal vital signs: %w", err)
		}
	}
	if err := json.Unmarshal(recsJSON, &r.Result.Recommendations); err != nil {
		return nil, fmt.Errorf("unmarshal recommendations: %w", err)
	}

	return &r, nil
}
