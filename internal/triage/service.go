package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// ErrValidation marks a rejected submission. Callers translate it to a 400.
var ErrValidation = errors.New("validation failed")

// VitalsExtractor is the best-effort video-analysis capability. A nil return
// means extraction failed or found nothing; it is never an error.
type VitalsExtractor interface {
	Extract(ctx context.Context, video []byte) *VitalSigns
}

// Notifier receives records that warrant an operational page.
type Notifier interface {
	Send(ctx context.Context, r *Record) error
}

// CreateInput is one triage submission as received from the API layer.
type CreateInput struct {
	PatientID       string
	FacilityID      string
	ChiefComplaint  string
	AdditionalNotes string
	AssessedBy      string

	// VitalSigns are manually entered measurements, if any.
	VitalSigns *VitalSigns

	// Video is an optional recording forwarded to the vitals extractor.
	// The bytes are not persisted.
	Video []byte
}

// Service is the business boundary for triage operations.
type Service struct {
	store     Store
	engine    *Engine
	vitals    VitalsExtractor
	publisher Publisher
	notifier  Notifier
	logger    log.Logger
	metrics   *Metrics
}

// NewService creates a triage service. vitals, notifier, and metrics may be
// nil; publisher may be nil and defaults to a no-op.
func NewService(store Store, engine *Engine, vitals VitalsExtractor, publisher Publisher, notifier Notifier, logger log.Logger, metrics *Metrics) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:     store,
		engine:    engine,
		vitals:    vitals,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		metrics:   metrics,
	}
}

// Create validates a submission, classifies it, persists the record, and
// announces it to the facility channel. Validation failures have no side
// effects. Enrichment failures (vitals extraction, assessor) never prevent
// the record from being saved.
func (s *Service) Create(ctx context.Context, in *CreateInput) (*Record, error) {
	if in.PatientID == "" {
		s.countSubmit("rejected")
		return nil, fmt.Errorf("%w: patient id is required", ErrValidation)
	}
	if in.ChiefComplaint == "" {
		s.countSubmit("rejected")
		return nil, fmt.Errorf("%w: chief complaint is required", ErrValidation)
	}

	vitals := in.VitalSigns
	if len(in.Video) > 0 && s.vitals != nil {
		if extracted := s.vitals.Extract(ctx, in.Video); extracted != nil {
			vitals = extracted
		}
	}

	result := s.engine.Assess(ctx, &AssessmentInput{
		PatientID:       in.PatientID,
		ChiefComplaint:  in.ChiefComplaint,
		AdditionalNotes: in.AdditionalNotes,
		VitalSigns:      vitals,
		AssessedBy:      in.AssessedBy,
	})

	now := time.Now()
	rec := &Record{
		ID:              ulid.Make().String(),
		PatientID:       in.PatientID,
		FacilityID:      in.FacilityID,
		ChiefComplaint:  in.ChiefComplaint,
		AdditionalNotes: in.AdditionalNotes,
		VitalSigns:      vitals,
		Result:          *result,
		Status:          StatusPending,
		AssessedBy:      in.AssessedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.Create(ctx, rec); err != nil {
		s.countSubmit("store_error")
		return nil, fmt.Errorf("create triage record: %w", err)
	}

	// Fire-and-forget: the publisher contract is non-blocking and failures
	// are swallowed, so the response never waits on delivery.
	s.publisher.TriageCreated(ctx, rec)

	if s.notifier != nil && rec.Result.Level == Level1 {
		go s.notify(context.WithoutCancel(ctx), rec)
	}

	s.logger.Info(ctx, "triage assessment created",
		"triage_id", rec.ID,
		"patient_id", rec.PatientID,
		"facility_id", rec.FacilityID,
		"level", string(rec.Result.Level),
		"assessed_by", rec.AssessedBy,
	)
	s.countSubmit("accepted")

	return rec, nil
}

// UpdateStatus transitions a record's lifecycle status and announces the
// change. The bool return is false when the record does not exist.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status, updatedBy string) (*Record, bool, error) {
	if !status.Valid() {
		return nil, false, fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}

	now := time.Now()
	rec, ok, err := s.store.UpdateStatus(ctx, id, status, updatedBy, now)
	if err != nil {
		return nil, false, fmt.Errorf("update triage status: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	s.publisher.TriageUpdated(ctx, rec.FacilityID, rec.ID, status, updatedBy, now)

	if s.metrics != nil {
		s.metrics.StatusUpdatesTotal.WithLabelValues(string(status)).Inc()
	}
	s.logger.Info(ctx, "triage status updated",
		"triage_id", id,
		"status", string(status),
		"updated_by", updatedBy,
	)

	return rec, true, nil
}

// Get retrieves a single triage record.
func (s *Service) Get(ctx context.Context, id string) (*Record, bool, error) {
	return s.store.Get(ctx, id)
}

// List returns facility-scoped records matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*Record, error) {
	return s.store.List(ctx, f)
}

func (s *Service) notify(ctx context.Context, rec *Record) {
	if err := s.notifier.Send(ctx, rec); err != nil {
		s.logger.Error(ctx, err, "level 1 notification failed", "triage_id", rec.ID)
	}
}

func (s *Service) countSubmit(result string) {
	if s.metrics != nil {
		s.metrics.SubmitsTotal.WithLabelValues(result).Inc()
	}
}
