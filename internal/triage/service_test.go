package triage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// mockStore records calls and serves canned responses.
type mockStore struct {
	mu      sync.Mutex
	created []*Record
	err     error

	updated *Record
	found   bool
}

func (m *mockStore) Create(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, r)
	return nil
}

func (m *mockStore) Get(_ context.Context, id string) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.created {
		if r.ID == id {
			return r, true, nil
		}
	}
	return nil, false, nil
}

func (m *mockStore) List(_ context.Context, _ ListFilter) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created, nil
}

func (m *mockStore) UpdateStatus(_ context.Context, _ string, status Status, updatedBy string, at time.Time) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	if !m.found {
		return nil, false, nil
	}
	m.updated.Status = status
	m.updated.UpdatedBy = updatedBy
	m.updated.UpdatedAt = at
	return m.updated, true, nil
}

func (m *mockStore) ActiveCount(context.Context, string) (int, error) { return 0, nil }
func (m *mockStore) ActiveByLevel(context.Context, string) (map[Level]int, error) {
	return nil, nil
}
func (m *mockStore) TodayStats(context.Context, string, time.Time) (*DayStats, error) {
	return &DayStats{}, nil
}
func (m *mockStore) WaitingList(context.Context, string, int) ([]*QueueEntry, error) {
	return nil, nil
}

// mockPublisher records published events.
type mockPublisher struct {
	mu      sync.Mutex
	created []*Record
	updates []string
}

func (m *mockPublisher) TriageCreated(_ context.Context, r *Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, r)
}

func (m *mockPublisher) TriageUpdated(_ context.Context, _, id string, _ Status, _ string, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, id)
}

// mockExtractor returns preconfigured vitals.
type mockExtractor struct {
	mu     sync.Mutex
	vitals *VitalSigns
	calls  int
}

func (m *mockExtractor) Extract(_ context.Context, _ []byte) *VitalSigns {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.vitals
}

// mockNotifier records sent records and signals on a channel.
type mockNotifier struct {
	mu   sync.Mutex
	sent []*Record
	ch   chan struct{}
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{ch: make(chan struct{}, 8)}
}

func (m *mockNotifier) Send(_ context.Context, r *Record) error {
	m.mu.Lock()
	m.sent = append(m.sent, r)
	m.mu.Unlock()
	m.ch <- struct{}{}
	return nil
}

func testCreateInput() *CreateInput {
	return &CreateInput{
		PatientID:      "patient-1",
		FacilityID:     "facility-1",
		ChiefComplaint: "sprained wrist",
		AssessedBy:     "nurse-1",
	}
}

func TestCreate_PersistsAndPublishes(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	pub := &mockPublisher{}
	engine := NewEngine(nil, 0, log.Nop(), EngineHooks{})
	svc := NewService(store, engine, nil, pub, nil, log.Nop(), nil)

	rec, err := svc.Create(context.Background(), testCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if rec.ID == "" {
		t.Error("expected a generated ID")
	}
	if rec.Status != StatusPending {
		t.Errorf("status = %q, want %q", rec.Status, StatusPending)
	}
	if rec.Result.Level != Level4 {
		t.Errorf("level = %q, want %q", rec.Result.Level, Level4)
	}
	if rec.FacilityID != "facility-1" {
		t.Errorf("facility = %q, want facility-1", rec.FacilityID)
	}

	store.mu.Lock()
	if len(store.created) != 1 {
		t.Errorf("store creates = %d, want 1", len(store.created))
	}
	store.mu.Unlock()

	pub.mu.Lock()
	if len(pub.created) != 1 || pub.created[0].ID != rec.ID {
		t.Errorf("published creates = %v, want the new record", pub.created)
	}
	pub.mu.Unlock()
}

func TestCreate_ValidationRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing patient id", func(in *CreateInput) { in.PatientID = "" }},
		{"missing chief complaint", func(in *CreateInput) { in.ChiefComplaint = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := &mockStore{}
			engine := NewEngine(nil, 0, log.Nop(), EngineHooks{})
			svc := NewService(store, engine, nil, nil, nil, log.Nop(), nil)

			in := testCreateInput()
			tc.mutate(in)

			_, err := svc.Create(context.Background(), in)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}

			store.mu.Lock()
			if len(store.created) != 0 {
				t.Error("rejected submission must not reach the store")
			}
			store.mu.Unlock()
		})
	}
}

func TestCreate_StoreErrorPropagates(t *testing.T) {
	t.Parallel()

	store := &mockStore{err: errors.New("disk full")}
	pub := &mockPublisher{}
	engine := NewEngine(nil, 0, log.Nop(), EngineHooks{})
	svc := NewService(store, engine, nil, pub, nil, log.Nop(), nil)

	_, err := svc.Create(context.Background(), testCreateInput())
	if err == nil {
		t.Fatal("expected error from store failure")
	}

	pub.mu.Lock()
	if len(pub.created) != 0 {
		t.Error("failed creates must not publish events")
	}
	pub.mu.Unlock()
}

func TestCreate_VideoExtractionPreferred(t *testing.T) {
	t.Parallel()

	extractor := &mockExtractor{vitals: &VitalSigns{HeartRate: intp(160)}}
	store := &mockStore{}
	engine := NewEngine(nil, 0, log.Nop(), EngineHooks{})
	svc := NewService(store, engine, extractor, nil, nil, log.Nop(), nil)

	in := testCreateInput()
	in.VitalSigns = &VitalSigns{HeartRate: intp(80)} // manual entry, should be replaced
	in.Video = []byte("webm bytes")

	rec, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if rec.VitalSigns == nil || rec.VitalSigns.HeartRate == nil || *rec.VitalSigns.HeartRate != 160 {
		t.Errorf("vitals = %+v, want extracted heart rate 160", rec.VitalSigns)
	}
	if rec.Result.Level != Level1 {
		t.Errorf("level = %q, want %q from extracted vitals", rec.Result.Level, Level1)
	}
}

func TestCreate_ExtractionFailureKeepsManualVitals(t *testing.T) {
	t.Parallel()

	extractor := &mockExtractor{vitals: nil} // extraction finds nothing
	store := &mockStore{}
	engine := NewEngine(nil, 0, log.Nop(), EngineHooks{})
	svc := NewService(store, engine, extractor, nil, nil, log.Nop(), nil)

	in := testCreateInput()
	in.VitalSigns = &VitalSigns{HeartRate: intp(80)}
	in.Video = []byte("webm bytes")

	rec, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if rec.VitalSigns == nil || rec.VitalSigns.HeartRate == nil || *rec.VitalSigns.HeartRate != 80 {
		t.Errorf("vitals = %+v, want manual heart rate 80", rec.VitalSigns)
	}
}

func TestCreate_Level1Notifies(t *testing.T) {
	t.Parallel()

	notifier := newMockNotifier()
	store := &mockStore{}
	engine := NewEngine(nil, 0, log.Nop(), EngineHooks{})
	svc := NewService(store, engine, nil, nil, notifier, log.Nop(), nil)

	in := testCreateInput()
	in.VitalSigns = &VitalSigns{Consciousness: ConsciousnessUnresponsive}

	rec, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Result.Level != Level1 {
		t.Fatalf("level = %q, want %q", rec.Result.Level, Level1)
	}

	select {
	case <-notifier.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a level 1 notification")
	}

	notifier.mu.Lock()
	if len(notifier.sent) != 1 || notifier.sent[0].ID != rec.ID {
		t.Errorf("notified records = %v, want the new record", notifier.sent)
	}
	notifier.mu.Unlock()
}

func TestCreate_Level4DoesNotNotify(t *testing.T) {
	t.Parallel()

	notifier := newMockNotifier()
	store := &mockStore{}
	engine := NewEngine(nil, 0, log.Nop(), EngineHooks{})
	svc := NewService(store, engine, nil, nil, notifier, log.Nop(), nil)

	_, err := svc.Create(context.Background(), testCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	select {
	case <-notifier.ch:
		t.Fatal("unexpected notification for non-critical level")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUpdateStatus_PublishesTransition(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		found: true,
		updated: &Record{
			ID:         "triage-1",
			FacilityID: "facility-1",
			Status:     StatusPending,
		},
	}
	pub := &mockPublisher{}
	engine := NewEngine(nil, 0, log.Nop(), EngineHooks{})
	svc := NewService(store, engine, nil, pub, nil, log.Nop(), nil)

	rec, ok, err := svc.UpdateStatus(context.Background(), "triage-1", StatusInProgress, "doctor-1")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !ok {
		t.Fatal("expected record to be found")
	}
	if rec.Status != StatusInProgress {
		t.Errorf("status = %q, want %q", rec.Status, StatusInProgress)
	}
	if rec.UpdatedBy != "doctor-1" {
		t.Errorf("updated_by = %q, want doctor-1", rec.UpdatedBy)
	}

	pub.mu.Lock()
	if len(pub.updates) != 1 || pub.updates[0] != "triage-1" {
		t.Errorf("published updates = %v, want [triage-1]", pub.updates)
	}
	pub.mu.Unlock()
}

func TestUpdateStatus_InvalidStatusRejected(t *testing.T) {
	t.Parallel()

	store := &mockStore{found: true, updated: &Record{ID: "triage-1"}}
	pub := &mockPublisher{}
	engine := NewEngine(nil, 0, log.Nop(), EngineHooks{})
	svc := NewService(store, engine, nil, pub, nil, log.Nop(), nil)

	_, _, err := svc.UpdateStatus(context.Background(), "triage-1", Status("archived"), "doctor-1")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	pub.mu.Lock()
	if len(pub.updates) != 0 {
		t.Error("invalid transition must not publish")
	}
	pub.mu.Unlock()
}

func TestUpdateStatus_NotFound(t *testing.T) {
	t.Parallel()

	store := &mockStore{found: false}
	engine := NewEngine(nil, 0, log.Nop(), EngineHooks{})
	svc := NewService(store, engine, nil, nil, nil, log.Nop(), nil)

	_, ok, err := svc.UpdateStatus(context.Background(), "missing", StatusCompleted, "doctor-1")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if ok {
		t.Error("expected ok = false for missing record")
	}
}
