package triage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/linnemanlabs/go-core/log"
)

// mockAssessor returns a preconfigured result or error.
type mockAssessor struct {
	mu     sync.Mutex
	result *Result
	err    error
	block  bool // simulate a hung upstream: wait for ctx cancellation
	calls  int
}

func (m *mockAssessor) Assess(ctx context.Context, _ *AssessorRequest) (*Result, error) {
	m.mu.Lock()
	m.calls++
	result, err, block := m.result, m.err, m.block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *mockAssessor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func intp(v int) *int { return &v }

func floatp(v float64) *float64 { return &v }

func testInput(vs *VitalSigns) *AssessmentInput {
	return &AssessmentInput{
		PatientID:      "patient-1",
		ChiefComplaint: "twisted ankle",
		VitalSigns:     vs,
		AssessedBy:     "nurse-1",
	}
}

func TestAssess_AssessorResult(t *testing.T) {
	t.Parallel()

	assessor := &mockAssessor{
		result: &Result{
			Level:                Level2,
			PriorityScore:        78,
			Notes:                "possible cardiac event",
			Recommendations:      []string{"ECG within 10 minutes"},
			EstimatedWaitMinutes: 999, // assessor estimate must be ignored
		},
	}
	engine := NewEngine(assessor, time.Second, log.Nop(), EngineHooks{})

	result := engine.Assess(context.Background(), testInput(nil))

	if result.Level != Level2 {
		t.Errorf("level = %q, want %q", result.Level, Level2)
	}
	if result.PriorityScore != 78 {
		t.Errorf("priority score = %d, want 78", result.PriorityScore)
	}
	if result.EstimatedWaitMinutes != 10 {
		t.Errorf("estimated wait = %d, want 10 (derived from level, not assessor)", result.EstimatedWaitMinutes)
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0] != "ECG within 10 minutes" {
		t.Errorf("recommendations = %v, want assessor's", result.Recommendations)
	}
}

func TestAssess_AssessorErrorFallsBack(t *testing.T) {
	t.Parallel()

	assessor := &mockAssessor{err: errors.New("connection refused")}
	engine := NewEngine(assessor, time.Second, log.Nop(), EngineHooks{})

	input := testInput(nil)
	input.ChiefComplaint = "crushing chest pain"
	result := engine.Assess(context.Background(), input)

	if result.Level != Level2 {
		t.Errorf("level = %q, want %q (keyword fallback)", result.Level, Level2)
	}
	if result.PriorityScore != 75 {
		t.Errorf("priority score = %d, want 75", result.PriorityScore)
	}
}

func TestAssess_AssessorTimeoutFallsBack(t *testing.T) {
	t.Parallel()

	assessor := &mockAssessor{block: true}
	engine := NewEngine(assessor, 20*time.Millisecond, log.Nop(), EngineHooks{})

	start := time.Now()
	result := engine.Assess(context.Background(), testInput(nil))
	elapsed := time.Since(start)

	if result == nil {
		t.Fatal("expected a result despite hung assessor")
	}
	if result.Level != Level4 {
		t.Errorf("level = %q, want %q (keyword fallback default)", result.Level, Level4)
	}
	if elapsed > time.Second {
		t.Errorf("assessment took %v, timeout did not bound the call", elapsed)
	}
	if got := assessor.callCount(); got != 1 {
		t.Errorf("assessor calls = %d, want 1 (no retry on timeout)", got)
	}
}

func TestAssess_MalformedAssessorResultFallsBack(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		result *Result
	}{
		{"invalid level", &Result{Level: "7", PriorityScore: 50}},
		{"empty level", &Result{PriorityScore: 50}},
		{"score too high", &Result{Level: Level3, PriorityScore: 150}},
		{"negative score", &Result{Level: Level3, PriorityScore: -1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			engine := NewEngine(&mockAssessor{result: tc.result}, time.Second, log.Nop(), EngineHooks{})
			result := engine.Assess(context.Background(), testInput(nil))

			if result.Level != Level4 {
				t.Errorf("level = %q, want %q (fallback)", result.Level, Level4)
			}
		})
	}
}

func TestAssess_NilAssessorUsesFallback(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, 0, log.Nop(), EngineHooks{})
	result := engine.Assess(context.Background(), testInput(nil))

	if result.Level != Level4 {
		t.Errorf("level = %q, want %q", result.Level, Level4)
	}
}

func TestAssess_VitalBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		vitals    *VitalSigns
		wantLevel Level
		wantScore int
	}{
		{"hr 39 critical", &VitalSigns{HeartRate: intp(39)}, Level1, 100},
		{"hr 40 not critical", &VitalSigns{HeartRate: intp(40)}, Level2, 80},
		{"hr 151 critical", &VitalSigns{HeartRate: intp(151)}, Level1, 100},
		{"hr 150 not critical", &VitalSigns{HeartRate: intp(150)}, Level2, 80},
		{"hr 80 normal", &VitalSigns{HeartRate: intp(80)}, Level5, 20},
		{"rr 7 critical", &VitalSigns{RespiratoryRate: intp(7)}, Level1, 100},
		{"rr 31 critical", &VitalSigns{RespiratoryRate: intp(31)}, Level1, 100},
		{"spo2 89 critical", &VitalSigns{OxygenSaturation: intp(89)}, Level1, 100},
		{"spo2 90 urgent", &VitalSigns{OxygenSaturation: intp(90)}, Level2, 80},
		{"spo2 95 mild", &VitalSigns{OxygenSaturation: intp(95)}, Level3, 60},
		{"spo2 96 normal", &VitalSigns{OxygenSaturation: intp(96)}, Level5, 20},
		{"sbp 79 critical", &VitalSigns{BloodPressure: &BloodPressure{Systolic: intp(79)}}, Level1, 100},
		{"sbp 99 urgent", &VitalSigns{BloodPressure: &BloodPressure{Systolic: intp(99)}}, Level2, 80},
		{"unresponsive critical", &VitalSigns{Consciousness: ConsciousnessUnresponsive}, Level1, 100},
		{"confused urgent", &VitalSigns{Consciousness: ConsciousnessConfused}, Level2, 80},
		{"alert normal", &VitalSigns{Consciousness: ConsciousnessAlert}, Level5, 20},
		{"pain 8 urgent", &VitalSigns{PainLevel: intp(8)}, Level2, 80},
		{"pain 5 moderate", &VitalSigns{PainLevel: intp(5)}, Level3, 60},
		{"pain 3 minor", &VitalSigns{PainLevel: intp(3)}, Level4, 40},
		{"pain 2 routine", &VitalSigns{PainLevel: intp(2)}, Level5, 20},
		{"fever 38.6 minor", &VitalSigns{Temperature: floatp(38.6)}, Level4, 40},
		{"fever 38.5 routine", &VitalSigns{Temperature: floatp(38.5)}, Level5, 20},
		{"empty vitals routine", &VitalSigns{}, Level5, 20},
	}

	engine := NewEngine(nil, 0, log.Nop(), EngineHooks{})

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := engine.Assess(context.Background(), testInput(tc.vitals))
			if result.Level != tc.wantLevel {
				t.Errorf("level = %q, want %q", result.Level, tc.wantLevel)
			}
			if result.PriorityScore != tc.wantScore {
				t.Errorf("priority score = %d, want %d", result.PriorityScore, tc.wantScore)
			}
			if result.EstimatedWaitMinutes != WaitMinutesForLevel(tc.wantLevel) {
				t.Errorf("estimated wait = %d, want %d", result.EstimatedWaitMinutes, WaitMinutesForLevel(tc.wantLevel))
			}
			if len(result.Recommendations) == 0 {
				t.Error("expected at least one recommendation")
			}
		})
	}
}

func TestAssess_MeasuredZeroIsCritical(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, 0, log.Nop(), EngineHooks{})

	// A measured zero is a real reading: heart rate 0 must classify as level 1,
	// never as "not measured".
	result := engine.Assess(context.Background(), testInput(&VitalSigns{HeartRate: intp(0)}))
	if result.Level != Level1 {
		t.Errorf("level = %q, want %q for measured zero heart rate", result.Level, Level1)
	}
}

func TestAssess_KeywordCascade(t *testing.T) {
	t.Parallel()

	cases := []struct {
		complaint string
		wantLevel Level
		wantScore int
	}{
		{"Crushing CHEST PAIN radiating to arm", Level2, 75},
		{"difficulty breathing since morning", Level2, 75},
		{"possible stroke symptoms", Level2, 75},
		{"high fever and chills", Level3, 55},
		{"persistent headache", Level3, 55},
		{"stubbed toe", Level4, 35},
	}

	engine := NewEngine(nil, 0, log.Nop(), EngineHooks{})

	for _, tc := range cases {
		t.Run(tc.complaint, func(t *testing.T) {
			t.Parallel()

			input := testInput(nil)
			input.ChiefComplaint = tc.complaint
			result := engine.Assess(context.Background(), input)

			if result.Level != tc.wantLevel {
				t.Errorf("level = %q, want %q", result.Level, tc.wantLevel)
			}
			if result.PriorityScore != tc.wantScore {
				t.Errorf("priority score = %d, want %d", result.PriorityScore, tc.wantScore)
			}
		})
	}
}

func TestAssess_EmptyVitalsSkipKeywords(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, 0, log.Nop(), EngineHooks{})

	// Vitals were supplied but all in range: the complaint keywords must not
	// escalate the level.
	input := testInput(&VitalSigns{HeartRate: intp(75)})
	input.ChiefComplaint = "chest pain"
	result := engine.Assess(context.Background(), input)

	if result.Level != Level5 {
		t.Errorf("level = %q, want %q (vitals present, keywords ignored)", result.Level, Level5)
	}
}

func TestAssess_Notes(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, 0, log.Nop(), EngineHooks{})

	withVitals := engine.Assess(context.Background(), testInput(&VitalSigns{HeartRate: intp(80)}))
	if !strings.Contains(withVitals.Notes, "vital signs") {
		t.Errorf("notes = %q, want mention of vital signs", withVitals.Notes)
	}

	withoutVitals := engine.Assess(context.Background(), testInput(nil))
	if !strings.Contains(withoutVitals.Notes, "chief complaint: twisted ankle") {
		t.Errorf("notes = %q, want mention of the complaint", withoutVitals.Notes)
	}
}

func TestAssess_CreatesSpan(t *testing.T) {
	// Not parallel: swaps the global OTel tracer provider.

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	engine := NewEngine(&mockAssessor{err: errors.New("down")}, time.Second, log.Nop(), EngineHooks{})
	engine.Assess(context.Background(), testInput(nil))

	spans := exporter.GetSpans()
	var assess *tracetest.SpanStub
	for i := range spans {
		if spans[i].Name == "triage.assess" {
			assess = &spans[i]
		}
	}
	if assess == nil {
		t.Fatalf("no triage.assess span recorded, got %d spans", len(spans))
	}

	attrs := make(map[string]any)
	for _, a := range assess.Attributes {
		attrs[string(a.Key)] = a.Value.AsInterface()
	}
	if attrs["triage.patient_id"] != "patient-1" {
		t.Errorf("triage.patient_id = %v, want patient-1", attrs["triage.patient_id"])
	}
	if attrs["triage.path"] != "fallback" {
		t.Errorf("triage.path = %v, want fallback", attrs["triage.path"])
	}
	if attrs["triage.level"] != "4" {
		t.Errorf("triage.level = %v, want 4", attrs["triage.level"])
	}
}

func TestAssess_HooksCalled(t *testing.T) {
	t.Parallel()

	var (
		mu            sync.Mutex
		assessedPath  string
		assessedLevel Level
		callFailed    bool
		callCount     int
	)
	hooks := EngineHooks{
		OnAssessed: func(path string, level Level) {
			mu.Lock()
			defer mu.Unlock()
			assessedPath = path
			assessedLevel = level
		},
		OnAssessorCall: func(_ float64, failed bool) {
			mu.Lock()
			defer mu.Unlock()
			callCount++
			callFailed = failed
		},
	}

	assessor := &mockAssessor{err: errors.New("boom")}
	engine := NewEngine(assessor, time.Second, log.Nop(), hooks)
	engine.Assess(context.Background(), testInput(nil))

	mu.Lock()
	defer mu.Unlock()

	if assessedPath != "fallback" {
		t.Errorf("assessed path = %q, want fallback", assessedPath)
	}
	if assessedLevel != Level4 {
		t.Errorf("assessed level = %q, want %q", assessedLevel, Level4)
	}
	if callCount != 1 {
		t.Errorf("assessor call hook count = %d, want 1", callCount)
	}
	if !callFailed {
		t.Error("expected assessor call hook to record failure")
	}
}
