package triage

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
)

var tracer = otel.Tracer("github.com/linnemanlabs/edtriage/internal/triage")

// DefaultAssessTimeout bounds the single external assessor call per request.
const DefaultAssessTimeout = 15 * time.Second

// EngineHooks are optional callbacks for instrumentation (wired to Prometheus
// by NewMetrics).
type EngineHooks struct {
	// OnAssessed fires once per assessment with the path taken
	// ("assessor" or "fallback") and the resulting level.
	OnAssessed func(path string, level Level)

	// OnAssessorCall fires once per external assessor call with its
	// duration in seconds and whether it failed.
	OnAssessorCall func(duration float64, failed bool)
}

// Engine converts an assessment input into a triage result. It prefers the
// external assessor and falls back to the deterministic rule table on any
// failure. Assess never returns an error: a triage decision must exist for
// every submission regardless of upstream availability.
type Engine struct {
	assessor Assessor
	timeout  time.Duration
	logger   log.Logger
	hooks    EngineHooks
}

// NewEngine creates a classification engine. assessor may be nil, in which
// case every assessment takes the fallback path.
func NewEngine(assessor Assessor, timeout time.Duration, logger log.Logger, hooks EngineHooks) *Engine {
	if timeout <= 0 {
		timeout = DefaultAssessTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		assessor: assessor,
		timeout:  timeout,
		logger:   logger,
		hooks:    hooks,
	}
}

// Assess classifies a submission. The external assessor gets exactly one
// bounded attempt; a timeout is a terminal signal, not a retry trigger. Any
// failure is absorbed and the fallback runs synchronously on the same request.
func (e *Engine) Assess(ctx context.Context, input *AssessmentInput) *Result {
	ctx, span := tracer.Start(ctx, "triage.assess", trace.WithAttributes(
		attribute.String("triage.patient_id", input.PatientID),
		attribute.Bool("triage.has_vitals", input.VitalSigns != nil),
	))
	defer span.End()

	if result := e.tryAssessor(ctx, input); result != nil {
		span.SetAttributes(
			attribute.String("triage.path", "assessor"),
			attribute.String("triage.level", string(result.Level)),
		)
		if e.hooks.OnAssessed != nil {
			e.hooks.OnAssessed("assessor", result.Level)
		}
		return result
	}

	result := e.fallback(input)
	span.SetAttributes(
		attribute.String("triage.path", "fallback"),
		attribute.String("triage.level", string(result.Level)),
	)
	if e.hooks.OnAssessed != nil {
		e.hooks.OnAssessed("fallback", result.Level)
	}
	return result
}

// tryAssessor runs the single external call. It returns nil on any failure:
// timeout, transport error, open circuit, or a malformed response.
func (e *Engine) tryAssessor(ctx context.Context, input *AssessmentInput) *Result {
	if e.assessor == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	result, err := e.assessor.Assess(ctx, &AssessorRequest{
		ChiefComplaint:  input.ChiefComplaint,
		AdditionalNotes: input.AdditionalNotes,
		VitalSigns:      input.VitalSigns,
	})
	if e.hooks.OnAssessorCall != nil {
		e.hooks.OnAssessorCall(time.Since(start).Seconds(), err != nil)
	}
	if err != nil {
		// operational visibility only, never surfaced to the caller
		e.logger.Warn(ctx, "external assessor unavailable, using fallback",
			"patient_id", input.PatientID,
			"error", err.Error(),
		)
		return nil
	}

	if !validResult(result) {
		e.logger.Warn(ctx, "external assessor returned malformed result, using fallback",
			"patient_id", input.PatientID,
			"level", string(result.Level),
			"priority_score", result.PriorityScore,
		)
		return nil
	}

	// The wait estimate is always ours: derived from the level table, not
	// whatever the assessor claimed.
	result.EstimatedWaitMinutes = WaitMinutesForLevel(result.Level)
	if len(result.Recommendations) == 0 {
		result.Recommendations = recommendationsForLevel(result.Level)
	}
	return result
}

// fallback is the deterministic rule-table classification.
func (e *Engine) fallback(input *AssessmentInput) *Result {
	var (
		level Level
		score int
		recs  []string
	)
	if input.VitalSigns != nil {
		level, score, recs = classifyVitals(input.VitalSigns)
	} else {
		level, score, recs = classifyComplaint(strings.ToLower(input.ChiefComplaint))
	}

	return &Result{
		Level:                level,
		PriorityScore:        score,
		Notes:                fallbackNotes(input.VitalSigns != nil, input.ChiefComplaint),
		Recommendations:      recs,
		EstimatedWaitMinutes: WaitMinutesForLevel(level),
	}
}

func validResult(r *Result) bool {
	if r == nil {
		return false
	}
	if !r.Level.Valid() {
		return false
	}
	return r.PriorityScore >= 0 && r.PriorityScore <= 100
}

// recommendationsForLevel backfills instructions when the assessor omits
// them; a result must always carry at least one.
func recommendationsForLevel(l Level) []string {
	switch l {
	case Level1:
		return []string{"Immediate physician assessment required", "Prepare resuscitation equipment"}
	case Level2:
		return []string{"Urgent assessment within 10 minutes"}
	case Level3:
		return []string{"Assessment within 30 minutes"}
	case Level4:
		return []string{"Assessment within 1 hour"}
	default:
		return []string{"Routine assessment"}
	}
}
