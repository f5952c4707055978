package triage

import "time"

// Level is the urgency classification on the five-point emergency triage
// scale. "1" is most urgent. It is a string on the wire.
type Level string

const (
	Level1 Level = "1" // immediate, life-threatening
	Level2 Level = "2" // very urgent, within 10 minutes
	Level3 Level = "3" // urgent, within 30 minutes
	Level4 Level = "4" // semi-urgent, within 1 hour
	Level5 Level = "5" // non-urgent, within 2 hours
)

// Valid reports whether l is one of the five defined levels.
func (l Level) Valid() bool {
	switch l {
	case Level1, Level2, Level3, Level4, Level5:
		return true
	}
	return false
}

// waitMinutes maps a triage level to its estimated wait time. The wait time
// is always derived from the level, never taken from an assessor response.
var waitMinutes = map[Level]int{
	Level1: 0,
	Level2: 10,
	Level3: 30,
	Level4: 60,
	Level5: 120,
}

// WaitMinutesForLevel returns the estimated wait in minutes for a level.
func WaitMinutesForLevel(l Level) int {
	return waitMinutes[l]
}

// Consciousness is a coarse level-of-consciousness observation. The empty
// string means "not assessed".
type Consciousness string

const (
	ConsciousnessAlert        Consciousness = "alert"
	ConsciousnessConfused     Consciousness = "confused"
	ConsciousnessUnresponsive Consciousness = "unresponsive"
)

// BloodPressure holds a blood pressure reading in mmHg.
type BloodPressure struct {
	Systolic  *int `json:"systolic,omitempty"`
	Diastolic *int `json:"diastolic,omitempty"`
}

// VitalSigns holds the measurements available for a patient. Every field is
// independently optional: a nil pointer (or empty enum) means the value was
// not measured. A measured zero is a real reading and is never treated as
// absent.
type VitalSigns struct {
	HeartRate        *int           `json:"heartRate,omitempty"`
	RespiratoryRate  *int           `json:"respiratoryRate,omitempty"`
	OxygenSaturation *int           `json:"oxygenSaturation,omitempty"`
	BloodPressure    *BloodPressure `json:"bloodPressure,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
	Consciousness    Consciousness  `json:"consciousness,omitempty"`
	PainLevel        *int           `json:"painLevel,omitempty"`
	SkinColor        string         `json:"skinColor,omitempty"`
	CapillaryRefill  *float64       `json:"capillaryRefill,omitempty"`
}

// AssessmentInput is a single triage submission. Created per request and
// never mutated afterward.
type AssessmentInput struct {
	PatientID       string
	ChiefComplaint  string
	AdditionalNotes string
	VitalSigns      *VitalSigns // nil when no vitals were supplied
	AssessedBy      string
}

// Result is the outcome of a classification. Produced once per assessment and
// immutable afterward; a later status change is a lifecycle event, not a
// re-score.
type Result struct {
	Level                Level    `json:"level"`
	PriorityScore        int      `json:"priorityScore"`
	Notes                string   `json:"notes"`
	Recommendations      []string `json:"recommendations"`
	EstimatedWaitMinutes int      `json:"estimatedWaitTime"`
}

// Status tracks where a triage record is in its lifecycle.
type Status string

const (
	// StatusPending means assessed, waiting to be seen
	StatusPending Status = "pending"

	// StatusInProgress means the patient is being treated
	StatusInProgress Status = "in_progress"

	// StatusCompleted means treatment finished
	StatusCompleted Status = "completed"

	// StatusCancelled means the patient left or the record was voided
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Record is a persisted triage assessment.
type Record struct {
	ID              string      `json:"id"`
	PatientID       string      `json:"patient_id"`
	FacilityID      string      `json:"facility_id"`
	ChiefComplaint  string      `json:"chief_complaint"`
	AdditionalNotes string      `json:"additional_notes,omitempty"`
	VitalSigns      *VitalSigns `json:"vital_signs,omitempty"`
	Result          Result      `json:"result"`
	Status          Status      `json:"status"`
	AssessedBy      string      `json:"assessed_by"`
	UpdatedBy       string      `json:"updated_by,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
