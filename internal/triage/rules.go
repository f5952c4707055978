package triage

import (
	"fmt"
	"strings"
)

// vitalRule is one tier of the deterministic fallback: an ordered predicate
// over whatever vitals are present. Rules are evaluated top-down, most severe
// first, first match wins. Predicates only consider fields that were actually
// measured; a nil field never matches anything.
type vitalRule struct {
	level           Level
	score           int
	recommendations []string
	match           func(v *VitalSigns) bool
}

// below/above report whether a measured value crosses a threshold. A nil
// pointer means not measured and never matches.
func below(v *int, limit int) bool { return v != nil && *v < limit }

func above(v *int, limit int) bool { return v != nil && *v > limit }

func atLeast(v *int, limit int) bool { return v != nil && *v >= limit }

func systolic(v *VitalSigns) *int {
	if v.BloodPressure == nil {
		return nil
	}
	return v.BloodPressure.Systolic
}

var vitalRules = []vitalRule{
	{
		level: Level1,
		score: 100,
		recommendations: []string{
			"Immediate physician assessment required",
			"Prepare resuscitation equipment",
		},
		match: func(v *VitalSigns) bool {
			return below(v.HeartRate, 40) || above(v.HeartRate, 150) ||
				below(v.RespiratoryRate, 8) || above(v.RespiratoryRate, 30) ||
				below(v.OxygenSaturation, 90) ||
				below(systolic(v), 80) ||
				v.Consciousness == ConsciousnessUnresponsive
		},
	},
	{
		level:           Level2,
		score:           80,
		recommendations: []string{"Urgent assessment within 10 minutes"},
		match: func(v *VitalSigns) bool {
			return below(v.HeartRate, 50) || above(v.HeartRate, 120) ||
				below(v.RespiratoryRate, 12) || above(v.RespiratoryRate, 24) ||
				below(v.OxygenSaturation, 94) ||
				below(systolic(v), 100) ||
				v.Consciousness == ConsciousnessConfused ||
				atLeast(v.PainLevel, 8)
		},
	},
	{
		level:           Level3,
		score:           60,
		recommendations: []string{"Assessment within 30 minutes"},
		match: func(v *VitalSigns) bool {
			return below(v.HeartRate, 60) || above(v.HeartRate, 100) ||
				below(v.RespiratoryRate, 14) || above(v.RespiratoryRate, 20) ||
				below(v.OxygenSaturation, 96) ||
				atLeast(v.PainLevel, 5)
		},
	},
	{
		level:           Level4,
		score:           40,
		recommendations: []string{"Assessment within 1 hour"},
		match: func(v *VitalSigns) bool {
			return atLeast(v.PainLevel, 3) ||
				(v.Temperature != nil && *v.Temperature > 38.5)
		},
	},
}

// criticalKeywords map a chief complaint to level 2 when no vitals are
// available; urgentKeywords to level 3. Matching is case-insensitive
// substring containment.
var criticalKeywords = []string{
	"chest pain", "difficulty breathing", "unconscious", "severe pain",
	"bleeding", "trauma", "stroke", "heart attack", "seizure",
}

var urgentKeywords = []string{
	"fever", "abdominal pain", "headache", "nausea", "vomiting",
}

// classifyVitals walks the rule table and returns the first matching tier,
// defaulting to level 5 when nothing matches. The caller guarantees v != nil.
func classifyVitals(v *VitalSigns) (Level, int, []string) {
	for _, r := range vitalRules {
		if r.match(v) {
			return r.level, r.score, r.recommendations
		}
	}
	return Level5, 20, []string{"Routine assessment"}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// classifyComplaint is the keyword cascade used when no vital signs were
// supplied at all.
func classifyComplaint(complaintLower string) (Level, int, []string) {
	switch {
	case containsAny(complaintLower, criticalKeywords):
		return Level2, 75, []string{"Urgent assessment - collect vital signs immediately"}
	case containsAny(complaintLower, urgentKeywords):
		return Level3, 55, []string{"Standard assessment - collect vital signs"}
	default:
		return Level4, 35, []string{"Routine assessment"}
	}
}

func fallbackNotes(hasVitals bool, complaint string) string {
	if hasVitals {
		return fmt.Sprintf("Triage assessment based on vital signs and chief complaint: %s", complaint)
	}
	return fmt.Sprintf("Triage assessment based on chief complaint: %s", complaint)
}
