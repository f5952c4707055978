// Package triage provides the business boundary for emergency-room triage.
// It defines the Service (validation, lifecycle, event publication), Engine
// (classification with external-assessor fallback), Store interface
// (persistence), and domain models.
package triage
