package triage

import (
	"context"
	"time"
)

// Publisher is the event-publication capability handed to the Service. It is
// an explicit dependency rather than a shared broadcaster so the publish path
// is testable in isolation. Implementations must not block: the mutation that
// triggered an event never waits for delivery, and delivery failures are
// swallowed.
type Publisher interface {
	// TriageCreated announces a newly persisted record to its facility.
	TriageCreated(ctx context.Context, r *Record)

	// TriageUpdated announces a status transition to the facility.
	TriageUpdated(ctx context.Context, facilityID, id string, status Status, updatedBy string, at time.Time)
}

// NopPublisher discards all events.
type NopPublisher struct{}

// TriageCreated implements Publisher.
func (NopPublisher) TriageCreated(context.Context, *Record) {}

// TriageUpdated implements Publisher.
func (NopPublisher) TriageUpdated(context.Context, string, string, Status, string, time.Time) {}
