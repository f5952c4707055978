package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/linnemanlabs/edtriage/internal/triage"
)

// Event types published on triage mutations.
const (
	EventTriageNew     = "triage:new"
	EventTriageUpdated = "triage:updated"
)

// Publisher adapts the hub to the triage.Publisher interface.
type Publisher struct {
	hub *Hub
}

// NewPublisher creates a Publisher over the given hub.
func NewPublisher(hub *Hub) *Publisher {
	return &Publisher{hub: hub}
}

// TriageCreated announces a new assessment to the record's facility room.
func (p *Publisher) TriageCreated(ctx context.Context, r *triage.Record) {
	data, err := json.Marshal(struct {
		ID            string       `json:"id"`
		PatientID     string       `json:"patientId"`
		Level         triage.Level `json:"level"`
		PriorityScore int          `json:"priorityScore"`
		Timestamp     time.Time    `json:"timestamp"`
	}{
		ID:            r.ID,
		PatientID:     r.PatientID,
		Level:         r.Result.Level,
		PriorityScore: r.Result.PriorityScore,
		Timestamp:     r.CreatedAt,
	})
	if err != nil {
		return
	}

	p.hub.Broadcast(ctx, Event{
		Type:      EventTriageNew,
		Room:      FacilityRoom(r.FacilityID),
		Timestamp: r.CreatedAt,
		Data:      data,
	})
}

// TriageUpdated announces a status transition to the facility room and to the
// record's own room for sessions following the case.
func (p *Publisher) TriageUpdated(ctx context.Context, facilityID, id string, status triage.Status, updatedBy string, at time.Time) {
	data, err := json.Marshal(struct {
		ID        string        `json:"id"`
		Status    triage.Status `json:"status"`
		UpdatedBy string        `json:"updatedBy"`
		Timestamp time.Time     `json:"timestamp"`
	}{
		ID:        id,
		Status:    status,
		UpdatedBy: updatedBy,
		Timestamp: at,
	})
	if err != nil {
		return
	}

	for _, room := range []string{FacilityRoom(facilityID), TriageRoom(id)} {
		p.hub.Broadcast(ctx, Event{
			Type:      EventTriageUpdated,
			Room:      room,
			Timestamp: at,
			Data:      data,
		})
	}
}
