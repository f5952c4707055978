package triageapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/edtriage/internal/auth"
	"github.com/linnemanlabs/edtriage/internal/triage"
)

// maxVideoBytes caps an uploaded assessment video.
const maxVideoBytes = 32 << 20 // 32MB

// createRequest is the JSON body (or multipart fields) of a submission.
type createRequest struct {
	PatientID       string             `json:"patientId"`
	ChiefComplaint  string             `json:"chiefComplaint"`
	AdditionalNotes string             `json:"additionalNotes"`
	VitalSigns      *triage.VitalSigns `json:"vitalSigns"`
}

func (a *API) handleCreateTriage(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req createRequest
	var video []byte

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxVideoBytes); err != nil {
			http.Error(w, `{"error":"invalid multipart payload"}`, http.StatusBadRequest)
			return
		}
		req.PatientID = r.FormValue("patientId")
		req.ChiefComplaint = r.FormValue("chiefComplaint")
		req.AdditionalNotes = r.FormValue("additionalNotes")
		if vs := r.FormValue("vitalSigns"); vs != "" {
			if err := json.Unmarshal([]byte(vs), &req.VitalSigns); err != nil {
				http.Error(w, `{"error":"invalid vitalSigns payload"}`, http.StatusBadRequest)
				return
			}
		}
		if file, _, err := r.FormFile("video"); err == nil {
			video, _ = io.ReadAll(io.LimitReader(file, maxVideoBytes))
			file.Close()
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
			return
		}
	}

	rec, err := a.svc.Create(r.Context(), &triage.CreateInput{
		PatientID:       req.PatientID,
		FacilityID:      id.FacilityID,
		ChiefComplaint:  req.ChiefComplaint,
		AdditionalNotes: req.AdditionalNotes,
		AssessedBy:      id.UserID,
		VitalSigns:      req.VitalSigns,
		Video:           video,
	})
	if err != nil {
		if errors.Is(err, triage.ErrValidation) {
			a.writeJSON(r.Context(), w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		a.logger.Error(r.Context(), err, "failed to create triage assessment")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("triage.id", rec.ID),
		attribute.String("triage.level", string(rec.Result.Level)),
	)

	a.writeJSON(r.Context(), w, http.StatusCreated, rec)
}

func (a *API) handleGetTriage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("triage.id", id))

	rec, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get triage record", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	a.writeJSON(r.Context(), w, http.StatusOK, rec)
}

func (a *API) handleListTriage(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	f := triage.ListFilter{
		FacilityID: id.FacilityID,
		Status:     triage.Status(q.Get("status")),
		Level:      triage.Level(q.Get("level")),
		PatientID:  q.Get("patientId"),
	}
	if f.Status != "" && !f.Status.Valid() {
		http.Error(w, `{"error":"invalid status filter"}`, http.StatusBadRequest)
		return
	}
	if f.Level != "" && !f.Level.Valid() {
		http.Error(w, `{"error":"invalid level filter"}`, http.StatusBadRequest)
		return
	}
	if v := q.Get("limit"); v != "" {
		f.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		f.Offset, _ = strconv.Atoi(v)
	}

	recs, err := a.svc.List(r.Context(), f)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list triage records")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []*triage.Record{}
	}

	a.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"data": recs})
}

func (a *API) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	triageID := chi.URLParam(r, "id")

	var req struct {
		Status triage.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	rec, found, err := a.svc.UpdateStatus(r.Context(), triageID, req.Status, id.UserID)
	if err != nil {
		if errors.Is(err, triage.ErrValidation) {
			a.writeJSON(r.Context(), w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		a.logger.Error(r.Context(), err, "failed to update triage status", "id", triageID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	a.writeJSON(r.Context(), w, http.StatusOK, rec)
}
