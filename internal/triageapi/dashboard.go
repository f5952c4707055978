package triageapi

import (
	"net/http"

	"github.com/linnemanlabs/edtriage/internal/auth"
)

func (a *API) handleDashboardOverview(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	data, cached, err := a.dash.Overview(r.Context(), id.FacilityID)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to build dashboard overview", "facility_id", id.FacilityID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	a.writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
		"cached":  cached,
	})
}
