package adapthttp

import (
	"net/http"
)

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	days := intQuery(r, "days", 90)
	unit := r.URL.Query().Get("unit")
	if unit == "" {
		unit = "kg"
	}

	points, err := s.charts.GetDaily(r.Context(), user.ID, days, unit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"days":  len(points),
		"unit":  unit,
		"today": s.entries.Today(),
		"items": points,
	})
}
