package api

import (
	"net/http"
	"strconv"
)

func (s *Server) handleRunSweep(w http.ResponseWriter, r *http.Request) {
	res, err := s.sweepSvc.RunSweep(r.Context())
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleListSweeps returns recent sweep runs. Accepts ?limit=N (default 50).
func (s *Server) handleListSweeps(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	runs, err := s.sweepSvc.ListSweepRuns(r.Context(), limit)
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
