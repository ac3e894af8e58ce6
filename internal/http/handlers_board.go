package http

import (
	"net/http"
	"time"

	"precatorios/internal/analytics"
	"precatorios/internal/board"
	"precatorios/internal/core"
	applog "precatorios/internal/log"
	"precatorios/internal/refresh"
)

type boardResponse struct {
	BoardID   string        `json:"board_id"`
	BoardName string        `json:"board_name"`
	Groups    []board.Group `json:"groups"`
	Items     int           `json:"items"`
	Records   int           `json:"records"`
	FetchedAt time.Time     `json:"fetched_at"`
}

func newBoardResponse(ds *refresh.Dataset) boardResponse {
	groups := ds.Groups
	if groups == nil {
		groups = []board.Group{}
	}
	return boardResponse{
		BoardID:   ds.BoardID,
		BoardName: ds.BoardName,
		Groups:    groups,
		Items:     ds.Items,
		Records:   len(ds.Records),
		FetchedAt: ds.FetchedAt,
	}
}

// dataset returns the live dataset or writes a 503 notification.
func (s *Server) dataset(w http.ResponseWriter, r *http.Request) (*refresh.Dataset, bool) {
	ds := s.datasets.Current()
	if ds == nil {
		writeError(w, r, refresh.ErrNoDataset)
		return nil, false
	}
	return ds, true
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newBoardResponse(ds))
}

// handleCessionarios lists the assignees the viewer may filter by. Admins
// also get the raw board labels, before exclusion and renaming.
func (s *Server) handleCessionarios(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	body := map[string][]string{
		"cessionarios": nonNil(analytics.Cessionarios(ds.Records, viewerFrom(r.Context()))),
	}
	if profileFrom(r.Context()).IsAdmin() {
		body["raw"] = nonNil(ds.RawCessionarios)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleAcquisitions(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	p, err := ParseCohortParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := analytics.Query{
		Status:     p.Status,
		Group:      p.Group,
		GroupMatch: p.GroupMatch,
		Viewer:     viewerFrom(r.Context()),
	}
	inc, err := ParseIncidente(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p.Year != 0 || inc != "" {
		q.Predicate = func(a core.Acquisition) bool {
			if p.Year != 0 && a.DataAquisicao.Year() != p.Year {
				return false
			}
			return inc == "" || a.Incidente == inc
		}
	}
	records := analytics.Filter(ds.Records, q)
	writeJSON(w, http.StatusOK, map[string]any{
		"acquisitions": records,
		"count":        len(records),
		"fetched_at":   ds.FetchedAt,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analytics.Summarize(ds.Records, viewerFrom(r.Context())))
}

// handleRefresh refetches the board. Concurrent calls share one fetch; on
// failure the previous dataset stays live.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ds, err := s.datasets.Refresh(r.Context(), refresh.TriggerManual)
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Manual refresh failed",
			applog.FieldOperation, applog.OpFetch,
			applog.FieldError, err)
		if r.Context().Err() != nil {
			return
		}
		writeNotification(w, r, http.StatusBadGateway, "refresh_failed",
			"Não foi possível atualizar os dados do quadro. Os dados anteriores foram mantidos.")
		return
	}
	writeJSON(w, http.StatusOK, newBoardResponse(ds))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
