package http

import (
	"net/http"

	"precatorios/internal/analytics"
	applog "precatorios/internal/log"
)

// seriesPoint is a bucket plus, in percentage mode, the paid/net ratio.
type seriesPoint struct {
	analytics.Bucket
	Percentage *float64 `json:"percentage,omitempty"`
}

type seriesResponse struct {
	View     string          `json:"view"`
	Grain    analytics.Grain `json:"grain"`
	Mode     string          `json:"mode"`
	Year     int             `json:"year,omitempty"`
	Series   []seriesPoint   `json:"series"`
	Years    []int           `json:"years"`
	Total    int             `json:"total"`
	Filtered int             `json:"filtered"`
}

// analyticsQuery builds the query shared by the chart endpoints: the named
// view, overridden by explicit status or group parameters.
func analyticsQuery(r *http.Request) (analytics.View, analytics.Query, error) {
	params := r.URL.Query()
	view, err := ParseView(params)
	if err != nil {
		return view, analytics.Query{}, err
	}
	grain, err := ParseGrain(params)
	if err != nil {
		return view, analytics.Query{}, err
	}
	cohort, err := ParseCohortParams(params)
	if err != nil {
		return view, analytics.Query{}, err
	}

	q := view.Query(grain, cohort.Year, viewerFrom(r.Context()))
	if cohort.Status != "" {
		q.Status = cohort.Status
	}
	if cohort.Group != "" {
		q.Group = cohort.Group
		q.GroupMatch = cohort.GroupMatch
	}
	return view, q, nil
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	view, q, err := analyticsQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	mode, err := ParseMode(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	res := analytics.Aggregate(ds.Records, q)
	points := make([]seriesPoint, len(res.Series))
	for i, b := range res.Series {
		points[i] = seriesPoint{Bucket: b}
		if mode == ModePercentage {
			pct := b.Percentage()
			points[i].Percentage = &pct
		}
	}
	years := res.Years
	if years == nil {
		years = []int{}
	}
	writeJSON(w, http.StatusOK, seriesResponse{
		View:     view.Name,
		Grain:    q.Grain,
		Mode:     mode,
		Year:     q.Year,
		Series:   points,
		Years:    years,
		Total:    res.Total,
		Filtered: res.Filtered,
	})
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	_, q, err := analyticsQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dim, err := ParseDimension(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.Breakdown(ds.Records, q, dim))
}

func (s *Server) handleIncidentes(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	_, q, err := analyticsQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"incidentes": analytics.ByIncidente(ds.Records, q),
	})
}

// handlePendingSnapshot returns the viewer's frozen pending-payment table
// for the current month, computing it on first access.
func (s *Server) handlePendingSnapshot(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	p, err := s.snapshots.Pending(r.Context(), s.now(), viewerFrom(r.Context()), ds.Records)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleInvalidateSnapshots drops this month's snapshot of one assignee
// when ?cessionario= is given, otherwise every stored snapshot.
func (s *Server) handleInvalidateSnapshots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if name := sanitizeInput(r.URL.Query().Get("cessionario")); name != "" {
		viewer := analytics.Viewer{Assignee: name}
		if err := s.snapshots.Invalidate(ctx, s.now(), viewer); err != nil {
			writeError(w, r, err)
			return
		}
		applog.FromContext(ctx).InfoContext(ctx, "Pending snapshot cleared",
			applog.FieldOperation, applog.OpSnapshot,
			applog.FieldScope, viewer.Scope())
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.snapshots.InvalidateAll(ctx); err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(ctx).InfoContext(ctx, "Pending snapshots cleared",
		applog.FieldOperation, applog.OpSnapshot)
	w.WriteHeader(http.StatusNoContent)
}
