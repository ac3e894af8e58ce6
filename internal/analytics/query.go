// Package analytics turns the acquisition set into chart-ready series.
//
// Every chart runs the same pipeline: filter (status or group, viewer,
// predicate), derive a period key from the chart's date field, drop
// other years when one is selected, bucket, sort, and window.
package analytics

import (
	"strings"

	"precatorios/internal/core"
	"precatorios/internal/textutil"
)

type (
	Grain      string
	DateField  string
	GroupMatch string
)

const (
	Monthly Grain = "monthly"
	Annual  Grain = "annual"
)

const (
	ByDataAquisicao      DateField = "data_aquisicao"
	ByDataPagamento      DateField = "data_pagamento"
	ByPagamentoAquisicao DateField = "pagamento_aquisicao"
)

const (
	MatchExact     GroupMatch = "exact"
	MatchSubstring GroupMatch = "substring"
)

// AllScope is the snapshot scope of a viewer that sees every record.
const AllScope = "*"

// Viewer is who is looking at the data. A viewer with All set, or with no
// assignee, is unscoped.
type Viewer struct {
	Assignee string
	All      bool
}

// Scope identifies the slice of data the viewer sees.
func (v Viewer) Scope() string {
	if v.unscoped() {
		return AllScope
	}
	return textutil.Fold(v.Assignee)
}

func (v Viewer) unscoped() bool {
	return v.All || strings.TrimSpace(v.Assignee) == ""
}

// Sees reports whether the record belongs to the viewer.
func (v Viewer) Sees(a core.Acquisition) bool {
	return v.unscoped() || textutil.EqualFold(a.CessionarioNome, v.Assignee)
}

// Query parameterises one aggregation.
type Query struct {
	Grain Grain
	// Year restricts buckets to one calendar year; 0 means all years.
	Year int
	// Status is ignored when Group is set.
	Status     core.Status
	Group      string
	GroupMatch GroupMatch
	Viewer     Viewer
	Predicate  func(core.Acquisition) bool
	DateField  DateField
	// Window keeps the most recent periods of an all-years monthly series.
	Window int
}

func (f DateField) Valid() bool {
	switch f {
	case ByDataAquisicao, ByDataPagamento, ByPagamentoAquisicao:
		return true
	}
	return false
}

// Of returns the record's date for the field, or nil when unset.
func (f DateField) Of(a core.Acquisition) *core.Date {
	switch f {
	case ByDataPagamento:
		return a.DataPagamento
	case ByPagamentoAquisicao:
		return a.PagamentoAquisicao
	default:
		if a.DataAquisicao.IsZero() {
			return nil
		}
		d := a.DataAquisicao
		return &d
	}
}

func (g Grain) Valid() bool {
	return g == Monthly || g == Annual
}

// Filter applies, in order: the status or group filter, viewer scoping and
// the caller predicate.
func Filter(records []core.Acquisition, q Query) []core.Acquisition {
	out := make([]core.Acquisition, 0, len(records))
	for _, a := range records {
		if !matchesCohort(a, q) {
			continue
		}
		if !q.Viewer.Sees(a) {
			continue
		}
		if q.Predicate != nil && !q.Predicate(a) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func matchesCohort(a core.Acquisition, q Query) bool {
	if q.Group != "" {
		grupo := core.Deref(a.Grupo)
		if q.GroupMatch == MatchSubstring {
			return strings.Contains(textutil.Fold(grupo), textutil.Fold(q.Group))
		}
		return grupo == q.Group
	}
	if q.Status != "" {
		return a.Status == q.Status
	}
	return true
}
