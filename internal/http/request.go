package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"precatorios/internal/analytics"
	"precatorios/internal/core"
)

const maxBodyBytes = 64 << 10

// RequestBodyParser reads a JSON or form-encoded body once and exposes
// its fields as trimmed strings.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse decodes the body. JSON is detected from the first byte.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(p.err, &tooLarge) {
			p.err = invalidParam("Corpo da requisição muito grande")
		}
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}
	if trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.err = invalidParam("JSON inválido")
		}
		return p.err
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	if p.err != nil {
		p.err = invalidParam("Formato da requisição inválido")
	}
	return p.err
}

// Get returns a field from the parsed body, or "".
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// GetSecret returns a field without trimming, for passwords.
func (p *RequestBodyParser) GetSecret(key string) string {
	if p.jsonData != nil {
		s, _ := p.jsonData[key].(string)
		return s
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s))
}

// CohortParams selects which records a chart or list covers.
type CohortParams struct {
	Year       int
	Status     core.Status
	Group      string
	GroupMatch analytics.GroupMatch
}

// ParseCohortParams reads year, status, group and match. Empty values
// mean no restriction.
func ParseCohortParams(q url.Values) (CohortParams, error) {
	var p CohortParams

	if v := strings.TrimSpace(q.Get("year")); v != "" && v != "all" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1900 || y > 9999 {
			return p, invalidParam("Ano inválido: " + v)
		}
		p.Year = y
	}

	if v := strings.TrimSpace(q.Get("status")); v != "" && v != "all" {
		st := core.Status(v)
		if st.Validate() != nil {
			return p, invalidParam("Status inválido: " + v)
		}
		p.Status = st
	}

	p.Group = sanitizeInput(q.Get("group"))
	switch m := analytics.GroupMatch(strings.TrimSpace(q.Get("match"))); m {
	case "", analytics.MatchExact:
		p.GroupMatch = analytics.MatchExact
	case analytics.MatchSubstring:
		p.GroupMatch = analytics.MatchSubstring
	default:
		return p, invalidParam("Modo de comparação inválido: " + string(m))
	}
	return p, nil
}

// ParseGrain reads grain, defaulting to monthly.
func ParseGrain(q url.Values) (analytics.Grain, error) {
	g := analytics.Grain(strings.TrimSpace(q.Get("grain")))
	if g == "" {
		return analytics.Monthly, nil
	}
	if !g.Valid() {
		return "", invalidParam("Granularidade inválida: " + string(g))
	}
	return g, nil
}

// Series display modes.
const (
	ModeValue      = "value"
	ModePercentage = "percentage"
)

func ParseMode(q url.Values) (string, error) {
	switch m := strings.TrimSpace(q.Get("mode")); m {
	case "", ModeValue:
		return ModeValue, nil
	case ModePercentage:
		return ModePercentage, nil
	default:
		return "", invalidParam("Modo inválido: " + m)
	}
}

// ParseDimension accepts the short names used by the front end.
func ParseDimension(q url.Values) (analytics.Dimension, error) {
	switch d := strings.TrimSpace(q.Get("dimension")); d {
	case "", "mapa", string(analytics.ByMapaOrcamentario):
		return analytics.ByMapaOrcamentario, nil
	case "fase", string(analytics.ByFaseProcesso):
		return analytics.ByFaseProcesso, nil
	default:
		return "", invalidParam("Dimensão inválida: " + d)
	}
}

// ParseIncidente reads the incident-type tab; "" and "all" select every type.
func ParseIncidente(q url.Values) (core.Incidente, error) {
	v := strings.TrimSpace(q.Get("incidente"))
	if v == "" || v == "all" {
		return "", nil
	}
	inc := core.Incidente(v)
	if inc.Validate() != nil {
		return "", invalidParam("Tipo de incidente inválido: " + v)
	}
	return inc, nil
}

// ParseView looks up the named chart, defaulting to the investment view.
func ParseView(q url.Values) (analytics.View, error) {
	name := strings.TrimSpace(q.Get("view"))
	if name == "" {
		return analytics.InvestmentView, nil
	}
	v, ok := analytics.ViewByName(name)
	if !ok {
		return analytics.View{}, invalidParam("Visão inválida: " + name)
	}
	return v, nil
}
