package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"precatorios/internal/core"
)

var (
	datePrefix     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	timelineStart  = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)
	numberPrefix   = regexp.MustCompile(`^\d*\.?\d*`)
	nonNumericRune = regexp.MustCompile(`[^\d.,]`)
)

// ExtractDate reads a YYYY-MM-DD prefix. Anything else, including an
// impossible calendar date, yields nil.
func ExtractDate(text string) *core.Date {
	m := datePrefix.FindString(strings.TrimSpace(text))
	if m == "" {
		return nil
	}
	d, err := core.ParseDate(m)
	if err != nil {
		return nil
	}
	return &d
}

// ExtractTimelineStart reads the start of a "YYYY-MM-DD - YYYY-MM-DD"
// range.
func ExtractTimelineStart(text string) *core.Date {
	m := timelineStart.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return nil
	}
	d, err := core.ParseDate(m[1])
	if err != nil {
		return nil
	}
	return &d
}

// ExtractMoney keeps digits, dots and commas, turns the first comma into a
// decimal point and reads the longest leading number. Unparseable text is
// zero.
func ExtractMoney(text string) core.Money {
	cleaned := nonNumericRune.ReplaceAllString(text, "")
	cleaned = strings.Replace(cleaned, ",", ".", 1)
	prefix := numberPrefix.FindString(cleaned)
	if prefix == "" || prefix == "." {
		return core.Money{}
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return core.Money{}
	}
	return core.MoneyFromFloat(v)
}

var incidenteLabels = map[string]core.Incidente{
	"Precatório":            core.Precatorio,
	"RPV":                   core.RPV,
	"Precatório Prioridade": core.PrecatorioPrioridade,
	"Precatório SJRP":       core.PrecatorioSJRP,
}

// ParseIncidente maps a board label to the incident type. Unknown labels
// fall back to the first variant.
func ParseIncidente(label string) core.Incidente {
	if i, ok := incidenteLabels[label]; ok {
		return i
	}
	return core.Incidentes[0]
}
