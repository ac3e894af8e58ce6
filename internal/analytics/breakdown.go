package analytics

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"precatorios/internal/core"
	"precatorios/internal/textutil"
)

// Dimension is a secondary grouping key of the breakdown table.
type Dimension string

const (
	ByMapaOrcamentario Dimension = "mapa_orcamentario"
	ByFaseProcesso     Dimension = "fase_processo"
)

// NoneLabel stands in for a missing secondary label.
const NoneLabel = "none"

var (
	nonAlnum    = regexp.MustCompile(`[^a-z0-9]+`)
	firstNumber = regexp.MustCompile(`\d+`)
)

type (
	Column struct {
		Key   string `json:"key"`
		Label string `json:"label"`
	}

	Cell struct {
		Count        int        `json:"count"`
		ValorLiquido core.Money `json:"valor_liquido"`
	}

	// Row carries one cell for every column of the table.
	Row struct {
		Period string          `json:"period"`
		Cells  map[string]Cell `json:"cells"`
	}

	Table struct {
		Dimension Dimension `json:"dimension"`
		Columns   []Column  `json:"columns"`
		Rows      []Row     `json:"rows"`
		Years     []int     `json:"years"`
		Total     int       `json:"total"`
	}
)

func (d Dimension) Valid() bool {
	return d == ByMapaOrcamentario || d == ByFaseProcesso
}

func (d Dimension) label(a core.Acquisition) string {
	var v *string
	if d == ByFaseProcesso {
		v = a.FaseProcesso
	} else {
		v = a.MapaOrcamentario
	}
	if s := strings.TrimSpace(core.Deref(v)); s != "" {
		return s
	}
	return NoneLabel
}

// Breakdown splits each period of the aggregation by a secondary label.
// Columns come from every label seen in the year-filtered set, so rows are
// rectangular with explicit zeros.
func Breakdown(records []core.Acquisition, q Query, dim Dimension) Table {
	p := prepare(records, q)

	labelSet := map[string]struct{}{}
	for _, e := range p.entries {
		labelSet[dim.label(e.rec)] = struct{}{}
	}
	labels := make([]string, 0, len(labelSet))
	for l := range labelSet {
		labels = append(labels, l)
	}
	if dim == ByFaseProcesso {
		SortPhases(labels)
	} else {
		sortLabels(labels)
	}
	labels = noneLast(labels)

	keys := columnKeys(labels)
	columns := make([]Column, len(labels))
	keyOf := make(map[string]string, len(labels))
	for i, l := range labels {
		columns[i] = Column{Key: keys[i], Label: l}
		keyOf[l] = keys[i]
	}

	rowIndex := make(map[string]int, len(p.periods))
	rows := make([]Row, len(p.periods))
	for i, period := range p.periods {
		rowIndex[period] = i
		cells := make(map[string]Cell, len(columns))
		for _, c := range columns {
			cells[c.Key] = Cell{}
		}
		rows[i] = Row{Period: period, Cells: cells}
	}

	for _, e := range p.entries {
		i, ok := rowIndex[e.period]
		if !ok {
			continue
		}
		k := keyOf[dim.label(e.rec)]
		c := rows[i].Cells[k]
		c.Count++
		c.ValorLiquido = c.ValorLiquido.Add(e.rec.ValorLiquido)
		rows[i].Cells[k] = c
	}

	return Table{Dimension: dim, Columns: columns, Rows: rows, Years: p.years, Total: p.total}
}

// SanitizeKey turns a label into a column identifier: lower case, no
// diacritics, non-alphanumeric runs as "_", no leading or trailing "_".
func SanitizeKey(label string) string {
	s := strings.ToLower(textutil.StripAccents(label))
	s = strings.Trim(nonAlnum.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return NoneLabel
	}
	return s
}

// columnKeys sanitizes labels and suffixes duplicates with _2, _3, ...
func columnKeys(labels []string) []string {
	used := make(map[string]struct{}, len(labels))
	out := make([]string, len(labels))
	for i, l := range labels {
		base := SanitizeKey(l)
		key := base
		for n := 2; ; n++ {
			if _, taken := used[key]; !taken {
				break
			}
			key = base + "_" + strconv.Itoa(n)
		}
		used[key] = struct{}{}
		out[i] = key
	}
	return out
}

// ComparePhases orders phase labels by their first embedded number.
// Labels without a number go last; ties use pt-BR collation.
func ComparePhases(a, b string) int {
	return comparePhases(newCollator(), a, b)
}

// SortPhases sorts labels in place with ComparePhases.
func SortPhases(labels []string) {
	c := newCollator()
	sort.SliceStable(labels, func(i, j int) bool {
		return comparePhases(c, labels[i], labels[j]) < 0
	})
}

func comparePhases(c *collate.Collator, a, b string) int {
	an, aok := leadingNumber(a)
	bn, bok := leadingNumber(b)
	switch {
	case aok && bok:
		if r := compareDigits(an, bn); r != 0 {
			return r
		}
	case aok:
		return -1
	case bok:
		return 1
	}
	return c.CompareString(a, b)
}

// leadingNumber returns the first digit run without leading zeros, so any
// length compares without overflow.
func leadingNumber(s string) (string, bool) {
	m := firstNumber.FindString(s)
	if m == "" {
		return "", false
	}
	if t := strings.TrimLeft(m, "0"); t != "" {
		return t, true
	}
	return "0", true
}

// compareDigits orders two normalized digit strings numerically.
func compareDigits(a, b string) int {
	if len(a) != len(b) {
		return compareInts(len(a), len(b))
	}
	return strings.Compare(a, b)
}

func sortLabels(labels []string) {
	c := newCollator()
	sort.SliceStable(labels, func(i, j int) bool {
		return c.CompareString(labels[i], labels[j]) < 0
	})
}

func noneLast(labels []string) []string {
	out := make([]string, 0, len(labels))
	hasNone := false
	for _, l := range labels {
		if l == NoneLabel {
			hasNone = true
			continue
		}
		out = append(out, l)
	}
	if hasNone {
		out = append(out, NoneLabel)
	}
	return out
}

// Collators keep scratch buffers and are not safe for concurrent use.
func newCollator() *collate.Collator {
	return collate.New(language.BrazilianPortuguese)
}
