package analytics

import "precatorios/internal/core"

// Summary backs the dashboard cards.
type Summary struct {
	TotalInvestido core.Money `json:"total_investido"`
	LucroAcumulado core.Money `json:"lucro_acumulado"`
	// Rentabilidade is LucroAcumulado / TotalInvestido * 100.
	Rentabilidade       float64 `json:"rentabilidade"`
	Ativas              int     `json:"ativas"`
	AguardandoPagamento int     `json:"aguardando_pagamento"`
	Finalizadas         int     `json:"finalizadas"`
}

// Summarize totals the viewer's records. Profit is net of fee overrides.
// An active record awaits payment once it has a payout date.
func Summarize(records []core.Acquisition, viewer Viewer) Summary {
	var s Summary
	for _, a := range records {
		if !viewer.Sees(a) {
			continue
		}
		s.TotalInvestido = s.TotalInvestido.Add(a.PrecoPago)
		s.LucroAcumulado = s.LucroAcumulado.Add(a.LucroLiquido())
		if a.IsActive() {
			s.Ativas++
			if a.DataPagamento != nil {
				s.AguardandoPagamento++
			}
		} else {
			s.Finalizadas++
		}
	}
	s.Rentabilidade = core.Ratio(s.LucroAcumulado, s.TotalInvestido)
	return s
}

type IncidentShare struct {
	Incidente    core.Incidente `json:"incidente"`
	Label        string         `json:"label"`
	Count        int            `json:"count"`
	ValorLiquido core.Money     `json:"valor_liquido"`
	// Share is the percentage of records of this type.
	Share float64 `json:"share"`
}

// ByIncidente distributes the filtered records over the incident types,
// in canonical order and including empty types. Year and DateField narrow
// the set when a year is given.
func ByIncidente(records []core.Acquisition, q Query) []IncidentShare {
	shares := make([]IncidentShare, len(core.Incidentes))
	index := make(map[core.Incidente]int, len(core.Incidentes))
	for i, inc := range core.Incidentes {
		shares[i] = IncidentShare{Incidente: inc, Label: inc.Label()}
		index[inc] = i
	}

	total := 0
	for _, a := range Filter(records, q) {
		if q.Year != 0 {
			d := q.DateField.Of(a)
			if d == nil || d.Year() != q.Year {
				continue
			}
		}
		i, ok := index[a.Incidente]
		if !ok {
			continue
		}
		shares[i].Count++
		shares[i].ValorLiquido = shares[i].ValorLiquido.Add(a.ValorLiquido)
		total++
	}
	if total > 0 {
		for i := range shares {
			shares[i].Share = float64(shares[i].Count) / float64(total) * 100
		}
	}
	return shares
}

// Cessionarios lists the distinct assignee names the viewer can see, in
// pt-BR collation order.
func Cessionarios(records []core.Acquisition, viewer Viewer) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, a := range records {
		if a.CessionarioNome == "" || !viewer.Sees(a) {
			continue
		}
		if _, ok := seen[a.CessionarioNome]; ok {
			continue
		}
		seen[a.CessionarioNome] = struct{}{}
		out = append(out, a.CessionarioNome)
	}
	sortLabels(out)
	return out
}
