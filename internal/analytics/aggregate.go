package analytics

import (
	"sort"

	"precatorios/internal/core"
)

// Bucket holds the sums of one period.
type Bucket struct {
	Period         string     `json:"period"`
	Count          int        `json:"count"`
	PrecoPago      core.Money `json:"preco_pago"`
	ValorLiquido   core.Money `json:"valor_liquido"`
	Lucro          core.Money `json:"lucro"`
	LucroLiquido   core.Money `json:"lucro_liquido"`
	ValorIncidente core.Money `json:"valor_incidente"`

	ByIncidente      map[core.Incidente]core.Money `json:"by_incidente"`
	CountByIncidente map[core.Incidente]int        `json:"count_by_incidente"`
}

// Percentage is sum(PrecoPago) / sum(ValorLiquido) * 100 over the bucket,
// or 0 when the net sum is zero.
func (b Bucket) Percentage() float64 {
	return core.Ratio(b.PrecoPago, b.ValorLiquido)
}

// Result is one ordered series plus the years available for selection.
type Result struct {
	Series []Bucket `json:"series"`
	// Years present in the filtered data, most recent first.
	Years []int `json:"years"`
	// Total counts filtered records before the year filter.
	Total int `json:"total"`
	// Filtered counts records that made it into Series.
	Filtered int `json:"filtered"`
}

type entry struct {
	rec    core.Acquisition
	period string
}

// prepared is the shared front half of Aggregate and Breakdown.
type prepared struct {
	entries []entry
	periods []string
	years   []int
	total   int
}

func prepare(records []core.Acquisition, q Query) prepared {
	filtered := Filter(records, q)
	p := prepared{total: len(filtered)}

	yearSet := map[int]struct{}{}
	seen := map[string]struct{}{}
	for _, a := range filtered {
		d := q.DateField.Of(a)
		if d == nil {
			continue
		}
		yearSet[d.Year()] = struct{}{}
		if q.Year != 0 && d.Year() != q.Year {
			continue
		}
		key := PeriodKey(*d, q.Grain)
		p.entries = append(p.entries, entry{rec: a, period: key})
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			p.periods = append(p.periods, key)
		}
	}

	p.years = make([]int, 0, len(yearSet))
	for y := range yearSet {
		p.years = append(p.years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(p.years)))

	SortPeriods(p.periods)
	if q.Year == 0 && q.Grain == Monthly && q.Window > 0 && len(p.periods) > q.Window {
		p.periods = p.periods[len(p.periods)-q.Window:]
	}
	return p
}

// Aggregate runs the full pipeline and returns the bucketed series.
func Aggregate(records []core.Acquisition, q Query) Result {
	p := prepare(records, q)

	index := make(map[string]int, len(p.periods))
	series := make([]Bucket, len(p.periods))
	for i, key := range p.periods {
		index[key] = i
		series[i] = Bucket{
			Period:           key,
			ByIncidente:      map[core.Incidente]core.Money{},
			CountByIncidente: map[core.Incidente]int{},
		}
	}

	filtered := 0
	for _, e := range p.entries {
		i, ok := index[e.period]
		if !ok {
			continue
		}
		series[i].add(e.rec)
		filtered++
	}

	return Result{Series: series, Years: p.years, Total: p.total, Filtered: filtered}
}

func (b *Bucket) add(a core.Acquisition) {
	b.Count++
	b.PrecoPago = b.PrecoPago.Add(a.PrecoPago)
	b.ValorLiquido = b.ValorLiquido.Add(a.ValorLiquido)
	b.Lucro = b.Lucro.Add(a.Lucro)
	b.LucroLiquido = b.LucroLiquido.Add(a.LucroLiquido())
	b.ValorIncidente = b.ValorIncidente.Add(a.ValorIncidente)
	b.ByIncidente[a.Incidente] = b.ByIncidente[a.Incidente].Add(a.ValorLiquido)
	b.CountByIncidente[a.Incidente]++
}
