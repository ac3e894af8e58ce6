package analytics

import "precatorios/internal/core"

// View is a named chart: which cohort, which date field and how many
// recent months an all-years monthly series keeps.
type View struct {
	Name      string
	Status    core.Status
	DateField DateField
	Window    int
	Predicate func(core.Acquisition) bool
}

var (
	// InvestmentView charts money put into still-active acquisitions by
	// acquisition month.
	InvestmentView = View{
		Name:      "investment",
		Status:    core.StatusAtiva,
		DateField: ByDataAquisicao,
		Window:    12,
	}

	// SettledView charts settled acquisitions by payout month.
	SettledView = View{
		Name:      "settled",
		Status:    core.StatusFinalizada,
		DateField: ByDataPagamento,
		Window:    12,
		Predicate: func(a core.Acquisition) bool { return a.DataPagamento != nil },
	}

	// ClosedContractsView charts acquisitions by the date the purchase
	// itself was settled with the original holder.
	ClosedContractsView = View{
		Name:      "closed_contracts",
		DateField: ByPagamentoAquisicao,
		Window:    6,
		Predicate: func(a core.Acquisition) bool { return a.PagamentoAquisicao != nil },
	}
)

var views = map[string]View{
	InvestmentView.Name:      InvestmentView,
	SettledView.Name:         SettledView,
	ClosedContractsView.Name: ClosedContractsView,
}

// ViewByName looks up a named view.
func ViewByName(name string) (View, bool) {
	v, ok := views[name]
	return v, ok
}

// Query builds the view's query for a grain, year and viewer.
func (v View) Query(grain Grain, year int, viewer Viewer) Query {
	return Query{
		Grain:     grain,
		Year:      year,
		Status:    v.Status,
		Viewer:    viewer,
		Predicate: v.Predicate,
		DateField: v.DateField,
		Window:    v.Window,
	}
}
