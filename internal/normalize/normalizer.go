// Package normalize maps raw board items to canonical acquisitions.
//
// Every extraction is total: malformed text never fails a record, it falls
// back to zero, nil or the item's creation date.
package normalize

import (
	"strings"

	"precatorios/internal/board"
	"precatorios/internal/core"
)

type Normalizer struct {
	rules         compiledRules
	finishedGroup string
}

// New builds a Normalizer. An empty finishedGroup selects
// board.DefaultFinishedGroup.
func New(rules Rules, finishedGroup string) *Normalizer {
	if finishedGroup == "" {
		finishedGroup = board.DefaultFinishedGroup
	}
	return &Normalizer{rules: compile(rules), finishedGroup: finishedGroup}
}

// Normalize maps one item. It reports false when the rules drop the item.
func (n *Normalizer) Normalize(item board.Item) (core.Acquisition, bool) {
	cessionario := strings.TrimSpace(item.Column(board.ColCessionario))
	if cessionario == "" {
		cessionario = item.Name
	}
	cessionario, taxa, keep := n.rules.apply(cessionario)
	if !keep {
		return core.Acquisition{}, false
	}

	status := core.StatusAtiva
	// Group titles are compared byte for byte.
	if item.Group.Title == n.finishedGroup {
		status = core.StatusFinalizada
	}

	dataAquisicao := ExtractDate(item.Column(board.ColDataAquisicao))
	if dataAquisicao == nil {
		d := creationDate(item)
		dataAquisicao = &d
	}

	precoPago := ExtractMoney(item.Column(board.ColPrecoPago))
	valorLiquido := ExtractMoney(item.Column(board.ColValorLiquido))

	return core.Acquisition{
		ID:        item.ID,
		Incidente: ParseIncidente(item.Column(board.ColIncidente)),
		Grupo:     core.StringPtr(item.Group.Title),
		Status:    status,

		CessionarioNome: cessionario,
		TitularAcao:     item.Name,
		Pessoas:         textColumn(item, board.ColPessoas),

		ValorIncidente: ExtractMoney(item.Column(board.ColValorIncidente)),
		PrecoPago:      precoPago,
		ValorLiquido:   valorLiquido,
		Lucro:          valorLiquido.Sub(precoPago),
		TaxaPercentual: taxa,

		DataAquisicao:      *dataAquisicao,
		DataPagamento:      ExtractDate(item.Column(board.ColDataPagamento)),
		PagamentoAquisicao: ExtractDate(item.Column(board.ColPagamentoAquisicao)),
		ProximaVerificacao: ExtractTimelineStart(item.Column(board.ColProximaVerificacao)),
		UltimaMovimentacao: ExtractDate(item.Column(board.ColUltimaMovimentacao)),
		PrazoProcessual:    ExtractDate(item.Column(board.ColPrazoProcessual)),
		PrazoDemanda:       ExtractDate(item.Column(board.ColPrazoDemanda)),

		FaseProcesso:           textColumn(item, board.ColFaseProcesso),
		MapaOrcamentario:       textColumn(item, board.ColMapaOrcamentario),
		Processo:               textColumn(item, board.ColProcesso),
		HabilitacaoCessionario: textColumn(item, board.ColHabilitacao),
		Demanda:                textColumn(item, board.ColDemanda),
		Resumo:                 textColumn(item, board.ColResumo),
	}, true
}

// NormalizeAll maps items in order, skipping dropped ones.
func (n *Normalizer) NormalizeAll(items []board.Item) []core.Acquisition {
	out := make([]core.Acquisition, 0, len(items))
	for _, it := range items {
		if a, ok := n.Normalize(it); ok {
			out = append(out, a)
		}
	}
	return out
}

func textColumn(item board.Item, id string) *string {
	return core.StringPtr(strings.TrimSpace(item.Column(id)))
}

func creationDate(item board.Item) core.Date {
	if item.CreatedAt.IsZero() {
		return core.Date{}
	}
	t := item.CreatedAt.UTC()
	return core.NewDate(t.Year(), int(t.Month()), t.Day())
}
