// Package board describes the raw work-management board the acquisitions
// are sourced from, and the port used to read it.
package board

import (
	"context"
	"errors"
	"sort"
	"time"
)

// Column ids of the acquisitions board.
const (
	ColDataAquisicao      = "data"
	ColPagamentoAquisicao = "date_mksrd1d4"
	ColIncidente          = "status__1"
	ColCessionario        = "texto1__1"
	ColHabilitacao        = "status_1__1"
	ColMapaOrcamentario   = "text_mks99k23"
	ColPessoas            = "multiple_person_mkrd8hfj"
	ColProcesso           = "texto__1"
	ColFaseProcesso       = "status_18__1"
	ColProximaVerificacao = "timerange_mkt4aybg"
	ColValorIncidente     = "n_meros__1"
	ColPrecoPago          = "n_meros7__1"
	ColValorLiquido       = "numeric_mkpsy1n0"
	ColUltimaMovimentacao = "date_mktccq38"
	ColPrazoProcessual    = "date_mktc7sr3"
	ColPrazoDemanda       = "date_mktc3f8g"
	ColDemanda            = "color_mksenjqz"
	ColDataPagamento      = "date_mkpsy5xb"
	ColResumo             = "text_mktckt0m"
)

// DefaultFinishedGroup is the title of the terminal group.
const DefaultFinishedGroup = "Aquisições Finalizadas"

var ErrBoardNotFound = errors.New("board not found")

type (
	Group struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}

	ColumnValue struct {
		ID    string  `json:"id"`
		Text  string  `json:"text"`
		Value *string `json:"value"`
		Type  string  `json:"type"`
	}

	// Item is one raw board record.
	Item struct {
		ID           string        `json:"id"`
		Name         string        `json:"name"`
		Group        Group         `json:"group"`
		ColumnValues []ColumnValue `json:"column_values"`
		CreatedAt    time.Time     `json:"created_at"`
		UpdatedAt    time.Time     `json:"updated_at"`
	}

	Board struct {
		ID     string  `json:"id"`
		Name   string  `json:"name"`
		Groups []Group `json:"groups"`
		Items  []Item  `json:"items"`
	}
)

// Reader loads the complete board, following pagination to the end.
type Reader interface {
	FetchBoard(ctx context.Context) (Board, error)
}

// Column returns the text of the column with the given id, or "" when
// the column is missing or empty.
func (it Item) Column(id string) string {
	for _, cv := range it.ColumnValues {
		if cv.ID == id {
			return cv.Text
		}
	}
	return ""
}

// UniqueCessionarios returns the sorted distinct assignee names present
// on the board.
func UniqueCessionarios(items []Item) []string {
	seen := map[string]struct{}{}
	for _, it := range items {
		if c := it.Column(ColCessionario); c != "" {
			seen[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
