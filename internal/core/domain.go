package core

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	Precatorio           Incidente = "precatorio"
	RPV                  Incidente = "rpv"
	PrecatorioPrioridade Incidente = "precatorio_prioridade"
	PrecatorioSJRP       Incidente = "precatorio_sjrp"
)

const (
	StatusAtiva      Status = "ativa"
	StatusFinalizada Status = "finalizada"
)

// DateLayout is the wire format used for every date field.
const DateLayout = "2006-01-02"

type (
	// Incidente is the legal-claim category of an acquisition.
	Incidente string

	// Status is derived from the board group: finalizada iff the item
	// lives in the terminal group.
	Status string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Acquisition is a purchased judicial credit as seen by the dashboard.
	// Lucro always equals ValorLiquido - PrecoPago.
	Acquisition struct {
		ID        string    `json:"id"`
		Incidente Incidente `json:"incidente"`
		Grupo     *string   `json:"grupo"`
		Status    Status    `json:"status"`

		CessionarioNome string  `json:"cessionario_nome"`
		TitularAcao     string  `json:"titular_acao"`
		Pessoas         *string `json:"pessoas"`

		ValorIncidente Money `json:"valor_incidente"`
		PrecoPago      Money `json:"preco_pago"`
		ValorLiquido   Money `json:"valor_liquido"`
		Lucro          Money `json:"lucro"`

		// TaxaPercentual is the fee share of profit for assignees with a
		// fee override (0.30 = 30%). Zero when no override applies.
		TaxaPercentual float64 `json:"taxa_percentual,omitempty"`

		DataAquisicao      Date  `json:"data_aquisicao"`
		DataPagamento      *Date `json:"data_pagamento"`
		PagamentoAquisicao *Date `json:"pagamento_aquisicao"`
		ProximaVerificacao *Date `json:"proxima_verificacao"`
		UltimaMovimentacao *Date `json:"ultima_movimentacao"`
		PrazoProcessual    *Date `json:"prazo_processual"`
		PrazoDemanda       *Date `json:"prazo_demanda"`

		FaseProcesso           *string `json:"fase_processo"`
		MapaOrcamentario       *string `json:"mapa_orcamentario"`
		Processo               *string `json:"processo"`
		HabilitacaoCessionario *string `json:"habilitacao_cessionario"`
		Demanda                *string `json:"demanda"`
		Resumo                 *string `json:"resumo"`
	}
)

var (
	ErrInvalidIncidente = errors.New("invalid incidente")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidDate      = errors.New("invalid date")
	ErrNegativeAmount   = errors.New("negative amount")
	ErrProfitMismatch   = errors.New("lucro does not match valor_liquido - preco_pago")
	ErrEmptyID          = errors.New("empty id")
)

// Incidentes lists the incident types in their canonical order. The first
// entry is the lenient default for unknown labels.
var Incidentes = []Incidente{Precatorio, RPV, PrecatorioPrioridade, PrecatorioSJRP}

func (i Incidente) Validate() error {
	switch i {
	case Precatorio, RPV, PrecatorioPrioridade, PrecatorioSJRP:
		return nil
	default:
		return ErrInvalidIncidente
	}
}

// Label returns the board label for the incident type.
func (i Incidente) Label() string {
	switch i {
	case RPV:
		return "RPV"
	case PrecatorioPrioridade:
		return "Precatório Prioridade"
	case PrecatorioSJRP:
		return "Precatório SJRP"
	default:
		return "Precatório"
	}
}

func (s Status) Validate() error {
	switch s {
	case StatusAtiva, StatusFinalizada:
		return nil
	default:
		return ErrInvalidStatus
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// DatePtr is a convenience for optional date fields.
func DatePtr(d Date) *Date {
	return &d
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalText keeps dates in the board's YYYY-MM-DD form on the wire.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON overrides the promoted time.Time encoding.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	return d.UnmarshalText([]byte(s))
}

// Validate checks the invariants every normalized acquisition must hold.
func (a Acquisition) Validate() error {
	if a.ID == "" {
		return ErrEmptyID
	}
	if err := a.Incidente.Validate(); err != nil {
		return err
	}
	if err := a.Status.Validate(); err != nil {
		return err
	}
	if a.DataAquisicao.IsZero() {
		return ErrInvalidDate
	}
	for _, m := range []Money{a.ValorIncidente, a.PrecoPago, a.ValorLiquido} {
		if m.Cents < 0 {
			return ErrNegativeAmount
		}
	}
	if a.Lucro != a.ValorLiquido.Sub(a.PrecoPago) {
		return ErrProfitMismatch
	}
	return nil
}

// IsActive reports whether the acquisition is still awaiting payout.
func (a Acquisition) IsActive() bool {
	return a.Status != StatusFinalizada
}

// LucroLiquido returns profit net of the assignee fee override.
func (a Acquisition) LucroLiquido() Money {
	if a.TaxaPercentual <= 0 {
		return a.Lucro
	}
	return a.Lucro.Sub(a.Lucro.Scale(a.TaxaPercentual))
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
