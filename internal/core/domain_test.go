package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func validAcquisition() Acquisition {
	return Acquisition{
		ID:            "1",
		Incidente:     RPV,
		Status:        StatusAtiva,
		DataAquisicao: NewDate(2025, 1, 15),
		PrecoPago:     Money{Cents: 1000},
		ValorLiquido:  Money{Cents: 1500},
		Lucro:         Money{Cents: 500},
	}
}

func TestAcquisitionValidate(t *testing.T) {
	if err := validAcquisition().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(a *Acquisition)
		want   error
	}{
		{"empty id", func(a *Acquisition) { a.ID = "" }, ErrEmptyID},
		{"bad incidente", func(a *Acquisition) { a.Incidente = "x" }, ErrInvalidIncidente},
		{"bad status", func(a *Acquisition) { a.Status = "x" }, ErrInvalidStatus},
		{"zero date", func(a *Acquisition) { a.DataAquisicao = Date{} }, ErrInvalidDate},
		{"negative paid", func(a *Acquisition) { a.PrecoPago = Money{Cents: -1}; a.Lucro = Money{Cents: 1501} }, ErrNegativeAmount},
		{"profit mismatch", func(a *Acquisition) { a.Lucro = Money{Cents: 1} }, ErrProfitMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := validAcquisition()
			tc.mutate(&a)
			if err := a.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLucroLiquido(t *testing.T) {
	a := validAcquisition()
	if got := a.LucroLiquido(); got.Cents != 500 {
		t.Fatalf("no fee: got %d", got.Cents)
	}
	a.TaxaPercentual = 0.30
	if got := a.LucroLiquido(); got.Cents != 350 {
		t.Fatalf("30%% fee: got %d", got.Cents)
	}
	if a.Lucro.Cents != 500 {
		t.Fatalf("fee must not touch lucro")
	}
}

func TestIncidenteLabel(t *testing.T) {
	for _, i := range Incidentes {
		if err := i.Validate(); err != nil {
			t.Fatalf("%s: %v", i, err)
		}
		if i.Label() == "" {
			t.Fatalf("%s: empty label", i)
		}
	}
	if Incidentes[0] != Precatorio {
		t.Fatalf("lenient default must be first")
	}
}

func TestDateJSON(t *testing.T) {
	type wrap struct {
		D  Date  `json:"d"`
		P  *Date `json:"p"`
		NP *Date `json:"np"`
	}
	in := wrap{D: NewDate(2024, 11, 28), P: DatePtr(NewDate(2025, 2, 1))}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"d":"2024-11-28","p":"2025-02-01","np":null}` {
		t.Fatalf("unexpected json %s", b)
	}
	var out wrap
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.D.Equal(in.D.Time) || out.P == nil || !out.P.Equal(in.P.Time) || out.NP != nil {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("2024-02-30"); err == nil {
		t.Fatalf("expected error for impossible date")
	}
	d, err := ParseDate("2024-02-29")
	if err != nil || d.Year() != 2024 || d.Month() != 2 || d.Day() != 29 {
		t.Fatalf("unexpected %v %v", d, err)
	}
}
