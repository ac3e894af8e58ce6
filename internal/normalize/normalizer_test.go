package normalize

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"precatorios/internal/board"
	"precatorios/internal/core"
)

func item(id, group string, cols map[string]string) board.Item {
	it := board.Item{
		ID:        id,
		Name:      "Titular " + id,
		Group:     board.Group{ID: "g", Title: group},
		CreatedAt: time.Date(2024, 3, 15, 22, 10, 0, 0, time.UTC),
	}
	for k, v := range cols {
		it.ColumnValues = append(it.ColumnValues, board.ColumnValue{ID: k, Text: v})
	}
	return it
}

func TestNormalize_FullMapping(t *testing.T) {
	n := New(DefaultRules(), "")
	a, ok := n.Normalize(item("1", "Aquisições Ativas", map[string]string{
		board.ColDataAquisicao:      "2024-11-28",
		board.ColIncidente:          "RPV",
		board.ColCessionario:        "Maria Souza",
		board.ColValorIncidente:     "2000",
		board.ColPrecoPago:          "800,50",
		board.ColValorLiquido:       "1500",
		board.ColDataPagamento:      "2025-02-01",
		board.ColProximaVerificacao: "2025-01-10 - 2025-02-10",
		board.ColFaseProcesso:       "3. Expedição",
		board.ColMapaOrcamentario:   "2025",
		board.ColProcesso:           "0001234-56.2020.8.26.0000",
	}))
	require.True(t, ok)

	assert.Equal(t, "1", a.ID)
	assert.Equal(t, core.RPV, a.Incidente)
	assert.Equal(t, core.StatusAtiva, a.Status)
	assert.Equal(t, "Maria Souza", a.CessionarioNome)
	assert.Equal(t, "Titular 1", a.TitularAcao)
	assert.Equal(t, "Aquisições Ativas", core.Deref(a.Grupo))
	assert.Equal(t, int64(200000), a.ValorIncidente.Cents)
	assert.Equal(t, int64(80050), a.PrecoPago.Cents)
	assert.Equal(t, int64(150000), a.ValorLiquido.Cents)
	assert.Equal(t, int64(69950), a.Lucro.Cents)
	assert.Equal(t, "2024-11-28", a.DataAquisicao.String())
	require.NotNil(t, a.DataPagamento)
	assert.Equal(t, "2025-02-01", a.DataPagamento.String())
	require.NotNil(t, a.ProximaVerificacao)
	assert.Equal(t, "2025-01-10", a.ProximaVerificacao.String())
	assert.Nil(t, a.PagamentoAquisicao)
	assert.Nil(t, a.Pessoas)
	assert.Equal(t, "3. Expedição", core.Deref(a.FaseProcesso))
	assert.NoError(t, a.Validate())
}

func TestNormalize_LucroInvariant(t *testing.T) {
	n := New(Rules{}, "")
	cases := []map[string]string{
		{board.ColPrecoPago: "100", board.ColValorLiquido: "250"},
		{board.ColPrecoPago: "abc", board.ColValorLiquido: "10,01"},
		{board.ColPrecoPago: "999.99"},
		{},
	}
	for _, cols := range cases {
		a, ok := n.Normalize(item("x", "g", cols))
		require.True(t, ok)
		assert.Equal(t, a.ValorLiquido.Sub(a.PrecoPago), a.Lucro)
	}
}

func TestNormalize_StatusIsByteExact(t *testing.T) {
	n := New(Rules{}, "")
	tests := []struct {
		group string
		want  core.Status
	}{
		{"Aquisições Finalizadas", core.StatusFinalizada},
		{"aquisições finalizadas", core.StatusAtiva},
		{"Aquisicoes Finalizadas", core.StatusAtiva},
		{"Aquisições Finalizadas ", core.StatusAtiva},
		{"Aquisições Ativas", core.StatusAtiva},
	}
	for _, tt := range tests {
		a, _ := n.Normalize(item("1", tt.group, nil))
		assert.Equal(t, tt.want, a.Status, "group %q", tt.group)
	}
}

func TestNormalize_CustomFinishedGroup(t *testing.T) {
	n := New(Rules{}, "Pagas")
	a, _ := n.Normalize(item("1", "Pagas", nil))
	assert.Equal(t, core.StatusFinalizada, a.Status)
	a, _ = n.Normalize(item("1", board.DefaultFinishedGroup, nil))
	assert.Equal(t, core.StatusAtiva, a.Status)
}

func TestNormalize_ExclusionIgnoresCaseAndAccents(t *testing.T) {
	n := New(DefaultRules(), "")
	for _, name := range []string{"PAULO MARTINS", "Paulo Martins", "paulo martíns", "  Paulo   Martins "} {
		_, ok := n.Normalize(item("1", "g", map[string]string{board.ColCessionario: name}))
		assert.False(t, ok, "%q should be excluded", name)
	}
	_, ok := n.Normalize(item("1", "g", map[string]string{board.ColCessionario: "Paula Martins"}))
	assert.True(t, ok)
}

func TestNormalize_Rename(t *testing.T) {
	n := New(DefaultRules(), "")
	for _, name := range []string{"Joao Pedro", "JOÃO PEDRO", "joão pedro"} {
		a, ok := n.Normalize(item("1", "g", map[string]string{board.ColCessionario: name}))
		require.True(t, ok)
		assert.Equal(t, "Kaio Kinoshita", a.CessionarioNome)
	}
}

func TestNormalize_FeeOverrideAfterRename(t *testing.T) {
	rules := DefaultRules()
	rules.FeeOverrides = map[string]float64{"Kaio Kinoshita": 0.3}
	n := New(rules, "")

	a, ok := n.Normalize(item("1", "g", map[string]string{
		board.ColCessionario:  "Joao Pedro",
		board.ColPrecoPago:    "500",
		board.ColValorLiquido: "1000",
	}))
	require.True(t, ok)
	assert.InDelta(t, 0.3, a.TaxaPercentual, 1e-9)
	assert.Equal(t, int64(50000), a.Lucro.Cents)
	assert.Equal(t, int64(35000), a.LucroLiquido().Cents)

	b, _ := n.Normalize(item("2", "g", map[string]string{board.ColCessionario: "Maria"}))
	assert.Zero(t, b.TaxaPercentual)
}

func TestNormalize_AssigneeFallsBackToItemName(t *testing.T) {
	n := New(Rules{}, "")
	a, _ := n.Normalize(item("7", "g", map[string]string{board.ColCessionario: "  "}))
	assert.Equal(t, "Titular 7", a.CessionarioNome)
}

func TestNormalize_UnknownIncidenteDefaults(t *testing.T) {
	n := New(Rules{}, "")
	for _, label := range []string{"", "Precatorio", "rpv", "Outro"} {
		a, _ := n.Normalize(item("1", "g", map[string]string{board.ColIncidente: label}))
		assert.Equal(t, core.Precatorio, a.Incidente, "label %q", label)
	}
}

func TestNormalize_AcquisitionDateFallsBackToCreatedAt(t *testing.T) {
	n := New(Rules{}, "")
	for _, text := range []string{"", "28/11/2024", "2024-02-30"} {
		a, _ := n.Normalize(item("1", "g", map[string]string{board.ColDataAquisicao: text}))
		assert.Equal(t, "2024-03-15", a.DataAquisicao.String(), "text %q", text)
	}
}

func TestNormalizeAll(t *testing.T) {
	n := New(DefaultRules(), "")
	items := []board.Item{
		item("1", "g", map[string]string{board.ColCessionario: "Ana"}),
		item("2", "g", map[string]string{board.ColCessionario: "Paulo Martins"}),
		item("3", "g", map[string]string{board.ColCessionario: "Bia"}),
	}
	got := n.NormalizeAll(items)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}

// Three items, one in the terminal group: two active and one settled.
func TestNormalize_EndToEndCohorts(t *testing.T) {
	n := New(DefaultRules(), "")
	items := []board.Item{
		item("1", "Aquisições Ativas", map[string]string{board.ColIncidente: "Precatório", board.ColDataAquisicao: "2024-01-10"}),
		item("2", "Aquisições Ativas", map[string]string{board.ColIncidente: "RPV", board.ColDataAquisicao: "2024-04-10"}),
		item("3", "Aquisições Finalizadas", map[string]string{board.ColIncidente: "Precatório Prioridade", board.ColDataAquisicao: "2024-07-10"}),
	}
	got := n.NormalizeAll(items)
	require.Len(t, got, 3)
	var active, settled int
	for _, a := range got {
		if a.IsActive() {
			active++
		} else {
			settled++
		}
	}
	assert.Equal(t, 2, active)
	assert.Equal(t, 1, settled)
	assert.Equal(t, core.PrecatorioPrioridade, got[2].Incidente)
}

func TestLoadRules(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		r, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultRules(), r)
	})

	t.Run("empty path yields defaults", func(t *testing.T) {
		r, err := LoadRules("")
		require.NoError(t, err)
		assert.Equal(t, DefaultRules(), r)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		data := "exclude:\n  - Fulano\nrename:\n  Beltrano: Sicrano\nfee_overrides:\n  Sicrano: 0.25\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		r, err := LoadRules(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Fulano"}, r.Exclude)
		assert.Equal(t, "Sicrano", r.Rename["Beltrano"])
		assert.InDelta(t, 0.25, r.FeeOverrides["Sicrano"], 1e-9)
	})

	t.Run("invalid fee", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte("fee_overrides:\n  X: 1.5\n"), 0o600))
		_, err := LoadRules(path)
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte("exclude: [unclosed\n"), 0o600))
		_, err := LoadRules(path)
		assert.Error(t, err)
	})
}
