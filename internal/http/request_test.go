package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"precatorios/internal/analytics"
	"precatorios/internal/core"
)

func parserFor(body string) *RequestBodyParser {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return NewRequestBodyParser(httptest.NewRecorder(), req)
}

func TestRequestBodyParser(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		p := parserFor(`{"email":"  a@b.co ","password":" keep spaces ","n":3}`)
		require.NoError(t, p.Parse())
		assert.True(t, p.IsJSON())
		assert.Equal(t, "a@b.co", p.Get("email"))
		assert.Equal(t, " keep spaces ", p.GetSecret("password"))
		assert.Equal(t, "3", p.Get("n"))
		assert.Equal(t, "", p.Get("missing"))
	})

	t.Run("form", func(t *testing.T) {
		p := parserFor("email=a%40b.co&full_name=Ana+Souza")
		require.NoError(t, p.Parse())
		assert.False(t, p.IsJSON())
		assert.Equal(t, "a@b.co", p.Get("email"))
		assert.Equal(t, "Ana Souza", p.Get("full_name"))
	})

	t.Run("empty", func(t *testing.T) {
		p := parserFor("")
		require.NoError(t, p.Parse())
		assert.Equal(t, "", p.Get("email"))
	})

	t.Run("bad json", func(t *testing.T) {
		p := parserFor(`{"email":`)
		err := p.Parse()
		require.Error(t, err)
		assert.True(t, errors.Is(err, errBadRequest))
		assert.Equal(t, err, p.Parse())
	})

	t.Run("too large", func(t *testing.T) {
		p := parserFor(`{"x":"` + strings.Repeat("a", maxBodyBytes) + `"}`)
		err := p.Parse()
		require.Error(t, err)
		assert.True(t, errors.Is(err, errBadRequest))
	})
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "ab\tc", sanitizeInput(" a\x00b\tc\x07 "))
	assert.Equal(t, "linha1\nlinha2", sanitizeInput("linha1\nlinha2\n"))
}

func TestParseCohortParams(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    CohortParams
		wantErr bool
	}{
		{name: "defaults", query: "", want: CohortParams{GroupMatch: analytics.MatchExact}},
		{name: "all is no restriction", query: "year=all&status=all", want: CohortParams{GroupMatch: analytics.MatchExact}},
		{
			name:  "full",
			query: "year=2024&status=finalizada&group=Aquisi%C3%A7%C3%B5es&match=substring",
			want: CohortParams{
				Year:       2024,
				Status:     core.StatusFinalizada,
				Group:      "Aquisições",
				GroupMatch: analytics.MatchSubstring,
			},
		},
		{name: "year not a number", query: "year=abc", wantErr: true},
		{name: "year out of range", query: "year=12", wantErr: true},
		{name: "unknown status", query: "status=pending", wantErr: true},
		{name: "unknown match", query: "match=fuzzy", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			got, err := ParseCohortParams(q)
			if tt.wantErr {
				assert.ErrorIs(t, err, errBadRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseChartParams(t *testing.T) {
	g, err := ParseGrain(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, analytics.Monthly, g)
	g, err = ParseGrain(url.Values{"grain": {"annual"}})
	require.NoError(t, err)
	assert.Equal(t, analytics.Annual, g)
	_, err = ParseGrain(url.Values{"grain": {"weekly"}})
	assert.ErrorIs(t, err, errBadRequest)

	m, err := ParseMode(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, ModeValue, m)
	m, err = ParseMode(url.Values{"mode": {"percentage"}})
	require.NoError(t, err)
	assert.Equal(t, ModePercentage, m)

	d, err := ParseDimension(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, analytics.ByMapaOrcamentario, d)
	d, err = ParseDimension(url.Values{"dimension": {"fase"}})
	require.NoError(t, err)
	assert.Equal(t, analytics.ByFaseProcesso, d)

	v, err := ParseView(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, analytics.InvestmentView.Name, v.Name)
	v, err = ParseView(url.Values{"view": {"settled"}})
	require.NoError(t, err)
	assert.Equal(t, analytics.SettledView.Name, v.Name)
	_, err = ParseView(url.Values{"view": {"nope"}})
	assert.ErrorIs(t, err, errBadRequest)
}

func TestParseIncidente(t *testing.T) {
	inc, err := ParseIncidente(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, core.Incidente(""), inc)

	inc, err = ParseIncidente(url.Values{"incidente": {"all"}})
	require.NoError(t, err)
	assert.Equal(t, core.Incidente(""), inc)

	inc, err = ParseIncidente(url.Values{"incidente": {"rpv"}})
	require.NoError(t, err)
	assert.Equal(t, core.RPV, inc)

	_, err = ParseIncidente(url.Values{"incidente": {"honorarios"}})
	assert.ErrorIs(t, err, errBadRequest)
}
