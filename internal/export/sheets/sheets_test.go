package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"precatorios/internal/core"
)

type call struct {
	method string
	path   string
	query  string
	body   string
}

// fakeSheets records requests and answers with status.
type fakeSheets struct {
	mu     sync.Mutex
	calls  []call
	status int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, call{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: string(body)})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 && f.status != http.StatusOK {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission"}}`))
		return
	}
	_, _ = w.Write([]byte(`{}`))
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return New(svc, "sheet-123", "")
}

func sampleRecord() core.Acquisition {
	return core.Acquisition{
		ID:              "101",
		Incidente:       core.RPV,
		Status:          core.StatusAtiva,
		CessionarioNome: "Maria",
		TitularAcao:     "José da Silva",
		ValorIncidente:  core.MoneyFromFloat(1500),
		PrecoPago:       core.MoneyFromFloat(800.5),
		ValorLiquido:    core.MoneyFromFloat(1000),
		Lucro:           core.MoneyFromFloat(199.5),
		DataAquisicao:   core.NewDate(2025, 1, 10),
		DataPagamento:   core.DatePtr(core.NewDate(2025, 6, 1)),
		FaseProcesso:    core.StringPtr("2 - Execução"),
	}
}

func TestRows(t *testing.T) {
	rows := Rows([]core.Acquisition{sampleRecord()})
	require.Len(t, rows, 2)
	assert.Equal(t, Header, rows[0])

	row := rows[1]
	require.Len(t, row, len(Header))
	assert.Equal(t, "101", row[0])
	assert.Equal(t, "RPV", row[1])
	assert.Equal(t, "ativa", row[2])
	assert.Equal(t, "Maria", row[3])
	assert.Equal(t, 800.5, row[6])
	assert.Equal(t, "2025-01-10", row[9])
	assert.Equal(t, "2025-06-01", row[10])
	assert.Equal(t, "", row[11])
	assert.Equal(t, "2 - Execução", row[12])
	assert.Equal(t, "", row[13])
}

func TestRows_Empty(t *testing.T) {
	rows := Rows(nil)
	require.Len(t, rows, 1)
	assert.Equal(t, Header, rows[0])
}

func TestExport_ClearsThenWrites(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	require.NoError(t, c.Export(context.Background(), []core.Acquisition{sampleRecord()}))

	require.Len(t, fake.calls, 2)
	cl, up := fake.calls[0], fake.calls[1]

	assert.Equal(t, http.MethodPost, cl.method)
	assert.True(t, strings.HasSuffix(cl.path, "/spreadsheets/sheet-123/values/Aquisicoes!A:Z:clear"), cl.path)

	assert.Equal(t, http.MethodPut, up.method)
	assert.True(t, strings.HasSuffix(up.path, "/spreadsheets/sheet-123/values/Aquisicoes!A1"), up.path)
	assert.Contains(t, up.query, "valueInputOption=RAW")

	var vr struct {
		Values [][]any `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(up.body), &vr))
	require.Len(t, vr.Values, 2)
	assert.Equal(t, "ID", vr.Values[0][0])
	assert.Equal(t, "Maria", vr.Values[1][3])
}

func TestExport_APIError(t *testing.T) {
	fake := &fakeSheets{status: http.StatusForbidden}
	c := newTestClient(t, fake)

	err := c.Export(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear Aquisicoes!A:Z")
	assert.Len(t, fake.calls, 1)
}

func TestExport_NilService(t *testing.T) {
	c := New(nil, "sheet-123", "Tab")
	assert.Error(t, c.Export(context.Background(), nil))
}

func TestNewFromConfig_Errors(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromConfig(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrMissingSpreadsheet)

	_, err = NewFromConfig(context.Background(), Config{SpreadsheetID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")

	_, err = NewFromConfig(context.Background(), Config{
		SpreadsheetID:   "x",
		CredentialsFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account file")
}

func TestReadCredentials_Precedence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"from":"file"}`), 0o600))

	b, err := readCredentials(context.Background(), Config{CredentialsJSON: `{"from":"inline"}`, CredentialsFile: file})
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"inline"}`, string(b))

	b, err = readCredentials(context.Background(), Config{CredentialsFile: file})
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"file"}`, string(b))

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", file)
	b, err = readCredentials(context.Background(), Config{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"file"}`, string(b))
}
