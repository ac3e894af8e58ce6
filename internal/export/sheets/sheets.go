package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"precatorios/internal/core"
	"precatorios/internal/export"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is the tab the table is written to when none is configured.
const DefaultSheetName = "Aquisicoes"

var _ export.Exporter = (*Client)(nil)

var ErrMissingSpreadsheet = errors.New("missing spreadsheet id")

// Config selects the spreadsheet and the service account used to write it.
// CredentialsJSON wins over CredentialsFile.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Header is the first row written to the sheet.
var Header = []any{
	"ID", "Incidente", "Status", "Cessionário", "Titular",
	"Valor incidente", "Preço pago", "Valor líquido", "Lucro",
	"Data aquisição", "Data pagamento", "Pagamento aquisição",
	"Fase", "Mapa orçamentário", "Processo",
}

// NewFromConfig builds a client authenticated with a service account.
func NewFromConfig(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, ErrMissingSpreadsheet
	}
	creds, err := readCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return New(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// New wraps an existing service. An empty sheet name selects DefaultSheetName.
func New(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = DefaultSheetName
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func readCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		slog.DebugContext(ctx, "using inline service account credentials", "component", "sheets")
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials")
	}
}

// Export clears the sheet and rewrites it with a header plus one row per record.
func (c *Client) Export(ctx context.Context, records []core.Acquisition) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:Z", c.sheetName)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	vr := &gsheet.ValueRange{Values: Rows(records)}
	rng := fmt.Sprintf("%s!A1", c.sheetName)
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}

	slog.InfoContext(ctx, "Exported acquisitions",
		"component", "sheets",
		"sheet", c.sheetName,
		"rows", len(records))
	return nil
}

// Rows renders records as sheet values, header first.
func Rows(records []core.Acquisition) [][]any {
	out := make([][]any, 0, len(records)+1)
	out = append(out, Header)
	for _, r := range records {
		out = append(out, []any{
			r.ID,
			r.Incidente.Label(),
			string(r.Status),
			r.CessionarioNome,
			r.TitularAcao,
			r.ValorIncidente.Reais(),
			r.PrecoPago.Reais(),
			r.ValorLiquido.Reais(),
			r.Lucro.Reais(),
			r.DataAquisicao.String(),
			dateCell(r.DataPagamento),
			dateCell(r.PagamentoAquisicao),
			core.Deref(r.FaseProcesso),
			core.Deref(r.MapaOrcamentario),
			core.Deref(r.Processo),
		})
	}
	return out
}

func dateCell(d *core.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
