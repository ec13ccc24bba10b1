package sheetsync

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// capacityBuffer is added on top of the requested row count whenever a grow
// is needed, so near-future growth does not force another resize.
const capacityBuffer = 100

// ValueStore is the primitive surface over the external tabular store. The
// operations are individual HTTP calls with no transaction between them; the
// batch engine owns their sequencing (clear before write, chunking).
type ValueStore interface {
	ReadRange(ctx context.Context, rangeRef string) ([][]string, error)
	ClearRange(ctx context.Context, rangeRef string) error
	EnsureCapacity(ctx context.Context, sheetTitle string, neededRows int64) error
	WriteBlock(ctx context.Context, rangeRef string, rows [][]interface{}) error
	DeleteRow(ctx context.Context, sheetTitle string, rowIndex int64) error
}

type sheetsStore struct {
	svc           *sheets.Service
	spreadsheetId string
}

// NewSheetsStore builds a ValueStore over one spreadsheet using a bearer
// token from the TokenProvider. The service is rebuilt per sync session.
func NewSheetsStore(ctx context.Context, accessToken string, spreadsheetId string) (ValueStore, error) {
	if strings.TrimSpace(spreadsheetId) == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	svc, err := sheets.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, err
	}
	return &sheetsStore{svc: svc, spreadsheetId: spreadsheetId}, nil
}

// QuoteSheetTitle quotes a sheet title for use inside an A1 range reference
// when it carries anything beyond alphanumerics/underscores.
func QuoteSheetTitle(title string) string {
	plain := true
	for _, r := range title {
		if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			plain = false
			break
		}
	}
	if plain && title != "" {
		return title
	}
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// RangeRef builds "Sheet!A1:B2" style references with proper quoting.
func RangeRef(sheetTitle string, cells string) string {
	return QuoteSheetTitle(sheetTitle) + "!" + cells
}

func (s *sheetsStore) ReadRange(ctx context.Context, rangeRef string) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetId, rangeRef).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", rangeRef, err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			if cell == nil {
				continue
			}
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *sheetsStore) ClearRange(ctx context.Context, rangeRef string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetId, rangeRef, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear range %s: %w", rangeRef, err)
	}
	return nil
}

// EnsureCapacity grows the sheet when its grid holds fewer rows than needed,
// adding capacityBuffer rows beyond the request. A missing sheet title is a
// loud error: writing into a tab that does not exist means misconfiguration.
func (s *sheetsStore) EnsureCapacity(ctx context.Context, sheetTitle string, neededRows int64) error {
	meta, err := s.svc.Spreadsheets.Get(s.spreadsheetId).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet metadata: %w", err)
	}

	var props *sheets.SheetProperties
	for _, sh := range meta.Sheets {
		if sh.Properties != nil && sh.Properties.Title == sheetTitle {
			props = sh.Properties
			break
		}
	}
	if props == nil {
		return fmt.Errorf("sheet %q not found in spreadsheet %s", sheetTitle, s.spreadsheetId)
	}

	current := int64(0)
	if props.GridProperties != nil {
		current = props.GridProperties.RowCount
	}
	length := growLength(current, neededRows)
	if length == 0 {
		return nil
	}

	grow := &sheets.Request{
		AppendDimension: &sheets.AppendDimensionRequest{
			SheetId:   props.SheetId,
			Dimension: "ROWS",
			Length:    length,
		},
	}
	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetId, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{grow},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("grow sheet %q to %d rows: %w", sheetTitle, neededRows+capacityBuffer, err)
	}
	return nil
}

// growLength returns how many rows to append so the grid holds neededRows
// plus the buffer, or 0 when the current capacity already suffices.
func growLength(current int64, neededRows int64) int64 {
	if current >= neededRows {
		return 0
	}
	return neededRows + capacityBuffer - current
}

// WriteBlock writes a rectangular block starting at the range's top-left
// cell. USER_ENTERED keeps human-edited-spreadsheet semantics: numeric
// strings become numbers, date strings become dates.
func (s *sheetsStore) WriteBlock(ctx context.Context, rangeRef string, rows [][]interface{}) error {
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetId, rangeRef, &sheets.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write block %s: %w", rangeRef, err)
	}
	return nil
}

// DeleteRow removes one 1-based row, shifting the rest up. Used only by the
// deletion propagation path; batch syncs rewrite the whole range instead.
func (s *sheetsStore) DeleteRow(ctx context.Context, sheetTitle string, rowIndex int64) error {
	meta, err := s.svc.Spreadsheets.Get(s.spreadsheetId).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	var sheetId int64 = -1
	for _, sh := range meta.Sheets {
		if sh.Properties != nil && sh.Properties.Title == sheetTitle {
			sheetId = sh.Properties.SheetId
			break
		}
	}
	if sheetId < 0 {
		return fmt.Errorf("sheet %q not found in spreadsheet %s", sheetTitle, s.spreadsheetId)
	}

	del := &sheets.Request{
		DeleteDimension: &sheets.DeleteDimensionRequest{
			Range: &sheets.DimensionRange{
				SheetId:    sheetId,
				Dimension:  "ROWS",
				StartIndex: rowIndex - 1,
				EndIndex:   rowIndex,
			},
		},
	}
	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetId, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{del},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete row %d of %q: %w", rowIndex, sheetTitle, err)
	}
	return nil
}
