package sheetsync

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/frotaworks/fleet_backend/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	fetchPageSize  = 1000
	writeChunkSize = 500
	firstDataRow   = 2
	dataRangeCells = "A2:ZZ"
)

// OrderPager reads one page of maintenance orders from the authoritative
// store, `[offset, offset+limit)` over a stable sort key.
type OrderPager func(ctx context.Context, offset int, limit int) ([]models.MaintenanceOrder, error)

type vehicleInfo struct {
	Company  string
	Operator string
}

// Summary is the result of one batch run. TotalOrders != RowsWritten is the
// signal of a partial failure and is surfaced, never swallowed.
type Summary struct {
	TotalOrders int `json:"total_orders"`
	RowsWritten int `json:"rows_written"`
	Chunks      int `json:"chunks"`
}

// Engine rewrites the maintenance-order tab from the authoritative store in
// one pass: fetch everything, resolve vehicle cross-references, synthesize
// rows against the tab's current header, grow capacity, then clear and write
// in chunks. Stages run strictly sequentially; nothing destructive happens
// before the capacity check has passed.
//
// The engine has no mutex of its own: overlapping runs against the same
// destination are unsafe and are prevented by the caller (see RunBatchSync's
// redis lock).
type Engine struct {
	Store         ValueStore
	Orders        OrderPager
	Logger        *logrus.Logger
	OrdersSheet   string
	VehiclesSheet string
	ChunkDelay    time.Duration
	Now           func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	tracer := otel.Tracer("sheetsync")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "BatchSheetSync")
	defer span.End()

	summary, err := e.run(ctx)
	if err != nil {
		span.RecordError(err)
	}
	return summary, err
}

func (e *Engine) run(ctx context.Context) (*Summary, error) {
	// Stage 1: page through the authoritative store until a short page;
	// no reliance on a total count up front.
	var orders []models.MaintenanceOrder
	offset := 0
	for {
		page, err := e.Orders(ctx, offset, fetchPageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch orders page at offset %d: %w", offset, err)
		}
		orders = append(orders, page...)
		if len(page) < fetchPageSize {
			break
		}
		offset += fetchPageSize
	}

	// Stage 2: vehicle registry lookup, read once per run.
	index, err := e.loadVehicleIndex(ctx)
	if err != nil {
		return nil, err
	}

	// Stage 3: resolve the destination header as it is right now, then
	// synthesize one output row per order against it.
	headerRows, err := e.Store.ReadRange(ctx, RangeRef(e.OrdersSheet, "1:1"))
	if err != nil {
		return nil, fmt.Errorf("read destination header: %w", err)
	}
	if len(headerRows) == 0 || len(headerRows[0]) == 0 {
		return nil, fmt.Errorf("destination sheet %q has no header row", e.OrdersSheet)
	}
	header := headerRows[0]
	cols := ResolveHeaders(header, OrderFieldSpecs())

	now := e.now()
	rows := make([][]interface{}, 0, len(orders))
	for _, order := range orders {
		rows = append(rows, e.synthesizeRow(order, cols, len(header), index, now))
	}

	// Stage 4: capacity, before anything destructive.
	if err := e.Store.EnsureCapacity(ctx, e.OrdersSheet, int64(len(rows))+1); err != nil {
		return nil, err
	}

	// Stage 5: clear the whole data range, then write back in chunks.
	// After this point a failure leaves the destination with a prefix of
	// the intended data; the chunk index and row range are logged so an
	// operator can investigate.
	if err := e.Store.ClearRange(ctx, RangeRef(e.OrdersSheet, dataRangeCells)); err != nil {
		return nil, err
	}

	written := 0
	chunkIdx := 0
	for start := 0; start < len(rows); start += writeChunkSize {
		end := min(start+writeChunkSize, len(rows))
		chunk := rows[start:end]
		startRow := firstDataRow + start
		endRow := startRow + len(chunk) - 1

		ref := RangeRef(e.OrdersSheet, fmt.Sprintf("A%d", startRow))
		if err := e.Store.WriteBlock(ctx, ref, chunk); err != nil {
			e.Logger.WithFields(logrus.Fields{
				"module":    "sheetsync",
				"chunk":     chunkIdx,
				"row_start": startRow,
				"row_end":   endRow,
			}).Error("chunk write failed after clear; destination holds a partial batch")
			return &Summary{TotalOrders: len(orders), RowsWritten: written, Chunks: chunkIdx},
				fmt.Errorf("write chunk %d (rows %d-%d) after clear: %w", chunkIdx, startRow, endRow, err)
		}
		written += len(chunk)
		chunkIdx++
		if end < len(rows) && e.ChunkDelay > 0 {
			time.Sleep(e.ChunkDelay)
		}
	}

	return &Summary{TotalOrders: len(orders), RowsWritten: written, Chunks: chunkIdx}, nil
}

// loadVehicleIndex reads the vehicle registry tab and builds a normalized
// code -> derived attributes map. A missing code column degrades to an empty
// index; one absent cross-reference must never fail the batch.
func (e *Engine) loadVehicleIndex(ctx context.Context) (map[string]vehicleInfo, error) {
	rows, err := e.Store.ReadRange(ctx, RangeRef(e.VehiclesSheet, "A1:Z"))
	if err != nil {
		return nil, fmt.Errorf("read vehicle registry: %w", err)
	}
	index := make(map[string]vehicleInfo)
	if len(rows) < 2 {
		return index, nil
	}
	cols := ResolveHeaders(rows[0], VehicleFieldSpecs())
	codeCol := cols["code"]
	if codeCol < 0 {
		e.Logger.WithFields(logrus.Fields{"module": "sheetsync", "sheet": e.VehiclesSheet}).
			Warn("vehicle registry has no recognizable code column; company/operator will be blank")
		return index, nil
	}
	for _, row := range rows[1:] {
		code := models.NormalizeVehicleCode(cellAt(row, codeCol))
		if code == "" {
			continue
		}
		index[code] = vehicleInfo{
			Company:  cellAt(row, cols["company"]),
			Operator: cellAt(row, cols["operator"]),
		}
	}
	return index, nil
}

var orderStatusLabels = map[string]string{
	models.MaintenanceStatusOpen:       "Aberta",
	models.MaintenanceStatusInProgress: "Em Andamento",
	models.MaintenanceStatusWaiting:    "Aguardando Peças",
	models.MaintenanceStatusFinalized:  "Finalizada",
}

func (e *Engine) synthesizeRow(order models.MaintenanceOrder, cols map[string]int, width int, index map[string]vehicleInfo, now time.Time) []interface{} {
	row := make([]interface{}, width)
	for i := range row {
		row[i] = ""
	}
	set := func(key string, value string) {
		idx, ok := cols[key]
		if !ok || idx < 0 || idx >= width {
			return
		}
		row[idx] = value
	}

	code := models.NormalizeVehicleCode(order.VehicleCode)
	info := index[code]

	set("order_number", order.OrderNumber)
	set("vehicle_code", code)
	set("description", order.Description)
	set("workshop", order.Workshop)
	if label, ok := orderStatusLabels[order.Status]; ok {
		set("status", label)
	} else {
		set("status", order.Status)
	}
	set("entered_at", formatStamp(order.EnteredAt))
	set("finalized_at", formatStamp(order.FinalizedAt))
	set("downtime", FormatDowntime(order.EnteredAt, order.FinalizedAt, order.Status, now))
	set("company", info.Company)
	set("operator", info.Operator)
	return row
}

func formatStamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006 15:04")
}

// FormatDowntime renders elapsed downtime as whole days+hours when >= 24h,
// hours only below that. A missing entry timestamp yields an empty string:
// "0h" would read as "no downtime" when the truth is "unknown".
func FormatDowntime(enteredAt *time.Time, finalizedAt *time.Time, status string, now time.Time) string {
	if enteredAt == nil || enteredAt.IsZero() {
		return ""
	}
	end := now
	if status == models.MaintenanceStatusFinalized && finalizedAt != nil && !finalizedAt.IsZero() {
		end = *finalizedAt
	}
	elapsed := end.Sub(*enteredAt)
	if elapsed < 0 {
		return ""
	}
	hours := int(elapsed.Hours())
	if hours >= 24 {
		return fmt.Sprintf("%dd %dh", hours/24, hours%24)
	}
	return fmt.Sprintf("%dh", hours)
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
