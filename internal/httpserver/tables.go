package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/partsdesk/internal/backend"
	"github.com/Skotchmaster/partsdesk/internal/events"
	"github.com/Skotchmaster/partsdesk/internal/logging"
	"github.com/Skotchmaster/partsdesk/internal/orderentry"
	authmw "github.com/Skotchmaster/partsdesk/pkg/middleware/auth"
)

const maxBody = 1 << 20

// StockSyncer refreshes derived views of the stock table after a write.
type StockSyncer interface {
	SyncStock(ctx context.Context, ids ...uint) error
}

// TablesHTTP exposes the table-keyed backend contract.
type TablesHTTP struct {
	Backend backend.Backend
	Events  events.Publisher
	// Stock is optional.
	Stock StockSyncer
}

func (h *TablesHTTP) Query(c echo.Context) error {
	ctx := c.Request().Context()
	table := c.Param("table")
	l := logging.FromContext(ctx).With("handler", "tables.query", "table", table)

	from, to := window(c)
	if from < 0 || to < from {
		return badRequest(l, "table_query_error", "invalid row range", nil)
	}

	rows, err := h.Backend.Query(ctx, table, backend.QueryOptions{
		Select: c.QueryParam("select"),
		Filter: c.QueryParam("or"),
		Order:  c.QueryParam("order"),
		Range:  backend.Range{From: from, To: to},
	})
	if err != nil {
		return fail(l, "table_query_error", err)
	}
	return c.JSONBlob(http.StatusOK, rows)
}

func (h *TablesHTTP) Insert(c echo.Context) error {
	ctx := c.Request().Context()
	table := c.Param("table")
	l := logging.FromContext(ctx).With("handler", "tables.insert", "table", table)

	body, err := readBody(c)
	if err != nil {
		return badRequest(l, "table_insert_error", "invalid body", err)
	}

	res, err := h.Backend.Insert(ctx, table, body)
	if err != nil {
		return fail(l, "table_insert_error", err)
	}

	var rows []struct {
		ID uint `json:"id"`
	}
	_ = json.Unmarshal(res.Data, &rows)
	h.emit(c, table, events.RowChanged{Type: events.TypeRowInserted, Table: table, Rows: len(rows)})
	if table == orderentry.StockTable {
		ids := make([]uint, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		h.syncStock(c, ids...)
	}

	l.Info("table_insert_success", "rows", len(rows))
	return c.JSONBlob(res.Status, res.Data)
}

func (h *TablesHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	table := c.Param("table")
	l := logging.FromContext(ctx).With("handler", "tables.update", "table", table)

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(l, "table_update_error", err.Error(), err)
	}
	body, err := readBody(c)
	if err != nil {
		return badRequest(l, "table_update_error", "invalid body", err)
	}

	res, err := h.Backend.Update(ctx, table, id, body)
	if err != nil {
		return fail(l, "table_update_error", err)
	}
	h.emit(c, table, events.RowChanged{Type: events.TypeRowUpdated, Table: table, ID: id})
	if table == orderentry.StockTable {
		h.syncStock(c, id)
	}

	l.Info("table_update_success", "id", id)
	return c.NoContent(res.Status)
}

func (h *TablesHTTP) Upsert(c echo.Context) error {
	ctx := c.Request().Context()
	table := c.Param("table")
	l := logging.FromContext(ctx).With("handler", "tables.upsert", "table", table)

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(l, "table_upsert_error", err.Error(), err)
	}
	body, err := readBody(c)
	if err != nil {
		return badRequest(l, "table_upsert_error", "invalid body", err)
	}

	res, err := h.Backend.Upsert(ctx, table, id, body)
	if err != nil {
		return fail(l, "table_upsert_error", err)
	}
	h.emit(c, table, events.RowChanged{Type: events.TypeRowUpserted, Table: table, ID: id})
	if table == orderentry.StockTable {
		h.syncStock(c, id)
	}

	l.Info("table_upsert_success", "id", id)
	return c.JSONBlob(res.Status, res.Data)
}

func (h *TablesHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	table := c.Param("table")
	l := logging.FromContext(ctx).With("handler", "tables.delete", "table", table)

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(l, "table_delete_error", err.Error(), err)
	}

	res, err := h.Backend.Delete(ctx, table, id)
	if err != nil {
		return fail(l, "table_delete_error", err)
	}
	h.emit(c, table, events.RowChanged{Type: events.TypeRowDeleted, Table: table, ID: id})
	if table == orderentry.StockTable {
		h.syncStock(c, id)
	}

	l.Info("table_delete_success", "id", id)
	return c.NoContent(res.Status)
}

func (h *TablesHTTP) emit(c echo.Context, table string, ev events.RowChanged) {
	ev.By, _ = authmw.UserID(c)
	key := table
	if ev.ID != 0 {
		key += ":" + strconv.FormatUint(uint64(ev.ID), 10)
	}
	events.Emit(c.Request().Context(), h.Events, events.TopicTables, key, ev)
}

// syncStock runs after the write committed, so a failure is logged and the
// request still succeeds. POST /stock/reindex repairs the index.
func (h *TablesHTTP) syncStock(c echo.Context, ids ...uint) {
	if h.Stock == nil {
		return
	}
	ctx := c.Request().Context()
	if err := h.Stock.SyncStock(ctx, ids...); err != nil {
		logging.FromContext(ctx).Warn("stock_index_sync_failed", "ids", ids, "error", err)
	}
}

func readBody(c echo.Context) (json.RawMessage, error) {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBody))
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, errInvalidJSON
	}
	return data, nil
}
