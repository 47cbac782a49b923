package httpserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/partsdesk/internal/logging"
	"github.com/Skotchmaster/partsdesk/internal/service"
	"github.com/Skotchmaster/partsdesk/internal/transport"
	"github.com/Skotchmaster/partsdesk/internal/util"
)

type LookupHTTP struct {
	Svc *service.LookupService
}

func (h *LookupHTTP) SearchStock(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "stock.search")

	from, to := window(c)
	items, err := h.Svc.SearchStock(ctx, c.QueryParam("q"), from, to)
	if err != nil {
		return fail(l, "stock_search_error", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *LookupHTTP) SearchCustomers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "customers.search")

	from, to := window(c)
	customers, err := h.Svc.SearchCustomers(ctx, c.QueryParam("q"), from, to)
	if err != nil {
		return fail(l, "customer_search_error", err)
	}
	return c.JSON(http.StatusOK, customers)
}

func (h *LookupHTTP) FullText(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "stock.fulltext")

	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return badRequest(l, "fulltext_error", "q is required", nil)
	}
	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	res, err := h.Svc.FullText(ctx, q, offset, limit)
	if err != nil {
		return fail(l, "fulltext_error", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data": res.Items,
		"meta": util.NewMeta(page, offset, limit, res.Total),
	})
}

func (h *LookupHTTP) Reindex(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "stock.reindex")

	n, err := h.Svc.Reindex(ctx)
	if err != nil {
		return fail(l, "reindex_error", err)
	}
	return c.JSON(http.StatusOK, transport.ReindexResponse{Indexed: n})
}

// window reads from/to as a row range, defaulting to the first page.
func window(c echo.Context) (int, int) {
	from := util.ParseIntDefault(c.QueryParam("from"), 0)
	to := util.ParseIntDefault(c.QueryParam("to"), from+util.DefaultPageSize-1)
	return from, to
}
