package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/partsdesk/internal/logging"
	"github.com/Skotchmaster/partsdesk/internal/service"
	"github.com/Skotchmaster/partsdesk/internal/transport"
	"github.com/Skotchmaster/partsdesk/internal/util"
	authmw "github.com/Skotchmaster/partsdesk/pkg/middleware/auth"
)

// OrdersHTTP serves draft order carts and placed orders.
type OrdersHTTP struct {
	Svc *service.OrderService
}

func (h *OrdersHTTP) caller(c echo.Context, handler string) (uint, *slog.Logger, error) {
	l := logging.FromContext(c.Request().Context()).With("handler", handler)
	uid, ok := authmw.UserID(c)
	if !ok {
		l.Warn("unauthorized", "status", http.StatusUnauthorized, "reason", "no user in context")
		return 0, l, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return uid, l.With("user_id", uid), nil
}

func (h *OrdersHTTP) CreateDraft(c echo.Context) error {
	uid, l, err := h.caller(c, "drafts.create")
	if err != nil {
		return err
	}
	d, err := h.Svc.NewDraft(c.Request().Context(), uid)
	if err != nil {
		return fail(l, "create_draft_error", err)
	}
	l.Info("create_draft_success", "draft_id", d.ID)
	return c.JSON(http.StatusCreated, d)
}

func (h *OrdersHTTP) GetDraft(c echo.Context) error {
	uid, l, err := h.caller(c, "drafts.get")
	if err != nil {
		return err
	}
	d, err := h.Svc.GetDraft(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return fail(l, "get_draft_error", err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *OrdersHTTP) DeleteDraft(c echo.Context) error {
	uid, l, err := h.caller(c, "drafts.delete")
	if err != nil {
		return err
	}
	if err := h.Svc.DeleteDraft(c.Request().Context(), uid, c.Param("id")); err != nil {
		return fail(l, "delete_draft_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *OrdersHTTP) SetCustomer(c echo.Context) error {
	uid, l, err := h.caller(c, "drafts.set_customer")
	if err != nil {
		return err
	}
	var req transport.SetCustomerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "set_customer_error", "invalid body", err)
	}
	if req.CustomerID == 0 {
		return badRequest(l, "set_customer_error", "customer_id is required", nil)
	}

	d, err := h.Svc.SetCustomer(c.Request().Context(), uid, c.Param("id"), req.CustomerID)
	if err != nil {
		return fail(l, "set_customer_error", err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *OrdersHTTP) AddItem(c echo.Context) error {
	uid, l, err := h.caller(c, "drafts.add_item")
	if err != nil {
		return err
	}
	var req transport.AddItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "add_item_error", "invalid body", err)
	}
	if req.StockID == 0 {
		return badRequest(l, "add_item_error", "stock_id is required", nil)
	}

	d, err := h.Svc.AddItem(c.Request().Context(), uid, c.Param("id"), req.StockID, req.Quantity)
	if err != nil {
		return fail(l, "add_item_error", err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *OrdersHTTP) Increment(c echo.Context) error {
	return h.adjust(c, "drafts.increment", h.Svc.Increment)
}

func (h *OrdersHTTP) Decrement(c echo.Context) error {
	return h.adjust(c, "drafts.decrement", h.Svc.Decrement)
}

func (h *OrdersHTTP) RemoveItem(c echo.Context) error {
	return h.adjust(c, "drafts.remove_item", h.Svc.RemoveItem)
}

type adjustFunc func(ctx context.Context, userID uint, id string, stockID uint) (*service.DraftView, error)

func (h *OrdersHTTP) adjust(c echo.Context, handler string, op adjustFunc) error {
	uid, l, err := h.caller(c, handler)
	if err != nil {
		return err
	}
	stockID, err := parseID(c, "stock_id")
	if err != nil {
		return badRequest(l, "adjust_item_error", err.Error(), err)
	}

	d, err := op(c.Request().Context(), uid, c.Param("id"), stockID)
	if err != nil {
		return fail(l, "adjust_item_error", err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *OrdersHTTP) Submit(c echo.Context) error {
	uid, l, err := h.caller(c, "drafts.submit")
	if err != nil {
		return err
	}
	var req transport.SubmitOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "submit_order_error", "invalid body", err)
	}
	sub, err := req.ToSubmit()
	if err != nil {
		return badRequest(l, "submit_order_error", err.Error(), err)
	}

	r, err := h.Svc.Submit(c.Request().Context(), uid, c.Param("id"), sub)
	if err != nil {
		return fail(l, "submit_order_error", err)
	}
	l.Info("submit_order_success", "order_id", r.OrderID, "lines", r.Lines)
	return c.JSON(http.StatusCreated, r)
}

func (h *OrdersHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "orders.list")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, orders, err := h.Svc.ListOrders(ctx, offset, limit)
	if err != nil {
		return fail(l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data": orders,
		"meta": util.NewMeta(page, offset, limit, total),
	})
}
