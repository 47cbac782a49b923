package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/partsdesk/internal/logging"
	"github.com/Skotchmaster/partsdesk/internal/service"
	"github.com/Skotchmaster/partsdesk/internal/util"
)

type VATHTTP struct {
	Svc *service.VATService
}

func (h *VATHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "vat.list")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, to := util.Window(page, size)

	rates, err := h.Svc.List(ctx, from, to)
	if err != nil {
		return fail(l, "list_vat_error", err)
	}
	return c.JSON(http.StatusOK, rates)
}

func (h *VATHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "vat.create")

	var req service.VATInput
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_vat_error", "invalid body", err)
	}

	rate, err := h.Svc.Create(ctx, req)
	if err != nil {
		return fail(l, "create_vat_error", err)
	}

	l.Info("create_vat_success", "id", rate.ID)
	return c.JSON(http.StatusCreated, rate)
}

func (h *VATHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "vat.update")

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(l, "update_vat_error", err.Error(), err)
	}
	var req service.VATInput
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_vat_error", "invalid body", err)
	}

	if err := h.Svc.Update(ctx, id, req); err != nil {
		return fail(l, "update_vat_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *VATHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "vat.delete")

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(l, "delete_vat_error", err.Error(), err)
	}

	if err := h.Svc.Delete(ctx, id); err != nil {
		return fail(l, "delete_vat_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}
