package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/partsdesk/internal/backend"
	"github.com/Skotchmaster/partsdesk/internal/cart"
	"github.com/Skotchmaster/partsdesk/internal/orderentry"
	"github.com/Skotchmaster/partsdesk/internal/querylang"
	"github.com/Skotchmaster/partsdesk/internal/search"
	"github.com/Skotchmaster/partsdesk/internal/service"
)

var errInvalidJSON = errors.New("body is not valid JSON")

func statusOf(err error) int {
	var partial *orderentry.PartialOrderError
	switch {
	case errors.As(err, &partial):
		return http.StatusBadGateway
	case errors.Is(err, backend.ErrUnknownTable),
		errors.Is(err, backend.ErrNotFound),
		errors.Is(err, service.ErrNotFound),
		errors.Is(err, orderentry.ErrUnknownItem):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrUnknownColumn),
		errors.Is(err, backend.ErrValidation),
		errors.Is(err, querylang.ErrSyntax),
		errors.Is(err, service.ErrValidation),
		errors.Is(err, orderentry.ErrInvalidSaleType),
		errors.Is(err, cart.ErrInvalidAmount),
		errors.Is(err, cart.ErrOutOfStock):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, backend.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, backend.ErrConflict),
		errors.Is(err, service.ErrUserAlreadyExist),
		errors.Is(err, orderentry.ErrEmptyCart):
		return http.StatusConflict
	case errors.Is(err, search.ErrDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail logs err under event and converts it to an HTTP error. Server-side failures
// are reported to the client without detail.
func fail(l *slog.Logger, event string, err error) error {
	status := statusOf(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway && status != http.StatusServiceUnavailable {
		l.Error(event, "status", status, "reason", "internal error", "error", err)
		return echo.NewHTTPError(status, "internal error")
	}
	l.Warn(event, "status", status, "reason", err.Error())
	return echo.NewHTTPError(status, err.Error())
}

func badRequest(l *slog.Logger, event, reason string, err error) error {
	l.Warn(event, "status", http.StatusBadRequest, "reason", reason, "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, reason)
}

func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return uint(id), nil
}
