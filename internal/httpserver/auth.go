package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/partsdesk/internal/logging"
	"github.com/Skotchmaster/partsdesk/internal/service"
	"github.com/Skotchmaster/partsdesk/internal/transport"
	authmw "github.com/Skotchmaster/partsdesk/pkg/middleware/auth"
)

type AuthHTTP struct {
	Svc *service.UserService
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "login_error", "invalid body", err)
	}
	if req.Username == "" || req.Password == "" {
		return badRequest(l, "login_error", "username and password are required", nil)
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return fail(l, "login_error", err)
	}

	c.SetCookie(authmw.AccessCookie(res.AccessToken, res.AccessExp))
	l.Info("login_success", "user_id", res.User.ID)
	return c.JSON(http.StatusOK, transport.LoginResponse{
		AccessToken: res.AccessToken,
		ExpiresAt:   res.AccessExp.UTC(),
		Username:    res.User.Username,
		Role:        res.User.Role,
	})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	c.SetCookie(authmw.ClearAccessCookie())
	return c.NoContent(http.StatusNoContent)
}
