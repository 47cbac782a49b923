package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/partsdesk/internal/logging"
	authmw "github.com/Skotchmaster/partsdesk/pkg/middleware/auth"
)

type Deps struct {
	Auth      *AuthHTTP
	Users     *UsersHTTP
	Tables    *TablesHTTP
	VAT       *VATHTTP
	Lookup    *LookupHTTP
	Orders    *OrdersHTTP
	JWTSecret []byte
	// Ready reports whether downstream dependencies are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready == nil {
			return c.NoContent(http.StatusOK)
		}
		if err := d.Ready(c.Request().Context()); err != nil {
			logging.FromContext(c.Request().Context()).Warn("not_ready", "status", http.StatusServiceUnavailable, "error", err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	authMw := authmw.New(d.JWTSecret)
	api := e.Group("/api/v1")

	api.POST("/auth/login", d.Auth.Login)

	private := api.Group("")
	private.Use(authMw.RequireAuth)

	private.POST("/auth/logout", d.Auth.Logout)

	private.GET("/tables/:table", d.Tables.Query)
	private.POST("/tables/:table", d.Tables.Insert)
	private.PATCH("/tables/:table/:id", d.Tables.Update)
	private.PUT("/tables/:table/:id", d.Tables.Upsert)
	private.DELETE("/tables/:table/:id", d.Tables.Delete)

	private.GET("/stock/search", d.Lookup.SearchStock)
	private.GET("/stock/fulltext", d.Lookup.FullText)
	private.GET("/customers/search", d.Lookup.SearchCustomers)

	private.POST("/drafts", d.Orders.CreateDraft)
	private.GET("/drafts/:id", d.Orders.GetDraft)
	private.DELETE("/drafts/:id", d.Orders.DeleteDraft)
	private.PUT("/drafts/:id/customer", d.Orders.SetCustomer)
	private.POST("/drafts/:id/items", d.Orders.AddItem)
	private.POST("/drafts/:id/items/:stock_id/increment", d.Orders.Increment)
	private.POST("/drafts/:id/items/:stock_id/decrement", d.Orders.Decrement)
	private.DELETE("/drafts/:id/items/:stock_id", d.Orders.RemoveItem)
	private.POST("/drafts/:id/submit", d.Orders.Submit)
	private.GET("/orders", d.Orders.ListOrders)

	private.GET("/vat-rates", d.VAT.List)
	private.POST("/vat-rates", d.VAT.Create)
	private.PATCH("/vat-rates/:id", d.VAT.Update)
	private.DELETE("/vat-rates/:id", d.VAT.Delete)

	admin := authMw.RequireAdmin
	private.POST("/stock/reindex", d.Lookup.Reindex, admin)
	private.GET("/users", d.Users.List, admin)
	private.POST("/users", d.Users.Create, admin)
	private.DELETE("/users/:id", d.Users.Delete, admin)
}
