package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	authmw "github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service"
)

type OrdersHTTP struct {
	Svc *service.OrdersService
}

type OrdersResponse struct {
	Data []models.Order `json:"data"`
	Page int            `json:"page"`
	Size int            `json:"size"`
}

func (h *OrdersHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "orders.list")

	u := authmw.CurrentUser(c)
	if u == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, authmw.MsgAuthenticationRequired)
	}

	page, offset, limit := pageParams(c)
	orders, err := h.Svc.ListOrders(ctx, u.ID, offset, limit)
	if err != nil {
		l.Error("list_orders_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return c.JSON(http.StatusOK, OrdersResponse{Data: orders, Page: page, Size: limit})
}
