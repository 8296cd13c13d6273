package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/logging"
	authmw "github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/models"
)

type CartHTTP struct{}

type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity"  validate:"min=0,max=1000"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"min=0,max=1000"`
}

// CartResponse is the cart with its derived totals inlined.
type CartResponse struct {
	Cart *models.Cart `json:"cart"`
	cart.View
}

type CheckoutResponse struct {
	Order *models.Order `json:"order"`
	CartResponse
}

func cartResponse(a *cart.Accessor) CartResponse {
	return CartResponse{Cart: a.Cart(), View: a.View()}
}

func (h *CartHTTP) Get(c echo.Context) error {
	return h.run(c, "cart.get", func(a *cart.Accessor) error {
		return a.RefreshCart(c.Request().Context())
	})
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	var req AddItemRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	productID, _ := uuid.Parse(req.ProductID)

	return h.run(c, "cart.add_item", func(a *cart.Accessor) error {
		return a.AddToCart(c.Request().Context(), productID, req.Quantity)
	})
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "productId is not a uuid")
	}
	var req UpdateItemRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	return h.run(c, "cart.update_item", func(a *cart.Accessor) error {
		return a.UpdateQuantity(c.Request().Context(), productID, req.Quantity)
	})
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "productId is not a uuid")
	}

	return h.run(c, "cart.remove_item", func(a *cart.Accessor) error {
		return a.RemoveFromCart(c.Request().Context(), productID)
	})
}

func (h *CartHTTP) Clear(c echo.Context) error {
	return h.run(c, "cart.clear", func(a *cart.Accessor) error {
		return a.ClearCart(c.Request().Context())
	})
}

func (h *CartHTTP) Refresh(c echo.Context) error {
	return h.run(c, "cart.refresh", func(a *cart.Accessor) error {
		return a.RefreshCart(c.Request().Context())
	})
}

func (h *CartHTTP) Sync(c echo.Context) error {
	return h.run(c, "cart.sync", func(a *cart.Accessor) error {
		return a.SyncCart(c.Request().Context())
	})
}

func (h *CartHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.checkout")

	u := authmw.CurrentUser(c)
	if u == nil {
		l.Warn("checkout_error", "status", 401, "reason", "guest cart")
		return echo.NewHTTPError(http.StatusUnauthorized, authmw.MsgAuthenticationRequired)
	}

	a, err := cart.FromContext(ctx)
	if err != nil {
		l.Error("checkout_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cart unavailable")
	}

	order, err := a.Checkout(ctx, u.ID)
	if err != nil {
		return cartError(l, err)
	}

	l.Info("checkout_success", "order_id", order.ID, "total", order.Total)
	return c.JSON(http.StatusCreated, CheckoutResponse{Order: order, CartResponse: cartResponse(a)})
}

func (h *CartHTTP) run(c echo.Context, name string, op func(a *cart.Accessor) error) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", name)

	a, err := cart.FromContext(ctx)
	if err != nil {
		l.Error("cart_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cart unavailable")
	}

	if err := op(a); err != nil {
		return cartError(l, err)
	}
	return c.JSON(http.StatusOK, cartResponse(a))
}

func cartError(l *slog.Logger, err error) error {
	switch {
	case errors.Is(err, cart.ErrValidation):
		l.Warn("cart_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, cart.ErrNotFound):
		l.Warn("cart_error", "status", 404, "error", err)
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, cart.ErrConflict):
		l.Warn("cart_error", "status", 409, "error", err)
		return echo.NewHTTPError(http.StatusConflict, "cart changed, retry")
	case errors.Is(err, cart.ErrSignInRequired):
		l.Warn("cart_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, authmw.MsgAuthenticationRequired)
	default:
		l.Error("cart_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot update cart")
	}
}
