package httpserver

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service"
)

type ProductsHTTP struct {
	Svc *service.CatalogService
}

type CreateProductRequest struct {
	SKU         string `json:"sku"         validate:"required,max=64"`
	Name        string `json:"name"        validate:"required,max=200"`
	Description string `json:"description" validate:"max=4000"`
	Price       int64  `json:"price"       validate:"min=0"`
	Currency    string `json:"currency"    validate:"omitempty,len=3"`
	Active      *bool  `json:"active"`
}

type ProductsResponse struct {
	Data []models.Product `json:"data"`
	Meta PageMeta         `json:"meta"`
}

func (h *ProductsHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.list")

	page, offset, limit := pageParams(c)
	items, total, err := h.Svc.ListProducts(ctx, offset, limit)
	if err != nil {
		l.Error("list_products_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list products")
	}
	if items == nil {
		items = []models.Product{}
	}

	return c.JSON(http.StatusOK, ProductsResponse{Data: items, Meta: pageMeta(page, offset, limit, total)})
}

func (h *ProductsHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("get_product_error", "status", 400, "reason", "id is not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	p, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		l.Error("get_product_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot get product")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductsHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create")

	var req CreateProductRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("create_product_error", "status", 400, "error", err)
		return err
	}

	p, err := h.Svc.CreateProduct(ctx, service.CreateProductInput{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Currency:    req.Currency,
		Active:      req.Active,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrConflict):
			return echo.NewHTTPError(http.StatusConflict, "sku already exists")
		default:
			l.Error("create_product_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot create product")
		}
	}

	l.Info("create_product_success", "product_id", p.ID)
	return c.JSON(http.StatusCreated, p)
}
