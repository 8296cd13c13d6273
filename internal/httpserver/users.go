package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	authmw "github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service"
)

type UsersHTTP struct {
	Svc *service.UsersService
}

type UsersResponse struct {
	Success       bool       `json:"success"`
	TotalUsers    int        `json:"totalUsers"`
	NonAdminUsers int        `json:"nonAdminUsers"`
	Users         UserGroups `json:"users"`
}

type UserGroups struct {
	All      []models.User `json:"all"`
	NonAdmin []models.User `json:"nonAdmin"`
}

type SeedResponse struct {
	Success bool          `json:"success"`
	Users   []models.User `json:"users"`
}

type AuthDiagnosticResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
	HasAuth bool         `json:"hasAuth"`
	IsAdmin bool         `json:"isAdmin"`
}

func (h *UsersHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.list")

	sum, err := h.Svc.Summary(ctx)
	if err != nil {
		l.Error("list_users_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, FailureResponse{
			Success: false,
			Error:   "Failed to fetch users",
			Details: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, UsersResponse{
		Success:       true,
		TotalUsers:    len(sum.All),
		NonAdminUsers: len(sum.NonAdmin),
		Users:         UserGroups{All: sum.All, NonAdmin: sum.NonAdmin},
	})
}

func (h *UsersHTTP) Seed(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.seed")

	users, err := h.Svc.Seed(ctx)
	if err != nil {
		l.Error("seed_users_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, FailureResponse{
			Success: false,
			Error:   "Failed to seed users",
			Details: err.Error(),
		})
	}

	return c.JSON(http.StatusCreated, SeedResponse{Success: true, Users: users})
}

// AuthDiagnostic reports who the request resolves to. It sits behind
// Identify, so an untrusted credential shows up as anonymous.
func (h *UsersHTTP) AuthDiagnostic(c echo.Context) error {
	u := authmw.CurrentUser(c)
	return c.JSON(http.StatusOK, AuthDiagnosticResponse{
		Success: true,
		User:    u,
		HasAuth: u != nil,
		IsAdmin: u.IsAdmin(),
	})
}
