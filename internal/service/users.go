package service

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/hash"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "storefront-demo"

type UserDirectory interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUsers(ctx context.Context, users []*models.User) error
}

type UsersService struct {
	Repo   UserDirectory
	Events events.Publisher
}

type UserSummary struct {
	All      []models.User
	NonAdmin []models.User
}

// Summary lists every user and the subset without the admin role.
func (s *UsersService) Summary(ctx context.Context) (*UserSummary, error) {
	users, err := s.Repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []models.User{}
	}

	out := &UserSummary{All: users, NonAdmin: make([]models.User, 0, len(users))}
	for _, u := range users {
		if !u.IsAdmin() {
			out.NonAdmin = append(out.NonAdmin, u)
		}
	}
	return out, nil
}

type seedUser struct {
	name  string
	email string
	role  models.Role
}

var seedUsers = []seedUser{
	{"Casey Buyer", "casey.buyer@example.com", models.RoleCustomer},
	{"Morgan Procurement", "morgan.procurement@example.com", models.RoleCustomer},
	{"Store Admin", "admin@example.com", models.RoleAdmin},
	{"Jordan Wholesale", "jordan.wholesale@example.com", models.RoleCustomer},
}

// Seed inserts the four demo accounts in a single transaction, in order.
// Seeding twice fails with the conflict from the second run.
func (s *UsersService) Seed(ctx context.Context) ([]models.User, error) {
	l := logging.FromContext(ctx).With("svc", "users.seed")

	pwHash, err := hash.HashPassword(SeedPassword)
	if err != nil {
		return nil, err
	}

	batch := make([]*models.User, 0, len(seedUsers))
	for _, su := range seedUsers {
		batch = append(batch, &models.User{
			Name:         su.name,
			Email:        su.email,
			PasswordHash: pwHash,
			Role:         su.role,
			Verified:     true,
		})
	}

	if err := s.Repo.CreateUsers(ctx, batch); err != nil {
		l.Error("seed_error", "status", 500, "error", err)
		return nil, fmt.Errorf("seed users: %w", err)
	}

	out := make([]models.User, 0, len(batch))
	for _, u := range batch {
		out = append(out, *u)
		events.Emit(ctx, s.Events, events.TopicUserEvents, u.ID.String(), events.New("user_registered", map[string]any{
			"userId": u.ID,
			"email":  u.Email,
			"role":   u.Role,
			"seeded": true,
		}))
	}
	l.Info("users_seeded", "count", len(out))
	return out, nil
}
