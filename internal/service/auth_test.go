package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/db/dbtest"
	"github.com/Skotchmaster/storefront/internal/events/eventstest"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

type fakeRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (f *fakeRevoker) Revoke(_ context.Context, jti string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revoked == nil {
		f.revoked = map[string]time.Time{}
	}
	f.revoked[jti] = until
	return nil
}

func newTestAuthService(t *testing.T) (*AuthService, *repo.GormRepo, *eventstest.Recorder, *fakeRevoker) {
	t.Helper()

	r := repo.New(dbtest.Open(t))
	rec := &eventstest.Recorder{}
	rev := &fakeRevoker{}
	return &AuthService{
		Repo:          r,
		AccessSecret:  []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		Revoker:       rev,
		Events:        rec,
	}, r, rec, rev
}

func TestAuthService_SignUp_Validation(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   SignUpInput
	}{
		{name: "empty name", in: SignUpInput{Email: "a@example.com", Password: "longenough"}},
		{name: "bad email", in: SignUpInput{Name: "A", Email: "nope", Password: "longenough"}},
		{name: "short password", in: SignUpInput{Name: "A", Email: "a@example.com", Password: "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := svc.SignUp(ctx, tt.in)
			require.Error(t, err)
			assert.Nil(t, u)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAuthService_SignUp(t *testing.T) {
	t.Parallel()

	svc, _, rec, _ := newTestAuthService(t)
	ctx := context.Background()

	u, err := svc.SignUp(ctx, SignUpInput{Name: " Ann ", Email: "Ann@Example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, models.RoleCustomer, u.Role)
	assert.False(t, u.Verified)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	_, err = svc.SignUp(ctx, SignUpInput{Name: "Ann", Email: "ann@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrConflict)

	assert.Equal(t, []string{"user_registered"}, rec.Types())
}

func TestAuthService_SignIn(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	u, err := svc.SignUp(ctx, SignUpInput{Name: "Bo", Email: "bo@example.com", Password: "password-1"})
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "bo@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignIn(ctx, "nobody@example.com", "password-1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignIn(ctx, "", "")
	assert.ErrorIs(t, err, ErrValidation)

	res, err := svc.SignIn(ctx, "BO@example.com", "password-1")
	require.NoError(t, err)
	assert.False(t, res.IsAdmin())
	assert.WithinDuration(t, time.Now().Add(tokens.AccessTTL), res.AccessExp, 5*time.Second)

	claims, err := tokens.AccessClaimsFromToken(res.AccessToken, svc.AccessSecret)
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), claims.Subject)
	assert.Equal(t, "customer", claims.Role)
	assert.Equal(t, res.AccessJTI, claims.ID)
}

func TestAuthService_Refresh_InvalidToken(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestAuthService(t)
	res, err := svc.Refresh(context.Background(), "not-a-valid-jwt")

	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthService_RefreshRotates(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, SignUpInput{Name: "Cy", Email: "cy@example.com", Password: "password-1"})
	require.NoError(t, err)
	first, err := svc.SignIn(ctx, "cy@example.com", "password-1")
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = svc.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestAuthService_SignOut(t *testing.T) {
	t.Parallel()

	svc, _, _, rev := newTestAuthService(t)
	ctx := context.Background()

	require.NoError(t, svc.SignOut(ctx, "", "", time.Time{}))

	_, err := svc.SignUp(ctx, SignUpInput{Name: "Di", Email: "di@example.com", Password: "password-1"})
	require.NoError(t, err)
	res, err := svc.SignIn(ctx, "di@example.com", "password-1")
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, res.RefreshToken, res.AccessJTI, res.AccessExp))
	assert.Contains(t, rev.revoked, res.AccessJTI)

	_, err = svc.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}
