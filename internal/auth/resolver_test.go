package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

var testSecret = []byte("test-jwt-secret")

type fakeUsers struct {
	users map[uuid.UUID]*models.User
	err   error
	calls int
}

func (f *fakeUsers) FindUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], f.err
}

func signFor(t *testing.T, id uuid.UUID, exp time.Time) (string, string) {
	t.Helper()
	tok, jti, err := tokens.NewAccessToken(testSecret, id.String(), "customer", exp)
	require.NoError(t, err)
	return tok, jti
}

func newRequest(header, cookie string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: tokens.AccessCookie, Value: cookie})
	}
	return req
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	known := &models.User{ID: uuid.New(), Name: "Ann", Role: models.RoleAdmin}
	users := map[uuid.UUID]*models.User{known.ID: known}

	valid, _ := signFor(t, known.ID, time.Now().Add(time.Minute))
	expired, _ := signFor(t, known.ID, time.Now().Add(-time.Minute))
	ghost, _ := signFor(t, uuid.New(), time.Now().Add(time.Minute))
	badSubject, _, err := tokens.NewAccessToken(testSecret, "not-a-uuid", "customer", time.Now().Add(time.Minute))
	require.NoError(t, err)

	tests := []struct {
		name          string
		req           *http.Request
		wantUser      *models.User
		wantMalformed bool
	}{
		{name: "no credential", req: newRequest("", "")},
		{name: "bearer header", req: newRequest("Bearer "+valid, ""), wantUser: known},
		{name: "lower case scheme", req: newRequest("bearer "+valid, ""), wantUser: known},
		{name: "cookie", req: newRequest("", valid), wantUser: known},
		{name: "header wins over cookie", req: newRequest("Bearer garbage", valid), wantMalformed: true},
		{name: "basic scheme", req: newRequest("Basic dXNlcjpwYXNz", ""), wantMalformed: true},
		{name: "bearer without token", req: newRequest("Bearer", ""), wantMalformed: true},
		{name: "corrupt token", req: newRequest("Bearer abc.def.ghi", ""), wantMalformed: true},
		{name: "expired token", req: newRequest("Bearer "+expired, ""), wantMalformed: true},
		{name: "bad subject", req: newRequest("Bearer "+badSubject, ""), wantMalformed: true},
		{name: "user deleted", req: newRequest("Bearer "+ghost, "")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &Resolver{Users: &fakeUsers{users: users}, Secret: testSecret}
			u, err := r.Resolve(context.Background(), tt.req)

			if tt.wantMalformed {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedCredential)
				assert.Nil(t, u)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, u)
		})
	}
}

func TestResolver_NoCredentialSkipsLookup(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{}
	r := &Resolver{Users: users, Secret: testSecret}

	u, err := r.Resolve(context.Background(), newRequest("", ""))
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Zero(t, users.calls)
}

func TestResolver_LookupFailureIsNotMalformed(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	tok, _ := signFor(t, id, time.Now().Add(time.Minute))
	r := &Resolver{Users: &fakeUsers{err: errors.New("db down")}, Secret: testSecret}

	u, err := r.Resolve(context.Background(), newRequest("Bearer "+tok, ""))
	require.Error(t, err)
	assert.Nil(t, u)
	assert.NotErrorIs(t, err, ErrMalformedCredential)
}

func TestResolver_Revocations(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: uuid.New()}
	users := &fakeUsers{users: map[uuid.UUID]*models.User{user.ID: user}}
	tok, jti := signFor(t, user.ID, time.Now().Add(time.Minute))

	revoked := &Resolver{Users: users, Secret: testSecret, Revoked: &fakeRevocations{revoked: map[string]bool{jti: true}}}
	_, err := revoked.Resolve(context.Background(), newRequest("Bearer "+tok, ""))
	assert.ErrorIs(t, err, ErrMalformedCredential)

	failing := &Resolver{Users: users, Secret: testSecret, Revoked: &fakeRevocations{err: errors.New("redis down")}}
	_, err = failing.Resolve(context.Background(), newRequest("Bearer "+tok, ""))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedCredential)

	clean := &Resolver{Users: users, Secret: testSecret, Revoked: &fakeRevocations{}}
	u, err := clean.Resolve(context.Background(), newRequest("Bearer "+tok, ""))
	require.NoError(t, err)
	assert.Equal(t, user, u)
}

func TestUserContext(t *testing.T) {
	t.Parallel()

	assert.Nil(t, UserFromContext(context.Background()))

	u := &models.User{ID: uuid.New()}
	assert.Equal(t, u, UserFromContext(WithUser(context.Background(), u)))
}
