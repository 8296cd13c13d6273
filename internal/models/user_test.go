package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Role
	}{
		{"admin", RoleAdmin},
		{" ADMIN ", RoleAdmin},
		{"customer", RoleCustomer},
		{"", RoleCustomer},
		{"superuser", RoleCustomer},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseRole(tt.in), tt.in)
	}
}

func TestRole_Scan(t *testing.T) {
	t.Parallel()

	var r Role
	require.NoError(t, r.Scan(nil))
	assert.Equal(t, RoleCustomer, r)

	require.NoError(t, r.Scan([]byte("admin")))
	assert.Equal(t, RoleAdmin, r)

	assert.Error(t, r.Scan(42))
}

func TestRole_JSON(t *testing.T) {
	t.Parallel()

	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"name":"a","role":null}`), &u))
	assert.Equal(t, RoleCustomer, u.Role)

	var missing User
	require.NoError(t, json.Unmarshal([]byte(`{"name":"a"}`), &missing))
	b, err := json.Marshal(missing)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"role":"customer"`)
	assert.NotContains(t, string(b), "password")
}

func TestCartItem_LineTotal(t *testing.T) {
	t.Parallel()
	assert.Equal(t, int64(3000), CartItem{Quantity: 3, UnitPrice: 1000}.LineTotal())
}
