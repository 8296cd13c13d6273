package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
)

func TestCarts_GetOrCreateIsIdempotent(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.GetCart(ctx, "session:abc")
	assert.ErrorIs(t, err, ErrNotFound)

	c1, err := r.GetOrCreateCart(ctx, "session:abc", nil, "USD")
	require.NoError(t, err)
	c2, err := r.GetOrCreateCart(ctx, "session:abc", nil, "EUR")
	require.NoError(t, err)

	assert.Equal(t, c1.ID, c2.ID)
	assert.Equal(t, "USD", c2.Currency)
	assert.Empty(t, c2.Items)
	assert.NotNil(t, c2.Items)
}

func TestCarts_ItemLifecycle(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	cart, err := r.GetOrCreateCart(ctx, "session:x", nil, "USD")
	require.NoError(t, err)
	v0 := cart.Version
	productID := uuid.New()

	cart, err = r.AddItem(ctx, cart.ID, models.CartItem{ProductID: productID, Name: "Widget", Quantity: 2, UnitPrice: 250})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, v0+1, cart.Version)

	cart, err = r.AddItem(ctx, cart.ID, models.CartItem{ProductID: productID, Name: "Widget", Quantity: 3, UnitPrice: 999})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, int64(250), cart.Items[0].UnitPrice)

	cart, err = r.SetItemQuantity(ctx, cart.ID, productID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, cart.Items[0].Quantity)

	_, err = r.SetItemQuantity(ctx, cart.ID, uuid.New(), 1)
	assert.ErrorIs(t, err, ErrNotFound)

	cart, err = r.RemoveItem(ctx, cart.ID, productID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, err = r.RemoveItem(ctx, cart.ID, productID)
	assert.ErrorIs(t, err, ErrNotFound)

	still, err := r.GetCart(ctx, "session:x")
	require.NoError(t, err)
	assert.Equal(t, cart.ID, still.ID)
}

func TestCarts_ClearKeepsCart(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	cart, err := r.GetOrCreateCart(ctx, "user:1", nil, "USD")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		cart, err = r.AddItem(ctx, cart.ID, models.CartItem{ProductID: uuid.New(), Quantity: 1, UnitPrice: 100})
		require.NoError(t, err)
	}
	require.Len(t, cart.Items, 3)

	cleared, err := r.ClearCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, cleared.Items)
	assert.Equal(t, cart.ID, cleared.ID)
	assert.Greater(t, cleared.Version, cart.Version)
}

func TestCarts_ReplaceItemsPinsVersion(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	cart, err := r.GetOrCreateCart(ctx, "user:2", nil, "USD")
	require.NoError(t, err)
	cart, err = r.AddItem(ctx, cart.ID, models.CartItem{ProductID: uuid.New(), Quantity: 1, UnitPrice: 100})
	require.NoError(t, err)

	p := uuid.New()
	replaced, err := r.ReplaceItems(ctx, cart.ID, []models.CartItem{{ProductID: p, Name: "Remote", Quantity: 4, UnitPrice: 300}}, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), replaced.Version)
	require.Len(t, replaced.Items, 1)
	assert.Equal(t, p, replaced.Items[0].ProductID)
	assert.Equal(t, 4, replaced.Items[0].Quantity)
}

func TestOrders_PlaceOrder(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	cart, err := r.GetOrCreateCart(ctx, "user:"+userID.String(), &userID, "USD")
	require.NoError(t, err)
	productID := uuid.New()
	cart, err = r.AddItem(ctx, cart.ID, models.CartItem{ProductID: productID, Name: "W", Quantity: 2, UnitPrice: 150})
	require.NoError(t, err)

	stale := &models.Order{UserID: userID, Currency: "USD", Subtotal: 300, Total: 300,
		Items: []models.OrderItem{{ProductID: productID, Name: "W", Quantity: 2, UnitPrice: 150}}}
	_, err = r.PlaceOrder(ctx, cart.ID, cart.Version-1, stale)
	assert.ErrorIs(t, err, ErrConflict)

	order := &models.Order{UserID: userID, Currency: "USD", Subtotal: 300, Total: 300,
		Items: []models.OrderItem{{ProductID: productID, Name: "W", Quantity: 2, UnitPrice: 150}}}
	after, err := r.PlaceOrder(ctx, cart.ID, cart.Version, order)
	require.NoError(t, err)
	assert.Empty(t, after.Items)
	assert.Equal(t, cart.ID, after.ID)

	orders, err := r.ListOrders(ctx, userID, 0, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusNew, orders[0].Status)
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, 2, orders[0].Items[0].Quantity)
}
