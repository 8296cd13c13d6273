package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/db/dbtest"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/events/eventstest"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
)

type memRemote struct {
	mu      sync.Mutex
	snaps   map[string]Snapshot
	pullErr error
	pushErr error
	pushes  int
}

func newMemRemote() *memRemote {
	return &memRemote{snaps: map[string]Snapshot{}}
}

func (m *memRemote) Pull(_ context.Context, ownerKey string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pullErr != nil {
		return nil, m.pullErr
	}
	s, ok := m.snaps[ownerKey]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memRemote) Push(_ context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pushErr != nil {
		return m.pushErr
	}
	m.pushes++
	m.snaps[s.OwnerKey] = s
	return nil
}

type fixture struct {
	repo   *repo.GormRepo
	remote *memRemote
	events *eventstest.Recorder
	deps   Deps
	widget *models.Product
	gadget *models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	r := repo.New(dbtest.Open(t))
	ctx := context.Background()

	widget := &models.Product{SKU: "W-1", Name: "Widget", Price: 1250, Currency: "USD", Active: true}
	gadget := &models.Product{SKU: "G-1", Name: "Gadget", Price: 399, Currency: "USD", Active: true}
	require.NoError(t, r.CreateProduct(ctx, widget))
	require.NoError(t, r.CreateProduct(ctx, gadget))

	f := &fixture{
		repo:   r,
		remote: newMemRemote(),
		events: &eventstest.Recorder{},
		widget: widget,
		gadget: gadget,
	}
	f.deps = Deps{
		Store:    r,
		Catalog:  r,
		Remote:   f.remote,
		Pricer:   FlatRate{TaxRateBps: 1000, Shipping: 500, FreeShippingFrom: 10000},
		Events:   f.events,
		Currency: "USD",
	}
	return f
}

func TestFromContext_NoProvider(t *testing.T) {
	t.Parallel()

	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoProvider)

	a := NewAccessor(Deps{}, SessionOwner("s"))
	got, err := FromContext(WithAccessor(context.Background(), a))
	require.NoError(t, err)
	assert.Same(t, a, got)
}

func TestAccessor_EmptyBeforeFirstAdd(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := NewAccessor(f.deps, SessionOwner("guest"))

	require.NoError(t, a.RefreshCart(context.Background()))
	assert.Nil(t, a.Cart())
	assert.False(t, a.Loading())

	v := a.View()
	assert.True(t, v.IsEmpty)
	assert.Equal(t, 0, v.ItemCount)
	assert.Equal(t, int64(0), v.Total)
	assert.Equal(t, "USD", v.Currency)
}

func TestAccessor_AddThenRemoveLeavesEmptyCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	a := NewAccessor(f.deps, SessionOwner("guest"))

	require.NoError(t, a.AddToCart(ctx, f.widget.ID, 0))
	require.NotNil(t, a.Cart())
	cartID := a.Cart().ID
	assert.Equal(t, 1, a.View().ItemCount)

	require.NoError(t, a.RemoveFromCart(ctx, f.widget.ID))
	v := a.View()
	assert.True(t, v.IsEmpty)
	assert.Equal(t, 0, v.ItemCount)
	assert.Nil(t, a.Err())

	stored, err := f.repo.GetCart(ctx, "session:guest")
	require.NoError(t, err)
	assert.Equal(t, cartID, stored.ID)

	assert.Equal(t, []string{"cart_item_added", "cart_item_removed"}, f.events.Types())
	for _, m := range f.events.Messages() {
		assert.Equal(t, events.TopicCartEvents, m.Topic)
		assert.Equal(t, "session:guest", m.Key)
	}
}

func TestAccessor_Totals(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	a := NewAccessor(f.deps, SessionOwner("totals"))

	require.NoError(t, a.AddToCart(ctx, f.widget.ID, 2))
	require.NoError(t, a.AddToCart(ctx, f.gadget.ID, 3))
	require.NoError(t, a.AddToCart(ctx, f.widget.ID, 1))

	v := a.View()
	assert.Equal(t, 6, v.ItemCount)
	assert.Equal(t, int64(3*1250+3*399), v.Subtotal)
	assert.Equal(t, int64(495), v.Tax)
	assert.Equal(t, int64(500), v.Shipping)
	assert.Equal(t, v.Subtotal+v.Tax+v.Shipping, v.Total)
	assert.False(t, v.IsEmpty)

	names := map[uuid.UUID]string{}
	for _, it := range a.Cart().Items {
		names[it.ProductID] = it.Name
	}
	assert.Equal(t, map[uuid.UUID]string{f.widget.ID: "Widget", f.gadget.ID: "Gadget"}, names)
}

func TestAccessor_AddValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	inactive := &models.Product{SKU: "OLD", Name: "Old", Price: 10, Currency: "USD", Active: false}
	require.NoError(t, f.repo.CreateProduct(ctx, inactive))
	euro := &models.Product{SKU: "EUR", Name: "Euro", Price: 10, Currency: "EUR", Active: true}
	require.NoError(t, f.repo.CreateProduct(ctx, euro))

	tests := []struct {
		name      string
		productID uuid.UUID
		quantity  int
		want      error
	}{
		{"nil product", uuid.Nil, 1, ErrValidation},
		{"negative quantity", f.widget.ID, -1, ErrValidation},
		{"unknown product", uuid.New(), 1, ErrNotFound},
		{"inactive product", inactive.ID, 1, ErrNotFound},
		{"currency mismatch", euro.ID, 1, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAccessor(f.deps, SessionOwner("v-"+tt.name))
			err := a.AddToCart(ctx, tt.productID, tt.quantity)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, a.Err(), tt.want)
		})
	}
}

func TestAccessor_UpdateQuantity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	a := NewAccessor(f.deps, SessionOwner("qty"))

	assert.ErrorIs(t, a.UpdateQuantity(ctx, f.widget.ID, 2), ErrNotFound)

	require.NoError(t, a.AddToCart(ctx, f.widget.ID, 1))
	require.NoError(t, a.UpdateQuantity(ctx, f.widget.ID, 4))
	assert.Equal(t, 4, a.View().ItemCount)

	assert.ErrorIs(t, a.UpdateQuantity(ctx, f.widget.ID, -3), ErrValidation)
	assert.Equal(t, 4, a.View().ItemCount)

	assert.ErrorIs(t, a.UpdateQuantity(ctx, f.gadget.ID, 1), ErrNotFound)

	require.NoError(t, a.UpdateQuantity(ctx, f.widget.ID, 0))
	assert.True(t, a.View().IsEmpty)
	assert.Nil(t, a.Err())
}

func TestAccessor_ClearCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	a := NewAccessor(f.deps, SessionOwner("clear"))

	require.NoError(t, a.ClearCart(ctx))
	assert.Nil(t, a.Cart())

	require.NoError(t, a.AddToCart(ctx, f.widget.ID, 2))
	require.NoError(t, a.AddToCart(ctx, f.gadget.ID, 1))
	id := a.Cart().ID

	require.NoError(t, a.ClearCart(ctx))
	assert.True(t, a.View().IsEmpty)
	assert.Equal(t, int64(0), a.View().Shipping)
	assert.Equal(t, id, a.Cart().ID)
}

func TestAccessor_MutationsPushSnapshots(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	a := NewAccessor(f.deps, SessionOwner("push"))

	require.NoError(t, a.AddToCart(ctx, f.widget.ID, 2))

	snap, err := f.remote.Pull(ctx, "session:push")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, a.Cart().Version, snap.Version)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, a.View().Total, snap.TotalAmount)
}

func TestAccessor_PushFailureDoesNotFailMutation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.remote.pushErr = errors.New("mongo down")
	a := NewAccessor(f.deps, SessionOwner("flaky"))

	require.NoError(t, a.AddToCart(context.Background(), f.widget.ID, 1))
	assert.Nil(t, a.Err())
	assert.Equal(t, 1, a.View().ItemCount)
}

func TestAccessor_SyncPullsNewerRemote(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	a := NewAccessor(f.deps, SessionOwner("pull"))

	require.NoError(t, a.AddToCart(ctx, f.widget.ID, 1))
	local := a.Cart().Version

	f.remote.snaps["session:pull"] = Snapshot{
		OwnerKey: "session:pull",
		Currency: "USD",
		Version:  local + 5,
		Items: []SnapshotItem{
			{ProductID: f.gadget.ID.String(), Name: "Gadget", Quantity: 7, UnitPrice: 399},
			{ProductID: f.widget.ID.String(), Name: "Widget", Quantity: 0, UnitPrice: 1250},
		},
	}

	require.NoError(t, a.SyncCart(ctx))
	c := a.Cart()
	assert.Equal(t, local+5, c.Version)
	require.Len(t, c.Items, 1)
	assert.Equal(t, f.gadget.ID, c.Items[0].ProductID)
	assert.Equal(t, 7, a.View().ItemCount)

	stored, err := f.repo.GetCart(ctx, "session:pull")
	require.NoError(t, err)
	assert.Equal(t, local+5, stored.Version)
}

func TestAccessor_SyncPushesWhenLocalIsNewer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	a := NewAccessor(f.deps, SessionOwner("newer"))

	require.NoError(t, a.AddToCart(ctx, f.widget.ID, 3))
	f.remote.snaps["session:newer"] = Snapshot{OwnerKey: "session:newer", Version: 0}
	before := f.remote.pushes

	require.NoError(t, a.SyncCart(ctx))
	assert.Equal(t, before+1, f.remote.pushes)
	snap, _ := f.remote.Pull(ctx, "session:newer")
	assert.Equal(t, a.Cart().Version, snap.Version)
	assert.Equal(t, 3, a.View().ItemCount)
}

func TestAccessor_SyncPullError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.remote.pullErr = errors.New("timeout")
	a := NewAccessor(f.deps, SessionOwner("err"))

	err := a.SyncCart(context.Background())
	require.Error(t, err)
	assert.Equal(t, err, a.Err())
	assert.False(t, a.Loading())
}

func TestAccessor_SyncWithoutRemoteRefreshes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.deps.Remote = nil

	writer := NewAccessor(f.deps, SessionOwner("shared"))
	require.NoError(t, writer.AddToCart(ctx, f.widget.ID, 2))

	reader := NewAccessor(f.deps, SessionOwner("shared"))
	require.NoError(t, reader.SyncCart(ctx))
	assert.Equal(t, 2, reader.View().ItemCount)
}

func TestAccessor_Checkout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	guest := NewAccessor(f.deps, SessionOwner("anon"))
	require.NoError(t, guest.AddToCart(ctx, f.widget.ID, 1))
	_, err := guest.Checkout(ctx, userID)
	assert.ErrorIs(t, err, ErrSignInRequired)

	a := NewAccessor(f.deps, UserOwner(userID))
	_, err = a.Checkout(ctx, userID)
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, a.AddToCart(ctx, f.widget.ID, 2))
	want := a.View()

	order, err := a.Checkout(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, order.UserID)
	assert.Equal(t, want.Total, order.Total)
	assert.Equal(t, want.Tax, order.Tax)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, a.View().IsEmpty)

	orders, err := f.repo.ListOrders(ctx, userID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	assert.Contains(t, f.events.Types(), "order_created")
}

func TestFlatRate(t *testing.T) {
	t.Parallel()

	p := FlatRate{TaxRateBps: 825, Shipping: 700, FreeShippingFrom: 5000}

	tax, ship := p.Price(0, 0)
	assert.Equal(t, int64(0), tax)
	assert.Equal(t, int64(0), ship)

	tax, ship = p.Price(1000, 1)
	assert.Equal(t, int64(83), tax)
	assert.Equal(t, int64(700), ship)

	_, ship = p.Price(5000, 2)
	assert.Equal(t, int64(0), ship)

	_, ship = FlatRate{Shipping: 700}.Price(1_000_000, 1)
	assert.Equal(t, int64(700), ship)
}

func TestSnapshot_CartItemsRejectsBadIDs(t *testing.T) {
	t.Parallel()

	s := Snapshot{Items: []SnapshotItem{{ProductID: "not-a-uuid", Quantity: 1}}}
	_, err := s.CartItems()
	assert.Error(t, err)
}
