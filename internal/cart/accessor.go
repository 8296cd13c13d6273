package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
)

var (
	ErrValidation     = errors.New("validation")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrSignInRequired = errors.New("sign-in required")
)

type Store interface {
	GetCart(ctx context.Context, ownerKey string) (*models.Cart, error)
	GetOrCreateCart(ctx context.Context, ownerKey string, userID *uuid.UUID, currency string) (*models.Cart, error)
	AddItem(ctx context.Context, cartID uuid.UUID, item models.CartItem) (*models.Cart, error)
	SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, cartID, productID uuid.UUID) (*models.Cart, error)
	ClearCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem, version int64) (*models.Cart, error)
	PlaceOrder(ctx context.Context, cartID uuid.UUID, version int64, order *models.Order) (*models.Cart, error)
}

type Catalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Remote holds the per-owner snapshot used by SyncCart. Pull returns
// (nil, nil) when the owner has no snapshot yet.
type Remote interface {
	Pull(ctx context.Context, ownerKey string) (*Snapshot, error)
	Push(ctx context.Context, snap Snapshot) error
}

// Deps is shared by every accessor. Remote, Events and Metrics are optional.
type Deps struct {
	Store    Store
	Catalog  Catalog
	Remote   Remote
	Pricer   Pricer
	Events   events.Publisher
	Metrics  *metrics.Metrics
	Currency string
}

// Accessor is the cart of one owner for the duration of a request. Operations
// are serialized; Cart, Loading, Err and View may be read concurrently.
type Accessor struct {
	deps  Deps
	owner Owner

	opMu sync.Mutex

	mu      sync.RWMutex
	cart    *models.Cart
	loaded  bool
	loading bool
	err     error
}

func NewAccessor(d Deps, owner Owner) *Accessor {
	if d.Currency == "" {
		d.Currency = models.DefaultCurrency
	}
	return &Accessor{deps: d, owner: owner}
}

func (a *Accessor) Owner() Owner { return a.owner }

// Cart returns the last loaded cart, nil when the owner has none yet.
func (a *Accessor) Cart() *models.Cart {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cart
}

func (a *Accessor) Loading() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loading
}

// Err is the error of the most recent operation, nil after a success.
func (a *Accessor) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

func (a *Accessor) View() View {
	return Compute(a.Cart(), a.deps.Pricer, a.deps.Currency)
}

// run executes one operation. fn returns the cart state after the operation;
// a nil cart with a nil error leaves the current state untouched.
func (a *Accessor) run(ctx context.Context, op string, fn func(ctx context.Context) (*models.Cart, error)) error {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	a.mu.Lock()
	a.loading = true
	a.mu.Unlock()

	c, err := fn(ctx)
	err = translate(err)
	a.deps.Metrics.CartOp(op, err)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.loading = false
	a.err = err
	if err == nil && c != nil {
		a.cart = c
		a.loaded = true
	}
	if err != nil {
		logging.FromContext(ctx).Debug("cart_op_failed", "op", op, "owner", a.owner.Key, "error", err)
	}
	return err
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict), errors.Is(err, ErrSignInRequired):
		return err
	case errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repo.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}

// current returns the owner's cart without creating one. The caller holds opMu.
func (a *Accessor) current(ctx context.Context) (*models.Cart, error) {
	a.mu.RLock()
	c, loaded := a.cart, a.loaded
	a.mu.RUnlock()
	if loaded && c != nil {
		return c, nil
	}

	c, err := a.deps.Store.GetCart(ctx, a.owner.Key)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return c, err
}

func (a *Accessor) ensure(ctx context.Context) (*models.Cart, error) {
	c, err := a.current(ctx)
	if err != nil || c != nil {
		return c, err
	}
	return a.deps.Store.GetOrCreateCart(ctx, a.owner.Key, a.owner.UserID, a.deps.Currency)
}

// RefreshCart reloads the cart from the database. An owner without a cart
// ends up with a nil Cart and an empty View.
func (a *Accessor) RefreshCart(ctx context.Context) error {
	return a.run(ctx, "refresh", func(ctx context.Context) (*models.Cart, error) {
		c, err := a.deps.Store.GetCart(ctx, a.owner.Key)
		if errors.Is(err, repo.ErrNotFound) {
			a.mu.Lock()
			a.cart, a.loaded = nil, true
			a.mu.Unlock()
			return nil, nil
		}
		return c, err
	})
}

// AddToCart adds quantity units of an active product, creating the cart on
// first use. Zero means one. The line keeps the name and price seen when it
// was first added.
func (a *Accessor) AddToCart(ctx context.Context, productID uuid.UUID, quantity int) error {
	return a.run(ctx, "add", func(ctx context.Context) (*models.Cart, error) {
		if productID == uuid.Nil {
			return nil, fmt.Errorf("%w: productId is required", ErrValidation)
		}
		if quantity < 0 {
			return nil, fmt.Errorf("%w: quantity must not be negative", ErrValidation)
		}
		if quantity == 0 {
			quantity = 1
		}

		p, err := a.deps.Catalog.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, fmt.Errorf("%w: product %s is unavailable", ErrNotFound, productID)
		}

		c, err := a.ensure(ctx)
		if err != nil {
			return nil, err
		}
		if p.Currency != "" && p.Currency != c.Currency {
			return nil, fmt.Errorf("%w: product currency %s differs from cart currency %s", ErrValidation, p.Currency, c.Currency)
		}

		c, err = a.deps.Store.AddItem(ctx, c.ID, models.CartItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  quantity,
			UnitPrice: p.Price,
		})
		if err != nil {
			return nil, err
		}
		a.afterMutation(ctx, c, "cart_item_added", map[string]any{"productId": p.ID, "quantity": quantity})
		return c, nil
	})
}

func (a *Accessor) RemoveFromCart(ctx context.Context, productID uuid.UUID) error {
	return a.run(ctx, "remove", func(ctx context.Context) (*models.Cart, error) {
		return a.remove(ctx, productID)
	})
}

func (a *Accessor) remove(ctx context.Context, productID uuid.UUID) (*models.Cart, error) {
	c, err := a.current(ctx)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: product %s is not in the cart", ErrNotFound, productID)
	}
	c, err = a.deps.Store.RemoveItem(ctx, c.ID, productID)
	if err != nil {
		return nil, err
	}
	a.afterMutation(ctx, c, "cart_item_removed", map[string]any{"productId": productID})
	return c, nil
}

// UpdateQuantity sets the quantity of an existing line. Zero removes it.
func (a *Accessor) UpdateQuantity(ctx context.Context, productID uuid.UUID, quantity int) error {
	return a.run(ctx, "update_quantity", func(ctx context.Context) (*models.Cart, error) {
		if quantity < 0 {
			return nil, fmt.Errorf("%w: quantity must not be negative", ErrValidation)
		}
		if quantity == 0 {
			return a.remove(ctx, productID)
		}

		c, err := a.current(ctx)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, fmt.Errorf("%w: product %s is not in the cart", ErrNotFound, productID)
		}
		c, err = a.deps.Store.SetItemQuantity(ctx, c.ID, productID, quantity)
		if err != nil {
			return nil, err
		}
		a.afterMutation(ctx, c, "cart_item_updated", map[string]any{"productId": productID, "quantity": quantity})
		return c, nil
	})
}

// ClearCart removes every line but keeps the cart itself.
func (a *Accessor) ClearCart(ctx context.Context) error {
	return a.run(ctx, "clear", func(ctx context.Context) (*models.Cart, error) {
		c, err := a.current(ctx)
		if err != nil || c == nil {
			return nil, err
		}
		c, err = a.deps.Store.ClearCart(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		a.afterMutation(ctx, c, "cart_cleared", nil)
		return c, nil
	})
}

// SyncCart reconciles with the remote snapshot: a newer remote replaces the
// local lines, otherwise the local cart is pushed. Without a remote it is a
// refresh.
func (a *Accessor) SyncCart(ctx context.Context) error {
	if a.deps.Remote == nil {
		return a.RefreshCart(ctx)
	}

	return a.run(ctx, "sync", func(ctx context.Context) (*models.Cart, error) {
		c, err := a.ensure(ctx)
		if err != nil {
			return nil, err
		}

		remote, err := a.deps.Remote.Pull(ctx, a.owner.Key)
		if err != nil {
			a.deps.Metrics.CartSync("error")
			return nil, fmt.Errorf("pull cart snapshot: %w", err)
		}

		switch {
		case remote != nil && remote.Version > c.Version:
			items, err := remote.CartItems()
			if err != nil {
				a.deps.Metrics.CartSync("error")
				return nil, err
			}
			c, err = a.deps.Store.ReplaceItems(ctx, c.ID, items, remote.Version)
			if err != nil {
				return nil, err
			}
			a.deps.Metrics.CartSync("pulled")
			a.emit(ctx, c, "cart_synced", map[string]any{"direction": "pulled"})
		case remote == nil || remote.Version < c.Version:
			if err := a.deps.Remote.Push(ctx, SnapshotOf(a.owner.Key, c, a.total(c))); err != nil {
				a.deps.Metrics.CartSync("error")
				return nil, fmt.Errorf("push cart snapshot: %w", err)
			}
			a.deps.Metrics.CartSync("pushed")
		default:
			a.deps.Metrics.CartSync("in_sync")
		}
		return c, nil
	})
}

// Checkout turns the cart into an order for userID and empties the cart.
func (a *Accessor) Checkout(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := a.run(ctx, "checkout", func(ctx context.Context) (*models.Cart, error) {
		if a.owner.UserID == nil || *a.owner.UserID != userID {
			return nil, ErrSignInRequired
		}

		// Checkout prices what is stored, not what this accessor last saw.
		c, err := a.deps.Store.GetCart(ctx, a.owner.Key)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: cart is empty", ErrValidation)
		}
		if err != nil {
			return nil, err
		}
		if len(c.Items) == 0 {
			return nil, fmt.Errorf("%w: cart is empty", ErrValidation)
		}

		v := Compute(c, a.deps.Pricer, a.deps.Currency)
		o := &models.Order{
			UserID:   userID,
			Status:   models.OrderStatusNew,
			Currency: v.Currency,
			Subtotal: v.Subtotal,
			Tax:      v.Tax,
			Shipping: v.Shipping,
			Total:    v.Total,
			Items:    make([]models.OrderItem, 0, len(c.Items)),
		}
		for _, it := range c.Items {
			o.Items = append(o.Items, models.OrderItem{
				ProductID: it.ProductID,
				Name:      it.Name,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
			})
		}

		c, err = a.deps.Store.PlaceOrder(ctx, c.ID, c.Version, o)
		if err != nil {
			return nil, err
		}
		order = o

		events.Emit(ctx, a.deps.Events, events.TopicOrderEvents, userID.String(), events.New("order_created", map[string]any{
			"orderId":  o.ID,
			"userId":   userID,
			"total":    o.Total,
			"currency": o.Currency,
			"items":    len(o.Items),
		}))
		a.afterMutation(ctx, c, "cart_checked_out", map[string]any{"orderId": o.ID})
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (a *Accessor) total(c *models.Cart) int64 {
	return Compute(c, a.deps.Pricer, a.deps.Currency).Total
}

// afterMutation mirrors the new state to the remote store and publishes the
// cart event. Neither can fail the mutation.
func (a *Accessor) afterMutation(ctx context.Context, c *models.Cart, eventType string, data map[string]any) {
	if a.deps.Remote != nil {
		if err := a.deps.Remote.Push(ctx, SnapshotOf(a.owner.Key, c, a.total(c))); err != nil {
			a.deps.Metrics.CartSync("push_failed")
			logging.FromContext(ctx).Warn("cart_snapshot_push_failed", "owner", a.owner.Key, "error", err)
		}
	}
	a.emit(ctx, c, eventType, data)
}

func (a *Accessor) emit(ctx context.Context, c *models.Cart, eventType string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["cartId"] = c.ID
	data["ownerKey"] = a.owner.Key
	data["version"] = c.Version
	data["itemCount"] = Compute(c, nil, a.deps.Currency).ItemCount
	events.Emit(ctx, a.deps.Events, events.TopicCartEvents, a.owner.Key, events.New(eventType, data))
}
