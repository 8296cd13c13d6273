package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNoProvider is returned by FromContext when no accessor was bound to the
// request. It indicates a wiring mistake, not a user error.
var ErrNoProvider = errors.New("cart: accessor used outside a cart provider scope")

type ctxKey struct{}

func WithAccessor(ctx context.Context, a *Accessor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func FromContext(ctx context.Context) (*Accessor, error) {
	a, ok := ctx.Value(ctxKey{}).(*Accessor)
	if !ok || a == nil {
		return nil, ErrNoProvider
	}
	return a, nil
}

// Owner identifies whose cart an accessor works on.
type Owner struct {
	Key    string
	UserID *uuid.UUID
}

func UserOwner(id uuid.UUID) Owner {
	return Owner{Key: "user:" + id.String(), UserID: &id}
}

func SessionOwner(sessionID string) Owner {
	return Owner{Key: "session:" + sessionID}
}
