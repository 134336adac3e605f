package session

import "context"

type storeContextKey struct{}

func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, s)
}

// FromContext returns the request's console session store, or nil outside
// the session middleware.
func FromContext(ctx context.Context) *Store {
	s, _ := ctx.Value(storeContextKey{}).(*Store)
	return s
}
