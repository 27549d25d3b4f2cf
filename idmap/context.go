package idmap

import "context"

type selfKey struct{}

// WithSelf returns a context that identifies the calling thread of control
// as the object id. Task goroutines and timebase service loops carry one.
func WithSelf(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, selfKey{}, id)
}

// SelfFrom returns the identity stored in ctx, or Undefined.
func SelfFrom(ctx context.Context) ID {
	if ctx == nil {
		return Undefined
	}
	id, _ := ctx.Value(selfKey{}).(ID)
	return id
}
