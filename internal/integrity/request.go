package integrity

import "context"

type requestKey struct{}

// WithRequest marks ctx as serving a request. The handle is opaque to the
// gate; only its presence matters.
func WithRequest(ctx context.Context, handle any) context.Context {
	return context.WithValue(ctx, requestKey{}, handle)
}

// RequestFrom returns the request handle stored in ctx, if any.
func RequestFrom(ctx context.Context) (any, bool) {
	handle := ctx.Value(requestKey{})
	return handle, handle != nil
}
