package dcontext

import "context"

// DetachedContext returns a context that won't be canceled when the parent
// context is canceled. Work scheduled on behalf of an asynchronous storage
// call runs to completion on such a context.
//
// The detached context preserves all values from the parent context (logger,
// request ID, etc.) but removes cancellation/deadline behavior.
func DetachedContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
