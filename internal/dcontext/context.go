package dcontext

import (
	"context"

	"github.com/rdfkit/graphstore/internal/uuid"
)

type instanceIDKey struct{}

func (instanceIDKey) String() string { return "instance.id" }

type versionKey struct{}

func (versionKey) String() string { return "version" }

type requestIDKey struct{}

func (requestIDKey) String() string { return "request.id" }

var instanceID = uuid.NewString()

// Background returns a non-nil, empty Context carrying the process instance
// id.
func Background() context.Context {
	return context.WithValue(context.Background(), instanceIDKey{}, instanceID)
}

// WithVersion stores the application version in the context and in its
// logger.
func WithVersion(ctx context.Context, version string) context.Context {
	ctx = context.WithValue(ctx, versionKey{}, version)
	return WithLogger(ctx, GetLogger(ctx, versionKey{}))
}

// GetVersion returns the application version from the context, or "".
func GetVersion(ctx context.Context) string {
	return GetStringValue(ctx, versionKey{})
}

// WithRequestID tags ctx with a fresh request id.
func WithRequestID(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestIDKey{}, uuid.NewString())
}

// GetRequestID returns the request id of ctx, or "".
func GetRequestID(ctx context.Context) string {
	return GetStringValue(ctx, requestIDKey{})
}

// GetStringValue returns a string value from the context. The empty string
// will be returned if not found.
func GetStringValue(ctx context.Context, key any) (value string) {
	if valuev, ok := ctx.Value(key).(string); ok {
		value = valuev
	}
	return value
}
