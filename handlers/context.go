package handlers

import (
	"context"
	"strings"

	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// Context should contain the request specific context for use in across
// handlers. Resources that don't need to be shared across handlers should not
// be on this object.
type Context struct {
	// App points to the application structure that created this context.
	*App
	context.Context

	// StoreName is the store addressed by the request, empty for routes
	// that are not scoped to a store.
	StoreName string

	// Store is the provider serving StoreName.
	Store storagedriver.StorageProvider

	// Failure is reported to the client once the handler returns. A handler
	// setting it must not have started the response.
	Failure error

	// vars contains the extracted gorilla/mux variables that can be used for
	// assignment.
	vars map[string]string
}

// Value returns the request value for key. Route variables are available
// as "vars.<name>".
func (ctx *Context) Value(key any) any {
	if ks, ok := key.(string); ok {
		if name, ok := strings.CutPrefix(ks, "vars."); ok {
			if v, ok := ctx.vars[name]; ok {
				return v
			}
		}
	}
	return ctx.Context.Value(key)
}
