// Package handlers serves configured stores over the SPARQL 1.1 Graph Store
// HTTP Protocol, with graph listing and a SPARQL endpoint for the stores that
// support queries.
package handlers

import (
	"context"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/rdfkit/graphstore/configuration"
	"github.com/rdfkit/graphstore/internal/dcontext"
	"github.com/rdfkit/graphstore/internal/stores"
	"github.com/rdfkit/graphstore/internal/uuid"
	"github.com/rdfkit/graphstore/metrics"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// App is a global graph store application object. Shared resources can be
// placed on this object that will be accessible from all requests. Any
// writable fields should be protected.
type App struct {
	context.Context

	Config configuration.Configuration

	// InstanceID is a unique id assigned to the application on each creation.
	// Provides information in the logs and context to identify restarts.
	InstanceID string

	router *mux.Router // main application router, configured with dispatchers

	// stores maps store names to their providers. It is not modified after
	// the app is built.
	stores map[string]storagedriver.StorageProvider
}

// NewApp takes a configuration and returns a configured app, ready to serve
// requests. Every configured store is created, and verified when its
// parameters ask for it, before NewApp returns.
func NewApp(ctx context.Context, config *configuration.Configuration) (*App, error) {
	opened, err := stores.Open(ctx, config)
	if err != nil {
		return nil, err
	}
	return NewAppWithStores(ctx, config, opened), nil
}

// NewAppWithStores returns an app serving the given providers. config may
// be nil.
func NewAppWithStores(ctx context.Context, config *configuration.Configuration, providers map[string]storagedriver.StorageProvider) *App {
	app := &App{
		Context:    ctx,
		InstanceID: uuid.NewString(),
		stores:     providers,
	}
	if config != nil {
		app.Config = *config
	}
	if app.stores == nil {
		app.stores = map[string]storagedriver.StorageProvider{}
	}
	app.router = RouterWithPrefix(app.Config.HTTP.Prefix)

	app.Context = dcontext.WithLogger(app.Context, dcontext.GetLogger(app, "app.id"))

	// Register the handler dispatchers.
	app.register(RouteNameBase, func(ctx *Context, r *http.Request) http.Handler {
		return http.HandlerFunc(apiBase)
	})
	app.register(RouteNameStores, storesDispatcher)
	app.register(RouteNameGraphStore, graphStoreDispatcher)
	app.register(RouteNameGraphs, graphsDispatcher)
	app.register(RouteNameSPARQL, sparqlDispatcher)

	return app
}

// Value intercepts calls context.Context.Value, returning the current app id,
// if requested.
func (app *App) Value(key any) any {
	switch key {
	case "app.id":
		return app.InstanceID
	}

	return app.Context.Value(key)
}

// StoreNames returns the names of the served stores in lexical order.
func (app *App) StoreNames() []string {
	names := make([]string, 0, len(app.stores))
	for name := range app.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// register a handler with the application, by route name. The handler will be
// passed through the application filters and context will be constructed at
// request time.
func (app *App) register(routeName string, dispatch dispatchFunc) {
	app.router.GetRoute(routeName).Handler(app.dispatcher(dispatch))
}

func (app *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close() // ensure that request body is always closed.

	for header, values := range app.Config.HTTP.Headers {
		for _, value := range values {
			w.Header().Add(header, value)
		}
	}
	app.router.ServeHTTP(w, r)
}

// dispatchFunc takes a context and request and returns a constructed handler
// for the route. The dispatcher will use this to dynamically create request
// specific handlers for each endpoint without creating a new router for each
// request.
type dispatchFunc func(ctx *Context, r *http.Request) http.Handler

// singleStatusResponseWriter only allows the first status to be written to be
// the valid request status.
type singleStatusResponseWriter struct {
	http.ResponseWriter
	status int
}

func (ssrw *singleStatusResponseWriter) WriteHeader(status int) {
	if ssrw.status != 0 {
		return
	}
	ssrw.status = status
	ssrw.ResponseWriter.WriteHeader(status)
}

func (ssrw *singleStatusResponseWriter) Write(p []byte) (int, error) {
	if ssrw.status == 0 {
		ssrw.status = http.StatusOK
	}
	return ssrw.ResponseWriter.Write(p)
}

func (ssrw *singleStatusResponseWriter) Flush() {
	if flusher, ok := ssrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// dispatcher returns a handler that constructs a request specific context and
// handler, using the dispatch factory function.
func (app *App) dispatcher(dispatch dispatchFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		context := app.context(r)
		ssrw := &singleStatusResponseWriter{ResponseWriter: w}

		defer func() {
			dcontext.GetLoggerWithField(context, "http.response.status", ssrw.status).Debug("response completed")
		}()

		if context.StoreName != "" {
			store, ok := app.stores[context.StoreName]
			if !ok {
				context.Failure = storagedriver.StoreNotFoundError{DriverName: "graphstore", StoreID: context.StoreName}
				app.reportFailure(context, ssrw)
				return
			}
			context.Store = store
			metrics.ServerRequests.WithValues(context.StoreName, r.Method).Inc(1)
		}

		handler := dispatch(context, r)
		handler.ServeHTTP(ssrw, r)

		// Automated error response handling here. Handlers may return their
		// own errors if they need different behavior.
		app.reportFailure(context, ssrw)
	})
}

func (app *App) reportFailure(context *Context, ssrw *singleStatusResponseWriter) {
	if context.Failure == nil {
		return
	}
	status, code := classify(context.Failure)
	logger := dcontext.GetLoggerWithField(context, "err.code", code).WithError(context.Failure)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed")
	} else {
		logger.Info("request rejected")
	}
	if ssrw.status != 0 {
		return
	}
	if err := serveError(ssrw, context.Failure); err != nil {
		dcontext.GetLogger(context).Errorf("error serving error response: %v", err)
	}
}

// context constructs the context object for the application. This only be
// called once per request.
func (app *App) context(r *http.Request) *Context {
	ctx := dcontext.WithLogger(r.Context(), dcontext.GetLogger(app, "app.id"))
	ctx = dcontext.WithRequest(ctx, r)

	vars := mux.Vars(r)
	if vars == nil {
		vars = map[string]string{}
	}
	context := &Context{
		App:       app,
		Context:   ctx,
		StoreName: vars["store"],
		vars:      vars,
	}
	context.Context = dcontext.WithLogger(context.Context, dcontext.GetLogger(context, "vars.store"))

	return context
}

// apiBase implements a simple yes-man for doing overall checks against the
// api.
func apiBase(w http.ResponseWriter, r *http.Request) {
	const emptyJSON = "{}"
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", "2")

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyJSON))
}
