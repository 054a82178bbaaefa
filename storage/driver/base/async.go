package base

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rdfkit/graphstore/internal/dcontext"
	"github.com/rdfkit/graphstore/rdf"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// Executor schedules a unit of work. Implementations must eventually run
// every function they accept.
type Executor interface {
	Go(fn func())
}

// ExecutorFunc adapts a function to an Executor.
type ExecutorFunc func(fn func())

// Go calls f(fn).
func (f ExecutorFunc) Go(fn func()) {
	f(fn)
}

// GoExecutor runs each unit of work on its own goroutine.
var GoExecutor Executor = ExecutorFunc(func(fn func()) { go fn() })

type limitedExecutor struct {
	sem chan struct{}
}

// NewLimitedExecutor returns an executor running at most n units of work at
// a time. Go never blocks; excess work waits on its own goroutine.
func NewLimitedExecutor(n int) Executor {
	if n < 1 {
		n = 1
	}
	return &limitedExecutor{sem: make(chan struct{}, n)}
}

func (e *limitedExecutor) Go(fn func()) {
	go func() {
		e.sem <- struct{}{}
		defer func() { <-e.sem }()
		fn()
	}()
}

// dispatch runs call on the executor and hands res to cb exactly once, with
// the error of call (or of a panic inside it) recorded in res.Err. The call
// runs on a context detached from ctx's cancellation.
func dispatch(ctx context.Context, executor Executor, driverName string, res *storagedriver.AsyncResult, cb storagedriver.Callback, call func(ctx context.Context) error) {
	if executor == nil {
		executor = GoExecutor
	}
	ctx = dcontext.DetachedContext(ctx)
	executor.Go(func() {
		res.Err = protect(ctx, driverName, res.Operation, call)
		if cb != nil {
			cb(res)
		}
	})
}

func protect(ctx context.Context, driverName string, op storagedriver.Operation, call func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			dcontext.GetLogger(ctx).Errorf("%s: panic during %s: %v\n%s", driverName, op, r, debug.Stack())
			err = fmt.Errorf("%s: panic during %s: %v", driverName, op, r)
		}
	}()
	return call(ctx)
}

func (base *Base) dispatch(ctx context.Context, res *storagedriver.AsyncResult, cb storagedriver.Callback, call func(ctx context.Context) error) {
	dispatch(ctx, base.Executor, base.Name(), res, cb, call)
}

// LoadGraphAsync loads a graph on the executor. The result carries g.
func (base *Base) LoadGraphAsync(ctx context.Context, g *rdf.Graph, graphURI string, cb storagedriver.Callback) {
	res := &storagedriver.AsyncResult{Operation: storagedriver.OperationLoadGraph, Graph: g, GraphURI: graphURI}
	base.dispatch(ctx, res, cb, func(ctx context.Context) error {
		return base.LoadGraph(ctx, g, graphURI)
	})
}

// LoadGraphHandlerAsync streams a graph into h on the executor. The result
// carries h.
func (base *Base) LoadGraphHandlerAsync(ctx context.Context, h rdf.Handler, graphURI string, cb storagedriver.Callback) {
	res := &storagedriver.AsyncResult{Operation: storagedriver.OperationLoadWithHandler, Handler: h, GraphURI: graphURI}
	base.dispatch(ctx, res, cb, func(ctx context.Context) error {
		return base.LoadGraphHandler(ctx, h, graphURI)
	})
}

// SaveGraphAsync saves g on the executor. The result carries g.
func (base *Base) SaveGraphAsync(ctx context.Context, g *rdf.Graph, cb storagedriver.Callback) {
	res := &storagedriver.AsyncResult{Operation: storagedriver.OperationSaveGraph, Graph: g, GraphURI: g.Name()}
	base.dispatch(ctx, res, cb, func(ctx context.Context) error {
		return base.SaveGraph(ctx, g)
	})
}

// UpdateGraphAsync updates a graph on the executor. The result carries the
// graph URI.
func (base *Base) UpdateGraphAsync(ctx context.Context, graphURI string, additions, removals []rdf.Triple, cb storagedriver.Callback) {
	res := &storagedriver.AsyncResult{Operation: storagedriver.OperationUpdateGraph, GraphURI: graphURI}
	base.dispatch(ctx, res, cb, func(ctx context.Context) error {
		return base.UpdateGraph(ctx, graphURI, additions, removals)
	})
}

// DeleteGraphAsync deletes a graph on the executor. The result carries the
// graph URI.
func (base *Base) DeleteGraphAsync(ctx context.Context, graphURI string, cb storagedriver.Callback) {
	res := &storagedriver.AsyncResult{Operation: storagedriver.OperationDeleteGraph, GraphURI: graphURI}
	base.dispatch(ctx, res, cb, func(ctx context.Context) error {
		return base.DeleteGraph(ctx, graphURI)
	})
}

// ListGraphsAsync lists graphs on the executor. The result carries the
// graph URIs.
func (base *Base) ListGraphsAsync(ctx context.Context, cb storagedriver.Callback) {
	res := &storagedriver.AsyncResult{Operation: storagedriver.OperationListGraphs}
	base.dispatch(ctx, res, cb, func(ctx context.Context) error {
		graphs, err := base.ListGraphs(ctx)
		res.GraphURIs = graphs
		return err
	})
}
