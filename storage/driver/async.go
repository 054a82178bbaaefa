package driver

import (
	"context"
	"sync"

	"github.com/rdfkit/graphstore/rdf"
	"github.com/rdfkit/graphstore/sparql"
)

// Operation tags the action an AsyncResult reports on.
type Operation int

const (
	OperationUnknown Operation = iota
	OperationLoadGraph
	OperationLoadWithHandler
	OperationSaveGraph
	OperationUpdateGraph
	OperationDeleteGraph
	OperationListGraphs
	OperationQuery
	OperationQueryWithHandler
	OperationUpdate
	OperationListStores
	OperationCreateStore
	OperationDeleteStore
	OperationGetStore
	OperationBegin
	OperationCommit
	OperationRollback
)

var operationNames = [...]string{
	OperationUnknown:          "Unknown",
	OperationLoadGraph:        "LoadGraph",
	OperationLoadWithHandler:  "LoadWithHandler",
	OperationSaveGraph:        "SaveGraph",
	OperationUpdateGraph:      "UpdateGraph",
	OperationDeleteGraph:      "DeleteGraph",
	OperationListGraphs:       "ListGraphs",
	OperationQuery:            "Query",
	OperationQueryWithHandler: "QueryWithHandler",
	OperationUpdate:           "Update",
	OperationListStores:       "ListStores",
	OperationCreateStore:      "CreateStore",
	OperationDeleteStore:      "DeleteStore",
	OperationGetStore:         "GetStore",
	OperationBegin:            "Begin",
	OperationCommit:           "Commit",
	OperationRollback:         "Rollback",
}

func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return operationNames[OperationUnknown]
	}
	return operationNames[o]
}

// AsyncResult is the single value delivered to the callback of an
// asynchronous call. When Err is set only Operation and the echoed inputs
// (GraphURI, Query, StoreID, handlers) are meaningful.
type AsyncResult struct {
	Operation Operation

	Graph          *rdf.Graph
	Handler        rdf.Handler
	ResultsHandler sparql.ResultsHandler
	GraphURI       string
	GraphURIs      []string

	Query       string
	QueryResult *QueryResult

	StoreID  string
	StoreIDs []string
	Created  bool
	Store    AsyncStorageProvider

	Err error
}

// Callback receives the result of an asynchronous call. It is invoked
// exactly once per call, from an unspecified goroutine.
type Callback func(res *AsyncResult)

// AsyncStorageProvider is the callback based twin of StorageProvider.
type AsyncStorageProvider interface {
	Name() string
	Capabilities() Capabilities

	LoadGraphAsync(ctx context.Context, g *rdf.Graph, graphURI string, cb Callback)
	LoadGraphHandlerAsync(ctx context.Context, h rdf.Handler, graphURI string, cb Callback)
	SaveGraphAsync(ctx context.Context, g *rdf.Graph, cb Callback)
	UpdateGraphAsync(ctx context.Context, graphURI string, additions, removals []rdf.Triple, cb Callback)
	DeleteGraphAsync(ctx context.Context, graphURI string, cb Callback)
	ListGraphsAsync(ctx context.Context, cb Callback)
}

// AsyncQueryableStorage is the callback based twin of QueryableStorage.
type AsyncQueryableStorage interface {
	AsyncStorageProvider

	QueryAsync(ctx context.Context, query string, cb Callback)
	QueryHandlersAsync(ctx context.Context, rdfHandler rdf.Handler, resultsHandler sparql.ResultsHandler, query string, cb Callback)
}

// AsyncUpdateableStorage is the callback based twin of UpdateableStorage.
type AsyncUpdateableStorage interface {
	AsyncQueryableStorage

	UpdateAsync(ctx context.Context, update string, cb Callback)
}

// AsyncTransactionalStorage is the callback based twin of
// TransactionalStorage.
type AsyncTransactionalStorage interface {
	AsyncStorageProvider

	BeginAsync(ctx context.Context, cb Callback)
	CommitAsync(ctx context.Context, cb Callback)
	RollbackAsync(ctx context.Context, cb Callback)
}

// AsyncStorageServer is the callback based twin of StorageServer.
type AsyncStorageServer interface {
	ListStoresAsync(ctx context.Context, cb Callback)
	CreateStoreAsync(ctx context.Context, id string, cb Callback)
	DeleteStoreAsync(ctx context.Context, id string, cb Callback)
	GetStoreAsync(ctx context.Context, id string, cb Callback)
}

// Future is a single-shot holder for the result of an asynchronous call.
type Future struct {
	once sync.Once
	done chan struct{}
	res  *AsyncResult
}

// NewFuture returns a future and the callback that completes it. Calls to
// the callback after the first are ignored.
func NewFuture() (*Future, Callback) {
	f := &Future{done: make(chan struct{})}
	return f, func(res *AsyncResult) {
		f.once.Do(func() {
			f.res = res
			close(f.done)
		})
	}
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is available or ctx is done. Giving up on a
// wait does not stop the call; its result is discarded.
func (f *Future) Wait(ctx context.Context) (*AsyncResult, error) {
	select {
	case <-f.done:
		if f.res == nil {
			return nil, nil
		}
		return f.res, f.res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait starts an asynchronous call and blocks for its result.
func Wait(ctx context.Context, call func(Callback)) (*AsyncResult, error) {
	f, cb := NewFuture()
	call(cb)
	return f.Wait(ctx)
}
