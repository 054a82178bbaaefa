package base

import (
	"context"
	"strings"

	"github.com/rdfkit/graphstore/rdf"
	"github.com/rdfkit/graphstore/sparql"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// QueryableBase extends Base with the query operations of a
// storagedriver.QueryableStorage.
type QueryableBase struct {
	Base
	Queryable storagedriver.QueryableStorage
}

// NewQueryable returns a QueryableBase wrapping q.
func NewQueryable(q storagedriver.QueryableStorage) QueryableBase {
	return QueryableBase{Base: Base{StorageProvider: q}, Queryable: q}
}

func (base *QueryableBase) checkQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return storagedriver.QueryError{DriverName: base.Name(), Message: "empty query"}
	}
	return nil
}

// Query wraps Query of underlying storage driver.
func (base *QueryableBase) Query(ctx context.Context, query string) (result *storagedriver.QueryResult, err error) {
	if err := base.checkQuery(query); err != nil {
		return nil, err
	}

	defer durationDebugLog(ctx, base.Name(), storagedriver.OperationQuery, &err)()

	return base.Queryable.Query(ctx, query)
}

// QueryHandlers wraps QueryHandlers of underlying storage driver.
func (base *QueryableBase) QueryHandlers(ctx context.Context, rdfHandler rdf.Handler, resultsHandler sparql.ResultsHandler, query string) (err error) {
	if err := base.checkQuery(query); err != nil {
		return err
	}

	defer durationDebugLog(ctx, base.Name(), storagedriver.OperationQueryWithHandler, &err)()

	return base.Queryable.QueryHandlers(ctx, rdfHandler, resultsHandler, query)
}

// QueryAsync runs a query on the executor. The result echoes the query.
func (base *QueryableBase) QueryAsync(ctx context.Context, query string, cb storagedriver.Callback) {
	res := &storagedriver.AsyncResult{Operation: storagedriver.OperationQuery, Query: query}
	base.dispatch(ctx, res, cb, func(ctx context.Context) error {
		result, err := base.Query(ctx, query)
		res.QueryResult = result
		return err
	})
}

// QueryHandlersAsync runs a query into handlers on the executor. The result
// echoes the query and both handlers.
func (base *QueryableBase) QueryHandlersAsync(ctx context.Context, rdfHandler rdf.Handler, resultsHandler sparql.ResultsHandler, query string, cb storagedriver.Callback) {
	res := &storagedriver.AsyncResult{
		Operation:      storagedriver.OperationQueryWithHandler,
		Query:          query,
		Handler:        rdfHandler,
		ResultsHandler: resultsHandler,
	}
	base.dispatch(ctx, res, cb, func(ctx context.Context) error {
		return base.QueryHandlers(ctx, rdfHandler, resultsHandler, query)
	})
}

// UpdateableBase extends QueryableBase with the update operation of a
// storagedriver.UpdateableStorage.
type UpdateableBase struct {
	QueryableBase
	Updateable storagedriver.UpdateableStorage
}

// NewUpdateable returns an UpdateableBase wrapping u.
func NewUpdateable(u storagedriver.UpdateableStorage) UpdateableBase {
	return UpdateableBase{QueryableBase: NewQueryable(u), Updateable: u}
}

// Update wraps Update of underlying storage driver.
func (base *UpdateableBase) Update(ctx context.Context, update string) (err error) {
	if base.Capabilities().ReadOnly {
		return base.unsupported(storagedriver.OperationUpdate, "the store is read-only")
	}
	if strings.TrimSpace(update) == "" {
		return storagedriver.QueryError{DriverName: base.Name(), Message: "empty update"}
	}

	defer durationDebugLog(ctx, base.Name(), storagedriver.OperationUpdate, &err)()

	return base.Updateable.Update(ctx, update)
}

// UpdateAsync runs an update on the executor. The result echoes the update
// in Query.
func (base *UpdateableBase) UpdateAsync(ctx context.Context, update string, cb storagedriver.Callback) {
	res := &storagedriver.AsyncResult{Operation: storagedriver.OperationUpdate, Query: update}
	base.dispatch(ctx, res, cb, func(ctx context.Context) error {
		return base.Update(ctx, update)
	})
}

// TransactionalBase extends Base with the transaction operations of a
// storagedriver.TransactionalStorage.
type TransactionalBase struct {
	Base
	Transactional storagedriver.TransactionalStorage
}

// NewTransactional returns a TransactionalBase wrapping t.
func NewTransactional(t storagedriver.TransactionalStorage) TransactionalBase {
	return TransactionalBase{Base: Base{StorageProvider: t}, Transactional: t}
}

// Begin wraps Begin of underlying storage driver.
func (base *TransactionalBase) Begin(ctx context.Context) (err error) {
	defer durationDebugLog(ctx, base.Name(), storagedriver.OperationBegin, &err)()
	return base.Transactional.Begin(ctx)
}

// Commit wraps Commit of underlying storage driver.
func (base *TransactionalBase) Commit(ctx context.Context) (err error) {
	defer durationDebugLog(ctx, base.Name(), storagedriver.OperationCommit, &err)()
	return base.Transactional.Commit(ctx)
}

// Rollback wraps Rollback of underlying storage driver.
func (base *TransactionalBase) Rollback(ctx context.Context) (err error) {
	defer durationDebugLog(ctx, base.Name(), storagedriver.OperationRollback, &err)()
	return base.Transactional.Rollback(ctx)
}

// BeginAsync begins a transaction on the executor.
func (base *TransactionalBase) BeginAsync(ctx context.Context, cb storagedriver.Callback) {
	base.dispatch(ctx, &storagedriver.AsyncResult{Operation: storagedriver.OperationBegin}, cb, base.Begin)
}

// CommitAsync commits the transaction on the executor.
func (base *TransactionalBase) CommitAsync(ctx context.Context, cb storagedriver.Callback) {
	base.dispatch(ctx, &storagedriver.AsyncResult{Operation: storagedriver.OperationCommit}, cb, base.Commit)
}

// RollbackAsync rolls the transaction back on the executor.
func (base *TransactionalBase) RollbackAsync(ctx context.Context, cb storagedriver.Callback) {
	base.dispatch(ctx, &storagedriver.AsyncResult{Operation: storagedriver.OperationRollback}, cb, base.Rollback)
}

// Async returns the asynchronous view of p. Providers already offering it,
// such as drivers embedding a base, are returned unchanged; others are
// wrapped in the richest base matching their capabilities.
func Async(p storagedriver.StorageProvider) storagedriver.AsyncStorageProvider {
	if a, ok := p.(storagedriver.AsyncStorageProvider); ok {
		return a
	}
	if u, ok := p.(storagedriver.UpdateableStorage); ok {
		b := NewUpdateable(u)
		return &b
	}
	if q, ok := p.(storagedriver.QueryableStorage); ok {
		b := NewQueryable(q)
		return &b
	}
	if t, ok := p.(storagedriver.TransactionalStorage); ok {
		b := NewTransactional(t)
		return &b
	}
	return &Base{StorageProvider: p}
}
