package base

import (
	"context"
	"strings"

	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// ServerBase wraps a storagedriver.StorageServer with store identifier
// checks, logging and the asynchronous server surface.
type ServerBase struct {
	storagedriver.StorageServer

	// DriverName labels logs and errors.
	DriverName string

	// Executor runs asynchronous calls. A nil Executor starts one goroutine
	// per call.
	Executor Executor
}

// SetExecutor replaces the executor of asynchronous calls.
func (base *ServerBase) SetExecutor(e Executor) {
	base.Executor = e
}

func (base *ServerBase) checkStoreID(op storagedriver.Operation, id string) error {
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, "/?#") {
		return storagedriver.UnsupportedError{DriverName: base.DriverName, Operation: op, Reason: "invalid store identifier " + id}
	}
	return nil
}

// ListStores wraps ListStores of underlying server.
func (base *ServerBase) ListStores(ctx context.Context) (ids []string, err error) {
	defer durationDebugLog(ctx, base.DriverName, storagedriver.OperationListStores, &err)()
	return base.StorageServer.ListStores(ctx)
}

// CreateStore wraps CreateStore of underlying server.
func (base *ServerBase) CreateStore(ctx context.Context, id string) (created bool, err error) {
	if err := base.checkStoreID(storagedriver.OperationCreateStore, id); err != nil {
		return false, err
	}
	defer durationDebugLog(ctx, base.DriverName, storagedriver.OperationCreateStore, &err)()
	return base.StorageServer.CreateStore(ctx, id)
}

// DeleteStore wraps DeleteStore of underlying server.
func (base *ServerBase) DeleteStore(ctx context.Context, id string) (err error) {
	if err := base.checkStoreID(storagedriver.OperationDeleteStore, id); err != nil {
		return err
	}
	defer durationDebugLog(ctx, base.DriverName, storagedriver.OperationDeleteStore, &err)()
	return base.StorageServer.DeleteStore(ctx, id)
}

// GetStore wraps GetStore of underlying server.
func (base *ServerBase) GetStore(ctx context.Context, id string) (p storagedriver.StorageProvider, err error) {
	if err := base.checkStoreID(storagedriver.OperationGetStore, id); err != nil {
		return nil, err
	}
	defer durationDebugLog(ctx, base.DriverName, storagedriver.OperationGetStore, &err)()
	return base.StorageServer.GetStore(ctx, id)
}

// ListStoresAsync lists stores on the executor.
func (base *ServerBase) ListStoresAsync(ctx context.Context, cb storagedriver.Callback) {
	res := &storagedriver.AsyncResult{Operation: storagedriver.OperationListStores}
	dispatch(ctx, base.Executor, base.DriverName, res, cb, func(ctx context.Context) error {
		ids, err := base.ListStores(ctx)
		res.StoreIDs = ids
		return err
	})
}

// CreateStoreAsync creates a store on the executor. Created reports whether
// the store was new.
func (base *ServerBase) CreateStoreAsync(ctx context.Context, id string, cb storagedriver.Callback) {
	res := &storagedriver.AsyncResult{Operation: storagedriver.OperationCreateStore, StoreID: id}
	dispatch(ctx, base.Executor, base.DriverName, res, cb, func(ctx context.Context) error {
		created, err := base.CreateStore(ctx, id)
		res.Created = created
		return err
	})
}

// DeleteStoreAsync deletes a store on the executor.
func (base *ServerBase) DeleteStoreAsync(ctx context.Context, id string, cb storagedriver.Callback) {
	res := &storagedriver.AsyncResult{Operation: storagedriver.OperationDeleteStore, StoreID: id}
	dispatch(ctx, base.Executor, base.DriverName, res, cb, func(ctx context.Context) error {
		return base.DeleteStore(ctx, id)
	})
}

// GetStoreAsync resolves a store on the executor. Store is its asynchronous
// view.
func (base *ServerBase) GetStoreAsync(ctx context.Context, id string, cb storagedriver.Callback) {
	res := &storagedriver.AsyncResult{Operation: storagedriver.OperationGetStore, StoreID: id}
	dispatch(ctx, base.Executor, base.DriverName, res, cb, func(ctx context.Context) error {
		p, err := base.GetStore(ctx, id)
		if err != nil {
			return err
		}
		res.Store = Async(p)
		return nil
	})
}
