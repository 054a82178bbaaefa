// Package base provides a base implementation of the storage provider that
// can be used to implement common checks and the asynchronous surface. The
// goal is to increase the amount of code sharing.
//
// The canonical approach to use this class is to embed in the exported driver
// struct such that calls are proxied through this implementation. First,
// declare the internal driver, as follows:
//
//	type driver struct { ... internal ...}
//
// The resulting type should implement StorageProvider such that it can be the
// target of a Base struct. The exported type can then be declared as follows:
//
//	type Driver struct {
//		Base
//	}
//
// Because Driver embeds Base, it effectively implements Base and, through
// it, AsyncStorageProvider. If the driver needs to intercept a call, before
// going to base, Driver should implement that method.
//
// To further shield the embed from other packages, it is recommended to
// employ a private embed struct:
//
//	type baseEmbed struct {
//		base.Base
//	}
//
// Then, declare driver to embed baseEmbed, rather than Base directly:
//
//	type Driver struct {
//		baseEmbed
//	}
//
// Drivers supporting queries, updates or transactions embed QueryableBase,
// UpdateableBase or TransactionalBase instead.
//
// Every call is checked against the driver's Capabilities before it reaches
// the driver, so an operation the driver has declared unsupported fails with
// storagedriver.UnsupportedError without touching the backing store.
package base

import (
	"context"
	"time"

	"github.com/rdfkit/graphstore/internal/dcontext"
	prometheus "github.com/rdfkit/graphstore/metrics"
	"github.com/rdfkit/graphstore/rdf"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// Base provides a wrapper around a storagedriver implementation that provides
// graph identifier and capability checks.
type Base struct {
	storagedriver.StorageProvider

	// Executor runs asynchronous calls. A nil Executor starts one goroutine
	// per call.
	Executor Executor
}

// SetExecutor replaces the executor of asynchronous calls.
func (base *Base) SetExecutor(e Executor) {
	base.Executor = e
}

// durationDebugLog returns a deferrable function which when invoked produces
// debug logging output with the method name and duration, and records the
// call in the storage action metrics.
func durationDebugLog(ctx context.Context, driverName string, op storagedriver.Operation, err *error) (deferrable func()) {
	startedAt := time.Now()

	return func() {
		prometheus.StorageAction.WithValues(driverName, op.String()).UpdateSince(startedAt)
		logger := dcontext.GetLoggerWithFields(ctx, map[any]any{
			"trace.duration": time.Since(startedAt),
			"driver":         driverName,
		})
		if err != nil && *err != nil {
			prometheus.StorageErrors.WithValues(driverName, op.String()).Inc(1)
			logger.WithError(*err).Debug("Storage.Driver." + op.String())
			return
		}
		logger.Debug("Storage.Driver." + op.String())
	}
}

func (base *Base) unsupported(op storagedriver.Operation, reason string) error {
	return storagedriver.UnsupportedError{DriverName: base.StorageProvider.Name(), Operation: op, Reason: reason}
}

func (base *Base) checkGraph(graphURI string) error {
	return storagedriver.ValidateGraphURI(base.StorageProvider.Name(), graphURI)
}

// LoadGraph wraps LoadGraph of underlying storage driver.
func (base *Base) LoadGraph(ctx context.Context, g *rdf.Graph, graphURI string) (err error) {
	if err := base.checkGraph(graphURI); err != nil {
		return err
	}

	defer durationDebugLog(ctx, base.Name(), storagedriver.OperationLoadGraph, &err)()

	return base.StorageProvider.LoadGraph(ctx, g, graphURI)
}

// LoadGraphHandler wraps LoadGraphHandler of underlying storage driver.
func (base *Base) LoadGraphHandler(ctx context.Context, h rdf.Handler, graphURI string) (err error) {
	if err := base.checkGraph(graphURI); err != nil {
		return err
	}

	defer durationDebugLog(ctx, base.Name(), storagedriver.OperationLoadWithHandler, &err)()

	return base.StorageProvider.LoadGraphHandler(ctx, h, graphURI)
}

// SaveGraph wraps SaveGraph of underlying storage driver.
func (base *Base) SaveGraph(ctx context.Context, g *rdf.Graph) (err error) {
	caps := base.Capabilities()
	if caps.ReadOnly {
		return base.unsupported(storagedriver.OperationSaveGraph, "the store is read-only")
	}
	name := g.Name()
	if caps.IOBehaviour.SaveModeFor(name) == storagedriver.SaveNone {
		kind := "named"
		if name == "" {
			kind = "default"
		}
		return base.unsupported(storagedriver.OperationSaveGraph, "the store cannot save the "+kind+" graph")
	}
	if err := base.checkGraph(name); err != nil {
		return err
	}

	defer durationDebugLog(ctx, base.Name(), storagedriver.OperationSaveGraph, &err)()

	return base.StorageProvider.SaveGraph(ctx, g)
}

// UpdateGraph wraps UpdateGraph of underlying storage driver. A call with no
// additions and no removals returns without reaching the driver.
func (base *Base) UpdateGraph(ctx context.Context, graphURI string, additions, removals []rdf.Triple) (err error) {
	caps := base.Capabilities()
	if caps.ReadOnly || !caps.UpdateSupported {
		return base.unsupported(storagedriver.OperationUpdateGraph, "")
	}
	if len(removals) > 0 && !caps.IOBehaviour.CanRemoveTriples {
		return base.unsupported(storagedriver.OperationUpdateGraph, "the store cannot remove triples")
	}
	if len(additions) > 0 && !caps.IOBehaviour.CanAddTriples {
		return base.unsupported(storagedriver.OperationUpdateGraph, "the store cannot add triples")
	}
	if err := base.checkGraph(graphURI); err != nil {
		return err
	}
	if len(additions) == 0 && len(removals) == 0 {
		return nil
	}

	defer durationDebugLog(ctx, base.Name(), storagedriver.OperationUpdateGraph, &err)()

	return base.StorageProvider.UpdateGraph(ctx, graphURI, additions, removals)
}

// DeleteGraph wraps DeleteGraph of underlying storage driver.
func (base *Base) DeleteGraph(ctx context.Context, graphURI string) (err error) {
	caps := base.Capabilities()
	if caps.ReadOnly || !caps.DeleteSupported {
		return base.unsupported(storagedriver.OperationDeleteGraph, "")
	}
	if err := base.checkGraph(graphURI); err != nil {
		return err
	}

	defer durationDebugLog(ctx, base.Name(), storagedriver.OperationDeleteGraph, &err)()

	return base.StorageProvider.DeleteGraph(ctx, graphURI)
}

// ListGraphs wraps ListGraphs of underlying storage driver.
func (base *Base) ListGraphs(ctx context.Context) (graphs []string, err error) {
	if !base.Capabilities().ListGraphsSupported {
		return nil, base.unsupported(storagedriver.OperationListGraphs, "")
	}

	defer durationDebugLog(ctx, base.Name(), storagedriver.OperationListGraphs, &err)()

	return base.StorageProvider.ListGraphs(ctx)
}
