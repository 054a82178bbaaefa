// Package inmemory provides a graph store held entirely in process memory.
//
// Missing graphs load as empty graphs and UpdateGraph creates the target
// graph when it does not exist. Transactions are global to a driver
// instance: Begin snapshots the whole dataset and Rollback restores it.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/rdfkit/graphstore/rdf"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
	"github.com/rdfkit/graphstore/storage/driver/base"
	"github.com/rdfkit/graphstore/storage/driver/factory"
)

const driverName = "inmemory"

func init() {
	factory.Register(driverName, &inMemoryDriverFactory{})
}

// inMemoryDriverFactory implements the factory.StorageDriverFactory interface.
type inMemoryDriverFactory struct{}

func (factory *inMemoryDriverFactory) Create(parameters map[string]any) (storagedriver.StorageProvider, error) {
	return New(), nil
}

type driver struct {
	mu       sync.RWMutex
	graphs   map[string]*rdf.Graph
	snapshot map[string]*rdf.Graph
}

type baseEmbed struct {
	base.TransactionalBase
}

// Driver is a storagedriver.StorageProvider implementation backed by a map
// of graphs. Intended for tests, examples and small working sets.
type Driver struct {
	baseEmbed
}

var _ storagedriver.TransactionalStorage = &Driver{}

// New constructs a new, empty Driver.
func New() *Driver {
	d := &driver{graphs: make(map[string]*rdf.Graph)}
	return &Driver{baseEmbed{base.NewTransactional(d)}}
}

// SerializeConfiguration describes the driver.
func (d *Driver) SerializeConfiguration(ctx *storagedriver.SerializationContext) error {
	ctx.SerializeDriver(storagedriver.ConfigClassStorageProvider, driverName, "In-Memory Store")
	return nil
}

// HasGraph reports whether graphURI is held by the store, empty or not.
func (d *Driver) HasGraph(ctx context.Context, graphURI string) (bool, error) {
	if err := storagedriver.ValidateGraphURI(driverName, graphURI); err != nil {
		return false, err
	}
	inner := d.StorageProvider.(*driver)
	inner.mu.RLock()
	defer inner.mu.RUnlock()
	_, ok := inner.graphs[graphURI]
	return ok, nil
}

// Implement the storagedriver.StorageProvider interface.

func (d *driver) Name() string {
	return driverName
}

func (d *driver) Capabilities() storagedriver.Capabilities {
	io := storagedriver.GraphStore
	io.ExplicitEmptyGraphs = true
	return storagedriver.Capabilities{
		Ready:               true,
		UpdateSupported:     true,
		DeleteSupported:     true,
		ListGraphsSupported: true,
		IOBehaviour:         io,
	}
}

// LoadGraph merges the named graph into g.
func (d *driver) LoadGraph(ctx context.Context, g *rdf.Graph, graphURI string) error {
	return storagedriver.LoadGraphWithBase(g, graphURI, func(h rdf.Handler) error {
		return d.LoadGraphHandler(ctx, h, graphURI)
	})
}

// LoadGraphHandler streams a copy of the named graph to h. The store lock is
// not held while h runs.
func (d *driver) LoadGraphHandler(ctx context.Context, h rdf.Handler, graphURI string) error {
	d.mu.RLock()
	var ts []rdf.Triple
	if g, ok := d.graphs[graphURI]; ok {
		ts = g.Triples()
	}
	d.mu.RUnlock()

	return h.Handle(rdf.NewSliceSource(ts))
}

// SaveGraph replaces the graph named by g.
func (d *driver) SaveGraph(ctx context.Context, g *rdf.Graph) error {
	c := g.Clone()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.graphs[g.Name()] = c
	return nil
}

// UpdateGraph applies removals then additions, creating the graph if needed.
func (d *driver) UpdateGraph(ctx context.Context, graphURI string, additions, removals []rdf.Triple) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, ok := d.graphs[graphURI]
	if !ok {
		var err error
		if g, err = rdf.NewGraph(graphURI); err != nil {
			return storagedriver.InvalidGraphURIError{DriverName: driverName, GraphURI: graphURI}
		}
		d.graphs[graphURI] = g
	}
	g.Retract(removals...)
	g.Assert(additions...)
	return nil
}

// DeleteGraph removes the named graph. Deleting a missing graph succeeds.
func (d *driver) DeleteGraph(ctx context.Context, graphURI string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.graphs, graphURI)
	return nil
}

// ListGraphs returns the named graphs in lexical order, empty ones
// included.
func (d *driver) ListGraphs(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.graphs))
	for name := range d.graphs {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Implement the storagedriver.TransactionalStorage interface.

func (d *driver) Begin(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.snapshot != nil {
		return storagedriver.TransactionError{DriverName: driverName, Detail: "a transaction is already in progress"}
	}
	d.snapshot = cloneGraphs(d.graphs)
	return nil
}

func (d *driver) Commit(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.snapshot == nil {
		return storagedriver.TransactionError{DriverName: driverName, Detail: "no transaction to commit"}
	}
	d.snapshot = nil
	return nil
}

func (d *driver) Rollback(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.snapshot == nil {
		return storagedriver.TransactionError{DriverName: driverName, Detail: "no transaction to roll back"}
	}
	d.graphs = d.snapshot
	d.snapshot = nil
	return nil
}

func cloneGraphs(graphs map[string]*rdf.Graph) map[string]*rdf.Graph {
	c := make(map[string]*rdf.Graph, len(graphs))
	for name, g := range graphs {
		c[name] = g.Clone()
	}
	return c
}
