package driver

import (
	"context"
	"net/url"

	"github.com/rdfkit/graphstore/rdf"
	"github.com/rdfkit/graphstore/sparql"
)

// StorageProvider defines the methods that a graph store must implement to
// be used through this package. Graphs are identified by absolute URIs and
// the empty string names the default graph.
//
// Whether a missing graph loads as empty or reports absence to the handler,
// and whether UpdateGraph creates a missing graph, is up to each driver and
// is documented on it.
type StorageProvider interface {
	// Name returns the human-readable "name" of the driver, useful in error
	// messages and logging. By convention, this will just be the registration
	// name, but drivers may provide other information here.
	Name() string

	// Capabilities describes what the store supports. It does not change
	// for the lifetime of the driver.
	Capabilities() Capabilities

	// LoadGraph loads the named graph into g. When g is empty on entry its
	// BaseURI becomes graphURI; otherwise triples are merged and the
	// existing BaseURI is kept.
	LoadGraph(ctx context.Context, g *rdf.Graph, graphURI string) error

	// LoadGraphHandler streams the named graph into h.
	LoadGraphHandler(ctx context.Context, h rdf.Handler, graphURI string) error

	// SaveGraph stores g under its BaseURI. Whether existing triples are
	// replaced or appended to is described by Capabilities().IOBehaviour.
	SaveGraph(ctx context.Context, g *rdf.Graph) error

	// UpdateGraph removes and then adds triples to the named graph. Either
	// set may be empty; both empty is a no-op.
	UpdateGraph(ctx context.Context, graphURI string, additions, removals []rdf.Triple) error

	// DeleteGraph removes the named graph.
	DeleteGraph(ctx context.Context, graphURI string) error

	// ListGraphs returns the URIs of the graphs held by the store.
	ListGraphs(ctx context.Context) ([]string, error)
}

// QueryableStorage is a StorageProvider that evaluates SPARQL queries.
type QueryableStorage interface {
	StorageProvider

	// Query evaluates query and returns its graph or tabular result.
	Query(ctx context.Context, query string) (*QueryResult, error)

	// QueryHandlers evaluates query and routes the result to rdfHandler when
	// it is a graph or to resultsHandler when it is tabular or boolean.
	// Exactly one of them receives output.
	QueryHandlers(ctx context.Context, rdfHandler rdf.Handler, resultsHandler sparql.ResultsHandler, query string) error
}

// UpdateableStorage is a QueryableStorage that executes SPARQL updates.
type UpdateableStorage interface {
	QueryableStorage

	// Update executes a SPARQL update request.
	Update(ctx context.Context, update string) error
}

// TransactionalStorage is a StorageProvider with explicit transactions. The
// scope of a transaction is defined by each driver; callers must not assume
// isolation between driver instances.
type TransactionalStorage interface {
	StorageProvider

	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// StorageServer manages a set of stores hosted by one server.
type StorageServer interface {
	// ListStores returns the identifiers of the available stores.
	ListStores(ctx context.Context) ([]string, error)

	// CreateStore creates the store id. It returns false without error if
	// the store already exists.
	CreateStore(ctx context.Context, id string) (bool, error)

	// DeleteStore removes the store id.
	DeleteStore(ctx context.Context, id string) error

	// GetStore returns a provider for the store id.
	GetStore(ctx context.Context, id string) (StorageProvider, error)
}

// QueryResult holds the outcome of a query; exactly one field is set.
type QueryResult struct {
	Graph   *rdf.Graph
	Results *sparql.Results
}

// GraphName maps a possibly nil graph URI to a graph identifier; nil is the
// default graph.
func GraphName(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}

// ValidateGraphURI checks that graphURI is either empty or an absolute URI.
func ValidateGraphURI(driverName, graphURI string) error {
	if graphURI == "" {
		return nil
	}
	u, err := url.Parse(graphURI)
	if err != nil || !u.IsAbs() {
		return InvalidGraphURIError{DriverName: driverName, GraphURI: graphURI}
	}
	return nil
}

// LoadGraphWithBase fills g by handing a graph handler to load. When g was
// empty and unnamed on entry it is named after graphURI. Drivers call this
// from LoadGraph so the naming rule holds everywhere.
func LoadGraphWithBase(g *rdf.Graph, graphURI string, load func(rdf.Handler) error) error {
	wasEmpty := g.IsEmpty()
	if err := load(rdf.GraphHandler(g)); err != nil {
		return err
	}
	if wasEmpty && g.BaseURI == nil && graphURI != "" {
		u, err := url.Parse(graphURI)
		if err != nil {
			return err
		}
		g.BaseURI = u
	}
	return nil
}

// RunQuery evaluates query through a handler based query function and
// collects whichever result it produced.
func RunQuery(ctx context.Context, q func(context.Context, rdf.Handler, sparql.ResultsHandler, string) error, query string) (*QueryResult, error) {
	var (
		g       = &rdf.Graph{}
		results = &sparql.ResultsCollector{}
		gotRDF  bool
	)
	rdfHandler := rdf.HandlerFunc(func(src rdf.TripleSource) error {
		gotRDF = true
		return rdf.GraphHandler(g).Handle(src)
	})
	if err := q(ctx, rdfHandler, results, query); err != nil {
		return nil, err
	}
	if results.Results != nil {
		return &QueryResult{Results: results.Results}, nil
	}
	if !gotRDF {
		return &QueryResult{Results: &sparql.Results{}}, nil
	}
	return &QueryResult{Graph: g}, nil
}

// AsQueryable returns p as a QueryableStorage if it supports queries.
func AsQueryable(p StorageProvider) (QueryableStorage, bool) {
	q, ok := p.(QueryableStorage)
	return q, ok
}

// AsUpdateable returns p as an UpdateableStorage if it supports updates.
func AsUpdateable(p StorageProvider) (UpdateableStorage, bool) {
	u, ok := p.(UpdateableStorage)
	return u, ok
}

// AsTransactional returns p as a TransactionalStorage if it supports
// transactions.
func AsTransactional(p StorageProvider) (TransactionalStorage, bool) {
	t, ok := p.(TransactionalStorage)
	return t, ok
}
