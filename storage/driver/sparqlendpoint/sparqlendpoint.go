// Package sparqlendpoint provides drivers for stores reachable only through
// the SPARQL 1.1 Protocol. Driver is read-only and loads graphs with a
// CONSTRUCT or DESCRIBE query. ReadWriteDriver adds a SPARQL update endpoint
// and implements writes as updates.
//
// A graph the store does not hold loads as an empty graph. Graphs are listed
// with a discovery query.
package sparqlendpoint

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rdfkit/graphstore/rdf"
	"github.com/rdfkit/graphstore/sparql"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
	"github.com/rdfkit/graphstore/storage/driver/base"
	"github.com/rdfkit/graphstore/storage/driver/factory"
	"github.com/rdfkit/graphstore/storage/driver/httpbase"
)

const driverName = "sparqlendpoint"

// Load methods.
const (
	LoadConstruct = "construct"
	LoadDescribe  = "describe"
)

func init() {
	factory.Register(driverName, &sparqlEndpointDriverFactory{})
}

// sparqlEndpointDriverFactory implements the factory.StorageDriverFactory
// interface. A configured update endpoint yields a ReadWriteDriver.
type sparqlEndpointDriverFactory struct{}

func (factory *sparqlEndpointDriverFactory) Create(parameters map[string]any) (storagedriver.StorageProvider, error) {
	opts, err := optionsFromParameters(parameters)
	if err != nil {
		return nil, err
	}
	if opts.UpdateEndpoint != "" {
		return NewReadWrite(opts)
	}
	return New(opts)
}

// Options configure a Driver or ReadWriteDriver.
type Options struct {
	// Endpoint is the query service URL.
	Endpoint string `mapstructure:"endpoint"`

	// UpdateEndpoint is the update service URL, required by
	// ReadWriteDriver.
	UpdateEndpoint string `mapstructure:"updateendpoint"`

	// LoadMethod is LoadConstruct (the default) or LoadDescribe.
	LoadMethod string `mapstructure:"loadmethod"`

	// DefaultGraphs and NamedGraphs are sent with every query as the
	// protocol's default-graph-uri and named-graph-uri parameters.
	DefaultGraphs []string `mapstructure:"defaultgraphs"`
	NamedGraphs   []string `mapstructure:"namedgraphs"`

	httpbase.Options `mapstructure:",squash"`
}

func optionsFromParameters(parameters map[string]any) (Options, error) {
	var opts Options
	err := storagedriver.DecodeParameters(parameters, &opts)
	return opts, err
}

func parseEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%s: invalid endpoint %q", driverName, raw)
	}
	return u, nil
}

type driver struct {
	conn          *httpbase.Connector
	endpoint      *url.URL
	describe      bool
	defaultGraphs []string
	namedGraphs   []string
}

func newDriver(opts Options) (*driver, error) {
	endpoint, err := parseEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}
	switch opts.LoadMethod {
	case "", LoadConstruct, LoadDescribe:
	default:
		return nil, fmt.Errorf("%s: unknown load method %q", driverName, opts.LoadMethod)
	}
	conn, err := httpbase.New(driverName, opts.Options)
	if err != nil {
		return nil, err
	}
	return &driver{
		conn:          conn,
		endpoint:      endpoint,
		describe:      opts.LoadMethod == LoadDescribe,
		defaultGraphs: opts.DefaultGraphs,
		namedGraphs:   opts.NamedGraphs,
	}, nil
}

type baseEmbed struct {
	base.QueryableBase
}

// Driver is a read-only storagedriver.QueryableStorage over a SPARQL query
// endpoint.
type Driver struct {
	baseEmbed
}

var _ storagedriver.QueryableStorage = &Driver{}

// FromParameters constructs a new Driver with a given parameters map
// Required parameters:
// - endpoint
// Optional parameters:
// - loadmethod
// - defaultgraphs, namedgraphs
// - username, password
// - timeout
// - proxy, proxyusername, proxypassword
func FromParameters(parameters map[string]any) (*Driver, error) {
	opts, err := optionsFromParameters(parameters)
	if err != nil {
		return nil, err
	}
	return New(opts)
}

// New constructs a new read-only Driver from opts.
func New(opts Options) (*Driver, error) {
	d, err := newDriver(opts)
	if err != nil {
		return nil, err
	}
	return &Driver{baseEmbed{base.NewQueryable(d)}}, nil
}

// Connector exposes the HTTP settings of the driver.
func (d *Driver) Connector() *httpbase.Connector {
	return d.Queryable.(*driver).conn
}

// SerializeConfiguration describes the driver and its endpoint.
func (d *Driver) SerializeConfiguration(ctx *storagedriver.SerializationContext) error {
	d.Queryable.(*driver).serialize(ctx, "SPARQL Query Endpoint")
	return nil
}

func (d *driver) serialize(ctx *storagedriver.SerializationContext, label string) {
	ctx.SerializeDriver(storagedriver.ConfigClassStorageProvider, driverName, label)
	ctx.AssertLiteral(storagedriver.ConfigPropertyEndpoint, d.endpoint.String())
	for _, g := range d.defaultGraphs {
		ctx.AssertLiteral(storagedriver.ConfigPropertyDefaultGraph, g)
	}
	for _, g := range d.namedGraphs {
		ctx.AssertLiteral(storagedriver.ConfigPropertyNamedGraph, g)
	}
	d.conn.SerializeStandardConfig(ctx)
}

// Implement the storagedriver.StorageProvider interface.

func (d *driver) Name() string {
	return driverName
}

func (d *driver) Capabilities() storagedriver.Capabilities {
	return storagedriver.Capabilities{
		Ready:               true,
		ReadOnly:            true,
		ListGraphsSupported: true,
		IOBehaviour:         storagedriver.ReadOnlyGraphStore,
	}
}

func (d *driver) LoadGraph(ctx context.Context, g *rdf.Graph, graphURI string) error {
	return storagedriver.LoadGraphWithBase(g, graphURI, func(h rdf.Handler) error {
		return d.LoadGraphHandler(ctx, h, graphURI)
	})
}

// loadQuery returns the query retrieving graphURI.
func (d *driver) loadQuery(graphURI string) (string, error) {
	switch {
	case graphURI == "" && d.describe:
		return "", storagedriver.UnsupportedError{
			DriverName: driverName,
			Operation:  storagedriver.OperationLoadGraph,
			Reason:     "the default graph cannot be loaded with DESCRIBE",
		}
	case graphURI == "":
		return "CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }", nil
	case d.describe:
		return "DESCRIBE " + sparql.FormatIRI(graphURI), nil
	}
	return "CONSTRUCT { ?s ?p ?o } FROM " + sparql.FormatIRI(graphURI) + " WHERE { ?s ?p ?o }", nil
}

func (d *driver) LoadGraphHandler(ctx context.Context, h rdf.Handler, graphURI string) error {
	query, err := d.loadQuery(graphURI)
	if err != nil {
		return err
	}
	return d.QueryHandlers(ctx, h, nil, query)
}

func (d *driver) unsupported(op storagedriver.Operation) error {
	return storagedriver.UnsupportedError{DriverName: driverName, Operation: op, Reason: "the SPARQL endpoint is read-only"}
}

func (d *driver) SaveGraph(ctx context.Context, g *rdf.Graph) error {
	return d.unsupported(storagedriver.OperationSaveGraph)
}

func (d *driver) UpdateGraph(ctx context.Context, graphURI string, additions, removals []rdf.Triple) error {
	return d.unsupported(storagedriver.OperationUpdateGraph)
}

func (d *driver) DeleteGraph(ctx context.Context, graphURI string) error {
	return d.unsupported(storagedriver.OperationDeleteGraph)
}

func (d *driver) ListGraphs(ctx context.Context) ([]string, error) {
	return httpbase.ListGraphsByQuery(ctx, d)
}

// Implement the storagedriver.QueryableStorage interface.

func (d *driver) Query(ctx context.Context, query string) (*storagedriver.QueryResult, error) {
	return storagedriver.RunQuery(ctx, d.QueryHandlers, query)
}

// QueryHandlers POSTs query as a form, which keeps long queries out of the
// request line.
func (d *driver) QueryHandlers(ctx context.Context, rdfHandler rdf.Handler, resultsHandler sparql.ResultsHandler, query string) error {
	req, err := d.conn.NewRequest(ctx, http.MethodPost, d.endpoint.String(), sparql.AcceptFor(query))
	if err != nil {
		return err
	}
	form := url.Values{"query": {query}}
	for _, g := range d.defaultGraphs {
		form.Add("default-graph-uri", g)
	}
	for _, g := range d.namedGraphs {
		form.Add("named-graph-uri", g)
	}
	httpbase.SetForm(req, form)
	return d.conn.Query(req, rdfHandler, resultsHandler, query)
}

type readWriteBaseEmbed struct {
	base.UpdateableBase
}

// ReadWriteDriver is a storagedriver.UpdateableStorage over a SPARQL query
// endpoint and a SPARQL update endpoint. Saving a graph clears it and
// inserts the triples; removals are applied before additions. Removals
// cannot contain blank nodes.
type ReadWriteDriver struct {
	readWriteBaseEmbed
}

var _ storagedriver.UpdateableStorage = &ReadWriteDriver{}

type readWriteDriver struct {
	*driver
	updateEndpoint *url.URL
}

// NewReadWrite constructs a new ReadWriteDriver from opts.
func NewReadWrite(opts Options) (*ReadWriteDriver, error) {
	d, err := newDriver(opts)
	if err != nil {
		return nil, err
	}
	if opts.UpdateEndpoint == "" {
		return nil, fmt.Errorf("%s: no updateendpoint parameter provided", driverName)
	}
	updateEndpoint, err := parseEndpoint(opts.UpdateEndpoint)
	if err != nil {
		return nil, err
	}
	rw := &readWriteDriver{driver: d, updateEndpoint: updateEndpoint}
	return &ReadWriteDriver{readWriteBaseEmbed{base.NewUpdateable(rw)}}, nil
}

// Connector exposes the HTTP settings of the driver.
func (d *ReadWriteDriver) Connector() *httpbase.Connector {
	return d.Updateable.(*readWriteDriver).conn
}

// SerializeConfiguration describes the driver and both endpoints.
func (d *ReadWriteDriver) SerializeConfiguration(ctx *storagedriver.SerializationContext) error {
	rw := d.Updateable.(*readWriteDriver)
	rw.serialize(ctx, "SPARQL Query and Update Endpoints")
	ctx.AssertLiteral(storagedriver.ConfigPropertyUpdate, rw.updateEndpoint.String())
	return nil
}

func (d *readWriteDriver) Capabilities() storagedriver.Capabilities {
	return storagedriver.Capabilities{
		Ready:               true,
		UpdateSupported:     true,
		DeleteSupported:     true,
		ListGraphsSupported: true,
		IOBehaviour:         storagedriver.GraphStore,
	}
}

// SaveGraph replaces the graph: CLEAR SILENT, then INSERT DATA.
func (d *readWriteDriver) SaveGraph(ctx context.Context, g *rdf.Graph) error {
	name := g.Name()
	updates := []string{"CLEAR SILENT " + graphTarget(name)}
	if ts := g.Triples(); len(ts) > 0 {
		updates = append(updates, "INSERT DATA { "+sparql.GraphScope(name, formatTriples(ts))+" }")
	}
	return d.Update(ctx, strings.Join(updates, " ;\n"))
}

// UpdateGraph sends DELETE DATA for the removals followed by INSERT DATA
// for the additions in one request.
func (d *readWriteDriver) UpdateGraph(ctx context.Context, graphURI string, additions, removals []rdf.Triple) error {
	var updates []string
	if len(removals) > 0 {
		for _, t := range removals {
			if rdf.HasBlankNodes(t) {
				return storagedriver.UnsupportedError{
					DriverName: driverName,
					Operation:  storagedriver.OperationUpdateGraph,
					Reason:     "triples with blank nodes cannot be removed",
				}
			}
		}
		updates = append(updates, "DELETE DATA { "+sparql.GraphScope(graphURI, formatTriples(removals))+" }")
	}
	if len(additions) > 0 {
		updates = append(updates, "INSERT DATA { "+sparql.GraphScope(graphURI, formatTriples(additions))+" }")
	}
	if len(updates) == 0 {
		return nil
	}
	return d.Update(ctx, strings.Join(updates, " ;\n"))
}

// DeleteGraph drops the graph. Dropping a missing graph succeeds.
func (d *readWriteDriver) DeleteGraph(ctx context.Context, graphURI string) error {
	return d.Update(ctx, "DROP SILENT "+graphTarget(graphURI))
}

// Update POSTs update as a form to the update endpoint.
func (d *readWriteDriver) Update(ctx context.Context, update string) error {
	req, err := d.conn.NewRequest(ctx, http.MethodPost, d.updateEndpoint.String(), "")
	if err != nil {
		return err
	}
	httpbase.SetForm(req, url.Values{"update": {update}})
	return d.conn.Send(req, httpbase.ActionUpdate, nil)
}

func graphTarget(graphURI string) string {
	if graphURI == "" {
		return "DEFAULT"
	}
	return "GRAPH " + sparql.FormatIRI(graphURI)
}

func formatTriples(ts []rdf.Triple) string {
	lines := make([]string, len(ts))
	for i, t := range ts {
		lines[i] = sparql.FormatTriple(t)
	}
	return strings.Join(lines, " ")
}
