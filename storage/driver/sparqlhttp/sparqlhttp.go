// Package sparqlhttp provides a driver for stores speaking the SPARQL 1.1
// Graph Store HTTP Protocol. Graphs are addressed indirectly through the
// service endpoint with ?graph=<uri>, or ?default for the default graph.
//
// Loading a graph the store does not hold reports an absent graph to the
// handler, so LoadGraph yields an empty graph. UpdateGraph can only add
// triples; the protocol has no way to remove individual statements. The
// target graph of an update is created by the store when missing. Deleting
// a missing graph succeeds unless the strictdelete parameter is set.
package sparqlhttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rdfkit/graphstore/rdf"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
	"github.com/rdfkit/graphstore/storage/driver/base"
	"github.com/rdfkit/graphstore/storage/driver/factory"
	"github.com/rdfkit/graphstore/storage/driver/httpbase"
)

const driverName = "sparqlhttp"

func init() {
	factory.Register(driverName, &sparqlHTTPDriverFactory{})
}

// sparqlHTTPDriverFactory implements the factory.StorageDriverFactory interface
type sparqlHTTPDriverFactory struct{}

func (factory *sparqlHTTPDriverFactory) Create(parameters map[string]any) (storagedriver.StorageProvider, error) {
	return FromParameters(parameters)
}

// Options configure a Driver.
type Options struct {
	// Endpoint is the Graph Store service URL.
	Endpoint string `mapstructure:"endpoint"`

	// StrictDelete makes deleting a missing graph an error.
	StrictDelete bool `mapstructure:"strictdelete"`

	httpbase.Options `mapstructure:",squash"`
}

type driver struct {
	conn         *httpbase.Connector
	endpoint     *url.URL
	strictDelete bool
}

type baseEmbed struct {
	base.Base
}

// Driver is a storagedriver.StorageProvider implementation for Graph Store
// Protocol endpoints.
type Driver struct {
	baseEmbed
}

// FromParameters constructs a new Driver with a given parameters map
// Required parameters:
// - endpoint
// Optional parameters:
// - strictdelete
// - username, password
// - timeout
// - proxy, proxyusername, proxypassword
func FromParameters(parameters map[string]any) (*Driver, error) {
	var opts Options
	if err := storagedriver.DecodeParameters(parameters, &opts); err != nil {
		return nil, err
	}
	return New(opts)
}

// New constructs a new Driver from opts.
func New(opts Options) (*Driver, error) {
	endpoint, err := url.Parse(opts.Endpoint)
	if err != nil || !endpoint.IsAbs() || endpoint.Host == "" {
		return nil, fmt.Errorf("%s: invalid endpoint %q", driverName, opts.Endpoint)
	}
	conn, err := httpbase.New(driverName, opts.Options)
	if err != nil {
		return nil, err
	}
	d := &driver{conn: conn, endpoint: endpoint, strictDelete: opts.StrictDelete}
	return &Driver{baseEmbed{base.Base{StorageProvider: d}}}, nil
}

func (d *Driver) inner() *driver {
	return d.StorageProvider.(*driver)
}

// Connector exposes the HTTP settings of the driver.
func (d *Driver) Connector() *httpbase.Connector {
	return d.inner().conn
}

// HasGraph reports whether the store holds graphURI.
func (d *Driver) HasGraph(ctx context.Context, graphURI string) (bool, error) {
	if err := storagedriver.ValidateGraphURI(driverName, graphURI); err != nil {
		return false, err
	}
	inner := d.inner()
	req, err := inner.conn.NewRequest(ctx, http.MethodHead, inner.graphURL(graphURI), rdf.AcceptHeader)
	if err != nil {
		return false, err
	}
	status, err := inner.conn.Exec(req, httpbase.ActionLoading, http.StatusNotFound)
	if err != nil {
		return false, err
	}
	return status != http.StatusNotFound, nil
}

// SerializeConfiguration describes the driver and its endpoint.
func (d *Driver) SerializeConfiguration(ctx *storagedriver.SerializationContext) error {
	inner := d.inner()
	ctx.SerializeDriver(storagedriver.ConfigClassStorageProvider, driverName, "SPARQL Graph Store")
	ctx.AssertLiteral(storagedriver.ConfigPropertyServer, inner.endpoint.String())
	inner.conn.SerializeStandardConfig(ctx)
	return nil
}

func (d *driver) graphURL(graphURI string) string {
	u := *d.endpoint
	if graphURI == "" {
		if u.RawQuery != "" {
			u.RawQuery += "&"
		}
		u.RawQuery += "default"
		return u.String()
	}
	q := u.Query()
	q.Set("graph", graphURI)
	u.RawQuery = q.Encode()
	return u.String()
}

// Implement the storagedriver.StorageProvider interface.

func (d *driver) Name() string {
	return driverName
}

func (d *driver) Capabilities() storagedriver.Capabilities {
	return storagedriver.Capabilities{
		Ready:           true,
		UpdateSupported: true,
		DeleteSupported: true,
		IOBehaviour: storagedriver.IOBehaviour{
			Shape:            storagedriver.ShapeQuadStore,
			HasDefaultGraph:  true,
			HasNamedGraphs:   true,
			DefaultGraphSave: storagedriver.SaveOverwrite,
			NamedGraphSave:   storagedriver.SaveOverwrite,
			CanAddTriples:    true,
		},
	}
}

func (d *driver) LoadGraph(ctx context.Context, g *rdf.Graph, graphURI string) error {
	return storagedriver.LoadGraphWithBase(g, graphURI, func(h rdf.Handler) error {
		return d.LoadGraphHandler(ctx, h, graphURI)
	})
}

func (d *driver) LoadGraphHandler(ctx context.Context, h rdf.Handler, graphURI string) error {
	req, err := d.conn.NewRequest(ctx, http.MethodGet, d.graphURL(graphURI), rdf.AcceptHeader)
	if err != nil {
		return err
	}
	return d.conn.Load(req, h, true)
}

// SaveGraph replaces the graph with a PUT of its triples.
func (d *driver) SaveGraph(ctx context.Context, g *rdf.Graph) error {
	req, err := d.conn.NewRequest(ctx, http.MethodPut, d.graphURL(g.Name()), "")
	if err != nil {
		return err
	}
	return d.conn.Upload(req, rdf.MediaTypeNTriples, httpbase.ActionSaving, func(w io.Writer) error {
		return rdf.WriteTriples(w, g.Triples())
	})
}

// UpdateGraph POSTs the additions, merging them into the graph.
func (d *driver) UpdateGraph(ctx context.Context, graphURI string, additions, removals []rdf.Triple) error {
	if len(removals) > 0 {
		return storagedriver.UnsupportedError{
			DriverName: driverName,
			Operation:  storagedriver.OperationUpdateGraph,
			Reason:     "the Graph Store Protocol cannot remove individual triples",
		}
	}
	if len(additions) == 0 {
		return nil
	}
	req, err := d.conn.NewRequest(ctx, http.MethodPost, d.graphURL(graphURI), "")
	if err != nil {
		return err
	}
	return d.conn.UploadTriples(req, httpbase.ActionUpdating, additions)
}

func (d *driver) DeleteGraph(ctx context.Context, graphURI string) error {
	req, err := d.conn.NewRequest(ctx, http.MethodDelete, d.graphURL(graphURI), "")
	if err != nil {
		return err
	}
	return d.conn.Delete(req, !d.strictDelete)
}

func (d *driver) ListGraphs(ctx context.Context) ([]string, error) {
	return nil, storagedriver.UnsupportedError{
		DriverName: driverName,
		Operation:  storagedriver.OperationListGraphs,
		Reason:     "the Graph Store Protocol has no graph listing",
	}
}
