// Package allegrograph provides a driver for AllegroGraph repositories,
// which speak the Sesame HTTP protocol: statements are read and written
// under <repository>/statements with a context parameter naming the graph,
// and queries are POSTed to the repository itself.
//
// A graph the repository does not hold loads as an empty graph. Saving the
// default graph appends to it; saving a named graph replaces it. Removals
// are sent one statement at a time, before the additions.
package allegrograph

import (
	"context"
	"fmt"
	"io"
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

const driverName = "allegrograph"

func init() {
	factory.Register(driverName, &allegroGraphDriverFactory{})
}

// allegroGraphDriverFactory implements the factory.StorageDriverFactory
// interface.
type allegroGraphDriverFactory struct{}

func (factory *allegroGraphDriverFactory) Create(parameters map[string]any) (storagedriver.StorageProvider, error) {
	return FromParameters(parameters)
}

// Options configure a Driver or a Server.
type Options struct {
	// Server is the base URL of the AllegroGraph server.
	Server string `mapstructure:"server"`

	// Catalog is the catalog holding the repository. Empty selects the
	// root catalog.
	Catalog string `mapstructure:"catalog"`

	// Store is the repository identifier. Not used by Server.
	Store string `mapstructure:"store"`

	httpbase.Options `mapstructure:",squash"`
}

// catalogURL returns the base URL under which repositories are found.
func (opts Options) catalogURL() (*url.URL, error) {
	u, err := url.Parse(opts.Server)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%s: invalid server %q", driverName, opts.Server)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if opts.Catalog != "" {
		u.Path += "catalogs/" + url.PathEscape(opts.Catalog) + "/"
	}
	return u, nil
}

// AcceptFilter drops the JSON media types AllegroGraph answers with its own
// non-standard serialization.
var AcceptFilter = httpbase.StripMediaTypes("application/json", "text/json")

type driver struct {
	name       string
	conn       *httpbase.Connector
	repository *url.URL
}

type baseEmbed struct {
	base.UpdateableBase
}

// Driver is a storagedriver.UpdateableStorage implementation for one
// repository of a Sesame protocol server.
type Driver struct {
	baseEmbed

	// Catalog and Store identify the repository in configuration
	// descriptions.
	Catalog string
	Store   string
}

var _ storagedriver.UpdateableStorage = &Driver{}

// FromParameters constructs a new Driver with a given parameters map
// Required parameters:
// - server
// - store
// Optional parameters:
// - catalog
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

// New constructs a new Driver for the repository named in opts.
func New(opts Options) (*Driver, error) {
	if opts.Store == "" {
		return nil, fmt.Errorf("%s: no store parameter provided", driverName)
	}
	catalog, err := opts.catalogURL()
	if err != nil {
		return nil, err
	}
	conn, err := httpbase.New(driverName, opts.Options)
	if err != nil {
		return nil, err
	}
	conn.AcceptFilter = AcceptFilter

	d := NewWithConnector(driverName, catalog.JoinPath("repositories", opts.Store), conn)
	d.Catalog, d.Store = opts.Catalog, opts.Store
	return d, nil
}

// NewWithConnector returns a Driver named name for the Sesame protocol
// repository at repository, sending requests through conn. Stores speaking
// a variant of the protocol configure conn with their own authentication
// and Accept fix-ups.
func NewWithConnector(name string, repository *url.URL, conn *httpbase.Connector) *Driver {
	d := &driver{name: name, conn: conn, repository: repository}
	return &Driver{baseEmbed: baseEmbed{base.NewUpdateable(d)}}
}

func (d *Driver) inner() *driver {
	return d.Updateable.(*driver)
}

// Connector exposes the HTTP settings of the driver.
func (d *Driver) Connector() *httpbase.Connector {
	return d.inner().conn
}

// Repository returns the repository URL.
func (d *Driver) Repository() string {
	return d.inner().repository.String()
}

// SerializeConfiguration describes the driver and its repository.
func (d *Driver) SerializeConfiguration(ctx *storagedriver.SerializationContext) error {
	inner := d.inner()
	ctx.SerializeDriver(storagedriver.ConfigClassStorageProvider, inner.name, "AllegroGraph Repository")
	ctx.AssertLiteral(storagedriver.ConfigPropertyServer, inner.repository.String())
	ctx.AssertLiteral(storagedriver.ConfigPropertyCatalog, d.Catalog)
	ctx.AssertLiteral(storagedriver.ConfigPropertyStore, d.Store)
	inner.conn.SerializeStandardConfig(ctx)
	return nil
}

// statementsURL addresses the statements of graphURI, narrowed by the
// extra parameters.
func (d *driver) statementsURL(graphURI string, extra url.Values) string {
	u := d.repository.JoinPath("statements")
	q := url.Values{"context": {contextParameter(graphURI)}}
	for k, v := range extra {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// contextParameter encodes a graph as the protocol's context value: the
// IRI in angle brackets, or null for the default graph.
func contextParameter(graphURI string) string {
	if graphURI == "" {
		return "null"
	}
	return "<" + graphURI + ">"
}

// Implement the storagedriver.StorageProvider interface.

func (d *driver) Name() string {
	return d.name
}

func (d *driver) Capabilities() storagedriver.Capabilities {
	return storagedriver.Capabilities{
		Ready:               true,
		UpdateSupported:     true,
		DeleteSupported:     true,
		ListGraphsSupported: true,
		IOBehaviour: storagedriver.IOBehaviour{
			Shape:            storagedriver.ShapeQuadStore,
			HasDefaultGraph:  true,
			HasNamedGraphs:   true,
			DefaultGraphSave: storagedriver.SaveAppend,
			NamedGraphSave:   storagedriver.SaveOverwrite,
			CanAddTriples:    true,
			CanRemoveTriples: true,
		},
	}
}

func (d *driver) LoadGraph(ctx context.Context, g *rdf.Graph, graphURI string) error {
	return storagedriver.LoadGraphWithBase(g, graphURI, func(h rdf.Handler) error {
		return d.LoadGraphHandler(ctx, h, graphURI)
	})
}

func (d *driver) LoadGraphHandler(ctx context.Context, h rdf.Handler, graphURI string) error {
	req, err := d.conn.NewRequest(ctx, http.MethodGet, d.statementsURL(graphURI, nil), rdf.AcceptHeader)
	if err != nil {
		return err
	}
	return d.conn.Load(req, h, false)
}

// SaveGraph PUTs a named graph, replacing it, and POSTs the default graph,
// appending to it.
func (d *driver) SaveGraph(ctx context.Context, g *rdf.Graph) error {
	method := http.MethodPut
	if g.Name() == "" {
		method = http.MethodPost
	}
	req, err := d.conn.NewRequest(ctx, method, d.statementsURL(g.Name(), nil), "")
	if err != nil {
		return err
	}
	return d.conn.Upload(req, rdf.MediaTypeNTriples, httpbase.ActionSaving, func(w io.Writer) error {
		return rdf.WriteTriples(w, g.Triples())
	})
}

func (d *driver) UpdateGraph(ctx context.Context, graphURI string, additions, removals []rdf.Triple) error {
	seen := make(map[string]struct{}, len(removals))
	for _, t := range removals {
		key := rdf.TripleKey(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		statement := url.Values{
			"subj": {rdf.FormatTerm(t.Subj)},
			"pred": {rdf.FormatTerm(t.Pred)},
			"obj":  {rdf.FormatTerm(t.Obj)},
		}
		req, err := d.conn.NewRequest(ctx, http.MethodDelete, d.statementsURL(graphURI, statement), "")
		if err != nil {
			return err
		}
		if _, err := d.conn.Exec(req, httpbase.ActionUpdating); err != nil {
			return err
		}
	}

	if len(additions) == 0 {
		return nil
	}
	req, err := d.conn.NewRequest(ctx, http.MethodPost, d.statementsURL(graphURI, nil), "")
	if err != nil {
		return err
	}
	return d.conn.UploadTriples(req, httpbase.ActionUpdating, additions)
}

func (d *driver) DeleteGraph(ctx context.Context, graphURI string) error {
	req, err := d.conn.NewRequest(ctx, http.MethodDelete, d.statementsURL(graphURI, nil), "")
	if err != nil {
		return err
	}
	return d.conn.Delete(req, true)
}

func (d *driver) ListGraphs(ctx context.Context) ([]string, error) {
	return httpbase.ListGraphsByQuery(ctx, d)
}

// Implement the storagedriver.QueryableStorage interface.

func (d *driver) Query(ctx context.Context, query string) (*storagedriver.QueryResult, error) {
	return storagedriver.RunQuery(ctx, d.QueryHandlers, query)
}

func (d *driver) QueryHandlers(ctx context.Context, rdfHandler rdf.Handler, resultsHandler sparql.ResultsHandler, query string) error {
	req, err := d.conn.NewRequest(ctx, http.MethodPost, d.repository.String(), sparql.AcceptFor(query))
	if err != nil {
		return err
	}
	httpbase.SetForm(req, url.Values{"query": {query}})
	return d.conn.Query(req, rdfHandler, resultsHandler, query)
}

// Implement the storagedriver.UpdateableStorage interface.

func (d *driver) Update(ctx context.Context, update string) error {
	req, err := d.conn.NewRequest(ctx, http.MethodPost, d.repository.JoinPath("statements").String(), "*/*")
	if err != nil {
		return err
	}
	httpbase.SetForm(req, url.Values{"update": {update}})
	return d.conn.Send(req, httpbase.ActionUpdate, nil)
}
