// Package datasetfile provides a read-only store over an RDF file. The file
// is parsed once when the driver is created; later changes to the file are
// not seen.
//
// N-Quads files keep their graph structure. Files in triple formats are
// loaded into the graph named by the "graph" parameter, the default graph
// when it is unset. Loading a graph the file does not contain yields an
// empty graph.
package datasetfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/opencontainers/go-digest"

	"github.com/rdfkit/graphstore/rdf"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
	"github.com/rdfkit/graphstore/storage/driver/base"
	"github.com/rdfkit/graphstore/storage/driver/factory"
)

const driverName = "datasetfile"

func init() {
	factory.Register(driverName, &datasetFileDriverFactory{})
}

// datasetFileDriverFactory implements the factory.StorageDriverFactory interface
type datasetFileDriverFactory struct{}

func (factory *datasetFileDriverFactory) Create(parameters map[string]any) (storagedriver.StorageProvider, error) {
	return FromParameters(parameters)
}

// Options configure a Driver.
type Options struct {
	// Path of the file to serve.
	Path string `mapstructure:"path"`

	// MediaType of the file. Guessed from the extension when empty.
	MediaType string `mapstructure:"mediatype"`

	// Graph receives the statements of a triple format file.
	Graph string `mapstructure:"graph"`
}

type driver struct {
	opts   Options
	graphs map[string]*rdf.Graph
	digest digest.Digest
}

type baseEmbed struct {
	base.Base
}

// Driver is a read-only storagedriver.StorageProvider over the contents of a
// single file.
type Driver struct {
	baseEmbed
}

// FromParameters constructs a new Driver with a given parameters map
// Required parameters:
// - path
// Optional parameters:
// - mediatype
// - graph
func FromParameters(parameters map[string]any) (*Driver, error) {
	var opts Options
	if err := storagedriver.DecodeParameters(parameters, &opts); err != nil {
		return nil, err
	}
	return New(opts)
}

// New parses the file named in opts and returns a driver serving it.
func New(opts Options) (*Driver, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("%s: no path parameter provided", driverName)
	}
	if err := storagedriver.ValidateGraphURI(driverName, opts.Graph); err != nil {
		return nil, err
	}
	if opts.MediaType == "" {
		mt, err := rdf.MediaTypeForPath(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("%s: cannot determine the format of %s: %w", driverName, opts.Path, err)
		}
		opts.MediaType = mt
	}

	d := &driver{opts: opts, graphs: make(map[string]*rdf.Graph)}
	if err := d.read(); err != nil {
		return nil, err
	}
	return &Driver{baseEmbed{base.Base{StorageProvider: d}}}, nil
}

func (d *driver) read() error {
	f, err := os.Open(d.opts.Path)
	if err != nil {
		return storagedriver.StorageError{DriverName: driverName, Message: "unable to open dataset file", Err: err}
	}
	defer f.Close()

	digester := digest.Canonical.Digester()
	r := io.TeeReader(f, digester.Hash())

	src, err := rdf.NewQuadDecoder(r, d.opts.MediaType, d.opts.Graph)
	if err != nil {
		return storagedriver.ParseError{DriverName: driverName, MediaType: d.opts.MediaType, Err: err}
	}
	for {
		q, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return storagedriver.ParseError{DriverName: driverName, MediaType: d.opts.MediaType, Err: err}
		}
		g, ok := d.graphs[q.Graph]
		if !ok {
			if g, err = rdf.NewGraph(q.Graph); err != nil {
				return storagedriver.ParseError{DriverName: driverName, MediaType: d.opts.MediaType, Err: err}
			}
			d.graphs[q.Graph] = g
		}
		g.Assert(q.Triple)
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return storagedriver.StorageError{DriverName: driverName, Message: "unable to read dataset file", Err: err}
	}
	d.digest = digester.Digest()
	return nil
}

// Digest identifies the file contents the driver was loaded from.
func (d *Driver) Digest() digest.Digest {
	return d.StorageProvider.(*driver).digest
}

// SerializeConfiguration describes the driver and its source file.
func (d *Driver) SerializeConfiguration(ctx *storagedriver.SerializationContext) error {
	inner := d.StorageProvider.(*driver)
	ctx.SerializeDriver(storagedriver.ConfigClassStorageProvider, driverName, "Dataset File")
	ctx.AssertLiteral(storagedriver.ConfigPropertyFrom, inner.opts.Path)
	ctx.Assert(storagedriver.ConfigPropertyReadOnly, rdf.NewTypedLiteral("true", rdf.MustIRI(rdf.XSDBoolean)))
	return nil
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

func (d *driver) LoadGraphHandler(ctx context.Context, h rdf.Handler, graphURI string) error {
	var ts []rdf.Triple
	if g, ok := d.graphs[graphURI]; ok {
		ts = g.Triples()
	}
	return h.Handle(rdf.NewSliceSource(ts))
}

func (d *driver) unsupported(op storagedriver.Operation) error {
	return storagedriver.UnsupportedError{DriverName: driverName, Operation: op, Reason: "the store is read-only"}
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

// ListGraphs returns the named graphs of the file in lexical order.
func (d *driver) ListGraphs(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(d.graphs))
	for name := range d.graphs {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
