package sparqlhttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/check.v1"

	"github.com/rdfkit/graphstore/handlers"
	"github.com/rdfkit/graphstore/rdf"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
	"github.com/rdfkit/graphstore/storage/driver/factory"
	"github.com/rdfkit/graphstore/storage/driver/inmemory"
	"github.com/rdfkit/graphstore/storage/driver/testsuites"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { check.TestingT(t) }

func init() {
	var server *httptest.Server
	sparqlHTTPDriverConstructor := func() (storagedriver.StorageProvider, error) {
		server = newStoreServer(inmemory.New())
		return New(Options{Endpoint: server.URL + "/main/rdf-graph-store"})
	}
	testsuites.RegisterSuiteWithTeardown(sparqlHTTPDriverConstructor, func() error {
		server.Close()
		return nil
	}, testsuites.NeverSkip)
}

// newStoreServer serves p as the store "main" over the Graph Store
// Protocol.
func newStoreServer(p storagedriver.StorageProvider) *httptest.Server {
	app := handlers.NewAppWithStores(context.Background(), nil, map[string]storagedriver.StorageProvider{"main": p})
	return httptest.NewServer(app)
}

func newTestDriver(t *testing.T, strict bool) (*Driver, *inmemory.Driver) {
	mem := inmemory.New()
	server := newStoreServer(mem)
	t.Cleanup(server.Close)

	d, err := New(Options{Endpoint: server.URL + "/main/rdf-graph-store", StrictDelete: strict})
	require.NoError(t, err)
	return d, mem
}

func triple(o string) rdf.Triple {
	return rdf.NewTriple(rdf.MustIRI("http://example.org/s"), rdf.MustIRI("http://example.org/p"), rdf.MustIRI("http://example.org/"+o))
}

func TestFactory(t *testing.T) {
	d, err := factory.Create(context.Background(), driverName, map[string]any{
		"endpoint": "http://localhost:7200/store",
		"timeout":  "5s",
	})
	require.NoError(t, err)
	assert.Equal(t, driverName, d.Name())

	_, err = factory.Create(context.Background(), driverName, map[string]any{"endpoint": "relative"})
	assert.Error(t, err)
}

func TestMissingGraphIsAbsent(t *testing.T) {
	d, _ := newTestDriver(t, false)

	h := &rdf.CountHandler{}
	require.NoError(t, d.LoadGraphHandler(context.Background(), h, "http://example.org/missing"))
	assert.True(t, h.Absent)

	g := &rdf.Graph{}
	require.NoError(t, d.LoadGraph(context.Background(), g, "http://example.org/missing"))
	assert.True(t, g.IsEmpty())
}

func TestHasGraph(t *testing.T) {
	d, mem := newTestDriver(t, false)
	ctx := context.Background()

	ok, err := d.HasGraph(ctx, "http://example.org/g")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mem.UpdateGraph(ctx, "http://example.org/g", []rdf.Triple{triple("o")}, nil))
	ok, err = d.HasGraph(ctx, "http://example.org/g")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.HasGraph(ctx, "")
	require.NoError(t, err)
	assert.True(t, ok, "the default graph always exists")

	_, err = d.HasGraph(ctx, "relative")
	var invalid storagedriver.InvalidGraphURIError
	assert.True(t, errors.As(err, &invalid))
}

func TestUpdateAddsTriples(t *testing.T) {
	d, mem := newTestDriver(t, false)
	ctx := context.Background()

	require.NoError(t, d.UpdateGraph(ctx, "http://example.org/g", []rdf.Triple{triple("a")}, nil))
	require.NoError(t, d.UpdateGraph(ctx, "http://example.org/g", []rdf.Triple{triple("b")}, nil))

	g := &rdf.Graph{}
	require.NoError(t, mem.LoadGraph(ctx, g, "http://example.org/g"))
	assert.Equal(t, 2, g.Len())

	err := d.UpdateGraph(ctx, "http://example.org/g", nil, []rdf.Triple{triple("a")})
	assert.True(t, errors.Is(err, storagedriver.ErrUnsupported))
}

func TestDeleteMissingGraph(t *testing.T) {
	d, _ := newTestDriver(t, false)
	assert.NoError(t, d.DeleteGraph(context.Background(), "http://example.org/missing"))

	strict, _ := newTestDriver(t, true)
	err := strict.DeleteGraph(context.Background(), "http://example.org/missing")
	var se storagedriver.StorageError
	require.True(t, errors.As(err, &se), "%v", err)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestGraphURL(t *testing.T) {
	d, err := New(Options{Endpoint: "http://example.org/store?key=1"})
	require.NoError(t, err)

	inner := d.inner()
	assert.Equal(t, "http://example.org/store?key=1&default", inner.graphURL(""))
	assert.Equal(t, "http://example.org/store?graph=http%3A%2F%2Fexample.org%2Fg&key=1", inner.graphURL("http://example.org/g"))
}

func TestSerializeConfiguration(t *testing.T) {
	d, err := New(Options{Endpoint: "http://example.org/store"})
	require.NoError(t, err)

	g := &rdf.Graph{}
	subject := rdf.MustIRI("http://example.org/config#store")
	require.NoError(t, d.SerializeConfiguration(storagedriver.NewSerializationContext(g, subject)))
	assert.Contains(t, g.String(), "http://example.org/store")
}
