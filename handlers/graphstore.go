package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/opencontainers/go-digest"

	"github.com/rdfkit/graphstore/internal/dcontext"
	"github.com/rdfkit/graphstore/rdf"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// graphChecker is implemented by drivers that can tell a missing graph from
// an empty one.
type graphChecker interface {
	HasGraph(ctx context.Context, graphURI string) (bool, error)
}

// graphStoreDispatcher takes the request context and builds the appropriate
// handler for the graph addressed by the query string.
func graphStoreDispatcher(ctx *Context, r *http.Request) http.Handler {
	graphURI, err := graphParameter(r.URL.Query())
	if err != nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx.Failure = err
		})
	}

	gh := &graphStoreHandler{
		Context:  ctx,
		GraphURI: graphURI,
	}

	return handlers.MethodHandler{
		http.MethodGet:    http.HandlerFunc(gh.GetGraph),
		http.MethodHead:   http.HandlerFunc(gh.GetGraph),
		http.MethodPut:    http.HandlerFunc(gh.PutGraph),
		http.MethodPost:   http.HandlerFunc(gh.PostGraph),
		http.MethodDelete: http.HandlerFunc(gh.DeleteGraph),
	}
}

// graphParameter returns the graph named by the request: "" for ?default,
// the URI for ?graph=<uri>.
func graphParameter(q url.Values) (string, error) {
	_, isDefault := q["default"]
	graphs, isNamed := q["graph"]
	switch {
	case isDefault && isNamed:
		return "", badRequest("the default and graph parameters are mutually exclusive")
	case isDefault:
		return "", nil
	case !isNamed:
		return "", badRequest("either the default or the graph parameter is required")
	case len(graphs) != 1 || graphs[0] == "":
		return "", storagedriver.InvalidGraphURIError{DriverName: "graphstore", GraphURI: q.Get("graph")}
	}
	if err := storagedriver.ValidateGraphURI("graphstore", graphs[0]); err != nil {
		return "", err
	}
	return graphs[0], nil
}

// graphStoreHandler handles the Graph Store Protocol operations on one
// graph of a store.
type graphStoreHandler struct {
	*Context

	// GraphURI is the addressed graph, "" for the default graph.
	GraphURI string
}

// exists reports whether the addressed graph is held by the store. The
// default graph always exists. Without a way to tell, every graph is
// assumed to exist.
func (gh *graphStoreHandler) exists() (bool, error) {
	if gh.GraphURI == "" {
		return true, nil
	}
	if checker, ok := gh.Store.(graphChecker); ok {
		return checker.HasGraph(gh, gh.GraphURI)
	}
	if gh.Store.Capabilities().ListGraphsSupported {
		graphs, err := gh.Store.ListGraphs(gh)
		if err != nil {
			return false, err
		}
		return slices.Contains(graphs, gh.GraphURI), nil
	}
	return true, nil
}

// GetGraph serves the graph as N-Triples. The ETag is the digest of the
// serialization.
func (gh *graphStoreHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	dcontext.GetLogger(gh).Debug("GetGraph")

	exists, err := gh.exists()
	if err != nil {
		gh.Failure = err
		return
	}
	if !exists {
		gh.Failure = graphNotFound(gh.GraphURI)
		return
	}

	g := &rdf.Graph{}
	if err := gh.Store.LoadGraph(gh, g, gh.GraphURI); err != nil {
		gh.Failure = err
		return
	}

	var buf bytes.Buffer
	if err := rdf.WriteTriples(&buf, g.Triples()); err != nil {
		gh.Failure = err
		return
	}

	etag := `"` + digest.FromBytes(buf.Bytes()).String() + `"`
	w.Header().Set("ETag", etag)
	if etagMatch(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", rdf.MediaTypeNTriples)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := buf.WriteTo(w); err != nil {
		dcontext.GetLogger(gh).Errorf("error writing graph: %v", err)
	}
}

// PutGraph replaces the graph with the request body. A graph the store
// would append to is deleted first when the store can delete.
func (gh *graphStoreHandler) PutGraph(w http.ResponseWriter, r *http.Request) {
	dcontext.GetLogger(gh).Debug("PutGraph")

	triples, err := readTriples(r)
	if err != nil {
		gh.Failure = err
		return
	}

	existed, err := gh.exists()
	if err != nil {
		gh.Failure = err
		return
	}

	caps := gh.Store.Capabilities()
	if existed && caps.DeleteSupported && caps.IOBehaviour.SaveModeFor(gh.GraphURI) == storagedriver.SaveAppend {
		if err := gh.Store.DeleteGraph(gh, gh.GraphURI); err != nil {
			gh.Failure = err
			return
		}
	}

	g, err := rdf.NewGraph(gh.GraphURI)
	if err != nil {
		gh.Failure = storagedriver.InvalidGraphURIError{DriverName: "graphstore", GraphURI: gh.GraphURI}
		return
	}
	g.Assert(triples...)
	if err := gh.Store.SaveGraph(gh, g); err != nil {
		gh.Failure = err
		return
	}

	if existed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// PostGraph merges the request body into the graph.
func (gh *graphStoreHandler) PostGraph(w http.ResponseWriter, r *http.Request) {
	dcontext.GetLogger(gh).Debug("PostGraph")

	triples, err := readTriples(r)
	if err != nil {
		gh.Failure = err
		return
	}

	existed, err := gh.exists()
	if err != nil {
		gh.Failure = err
		return
	}

	if err := gh.Store.UpdateGraph(gh, gh.GraphURI, triples, nil); err != nil {
		gh.Failure = err
		return
	}

	if existed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// DeleteGraph removes the graph. A graph known to be missing is reported as
// not found.
func (gh *graphStoreHandler) DeleteGraph(w http.ResponseWriter, r *http.Request) {
	dcontext.GetLogger(gh).Debug("DeleteGraph")

	exists, err := gh.exists()
	if err != nil {
		gh.Failure = err
		return
	}
	if !exists {
		gh.Failure = graphNotFound(gh.GraphURI)
		return
	}

	if err := gh.Store.DeleteGraph(gh, gh.GraphURI); err != nil {
		gh.Failure = err
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
