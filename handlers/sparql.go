package handlers

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/handlers"

	"github.com/rdfkit/graphstore/internal/dcontext"
	"github.com/rdfkit/graphstore/rdf"
	"github.com/rdfkit/graphstore/sparql"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// Media types of SPARQL protocol request bodies.
const (
	mediaTypeSPARQLQuery  = "application/sparql-query"
	mediaTypeSPARQLUpdate = "application/sparql-update"
	mediaTypeForm         = "application/x-www-form-urlencoded"
)

// maxRequestBody bounds query and update bodies.
const maxRequestBody = 8 << 20

func sparqlDispatcher(ctx *Context, r *http.Request) http.Handler {
	sparqlHandler := &sparqlHandler{
		Context: ctx,
	}

	return handlers.MethodHandler{
		http.MethodGet:  http.HandlerFunc(sparqlHandler.GetQuery),
		http.MethodPost: http.HandlerFunc(sparqlHandler.PostRequest),
	}
}

// sparqlHandler implements the query and update operations of the SPARQL
// protocol for stores that evaluate SPARQL.
type sparqlHandler struct {
	*Context
}

// GetQuery evaluates the query given in the query string.
func (sh *sparqlHandler) GetQuery(w http.ResponseWriter, r *http.Request) {
	sh.query(w, r.URL.Query().Get("query"))
}

// PostRequest evaluates a query or executes an update sent directly or as a
// form.
func (sh *sparqlHandler) PostRequest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	switch mt := rdf.MediaType(r.Header.Get("Content-Type")); mt {
	case mediaTypeSPARQLQuery, mediaTypeSPARQLUpdate:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			sh.Failure = badRequest("unable to read request body: " + err.Error())
			return
		}
		if mt == mediaTypeSPARQLUpdate {
			sh.update(w, string(body))
			return
		}
		sh.query(w, string(body))
	case mediaTypeForm:
		if err := r.ParseForm(); err != nil {
			sh.Failure = badRequest("unable to parse form: " + err.Error())
			return
		}
		if update := r.PostForm.Get("update"); update != "" {
			sh.update(w, update)
			return
		}
		sh.query(w, r.PostForm.Get("query"))
	default:
		sh.Failure = rdf.UnsupportedMediaTypeError{MediaType: mt}
	}
}

func (sh *sparqlHandler) query(w http.ResponseWriter, query string) {
	if strings.TrimSpace(query) == "" {
		sh.Failure = badRequest("a query is required")
		return
	}
	queryable, ok := storagedriver.AsQueryable(sh.Store)
	if !ok {
		sh.Failure = storagedriver.UnsupportedError{
			DriverName: sh.Store.Name(),
			Operation:  storagedriver.OperationQuery,
			Reason:     "the store does not evaluate SPARQL",
		}
		return
	}

	dcontext.GetLoggerWithField(sh, "sparql.form", sparql.QueryForm(query).String()).Debug("Query")

	result, err := queryable.Query(sh, query)
	if err != nil {
		sh.Failure = err
		return
	}

	var (
		buf         bytes.Buffer
		contentType string
	)
	if result.Results != nil {
		contentType = sparql.MediaTypeResultsJSON
		err = sparql.WriteJSON(&buf, result.Results)
	} else {
		contentType = rdf.MediaTypeNTriples
		err = rdf.WriteTriples(&buf, result.Graph.Triples())
	}
	if err != nil {
		sh.Failure = err
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		dcontext.GetLogger(sh).Errorf("error writing query result: %v", err)
	}
}

func (sh *sparqlHandler) update(w http.ResponseWriter, update string) {
	updateable, ok := storagedriver.AsUpdateable(sh.Store)
	if !ok {
		sh.Failure = storagedriver.UnsupportedError{
			DriverName: sh.Store.Name(),
			Operation:  storagedriver.OperationUpdate,
			Reason:     "the store does not execute SPARQL updates",
		}
		return
	}

	dcontext.GetLogger(sh).Debug("Update")

	if err := updateable.Update(sh, update); err != nil {
		sh.Failure = err
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
