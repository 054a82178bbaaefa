package httpbase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/rdfkit/graphstore/rdf"
	"github.com/rdfkit/graphstore/sparql"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// errUploadAborted stops a body writer once the response made the rest of
// the upload pointless.
var errUploadAborted = errors.New("upload aborted: store answered before the body was written")

// NewRequest builds a request to the store. accept is filtered through the
// connector's AcceptFilter; credentials and modifiers are applied.
func (c *Connector) NewRequest(ctx context.Context, method, rawURL, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.DriverName, err)
	}
	if accept != "" {
		if accept = c.FilterAccept(accept); accept != "" {
			req.Header.Set("Accept", accept)
		}
	}

	c.mu.RLock()
	username, password := c.username, c.password
	c.mu.RUnlock()
	if username != "" {
		req.SetBasicAuth(username, password)
	}

	for _, m := range c.Modifiers {
		if err := m.ModifyRequest(req); err != nil {
			return nil, fmt.Errorf("%s: %w", c.DriverName, err)
		}
	}
	return req, nil
}

// SetForm makes values the url-encoded body of req. The body can be
// replayed by a retrying transport.
func SetForm(req *http.Request, values url.Values) {
	body := values.Encode()
	req.Body = io.NopCloser(strings.NewReader(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
}

func (c *Connector) begin(req *http.Request) *exchange {
	return &exchange{ctx: req.Context(), req: req, observer: c.Observer, started: time.Now()}
}

// fail translates a failed exchange. A query makes it a QueryError.
func (c *Connector) fail(action, query string, resp *http.Response, cause error) error {
	if action == ActionQuerying {
		return HandleHTTPQueryError(c.DriverName, resp, cause, query)
	}
	return HandleHTTPError(c.DriverName, resp, cause, action)
}

func (c *Connector) handle(action, query string, err error) error {
	if action == ActionQuerying {
		return HandleQueryError(c.DriverName, err, query)
	}
	return HandleError(c.DriverName, err, action)
}

func closeBody(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

// Send runs req and hands a response with a 2xx status, or one listed in
// tolerate, to consume. The body is closed once consume returns. Any other
// outcome is returned as a typed error.
func (c *Connector) Send(req *http.Request, action string, consume func(*http.Response) error, tolerate ...int) error {
	return c.send(req, action, "", consume, tolerate)
}

func (c *Connector) send(req *http.Request, action, query string, consume func(*http.Response) error, tolerate []int) error {
	x := c.begin(req)
	x.to(StateRequesting)
	x.to(StateAwaitingResponse)

	resp, err := c.client().Do(req)
	x.responded(resp, err)
	if err != nil {
		return x.finish(c.fail(action, query, nil, err))
	}
	defer closeBody(resp)

	if !IsSuccess(resp.StatusCode) && !slices.Contains(tolerate, resp.StatusCode) {
		return x.finish(c.fail(action, query, resp, UnexpectedHTTPStatusError{Status: resp.Status, StatusCode: resp.StatusCode}))
	}
	if consume != nil {
		if err := consume(resp); err != nil {
			return x.finish(c.handle(action, query, err))
		}
	}
	return x.finish(nil)
}

// Exec sends req, discards the body and returns the status. Statuses listed
// in tolerate are returned without error.
func (c *Connector) Exec(req *http.Request, action string, tolerate ...int) (int, error) {
	var status int
	err := c.send(req, action, "", func(resp *http.Response) error {
		status = resp.StatusCode
		return nil
	}, tolerate)
	return status, err
}

// Load sends req and streams the returned graph into h, choosing the parser
// from the response Content-Type. With missingIsEmpty a 404 tells h the
// graph is absent instead of failing.
func (c *Connector) Load(req *http.Request, h rdf.Handler, missingIsEmpty bool) error {
	var tolerate []int
	if missingIsEmpty {
		tolerate = []int{http.StatusNotFound}
	}
	return c.send(req, ActionLoading, "", func(resp *http.Response) error {
		if resp.StatusCode == http.StatusNotFound {
			return h.Handle(nil)
		}
		return c.parseGraph(resp, h)
	}, tolerate)
}

// parseErrors marks failures while reading a response body as parse errors
// so handler errors stay distinguishable.
type parseErrors struct {
	src        rdf.TripleSource
	driverName string
	mediaType  string
}

func (s parseErrors) Next() (rdf.Triple, error) {
	t, err := s.src.Next()
	if err != nil && err != io.EOF {
		return t, storagedriver.ParseError{DriverName: s.driverName, MediaType: s.mediaType, Err: err}
	}
	return t, err
}

func (c *Connector) parseGraph(resp *http.Response, h rdf.Handler) error {
	if resp.StatusCode == http.StatusNoContent || resp.ContentLength == 0 {
		return h.Handle(rdf.NewSliceSource(nil))
	}
	ct := resp.Header.Get("Content-Type")
	src, err := rdf.NewDecoder(resp.Body, ct)
	if err != nil {
		return storagedriver.ParseError{DriverName: c.DriverName, MediaType: rdf.MediaType(ct), Err: err}
	}
	return h.Handle(parseErrors{src: src, driverName: c.DriverName, mediaType: rdf.MediaType(ct)})
}

// Upload sends req with a body produced by write. The request is started
// and the body streamed while the store reads it; the response is examined
// only once write has returned. A failure in either phase is reported once.
func (c *Connector) Upload(req *http.Request, contentType, action string, write func(io.Writer) error, tolerate ...int) error {
	pr, pw := io.Pipe()
	req.Body = pr
	req.ContentLength = 0
	req.Header.Set("Content-Type", contentType)

	x := c.begin(req)
	x.to(StateRequesting)

	written := make(chan error, 1)
	go func() {
		err := write(pw)
		pw.CloseWithError(err)
		written <- err
	}()
	x.to(StateUploading)

	resp, err := c.client().Do(req)
	accepted := err == nil && (IsSuccess(resp.StatusCode) || slices.Contains(tolerate, resp.StatusCode))
	if !accepted {
		pr.CloseWithError(errUploadAborted)
	}
	werr := <-written
	x.to(StateAwaitingResponse)
	x.responded(resp, err)

	if resp != nil {
		defer closeBody(resp)
	}
	// The transport closes the body when no response arrives, so the
	// writer's error is secondary to err.
	switch {
	case err != nil:
		return x.finish(c.fail(action, "", nil, err))
	case werr != nil && !errors.Is(werr, errUploadAborted):
		return x.finish(c.handle(action, "", werr))
	case !accepted:
		return x.finish(c.fail(action, "", resp, UnexpectedHTTPStatusError{Status: resp.Status, StatusCode: resp.StatusCode}))
	}
	return x.finish(nil)
}

// UploadTriples sends ts as N-Triples through Upload.
func (c *Connector) UploadTriples(req *http.Request, action string, ts []rdf.Triple, tolerate ...int) error {
	return c.Upload(req, rdf.MediaTypeNTriples, action, func(w io.Writer) error {
		return rdf.WriteTriples(w, ts)
	}, tolerate...)
}

// Delete sends a deletion request. With allowMissing a 404 counts as
// success since the graph is already gone.
func (c *Connector) Delete(req *http.Request, allowMissing bool) error {
	var tolerate []int
	if allowMissing {
		tolerate = []int{http.StatusNotFound}
	}
	return c.send(req, ActionDeleting, "", nil, tolerate)
}

// Query sends a query request and routes the answer by its Content-Type:
// result sets go to resultsHandler and RDF to rdfHandler.
func (c *Connector) Query(req *http.Request, rdfHandler rdf.Handler, resultsHandler sparql.ResultsHandler, query string) error {
	return c.send(req, ActionQuerying, query, func(resp *http.Response) error {
		ct := resp.Header.Get("Content-Type")
		switch {
		case sparql.IsResultsMediaType(ct):
			if resultsHandler == nil {
				return storagedriver.QueryError{DriverName: c.DriverName, Message: "query returned a result set but no results handler was given", Query: query}
			}
			res, err := sparql.ParseResults(resp.Body, ct)
			if err != nil {
				return storagedriver.ParseError{DriverName: c.DriverName, MediaType: rdf.MediaType(ct), Err: err}
			}
			return resultsHandler.HandleResults(res)
		case rdf.IsRDFMediaType(ct):
			if rdfHandler == nil {
				return storagedriver.QueryError{DriverName: c.DriverName, Message: "query returned a graph but no RDF handler was given", Query: query}
			}
			return c.parseGraph(resp, rdfHandler)
		}
		return storagedriver.ParseError{DriverName: c.DriverName, MediaType: rdf.MediaType(ct), Err: rdf.UnsupportedMediaTypeError{MediaType: rdf.MediaType(ct)}}
	}, nil)
}

// ListGraphsByQuery lists the graphs of p with a discovery query run through
// p's own query operation. Drivers without a native listing use it from
// ListGraphs; p must be queryable.
func ListGraphsByQuery(ctx context.Context, p storagedriver.StorageProvider) ([]string, error) {
	q, ok := storagedriver.AsQueryable(p)
	if !ok {
		return nil, storagedriver.UnsupportedError{
			DriverName: p.Name(),
			Operation:  storagedriver.OperationListGraphs,
			Reason:     "the store has no native listing and cannot be queried",
		}
	}
	h := &sparql.ListURIsHandler{Var: "g"}
	if err := q.QueryHandlers(ctx, nil, h, sparql.ListGraphsQuery); err != nil {
		return nil, HandleError(p.Name(), err, ActionListing)
	}
	return h.URIs, nil
}
