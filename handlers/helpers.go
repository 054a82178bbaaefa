package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rdfkit/graphstore/rdf"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// serveJSON marshals v and sets the content-type header to
// 'application/json'. If a different status code is required, call
// ResponseWriter.WriteHeader before this function.
func serveJSON(w http.ResponseWriter, v interface{}) error {
	return serveJSONStatus(w, v, 0)
}

func serveJSONStatus(w http.ResponseWriter, v interface{}, status int) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if status > 0 {
		w.WriteHeader(status)
	}
	enc := json.NewEncoder(w)

	if err := enc.Encode(v); err != nil {
		return err
	}

	return nil
}

// etagMatch returns true if the request has an If-None-Match header matching
// etag, quoted or not.
func etagMatch(r *http.Request, etag string) bool {
	for _, headerVal := range r.Header["If-None-Match"] {
		if headerVal == etag || headerVal == fmt.Sprintf(`"%s"`, etag) || headerVal == "*" {
			return true
		}
	}
	return false
}

// readTriples parses the request body in the format named by its
// Content-Type.
func readTriples(r *http.Request) ([]rdf.Triple, error) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return nil, badRequest("a Content-Type is required")
	}
	src, err := rdf.NewDecoder(r.Body, contentType)
	if err != nil {
		return nil, err
	}
	ts, err := rdf.ReadAll(src)
	if err != nil {
		return nil, storagedriver.ParseError{DriverName: "graphstore", MediaType: rdf.MediaType(contentType), Err: err}
	}
	return ts, nil
}
