package handlers

import (
	"errors"
	"net/http"

	"github.com/rdfkit/graphstore/rdf"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// Error codes reported in error responses.
const (
	ErrorCodeUnknown              = "UNKNOWN"
	ErrorCodeUnsupported          = "UNSUPPORTED"
	ErrorCodeGraphInvalid         = "GRAPH_INVALID"
	ErrorCodeGraphUnknown         = "GRAPH_UNKNOWN"
	ErrorCodeStoreUnknown         = "STORE_UNKNOWN"
	ErrorCodeParse                = "PARSE_ERROR"
	ErrorCodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	ErrorCodeQuery                = "QUERY_INVALID"
	ErrorCodeTransaction          = "TRANSACTION_ERROR"
	ErrorCodeUpstream             = "UPSTREAM_ERROR"
	ErrorCodeBadRequest           = "BAD_REQUEST"
)

// httpError is an error that is reported with a fixed status and code.
type httpError struct {
	Status  int
	Code    string
	Message string
}

func (err httpError) Error() string {
	return err.Message
}

func badRequest(message string) error {
	return httpError{Status: http.StatusBadRequest, Code: ErrorCodeBadRequest, Message: message}
}

func graphNotFound(graphURI string) error {
	return httpError{Status: http.StatusNotFound, Code: ErrorCodeGraphUnknown, Message: "graph not found: " + graphURI}
}

// errorDetail is one entry of an error response.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorsResponse is the body of every error response.
type errorsResponse struct {
	Errors []errorDetail `json:"errors"`
}

// classify maps err to the status and code reported to clients.
func classify(err error) (int, string) {
	var (
		he httpError
		ie storagedriver.InvalidGraphURIError
		pe storagedriver.ParseError
		me rdf.UnsupportedMediaTypeError
		qe storagedriver.QueryError
		ne storagedriver.StoreNotFoundError
		te storagedriver.TransactionError
		se storagedriver.StorageError
	)
	switch {
	case errors.As(err, &he):
		return he.Status, he.Code
	case errors.Is(err, storagedriver.ErrUnsupported):
		return http.StatusMethodNotAllowed, ErrorCodeUnsupported
	case errors.As(err, &ie):
		return http.StatusBadRequest, ErrorCodeGraphInvalid
	case errors.As(err, &me):
		return http.StatusUnsupportedMediaType, ErrorCodeUnsupportedMediaType
	case errors.As(err, &pe):
		return http.StatusBadRequest, ErrorCodeParse
	case errors.As(err, &ne):
		return http.StatusNotFound, ErrorCodeStoreUnknown
	case errors.As(err, &te):
		return http.StatusConflict, ErrorCodeTransaction
	case errors.As(err, &qe):
		if qe.StatusCode != 0 {
			return http.StatusBadGateway, ErrorCodeUpstream
		}
		return http.StatusBadRequest, ErrorCodeQuery
	case errors.As(err, &se):
		return http.StatusBadGateway, ErrorCodeUpstream
	}
	return http.StatusInternalServerError, ErrorCodeUnknown
}

// serveError writes err as a JSON error response.
func serveError(w http.ResponseWriter, err error) error {
	status, code := classify(err)
	return serveJSONStatus(w, errorsResponse{Errors: []errorDetail{{Code: code, Message: err.Error()}}}, status)
}
