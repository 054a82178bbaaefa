package httpbase

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// Actions interpolated into storage error messages.
const (
	ActionLoading  = "loading a graph from"
	ActionSaving   = "saving a graph to"
	ActionUpdating = "updating a graph in"
	ActionDeleting = "deleting a graph from"
	ActionListing  = "listing graphs from"
	ActionQuerying = "querying"
	ActionUpdate   = "running an update against"

	ActionListStores  = "listing the stores of"
	ActionCreateStore = "creating a store on"
	ActionDeleteStore = "deleting a store from"
)

// maxErrorBody bounds how much of a failed response is copied into an error.
const maxErrorBody = 64 << 10

// UnexpectedHTTPStatusError is the cause recorded when a store answers with
// a status the operation does not accept.
type UnexpectedHTTPStatusError struct {
	Status     string
	StatusCode int
}

func (e UnexpectedHTTPStatusError) Error() string {
	return fmt.Sprintf("received unexpected HTTP status: %s", e.Status)
}

// describeFailure builds the diagnostic text for a failed exchange: no
// response, an empty body, or the body itself verbatim.
func describeFailure(resp *http.Response, what string) (string, int) {
	if resp == nil {
		return fmt.Sprintf("HTTP error occurred while %s: no response was received", what), 0
	}

	prefix := fmt.Sprintf("HTTP error (%s) occurred while %s", statusText(resp), what)
	if resp.Body == nil || resp.Body == http.NoBody {
		return prefix + ": empty response body", resp.StatusCode
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return prefix + ": error obtaining response text", resp.StatusCode
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return prefix + ": empty response body", resp.StatusCode
	}
	return prefix + ": store returned the following error message: " + text, resp.StatusCode
}

func statusText(resp *http.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

// HandleHTTPError turns a failed exchange into a StorageError. resp is nil
// when no response was received; cause is the transport error or the
// unexpected status. action is one of the Action constants.
func HandleHTTPError(driverName string, resp *http.Response, cause error, action string) error {
	msg, code := describeFailure(resp, action+" the store")
	return storagedriver.StorageError{DriverName: driverName, Message: msg, StatusCode: code, Err: cause}
}

// HandleHTTPQueryError turns a failed query exchange into a QueryError.
func HandleHTTPQueryError(driverName string, resp *http.Response, cause error, query string) error {
	msg, code := describeFailure(resp, "making the query")
	return storagedriver.QueryError{DriverName: driverName, Message: msg, Query: query, StatusCode: code, Err: cause}
}

// HandleError translates any error raised while talking to a store into a
// StorageError. Errors that are already typed pass through unchanged so no
// failure is translated twice.
func HandleError(driverName string, err error, action string) error {
	if err == nil || storagedriver.IsTranslated(err) {
		return err
	}
	var status UnexpectedHTTPStatusError
	code := 0
	if errors.As(err, &status) {
		code = status.StatusCode
	}
	return storagedriver.StorageError{
		DriverName: driverName,
		Message:    fmt.Sprintf("an error occurred while %s the store: %v", action, err),
		StatusCode: code,
		Err:        err,
	}
}

// HandleQueryError is HandleError for query operations.
func HandleQueryError(driverName string, err error, query string) error {
	if err == nil || storagedriver.IsTranslated(err) {
		return err
	}
	return storagedriver.QueryError{
		DriverName: driverName,
		Message:    fmt.Sprintf("an error occurred while making the query: %v", err),
		Query:      query,
		Err:        err,
	}
}

// IsSuccess reports whether status is a 2xx code.
func IsSuccess(status int) bool {
	return status >= 200 && status <= 299
}
