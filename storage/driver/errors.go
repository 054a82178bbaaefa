package driver

import (
	"errors"
	"fmt"
)

// ErrUnsupported is matched by every UnsupportedError through errors.Is.
var ErrUnsupported = errors.New("operation not supported")

// UnsupportedError is returned when a driver is asked for an operation its
// capabilities deny.
type UnsupportedError struct {
	DriverName string
	Operation  Operation
	Reason     string
}

func (err UnsupportedError) Error() string {
	msg := fmt.Sprintf("%s: %s is not supported by this connector", err.DriverName, err.Operation)
	if err.Reason != "" {
		msg += ": " + err.Reason
	}
	return msg
}

// Is makes errors.Is(err, ErrUnsupported) hold.
func (err UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// StorageError reports a transport or protocol failure. StatusCode is zero
// when no response was received.
type StorageError struct {
	DriverName string
	Message    string
	StatusCode int
	Err        error
}

func (err StorageError) Error() string {
	if err.DriverName == "" {
		return err.Message
	}
	return err.DriverName + ": " + err.Message
}

// Unwrap returns the underlying cause.
func (err StorageError) Unwrap() error {
	return err.Err
}

// QueryError reports a failed query. It carries the same causes as
// StorageError but lets callers tell a failed read from a failed write.
type QueryError struct {
	DriverName string
	Message    string
	Query      string
	StatusCode int
	Err        error
}

func (err QueryError) Error() string {
	if err.DriverName == "" {
		return err.Message
	}
	return err.DriverName + ": " + err.Message
}

// Unwrap returns the underlying cause.
func (err QueryError) Unwrap() error {
	return err.Err
}

// ParseError is returned when a response body cannot be read as its declared
// content type.
type ParseError struct {
	DriverName string
	MediaType  string
	Err        error
}

func (err ParseError) Error() string {
	return fmt.Sprintf("%s: unable to parse %q content: %v", err.DriverName, err.MediaType, err.Err)
}

// Unwrap returns the underlying cause.
func (err ParseError) Unwrap() error {
	return err.Err
}

// InvalidGraphURIError is returned when a graph identifier is neither empty
// nor an absolute URI.
type InvalidGraphURIError struct {
	DriverName string
	GraphURI   string
}

func (err InvalidGraphURIError) Error() string {
	return fmt.Sprintf("%s: invalid graph URI: %q", err.DriverName, err.GraphURI)
}

// TransactionError is returned on misuse of a transactional store, such as
// committing without an open transaction.
type TransactionError struct {
	DriverName string
	Detail     string
}

func (err TransactionError) Error() string {
	return fmt.Sprintf("%s: transaction error: %s", err.DriverName, err.Detail)
}

// StoreNotFoundError is returned by a StorageServer for an unknown store.
type StoreNotFoundError struct {
	DriverName string
	StoreID    string
}

func (err StoreNotFoundError) Error() string {
	return fmt.Sprintf("%s: store not found: %s", err.DriverName, err.StoreID)
}

// IsTranslated reports whether err is already one of the typed errors of
// this package and must not be wrapped again.
func IsTranslated(err error) bool {
	var (
		se StorageError
		qe QueryError
		pe ParseError
		ue UnsupportedError
		ie InvalidGraphURIError
	)
	return errors.As(err, &se) || errors.As(err, &qe) || errors.As(err, &pe) ||
		errors.As(err, &ue) || errors.As(err, &ie)
}
