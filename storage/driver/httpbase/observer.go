package httpbase

import (
	"context"
	"net/http"
	"time"

	"github.com/rdfkit/graphstore/internal/dcontext"
	prometheus "github.com/rdfkit/graphstore/metrics"
)

// State is the progress of a single pipelined operation.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateUploading
	StateAwaitingResponse
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRequesting:
		return "Requesting"
	case StateUploading:
		return "Uploading"
	case StateAwaitingResponse:
		return "AwaitingResponse"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	}
	return "Unknown"
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Observer is told about every request a Connector makes. Implementations
// must be safe for concurrent use.
type Observer interface {
	// Transition reports a state change of the operation sending req.
	Transition(ctx context.Context, req *http.Request, from, to State)

	// Response reports the outcome of req. resp is nil and err set when
	// no response was received.
	Response(ctx context.Context, req *http.Request, resp *http.Response, err error, elapsed time.Duration)
}

// Observers fans out to several observers in order.
type Observers []Observer

// Transition implements Observer.
func (o Observers) Transition(ctx context.Context, req *http.Request, from, to State) {
	for _, obs := range o {
		obs.Transition(ctx, req, from, to)
	}
}

// Response implements Observer.
func (o Observers) Response(ctx context.Context, req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
	for _, obs := range o {
		obs.Response(ctx, req, resp, err, elapsed)
	}
}

// LogObserver traces requests and responses at debug level through the
// context logger.
type LogObserver struct {
	DriverName string
}

// Transition implements Observer.
func (o LogObserver) Transition(ctx context.Context, req *http.Request, from, to State) {
	dcontext.GetLoggerWithFields(ctx, map[any]any{
		"driver":              o.DriverName,
		"http.request.method": req.Method,
		"http.request.uri":    req.URL.Redacted(),
	}).Debugf("%s -> %s", from, to)
}

// Response implements Observer.
func (o LogObserver) Response(ctx context.Context, req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
	fields := map[any]any{
		"driver":                o.DriverName,
		"http.request.method":   req.Method,
		"http.request.uri":      req.URL.Redacted(),
		"http.response.elapsed": elapsed,
	}
	if resp != nil {
		fields["http.response.status"] = resp.StatusCode
		fields["http.response.contenttype"] = resp.Header.Get("Content-Type")
	}
	logger := dcontext.GetLoggerWithFields(ctx, fields)
	if err != nil {
		logger.WithError(err).Debug("store request failed")
		return
	}
	logger.Debug("store response")
}

// MetricsObserver counts responses by status class.
type MetricsObserver struct {
	DriverName string
}

// Transition implements Observer.
func (MetricsObserver) Transition(context.Context, *http.Request, State, State) {}

// Response implements Observer.
func (o MetricsObserver) Response(ctx context.Context, req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
	class := "none"
	if resp != nil {
		class = string(rune('0'+resp.StatusCode/100)) + "xx"
	}
	prometheus.HTTPResponses.WithValues(o.DriverName, class).Inc(1)
}

// exchange tracks the state of one operation and reports transitions.
type exchange struct {
	ctx      context.Context
	req      *http.Request
	observer Observer
	state    State
	started  time.Time
}

func (x *exchange) to(s State) {
	if x.state.Terminal() || x.state == s {
		return
	}
	from := x.state
	x.state = s
	if x.observer != nil {
		x.observer.Transition(x.ctx, x.req, from, s)
	}
}

func (x *exchange) responded(resp *http.Response, err error) {
	if x.observer != nil {
		x.observer.Response(x.ctx, x.req, resp, err, time.Since(x.started))
	}
}

// finish moves the exchange to its terminal state according to err and
// returns err.
func (x *exchange) finish(err error) error {
	if err != nil {
		x.to(StateFailed)
	} else {
		x.to(StateCompleted)
	}
	return err
}
