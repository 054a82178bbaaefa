// Package health tracks the health of the stores behind a graph store server
// and reports it over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Checker is the interface for a health checker.
type Checker interface {
	// Check returns nil if the service is okay.
	Check(context.Context) error
}

// CheckFunc is a convenience type to create functions that implement
// the Checker interface.
type CheckFunc func(context.Context) error

// Check implements the Checker interface to allow for any
// func(context.Context) error method to be passed as a Checker.
func (cf CheckFunc) Check(ctx context.Context) error {
	return cf(ctx)
}

// Updater implements a health check that is explicitly set.
type Updater interface {
	Checker

	// Update updates the current status of the health check.
	Update(status error)
}

// updater implements Checker and Updater, providing an asynchronous Update
// method. Check returns immediately without running a potentially expensive
// probe.
type updater struct {
	mu     sync.Mutex
	status error
}

func (u *updater) Check(context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.status
}

func (u *updater) Update(status error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.status = status
}

// NewStatusUpdater returns a new updater.
func NewStatusUpdater() Updater {
	return &updater{}
}

// thresholdUpdater reports a failure only once threshold consecutive
// failed updates have been seen.
type thresholdUpdater struct {
	mu        sync.Mutex
	status    error
	threshold int
	count     int
}

func (tu *thresholdUpdater) Check(context.Context) error {
	tu.mu.Lock()
	defer tu.mu.Unlock()

	if tu.count >= tu.threshold || errors.As(tu.status, new(pollingTerminatedErr)) {
		return tu.status
	}

	return nil
}

func (tu *thresholdUpdater) Update(status error) {
	tu.mu.Lock()
	defer tu.mu.Unlock()

	if status == nil {
		tu.count = 0
	} else if tu.count < tu.threshold {
		tu.count++
	}

	tu.status = status
}

// NewThresholdStatusUpdater returns a new thresholdUpdater.
func NewThresholdStatusUpdater(t int) Updater {
	if t > 0 {
		return &thresholdUpdater{threshold: t}
	}
	return NewStatusUpdater()
}

type pollingTerminatedErr struct{ Err error }

func (e pollingTerminatedErr) Error() string {
	return fmt.Sprintf("health: check is not polled: %v", e.Err)
}

func (e pollingTerminatedErr) Unwrap() error {
	return e.Err
}

// Poll periodically polls the checker c at interval and updates the updater u
// with the result. The checker is called with ctx as the context. When ctx is
// done, Poll updates the updater with ctx.Err() and returns.
func Poll(ctx context.Context, u Updater, c Checker, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			u.Update(pollingTerminatedErr{Err: ctx.Err()})
			return
		case <-t.C:
			u.Update(c.Check(ctx))
		}
	}
}

// Registry holds named checks.
type Registry struct {
	mu     sync.RWMutex
	checks map[string]Checker
}

// NewRegistry creates a new registry. This isn't necessary for normal use of
// the package, but may be useful for unit tests so individual tests have
// their own set of checks.
func NewRegistry() *Registry {
	return &Registry{
		checks: make(map[string]Checker),
	}
}

// DefaultRegistry is the default registry where checks are registered. It
// is the registry used by the package level functions.
var DefaultRegistry = NewRegistry()

// Register associates the checker with the provided name. A name can only be
// registered once.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.checks[name]; ok {
		panic("Check already exists: " + name)
	}
	r.checks[name] = check
}

// Register associates the checker with the provided name in the default
// registry.
func Register(name string, check Checker) {
	DefaultRegistry.Register(name, check)
}

// RegisterFunc allows the convenience of registering a checker directly from
// an arbitrary func(context.Context) error.
func (r *Registry) RegisterFunc(name string, check CheckFunc) {
	r.Register(name, check)
}

// RegisterPeriodicThresholdFunc polls check every period until ctx is done
// and registers the result under name. The check reports a failure once
// threshold consecutive polls have failed.
func (r *Registry) RegisterPeriodicThresholdFunc(ctx context.Context, name string, period time.Duration, threshold int, check CheckFunc) {
	u := NewThresholdStatusUpdater(threshold)
	go Poll(ctx, u, check, period)
	r.Register(name, u)
}

// Names returns the registered check names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckStatus returns a map with all the current health check errors.
func (r *Registry) CheckStatus(ctx context.Context) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	statusKeys := make(map[string]string)
	for k, v := range r.checks {
		if err := v.Check(ctx); err != nil {
			statusKeys[k] = err.Error()
		}
	}

	return statusKeys
}

// CheckStatus returns a map with all the current health check errors of the
// default registry.
func CheckStatus(ctx context.Context) map[string]string {
	return DefaultRegistry.CheckStatus(ctx)
}

// StatusHandler returns a JSON blob with all the registered checks that are
// failing and their error. It responds 503 if any check fails, 200
// otherwise.
func (r *Registry) StatusHandler(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	checks := r.CheckStatus(req.Context())
	if len(checks) != 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(checks); err != nil {
		// nolint:errcheck
		json.NewEncoder(w).Encode(struct {
			ServerError string `json:"server_error"`
		}{
			ServerError: "Could not parse error message",
		})
	}
}

// StatusHandler serves the status of the default registry.
func StatusHandler(w http.ResponseWriter, r *http.Request) {
	DefaultRegistry.StatusHandler(w, r)
}

// Handler returns a handler that will return 503 response code if the health
// checks have failed. If everything is okay with the health checks, the
// handler will pass through to the provided handler. Use this handler to
// disable a web application when the health checks fail.
func (r *Registry) Handler(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		checks := r.CheckStatus(req.Context())
		if len(checks) != 0 {
			names := make([]string, 0, len(checks))
			for name := range checks {
				names = append(names, name)
			}
			sort.Strings(names)
			http.Error(w, fmt.Sprintf("health check failed: %v", names), http.StatusServiceUnavailable)
			return
		}

		handler.ServeHTTP(w, req)
	})
}

// Handler protects handler with the checks of the default registry.
func Handler(handler http.Handler) http.Handler {
	return DefaultRegistry.Handler(handler)
}
