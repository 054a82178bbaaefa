// Package server runs the graph store HTTP server and hosts the commands of
// the graphstore binary.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" // debug handlers on the default mux
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docker/go-metrics"
	gorhandlers "github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"

	"github.com/rdfkit/graphstore/configuration"
	"github.com/rdfkit/graphstore/handlers"
	"github.com/rdfkit/graphstore/health"
	"github.com/rdfkit/graphstore/internal/dcontext"
	"github.com/rdfkit/graphstore/version"
)

const (
	// defaultAddr is used when the configuration names no address.
	defaultAddr = ":8080"

	// defaultMetricsPath is where Prometheus metrics are exported on the
	// debug server when no path is configured.
	defaultMetricsPath = "/metrics"
)

// quit is notified of the signals that stop the server.
var quit = make(chan os.Signal, 1)

func init() {
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
}

// A Server represents a complete instance of the graph store server.
type Server struct {
	config *configuration.Configuration
	app    *handlers.App
	server *http.Server
	health *health.Registry

	// stopChecks ends the polling of health checks.
	stopChecks context.CancelFunc
}

// NewServer creates a new server from a context and configuration struct.
// Every configured store is opened before it returns.
func NewServer(ctx context.Context, config *configuration.Configuration) (*Server, error) {
	ctx = dcontext.WithVersion(ctx, version.Version())

	var err error
	ctx, err = configureLogging(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error configuring logger: %v", err)
	}

	app, err := handlers.NewApp(ctx, config)
	if err != nil {
		return nil, err
	}

	registry := health.NewRegistry()
	checksCtx, stopChecks := context.WithCancel(ctx)
	app.RegisterHealthChecks(checksCtx, registry)

	var handler http.Handler = app
	handler = alive("/healthz", handler)
	handler = registry.Handler(handler)
	handler = gorhandlers.RecoveryHandler(
		gorhandlers.RecoveryLogger(dcontext.GetLogger(app).WithField("component", "recovery")),
		gorhandlers.PrintRecoveryStack(true),
	)(handler)
	if !config.Log.AccessLog.Disabled {
		handler = gorhandlers.CombinedLoggingHandler(os.Stdout, handler)
	}

	return &Server{
		config: config,
		app:    app,
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 30 * time.Second,
		},
		health:     registry,
		stopChecks: stopChecks,
	}, nil
}

// ListenAndServe listens on the configured address and serves until a stop
// signal arrives or serving fails.
func (s *Server) ListenAndServe() error {
	addr := s.config.HTTP.Addr
	if addr == "" {
		addr = defaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln, and on the debug address when one is configured,
// until a stop signal arrives or serving fails. On a stop signal open
// connections are drained for up to the configured drain timeout.
func (s *Server) Serve(ln net.Listener) error {
	defer s.stopChecks()

	config := s.config
	if config.HTTP.Debug.Addr != "" {
		go debugServer(s.app, config, s.health)
	}

	dcontext.GetLogger(s.app).Infof("listening on %v", ln.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-quit:
		dcontext.GetLogger(s.app).Infof("stopping server gracefully. Draining connections for %s", config.HTTP.DrainTimeout)
		ctx, cancel := context.WithTimeout(context.Background(), config.HTTP.DrainTimeout)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
}

func debugServer(ctx context.Context, config *configuration.Configuration, registry *health.Registry) {
	dcontext.GetLogger(ctx).Infof("debug server listening %v", config.HTTP.Debug.Addr)
	if err := http.ListenAndServe(config.HTTP.Debug.Addr, debugMux(ctx, config, registry)); err != nil {
		dcontext.GetLogger(ctx).Fatalf("error listening on debug interface: %v", err)
	}
}

// debugMux serves the pprof handlers, the health status and, when enabled,
// Prometheus metrics.
func debugMux(ctx context.Context, config *configuration.Configuration, registry *health.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	mux.HandleFunc("/debug/health", registry.StatusHandler)
	if config.HTTP.Debug.Prometheus.Enabled {
		path := config.HTTP.Debug.Prometheus.Path
		if path == "" {
			path = defaultMetricsPath
		}
		mux.Handle(path, metrics.Handler())
		dcontext.GetLogger(ctx).Infof("providing prometheus metrics on %s", path)
	}
	return mux
}

// configureLogging prepares the context with a logger using the
// configuration.
func configureLogging(ctx context.Context, config *configuration.Configuration) (context.Context, error) {
	logrus.SetLevel(logLevel(config.Log.Level))
	logrus.SetReportCaller(config.Log.ReportCaller)

	formatter := config.Log.Formatter
	if formatter == "" {
		formatter = "text" // default formatter
	}

	switch formatter {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:   time.RFC3339Nano,
			DisableHTMLEscape: true,
		})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	default:
		return ctx, fmt.Errorf("unsupported logging formatter: %q", config.Log.Formatter)
	}

	logrus.Debugf("using %q logging formatter", formatter)

	if len(config.Log.Fields) > 0 {
		// build up the static fields, if present.
		fields := make(map[any]any, len(config.Log.Fields))
		for k, v := range config.Log.Fields {
			fields[k] = v
		}
		ctx = dcontext.WithLogger(ctx, dcontext.GetLoggerWithFields(ctx, fields))
	}

	dcontext.SetDefaultLogger(dcontext.GetLogger(ctx))
	return ctx, nil
}

func logLevel(level configuration.Loglevel) logrus.Level {
	if level == "" {
		return logrus.InfoLevel
	}
	l, err := logrus.ParseLevel(string(level))
	if err != nil {
		l = logrus.InfoLevel
		logrus.Warnf("error parsing level %q: %v, using %q", level, err, l)
	}

	return l
}

// alive simply wraps the handler with a route that always returns an http 200
// response when the path is matched. If the path is not matched, the request
// is passed to the provided handler. There is no guarantee of anything but
// that the server is up.
func alive(path string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == path {
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			return
		}

		handler.ServeHTTP(w, r)
	})
}
