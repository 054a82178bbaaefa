package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdfkit/graphstore/configuration"
	"github.com/rdfkit/graphstore/health"
	"github.com/rdfkit/graphstore/internal/dcontext"
	"github.com/rdfkit/graphstore/rdf"
	"github.com/rdfkit/graphstore/storage/driver/inmemory"
)

func testConfiguration() *configuration.Configuration {
	config := &configuration.Configuration{
		Stores: configuration.Stores{"main": configuration.Storage{"inmemory": configuration.Parameters{}}},
	}
	config.Log.AccessLog.Disabled = true
	config.HTTP.DrainTimeout = 5 * time.Second
	return config
}

func TestConfigureLogging(t *testing.T) {
	config := testConfiguration()
	config.Log.Level = "debug"
	config.Log.Formatter = "json"
	config.Log.Fields = map[string]interface{}{"environment": "test"}

	ctx, err := configureLogging(context.Background(), config)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	entry, ok := dcontext.GetLogger(ctx).(*logrus.Entry)
	require.True(t, ok)
	assert.Equal(t, "test", entry.Data["environment"])

	config.Log.Formatter = "xml"
	_, err = configureLogging(context.Background(), config)
	assert.ErrorContains(t, err, "xml")

	config.Log.Formatter = ""
	config.Log.Level = "info"
	_, err = configureLogging(context.Background(), config)
	require.NoError(t, err)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logrus.WarnLevel, logLevel("warn"))
	assert.Equal(t, logrus.InfoLevel, logLevel(""))
	assert.Equal(t, logrus.InfoLevel, logLevel("loud"))
}

func TestAlive(t *testing.T) {
	called := false
	handler := alive("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.False(t, called)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stores", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestGracefulShutdown(t *testing.T) {
	srv, err := NewServer(context.Background(), testConfiguration())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() {
		served <- srv.Serve(ln)
	}()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/stores")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "main")

	quit <- os.Interrupt
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = net.Dial("tcp", ln.Addr().String())
	assert.Error(t, err, "the listener is closed after shutdown")
}

func TestDebugMux(t *testing.T) {
	config := testConfiguration()
	config.HTTP.Debug.Prometheus.Enabled = true
	mux := debugMux(context.Background(), config, health.NewRegistry())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "{}", rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnhealthyServerRejectsRequests(t *testing.T) {
	config := testConfiguration()
	drain := filepath.Join(t.TempDir(), "drain")
	require.NoError(t, os.WriteFile(drain, nil, 0o600))
	config.Health.FileCheckers = []configuration.FileChecker{{Interval: time.Millisecond, File: drain}}

	srv, err := NewServer(context.Background(), config)
	require.NoError(t, err)
	defer srv.stopChecks()

	deadline := time.Now().Add(time.Second)
	for len(srv.health.CheckStatus(context.Background())) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stores", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), drain)
}

func TestResolveConfiguration(t *testing.T) {
	_, err := resolveConfiguration(nil)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("version: 0.1\nstores:\n  main:\n    inmemory: {}\n"), 0o600))

	config, err := resolveConfiguration([]string{path})
	require.NoError(t, err)
	assert.Equal(t, "inmemory", config.Stores["main"].Type())

	t.Setenv(configurationPathEnv, path)
	config, err = resolveConfiguration(nil)
	require.NoError(t, err)
	assert.Len(t, config.Stores, 1)
}

func triple(o string) rdf.Triple {
	return rdf.NewTriple(rdf.MustIRI("http://example.org/s"), rdf.MustIRI("http://example.org/p"), rdf.MustIRI("http://example.org/"+o))
}

func storeWith(t *testing.T, names ...string) *inmemory.Driver {
	t.Helper()
	d := inmemory.New()
	for _, name := range names {
		g, err := rdf.NewGraph(name)
		require.NoError(t, err)
		g.Assert(triple("o"))
		require.NoError(t, d.SaveGraph(context.Background(), g))
	}
	return d
}

func TestListGraphsCommand(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, listGraphs(context.Background(), &out, storeWith(t, "http://example.org/b", "http://example.org/a")))
	assert.Equal(t, "http://example.org/a\nhttp://example.org/b\n", out.String())
}

func TestExportCommand(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, exportGraph(context.Background(), &out, storeWith(t, "http://example.org/a"), "http://example.org/a"))
	assert.Equal(t, "<http://example.org/s> <http://example.org/p> <http://example.org/o> .\n", out.String())

	out.Reset()
	require.NoError(t, exportGraph(context.Background(), &out, inmemory.New(), "http://example.org/missing"))
	assert.Empty(t, out.String())
}

func TestCopyCommand(t *testing.T) {
	defer func() { graphURI, copyTargetGraph, copyMove = "", "", false }()
	ctx := context.Background()
	var out bytes.Buffer

	src := storeWith(t, "http://example.org/a", "http://example.org/b")
	dst := inmemory.New()
	copyConcurrency = 2
	require.NoError(t, copyGraphs(ctx, &out, src, dst))
	assert.Contains(t, out.String(), "copied 3 graphs")

	graphURI, copyTargetGraph, copyMove = "http://example.org/a", "http://example.org/c", true
	require.NoError(t, copyGraphs(ctx, &out, src, dst))

	graphs, err := src.ListGraphs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.org/b"}, graphs)

	graphs, err = dst.ListGraphs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.org/a", "http://example.org/b", "http://example.org/c"}, graphs)
}
