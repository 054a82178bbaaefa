package stores

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdfkit/graphstore/configuration"
	"github.com/rdfkit/graphstore/storage/driver/inmemory"
)

func TestParameters(t *testing.T) {
	client := configuration.Client{Timeout: 5 * time.Second, Proxy: "http://proxy.example.org:3128"}
	params := configuration.Parameters{"endpoint": "http://example.org/data", "timeout": "1s"}

	out := Parameters(client, params)
	assert.Equal(t, "1s", out["timeout"], "store parameters win over client settings")
	assert.Equal(t, "http://proxy.example.org:3128", out["proxy"])
	assert.Equal(t, "http://example.org/data", out["endpoint"])
	assert.NotContains(t, out, "middleware")
	assert.NotContains(t, out, "proxyusername")

	_, ok := params["proxy"]
	assert.False(t, ok, "input parameters are not modified")

	out = Parameters(configuration.Client{Retries: 2}, nil)
	assert.NotNil(t, out["middleware"])
}

func TestOpen(t *testing.T) {
	config := &configuration.Configuration{
		Stores: configuration.Stores{
			"a": configuration.Storage{"inmemory": configuration.Parameters{}},
			"b": configuration.Storage{"inmemory": configuration.Parameters{"verify": true}},
		},
	}
	opened, err := Open(context.Background(), config)
	require.NoError(t, err)
	assert.Len(t, opened, 2)
	assert.Equal(t, "inmemory", opened["a"].Name())

	config.Stores["c"] = configuration.Storage{"nosuchdriver": configuration.Parameters{}}
	_, err = Open(context.Background(), config)
	assert.ErrorContains(t, err, "store c")
}

func TestRetryMiddleware(t *testing.T) {
	assert.Nil(t, RetryMiddleware(configuration.Client{}))

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mw := RetryMiddleware(configuration.Client{Retries: 2, RetryWaitMin: time.Millisecond, RetryWaitMax: 5 * time.Millisecond})
	client := &http.Client{Transport: mw(http.DefaultTransport)}
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestRetryMiddlewarePassesLastResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	mw := RetryMiddleware(configuration.Client{Retries: 1, RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond})
	client := &http.Client{Transport: mw(http.DefaultTransport)}
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestOpenStore(t *testing.T) {
	config := &configuration.Configuration{
		Stores: configuration.Stores{"a": configuration.Storage{"inmemory": configuration.Parameters{}}},
	}
	p, err := OpenStore(context.Background(), config, "a")
	require.NoError(t, err)
	assert.Equal(t, "inmemory", p.Name())

	_, err = OpenStore(context.Background(), config, "missing")
	assert.ErrorContains(t, err, `"missing"`)
}

func TestOpenStoreLimitsConcurrency(t *testing.T) {
	config := &configuration.Configuration{
		Stores: configuration.Stores{"a": configuration.Storage{"inmemory": configuration.Parameters{}}},
	}
	p, err := OpenStore(context.Background(), config, "a")
	require.NoError(t, err)
	assert.Nil(t, p.(*inmemory.Driver).Executor, "unbounded by default")

	config.Client.Concurrency = 2
	p, err = OpenStore(context.Background(), config, "a")
	require.NoError(t, err)
	assert.NotNil(t, p.(*inmemory.Driver).Executor)
}
