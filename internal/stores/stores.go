// Package stores opens the stores named in a configuration.
package stores

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"

	"github.com/rdfkit/graphstore/configuration"
	"github.com/rdfkit/graphstore/internal/dcontext"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
	"github.com/rdfkit/graphstore/storage/driver/base"
	"github.com/rdfkit/graphstore/storage/driver/factory"
)

// maxConcurrentOpens bounds the number of stores verified at once.
const maxConcurrentOpens = 4

// Open creates a provider for every store in config. Creation stops at the
// first failure.
func Open(ctx context.Context, config *configuration.Configuration) (map[string]storagedriver.StorageProvider, error) {
	var (
		mu     sync.Mutex
		opened = make(map[string]storagedriver.StorageProvider, len(config.Stores))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentOpens)
	for _, name := range config.Stores.Names() {
		name, storage := name, config.Stores[name]
		g.Go(func() error {
			p, err := create(gctx, config.Client, name, storage)
			if err != nil {
				return err
			}
			mu.Lock()
			opened[name] = p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return opened, nil
}

// OpenStore creates the provider of the single store name.
func OpenStore(ctx context.Context, config *configuration.Configuration, name string) (storagedriver.StorageProvider, error) {
	storage, ok := config.Stores[name]
	if !ok {
		return nil, fmt.Errorf("no store named %q is configured", name)
	}
	return create(ctx, config.Client, name, storage)
}

func create(ctx context.Context, client configuration.Client, name string, storage configuration.Storage) (storagedriver.StorageProvider, error) {
	p, err := factory.Create(ctx, storage.Type(), Parameters(client, storage.Parameters()))
	if err != nil {
		return nil, fmt.Errorf("unable to configure store %s: %w", name, err)
	}
	limitConcurrency(p, client.Concurrency)
	dcontext.GetLoggerWithFields(ctx, map[any]any{"store": name, "driver": storage.Type()}).Info("store configured")
	return p, nil
}

// limitConcurrency bounds the asynchronous calls of p to n at a time when p
// runs them through a base executor.
func limitConcurrency(p storagedriver.StorageProvider, n int) {
	if n <= 0 {
		return
	}
	if e, ok := p.(interface{ SetExecutor(base.Executor) }); ok {
		e.SetExecutor(base.NewLimitedExecutor(n))
	}
}

// Parameters returns a copy of params completed with the client settings it
// does not set itself. Drivers ignore the parameters they do not use.
func Parameters(client configuration.Client, params configuration.Parameters) map[string]any {
	out := make(map[string]any, len(params)+5)
	for k, v := range params {
		out[k] = v
	}
	setDefault := func(key string, value any, set bool) {
		if _, ok := out[key]; !ok && set {
			out[key] = value
		}
	}
	setDefault("timeout", client.Timeout, client.Timeout > 0)
	setDefault("proxy", client.Proxy, client.Proxy != "")
	setDefault("proxyusername", client.ProxyUsername, client.ProxyUsername != "")
	setDefault("proxypassword", client.ProxyPassword, client.ProxyPassword != "")
	setDefault("middleware", RetryMiddleware(client), client.Retries > 0)
	return out
}

// RetryMiddleware returns a transport wrapper retrying failed requests as
// configured by client, or nil when retries are disabled. Once retries are
// exhausted the last response is passed through so that its status can be
// reported.
func RetryMiddleware(client configuration.Client) func(http.RoundTripper) http.RoundTripper {
	if client.Retries <= 0 {
		return nil
	}
	return func(next http.RoundTripper) http.RoundTripper {
		c := retryablehttp.NewClient()
		c.HTTPClient = &http.Client{Transport: next}
		c.RetryMax = client.Retries
		if client.RetryWaitMin > 0 {
			c.RetryWaitMin = client.RetryWaitMin
		}
		if client.RetryWaitMax > 0 {
			c.RetryWaitMax = client.RetryWaitMax
		}
		c.ErrorHandler = retryablehttp.PassthroughErrorHandler
		c.Logger = retryLogger{}
		return &retryablehttp.RoundTripper{Client: c}
	}
}

// retryLogger sends retry diagnostics to the default logger at debug level.
type retryLogger struct{}

func (retryLogger) entry(keysAndValues []any) dcontext.Logger {
	fields := make(map[any]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[keysAndValues[i]] = keysAndValues[i+1]
	}
	return dcontext.GetLoggerWithFields(context.Background(), fields)
}

func (l retryLogger) Error(msg string, keysAndValues ...any) {
	l.entry(keysAndValues).Error(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...any) {
	l.entry(keysAndValues).Debug(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...any) {
	l.entry(keysAndValues).Debug(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...any) {
	l.entry(keysAndValues).Warn(msg)
}
