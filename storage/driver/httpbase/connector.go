// Package httpbase is the request and response machinery shared by drivers
// whose backing store is an HTTP endpoint: request construction with proxy
// and credential injection, Accept header fix-ups, streaming uploads and
// downloads, and the translation of failed exchanges into the typed errors
// of the storagedriver package.
//
// The pipeline never retries. Callers wanting a retry policy install one
// through Options.Middleware.
package httpbase

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// ErrNoProxy is returned when proxy credentials are set without a proxy.
var ErrNoProxy = errors.New("cannot set proxy credentials when no proxy is configured")

// Options are the driver parameters shared by every HTTP backed driver.
type Options struct {
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Proxy         string        `mapstructure:"proxy"`
	ProxyUsername string        `mapstructure:"proxyusername"`
	ProxyPassword string        `mapstructure:"proxypassword"`

	// Middleware wraps the transport of every request, for example with a
	// caller supplied retry policy.
	Middleware func(http.RoundTripper) http.RoundTripper `mapstructure:"middleware"`

	// Observer is told about every request in addition to the default
	// logging and metrics observers.
	Observer Observer `mapstructure:"observer"`
}

// RequestModifier changes a request before it is sent, for example to add
// authentication a store expects in the query string.
type RequestModifier interface {
	ModifyRequest(*http.Request) error
}

// RequestModifierFunc adapts a function to a RequestModifier.
type RequestModifierFunc func(*http.Request) error

// ModifyRequest calls f(r).
func (f RequestModifierFunc) ModifyRequest(r *http.Request) error {
	return f(r)
}

// Connector holds the configuration of an HTTP store connection and runs
// the request pipeline. Reconfiguring a connector while requests are in
// flight is the caller's responsibility; settings apply to requests made
// after the change.
type Connector struct {
	DriverName string

	// AcceptFilter rewrites the Accept header of every request. A nil
	// filter only tidies separators.
	AcceptFilter func(accept string) string

	// Modifiers run in order on every request.
	Modifiers []RequestModifier

	// Observer is told about every request and state transition.
	Observer Observer

	mu        sync.RWMutex
	username  string
	password  string
	timeout   time.Duration
	proxy     *url.URL
	proxyUser string
	proxyPass string

	transportOnce sync.Once
	transport     http.RoundTripper
	middleware    func(http.RoundTripper) http.RoundTripper
}

// New returns a connector for the named driver configured from opts.
func New(driverName string, opts Options) (*Connector, error) {
	c := &Connector{
		DriverName: driverName,
		username:   opts.Username,
		password:   opts.Password,
		timeout:    opts.Timeout,
		middleware: opts.Middleware,
	}
	observers := Observers{LogObserver{DriverName: driverName}, MetricsObserver{DriverName: driverName}}
	if opts.Observer != nil {
		observers = append(observers, opts.Observer)
	}
	c.Observer = observers

	if opts.Proxy != "" {
		if err := c.SetProxy(opts.Proxy); err != nil {
			return nil, err
		}
		if opts.ProxyUsername != "" || opts.ProxyPassword != "" {
			if err := c.SetProxyCredentials(opts.ProxyUsername, opts.ProxyPassword); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// SetProxy routes every subsequent request through the proxy at rawURL.
func (c *Connector) SetProxy(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s: invalid proxy address %q", c.DriverName, rawURL)
	}
	c.mu.Lock()
	c.proxy = u
	c.mu.Unlock()
	return nil
}

// Proxy returns the configured proxy address without credentials, or nil.
func (c *Connector) Proxy() *url.URL {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.proxy == nil {
		return nil
	}
	u := *c.proxy
	return &u
}

// ClearProxy removes the proxy and its credentials.
func (c *Connector) ClearProxy() {
	c.mu.Lock()
	c.proxy = nil
	c.proxyUser, c.proxyPass = "", ""
	c.mu.Unlock()
}

// SetProxyCredentials sets the credentials presented to the proxy.
func (c *Connector) SetProxyCredentials(username, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proxy == nil {
		return ErrNoProxy
	}
	c.proxyUser, c.proxyPass = username, password
	return nil
}

// ClearProxyCredentials keeps the proxy but uses it anonymously.
func (c *Connector) ClearProxyCredentials() {
	c.mu.Lock()
	c.proxyUser, c.proxyPass = "", ""
	c.mu.Unlock()
}

// SetCredentials sets the basic authentication credentials sent to the
// store. An empty username disables authentication.
func (c *Connector) SetCredentials(username, password string) {
	c.mu.Lock()
	c.username, c.password = username, password
	c.mu.Unlock()
}

// Timeout returns the per request timeout; zero means none.
func (c *Connector) Timeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeout
}

// SetTimeout bounds each subsequent request. An expired timeout surfaces as
// a transport failure.
func (c *Connector) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

func (c *Connector) proxyFor(*http.Request) (*url.URL, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.proxy == nil {
		return nil, nil
	}
	u := *c.proxy
	if c.proxyUser != "" || c.proxyPass != "" {
		u.User = url.UserPassword(c.proxyUser, c.proxyPass)
	}
	return &u, nil
}

func (c *Connector) client() *http.Client {
	c.transportOnce.Do(func() {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.Proxy = c.proxyFor
		var rt http.RoundTripper = t
		if c.middleware != nil {
			rt = c.middleware(rt)
		}
		c.transport = rt
	})
	return &http.Client{Transport: c.transport, Timeout: c.Timeout()}
}

// CleanAcceptHeader removes the artifacts token removal leaves in an Accept
// header: empty entries, doubled or trailing separators and parameters
// whose media type is gone.
func CleanAcceptHeader(accept string) string {
	parts := strings.Split(accept, ",")
	kept := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, ";") {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, ",")
}

// StripMediaTypes returns an Accept filter dropping the given media types,
// whatever their parameters.
func StripMediaTypes(mediaTypes ...string) func(string) string {
	drop := make(map[string]struct{}, len(mediaTypes))
	for _, mt := range mediaTypes {
		drop[strings.ToLower(mt)] = struct{}{}
	}
	return func(accept string) string {
		parts := strings.Split(accept, ",")
		kept := parts[:0]
		for _, p := range parts {
			mt := strings.ToLower(strings.TrimSpace(strings.SplitN(p, ";", 2)[0]))
			if _, ok := drop[mt]; ok {
				continue
			}
			kept = append(kept, p)
		}
		return CleanAcceptHeader(strings.Join(kept, ","))
	}
}

// FilterAccept applies the connector's Accept filter and cleanup to accept.
func (c *Connector) FilterAccept(accept string) string {
	if c.AcceptFilter != nil {
		accept = c.AcceptFilter(accept)
	}
	return CleanAcceptHeader(accept)
}

// SerializeStandardConfig describes the credentials, timeout and proxy of
// the connector.
func (c *Connector) SerializeStandardConfig(ctx *storagedriver.SerializationContext) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx.SerializeCredentials(c.username, c.password)
	ctx.SerializeTimeout(c.timeout)
	if c.proxy != nil {
		ctx.SerializeProxy(c.proxy.String(), c.proxyUser, c.proxyPass)
	}
}
