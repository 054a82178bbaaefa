// Package dydra provides a driver for repositories hosted on Dydra, which
// speaks the Sesame protocol with an API key passed as a query parameter.
package dydra

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	storagedriver "github.com/rdfkit/graphstore/storage/driver"
	"github.com/rdfkit/graphstore/storage/driver/allegrograph"
	"github.com/rdfkit/graphstore/storage/driver/factory"
	"github.com/rdfkit/graphstore/storage/driver/httpbase"
)

const (
	driverName = "dydra"

	// DefaultBaseURL is the Dydra service root.
	DefaultBaseURL = "https://dydra.com/"

	apiKeyParameter = "auth_token"
)

func init() {
	factory.Register(driverName, &dydraDriverFactory{})
}

// dydraDriverFactory implements the factory.StorageDriverFactory interface.
type dydraDriverFactory struct{}

func (factory *dydraDriverFactory) Create(parameters map[string]any) (storagedriver.StorageProvider, error) {
	return FromParameters(parameters)
}

// Options configure a Driver.
type Options struct {
	// Account owns the repository.
	Account string `mapstructure:"account"`

	// Store is the repository name within the account.
	Store string `mapstructure:"store"`

	// APIKey authenticates requests. Basic credentials from the embedded
	// options are used as well when set.
	APIKey string `mapstructure:"apikey"`

	// BaseURL overrides DefaultBaseURL.
	BaseURL string `mapstructure:"baseurl"`

	httpbase.Options `mapstructure:",squash"`
}

// AcceptFilter drops the HTML media types Dydra answers with its web
// interface instead of data.
var AcceptFilter = httpbase.StripMediaTypes("text/html", "application/xhtml+xml")

// Driver is a storagedriver.UpdateableStorage implementation for a Dydra
// repository.
type Driver struct {
	*allegrograph.Driver

	account string
	apiKey  string
}

var _ storagedriver.UpdateableStorage = &Driver{}

// FromParameters constructs a new Driver with a given parameters map
// Required parameters:
// - account
// - store
// Optional parameters:
// - apikey
// - baseurl
// - username, password
// - timeout
// - proxy, proxyusername, proxypassword
func FromParameters(parameters map[string]any) (*Driver, error) {
	var opts Options
	if err := storagedriver.DecodeParameters(parameters, &opts); err != nil {
		return nil, err
	}
	return New(opts)
}

// New constructs a new Driver for the repository named in opts.
func New(opts Options) (*Driver, error) {
	if opts.Account == "" || opts.Store == "" {
		return nil, fmt.Errorf("%s: account and store parameters are required", driverName)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	root, err := url.Parse(opts.BaseURL)
	if err != nil || !root.IsAbs() || root.Host == "" {
		return nil, fmt.Errorf("%s: invalid base url %q", driverName, opts.BaseURL)
	}
	if !strings.HasSuffix(root.Path, "/") {
		root.Path += "/"
	}

	conn, err := httpbase.New(driverName, opts.Options)
	if err != nil {
		return nil, err
	}
	conn.AcceptFilter = AcceptFilter
	if opts.APIKey != "" {
		conn.Modifiers = append(conn.Modifiers, apiKeyModifier(opts.APIKey))
	}

	d := allegrograph.NewWithConnector(driverName, root.JoinPath(opts.Account, opts.Store), conn)
	d.Store = opts.Store
	return &Driver{Driver: d, account: opts.Account, apiKey: opts.APIKey}, nil
}

// apiKeyModifier adds the API key to the query string of every request.
func apiKeyModifier(key string) httpbase.RequestModifier {
	return httpbase.RequestModifierFunc(func(r *http.Request) error {
		q := r.URL.Query()
		q.Set(apiKeyParameter, key)
		r.URL.RawQuery = q.Encode()
		return nil
	})
}

// SerializeConfiguration describes the driver, its repository and API key.
func (d *Driver) SerializeConfiguration(ctx *storagedriver.SerializationContext) error {
	ctx.SerializeDriver(storagedriver.ConfigClassStorageProvider, driverName, "Dydra Repository")
	ctx.AssertLiteral(storagedriver.ConfigPropertyServer, d.Repository())
	ctx.AssertLiteral(storagedriver.ConfigPropertyCatalog, d.account)
	ctx.AssertLiteral(storagedriver.ConfigPropertyStore, d.Store)
	ctx.AssertLiteral(storagedriver.ConfigPropertyAPIKey, d.apiKey)
	d.Connector().SerializeStandardConfig(ctx)
	return nil
}
