package configuration

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"time"
)

// DefaultClientTimeout bounds store requests when no client timeout is set.
const DefaultClientTimeout = 30 * time.Second

// Configuration is a versioned graph store configuration, intended to be
// provided by a yaml file, and optionally modified by environment variables.
type Configuration struct {
	// Version is the version which defines the format of the rest of the configuration
	Version Version `yaml:"version"`

	// Log supports setting various parameters related to the logging
	// subsystem.
	Log Log `yaml:"log"`

	// Stores names the stores served, each with the driver backing it.
	Stores Stores `yaml:"stores"`

	// HTTP contains configuration parameters for the Graph Store Protocol
	// server.
	HTTP HTTP `yaml:"http,omitempty"`

	// Client configures the requests HTTP backed drivers make to their
	// stores.
	Client Client `yaml:"client,omitempty"`

	// Health provides the configuration section for health checks.
	Health Health `yaml:"health,omitempty"`
}

// Log configures the logging subsystem.
type Log struct {
	// AccessLog configures access logging.
	AccessLog struct {
		// Disabled disables access logging.
		Disabled bool `yaml:"disabled,omitempty"`
	} `yaml:"accesslog,omitempty"`

	// Level is the granularity at which operations are logged.
	Level Loglevel `yaml:"level,omitempty"`

	// Formatter overrides the default formatter with another. Options
	// include "text" and "json".
	Formatter string `yaml:"formatter,omitempty"`

	// Fields allows users to specify static string fields to include in
	// the logger context.
	Fields map[string]interface{} `yaml:"fields,omitempty"`

	// ReportCaller allows user to configure the log to report the caller
	ReportCaller bool `yaml:"reportcaller,omitempty"`
}

// HTTP configures the server.
type HTTP struct {
	// Addr specifies the bind address for the server.
	Addr string `yaml:"addr,omitempty"`

	// Prefix specifies the path prefix every route is served under.
	Prefix string `yaml:"prefix,omitempty"`

	// DrainTimeout is the amount of time to wait for connections to drain
	// before shutting down when the server receives a stop signal.
	DrainTimeout time.Duration `yaml:"draintimeout,omitempty"`

	// Headers is a set of headers to include in HTTP responses.
	Headers http.Header `yaml:"headers,omitempty"`

	// Debug configures the http debug interface, if specified. This can
	// include services such as metrics export.
	Debug struct {
		// Addr specifies the bind address for the debug server.
		Addr string `yaml:"addr,omitempty"`
		// Prometheus configures the Prometheus telemetry endpoint.
		Prometheus struct {
			Enabled bool   `yaml:"enabled,omitempty"`
			Path    string `yaml:"path,omitempty"`
		} `yaml:"prometheus,omitempty"`
	} `yaml:"debug,omitempty"`
}

// Client configures outgoing store requests.
type Client struct {
	// Timeout bounds each request. Defaults to DefaultClientTimeout.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Retries is the number of times a failed request is retried. Zero
	// disables retries.
	Retries int `yaml:"retries,omitempty"`

	// Concurrency bounds the asynchronous calls running at once against
	// each store. Zero leaves them unbounded.
	Concurrency int `yaml:"concurrency,omitempty"`

	// RetryWaitMin and RetryWaitMax bound the backoff between retries.
	RetryWaitMin time.Duration `yaml:"retrywaitmin,omitempty"`
	RetryWaitMax time.Duration `yaml:"retrywaitmax,omitempty"`

	// Proxy is the forward proxy used for store requests.
	Proxy         string `yaml:"proxy,omitempty"`
	ProxyUsername string `yaml:"proxyusername,omitempty"`
	ProxyPassword string `yaml:"proxypassword,omitempty"`
}

// Health provides the configuration section for health checks.
type Health struct {
	// FileCheckers is a list of paths to check
	FileCheckers []FileChecker `yaml:"file,omitempty"`
	// StoreChecks probes every served store.
	StoreChecks StoreChecks `yaml:"stores,omitempty"`
}

// FileChecker is a type of entry in the health section for checking files.
type FileChecker struct {
	// Interval is the duration in between checks
	Interval time.Duration `yaml:"interval,omitempty"`
	// File is the path to check
	File string `yaml:"file,omitempty"`
	// Threshold is the number of times a check must fail to trigger an
	// unhealthy state
	Threshold int `yaml:"threshold,omitempty"`
}

// StoreChecks configures the periodic probe of the served stores.
type StoreChecks struct {
	// Enabled turns on store checks.
	Enabled bool `yaml:"enabled,omitempty"`
	// Interval is the duration in between checks
	Interval time.Duration `yaml:"interval,omitempty"`
	// Timeout bounds a single probe.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// Threshold is the number of times a check must fail to trigger an
	// unhealthy state
	Threshold int `yaml:"threshold,omitempty"`
}

// v0_1Configuration is a Version 0.1 Configuration struct
// This is currently aliased to Configuration, as it is the current version
type v0_1Configuration Configuration

// UnmarshalYAML implements the yaml.Unmarshaler interface
// Unmarshals a string of the form X.Y into a Version, validating that X and Y can represent uints
func (version *Version) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var versionString string
	err := unmarshal(&versionString)
	if err != nil {
		return err
	}

	newVersion := Version(versionString)
	if _, err := newVersion.major(); err != nil {
		return err
	}

	if _, err := newVersion.minor(); err != nil {
		return err
	}

	*version = newVersion
	return nil
}

// CurrentVersion is the most recent Version that can be parsed
var CurrentVersion = MajorMinorVersion(0, 1)

// Loglevel is the level at which operations are logged
// This can be error, warn, info, or debug
type Loglevel string

// UnmarshalYAML implements the yaml.Umarshaler interface
// Unmarshals a string into a Loglevel, lowercasing the string and validating that it represents a
// valid loglevel
func (loglevel *Loglevel) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var loglevelString string
	err := unmarshal(&loglevelString)
	if err != nil {
		return err
	}

	loglevelString = strings.ToLower(loglevelString)
	switch loglevelString {
	case "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("invalid loglevel %s Must be one of [error, warn, info, debug]", loglevelString)
	}

	*loglevel = Loglevel(loglevelString)
	return nil
}

// Parameters defines a key-value parameters mapping
type Parameters map[string]interface{}

// Storage defines the driver backing one store
type Storage map[string]Parameters

// Type returns the storage driver type, such as inmemory or sparqlhttp
func (storage Storage) Type() string {
	// Return only key in this map
	for k := range storage {
		return k
	}
	return ""
}

// Parameters returns the Parameters map for a Storage configuration
func (storage Storage) Parameters() Parameters {
	return storage[storage.Type()]
}

// setParameter changes the parameter at the provided key to the new value
func (storage Storage) setParameter(key string, value interface{}) {
	storage[storage.Type()][key] = value
}

// UnmarshalYAML implements the yaml.Unmarshaler interface
// Unmarshals a single item map into a Storage or a string into a Storage type with no parameters
func (storage *Storage) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var storageMap map[string]Parameters
	err := unmarshal(&storageMap)
	if err == nil {
		if len(storageMap) > 1 {
			types := make([]string, 0, len(storageMap))
			for k := range storageMap {
				types = append(types, k)
			}
			sort.Strings(types)
			return fmt.Errorf("must provide exactly one storage type. Provided: %v", types)
		}
		for k, params := range storageMap {
			if params == nil {
				storageMap[k] = Parameters{}
			}
		}
		*storage = storageMap
		return nil
	}

	var storageType string
	err = unmarshal(&storageType)
	if err == nil {
		*storage = Storage{storageType: Parameters{}}
		return nil
	}

	return err
}

// MarshalYAML implements the yaml.Marshaler interface
func (storage Storage) MarshalYAML() (interface{}, error) {
	if len(storage.Parameters()) == 0 {
		return storage.Type(), nil
	}
	return map[string]Parameters(storage), nil
}

// Stores maps store names to the driver backing each.
type Stores map[string]Storage

// Names returns the store names in lexical order.
func (stores Stores) Names() []string {
	names := make([]string, 0, len(stores))
	for name := range stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse parses an input configuration yaml document into a Configuration struct
// This should generally be capable of handling old configuration format versions
//
// Environment variables may be used to override configuration parameters other than version,
// following the scheme below:
// Configuration.Abc may be replaced by the value of GRAPHSTORE_ABC,
// Configuration.Abc.Xyz may be replaced by the value of GRAPHSTORE_ABC_XYZ, and so forth
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	p := NewParser("graphstore", []VersionedParseInfo{
		{
			Version: MajorMinorVersion(0, 1),
			ParseAs: reflect.TypeOf(v0_1Configuration{}),
			ConversionFunc: func(c interface{}) (interface{}, error) {
				if v0_1, ok := c.(*v0_1Configuration); ok {
					if v0_1.Log.Level == Loglevel("") {
						v0_1.Log.Level = Loglevel("info")
					}
					if len(v0_1.Stores) == 0 {
						return nil, errors.New("no stores configured")
					}
					for _, name := range v0_1.Stores.Names() {
						if v0_1.Stores[name].Type() == "" {
							return nil, fmt.Errorf("no storage driver configured for store %q", name)
						}
					}
					if v0_1.Client.Timeout == 0 {
						v0_1.Client.Timeout = DefaultClientTimeout
					}
					return (*Configuration)(v0_1), nil
				}
				return nil, fmt.Errorf("expected *v0_1Configuration, received %#v", c)
			},
		},
	})

	config := new(Configuration)
	err = p.Parse(in, config)
	if err != nil {
		return nil, err
	}

	return config, nil
}
