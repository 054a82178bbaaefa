package driver

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/rdfkit/graphstore/rdf"
)

// Configuration vocabulary used when a driver describes itself.
const (
	ConfigNamespace = "http://www.dotnetrdf.org/configuration#"

	ConfigClassStorageProvider = ConfigNamespace + "StorageProvider"
	ConfigClassStorageServer   = ConfigNamespace + "StorageServer"
	ConfigClassProxy           = ConfigNamespace + "Proxy"

	ConfigPropertyType     = ConfigNamespace + "type"
	ConfigPropertyServer   = ConfigNamespace + "server"
	ConfigPropertyCatalog  = ConfigNamespace + "catalogID"
	ConfigPropertyStore    = ConfigNamespace + "storeID"
	ConfigPropertyUser     = ConfigNamespace + "user"
	ConfigPropertyPassword = ConfigNamespace + "password"
	ConfigPropertyTimeout  = ConfigNamespace + "timeout"
	ConfigPropertyProxy    = ConfigNamespace + "proxy"
	ConfigPropertyReadOnly = ConfigNamespace + "readOnly"
	ConfigPropertyFrom     = ConfigNamespace + "fromFile"
	ConfigPropertyEndpoint = ConfigNamespace + "endpoint"
	ConfigPropertyUpdate   = ConfigNamespace + "updateEndpoint"

	ConfigPropertyDefaultGraph = ConfigNamespace + "defaultGraphUri"
	ConfigPropertyNamedGraph   = ConfigNamespace + "namedGraphUri"
	ConfigPropertyAPIKey       = ConfigNamespace + "apiKey"
)

// ConfigurationSerializable is implemented by drivers that can describe
// their own configuration as triples.
type ConfigurationSerializable interface {
	SerializeConfiguration(ctx *SerializationContext) error
}

// SerializationContext is the target of configuration serialization:
// triples describing NextSubject are asserted into Graph.
type SerializationContext struct {
	Graph       *rdf.Graph
	NextSubject rdf.Term

	blanks int
}

// NewSerializationContext returns a context describing subject into g.
func NewSerializationContext(g *rdf.Graph, subject rdf.Term) *SerializationContext {
	return &SerializationContext{Graph: g, NextSubject: subject}
}

// Assert adds (NextSubject, predicate, object) to the target graph.
func (ctx *SerializationContext) Assert(predicate string, object rdf.Term) {
	ctx.AssertAbout(ctx.NextSubject, predicate, object)
}

// AssertAbout adds (subject, predicate, object) to the target graph.
func (ctx *SerializationContext) AssertAbout(subject rdf.Term, predicate string, object rdf.Term) {
	ctx.Graph.Assert(rdf.NewTriple(subject.(rdf.Subject), rdf.MustIRI(predicate), object.(rdf.Object)))
}

// AssertLiteral adds a plain literal value for predicate. Empty values are
// skipped.
func (ctx *SerializationContext) AssertLiteral(predicate, value string) {
	if value == "" {
		return
	}
	ctx.Assert(predicate, rdf.NewLiteral(value))
}

// NewBlank returns a blank node unique within the context.
func (ctx *SerializationContext) NewBlank() rdf.Term {
	ctx.blanks++
	b, err := rdf.NewBlank("cfg" + strconv.Itoa(ctx.blanks))
	if err != nil {
		panic(err)
	}
	return b
}

// SerializeDriver asserts the type triples common to every driver
// description: rdf:type, a label and the implementation identity.
func (ctx *SerializationContext) SerializeDriver(class, implementation, label string) {
	ctx.Assert(rdf.RDFType, rdf.MustIRI(class))
	ctx.AssertLiteral(rdf.RDFSLabel, label)
	ctx.AssertLiteral(ConfigPropertyType, implementation)
}

// SerializeCredentials asserts user and password literals when set.
func (ctx *SerializationContext) SerializeCredentials(user, password string) {
	ctx.AssertLiteral(ConfigPropertyUser, user)
	ctx.AssertLiteral(ConfigPropertyPassword, password)
}

// SerializeTimeout asserts the timeout in milliseconds when set.
func (ctx *SerializationContext) SerializeTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	dt := rdf.MustIRI(rdf.XSDInteger)
	ctx.Assert(ConfigPropertyTimeout, rdf.NewTypedLiteral(strconv.FormatInt(d.Milliseconds(), 10), dt))
}

// SerializeProxy describes a forward proxy as a separate node linked from
// NextSubject.
func (ctx *SerializationContext) SerializeProxy(server, user, password string) {
	if server == "" {
		return
	}
	proxy := ctx.NewBlank()
	ctx.Assert(ConfigPropertyProxy, proxy)
	ctx.AssertAbout(proxy, rdf.RDFType, rdf.MustIRI(ConfigClassProxy))
	ctx.AssertAbout(proxy, ConfigPropertyServer, rdf.NewLiteral(server))
	if user != "" {
		ctx.AssertAbout(proxy, ConfigPropertyUser, rdf.NewLiteral(user))
	}
	if password != "" {
		ctx.AssertAbout(proxy, ConfigPropertyPassword, rdf.NewLiteral(password))
	}
}

// DecodeParameters decodes a driver parameter map, as found in the
// configuration file, into the option struct out. Durations may be given as
// strings such as "30s".
func DecodeParameters(parameters map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(parameters); err != nil {
		return fmt.Errorf("invalid driver parameters: %w", err)
	}
	return nil
}
