package factory

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/rdfkit/graphstore/internal/uuid"
	"github.com/rdfkit/graphstore/rdf"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// VerifyParameter is the driver parameter that requests a write, read and
// delete check when the driver is created.
const VerifyParameter = "verify"

// driverFactories stores an internal mapping between storage driver names and their respective
// factories
var driverFactories = make(map[string]StorageDriverFactory)

// StorageDriverFactory is a factory interface for creating storagedriver.StorageProvider interfaces
// Storage drivers should call Register() with a factory to make the driver available by name
type StorageDriverFactory interface {
	// Create returns a new storagedriver.StorageProvider with the given parameters
	// Parameters will vary by driver and may be ignored
	// Each parameter key must only consist of lowercase letters and numbers
	Create(parameters map[string]any) (storagedriver.StorageProvider, error)
}

// Register makes a storage driver available by the provided name.
// If Register is called twice with the same name or if driver factory is nil, it panics.
func Register(name string, factory StorageDriverFactory) {
	if factory == nil {
		panic("Must not provide nil StorageDriverFactory")
	}
	_, registered := driverFactories[name]
	if registered {
		panic(fmt.Sprintf("StorageDriverFactory named %s already registered", name))
	}

	driverFactories[name] = factory
}

// Registered reports whether a factory is registered under name.
func Registered(name string) bool {
	_, ok := driverFactories[name]
	return ok
}

// Create a new storagedriver.StorageProvider with the given name and
// parameters. To use a driver, the StorageDriverFactory must first be
// registered with the given name. If no drivers are found, an
// InvalidStorageDriverError is returned. When the verify parameter is set
// and the store is writable, a scratch graph is written, read back and
// deleted before the driver is returned.
func Create(ctx context.Context, name string, parameters map[string]any) (storagedriver.StorageProvider, error) {
	driverFactory, ok := driverFactories[name]
	if !ok {
		return nil, InvalidStorageDriverError{name}
	}

	params := make(map[string]any, len(parameters))
	for k, v := range parameters {
		params[k] = v
	}
	doVerify := false
	if v, ok := params[VerifyParameter]; ok {
		delete(params, VerifyParameter)
		b, err := strconv.ParseBool(fmt.Sprint(v))
		if err != nil {
			return nil, fmt.Errorf("invalid %s parameter for storage type %q: %v", VerifyParameter, name, v)
		}
		doVerify = b
	}

	d, err := driverFactory.Create(params)
	if err != nil {
		return nil, err
	}
	if !doVerify || d.Capabilities().ReadOnly {
		return d, nil
	}
	if err := verify(ctx, d); err != nil {
		return nil, fmt.Errorf(`unable to verify write, read and delete permissions on storage type %q: %v`, name, err)
	}
	return d, nil
}

// verify writes a single triple graph, waits for it to be readable and
// deletes it again.
func verify(ctx context.Context, d storagedriver.StorageProvider) error {
	graphURI := uuid.NewURN()
	g, err := rdf.NewGraph(graphURI)
	if err != nil {
		return err
	}
	probe := rdf.NewTriple(rdf.MustIRI(graphURI), rdf.MustIRI(rdf.RDFSLabel), rdf.NewLiteral("verification graph"))
	g.Assert(probe)

	if err := d.SaveGraph(ctx, g); err != nil {
		return fmt.Errorf("unable to write verification graph: %s", err)
	}

	// May have eventually consistent storage
	max := 3 * time.Second
	duration := 10 * time.Millisecond

	for {
		loaded := &rdf.Graph{}
		if err := d.LoadGraph(ctx, loaded, graphURI); err != nil {
			return fmt.Errorf("unable to read verification graph: %s", err)
		}
		if loaded.Contains(probe) {
			break
		}
		if duration >= max {
			return fmt.Errorf("verification graph %s was not readable after writing", graphURI)
		}
		time.Sleep(duration)
		duration = backOffSeconds(duration)
	}

	if !d.Capabilities().DeleteSupported {
		return nil
	}
	if err := d.DeleteGraph(ctx, graphURI); err != nil {
		return fmt.Errorf("unable to delete verification graph: %s", err)
	}
	return nil
}

func backOffSeconds(d time.Duration) time.Duration {
	d *= 2
	d += time.Microsecond * time.Duration(rand.Int63n(1000))
	return d
}

// InvalidStorageDriverError records an attempt to construct an unregistered storage driver
type InvalidStorageDriverError struct {
	Name string
}

func (err InvalidStorageDriverError) Error() string {
	return fmt.Sprintf("StorageProvider not registered: %s", err.Name)
}
