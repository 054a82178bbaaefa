// Package checks provides the health checks a graph store server registers.
package checks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rdfkit/graphstore/health"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// FileChecker checks the existence of a file and returns an error
// if the file exists, taking the application out of rotation.
func FileChecker(f string) health.Checker {
	return health.CheckFunc(func(context.Context) error {
		if _, err := os.Stat(f); err == nil {
			return errors.New("file exists")
		}
		return nil
	})
}

// graphProber is implemented by providers that can cheaply tell whether a
// graph exists.
type graphProber interface {
	HasGraph(ctx context.Context, graphURI string) (bool, error)
}

// StoreChecker reports a store that is not ready, or that fails to answer a
// probe within timeout. Stores that can test for a graph are asked for
// their default graph; stores that can list graphs are asked for the list.
func StoreChecker(p storagedriver.StorageProvider, timeout time.Duration) health.Checker {
	return health.CheckFunc(func(ctx context.Context) error {
		caps := p.Capabilities()
		if !caps.Ready {
			return fmt.Errorf("%s: store is not ready", p.Name())
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		var err error
		switch prober, ok := p.(graphProber); {
		case ok && caps.IOBehaviour.HasDefaultGraph:
			_, err = prober.HasGraph(ctx, "")
		case caps.ListGraphsSupported:
			_, err = p.ListGraphs(ctx)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
		return nil
	})
}
