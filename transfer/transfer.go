// Package transfer copies and moves graphs between stores, or within one
// store under a new name.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rdfkit/graphstore/internal/dcontext"
	"github.com/rdfkit/graphstore/rdf"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// DefaultConcurrency is the number of graphs CopyAll transfers at once when
// no concurrency is given.
const DefaultConcurrency = 4

// ErrSameGraph is returned when a graph would be moved onto itself.
var ErrSameGraph = errors.New("source and target graph are the same")

// CopyGraph copies the graph srcGraph of src into the graph dstGraph of
// dst. Whether existing triples of the target are kept depends on the save
// semantics of dst; a target that cannot save whole graphs but can add
// triples receives them as an update.
func CopyGraph(ctx context.Context, src, dst storagedriver.StorageProvider, srcGraph, dstGraph string) error {
	if src == dst && srcGraph == dstGraph {
		return nil
	}
	if err := checkTarget(dst, dstGraph); err != nil {
		return err
	}

	g, err := rdf.NewGraph(dstGraph)
	if err != nil {
		return storagedriver.InvalidGraphURIError{DriverName: dst.Name(), GraphURI: dstGraph}
	}
	if err := src.LoadGraphHandler(ctx, rdf.GraphHandler(g), srcGraph); err != nil {
		return fmt.Errorf("loading %s from %s: %w", graphLabel(srcGraph), src.Name(), err)
	}

	io := dst.Capabilities().IOBehaviour
	if io.SaveModeFor(dstGraph) == storagedriver.SaveNone {
		err = dst.UpdateGraph(ctx, dstGraph, g.Triples(), nil)
	} else {
		err = dst.SaveGraph(ctx, g)
	}
	if err != nil {
		return fmt.Errorf("saving %s to %s: %w", graphLabel(dstGraph), dst.Name(), err)
	}

	dcontext.GetLoggerWithFields(ctx, map[any]any{
		"source": src.Name(),
		"target": dst.Name(),
		"graph":  graphLabel(dstGraph),
		"count":  g.Len(),
	}).Debug("graph copied")
	return nil
}

// MoveGraph copies srcGraph into dstGraph and then deletes srcGraph from
// src. The source must support deletion; it is checked before anything is
// copied.
func MoveGraph(ctx context.Context, src, dst storagedriver.StorageProvider, srcGraph, dstGraph string) error {
	if src == dst && srcGraph == dstGraph {
		return ErrSameGraph
	}
	if caps := src.Capabilities(); caps.IOBehaviour.IsReadOnly() || !caps.DeleteSupported {
		return storagedriver.UnsupportedError{
			DriverName: src.Name(),
			Operation:  storagedriver.OperationDeleteGraph,
			Reason:     "the source store cannot delete graphs, so graphs cannot be moved out of it",
		}
	}
	if err := CopyGraph(ctx, src, dst, srcGraph, dstGraph); err != nil {
		return err
	}
	if err := src.DeleteGraph(ctx, srcGraph); err != nil {
		return fmt.Errorf("deleting %s from %s after copy: %w", graphLabel(srcGraph), src.Name(), err)
	}
	return nil
}

// CopyAll copies every graph src lists, and its default graph when it has
// one, into dst under the same names. At most concurrency graphs are in
// flight; zero or less means DefaultConcurrency. The first failure cancels
// the remaining copies. The copied graphs are returned in completion order.
func CopyAll(ctx context.Context, src, dst storagedriver.StorageProvider, concurrency int) ([]string, error) {
	if src == dst {
		return nil, nil
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	graphs, err := src.ListGraphs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing graphs of %s: %w", src.Name(), err)
	}
	if src.Capabilities().IOBehaviour.HasDefaultGraph && dst.Capabilities().IOBehaviour.HasDefaultGraph {
		graphs = append([]string{""}, graphs...)
	}

	var (
		mu     sync.Mutex
		copied = make([]string, 0, len(graphs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, graphURI := range graphs {
		graphURI := graphURI
		g.Go(func() error {
			if err := CopyGraph(gctx, src, dst, graphURI, graphURI); err != nil {
				return err
			}
			mu.Lock()
			copied = append(copied, graphURI)
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	return copied, err
}

// checkTarget rejects targets that cannot receive the graph at all, before
// the source is read.
func checkTarget(dst storagedriver.StorageProvider, graphURI string) error {
	caps := dst.Capabilities()
	io := caps.IOBehaviour
	switch {
	case caps.ReadOnly || io.IsReadOnly():
		return storagedriver.UnsupportedError{DriverName: dst.Name(), Operation: storagedriver.OperationSaveGraph, Reason: "the target store is read-only"}
	case graphURI == "" && !io.HasDefaultGraph:
		return storagedriver.UnsupportedError{DriverName: dst.Name(), Operation: storagedriver.OperationSaveGraph, Reason: "the target store has no default graph"}
	case graphURI != "" && !io.HasNamedGraphs:
		return storagedriver.UnsupportedError{DriverName: dst.Name(), Operation: storagedriver.OperationSaveGraph, Reason: "the target store has no named graphs"}
	case io.SaveModeFor(graphURI) == storagedriver.SaveNone && !(caps.UpdateSupported && io.CanAddTriples):
		return storagedriver.UnsupportedError{DriverName: dst.Name(), Operation: storagedriver.OperationSaveGraph, Reason: "the target store can neither save graphs nor add triples"}
	}
	return nil
}

func graphLabel(graphURI string) string {
	if graphURI == "" {
		return "the default graph"
	}
	return "<" + graphURI + ">"
}
