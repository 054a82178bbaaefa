package driver

import (
	"errors"
	"fmt"
)

// Shape is the structural layout of a store.
type Shape int

const (
	// ShapeUnspecified makes no claim about the store. Paired with an
	// otherwise zero IOBehaviour it means read-only with no further claims.
	ShapeUnspecified Shape = iota
	// ShapeTripleStore is a single graph without partitioning.
	ShapeTripleStore
	// ShapeQuadStore partitions statements into graphs.
	ShapeQuadStore
)

func (s Shape) String() string {
	switch s {
	case ShapeTripleStore:
		return "triplestore"
	case ShapeQuadStore:
		return "quadstore"
	}
	return "unspecified"
}

// SaveMode describes what SaveGraph does with triples already stored under
// the same graph.
type SaveMode int

const (
	// SaveNone means graphs of that kind cannot be saved.
	SaveNone SaveMode = iota
	// SaveAppend adds to the existing triples.
	SaveAppend
	// SaveOverwrite replaces the existing triples.
	SaveOverwrite
)

func (m SaveMode) String() string {
	switch m {
	case SaveAppend:
		return "append"
	case SaveOverwrite:
		return "overwrite"
	}
	return "none"
}

// IOBehaviour describes the structural and mutation semantics of a store.
type IOBehaviour struct {
	ReadOnly bool
	Shape    Shape

	HasDefaultGraph bool
	HasNamedGraphs  bool

	DefaultGraphSave SaveMode
	NamedGraphSave   SaveMode

	CanAddTriples    bool
	CanRemoveTriples bool

	// ExplicitEmptyGraphs is set when the store remembers graphs holding
	// no triples.
	ExplicitEmptyGraphs bool
}

// Canonical behaviours.
var (
	ReadOnlyTripleStore = IOBehaviour{
		ReadOnly:        true,
		Shape:           ShapeTripleStore,
		HasDefaultGraph: true,
	}

	ReadOnlyGraphStore = IOBehaviour{
		ReadOnly:        true,
		Shape:           ShapeQuadStore,
		HasDefaultGraph: true,
		HasNamedGraphs:  true,
	}

	TripleStore = IOBehaviour{
		Shape:            ShapeTripleStore,
		HasDefaultGraph:  true,
		DefaultGraphSave: SaveOverwrite,
		CanAddTriples:    true,
		CanRemoveTriples: true,
	}

	GraphStore = IOBehaviour{
		Shape:            ShapeQuadStore,
		HasDefaultGraph:  true,
		HasNamedGraphs:   true,
		DefaultGraphSave: SaveOverwrite,
		NamedGraphSave:   SaveOverwrite,
		CanAddTriples:    true,
		CanRemoveTriples: true,
	}
)

// CanUpdate reports whether incremental updates support both additions and
// removals.
func (b IOBehaviour) CanUpdate() bool {
	return b.CanAddTriples && b.CanRemoveTriples
}

// IsReadOnly reports whether the behaviour permits no mutation. Behaviours
// that make no shape claim are read-only.
func (b IOBehaviour) IsReadOnly() bool {
	return b.ReadOnly || b.Shape == ShapeUnspecified
}

// SaveModeFor returns the save semantics for the given graph.
func (b IOBehaviour) SaveModeFor(graphURI string) SaveMode {
	if graphURI == "" {
		return b.DefaultGraphSave
	}
	return b.NamedGraphSave
}

// Validate rejects combinations that cannot describe a real store.
func (b IOBehaviour) Validate() error {
	if b == (IOBehaviour{}) {
		return nil
	}
	switch b.Shape {
	case ShapeUnspecified:
		return errors.New("io behaviour: a store must declare either triple store or quad store shape")
	case ShapeTripleStore:
		if b.HasNamedGraphs || b.NamedGraphSave != SaveNone {
			return errors.New("io behaviour: a triple store has no named graphs")
		}
	case ShapeQuadStore:
		if !b.HasDefaultGraph && !b.HasNamedGraphs {
			return errors.New("io behaviour: a quad store needs a default or named graphs")
		}
	default:
		return fmt.Errorf("io behaviour: unknown shape %d", b.Shape)
	}
	mutates := b.DefaultGraphSave != SaveNone || b.NamedGraphSave != SaveNone || b.CanAddTriples || b.CanRemoveTriples
	if b.ReadOnly && mutates {
		return errors.New("io behaviour: a read-only store cannot declare save or update semantics")
	}
	if b.DefaultGraphSave != SaveNone && !b.HasDefaultGraph {
		return errors.New("io behaviour: default graph save semantics without a default graph")
	}
	if b.NamedGraphSave != SaveNone && !b.HasNamedGraphs {
		return errors.New("io behaviour: named graph save semantics without named graphs")
	}
	return nil
}

// Capabilities is the capability descriptor every driver reports. It is a
// hint: a supported operation can still fail at call time.
type Capabilities struct {
	Ready               bool
	ReadOnly            bool
	UpdateSupported     bool
	DeleteSupported     bool
	ListGraphsSupported bool
	IOBehaviour         IOBehaviour
}

// Validate checks the descriptor is internally consistent.
func (c Capabilities) Validate() error {
	if c.ReadOnly && (c.UpdateSupported || c.DeleteSupported) {
		return errors.New("capabilities: a read-only store cannot support update or delete")
	}
	if err := c.IOBehaviour.Validate(); err != nil {
		return err
	}
	if c.ReadOnly != c.IOBehaviour.IsReadOnly() {
		return fmt.Errorf("capabilities: read-only is %t but io behaviour says %t", c.ReadOnly, c.IOBehaviour.IsReadOnly())
	}
	return nil
}
