// Package rdf holds the small slice of the RDF data model the storage layer
// needs: terms, triples, an in-memory graph and the streaming handler
// contract connectors use to deliver triples to callers.
//
// Terms and triples are those of github.com/knakk/rdf; this package only
// adds graph bookkeeping and content-type based parser selection on top.
package rdf

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	krdf "github.com/knakk/rdf"
)

type (
	// Term is an RDF term: an IRI, a blank node or a literal.
	Term = krdf.Term

	// IRI is an RDF IRI term.
	IRI = krdf.IRI

	// Blank is an RDF blank node.
	Blank = krdf.Blank

	// Literal is an RDF literal.
	Literal = krdf.Literal

	// Triple is a subject-predicate-object statement.
	Triple = krdf.Triple

	// Subject is a term valid in subject position: an IRI or a blank node.
	Subject = krdf.Subject

	// Predicate is a term valid in predicate position: an IRI.
	Predicate = krdf.Predicate

	// Object is a term valid in object position.
	Object = krdf.Object
)

// Well known vocabulary IRIs.
const (
	RDFType    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	RDFSLabel  = "http://www.w3.org/2000/01/rdf-schema#label"
	XSDInteger = "http://www.w3.org/2001/XMLSchema#integer"
	XSDBoolean = "http://www.w3.org/2001/XMLSchema#boolean"
)

// NewIRI returns an IRI term for iri.
func NewIRI(iri string) (IRI, error) {
	return krdf.NewIRI(iri)
}

// MustIRI is like NewIRI but panics if iri is not a valid IRI.
func MustIRI(iri string) IRI {
	i, err := krdf.NewIRI(iri)
	if err != nil {
		panic(err)
	}
	return i
}

// NewBlank returns a blank node with the given label.
func NewBlank(id string) (Blank, error) {
	return krdf.NewBlank(id)
}

// NewLiteral returns a plain string literal.
func NewLiteral(value string) Literal {
	l, _ := krdf.NewLiteral(value)
	return l
}

// NewTypedLiteral returns a literal with the given datatype.
func NewTypedLiteral(value string, datatype IRI) Literal {
	return krdf.NewTypedLiteral(value, datatype)
}

// NewTriple assembles a triple from its terms.
func NewTriple(s Subject, p Predicate, o Object) Triple {
	return Triple{Subj: s, Pred: p, Obj: o}
}

// FormatTerm returns the N-Triples form of a term.
func FormatTerm(t Term) string {
	return t.Serialize(krdf.NTriples)
}

// TripleKey returns the canonical N-Triples form of t, without the
// terminating " .".
func TripleKey(t Triple) string {
	return FormatTerm(t.Subj) + " " + FormatTerm(t.Pred) + " " + FormatTerm(t.Obj)
}

// HasBlankNodes reports whether any position of t holds a blank node.
func HasBlankNodes(t Triple) bool {
	return isBlank(t.Subj) || isBlank(t.Obj)
}

func isBlank(t Term) bool {
	_, ok := t.(krdf.Blank)
	return ok
}

// IRIValue returns the string value of t if it is an IRI.
func IRIValue(t Term) (string, bool) {
	iri, ok := t.(krdf.IRI)
	if !ok {
		return "", false
	}
	return iri.String(), true
}

// Graph is a set of triples with an optional identifying URI. A nil BaseURI
// names the default graph. Graph is safe for concurrent use.
type Graph struct {
	BaseURI *url.URL

	mu      sync.RWMutex
	triples map[string]Triple
}

// NewGraph returns an empty graph named by name, or an unnamed graph when
// name is empty.
func NewGraph(name string) (*Graph, error) {
	g := &Graph{}
	if name == "" {
		return g, nil
	}
	u, err := url.Parse(name)
	if err != nil {
		return nil, fmt.Errorf("invalid graph name %q: %w", name, err)
	}
	g.BaseURI = u
	return g, nil
}

// Name returns the graph's identifying URI as a string, "" for the default
// graph.
func (g *Graph) Name() string {
	if g.BaseURI == nil {
		return ""
	}
	return g.BaseURI.String()
}

// Assert adds triples to the graph and returns how many were not already
// present.
func (g *Graph) Assert(ts ...Triple) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.triples == nil {
		g.triples = make(map[string]Triple, len(ts))
	}
	added := 0
	for _, t := range ts {
		k := TripleKey(t)
		if _, ok := g.triples[k]; ok {
			continue
		}
		g.triples[k] = t
		added++
	}
	return added
}

// Retract removes triples from the graph and returns how many were present.
func (g *Graph) Retract(ts ...Triple) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for _, t := range ts {
		k := TripleKey(t)
		if _, ok := g.triples[k]; ok {
			delete(g.triples, k)
			removed++
		}
	}
	return removed
}

// Contains reports whether t is in the graph.
func (g *Graph) Contains(t Triple) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.triples[TripleKey(t)]
	return ok
}

// Triples returns the triples of the graph ordered by their N-Triples form.
func (g *Graph) Triples() []Triple {
	g.mu.RLock()
	defer g.mu.RUnlock()

	keys := make([]string, 0, len(g.triples))
	for k := range g.triples {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ts := make([]Triple, len(keys))
	for i, k := range keys {
		ts[i] = g.triples[k]
	}
	return ts
}

// Len returns the number of triples in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.triples)
}

// IsEmpty reports whether the graph holds no triples.
func (g *Graph) IsEmpty() bool {
	return g.Len() == 0
}

// Clear removes every triple, keeping the BaseURI.
func (g *Graph) Clear() {
	g.mu.Lock()
	g.triples = nil
	g.mu.Unlock()
}

// Merge asserts every triple of other into g.
func (g *Graph) Merge(other *Graph) {
	g.Assert(other.Triples()...)
}

// Clone returns a copy of g sharing no mutable state with it.
func (g *Graph) Clone() *Graph {
	c := &Graph{}
	if g.BaseURI != nil {
		u := *g.BaseURI
		c.BaseURI = &u
	}
	c.Assert(g.Triples()...)
	return c
}

// Equal reports whether g and other hold the same triples. Blank nodes are
// compared by label.
func (g *Graph) Equal(other *Graph) bool {
	if g.Len() != other.Len() {
		return false
	}
	for _, t := range other.Triples() {
		if !g.Contains(t) {
			return false
		}
	}
	return true
}

// String renders the graph as N-Triples.
func (g *Graph) String() string {
	var sb strings.Builder
	for _, t := range g.Triples() {
		sb.WriteString(TripleKey(t))
		sb.WriteString(" .\n")
	}
	return sb.String()
}
