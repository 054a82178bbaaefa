package rdf

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func triple(s, p, o string) Triple {
	return NewTriple(MustIRI(s), MustIRI(p), MustIRI(o))
}

func TestGraphAssertRetract(t *testing.T) {
	g, err := NewGraph("http://example.org/g")
	require.NoError(t, err)
	require.Equal(t, "http://example.org/g", g.Name())
	require.True(t, g.IsEmpty())

	a := triple("http://example.org/s", "http://example.org/p", "http://example.org/o")
	b := triple("http://example.org/s", "http://example.org/p", "http://example.org/o2")

	require.Equal(t, 2, g.Assert(a, b, a))
	require.Equal(t, 2, g.Len())
	require.True(t, g.Contains(a))

	require.Equal(t, 1, g.Retract(a, a))
	require.False(t, g.Contains(a))
	require.Equal(t, []Triple{b}, g.Triples())
}

func TestGraphCloneAndEqual(t *testing.T) {
	g, err := NewGraph("")
	require.NoError(t, err)
	require.Equal(t, "", g.Name())

	g.Assert(triple("http://example.org/s", "http://example.org/p", "http://example.org/o"))
	c := g.Clone()
	require.True(t, g.Equal(c))

	c.Assert(NewTriple(MustIRI("http://example.org/s"), MustIRI("http://example.org/p"), NewLiteral("x")))
	require.False(t, g.Equal(c))
	require.Equal(t, 1, g.Len())

	g.Merge(c)
	require.True(t, g.Equal(c))

	g.Clear()
	require.True(t, g.IsEmpty())
}

func TestTriplesAreOrdered(t *testing.T) {
	g := &Graph{}
	g.Assert(
		triple("http://example.org/c", "http://example.org/p", "http://example.org/o"),
		triple("http://example.org/a", "http://example.org/p", "http://example.org/o"),
		triple("http://example.org/b", "http://example.org/p", "http://example.org/o"),
	)
	var subjects []string
	for _, tr := range g.Triples() {
		s, ok := IRIValue(tr.Subj)
		require.True(t, ok)
		subjects = append(subjects, s)
	}
	require.Equal(t, []string{"http://example.org/a", "http://example.org/b", "http://example.org/c"}, subjects)
}

func TestDecodeNTriples(t *testing.T) {
	doc := "<http://example.org/s> <http://example.org/p> <http://example.org/o> .\n" +
		"<http://example.org/s> <http://example.org/p> \"hello\" .\n"

	src, err := NewDecoder(strings.NewReader(doc), "application/n-triples; charset=utf-8")
	require.NoError(t, err)

	g := &Graph{}
	require.NoError(t, GraphHandler(g).Handle(src))
	require.Equal(t, 2, g.Len())
	require.True(t, g.Contains(triple("http://example.org/s", "http://example.org/p", "http://example.org/o")))
}

func TestDecodeQuads(t *testing.T) {
	doc := "<http://example.org/s> <http://example.org/p> <http://example.org/o> <http://example.org/g> .\n" +
		"<http://example.org/s> <http://example.org/p> <http://example.org/o2> .\n"

	src, err := NewQuadDecoder(strings.NewReader(doc), MediaTypeNQuads, "")
	require.NoError(t, err)

	q, err := src.Next()
	require.NoError(t, err)
	require.Equal(t, "http://example.org/g", q.Graph)
}

func TestUnsupportedMediaType(t *testing.T) {
	_, err := NewDecoder(strings.NewReader(""), "application/json")
	require.Error(t, err)
	require.IsType(t, UnsupportedMediaTypeError{}, err)

	_, err = NewEncoder(&bytes.Buffer{}, MediaTypeTurtle)
	require.Error(t, err)

	require.False(t, IsRDFMediaType("text/html"))
	require.True(t, IsRDFMediaType("text/turtle; charset=utf-8"))
}

func TestWriteTriplesRoundTrip(t *testing.T) {
	g := &Graph{}
	g.Assert(
		triple("http://example.org/s", "http://example.org/p", "http://example.org/o"),
		NewTriple(MustIRI("http://example.org/s"), MustIRI("http://example.org/p"), NewLiteral("plain value")),
	)

	var buf bytes.Buffer
	require.NoError(t, WriteTriples(&buf, g.Triples()))

	src, err := NewDecoder(&buf, MediaTypeNTriples)
	require.NoError(t, err)
	out := &Graph{}
	require.NoError(t, GraphHandler(out).Handle(src))
	require.True(t, g.Equal(out))
}

func TestNilSourceMeansAbsent(t *testing.T) {
	h := &CountHandler{}
	require.NoError(t, h.Handle(nil))
	require.True(t, h.Absent)
	require.Zero(t, h.Count)

	g := &Graph{}
	require.NoError(t, GraphHandler(g).Handle(nil))
	require.True(t, g.IsEmpty())
}

func TestMediaTypeForPath(t *testing.T) {
	mt, err := MediaTypeForPath("/data/dump.NQ")
	require.NoError(t, err)
	require.Equal(t, MediaTypeNQuads, mt)

	_, err = MediaTypeForPath("dump.csv")
	require.Error(t, err)
}

func TestNewTripleTermPositions(t *testing.T) {
	b, err := NewBlank("b1")
	require.NoError(t, err)
	tr := NewTriple(b, MustIRI("http://example.org/p"), NewLiteral("v"))

	require.True(t, HasBlankNodes(tr))
	require.Equal(t, `_:b1 <http://example.org/p> "v"`, TripleKey(tr))
}
