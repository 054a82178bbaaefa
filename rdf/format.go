package rdf

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	krdf "github.com/knakk/rdf"
)

// Media types understood by the parser and writer registry.
const (
	MediaTypeNTriples  = "application/n-triples"
	MediaTypeTextPlain = "text/plain"
	MediaTypeTurtle    = "text/turtle"
	MediaTypeXTurtle   = "application/x-turtle"
	MediaTypeRDFXML    = "application/rdf+xml"
	MediaTypeNQuads    = "application/n-quads"
)

// AcceptHeader lists every RDF media type this package can parse, most
// preferred first.
const AcceptHeader = MediaTypeNTriples + "," + MediaTypeTextPlain + ";q=0.9," +
	MediaTypeTurtle + "," + MediaTypeXTurtle + ";q=0.9," +
	MediaTypeRDFXML + ";q=0.8," + MediaTypeNQuads + ";q=0.7"

var formats = map[string]krdf.Format{
	MediaTypeNTriples:    krdf.NTriples,
	MediaTypeTextPlain:   krdf.NTriples,
	"text/ntriples":      krdf.NTriples,
	MediaTypeTurtle:      krdf.Turtle,
	MediaTypeXTurtle:     krdf.Turtle,
	"application/turtle": krdf.Turtle,
	MediaTypeRDFXML:      krdf.RDFXML,
	MediaTypeNQuads:      krdf.NQuads,
	"text/x-nquads":      krdf.NQuads,
}

var extensions = map[string]string{
	".nt":  MediaTypeNTriples,
	".ttl": MediaTypeTurtle,
	".rdf": MediaTypeRDFXML,
	".owl": MediaTypeRDFXML,
	".nq":  MediaTypeNQuads,
}

// UnsupportedMediaTypeError is returned when no parser or writer is
// registered for a content type.
type UnsupportedMediaTypeError struct {
	MediaType string
}

func (err UnsupportedMediaTypeError) Error() string {
	return fmt.Sprintf("no RDF parser or writer available for media type %q", err.MediaType)
}

// MediaType strips parameters from a Content-Type value and lowercases it.
func MediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return strings.ToLower(mt)
}

// IsRDFMediaType reports whether contentType names a format NewDecoder can
// read.
func IsRDFMediaType(contentType string) bool {
	_, ok := formats[MediaType(contentType)]
	return ok
}

// MediaTypeForPath guesses the media type of a file from its extension.
func MediaTypeForPath(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if mt, ok := extensions[ext]; ok {
		return mt, nil
	}
	return "", UnsupportedMediaTypeError{MediaType: ext}
}

type tripleDecoder interface {
	Decode() (krdf.Triple, error)
}

type quadDecoder interface {
	Decode() (krdf.Quad, error)
}

type decoderSource struct {
	dec tripleDecoder
}

func (s decoderSource) Next() (Triple, error) {
	return s.dec.Decode()
}

type quadTriples struct {
	dec quadDecoder
}

func (s quadTriples) Next() (Triple, error) {
	q, err := s.dec.Decode()
	if err != nil {
		return Triple{}, err
	}
	return q.Triple, nil
}

// NewDecoder returns a source reading triples of the given content type from
// r. N-Quads input is flattened to its triples.
func NewDecoder(r io.Reader, contentType string) (TripleSource, error) {
	mt := MediaType(contentType)
	f, ok := formats[mt]
	if !ok {
		return nil, UnsupportedMediaTypeError{MediaType: mt}
	}
	if f == krdf.NQuads {
		return quadTriples{dec: krdf.NewQuadDecoder(r, krdf.NQuads)}, nil
	}
	return decoderSource{dec: krdf.NewTripleDecoder(r, f)}, nil
}

// Quad is a triple together with the name of the graph holding it. An empty
// Graph is the default graph.
type Quad struct {
	Triple Triple
	Graph  string
}

// QuadSource yields quads until io.EOF.
type QuadSource interface {
	Next() (Quad, error)
}

type quadSource struct {
	dec quadDecoder
}

func (s quadSource) Next() (Quad, error) {
	q, err := s.dec.Decode()
	if err != nil {
		return Quad{}, err
	}
	var graph string
	if q.Ctx != nil {
		graph, _ = IRIValue(q.Ctx)
	}
	return Quad{Triple: q.Triple, Graph: graph}, nil
}

type tripleQuads struct {
	src   TripleSource
	graph string
}

func (s tripleQuads) Next() (Quad, error) {
	t, err := s.src.Next()
	if err != nil {
		return Quad{}, err
	}
	return Quad{Triple: t, Graph: s.graph}, nil
}

// NewQuadDecoder returns a source reading quads from r. Triple formats place
// every statement in graph.
func NewQuadDecoder(r io.Reader, contentType, graph string) (QuadSource, error) {
	mt := MediaType(contentType)
	f, ok := formats[mt]
	if !ok {
		return nil, UnsupportedMediaTypeError{MediaType: mt}
	}
	if f == krdf.NQuads {
		return quadSource{dec: krdf.NewQuadDecoder(r, krdf.NQuads)}, nil
	}
	return tripleQuads{src: decoderSource{dec: krdf.NewTripleDecoder(r, f)}, graph: graph}, nil
}

// Encoder writes triples to an underlying stream. Close flushes buffered
// output but does not close the stream.
type Encoder interface {
	Encode(t Triple) error
	Close() error
}

// NewEncoder returns an encoder writing the given content type to w. Only
// line based N-Triples output is supported.
func NewEncoder(w io.Writer, contentType string) (Encoder, error) {
	mt := MediaType(contentType)
	if f, ok := formats[mt]; !ok || f != krdf.NTriples {
		return nil, UnsupportedMediaTypeError{MediaType: mt}
	}
	return krdf.NewTripleEncoder(w, krdf.NTriples), nil
}

// WriteTriples encodes ts as N-Triples to w.
func WriteTriples(w io.Writer, ts []Triple) error {
	enc, err := NewEncoder(w, MediaTypeNTriples)
	if err != nil {
		return err
	}
	for _, t := range ts {
		if err := enc.Encode(t); err != nil {
			return err
		}
	}
	return enc.Close()
}
