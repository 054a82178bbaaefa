package rdf

import "io"

// TripleSource yields triples one at a time. Next returns io.EOF once the
// source is exhausted.
type TripleSource interface {
	Next() (Triple, error)
}

// Handler is a sink for the contents of a single graph. Handle is called
// exactly once per load with a nil source when the graph does not exist.
// Handlers must consume the source before returning; sources backed by a
// network stream are closed once Handle returns.
type Handler interface {
	Handle(src TripleSource) error
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(src TripleSource) error

// Handle calls f(src).
func (f HandlerFunc) Handle(src TripleSource) error {
	return f(src)
}

type sliceSource struct {
	triples []Triple
}

// NewSliceSource returns a source over the given triples.
func NewSliceSource(ts []Triple) TripleSource {
	return &sliceSource{triples: ts}
}

func (s *sliceSource) Next() (Triple, error) {
	if len(s.triples) == 0 {
		return Triple{}, io.EOF
	}
	t := s.triples[0]
	s.triples = s.triples[1:]
	return t, nil
}

// ForEach calls fn for every triple of src until the source is exhausted or
// either returns an error. A nil source has no triples.
func ForEach(src TripleSource, fn func(Triple) error) error {
	if src == nil {
		return nil
	}
	for {
		t, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
}

// ReadAll drains src into a slice.
func ReadAll(src TripleSource) ([]Triple, error) {
	var ts []Triple
	err := ForEach(src, func(t Triple) error {
		ts = append(ts, t)
		return nil
	})
	return ts, err
}

// GraphHandler returns a handler that asserts every received triple into g.
// An absent graph leaves g untouched.
func GraphHandler(g *Graph) Handler {
	return HandlerFunc(func(src TripleSource) error {
		return ForEach(src, func(t Triple) error {
			g.Assert(t)
			return nil
		})
	})
}

// CountHandler counts the triples it receives. Absent tracks whether the
// last load reported a missing graph.
type CountHandler struct {
	Count  int
	Absent bool
}

// Handle implements Handler.
func (h *CountHandler) Handle(src TripleSource) error {
	h.Absent = src == nil
	return ForEach(src, func(Triple) error {
		h.Count++
		return nil
	})
}

// WriterHandler returns a handler that passes received triples straight
// through to enc without materializing them.
func WriterHandler(enc Encoder) Handler {
	return HandlerFunc(func(src TripleSource) error {
		return ForEach(src, enc.Encode)
	})
}
