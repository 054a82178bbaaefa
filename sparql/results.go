// Package sparql covers the parts of SPARQL the storage layer touches:
// result sets returned by query endpoints, recognising the form of a query
// and formatting data for update requests. Query evaluation lives in the
// stores themselves.
package sparql

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/rdfkit/graphstore/rdf"
)

// Media types for SPARQL result sets.
const (
	MediaTypeResultsJSON = "application/sparql-results+json"
	MediaTypeResultsXML  = "application/sparql-results+xml"
	MediaTypeJSON        = "application/json"
	MediaTypeXML         = "application/xml"
)

// AcceptHeader lists the result set formats ParseResults reads.
const AcceptHeader = MediaTypeResultsJSON + "," + MediaTypeResultsXML + ";q=0.9," +
	MediaTypeJSON + ";q=0.8," + MediaTypeXML + ";q=0.5"

// Binding is one variable binding of a solution.
type Binding struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

// Term converts the binding into an RDF term.
func (b Binding) Term() (rdf.Term, error) {
	switch b.Type {
	case "uri":
		return rdf.NewIRI(b.Value)
	case "bnode":
		return rdf.NewBlank(b.Value)
	case "literal", "typed-literal":
		if b.Datatype != "" {
			dt, err := rdf.NewIRI(b.Datatype)
			if err != nil {
				return nil, err
			}
			return rdf.NewTypedLiteral(b.Value, dt), nil
		}
		return rdf.NewLiteral(b.Value), nil
	}
	return nil, fmt.Errorf("unknown binding type %q", b.Type)
}

// Solution maps variable names to their bindings. Unbound variables are
// absent.
type Solution map[string]Binding

// Results is a tabular or boolean query result. Boolean is set only for ASK
// queries.
type Results struct {
	Vars      []string
	Solutions []Solution
	Boolean   *bool
}

// IsBoolean reports whether r is the result of an ASK query.
func (r *Results) IsBoolean() bool {
	return r.Boolean != nil
}

// ResultsHandler receives the tabular or boolean result of a query.
type ResultsHandler interface {
	HandleResults(r *Results) error
}

// ResultsHandlerFunc adapts a function to a ResultsHandler.
type ResultsHandlerFunc func(r *Results) error

// HandleResults calls f(r).
func (f ResultsHandlerFunc) HandleResults(r *Results) error {
	return f(r)
}

// ResultsCollector keeps the last result set it was handed.
type ResultsCollector struct {
	Results *Results
}

// HandleResults implements ResultsHandler.
func (c *ResultsCollector) HandleResults(r *Results) error {
	c.Results = r
	return nil
}

// ListURIsHandler collects the distinct IRI values bound to Var, in the order
// they are first seen.
type ListURIsHandler struct {
	Var  string
	URIs []string
}

// HandleResults implements ResultsHandler.
func (h *ListURIsHandler) HandleResults(r *Results) error {
	seen := make(map[string]struct{}, len(h.URIs))
	for _, u := range h.URIs {
		seen[u] = struct{}{}
	}
	for _, s := range r.Solutions {
		b, ok := s[h.Var]
		if !ok || b.Type != "uri" {
			continue
		}
		if _, dup := seen[b.Value]; dup {
			continue
		}
		seen[b.Value] = struct{}{}
		h.URIs = append(h.URIs, b.Value)
	}
	return nil
}

// IsResultsMediaType reports whether contentType names a result set format.
func IsResultsMediaType(contentType string) bool {
	switch rdf.MediaType(contentType) {
	case MediaTypeResultsJSON, MediaTypeResultsXML, MediaTypeJSON, MediaTypeXML:
		return true
	}
	return false
}

// ParseResults reads a result set of the given content type from r.
func ParseResults(r io.Reader, contentType string) (*Results, error) {
	switch rdf.MediaType(contentType) {
	case MediaTypeResultsJSON, MediaTypeJSON:
		return parseJSON(r)
	case MediaTypeResultsXML, MediaTypeXML:
		return parseXML(r)
	}
	return nil, rdf.UnsupportedMediaTypeError{MediaType: rdf.MediaType(contentType)}
}

type jsonResults struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results *struct {
		Bindings []Solution `json:"bindings"`
	} `json:"results"`
	Boolean *bool `json:"boolean"`
}

func parseJSON(r io.Reader) (*Results, error) {
	var doc jsonResults
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid SPARQL JSON results: %w", err)
	}
	res := &Results{Vars: doc.Head.Vars, Boolean: doc.Boolean}
	if doc.Results != nil {
		res.Solutions = doc.Results.Bindings
	}
	return res, nil
}

type xmlResults struct {
	XMLName xml.Name `xml:"sparql"`
	Head    struct {
		Variables []struct {
			Name string `xml:"name,attr"`
		} `xml:"variable"`
	} `xml:"head"`
	Results struct {
		Result []struct {
			Bindings []struct {
				Name    string  `xml:"name,attr"`
				URI     *string `xml:"uri"`
				BNode   *string `xml:"bnode"`
				Literal *struct {
					Value    string `xml:",chardata"`
					Lang     string `xml:"http://www.w3.org/XML/1998/namespace lang,attr"`
					Datatype string `xml:"datatype,attr"`
				} `xml:"literal"`
			} `xml:"binding"`
		} `xml:"result"`
	} `xml:"results"`
	Boolean *bool `xml:"boolean"`
}

func parseXML(r io.Reader) (*Results, error) {
	var doc xmlResults
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid SPARQL XML results: %w", err)
	}
	res := &Results{Boolean: doc.Boolean}
	for _, v := range doc.Head.Variables {
		res.Vars = append(res.Vars, v.Name)
	}
	for _, result := range doc.Results.Result {
		s := make(Solution, len(result.Bindings))
		for _, b := range result.Bindings {
			switch {
			case b.URI != nil:
				s[b.Name] = Binding{Type: "uri", Value: *b.URI}
			case b.BNode != nil:
				s[b.Name] = Binding{Type: "bnode", Value: *b.BNode}
			case b.Literal != nil:
				s[b.Name] = Binding{Type: "literal", Value: b.Literal.Value, Lang: b.Literal.Lang, Datatype: b.Literal.Datatype}
			}
		}
		res.Solutions = append(res.Solutions, s)
	}
	return res, nil
}

// WriteJSON encodes r as SPARQL JSON results.
func WriteJSON(w io.Writer, r *Results) error {
	var doc jsonResults
	doc.Head.Vars = r.Vars
	doc.Boolean = r.Boolean
	if r.Boolean == nil {
		doc.Results = &struct {
			Bindings []Solution `json:"bindings"`
		}{Bindings: r.Solutions}
		if doc.Results.Bindings == nil {
			doc.Results.Bindings = []Solution{}
		}
	}
	return json.NewEncoder(w).Encode(doc)
}
