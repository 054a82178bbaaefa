package sparql

import (
	"regexp"
	"strings"

	"github.com/rdfkit/graphstore/rdf"
)

// ListGraphsQuery selects every graph that holds at least one statement.
const ListGraphsQuery = "SELECT DISTINCT ?g WHERE { GRAPH ?g { ?s ?p ?o } }"

// Form is the result shape of a query.
type Form int

const (
	// FormUnknown is returned when the query form cannot be recognised.
	FormUnknown Form = iota
	FormSelect
	FormAsk
	FormConstruct
	FormDescribe
)

func (f Form) String() string {
	switch f {
	case FormSelect:
		return "SELECT"
	case FormAsk:
		return "ASK"
	case FormConstruct:
		return "CONSTRUCT"
	case FormDescribe:
		return "DESCRIBE"
	}
	return "UNKNOWN"
}

// ReturnsGraph reports whether queries of this form produce triples.
func (f Form) ReturnsGraph() bool {
	return f == FormConstruct || f == FormDescribe
}

var (
	iriRef      = regexp.MustCompile(`<[^<>\s]*>`)
	stringLit   = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'`)
	comment     = regexp.MustCompile(`(?m)#.*$`)
	formKeyword = regexp.MustCompile(`(?i)\b(SELECT|ASK|CONSTRUCT|DESCRIBE)\b`)
)

// QueryForm recognises the form of query from its first query keyword,
// ignoring IRIs, strings and comments that could contain keywords.
func QueryForm(query string) Form {
	q := iriRef.ReplaceAllString(query, "<>")
	q = stringLit.ReplaceAllString(q, `""`)
	q = comment.ReplaceAllString(q, "")

	m := formKeyword.FindStringSubmatch(q)
	if m == nil {
		return FormUnknown
	}
	switch strings.ToUpper(m[1]) {
	case "SELECT":
		return FormSelect
	case "ASK":
		return FormAsk
	case "CONSTRUCT":
		return FormConstruct
	}
	return FormDescribe
}

// AcceptFor returns the Accept header to send for query: RDF types for graph
// producing forms, result set types for tabular ones and both otherwise.
func AcceptFor(query string) string {
	switch f := QueryForm(query); {
	case f.ReturnsGraph():
		return rdf.AcceptHeader
	case f == FormUnknown:
		return AcceptHeader + "," + rdf.AcceptHeader
	}
	return AcceptHeader
}

// FormatIRI returns iri in angle brackets, escaping characters not allowed
// in an IRI reference.
func FormatIRI(iri string) string {
	r := strings.NewReplacer(">", "%3E", "<", "%3C", " ", "%20", "\"", "%22", "{", "%7B", "}", "%7D", "\\", "%5C")
	return "<" + r.Replace(iri) + ">"
}

// FormatTriple renders t as a triple pattern terminated by " .".
func FormatTriple(t rdf.Triple) string {
	return rdf.TripleKey(t) + " ."
}

// GraphScope wraps data in a GRAPH block for named graphs and leaves it as is
// for the default graph.
func GraphScope(graphURI, data string) string {
	if graphURI == "" {
		return data
	}
	return "GRAPH " + FormatIRI(graphURI) + " { " + data + " }"
}
