package sparql

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rdfkit/graphstore/rdf"
)

func TestQueryForm(t *testing.T) {
	for _, tc := range []struct {
		query string
		form  Form
	}{
		{ListGraphsQuery, FormSelect},
		{"ask { ?s ?p ?o }", FormAsk},
		{"PREFIX ex: <http://example.org/select/> CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }", FormConstruct},
		{"# SELECT in a comment\nDESCRIBE <http://example.org/ask>", FormDescribe},
		{"INSERT DATA { <http://example.org/s> <http://example.org/p> \"select\" }", FormUnknown},
	} {
		require.Equal(t, tc.form, QueryForm(tc.query), tc.query)
	}
}

func TestAcceptFor(t *testing.T) {
	require.Equal(t, rdf.AcceptHeader, AcceptFor("CONSTRUCT WHERE { ?s ?p ?o }"))
	require.Equal(t, AcceptHeader, AcceptFor("SELECT * WHERE { ?s ?p ?o }"))
	require.Contains(t, AcceptFor("LOAD <http://example.org/>"), rdf.MediaTypeNTriples)
}

const jsonDoc = `{
  "head": {"vars": ["g"]},
  "results": {"bindings": [
    {"g": {"type": "uri", "value": "http://example.org/g1"}},
    {"g": {"type": "uri", "value": "http://example.org/g2"}},
    {"g": {"type": "literal", "value": "not a graph"}},
    {"g": {"type": "uri", "value": "http://example.org/g1"}}
  ]}
}`

const xmlDoc = `<?xml version="1.0"?>
<sparql xmlns="http://www.w3.org/2005/sparql-results#">
  <head><variable name="g"/></head>
  <results>
    <result><binding name="g"><uri>http://example.org/g1</uri></binding></result>
    <result><binding name="g"><literal xml:lang="en">hello</literal></binding></result>
  </results>
</sparql>`

func TestParseJSONResults(t *testing.T) {
	res, err := ParseResults(strings.NewReader(jsonDoc), "application/sparql-results+json; charset=utf-8")
	require.NoError(t, err)
	require.Equal(t, []string{"g"}, res.Vars)
	require.Len(t, res.Solutions, 4)
	require.False(t, res.IsBoolean())

	h := &ListURIsHandler{Var: "g"}
	require.NoError(t, h.HandleResults(res))
	require.Equal(t, []string{"http://example.org/g1", "http://example.org/g2"}, h.URIs)
}

func TestParseXMLResults(t *testing.T) {
	res, err := ParseResults(strings.NewReader(xmlDoc), MediaTypeResultsXML)
	require.NoError(t, err)
	require.Equal(t, []string{"g"}, res.Vars)
	require.Len(t, res.Solutions, 2)
	require.Equal(t, "uri", res.Solutions[0]["g"].Type)
	require.Equal(t, "hello", res.Solutions[1]["g"].Value)
	require.Equal(t, "en", res.Solutions[1]["g"].Lang)
}

func TestParseBooleanResult(t *testing.T) {
	res, err := ParseResults(strings.NewReader(`{"head": {}, "boolean": true}`), MediaTypeJSON)
	require.NoError(t, err)
	require.True(t, res.IsBoolean())
	require.True(t, *res.Boolean)
}

func TestParseUnsupportedResults(t *testing.T) {
	_, err := ParseResults(strings.NewReader("a,b"), "text/csv")
	require.Error(t, err)
	require.IsType(t, rdf.UnsupportedMediaTypeError{}, err)
}

func TestWriteJSONRoundTrip(t *testing.T) {
	in := &Results{
		Vars:      []string{"g"},
		Solutions: []Solution{{"g": {Type: "uri", Value: "http://example.org/g"}}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, in))

	out, err := ParseResults(&buf, MediaTypeResultsJSON)
	require.NoError(t, err)
	require.Equal(t, in.Vars, out.Vars)
	require.Equal(t, in.Solutions, out.Solutions)
}

func TestFormatting(t *testing.T) {
	require.Equal(t, "<http://example.org/a%20b>", FormatIRI("http://example.org/a b"))
	require.Equal(t, "x", GraphScope("", "x"))
	require.Equal(t, "GRAPH <http://example.org/g> { x }", GraphScope("http://example.org/g", "x"))

	tr := rdf.NewTriple(rdf.MustIRI("http://example.org/s"), rdf.MustIRI("http://example.org/p"), rdf.MustIRI("http://example.org/o"))
	require.Equal(t, "<http://example.org/s> <http://example.org/p> <http://example.org/o> .", FormatTriple(tr))
}

func TestBindingTerm(t *testing.T) {
	term, err := Binding{Type: "uri", Value: "http://example.org/x"}.Term()
	require.NoError(t, err)
	v, ok := rdf.IRIValue(term)
	require.True(t, ok)
	require.Equal(t, "http://example.org/x", v)

	_, err = Binding{Type: "triple"}.Term()
	require.Error(t, err)
}
