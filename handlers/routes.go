package handlers

import (
	"regexp"
	"strings"

	"github.com/gorilla/mux"
)

// The set of named routes served by the App.
const (
	RouteNameBase       = "base"
	RouteNameStores     = "stores"
	RouteNameGraphStore = "graph-store"
	RouteNameGraphs     = "graphs"
	RouteNameSPARQL     = "sparql"
)

// StoreNameRegexp matches the store path component of every store route.
var StoreNameRegexp = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9._-]*`)

var allEndpoints = []string{
	RouteNameBase,
	RouteNameStores,
	RouteNameGraphStore,
	RouteNameGraphs,
	RouteNameSPARQL,
}

// Router builds a gorilla router with named routes for the graph store API.
func Router() *mux.Router {
	return RouterWithPrefix("")
}

// RouterWithPrefix builds a gorilla router with a configured prefix
// on all routes.
func RouterWithPrefix(prefix string) *mux.Router {
	rootRouter := mux.NewRouter()
	router := rootRouter
	if prefix = strings.TrimSuffix(prefix, "/"); prefix != "" {
		router = rootRouter.PathPrefix(prefix).Subrouter()
	}

	store := "/{store:" + StoreNameRegexp.String() + "}"

	// GET	/	Base	Check that the server is up.
	router.Path("/").Name(RouteNameBase)

	// GET	/stores	Stores	List the served stores.
	router.Path("/stores").Name(RouteNameStores)

	// GET|HEAD|PUT|POST|DELETE	/<store>/rdf-graph-store?graph=<uri>|?default	Graph Store	Indirectly identified graph operations.
	router.Path(store + "/rdf-graph-store").Name(RouteNameGraphStore)

	// GET	/<store>/graphs	Graphs	List the named graphs of a store.
	router.Path(store + "/graphs").Name(RouteNameGraphs)

	// GET|POST	/<store>/sparql	SPARQL	Query or update a store.
	router.Path(store + "/sparql").Name(RouteNameSPARQL)

	return rootRouter
}
