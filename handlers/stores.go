package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/handlers"

	storagedriver "github.com/rdfkit/graphstore/storage/driver"
	"github.com/rdfkit/graphstore/storage/driver/httpbase"
)

func storesDispatcher(ctx *Context, r *http.Request) http.Handler {
	storesHandler := &storesHandler{
		Context: ctx,
	}

	return handlers.MethodHandler{
		http.MethodGet: http.HandlerFunc(storesHandler.GetStores),
	}
}

type storesHandler struct {
	*Context
}

type storeDescription struct {
	Name         string   `json:"name"`
	Driver       string   `json:"driver"`
	ReadOnly     bool     `json:"readOnly"`
	Capabilities []string `json:"capabilities"`
}

type storesAPIResponse struct {
	Stores []storeDescription `json:"stores"`
}

// capabilityNames lists the optional operations p supports.
func capabilityNames(p storagedriver.StorageProvider) []string {
	caps := p.Capabilities()
	names := []string{}
	if caps.UpdateSupported {
		names = append(names, "update")
	}
	if caps.DeleteSupported {
		names = append(names, "delete")
	}
	if caps.ListGraphsSupported {
		names = append(names, "listgraphs")
	}
	if _, ok := storagedriver.AsQueryable(p); ok {
		names = append(names, "query")
	}
	if _, ok := storagedriver.AsUpdateable(p); ok {
		names = append(names, "sparqlupdate")
	}
	if _, ok := storagedriver.AsTransactional(p); ok {
		names = append(names, "transactions")
	}
	return names
}

// GetStores lists the served stores and what each supports.
func (sh *storesHandler) GetStores(w http.ResponseWriter, r *http.Request) {
	resp := storesAPIResponse{Stores: []storeDescription{}}
	for _, name := range sh.StoreNames() {
		p := sh.stores[name]
		resp.Stores = append(resp.Stores, storeDescription{
			Name:         name,
			Driver:       p.Name(),
			ReadOnly:     p.Capabilities().ReadOnly,
			Capabilities: capabilityNames(p),
		})
	}

	if err := serveJSON(w, resp); err != nil {
		sh.Failure = err
	}
}

func graphsDispatcher(ctx *Context, r *http.Request) http.Handler {
	graphsHandler := &graphsHandler{
		Context: ctx,
	}

	return handlers.MethodHandler{
		http.MethodGet: http.HandlerFunc(graphsHandler.GetGraphs),
	}
}

type graphsHandler struct {
	*Context
}

type graphsAPIResponse struct {
	Store  string   `json:"store"`
	Graphs []string `json:"graphs"`
}

// GetGraphs lists the named graphs of the store. Stores without a native
// listing are asked through a SPARQL query when they accept one.
func (gh *graphsHandler) GetGraphs(w http.ResponseWriter, r *http.Request) {
	graphs, err := gh.Store.ListGraphs(gh)
	if errors.Is(err, storagedriver.ErrUnsupported) {
		graphs, err = httpbase.ListGraphsByQuery(gh, gh.Store)
	}
	if err != nil {
		gh.Failure = err
		return
	}
	if graphs == nil {
		graphs = []string{}
	}

	if err := serveJSON(w, graphsAPIResponse{Store: gh.StoreName, Graphs: graphs}); err != nil {
		gh.Failure = err
	}
}
