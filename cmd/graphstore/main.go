package main

import (
	"os"

	"github.com/rdfkit/graphstore/server"
	_ "github.com/rdfkit/graphstore/storage/driver/allegrograph"
	_ "github.com/rdfkit/graphstore/storage/driver/datasetfile"
	_ "github.com/rdfkit/graphstore/storage/driver/dydra"
	_ "github.com/rdfkit/graphstore/storage/driver/inmemory"
	_ "github.com/rdfkit/graphstore/storage/driver/sparqlendpoint"
	_ "github.com/rdfkit/graphstore/storage/driver/sparqlhttp"
)

func main() {
	if err := server.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
