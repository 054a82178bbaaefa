package server

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rdfkit/graphstore/configuration"
	"github.com/rdfkit/graphstore/internal/dcontext"
	"github.com/rdfkit/graphstore/internal/stores"
	"github.com/rdfkit/graphstore/rdf"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
	"github.com/rdfkit/graphstore/transfer"
	"github.com/rdfkit/graphstore/version"
)

// configurationPathEnv names the configuration file when no argument does.
const configurationPathEnv = "GRAPHSTORE_CONFIGURATION_PATH"

var showVersion bool

var (
	storeName string
	graphURI  string

	copyFrom        string
	copyTo          string
	copyTargetGraph string
	copyMove        bool
	copyConcurrency int
)

func init() {
	RootCmd.AddCommand(ServeCmd)
	RootCmd.AddCommand(GraphsCmd)
	RootCmd.AddCommand(ExportCmd)
	RootCmd.AddCommand(CopyCmd)
	RootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show the version and exit")

	GraphsCmd.Flags().StringVarP(&storeName, "store", "s", "", "the store whose graphs are listed")
	ExportCmd.Flags().StringVarP(&storeName, "store", "s", "", "the store holding the graph")
	ExportCmd.Flags().StringVarP(&graphURI, "graph", "g", "", "the graph to export; the default graph when empty")

	CopyCmd.Flags().StringVar(&copyFrom, "from", "", "the source store")
	CopyCmd.Flags().StringVar(&copyTo, "to", "", "the target store")
	CopyCmd.Flags().StringVarP(&graphURI, "graph", "g", "", "copy only this graph; every graph when unset")
	CopyCmd.Flags().StringVar(&copyTargetGraph, "target-graph", "", "the name of the copy of --graph; the same name when unset")
	CopyCmd.Flags().BoolVarP(&copyMove, "move", "m", false, "delete the graph from the source once copied")
	CopyCmd.Flags().IntVarP(&copyConcurrency, "concurrency", "c", transfer.DefaultConcurrency, "graphs copied at once when copying every graph")
}

// RootCmd is the main command for the 'graphstore' binary.
var RootCmd = &cobra.Command{
	Use:   "graphstore",
	Short: "`graphstore` serves and manages RDF graph stores",
	Long:  "`graphstore` serves the configured RDF stores over the SPARQL 1.1 Graph Store Protocol and moves graphs between them",
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			version.PrintVersion()
			return
		}
		// nolint:errcheck
		cmd.Usage()
	},
}

// ServeCmd is a cobra command for running the graph store server.
var ServeCmd = &cobra.Command{
	Use:   "serve <config>",
	Short: "`serve` serves the stores named in the provided config",
	Long:  "`serve` opens every configured store and serves it over the SPARQL 1.1 Graph Store Protocol",
	Run: func(cmd *cobra.Command, args []string) {
		config := mustResolveConfiguration(cmd, args)

		srv, err := NewServer(dcontext.Background(), config)
		if err != nil {
			fatalf("failed to start server: %v", err)
		}
		if err := srv.ListenAndServe(); err != nil {
			fatalf("server failed: %v", err)
		}
	},
}

// GraphsCmd lists the graphs of a store.
var GraphsCmd = &cobra.Command{
	Use:   "graphs <config> --store <name>",
	Short: "`graphs` lists the named graphs of a store",
	Long:  "`graphs` lists the named graphs of a store, one URI per line",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, p := mustOpenStore(cmd, args, storeName)
		if err := listGraphs(ctx, os.Stdout, p); err != nil {
			fatalf("%v", err)
		}
	},
}

// ExportCmd writes a graph of a store to standard output.
var ExportCmd = &cobra.Command{
	Use:   "export <config> --store <name> [--graph <uri>]",
	Short: "`export` writes a graph as N-Triples to standard output",
	Long:  "`export` streams a graph of a store to standard output as N-Triples without holding it in memory",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, p := mustOpenStore(cmd, args, storeName)
		if err := exportGraph(ctx, os.Stdout, p, graphURI); err != nil {
			fatalf("%v", err)
		}
	},
}

// CopyCmd copies or moves graphs between two configured stores.
var CopyCmd = &cobra.Command{
	Use:   "copy <config> --from <store> --to <store> [--graph <uri>] [--move]",
	Short: "`copy` copies or moves graphs between stores",
	Long:  "`copy` copies one graph, or every graph of the source store, into the target store",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, src := mustOpenStore(cmd, args, copyFrom)
		dst := src
		if copyTo != copyFrom {
			_, dst = mustOpenStore(cmd, args, copyTo)
		}
		if err := copyGraphs(ctx, os.Stdout, src, dst); err != nil {
			fatalf("%v", err)
		}
	},
}

func listGraphs(ctx context.Context, w io.Writer, p storagedriver.StorageProvider) error {
	graphs, err := p.ListGraphs(ctx)
	if err != nil {
		return err
	}
	for _, g := range graphs {
		fmt.Fprintln(w, g)
	}
	return nil
}

func exportGraph(ctx context.Context, w io.Writer, p storagedriver.StorageProvider, graphURI string) error {
	enc, err := rdf.NewEncoder(w, rdf.MediaTypeNTriples)
	if err != nil {
		return err
	}
	if err := p.LoadGraphHandler(ctx, rdf.WriterHandler(enc), graphURI); err != nil {
		return err
	}
	return enc.Close()
}

func copyGraphs(ctx context.Context, w io.Writer, src, dst storagedriver.StorageProvider) error {
	if graphURI == "" && copyTargetGraph == "" && !copyMove {
		copied, err := transfer.CopyAll(ctx, src, dst, copyConcurrency)
		fmt.Fprintf(w, "copied %d graphs\n", len(copied))
		return err
	}

	target := copyTargetGraph
	if target == "" {
		target = graphURI
	}
	if copyMove {
		return transfer.MoveGraph(ctx, src, dst, graphURI, target)
	}
	return transfer.CopyGraph(ctx, src, dst, graphURI, target)
}

func mustOpenStore(cmd *cobra.Command, args []string, name string) (context.Context, storagedriver.StorageProvider) {
	config := mustResolveConfiguration(cmd, args)
	if name == "" {
		fmt.Fprintln(os.Stderr, "a store name is required")
		// nolint:errcheck
		cmd.Usage()
		os.Exit(1)
	}

	ctx := dcontext.Background()
	ctx, err := configureLogging(ctx, config)
	if err != nil {
		fatalf("unable to configure logging with config: %s", err)
	}
	p, err := stores.OpenStore(ctx, config, name)
	if err != nil {
		fatalf("%v", err)
	}
	return ctx, p
}

func mustResolveConfiguration(cmd *cobra.Command, args []string) *configuration.Configuration {
	config, err := resolveConfiguration(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		// nolint:errcheck
		cmd.Usage()
		os.Exit(1)
	}
	return config
}

func resolveConfiguration(args []string) (*configuration.Configuration, error) {
	var configurationPath string

	if len(args) > 0 {
		configurationPath = args[0]
	} else if os.Getenv(configurationPathEnv) != "" {
		configurationPath = os.Getenv(configurationPathEnv)
	}

	if configurationPath == "" {
		return nil, fmt.Errorf("configuration path unspecified")
	}

	fp, err := os.Open(configurationPath)
	if err != nil {
		return nil, err
	}

	defer fp.Close()

	config, err := configuration.Parse(fp)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %v", configurationPath, err)
	}

	return config, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
