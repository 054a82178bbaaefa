package metrics

import "github.com/docker/go-metrics"

const (
	// NamespacePrefix is the namespace of prometheus metrics
	NamespacePrefix = "graphstore"
)

var (
	// StorageNamespace is the prometheus namespace of storage driver operations
	StorageNamespace = metrics.NewNamespace(NamespacePrefix, "storage", nil)

	// HTTPNamespace is the prometheus namespace of requests made by HTTP
	// backed drivers
	HTTPNamespace = metrics.NewNamespace(NamespacePrefix, "http", nil)

	// ServerNamespace is the prometheus namespace of the graph store server
	ServerNamespace = metrics.NewNamespace(NamespacePrefix, "server", nil)
)

var (
	// StorageAction times every call made through a driver base, labelled
	// by driver and operation.
	StorageAction = StorageNamespace.NewLabeledTimer("action", "The number of seconds that the storage action takes", "driver", "action")

	// StorageErrors counts failed driver calls.
	StorageErrors = StorageNamespace.NewLabeledCounter("errors", "The number of failed storage actions", "driver", "action")

	// HTTPResponses counts responses received by HTTP drivers by status
	// class, with "none" for transport failures.
	HTTPResponses = HTTPNamespace.NewLabeledCounter("responses", "The number of HTTP responses received from stores", "driver", "class")

	// ServerRequests counts graph store server requests by store and method.
	ServerRequests = ServerNamespace.NewLabeledCounter("requests", "The number of graph store requests served", "store", "method")
)

func init() {
	metrics.Register(StorageNamespace)
	metrics.Register(HTTPNamespace)
	metrics.Register(ServerNamespace)
}
