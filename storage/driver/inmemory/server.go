package inmemory

import (
	"context"
	"sort"
	"sync"

	storagedriver "github.com/rdfkit/graphstore/storage/driver"
	"github.com/rdfkit/graphstore/storage/driver/base"
)

type server struct {
	mu     sync.Mutex
	stores map[string]*Driver
}

// Server hosts any number of in-memory stores by identifier. GetStore
// returns the same Driver for the same identifier.
type Server struct {
	base.ServerBase
}

var _ storagedriver.AsyncStorageServer = &Server{}

// NewServer returns a server holding the given stores.
func NewServer(stores map[string]*Driver) *Server {
	s := &server{stores: make(map[string]*Driver, len(stores))}
	for id, d := range stores {
		s.stores[id] = d
	}
	return &Server{base.ServerBase{StorageServer: s, DriverName: driverName}}
}

func (s *server) ListStores(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.stores))
	for id := range s.stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *server) CreateStore(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stores[id]; ok {
		return false, nil
	}
	s.stores[id] = New()
	return true, nil
}

func (s *server) DeleteStore(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stores[id]; !ok {
		return storagedriver.StoreNotFoundError{DriverName: driverName, StoreID: id}
	}
	delete(s.stores, id)
	return nil
}

func (s *server) GetStore(ctx context.Context, id string) (storagedriver.StorageProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.stores[id]
	if !ok {
		return nil, storagedriver.StoreNotFoundError{DriverName: driverName, StoreID: id}
	}
	return d, nil
}
