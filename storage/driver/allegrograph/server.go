package allegrograph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	storagedriver "github.com/rdfkit/graphstore/storage/driver"
	"github.com/rdfkit/graphstore/storage/driver/base"
	"github.com/rdfkit/graphstore/storage/driver/httpbase"
)

type server struct {
	opts    Options
	catalog *url.URL
	conn    *httpbase.Connector
}

// Server manages the repositories of one AllegroGraph catalog.
type Server struct {
	base.ServerBase
}

var _ storagedriver.AsyncStorageServer = &Server{}

// NewServer returns a Server for the catalog named in opts. opts.Store is
// ignored.
func NewServer(opts Options) (*Server, error) {
	catalog, err := opts.catalogURL()
	if err != nil {
		return nil, err
	}
	conn, err := httpbase.New(driverName, opts.Options)
	if err != nil {
		return nil, err
	}
	conn.AcceptFilter = AcceptFilter

	s := &server{opts: opts, catalog: catalog, conn: conn}
	return &Server{base.ServerBase{StorageServer: s, DriverName: driverName}}, nil
}

// SerializeConfiguration describes the server and its catalog.
func (s *Server) SerializeConfiguration(ctx *storagedriver.SerializationContext) error {
	inner := s.StorageServer.(*server)
	ctx.SerializeDriver(storagedriver.ConfigClassStorageServer, driverName, "AllegroGraph Server")
	ctx.AssertLiteral(storagedriver.ConfigPropertyServer, inner.opts.Server)
	ctx.AssertLiteral(storagedriver.ConfigPropertyCatalog, inner.opts.Catalog)
	inner.conn.SerializeStandardConfig(ctx)
	return nil
}

// repositoryInfo is one entry of the repository listing.
type repositoryInfo struct {
	ID string `json:"id"`
}

func (s *server) ListStores(ctx context.Context) ([]string, error) {
	req, err := s.conn.NewRequest(ctx, http.MethodGet, s.catalog.JoinPath("repositories").String(), "")
	if err != nil {
		return nil, err
	}
	// The listing is only offered as JSON, which the accept filter strips.
	req.Header.Set("Accept", "application/json")

	var repos []repositoryInfo
	err = s.conn.Send(req, httpbase.ActionListStores, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&repos); err != nil {
			return fmt.Errorf("decoding repository list: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(repos))
	for _, r := range repos {
		if r.ID != "" {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

// CreateStore PUTs the repository without overriding an existing one. The
// server rejects an existing repository with 400 or 409.
func (s *server) CreateStore(ctx context.Context, id string) (bool, error) {
	u := s.catalog.JoinPath("repositories", id)
	u.RawQuery = url.Values{"override": {"false"}}.Encode()
	req, err := s.conn.NewRequest(ctx, http.MethodPut, u.String(), "")
	if err != nil {
		return false, err
	}
	status, err := s.conn.Exec(req, httpbase.ActionCreateStore, http.StatusBadRequest, http.StatusConflict)
	if err != nil {
		return false, err
	}
	return httpbase.IsSuccess(status), nil
}

func (s *server) DeleteStore(ctx context.Context, id string) error {
	req, err := s.conn.NewRequest(ctx, http.MethodDelete, s.catalog.JoinPath("repositories", id).String(), "")
	if err != nil {
		return err
	}
	status, err := s.conn.Exec(req, httpbase.ActionDeleteStore, http.StatusNotFound)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return storagedriver.StoreNotFoundError{DriverName: driverName, StoreID: id}
	}
	return nil
}

func (s *server) GetStore(ctx context.Context, id string) (storagedriver.StorageProvider, error) {
	opts := s.opts
	opts.Store = id
	return New(opts)
}
