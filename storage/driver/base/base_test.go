package base

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rdfkit/graphstore/rdf"
	"github.com/rdfkit/graphstore/sparql"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
)

// spyDriver records every call that reaches it.
type spyDriver struct {
	caps  storagedriver.Capabilities
	calls atomic.Int32
	err   error
	panic bool
}

func (d *spyDriver) Name() string { return "spy" }

func (d *spyDriver) Capabilities() storagedriver.Capabilities { return d.caps }

func (d *spyDriver) hit() error {
	d.calls.Add(1)
	if d.panic {
		panic("driver exploded")
	}
	return d.err
}

func (d *spyDriver) LoadGraph(ctx context.Context, g *rdf.Graph, graphURI string) error {
	return d.hit()
}

func (d *spyDriver) LoadGraphHandler(ctx context.Context, h rdf.Handler, graphURI string) error {
	return d.hit()
}

func (d *spyDriver) SaveGraph(ctx context.Context, g *rdf.Graph) error { return d.hit() }

func (d *spyDriver) UpdateGraph(ctx context.Context, graphURI string, additions, removals []rdf.Triple) error {
	return d.hit()
}

func (d *spyDriver) DeleteGraph(ctx context.Context, graphURI string) error { return d.hit() }

func (d *spyDriver) ListGraphs(ctx context.Context) ([]string, error) {
	return []string{"http://example.org/g"}, d.hit()
}

type spyQueryable struct {
	spyDriver
}

func (d *spyQueryable) Query(ctx context.Context, query string) (*storagedriver.QueryResult, error) {
	return storagedriver.RunQuery(ctx, d.QueryHandlers, query)
}

func (d *spyQueryable) QueryHandlers(ctx context.Context, rh rdf.Handler, sh sparql.ResultsHandler, query string) error {
	if err := d.hit(); err != nil {
		return err
	}
	return sh.HandleResults(&sparql.Results{Vars: []string{"g"}})
}

var (
	readWrite = storagedriver.Capabilities{
		Ready:               true,
		UpdateSupported:     true,
		DeleteSupported:     true,
		ListGraphsSupported: true,
		IOBehaviour:         storagedriver.GraphStore,
	}
	readOnly = storagedriver.Capabilities{
		Ready:       true,
		ReadOnly:    true,
		IOBehaviour: storagedriver.ReadOnlyGraphStore,
	}
	ex = rdf.NewTriple(rdf.MustIRI("http://example.org/s"), rdf.MustIRI("http://example.org/p"), rdf.MustIRI("http://example.org/o"))
)

func TestUnsupportedNeverReachesDriver(t *testing.T) {
	ctx := context.Background()
	spy := &spyDriver{caps: readOnly}
	b := &Base{StorageProvider: spy}

	g, err := rdf.NewGraph("http://example.org/g")
	require.NoError(t, err)

	require.ErrorIs(t, b.SaveGraph(ctx, g), storagedriver.ErrUnsupported)
	require.ErrorIs(t, b.UpdateGraph(ctx, "http://example.org/g", []rdf.Triple{ex}, nil), storagedriver.ErrUnsupported)
	require.ErrorIs(t, b.UpdateGraph(ctx, "http://example.org/g", nil, nil), storagedriver.ErrUnsupported)
	require.ErrorIs(t, b.DeleteGraph(ctx, "http://example.org/g"), storagedriver.ErrUnsupported)
	_, err = b.ListGraphs(ctx)
	require.ErrorIs(t, err, storagedriver.ErrUnsupported)

	require.Zero(t, spy.calls.Load())
}

func TestUpdateNotSupportedOnWritableStore(t *testing.T) {
	caps := readWrite
	caps.UpdateSupported = false
	spy := &spyDriver{caps: caps}
	b := &Base{StorageProvider: spy}

	err := b.UpdateGraph(context.Background(), "", []rdf.Triple{ex}, nil)
	var unsupported storagedriver.UnsupportedError
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, storagedriver.OperationUpdateGraph, unsupported.Operation)
	require.Zero(t, spy.calls.Load())
}

func TestRemovalsRejectedWhenStoreOnlyAppends(t *testing.T) {
	caps := readWrite
	caps.IOBehaviour.CanRemoveTriples = false
	spy := &spyDriver{caps: caps}
	b := &Base{StorageProvider: spy}

	require.ErrorIs(t, b.UpdateGraph(context.Background(), "", nil, []rdf.Triple{ex}), storagedriver.ErrUnsupported)
	require.NoError(t, b.UpdateGraph(context.Background(), "", []rdf.Triple{ex}, nil))
	require.EqualValues(t, 1, spy.calls.Load())
}

func TestEmptyUpdateIsNoop(t *testing.T) {
	spy := &spyDriver{caps: readWrite}
	b := &Base{StorageProvider: spy}

	require.NoError(t, b.UpdateGraph(context.Background(), "http://example.org/g", nil, []rdf.Triple{}))
	require.Zero(t, spy.calls.Load())
}

func TestInvalidGraphURI(t *testing.T) {
	spy := &spyDriver{caps: readWrite}
	b := &Base{StorageProvider: spy}

	err := b.LoadGraph(context.Background(), &rdf.Graph{}, "not a uri")
	require.IsType(t, storagedriver.InvalidGraphURIError{}, err)
	err = b.DeleteGraph(context.Background(), "relative")
	require.IsType(t, storagedriver.InvalidGraphURIError{}, err)
	require.Zero(t, spy.calls.Load())
}

func TestSyncCallsPassThrough(t *testing.T) {
	ctx := context.Background()
	spy := &spyDriver{caps: readWrite}
	b := &Base{StorageProvider: spy}

	require.NoError(t, b.LoadGraph(ctx, &rdf.Graph{}, ""))
	require.NoError(t, b.LoadGraphHandler(ctx, &rdf.CountHandler{}, "http://example.org/g"))
	require.NoError(t, b.SaveGraph(ctx, &rdf.Graph{}))
	require.NoError(t, b.DeleteGraph(ctx, ""))
	graphs, err := b.ListGraphs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"http://example.org/g"}, graphs)
	require.EqualValues(t, 5, spy.calls.Load())

	// errors are passed through untranslated
	boom := errors.New("boom")
	spy.err = boom
	require.Same(t, boom, b.DeleteGraph(ctx, ""))
}

// countingCallback fails the test if it is invoked more than once.
func countingCallback(t *testing.T) (storagedriver.Callback, func() *storagedriver.AsyncResult) {
	var (
		mu    sync.Mutex
		count int
		last  *storagedriver.AsyncResult
		done  = make(chan struct{})
	)
	cb := func(res *storagedriver.AsyncResult) {
		mu.Lock()
		defer mu.Unlock()
		count++
		last = res
		if count == 1 {
			close(done)
		}
	}
	wait := func() *storagedriver.AsyncResult {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("callback was never invoked")
		}
		// give a stray second delivery the chance to show up
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, 1, count, "callback must fire exactly once")
		return last
	}
	return cb, wait
}

func TestAsyncExactlyOnce(t *testing.T) {
	ctx := context.Background()
	g, err := rdf.NewGraph("http://example.org/g")
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		spy  *spyDriver
		ok   bool
	}{
		{"success", &spyDriver{caps: readWrite}, true},
		{"failure", &spyDriver{caps: readWrite, err: errors.New("backend down")}, false},
		{"panic", &spyDriver{caps: readWrite, panic: true}, false},
		{"unsupported", &spyDriver{caps: readOnly}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := &Base{StorageProvider: tc.spy}
			calls := []struct {
				op   storagedriver.Operation
				call func(storagedriver.Callback)
			}{
				{storagedriver.OperationSaveGraph, func(cb storagedriver.Callback) { b.SaveGraphAsync(ctx, g, cb) }},
				{storagedriver.OperationUpdateGraph, func(cb storagedriver.Callback) {
					b.UpdateGraphAsync(ctx, "http://example.org/g", []rdf.Triple{ex}, nil, cb)
				}},
				{storagedriver.OperationDeleteGraph, func(cb storagedriver.Callback) { b.DeleteGraphAsync(ctx, "http://example.org/g", cb) }},
				{storagedriver.OperationListGraphs, func(cb storagedriver.Callback) { b.ListGraphsAsync(ctx, cb) }},
			}
			if tc.spy.caps.ReadOnly {
				calls = calls[:1]
			}
			for _, c := range calls {
				cb, wait := countingCallback(t)
				c.call(cb)
				res := wait()
				require.Equal(t, c.op, res.Operation)
				if tc.ok {
					require.NoError(t, res.Err)
				} else {
					require.Error(t, res.Err)
				}
			}
		})
	}
}

func TestAsyncPayloads(t *testing.T) {
	ctx := context.Background()
	b := &Base{StorageProvider: &spyDriver{caps: readWrite}}

	g := &rdf.Graph{}
	res, err := storagedriver.Wait(ctx, func(cb storagedriver.Callback) { b.LoadGraphAsync(ctx, g, "http://example.org/g", cb) })
	require.NoError(t, err)
	require.Same(t, g, res.Graph)
	require.Equal(t, "http://example.org/g", res.GraphURI)

	h := &rdf.CountHandler{}
	res, err = storagedriver.Wait(ctx, func(cb storagedriver.Callback) { b.LoadGraphHandlerAsync(ctx, h, "", cb) })
	require.NoError(t, err)
	require.Same(t, h, res.Handler)
	require.Equal(t, storagedriver.OperationLoadWithHandler, res.Operation)

	res, err = storagedriver.Wait(ctx, func(cb storagedriver.Callback) { b.ListGraphsAsync(ctx, cb) })
	require.NoError(t, err)
	require.Equal(t, []string{"http://example.org/g"}, res.GraphURIs)
}

func TestAsyncIgnoresCallerCancellation(t *testing.T) {
	spy := &spyDriver{caps: readWrite}
	b := &Base{StorageProvider: spy}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := storagedriver.Wait(context.Background(), func(cb storagedriver.Callback) { b.DeleteGraphAsync(ctx, "", cb) })
	require.NoError(t, err)
	require.Equal(t, storagedriver.OperationDeleteGraph, res.Operation)
	require.EqualValues(t, 1, spy.calls.Load())
}

func TestQueryableBase(t *testing.T) {
	ctx := context.Background()
	spy := &spyQueryable{spyDriver{caps: readWrite}}
	qb := NewQueryable(spy)

	_, err := qb.Query(ctx, "  ")
	require.IsType(t, storagedriver.QueryError{}, err)
	require.Zero(t, spy.calls.Load())

	result, err := qb.Query(ctx, sparql.ListGraphsQuery)
	require.NoError(t, err)
	require.Equal(t, []string{"g"}, result.Results.Vars)

	res, err := storagedriver.Wait(ctx, func(cb storagedriver.Callback) { qb.QueryAsync(ctx, sparql.ListGraphsQuery, cb) })
	require.NoError(t, err)
	require.Equal(t, sparql.ListGraphsQuery, res.Query)
	require.NotNil(t, res.QueryResult)

	collector := &sparql.ResultsCollector{}
	res, err = storagedriver.Wait(ctx, func(cb storagedriver.Callback) {
		qb.QueryHandlersAsync(ctx, nil, collector, "SELECT * WHERE { ?s ?p ?o }", cb)
	})
	require.NoError(t, err)
	require.Same(t, collector, res.ResultsHandler)
	require.NotNil(t, collector.Results)

	spy.err = errors.New("syntax error")
	res, err = storagedriver.Wait(ctx, func(cb storagedriver.Callback) { qb.QueryAsync(ctx, "SELECT", cb) })
	require.Error(t, err)
	require.Equal(t, "SELECT", res.Query, "failed results still echo the query")
}

func TestAsyncPicksRichestView(t *testing.T) {
	_, ok := Async(&spyQueryable{}).(storagedriver.AsyncQueryableStorage)
	require.True(t, ok)

	_, ok = Async(&spyDriver{}).(storagedriver.AsyncQueryableStorage)
	require.False(t, ok)

	b := &Base{StorageProvider: &spyDriver{}}
	require.Same(t, b, Async(b))
}

func TestLimitedExecutor(t *testing.T) {
	e := NewLimitedExecutor(2)
	var (
		running atomic.Int32
		peak    atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		e.Go(func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		})
	}
	wg.Wait()
	require.LessOrEqual(t, peak.Load(), int32(2))
}

type memServer struct {
	stores map[string]storagedriver.StorageProvider
}

func (s *memServer) ListStores(ctx context.Context) ([]string, error) {
	var ids []string
	for id := range s.stores {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memServer) CreateStore(ctx context.Context, id string) (bool, error) {
	if _, ok := s.stores[id]; ok {
		return false, nil
	}
	s.stores[id] = &spyDriver{caps: readWrite}
	return true, nil
}

func (s *memServer) DeleteStore(ctx context.Context, id string) error {
	delete(s.stores, id)
	return nil
}

func (s *memServer) GetStore(ctx context.Context, id string) (storagedriver.StorageProvider, error) {
	p, ok := s.stores[id]
	if !ok {
		return nil, storagedriver.StoreNotFoundError{DriverName: "mem", StoreID: id}
	}
	return p, nil
}

func TestServerBase(t *testing.T) {
	ctx := context.Background()
	sb := &ServerBase{StorageServer: &memServer{stores: map[string]storagedriver.StorageProvider{}}, DriverName: "mem"}

	res, err := storagedriver.Wait(ctx, func(cb storagedriver.Callback) { sb.CreateStoreAsync(ctx, "one", cb) })
	require.NoError(t, err)
	require.True(t, res.Created)

	created, err := sb.CreateStore(ctx, "one")
	require.NoError(t, err)
	require.False(t, created)

	_, err = sb.CreateStore(ctx, "a/b")
	require.ErrorIs(t, err, storagedriver.ErrUnsupported)

	res, err = storagedriver.Wait(ctx, func(cb storagedriver.Callback) { sb.GetStoreAsync(ctx, "one", cb) })
	require.NoError(t, err)
	require.NotNil(t, res.Store)
	require.Equal(t, "spy", res.Store.Name())

	res, err = storagedriver.Wait(ctx, func(cb storagedriver.Callback) { sb.ListStoresAsync(ctx, cb) })
	require.NoError(t, err)
	require.Equal(t, []string{"one"}, res.StoreIDs)

	_, err = storagedriver.Wait(ctx, func(cb storagedriver.Callback) { sb.DeleteStoreAsync(ctx, "one", cb) })
	require.NoError(t, err)

	_, err = storagedriver.Wait(ctx, func(cb storagedriver.Callback) { sb.GetStoreAsync(ctx, "one", cb) })
	require.IsType(t, storagedriver.StoreNotFoundError{}, err)
}
