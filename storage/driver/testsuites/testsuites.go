package testsuites

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gopkg.in/check.v1"

	"github.com/rdfkit/graphstore/internal/dcontext"
	"github.com/rdfkit/graphstore/internal/uuid"
	"github.com/rdfkit/graphstore/rdf"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
	"github.com/rdfkit/graphstore/storage/driver/base"
)

// RegisterSuite registers an in-process storage driver test suite with
// the go test runner.
func RegisterSuite(driverConstructor DriverConstructor, skipCheck SkipCheck) {
	check.Suite(&DriverSuite{
		Constructor: driverConstructor,
		SkipCheck:   skipCheck,
		ctx:         dcontext.Background(),
	})
}

// RegisterSuiteWithTeardown is RegisterSuite for drivers that hold
// resources, such as a test server, to release once the suite is done.
func RegisterSuiteWithTeardown(driverConstructor DriverConstructor, teardown DriverTeardown, skipCheck SkipCheck) {
	check.Suite(&DriverSuite{
		Constructor: driverConstructor,
		Teardown:    teardown,
		SkipCheck:   skipCheck,
		ctx:         dcontext.Background(),
	})
}

// SkipCheck is a function used to determine if a test suite should be skipped.
// If a SkipCheck returns a non-empty skip reason, the suite is skipped with
// the given reason.
type SkipCheck func() (reason string)

// NeverSkip is a default SkipCheck which never skips the suite.
var NeverSkip SkipCheck = func() string { return "" }

// DriverConstructor is a function which returns a new
// storagedriver.StorageProvider.
type DriverConstructor func() (storagedriver.StorageProvider, error)

// DriverTeardown is a function which cleans up a suite's
// storagedriver.StorageProvider.
type DriverTeardown func() error

// DriverSuite is a gocheck test suite designed to test a
// storagedriver.StorageProvider. Tests that need a capability the driver
// does not report are skipped, and tests of the rejection paths run only
// against drivers lacking the capability.
// The intended way to create a DriverSuite is with RegisterSuite.
type DriverSuite struct {
	Constructor DriverConstructor
	Teardown    DriverTeardown
	SkipCheck
	storagedriver.StorageProvider
	ctx context.Context
}

// SetUpSuite sets up the gocheck test suite.
func (suite *DriverSuite) SetUpSuite(c *check.C) {
	if reason := suite.SkipCheck(); reason != "" {
		c.Skip(reason)
	}
	d, err := suite.Constructor()
	c.Assert(err, check.IsNil)
	suite.StorageProvider = d
}

// TearDownSuite tears down the gocheck test suite.
func (suite *DriverSuite) TearDownSuite(c *check.C) {
	if suite.Teardown != nil {
		err := suite.Teardown()
		c.Assert(err, check.IsNil)
	}
}

func (suite *DriverSuite) caps() storagedriver.Capabilities {
	return suite.Capabilities()
}

func (suite *DriverSuite) requireWritable(c *check.C) {
	caps := suite.caps()
	if caps.ReadOnly || caps.IOBehaviour.NamedGraphSave != storagedriver.SaveOverwrite {
		c.Skip("driver cannot overwrite named graphs")
	}
}

func (suite *DriverSuite) requireUpdates(c *check.C) {
	caps := suite.caps()
	if !caps.UpdateSupported || !caps.IOBehaviour.CanUpdate() {
		c.Skip("driver does not support triple level updates")
	}
}

// TestCapabilitiesAreConsistent checks the descriptor validates.
func (suite *DriverSuite) TestCapabilitiesAreConsistent(c *check.C) {
	c.Assert(suite.caps().Validate(), check.IsNil)
	c.Assert(suite.Name(), check.Not(check.Equals), "")
}

// TestSaveLoadRoundTrip tests that a saved graph loads back unchanged.
func (suite *DriverSuite) TestSaveLoadRoundTrip(c *check.C) {
	suite.requireWritable(c)

	g := randomGraph(c, 5)
	defer suite.deleteGraph(c, g.Name())
	c.Assert(suite.SaveGraph(suite.ctx, g), check.IsNil)

	loaded := &rdf.Graph{}
	c.Assert(suite.LoadGraph(suite.ctx, loaded, g.Name()), check.IsNil)
	c.Assert(loaded.Equal(g), check.Equals, true, check.Commentf("got:\n%swant:\n%s", loaded, g))
	c.Assert(loaded.Name(), check.Equals, g.Name())
}

// TestLoadMergesIntoNonEmptyGraph tests that loading into a graph holding
// triples merges and keeps the graph's name.
func (suite *DriverSuite) TestLoadMergesIntoNonEmptyGraph(c *check.C) {
	suite.requireWritable(c)

	g := randomGraph(c, 2)
	defer suite.deleteGraph(c, g.Name())
	c.Assert(suite.SaveGraph(suite.ctx, g), check.IsNil)

	target := randomGraph(c, 1)
	name := target.Name()
	c.Assert(suite.LoadGraph(suite.ctx, target, g.Name()), check.IsNil)
	c.Assert(target.Len(), check.Equals, 3)
	c.Assert(target.Name(), check.Equals, name)
}

// TestDefaultGraphEquivalence tests that the empty string and a nil URI
// both address the default graph.
func (suite *DriverSuite) TestDefaultGraphEquivalence(c *check.C) {
	if !suite.caps().IOBehaviour.HasDefaultGraph {
		c.Skip("driver has no default graph")
	}

	byString := &rdf.Graph{}
	c.Assert(suite.LoadGraph(suite.ctx, byString, ""), check.IsNil)
	byNil := &rdf.Graph{}
	c.Assert(suite.LoadGraph(suite.ctx, byNil, storagedriver.GraphName(nil)), check.IsNil)

	c.Assert(byString.Equal(byNil), check.Equals, true)
	c.Assert(byString.BaseURI, check.IsNil)
	c.Assert(byNil.BaseURI, check.IsNil)
}

// TestUpdateScenario runs a save, an update replacing one triple and a load.
func (suite *DriverSuite) TestUpdateScenario(c *check.C) {
	suite.requireWritable(c)
	suite.requireUpdates(c)

	const graphURI = "http://example.org/g1"
	s, p := rdf.MustIRI("http://example.org/s"), rdf.MustIRI("http://example.org/p")
	o, o2 := rdf.MustIRI("http://example.org/o"), rdf.MustIRI("http://example.org/o2")

	g, err := rdf.NewGraph(graphURI)
	c.Assert(err, check.IsNil)
	g.Assert(rdf.NewTriple(s, p, o))
	defer suite.deleteGraph(c, graphURI)
	c.Assert(suite.SaveGraph(suite.ctx, g), check.IsNil)

	err = suite.UpdateGraph(suite.ctx, graphURI, []rdf.Triple{rdf.NewTriple(s, p, o2)}, []rdf.Triple{rdf.NewTriple(s, p, o)})
	c.Assert(err, check.IsNil)

	loaded := &rdf.Graph{}
	c.Assert(suite.LoadGraph(suite.ctx, loaded, graphURI), check.IsNil)
	c.Assert(loaded.Triples(), check.DeepEquals, []rdf.Triple{rdf.NewTriple(s, p, o2)})
}

// TestUpdateRemovesBeforeAdding tests that a triple both removed and added
// in one call is present afterwards.
func (suite *DriverSuite) TestUpdateRemovesBeforeAdding(c *check.C) {
	suite.requireWritable(c)
	suite.requireUpdates(c)

	g := randomGraph(c, 2)
	defer suite.deleteGraph(c, g.Name())
	c.Assert(suite.SaveGraph(suite.ctx, g), check.IsNil)

	ts := g.Triples()
	extra := randomTriple()
	err := suite.UpdateGraph(suite.ctx, g.Name(), []rdf.Triple{ts[0], extra}, []rdf.Triple{ts[0], ts[1]})
	c.Assert(err, check.IsNil)

	loaded := &rdf.Graph{}
	c.Assert(suite.LoadGraph(suite.ctx, loaded, g.Name()), check.IsNil)
	c.Assert(loaded.Contains(ts[0]), check.Equals, true)
	c.Assert(loaded.Contains(extra), check.Equals, true)
	c.Assert(loaded.Contains(ts[1]), check.Equals, false)
}

// TestEmptyUpdateIsNoop tests that an update with no triples succeeds and
// changes nothing.
func (suite *DriverSuite) TestEmptyUpdateIsNoop(c *check.C) {
	suite.requireWritable(c)
	suite.requireUpdates(c)

	g := randomGraph(c, 3)
	defer suite.deleteGraph(c, g.Name())
	c.Assert(suite.SaveGraph(suite.ctx, g), check.IsNil)
	c.Assert(suite.UpdateGraph(suite.ctx, g.Name(), nil, nil), check.IsNil)

	loaded := &rdf.Graph{}
	c.Assert(suite.LoadGraph(suite.ctx, loaded, g.Name()), check.IsNil)
	c.Assert(loaded.Equal(g), check.Equals, true)
}

// TestUnsupportedUpdateIsRejected tests that drivers without full update
// support refuse removals rather than ignoring them.
func (suite *DriverSuite) TestUnsupportedUpdateIsRejected(c *check.C) {
	caps := suite.caps()
	if caps.UpdateSupported && caps.IOBehaviour.CanRemoveTriples {
		c.Skip("driver supports removals")
	}
	err := suite.UpdateGraph(suite.ctx, randomGraphURI(), nil, []rdf.Triple{randomTriple()})
	c.Assert(errors.Is(err, storagedriver.ErrUnsupported), check.Equals, true, check.Commentf("%v", err))
}

// TestDeleteGraph tests that a deleted graph loads empty afterwards.
func (suite *DriverSuite) TestDeleteGraph(c *check.C) {
	suite.requireWritable(c)
	if !suite.caps().DeleteSupported {
		c.Skip("driver cannot delete graphs")
	}

	g := randomGraph(c, 2)
	c.Assert(suite.SaveGraph(suite.ctx, g), check.IsNil)
	c.Assert(suite.DeleteGraph(suite.ctx, g.Name()), check.IsNil)

	loaded := &rdf.Graph{}
	c.Assert(suite.LoadGraph(suite.ctx, loaded, g.Name()), check.IsNil)
	c.Assert(loaded.IsEmpty(), check.Equals, true)
}

// TestListGraphs tests that a saved named graph is listed.
func (suite *DriverSuite) TestListGraphs(c *check.C) {
	suite.requireWritable(c)
	if !suite.caps().ListGraphsSupported {
		c.Skip("driver cannot list graphs")
	}

	g := randomGraph(c, 1)
	defer suite.deleteGraph(c, g.Name())
	c.Assert(suite.SaveGraph(suite.ctx, g), check.IsNil)

	graphs, err := suite.ListGraphs(suite.ctx)
	c.Assert(err, check.IsNil)
	c.Assert(graphs, contains, g.Name())
}

// TestListGraphsUnsupported tests that drivers without listing say so.
func (suite *DriverSuite) TestListGraphsUnsupported(c *check.C) {
	if suite.caps().ListGraphsSupported {
		c.Skip("driver can list graphs")
	}
	_, err := suite.ListGraphs(suite.ctx)
	c.Assert(errors.Is(err, storagedriver.ErrUnsupported), check.Equals, true, check.Commentf("%v", err))
}

// TestReadOnlyRejectsWrites tests that a read-only driver refuses every
// mutation.
func (suite *DriverSuite) TestReadOnlyRejectsWrites(c *check.C) {
	if !suite.caps().ReadOnly {
		c.Skip("driver is writable")
	}
	g := randomGraph(c, 1)

	err := suite.SaveGraph(suite.ctx, g)
	c.Assert(errors.Is(err, storagedriver.ErrUnsupported), check.Equals, true, check.Commentf("%v", err))
	err = suite.UpdateGraph(suite.ctx, g.Name(), g.Triples(), nil)
	c.Assert(errors.Is(err, storagedriver.ErrUnsupported), check.Equals, true, check.Commentf("%v", err))
	err = suite.DeleteGraph(suite.ctx, g.Name())
	c.Assert(errors.Is(err, storagedriver.ErrUnsupported), check.Equals, true, check.Commentf("%v", err))
}

// TestInvalidGraphURI tests that relative graph names are refused.
func (suite *DriverSuite) TestInvalidGraphURI(c *check.C) {
	err := suite.LoadGraph(suite.ctx, &rdf.Graph{}, "relative/name")
	var invalid storagedriver.InvalidGraphURIError
	c.Assert(errors.As(err, &invalid), check.Equals, true, check.Commentf("%v", err))
}

// TestAsyncCallbackFiresOnce tests that asynchronous calls deliver exactly
// one result, on success and on failure.
func (suite *DriverSuite) TestAsyncCallbackFiresOnce(c *check.C) {
	async := base.Async(suite.StorageProvider)

	var calls int32
	done := make(chan *storagedriver.AsyncResult, 2)
	cb := func(res *storagedriver.AsyncResult) {
		atomic.AddInt32(&calls, 1)
		done <- res
	}

	async.LoadGraphAsync(suite.ctx, &rdf.Graph{}, "", cb)
	res := waitResult(c, done)
	c.Assert(res.Operation, check.Equals, storagedriver.OperationLoadGraph)

	async.DeleteGraphAsync(suite.ctx, "relative/name", cb)
	res = waitResult(c, done)
	c.Assert(res.Err, check.NotNil)
	c.Assert(res.GraphURI, check.Equals, "relative/name")

	time.Sleep(10 * time.Millisecond)
	c.Assert(atomic.LoadInt32(&calls), check.Equals, int32(2))
}

func waitResult(c *check.C, done <-chan *storagedriver.AsyncResult) *storagedriver.AsyncResult {
	select {
	case res := <-done:
		return res
	case <-time.After(10 * time.Second):
		c.Fatal("callback was not invoked")
	}
	return nil
}

func (suite *DriverSuite) deleteGraph(c *check.C, graphURI string) {
	if !suite.caps().DeleteSupported {
		return
	}
	c.Check(suite.DeleteGraph(suite.ctx, graphURI), check.IsNil)
}

func randomGraphURI() string {
	return "http://example.org/graphs/" + uuid.NewString()
}

func randomTriple() rdf.Triple {
	id := uuid.NewString()
	return rdf.NewTriple(
		rdf.MustIRI("http://example.org/s/"+id),
		rdf.MustIRI("http://example.org/p"),
		rdf.NewLiteral("value "+id),
	)
}

func randomGraph(c *check.C, n int) *rdf.Graph {
	g, err := rdf.NewGraph(randomGraphURI())
	c.Assert(err, check.IsNil)
	for i := 0; i < n; i++ {
		g.Assert(randomTriple())
	}
	return g
}

type containsChecker struct {
	*check.CheckerInfo
}

// contains checks that a string slice holds a value.
var contains check.Checker = &containsChecker{
	&check.CheckerInfo{Name: "contains", Params: []string{"obtained", "expected"}},
}

func (checker *containsChecker) Check(params []interface{}, names []string) (result bool, error string) {
	list, ok := params[0].([]string)
	if !ok {
		return false, fmt.Sprintf("obtained value is not a []string: %T", params[0])
	}
	for _, v := range list {
		if v == params[1] {
			return true, ""
		}
	}
	return false, ""
}
