package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routeTestCase struct {
	RequestURI string
	Vars       map[string]string
	RouteName  string
	StatusCode int
}

// TestRouter registers a test handler with all the routes and ensures that
// each route returns the expected path variables.
func TestRouter(t *testing.T) {
	testCases := []routeTestCase{
		{
			RouteName:  RouteNameBase,
			RequestURI: "/",
			Vars:       map[string]string{},
		},
		{
			RouteName:  RouteNameStores,
			RequestURI: "/stores",
			Vars:       map[string]string{},
		},
		{
			RouteName:  RouteNameGraphStore,
			RequestURI: "/main/rdf-graph-store?default",
			Vars:       map[string]string{"store": "main"},
		},
		{
			RouteName:  RouteNameGraphStore,
			RequestURI: "/my.store-1/rdf-graph-store?graph=http%3A%2F%2Fexample.org%2Fg",
			Vars:       map[string]string{"store": "my.store-1"},
		},
		{
			RouteName:  RouteNameGraphs,
			RequestURI: "/main/graphs",
			Vars:       map[string]string{"store": "main"},
		},
		{
			RouteName:  RouteNameSPARQL,
			RequestURI: "/main/sparql",
			Vars:       map[string]string{"store": "main"},
		},
		{
			RequestURI: "/-bad/graphs",
			StatusCode: http.StatusNotFound,
		},
		{
			RequestURI: "/main/unknown",
			StatusCode: http.StatusNotFound,
		},
	}

	checkTestRouter(t, testCases, "", true)
	checkTestRouter(t, testCases, "/prefix/", false)
}

func checkTestRouter(t *testing.T, testCases []routeTestCase, prefix string, deeplyEqual bool) {
	router := RouterWithPrefix(prefix)

	testHandler := func(w http.ResponseWriter, r *http.Request) {
		route := mux.CurrentRoute(r)
		vars := mux.Vars(r)
		if vars == nil {
			vars = map[string]string{}
		}
		w.Header().Set("X-Route", route.GetName())
		for k, v := range vars {
			w.Header().Set("X-Var-"+k, v)
		}
		w.WriteHeader(http.StatusOK)
	}

	// Startup test server
	server := httptest.NewServer(router)
	defer server.Close()

	for _, routeName := range allEndpoints {
		router.GetRoute(routeName).Handler(http.HandlerFunc(testHandler))
	}

	for _, testcase := range testCases {
		testcase.RequestURI = prefix[:max(len(prefix)-1, 0)] + testcase.RequestURI
		if testcase.StatusCode == 0 {
			testcase.StatusCode = http.StatusOK
		}

		resp, err := http.Get(server.URL + testcase.RequestURI)
		require.NoError(t, err, testcase.RequestURI)
		resp.Body.Close()

		require.Equal(t, testcase.StatusCode, resp.StatusCode, testcase.RequestURI)
		if testcase.StatusCode != http.StatusOK {
			continue
		}
		assert.Equal(t, testcase.RouteName, resp.Header.Get("X-Route"), testcase.RequestURI)
		if deeplyEqual {
			for k, v := range testcase.Vars {
				assert.Equal(t, v, resp.Header.Get("X-Var-"+k), testcase.RequestURI)
			}
		}
	}
}
