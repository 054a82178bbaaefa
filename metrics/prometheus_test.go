package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-metrics"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposed(t *testing.T) {
	StorageAction.WithValues("inmemory", "SaveGraph").UpdateSince(time.Now())
	HTTPResponses.WithValues("sparqlhttp", "2xx").Inc(1)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.True(t, strings.Contains(body, "graphstore_storage_action_seconds"), body)
	require.Contains(t, body, "graphstore_http_responses_total")
}
