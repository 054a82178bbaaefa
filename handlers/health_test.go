package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdfkit/graphstore/configuration"
	"github.com/rdfkit/graphstore/health"
	storagedriver "github.com/rdfkit/graphstore/storage/driver"
	"github.com/rdfkit/graphstore/storage/driver/inmemory"
)

// healthStatus polls the registry until cond holds or a second has passed.
func healthStatus(t *testing.T, registry *health.Registry, cond func(map[string]string) bool) map[string]string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		rec := httptest.NewRecorder()
		registry.StatusHandler(rec, httptest.NewRequest(http.MethodGet, "/debug/health", nil))
		var decoded map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
		if cond(decoded) || time.Now().After(deadline) {
			return decoded
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFileHealthCheck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drain := filepath.Join(t.TempDir(), "healthcheck")
	require.NoError(t, os.WriteFile(drain, nil, 0o600))

	config := &configuration.Configuration{}
	config.Health.FileCheckers = []configuration.FileChecker{{Interval: time.Millisecond, File: drain}}

	registry := health.NewRegistry()
	app := NewAppWithStores(ctx, config, nil)
	app.RegisterHealthChecks(ctx, registry)

	decoded := healthStatus(t, registry, func(s map[string]string) bool { return len(s) == 1 })
	assert.Equal(t, "file exists", decoded[drain])

	require.NoError(t, os.Remove(drain))
	decoded = healthStatus(t, registry, func(s map[string]string) bool { return len(s) == 0 })
	assert.Empty(t, decoded)
}

type downStore struct {
	*inmemory.Driver
}

func (downStore) HasGraph(context.Context, string) (bool, error) {
	return false, storagedriver.StorageError{DriverName: "down", Message: "connection refused"}
}

func TestStoreHealthCheck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := &configuration.Configuration{}
	config.Health.StoreChecks = configuration.StoreChecks{Enabled: true, Interval: time.Millisecond, Threshold: 2}

	registry := health.NewRegistry()
	app := NewAppWithStores(ctx, config, map[string]storagedriver.StorageProvider{
		"up":   inmemory.New(),
		"down": downStore{inmemory.New()},
	})
	app.RegisterHealthChecks(ctx, registry)
	assert.Equal(t, []string{"store:down", "store:up"}, registry.Names())

	decoded := healthStatus(t, registry, func(s map[string]string) bool { return len(s) == 1 })
	assert.Contains(t, decoded["store:down"], "connection refused")
	assert.NotContains(t, decoded, "store:up")
}
