package handlers

import (
	"context"
	"time"

	"github.com/rdfkit/graphstore/health"
	"github.com/rdfkit/graphstore/health/checks"
	"github.com/rdfkit/graphstore/internal/dcontext"
)

const (
	defaultCheckInterval = 10 * time.Second
	defaultCheckTimeout  = 5 * time.Second
)

// RegisterHealthChecks registers the configured file and store checks.
// It should only ever be called once per registry. Checks poll until ctx is
// done. The default registry is used when none is given.
func (app *App) RegisterHealthChecks(ctx context.Context, healthRegistries ...*health.Registry) {
	if len(healthRegistries) > 1 {
		panic("RegisterHealthChecks called with more than one registry")
	}
	healthRegistry := health.DefaultRegistry
	if len(healthRegistries) == 1 {
		healthRegistry = healthRegistries[0]
	}

	if sc := app.Config.Health.StoreChecks; sc.Enabled {
		interval := sc.Interval
		if interval == 0 {
			interval = defaultCheckInterval
		}
		timeout := sc.Timeout
		if timeout == 0 {
			timeout = defaultCheckTimeout
		}
		for _, name := range app.StoreNames() {
			check := checks.StoreChecker(app.stores[name], timeout)
			healthRegistry.RegisterPeriodicThresholdFunc(ctx, "store:"+name, interval, sc.Threshold, check.Check)
			dcontext.GetLogger(app).Debugf("configured health check for store %q, interval %s", name, interval)
		}
	}

	for _, fileChecker := range app.Config.Health.FileCheckers {
		interval := fileChecker.Interval
		if interval == 0 {
			interval = defaultCheckInterval
		}
		dcontext.GetLogger(app).Infof("configuring file health check path=%s, interval=%d", fileChecker.File, interval/time.Second)
		check := checks.FileChecker(fileChecker.File)
		healthRegistry.RegisterPeriodicThresholdFunc(ctx, fileChecker.File, interval, fileChecker.Threshold, check.Check)
	}
}
