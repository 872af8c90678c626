package telemetry

import (
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/config"
)

// InitNewRelic initializes the New Relic application.
// It returns a nil application when New Relic is disabled or has no license.
func InitNewRelic(cfg config.NewRelicConfig) (*newrelic.Application, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		log.Warn().Msg("New Relic license key not provided, tracing will be disabled")
		return nil, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize New Relic")
	}

	if err := app.WaitForConnection(5 * time.Second); err != nil {
		log.Warn().Err(err).Msg("New Relic not connected yet, continuing")
	}

	return app, nil
}

// Shutdown flushes pending New Relic data
func Shutdown(app *newrelic.Application) {
	if app == nil {
		return
	}
	app.Shutdown(10 * time.Second)
	log.Info().Msg("New Relic tracer shutdown")
}
