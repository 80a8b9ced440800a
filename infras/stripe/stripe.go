package stripe

import (
	"net/http"
	"roombook/config"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	stripeGo "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const (
	defaultRequestTimeout = 10 * time.Second
)

// New builds a Stripe API client that never retries on its own. Retries are
// decided by the booking flow, which reuses the idempotency key.
func New(config *config.Config) *client.API {
	timeout := defaultRequestTimeout
	if config.Payment.RequestTimeoutSeconds > 0 {
		timeout = time.Duration(config.Payment.RequestTimeoutSeconds) * time.Second
	}

	backendConfig := &stripeGo.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		LeveledLogger:     &leveledLogger{logger: log.With().Str("component", "stripe").Logger()},
		MaxNetworkRetries: stripeGo.Int64(0),
		EnableTelemetry:   stripeGo.Bool(false),
	}

	if config.Payment.Stripe.APIURL != "" {
		backendConfig.URL = stripeGo.String(config.Payment.Stripe.APIURL)
	}

	backends := &stripeGo.Backends{
		API:     stripeGo.GetBackendWithConfig(stripeGo.APIBackend, backendConfig),
		Connect: stripeGo.GetBackendWithConfig(stripeGo.ConnectBackend, &stripeGo.BackendConfig{LeveledLogger: backendConfig.LeveledLogger}),
		Uploads: stripeGo.GetBackendWithConfig(stripeGo.UploadsBackend, &stripeGo.BackendConfig{LeveledLogger: backendConfig.LeveledLogger}),
	}

	log.Info().Dur("timeout", timeout).Msg("Stripe client initialized")

	return client.New(config.Payment.Stripe.SecretKey, backends)
}

// leveledLogger routes stripe-go logging into zerolog. Request bodies are
// logged by stripe-go at debug level only.
type leveledLogger struct {
	logger zerolog.Logger
}

func (l *leveledLogger) Debugf(format string, v ...any) {
	l.logger.Debug().Msgf(format, v...)
}

func (l *leveledLogger) Infof(format string, v ...any) {
	l.logger.Info().Msgf(format, v...)
}

func (l *leveledLogger) Warnf(format string, v ...any) {
	l.logger.Warn().Msgf(format, v...)
}

func (l *leveledLogger) Errorf(format string, v ...any) {
	l.logger.Error().Msgf(format, v...)
}
