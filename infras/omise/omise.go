package omise

import (
	"fmt"
	"roombook/config"
	"time"

	omiseGo "github.com/omise/omise-go"
	"github.com/rs/zerolog/log"
)

const (
	defaultRequestTimeout = 10 * time.Second
	apiEndpoint           = "https://api.omise.co"
)

// New builds an Omise client from the PAYMENT_OMISE_* keys.
func New(config *config.Config) (*omiseGo.Client, error) {
	client, err := omiseGo.NewClient(config.Payment.Omise.PublicKey, config.Payment.Omise.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create omise client: %w", err)
	}

	timeout := defaultRequestTimeout
	if config.Payment.RequestTimeoutSeconds > 0 {
		timeout = time.Duration(config.Payment.RequestTimeoutSeconds) * time.Second
	}

	client.Timeout = timeout
	if config.Payment.Omise.APIURL != "" {
		client.Endpoints[apiEndpoint] = config.Payment.Omise.APIURL
	}
	client.SetDebug(false)

	log.Info().Dur("timeout", timeout).Msg("Omise client initialized")

	return client, nil
}
