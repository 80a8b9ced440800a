package gateway

//go:generate go run go.uber.org/mock/mockgen -source=./gateway.go -destination=../mocks/gateway_mock.go -package=mocks

import (
	"context"
	"fmt"
	"roombook/config"
	"roombook/infras/omise"
	"roombook/infras/otel"
	"roombook/infras/stripe"
	"roombook/internal/domains/payment/model"
	"roombook/shared/cache"
)

const (
	otelAttrProvider       = "payment.provider"
	otelAttrAmount         = "payment.amount"
	otelAttrCurrency       = "payment.currency"
	otelAttrIdempotencyKey = "payment.idempotency_key"
	otelAttrReference      = "payment.reference"
	otelAttrStatus         = "payment.status"
)

// Gateway is the only way the service talks to a payment processor. Each call
// is exactly one processor request; callers own the retry policy.
type Gateway interface {
	// Charge returns a model.ChargeResult for every request that reached the
	// processor (or tried to). The error is reserved for requests rejected
	// locally, wrapping model.ErrInvalidChargeRequest.
	Charge(ctx context.Context, req model.ChargeRequest) (model.ChargeResult, error)
	// Reverse refunds or voids a captured charge. Reversing an already
	// reversed charge succeeds. Failures are *model.ReverseError.
	Reverse(ctx context.Context, req model.ReverseRequest) error
	Provider() string
}

// New selects the adapter named by PAYMENT_PROVIDER (stripe by default).
func New(cfg *config.Config, redisCache cache.RedisCache, ot otel.Otel) (Gateway, error) {
	switch cfg.Payment.Provider {
	case "", config.PaymentProviderStripe:
		return NewStripe(stripe.New(cfg), ot), nil
	case config.PaymentProviderOmise:
		client, err := omise.New(cfg)
		if err != nil {
			return nil, err
		}

		return NewOmise(client, redisCache, ot), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Payment.Provider)
	}
}
