package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"roombook/config"
	"roombook/infras/otel"
	"roombook/internal/domains/payment/model"
	"roombook/shared"
	"roombook/shared/cache"
	"roombook/shared/constant"
	"strings"
	"time"

	omiseGo "github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"github.com/rs/zerolog/log"
)

const (
	omiseMemoPrefix     = "payment:omise:charge"
	omiseMemoPending    = "pending"
	omiseMemoTTLSeconds = 24 * 60 * constant.MinutesToSeconds
	// A claim that never got an answer expires quickly so a charge that was
	// never created does not block the request for a day.
	omiseMemoPendingTTLSeconds = 2 * constant.MinutesToSeconds
	omiseLookupTimeout         = 10 * time.Second
	omiseMetadataKey           = "idempotency_key"
	omiseSourcePrefix          = "src_"
	omiseCustomerPrefix        = "cust_"
	omiseFailedProcessor       = "failed_processing"
	omiseCodeInFlight          = "in_flight"
)

type omiseGateway struct {
	client *omiseGo.Client
	cache  cache.RedisCache
	otel   otel.Otel
}

// NewOmise returns an Omise adapter. Omise has no idempotency header, so charge
// ids are memoized in Redis under the idempotency key and repeated calls read
// the existing charge back instead of creating a new one.
func NewOmise(client *omiseGo.Client, redisCache cache.RedisCache, ot otel.Otel) Gateway {
	return &omiseGateway{
		client: client,
		cache:  redisCache,
		otel:   ot,
	}
}

func (g *omiseGateway) Provider() string {
	return config.PaymentProviderOmise
}

func (g *omiseGateway) Charge(ctx context.Context, req model.ChargeRequest) (res model.ChargeResult, err error) {
	ctx, scope := g.otel.NewScope(ctx, constant.OtelPaymentScopeName, constant.OtelPaymentScopeName+".omise.Charge")
	defer scope.End()

	if err = req.Validate(); err != nil {
		scope.TraceError(err)

		return nil, err
	}

	currencyCode, _ := model.ParseCurrency(req.Currency)

	scope.SetAttributes(map[string]any{
		otelAttrProvider:       config.PaymentProviderOmise,
		otelAttrAmount:         req.Amount,
		otelAttrCurrency:       currencyCode,
		otelAttrIdempotencyKey: req.IdempotencyKey,
	})

	res = g.charge(ctx, req, currencyCode)

	scope.SetAttribute(otelAttrStatus, res.ProcessorStatus())

	if perr, ok := res.(model.ProcessorError); ok {
		scope.TraceError(perr)
		log.Warn().
			Err(perr).
			Str("idempotency_key", req.IdempotencyKey).
			Bool("transient", perr.Transient).
			Msg("omise charge failed")
	}

	return res, nil
}

func (g *omiseGateway) charge(ctx context.Context, req model.ChargeRequest, currencyCode string) model.ChargeResult {
	memoKey := shared.BuildCacheKey(omiseMemoPrefix, req.IdempotencyKey)
	inFlight := model.ProcessorError{Transient: true, Code: omiseCodeInFlight, Message: "a charge with this idempotency key is in flight"}

	var chargeID string

	err := g.cache.Get(ctx, memoKey, &chargeID)

	switch {
	case err == nil && chargeID == omiseMemoPending:
		return g.recover(ctx, req.IdempotencyKey, memoKey, inFlight)
	case err == nil:
		return g.retrieve(ctx, chargeID)
	case !cache.IsMiss(err):
		log.Warn().Err(err).Str("key", memoKey).Msg("omise charge memo unavailable, charging without it")
	}

	claimed, err := g.cache.SaveIfAbsent(ctx, memoKey, omiseMemoPending, omiseMemoPendingTTLSeconds)
	if err == nil && !claimed {
		return g.recover(ctx, req.IdempotencyKey, memoKey, inFlight)
	}

	metadata := make(map[string]any, len(req.Metadata)+1)
	for key, value := range req.Metadata {
		metadata[key] = value
	}

	metadata[omiseMetadataKey] = req.IdempotencyKey

	op := &operations.CreateCharge{
		Amount:      req.Amount,
		Currency:    strings.ToLower(currencyCode),
		Description: req.Description,
		Metadata:    metadata,
	}

	switch {
	case strings.HasPrefix(req.PaymentMethod, omiseSourcePrefix):
		op.Source = req.PaymentMethod
	case strings.HasPrefix(req.PaymentMethod, omiseCustomerPrefix):
		op.Customer = req.PaymentMethod
	default:
		op.Card = req.PaymentMethod
	}

	charge := &omiseGo.Charge{}

	err = g.do(ctx, func(client *omiseGo.Client) error { return client.Do(charge, op) })
	if err != nil {
		var omiseErr *omiseGo.Error
		if errors.As(err, &omiseErr) {
			// The processor answered, nothing was created.
			g.release(ctx, memoKey)

			return classifyOmiseChargeError(err)
		}

		// No answer: the charge may exist. The pending claim stays until it
		// is found or expires.
		return g.recover(ctx, req.IdempotencyKey, memoKey, classifyOmiseChargeError(err))
	}

	g.memoize(ctx, memoKey, charge.ID)

	return chargeOutcome(charge)
}

// recover looks for a charge created under key whose response never arrived.
// fallback is returned when there is none yet.
func (g *omiseGateway) recover(ctx context.Context, key, memoKey string, fallback model.ChargeResult) model.ChargeResult {
	// The caller's deadline may be what cut the create call short.
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), omiseLookupTimeout)
	defer cancel()

	charge, found, err := g.lookup(lookupCtx, key)
	if err != nil {
		log.Warn().Err(err).Str("idempotency_key", key).Msg("failed to search omise charges")

		return fallback
	}

	if !found {
		return fallback
	}

	log.Info().Str("charge_id", charge.ID).Str("idempotency_key", key).Msg("recovered omise charge")

	g.memoize(lookupCtx, memoKey, charge.ID)

	return chargeOutcome(charge)
}

func (g *omiseGateway) lookup(ctx context.Context, key string) (*omiseGo.Charge, bool, error) {
	result := &omiseGo.ChargeSearchResult{}

	err := g.do(ctx, func(client *omiseGo.Client) error {
		return client.Do(result, &operations.Search{Scope: omiseGo.ChargeScope, Query: key})
	})
	if err != nil {
		return nil, false, err //nolint:wrapcheck
	}

	for _, charge := range result.Data {
		if value, ok := charge.Metadata[omiseMetadataKey].(string); ok && value == key {
			return charge, true, nil
		}
	}

	return nil, false, nil
}

func (g *omiseGateway) memoize(ctx context.Context, memoKey, chargeID string) {
	if err := g.cache.Save(ctx, memoKey, chargeID, omiseMemoTTLSeconds); err != nil {
		log.Warn().Err(err).Str("charge_id", chargeID).Msg("failed to memoize omise charge")
	}
}

func (g *omiseGateway) retrieve(ctx context.Context, chargeID string) model.ChargeResult {
	charge := &omiseGo.Charge{}

	err := g.do(ctx, func(client *omiseGo.Client) error {
		return client.Do(charge, &operations.RetrieveCharge{ChargeID: chargeID})
	})
	if err != nil {
		return classifyOmiseChargeError(err)
	}

	return chargeOutcome(charge)
}

func (g *omiseGateway) release(ctx context.Context, memoKey string) {
	if err := g.cache.Delete(ctx, memoKey); err != nil {
		log.Warn().Err(err).Str("key", memoKey).Msg("failed to release omise charge memo")
	}
}

// Reverse releases a pending authorization, voids a charge that has not
// settled and refunds one that has.
func (g *omiseGateway) Reverse(ctx context.Context, req model.ReverseRequest) (err error) {
	ctx, scope := g.otel.NewScope(ctx, constant.OtelPaymentScopeName, constant.OtelPaymentScopeName+".omise.Reverse")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	if err = req.Validate(); err != nil {
		return err
	}

	scope.SetAttributes(map[string]any{
		otelAttrProvider:  config.PaymentProviderOmise,
		otelAttrReference: req.Reference,
		otelAttrAmount:    req.Amount,
	})

	charge := &omiseGo.Charge{}

	err = g.do(ctx, func(client *omiseGo.Client) error {
		return client.Do(charge, &operations.RetrieveCharge{ChargeID: req.Reference})
	})
	if err != nil {
		return classifyOmiseReverseError(err)
	}

	switch {
	case charge.Reversed || charge.Status == omiseGo.ChargeReversed || (charge.Refunded > 0 && charge.Refunded >= charge.Amount):
		log.Info().Str("charge_id", charge.ID).Msg("omise charge already reversed")

		return nil
	case charge.Status == omiseGo.ChargeFailed:
		log.Info().Str("charge_id", charge.ID).Msg("omise charge failed, nothing to reverse")

		return nil
	case charge.Status == omiseGo.ChargePending && charge.Authorized:
		err = g.do(ctx, func(client *omiseGo.Client) error {
			return client.Do(charge, &operations.ReverseCharge{ChargeID: charge.ID})
		})
		if err != nil {
			return classifyOmiseReverseError(err)
		}

		log.Info().Str("charge_id", charge.ID).Msg("omise charge authorization reversed")

		return nil
	case charge.Status == omiseGo.ChargePending:
		// Not authorized yet; it either fails or settles and is refunded then.
		return &model.ReverseError{Transient: true, Code: string(charge.Status), Message: "charge " + charge.ID + " is still pending"}
	}

	amount := req.Amount
	if amount <= 0 {
		amount = charge.Amount - charge.Refunded
	}

	refund := &omiseGo.Refund{}

	op := &operations.CreateRefund{
		ChargeID: req.Reference,
		Amount:   amount,
		Void:     !charge.Paid,
		Metadata: map[string]any{omiseMetadataKey: req.IdempotencyKey},
	}

	err = g.do(ctx, func(client *omiseGo.Client) error { return client.Do(refund, op) })
	if err != nil {
		return classifyOmiseReverseError(err)
	}

	return nil
}

// do runs call on a shallow copy of the client so the request carries ctx
// without mutating the shared client.
func (g *omiseGateway) do(ctx context.Context, call func(client *omiseGo.Client) error) error {
	client := *g.client
	client.WithContext(ctx)

	return call(&client)
}

func chargeOutcome(charge *omiseGo.Charge) model.ChargeResult {
	switch charge.Status {
	case omiseGo.ChargeSuccessful:
		return model.Captured{Reference: charge.ID}
	case omiseGo.ChargeFailed:
		code := deref(charge.FailureCode)
		if code == omiseFailedProcessor {
			return model.ProcessorError{Code: code, Message: deref(charge.FailureMessage)}
		}

		reason := deref(charge.FailureMessage)
		if reason == "" {
			reason = "card was declined"
		}

		return model.Declined{Reason: reason, Code: code}
	case omiseGo.ChargePending:
		if charge.AuthorizeURI != "" {
			return model.Declined{Reason: "payment method requires authentication", Code: string(charge.Status)}
		}

		return model.ProcessorError{Code: string(charge.Status), Message: "charge " + charge.ID + " is pending", Reference: charge.ID}
	default:
		return model.ProcessorError{Code: string(charge.Status), Message: "charge " + charge.ID + " is " + string(charge.Status)}
	}
}

// classifyOmiseChargeError treats anything but an API error body as no answer.
func classifyOmiseChargeError(err error) model.ChargeResult {
	var omiseErr *omiseGo.Error
	if !errors.As(err, &omiseErr) {
		return model.ProcessorError{Transient: true, Message: err.Error()}
	}

	switch {
	case isTransientStatus(omiseErr.StatusCode):
		return model.ProcessorError{Transient: true, Code: omiseErr.Code, Message: omiseErr.Message}
	case omiseErr.StatusCode == http.StatusBadRequest && omiseErr.Code != "bad_request":
		// invalid_card, used_token and friends.
		return model.Declined{Reason: omiseErr.Message, Code: omiseErr.Code}
	default:
		return model.ProcessorError{Code: omiseErr.Code, Message: omiseErr.Message}
	}
}

func classifyOmiseReverseError(err error) error {
	var omiseErr *omiseGo.Error
	if !errors.As(err, &omiseErr) {
		return &model.ReverseError{Transient: true, Message: err.Error()}
	}

	return &model.ReverseError{
		Transient: isTransientStatus(omiseErr.StatusCode),
		Code:      omiseErr.Code,
		Message:   fmt.Sprintf("(%d) %s", omiseErr.StatusCode, omiseErr.Message),
	}
}

func isTransientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func deref(value *string) string {
	if value == nil {
		return ""
	}

	return *value
}
