package gateway

import (
	"context"
	"errors"
	"net/http"
	"roombook/config"
	"roombook/infras/otel"
	"roombook/internal/domains/payment/model"
	"roombook/shared/constant"
	"strings"

	"github.com/rs/zerolog/log"
	stripeGo "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const (
	stripeAllowRedirectsNever = "never"
	stripeChargePrefix        = "ch_"
	stripeRefundKeyPrefix     = "refund_"
	stripeCancelKeyPrefix     = "cancel_"

	stripeIdempotencyMismatch = "this booking request was already submitted with a different payment method, " +
		"resubmit it with the original payment method"
)

type stripeGateway struct {
	api  *client.API
	otel otel.Otel
}

func NewStripe(api *client.API, ot otel.Otel) Gateway {
	return &stripeGateway{
		api:  api,
		otel: ot,
	}
}

func (g *stripeGateway) Provider() string {
	return config.PaymentProviderStripe
}

// Charge creates and confirms a PaymentIntent in one request. Redirect based
// methods are disabled so the outcome is known when the call returns.
func (g *stripeGateway) Charge(ctx context.Context, req model.ChargeRequest) (res model.ChargeResult, err error) {
	ctx, scope := g.otel.NewScope(ctx, constant.OtelPaymentScopeName, constant.OtelPaymentScopeName+".stripe.Charge")
	defer scope.End()

	if err = req.Validate(); err != nil {
		scope.TraceError(err)

		return nil, err
	}

	currencyCode, _ := model.ParseCurrency(req.Currency)

	scope.SetAttributes(map[string]any{
		otelAttrProvider:       config.PaymentProviderStripe,
		otelAttrAmount:         req.Amount,
		otelAttrCurrency:       currencyCode,
		otelAttrIdempotencyKey: req.IdempotencyKey,
	})

	params := &stripeGo.PaymentIntentParams{
		Amount:        stripeGo.Int64(req.Amount),
		Currency:      stripeGo.String(strings.ToLower(currencyCode)),
		PaymentMethod: stripeGo.String(req.PaymentMethod),
		Confirm:       stripeGo.Bool(true),
		AutomaticPaymentMethods: &stripeGo.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripeGo.Bool(true),
			AllowRedirects: stripeGo.String(stripeAllowRedirectsNever),
		},
	}
	if req.Description != "" {
		params.Description = stripeGo.String(req.Description)
	}

	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}

	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		res = classifyStripeChargeError(err)
	} else {
		res = paymentIntentResult(intent)
	}

	scope.SetAttribute(otelAttrStatus, res.ProcessorStatus())

	if perr, ok := res.(model.ProcessorError); ok {
		scope.TraceError(perr)
		log.Warn().
			Err(perr).
			Str("idempotency_key", req.IdempotencyKey).
			Bool("transient", perr.Transient).
			Msg("stripe charge failed")
	}

	return res, nil
}

// Reverse refunds a captured PaymentIntent (pi_...) or a bare charge (ch_...).
// An intent that has not captured yet is canceled instead, which releases any
// authorization hold.
func (g *stripeGateway) Reverse(ctx context.Context, req model.ReverseRequest) (err error) {
	ctx, scope := g.otel.NewScope(ctx, constant.OtelPaymentScopeName, constant.OtelPaymentScopeName+".stripe.Reverse")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	if err = req.Validate(); err != nil {
		return err
	}

	scope.SetAttributes(map[string]any{
		otelAttrProvider:  config.PaymentProviderStripe,
		otelAttrReference: req.Reference,
		otelAttrAmount:    req.Amount,
	})

	if strings.HasPrefix(req.Reference, stripeChargePrefix) {
		return g.refund(ctx, req)
	}

	getParams := &stripeGo.PaymentIntentParams{}
	getParams.Context = ctx

	intent, err := g.api.PaymentIntents.Get(req.Reference, getParams)
	if err != nil {
		return classifyStripeReverseError(err)
	}

	scope.SetAttribute(otelAttrStatus, string(intent.Status))

	switch intent.Status {
	case stripeGo.PaymentIntentStatusSucceeded:
		return g.refund(ctx, req)
	case stripeGo.PaymentIntentStatusCanceled:
		log.Info().Str("payment_intent", intent.ID).Msg("stripe payment intent already canceled")

		return nil
	case stripeGo.PaymentIntentStatusProcessing:
		// Cannot be canceled until the processor settles it either way.
		return &model.ReverseError{Transient: true, Code: string(intent.Status), Message: "payment intent " + intent.ID + " is still processing"}
	default:
		return g.cancel(ctx, intent.ID, req.IdempotencyKey)
	}
}

func (g *stripeGateway) refund(ctx context.Context, req model.ReverseRequest) error {
	params := &stripeGo.RefundParams{
		Reason: stripeGo.String(string(stripeGo.RefundReasonDuplicate)),
	}
	if strings.HasPrefix(req.Reference, stripeChargePrefix) {
		params.Charge = stripeGo.String(req.Reference)
	} else {
		params.PaymentIntent = stripeGo.String(req.Reference)
	}

	if req.Amount > 0 {
		params.Amount = stripeGo.Int64(req.Amount)
	}

	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(stripeRefundKeyPrefix + req.IdempotencyKey)
	}

	if _, err := g.api.Refunds.New(params); err != nil {
		return classifyStripeReverseError(err)
	}

	return nil
}

func (g *stripeGateway) cancel(ctx context.Context, intentID, idempotencyKey string) error {
	params := &stripeGo.PaymentIntentCancelParams{
		CancellationReason: stripeGo.String(string(stripeGo.PaymentIntentCancellationReasonAbandoned)),
	}

	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(stripeCancelKeyPrefix + idempotencyKey)
	}

	if _, err := g.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return classifyStripeReverseError(err)
	}

	log.Info().Str("payment_intent", intentID).Msg("stripe payment intent canceled")

	return nil
}

func paymentIntentResult(intent *stripeGo.PaymentIntent) model.ChargeResult {
	switch intent.Status {
	case stripeGo.PaymentIntentStatusSucceeded:
		return model.Captured{Reference: intent.ID}
	case stripeGo.PaymentIntentStatusRequiresPaymentMethod:
		if intent.LastPaymentError != nil {
			return cardDeclined(intent.LastPaymentError)
		}

		return model.Declined{Reason: "payment method was not accepted", Code: string(intent.Status)}
	case stripeGo.PaymentIntentStatusRequiresAction:
		return model.Declined{Reason: "payment method requires authentication", Code: string(intent.Status)}
	case stripeGo.PaymentIntentStatusCanceled:
		return model.Declined{Reason: "payment was canceled", Code: string(intent.Status)}
	default:
		// processing, requires_capture, requires_confirmation: the intent may
		// still move money, so it is handed back for reversal.
		return model.ProcessorError{
			Code:      string(intent.Status),
			Message:   "payment intent " + intent.ID + " is " + string(intent.Status),
			Reference: intent.ID,
		}
	}
}

// classifyStripeChargeError maps stripe-go errors onto the closed result set.
// Anything without a Stripe error body means no answer was received, which is
// safe to retry under the same idempotency key.
func classifyStripeChargeError(err error) model.ChargeResult {
	var stripeErr *stripeGo.Error
	if !errors.As(err, &stripeErr) {
		return model.ProcessorError{Transient: true, Message: err.Error()}
	}

	switch {
	case stripeErr.Type == stripeGo.ErrorTypeCard:
		return cardDeclined(stripeErr)
	case isTransientStripeError(stripeErr):
		return model.ProcessorError{Transient: true, Code: stripeErrorCode(stripeErr), Message: stripeErr.Msg}
	case stripeErr.Type == stripeGo.ErrorTypeIdempotency:
		// The key is reused with different parameters, in practice another card.
		return model.Declined{Reason: stripeIdempotencyMismatch, Code: string(stripeErr.Type)}
	default:
		return model.ProcessorError{Code: stripeErrorCode(stripeErr), Message: stripeErr.Msg}
	}
}

func classifyStripeReverseError(err error) error {
	var stripeErr *stripeGo.Error
	if !errors.As(err, &stripeErr) {
		return &model.ReverseError{Transient: true, Message: err.Error()}
	}

	if stripeErr.Code == stripeGo.ErrorCodeChargeAlreadyRefunded {
		log.Info().Str("code", string(stripeErr.Code)).Msg("stripe charge already refunded")

		return nil
	}

	return &model.ReverseError{
		Transient: isTransientStripeError(stripeErr),
		Code:      stripeErrorCode(stripeErr),
		Message:   stripeErr.Msg,
	}
}

func isTransientStripeError(stripeErr *stripeGo.Error) bool {
	return stripeErr.Type == stripeGo.ErrorTypeAPI ||
		stripeErr.Code == stripeGo.ErrorCodeRateLimit ||
		stripeErr.Code == stripeGo.ErrorCodeIdempotencyKeyInUse ||
		stripeErr.HTTPStatusCode == http.StatusTooManyRequests ||
		stripeErr.HTTPStatusCode >= http.StatusInternalServerError
}

func cardDeclined(stripeErr *stripeGo.Error) model.Declined {
	code := string(stripeErr.DeclineCode)
	if code == "" {
		code = string(stripeErr.Code)
	}

	reason := "card was declined"
	if code != "" && code != string(stripeGo.ErrorCodeCardDeclined) {
		reason = "card was declined: " + strings.ReplaceAll(code, "_", " ")
	}

	return model.Declined{Reason: reason, Code: code}
}

func stripeErrorCode(stripeErr *stripeGo.Error) string {
	if stripeErr.Code != "" {
		return string(stripeErr.Code)
	}

	return string(stripeErr.Type)
}
