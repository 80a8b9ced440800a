package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombook/config"
	otelMocks "roombook/infras/otel/mocks"
	"roombook/infras/stripe"
	"roombook/internal/domains/payment/gateway"
	"roombook/internal/domains/payment/model"
)

type stripeStub struct {
	status int
	body   string
}

func newStripeGateway(t *testing.T, handler http.HandlerFunc) gateway.Gateway {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Payment.Stripe.SecretKey = "sk_test_roombook"
	cfg.Payment.Stripe.APIURL = srv.URL
	cfg.Payment.RequestTimeoutSeconds = 2

	return gateway.NewStripe(stripe.New(cfg), otelMocks.NewOtel())
}

func chargeRequest() model.ChargeRequest {
	return model.ChargeRequest{
		Amount:         15000,
		Currency:       "usd",
		PaymentMethod:  "pm_card_visa",
		IdempotencyKey: "bk_test",
		Description:    "room 7",
		Metadata:       map[string]string{"room_id": "7"},
	}
}

func TestStripeGateway_Charge(t *testing.T) {
	tests := []struct {
		name       string
		stub       stripeStub
		wantResult model.ChargeResult
	}{
		{
			name:       "succeeded intent is captured",
			stub:       stripeStub{status: http.StatusOK, body: `{"id":"pi_1","object":"payment_intent","status":"succeeded"}`},
			wantResult: model.Captured{Reference: "pi_1"},
		},
		{
			name: "card error is declined",
			stub: stripeStub{
				status: http.StatusPaymentRequired,
				body:   `{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds."}}`,
			},
			wantResult: model.Declined{Reason: "card was declined: insufficient funds", Code: "insufficient_funds"},
		},
		{
			name:       "requires action is declined",
			stub:       stripeStub{status: http.StatusOK, body: `{"id":"pi_2","object":"payment_intent","status":"requires_action"}`},
			wantResult: model.Declined{Reason: "payment method requires authentication", Code: "requires_action"},
		},
		{
			name: "api error is transient",
			stub: stripeStub{
				status: http.StatusInternalServerError,
				body:   `{"error":{"type":"api_error","message":"Something went wrong"}}`,
			},
			wantResult: model.ProcessorError{Transient: true, Code: "api_error", Message: "Something went wrong"},
		},
		{
			name: "rate limit is transient",
			stub: stripeStub{
				status: http.StatusTooManyRequests,
				body:   `{"error":{"type":"invalid_request_error","code":"rate_limit","message":"Too many requests"}}`,
			},
			wantResult: model.ProcessorError{Transient: true, Code: "rate_limit", Message: "Too many requests"},
		},
		{
			name: "invalid request is permanent",
			stub: stripeStub{
				status: http.StatusBadRequest,
				body:   `{"error":{"type":"invalid_request_error","code":"parameter_invalid_integer","message":"Invalid integer"}}`,
			},
			wantResult: model.ProcessorError{Code: "parameter_invalid_integer", Message: "Invalid integer"},
		},
		{
			name: "processing intent is handed back for reversal",
			stub: stripeStub{status: http.StatusOK, body: `{"id":"pi_3","object":"payment_intent","status":"processing"}`},
			wantResult: model.ProcessorError{
				Code:      "processing",
				Message:   "payment intent pi_3 is processing",
				Reference: "pi_3",
			},
		},
		{
			name: "uncaptured intent is handed back for reversal",
			stub: stripeStub{status: http.StatusOK, body: `{"id":"pi_4","object":"payment_intent","status":"requires_capture"}`},
			wantResult: model.ProcessorError{
				Code:      "requires_capture",
				Message:   "payment intent pi_4 is requires_capture",
				Reference: "pi_4",
			},
		},
		{
			name: "key reused with another card is declined",
			stub: stripeStub{
				status: http.StatusBadRequest,
				body:   `{"error":{"type":"idempotency_error","message":"Keys for idempotent requests can only be used with the same parameters they were first used with."}}`,
			},
			wantResult: model.Declined{
				Reason: "this booking request was already submitted with a different payment method, resubmit it with the original payment method",
				Code:   "idempotency_error",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var idempotencyKey string

			gw := newStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
				idempotencyKey = r.Header.Get("Idempotency-Key")

				assert.Equal(t, "/v1/payment_intents", r.URL.Path)
				assert.NoError(t, r.ParseForm())
				assert.Equal(t, "15000", r.PostForm.Get("amount"))
				assert.Equal(t, "usd", r.PostForm.Get("currency"))
				assert.Equal(t, "true", r.PostForm.Get("confirm"))
				assert.Equal(t, "7", r.PostForm.Get("metadata[room_id]"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.stub.status)
				_, _ = w.Write([]byte(tt.stub.body))
			})

			res, err := gw.Charge(context.Background(), chargeRequest())

			require.NoError(t, err)
			assert.Equal(t, tt.wantResult, res)
			assert.Equal(t, "bk_test", idempotencyKey)
		})
	}
}

func TestStripeGateway_ChargeRejectsInvalidRequest(t *testing.T) {
	var calls atomic.Int32

	gw := newStripeGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	for _, req := range []model.ChargeRequest{
		{Amount: 0, Currency: "USD", IdempotencyKey: "bk_1"},
		{Amount: -1, Currency: "USD", IdempotencyKey: "bk_1"},
		{Amount: 100, Currency: "DOLLARS", IdempotencyKey: "bk_1"},
		{Amount: 100, Currency: "USD"},
	} {
		res, err := gw.Charge(context.Background(), req)

		assert.ErrorIs(t, err, model.ErrInvalidChargeRequest)
		assert.Nil(t, res)
	}

	assert.Zero(t, calls.Load())
}

func TestStripeGateway_ChargeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	cfg := &config.Config{}
	cfg.Payment.Stripe.SecretKey = "sk_test_roombook"
	cfg.Payment.Stripe.APIURL = srv.URL

	gw := gateway.NewStripe(stripe.New(cfg), otelMocks.NewOtel())

	res, err := gw.Charge(context.Background(), chargeRequest())

	require.NoError(t, err)

	perr, ok := res.(model.ProcessorError)
	require.True(t, ok, "got %T", res)
	assert.True(t, perr.Transient)
}

func TestStripeGateway_Reverse(t *testing.T) {
	tests := []struct {
		name          string
		reference     string
		intent        string
		stub          stripeStub
		wantPath      string
		wantField     string
		wantErr       bool
		wantTransient bool
	}{
		{
			name:      "refunds a captured payment intent",
			reference: "pi_1",
			intent:    `{"id":"pi_1","object":"payment_intent","status":"succeeded"}`,
			stub:      stripeStub{status: http.StatusOK, body: `{"id":"re_1","object":"refund","status":"succeeded"}`},
			wantPath:  "/v1/refunds",
			wantField: "payment_intent",
		},
		{
			name:      "refunds a bare charge",
			reference: "ch_1",
			stub:      stripeStub{status: http.StatusOK, body: `{"id":"re_2","object":"refund","status":"succeeded"}`},
			wantPath:  "/v1/refunds",
			wantField: "charge",
		},
		{
			name:      "already refunded counts as reversed",
			reference: "ch_1",
			stub: stripeStub{
				status: http.StatusBadRequest,
				body:   `{"error":{"type":"invalid_request_error","code":"charge_already_refunded","message":"Charge ch_1 has already been refunded."}}`,
			},
			wantPath:  "/v1/refunds",
			wantField: "charge",
		},
		{
			name:      "cancels an uncaptured payment intent",
			reference: "pi_2",
			intent:    `{"id":"pi_2","object":"payment_intent","status":"requires_capture"}`,
			stub:      stripeStub{status: http.StatusOK, body: `{"id":"pi_2","object":"payment_intent","status":"canceled"}`},
			wantPath:  "/v1/payment_intents/pi_2/cancel",
			wantField: "cancellation_reason",
		},
		{
			name:      "canceled payment intent counts as reversed",
			reference: "pi_2",
			intent:    `{"id":"pi_2","object":"payment_intent","status":"canceled"}`,
		},
		{
			name:          "processing payment intent is retried later",
			reference:     "pi_3",
			intent:        `{"id":"pi_3","object":"payment_intent","status":"processing"}`,
			wantErr:       true,
			wantTransient: true,
		},
		{
			name:      "processor outage is transient",
			reference: "pi_1",
			intent:    `{"id":"pi_1","object":"payment_intent","status":"succeeded"}`,
			stub: stripeStub{
				status: http.StatusServiceUnavailable,
				body:   `{"error":{"type":"api_error","message":"unavailable"}}`,
			},
			wantPath:      "/v1/refunds",
			wantField:     "payment_intent",
			wantErr:       true,
			wantTransient: true,
		},
		{
			name:      "unknown charge is permanent",
			reference: "ch_missing",
			stub: stripeStub{
				status: http.StatusNotFound,
				body:   `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such charge"}}`,
			},
			wantPath:  "/v1/refunds",
			wantField: "charge",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reversed bool

			gw := newStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")

				if r.Method == http.MethodGet {
					assert.Equal(t, "/v1/payment_intents/"+tt.reference, r.URL.Path)
					_, _ = w.Write([]byte(tt.intent))

					return
				}

				reversed = true

				assert.Equal(t, tt.wantPath, r.URL.Path)
				assert.NoError(t, r.ParseForm())
				assert.NotEmpty(t, r.PostForm.Get(tt.wantField))
				assert.Contains(t, r.Header.Get("Idempotency-Key"), "bk_test")

				if tt.wantField != "cancellation_reason" {
					assert.Equal(t, tt.reference, r.PostForm.Get(tt.wantField))
				}

				w.WriteHeader(tt.stub.status)
				_, _ = w.Write([]byte(tt.stub.body))
			})

			err := gw.Reverse(context.Background(), model.ReverseRequest{
				Reference:      tt.reference,
				Amount:         15000,
				Currency:       "USD",
				IdempotencyKey: "bk_test",
			})

			assert.Equal(t, tt.wantPath != "", reversed)

			if !tt.wantErr {
				assert.NoError(t, err)

				return
			}

			var reverseErr *model.ReverseError

			require.ErrorAs(t, err, &reverseErr)
			assert.Equal(t, tt.wantTransient, reverseErr.Transient)
		})
	}
}

func TestStripeGateway_ReverseRequiresReference(t *testing.T) {
	gw := newStripeGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("processor must not be called")
		w.WriteHeader(http.StatusOK)
	})

	err := gw.Reverse(context.Background(), model.ReverseRequest{Amount: 100})

	assert.ErrorIs(t, err, model.ErrInvalidReverseRequest)
}
