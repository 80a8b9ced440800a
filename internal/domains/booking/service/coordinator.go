package service

//go:generate go run go.uber.org/mock/mockgen -source=./coordinator.go -destination=../mocks/coordinator_mock.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"roombook/config"
	"roombook/infras/kafka"
	"roombook/infras/otel"
	"roombook/internal/domains/booking/model"
	"roombook/internal/domains/booking/repository"
	"roombook/internal/domains/payment/gateway"
	paymentModel "roombook/internal/domains/payment/model"
	reconciliationModel "roombook/internal/domains/reconciliation/model"
	reconciliationService "roombook/internal/domains/reconciliation/service"
	roomModel "roombook/internal/domains/room/model"
	roomRepo "roombook/internal/domains/room/repository"
	"roombook/shared"
	"roombook/shared/constant"
	"roombook/shared/retry"
	"roombook/shared/timezone"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultFlowTimeout = 60 * time.Second

// Coordinator runs the booking flow: validate, charge, persist, and
// compensate when money was captured but the booking could not be recorded.
type Coordinator interface {
	CreateBooking(ctx context.Context, req model.Request) (model.Confirmation, error)
	// Drain stops new flows from charging and waits until the running ones
	// are recorded or compensated.
	Drain(ctx context.Context) error
}

// errChargeUnsettled marks a charge the processor created but neither
// captured nor failed.
var errChargeUnsettled = errors.New("charge did not settle")

type coordinatorImpl struct {
	repo           repository.Booking
	roomRepo       roomRepo.Room
	gateway        gateway.Gateway
	reconciliation reconciliationService.Reconciliation
	kafka          kafka.Client
	cfg            *config.Config
	otel           otel.Otel
	chargePolicy   retry.Policy
	persistPolicy  retry.Policy
	flowTimeout    time.Duration
	flows          flowTracker
}

func NewCoordinator(
	repo repository.Booking,
	roomRepo roomRepo.Room,
	gw gateway.Gateway,
	reconciliation reconciliationService.Reconciliation,
	kafkaClient kafka.Client,
	cfg *config.Config,
	otel otel.Otel,
) Coordinator {
	flowTimeout := defaultFlowTimeout
	if cfg.Booking.FlowTimeoutSeconds > 0 {
		flowTimeout = time.Duration(cfg.Booking.FlowTimeoutSeconds) * time.Second
	}

	return &coordinatorImpl{
		repo:           repo,
		roomRepo:       roomRepo,
		gateway:        gw,
		reconciliation: reconciliation,
		kafka:          kafkaClient,
		cfg:            cfg,
		otel:           otel,
		chargePolicy:   retry.NewPolicy(cfg.Booking.ChargeMaxAttempts, cfg.Booking.RetryInitialIntervalMs, cfg.Booking.RetryMaxIntervalMs),
		persistPolicy:  retry.NewPolicy(cfg.Booking.PersistMaxAttempts, cfg.Booking.RetryInitialIntervalMs, cfg.Booking.RetryMaxIntervalMs),
		flowTimeout:    flowTimeout,
	}
}

// flow carries one request through the states. It is never shared.
type flow struct {
	req     model.Request
	booking model.Booking
	attempt model.PaymentAttempt
	state   model.State
	logger  zerolog.Logger
}

func (f *flow) enter(state model.State) {
	f.state = state
	f.logger.Debug().Str("state", string(state)).Msg("booking state changed")
}

func (c *coordinatorImpl) CreateBooking(ctx context.Context, req model.Request) (res model.Confirmation, err error) {
	ctx, scope := c.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".booking.CreateBooking")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	booking := req.NewBooking(timezone.Now())

	f := &flow{
		req:     req,
		booking: booking,
		attempt: model.PaymentAttempt{
			Amount:         req.Amount,
			Currency:       req.Currency,
			PaymentMethod:  req.PaymentMethod,
			IdempotencyKey: booking.IdempotencyKey,
		},
		logger: log.With().
			Str("booking_id", booking.ID).
			Str("room_id", booking.RoomID).
			Str("idempotency_key", booking.IdempotencyKey).
			Logger(),
	}

	scope.SetAttributes(map[string]any{
		"booking.id":              booking.ID,
		"booking.room_id":         booking.RoomID,
		"booking.idempotency_key": booking.IdempotencyKey,
	})

	defer func() { scope.SetAttribute("booking.state", string(f.state)) }()

	f.enter(model.StateValidating)

	if err = c.validate(ctx, req); err != nil {
		f.enter(model.StateRejected)

		return res, err
	}

	existing, err := c.repo.GetByIdempotencyKey(ctx, booking.IdempotencyKey)
	if err != nil {
		f.logger.Error().Err(err).Msg("failed to look up booking by idempotency key")
		f.enter(model.StateRejected)

		return res, model.StoreUnavailable(err)
	}

	if existing.ID != constant.Empty {
		f.logger.Info().Str("payment_reference", existing.Reference()).Msg("booking request replayed")
		f.enter(model.StateConfirmed)

		return model.Confirmation{Booking: existing, Attempt: f.attempt, Replayed: true}, nil
	}

	if !c.flows.begin() {
		f.enter(model.StateRejected)

		return res, model.StoreUnavailable(errDraining)
	}
	defer c.flows.end()

	// From here on a capture may happen, so the caller going away must not
	// stop the flow before it is recorded or compensated.
	flowCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flowTimeout)
	defer cancel()

	f.enter(model.StateCharging)

	reference, err := c.charge(flowCtx, f)
	if errors.Is(err, errChargeUnsettled) {
		return c.release(context.WithoutCancel(ctx), f, reference, err)
	}

	if err != nil {
		f.enter(model.StateRejected)

		return res, err
	}

	f.booking.PaymentStatus = model.PaymentStatusCaptured
	f.booking.PaymentReference = &reference
	f.logger = f.logger.With().Str("payment_reference", reference).Logger()

	// A processor replays the original capture for a repeated idempotency
	// key, even one that was reversed after an earlier attempt.
	prior, err := c.reconciliation.FindByPayment(flowCtx, c.gateway.Provider(), reference)
	if err != nil {
		f.logger.Error().Err(err).Msg("failed to look up reconciliation case for payment")

		return c.compensate(context.WithoutCancel(ctx), f, err)
	}

	if prior.ID != constant.Empty {
		return c.rejectReversed(f, prior)
	}

	f.enter(model.StatePersisting)

	err = c.persist(flowCtx, f.booking)
	if err == nil {
		f.enter(model.StateConfirmed)
		f.logger.Info().Int("attempts", f.attempt.Attempts).Msg("booking confirmed")

		res = model.Confirmation{Booking: f.booking, Attempt: f.attempt}
		c.publish(flowCtx, res, scope.TraceID())

		return res, nil
	}

	// Compensation gets its own context: the flow deadline may already be spent.
	return c.compensate(context.WithoutCancel(ctx), f, err)
}

func (c *coordinatorImpl) validate(ctx context.Context, req model.Request) error {
	if req.RoomID == constant.Empty {
		return model.ValidationError("room_id is required")
	}

	if req.GuestName == constant.Empty {
		return model.ValidationError("guest_name is required")
	}

	if !req.EndDate.After(req.StartDate) {
		return model.ValidationError("end_date must be after start_date")
	}

	room, err := c.roomRepo.GetPrimary(ctx, shared.FilterByID(req.RoomID, roomModel.FieldID, roomModel.TableName))
	if err != nil {
		log.Error().Err(err).Str("room_id", req.RoomID).Msg("failed to look up room")

		return model.StoreUnavailable(err)
	}

	if room.ID == constant.Empty {
		return model.RoomNotFound(req.RoomID)
	}

	return nil
}

// charge calls the gateway until it captures, declines, fails permanently or
// the policy runs out. Every call carries the same idempotency key.
func (c *coordinatorImpl) charge(ctx context.Context, f *flow) (string, error) {
	chargeReq := paymentModel.ChargeRequest{
		Amount:         f.req.Amount,
		Currency:       f.req.Currency,
		PaymentMethod:  f.req.PaymentMethod,
		IdempotencyKey: f.booking.IdempotencyKey,
		Description:    fmt.Sprintf("Room %s, %s to %s", f.req.RoomID, timezone.FormatDate(f.req.StartDate), timezone.FormatDate(f.req.EndDate)),
		Metadata: map[string]string{
			"booking_id": f.booking.ID,
			"room_id":    f.req.RoomID,
		},
	}

	result, err := retry.Do(ctx, c.chargePolicy, "payment.charge", func(attempt int) (paymentModel.ChargeResult, error) {
		f.attempt.Attempts = attempt

		result, err := c.gateway.Charge(ctx, chargeReq)
		if err != nil {
			return nil, retry.Permanent(err)
		}

		if processorErr, ok := result.(paymentModel.ProcessorError); ok && processorErr.Transient {
			return result, processorErr
		}

		return result, nil
	})

	if result != nil {
		f.attempt.ProcessorStatus = result.ProcessorStatus()
	}

	f.logger.Info().
		Int64("amount", f.attempt.Amount).
		Str("currency", f.attempt.Currency).
		Str("processor_status", f.attempt.ProcessorStatus).
		Int("attempts", f.attempt.Attempts).
		Str("provider", c.gateway.Provider()).
		Msg("payment attempt")

	if errors.Is(err, paymentModel.ErrInvalidChargeRequest) {
		return constant.Empty, model.ValidationError(err.Error())
	}

	switch outcome := result.(type) {
	case paymentModel.Captured:
		return outcome.Reference, nil
	case paymentModel.Declined:
		f.logger.Info().Str("reason", outcome.Reason).Str("code", outcome.Code).Msg("payment declined")

		return constant.Empty, model.PaymentDeclined(outcome.Reason)
	case paymentModel.ProcessorError:
		f.logger.Error().Err(outcome).Msg("payment processor error")

		if outcome.Transient {
			return constant.Empty, model.ProcessorUnavailable(outcome)
		}

		if outcome.Unsettled() {
			return outcome.Reference, fmt.Errorf("%w: %w", errChargeUnsettled, outcome)
		}

		return constant.Empty, model.ProcessorFailed(outcome)
	}

	// No outcome at all: the flow deadline ran out between attempts.
	f.logger.Error().Err(err).Msg("payment charge did not complete")

	return constant.Empty, model.ProcessorUnavailable(err)
}

func (c *coordinatorImpl) persist(ctx context.Context, booking model.Booking) error {
	_, err := retry.Do(ctx, c.persistPolicy, "booking.insert", func(_ int) (struct{}, error) {
		err := c.repo.Insert(ctx, booking)
		if err != nil && !errors.Is(err, repository.ErrTransient) {
			return struct{}{}, retry.Permanent(err)
		}

		return struct{}{}, err
	})

	return err //nolint:wrapcheck
}

// compensate handles a captured charge that could not be recorded.
func (c *coordinatorImpl) compensate(ctx context.Context, f *flow, persistErr error) (model.Confirmation, error) {
	reason := reconciliationModel.ReasonPersistenceFailure

	var owner model.Booking

	if errors.Is(persistErr, repository.ErrConstraintViolation) {
		reason = reconciliationModel.ReasonSlotConflict

		var err error

		owner, err = c.repo.GetByIdempotencyKey(ctx, f.booking.IdempotencyKey)
		if err != nil {
			f.logger.Error().Err(err).Msg("failed to look up the booking that owns the slot")
		}

		if owner.ID != constant.Empty {
			if owner.Reference() == f.booking.Reference() {
				f.enter(model.StateConfirmed)
				f.logger.Info().Msg("booking was already recorded by an earlier attempt")

				return model.Confirmation{Booking: owner, Attempt: f.attempt, Replayed: true}, nil
			}

			reason = reconciliationModel.ReasonDuplicateCharge
		}
	}

	f.enter(model.StateReconciling)
	f.logger.Warn().Err(persistErr).Str("reason", reason).Msg("booking not recorded, reversing payment")

	rec, err := c.reconciliation.Compensate(ctx, c.compensation(f, f.booking.Reference(), reason, persistErr))
	if err != nil {
		return model.Confirmation{}, model.ReconciliationFailure(rec.ID, err)
	}

	switch reason {
	case reconciliationModel.ReasonDuplicateCharge:
		// The extra capture is gone; the guest keeps the booking they already have.
		f.enter(model.StateConfirmed)

		return model.Confirmation{Booking: owner, Attempt: f.attempt, Replayed: true}, nil
	case reconciliationModel.ReasonSlotConflict:
		f.enter(model.StateRejected)

		return model.Confirmation{}, model.SlotConflict()
	default:
		f.enter(model.StateRejected)

		return model.Confirmation{}, model.NotRecorded(persistErr)
	}
}

// release reverses a charge the processor left unsettled, so it cannot
// capture later without a booking behind it.
func (c *coordinatorImpl) release(ctx context.Context, f *flow, reference string, cause error) (model.Confirmation, error) {
	f.enter(model.StateReconciling)
	f.logger.Warn().Err(cause).Str("payment_reference", reference).Msg("payment did not settle, releasing it")

	rec, err := c.reconciliation.Compensate(ctx, c.compensation(f, reference, reconciliationModel.ReasonUnsettledCharge, cause))
	if err != nil {
		return model.Confirmation{}, model.ReconciliationFailure(rec.ID, err)
	}

	f.enter(model.StateRejected)

	return model.Confirmation{}, model.PaymentNotSettled(cause)
}

// rejectReversed stops a flow whose capture already has a reconciliation case.
func (c *coordinatorImpl) rejectReversed(f *flow, prior reconciliationModel.Reconciliation) (model.Confirmation, error) {
	f.logger.Warn().
		Str("case_id", prior.ID).
		Str("case_status", prior.Status).
		Msg("processor replayed a payment that already has a reconciliation case")
	f.enter(model.StateRejected)

	if prior.Status == reconciliationModel.StatusPendingManual {
		return model.Confirmation{}, model.ReconciliationFailure(prior.ID, fmt.Errorf("case %s awaits an operator", prior.ID))
	}

	return model.Confirmation{}, model.PaymentReversed(prior.ID)
}

func (c *coordinatorImpl) compensation(f *flow, reference, reason string, cause error) reconciliationModel.CompensationRequest {
	return reconciliationModel.CompensationRequest{
		BookingID:        f.booking.ID,
		RoomID:           f.booking.RoomID,
		Provider:         c.gateway.Provider(),
		PaymentReference: reference,
		Amount:           f.req.Amount,
		Currency:         f.req.Currency,
		IdempotencyKey:   f.booking.IdempotencyKey,
		Reason:           reason,
		Cause:            cause.Error(),
		RequestedBy:      f.req.RequestedBy,
	}
}

func (c *coordinatorImpl) Drain(ctx context.Context) error {
	active, err := c.flows.drain(ctx)
	if err != nil {
		log.Error().Err(err).Int("flows", active).Msg("booking flows did not finish before shutdown")

		return err
	}

	if active > 0 {
		log.Info().Int("flows", active).Msg("booking flows finished")
	}

	return nil
}

func (c *coordinatorImpl) publish(ctx context.Context, confirmation model.Confirmation, traceID string) {
	topic := c.cfg.Kafka.Topics.Booking
	if topic == constant.Empty {
		return
	}

	event := model.NewEvent(model.EventConfirmed, confirmation, traceID, timezone.Now())

	err := c.kafka.SendMessages(ctx, topic, kafka.Message{Key: event.BookingID, Value: event})
	if err != nil {
		log.Error().Err(err).Str("booking_id", event.BookingID).Msg("failed to publish booking event")
	}
}
