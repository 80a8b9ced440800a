package service

//go:generate go run go.uber.org/mock/mockgen -source=./service.go -destination=../mocks/service_mock.go -package=mocks -mock_names=Reconciliation=MockReconciliationService

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"roombook/config"
	"roombook/infras/kafka"
	"roombook/infras/otel"
	"roombook/infras/s3"
	"roombook/internal/domains/payment/gateway"
	paymentModel "roombook/internal/domains/payment/model"
	"roombook/internal/domains/reconciliation/model"
	"roombook/internal/domains/reconciliation/model/dto"
	"roombook/internal/domains/reconciliation/repository"
	"roombook/shared"
	"roombook/shared/constant"
	gDto "roombook/shared/dto"
	"roombook/shared/retry"
	"roombook/shared/timezone"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultArchiveDirectory = "reconciliations"
	defaultSweepInterval    = 5 * time.Minute
	defaultSweepBatchSize   = 20

	causeOperatorRetry = "operator retry"
)

type Reconciliation interface {
	// Compensate reverses a captured charge and records the case. The
	// returned case always carries an id; a non-nil error means the money
	// is still captured and an operator has to act.
	Compensate(ctx context.Context, req model.CompensationRequest) (model.Reconciliation, error)
	// FindByPayment returns the case opened for a payment, or a zero case
	// when that payment was never compensated.
	FindByPayment(ctx context.Context, provider, paymentReference string) (model.Reconciliation, error)
	GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup) (dto.GetReconciliationsResponse, error)
	Get(ctx context.Context, id string) (dto.ReconciliationResponse, error)
	Retry(ctx context.Context, id string) (dto.ReconciliationResponse, error)
	Resolve(ctx context.Context, id string, req dto.ResolveRequest) (dto.ReconciliationResponse, error)
	RetryPending(ctx context.Context, batchSize int) (model.SweepResult, error)
	RunSweeper(ctx context.Context)
	CaseFile(ctx context.Context, id string) ([]byte, error)
}

type serviceImpl struct {
	repo    repository.Reconciliation
	gateway gateway.Gateway
	kafka   kafka.Client
	s3      s3.S3
	cfg     *config.Config
	otel    otel.Otel
	policy  retry.Policy
}

func New(repo repository.Reconciliation, gw gateway.Gateway, kafkaClient kafka.Client, s3Client s3.S3, cfg *config.Config, otel otel.Otel) Reconciliation {
	return &serviceImpl{
		repo:    repo,
		gateway: gw,
		kafka:   kafkaClient,
		s3:      s3Client,
		cfg:     cfg,
		otel:    otel,
		policy: retry.NewPolicy(
			cfg.Booking.CompensationMaxAttempts,
			cfg.Booking.RetryInitialIntervalMs,
			cfg.Booking.RetryMaxIntervalMs,
		),
	}
}

func (s *serviceImpl) Compensate(ctx context.Context, req model.CompensationRequest) (rec model.Reconciliation, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconciliation.Compensate")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	if req.Provider == constant.Empty {
		req.Provider = s.gateway.Provider()
	}

	rec = req.NewCase(timezone.Now())

	scope.SetAttributes(map[string]any{
		"reconciliation.id":     rec.ID,
		"booking.id":            rec.BookingID,
		"payment.reference":     rec.PaymentReference,
		"reconciliation.reason": rec.Reason,
	})

	recorded := true

	err = s.repo.Insert(ctx, rec)

	switch {
	case errors.Is(err, repository.ErrDuplicate):
		existing, getErr := s.repo.Get(ctx, shared.FilterByID(rec.ID, model.FieldID, model.TableName))
		if getErr != nil || existing.ID == constant.Empty {
			log.Warn().Err(getErr).Str("case_id", rec.ID).Msg("failed to load existing reconciliation case")

			break
		}

		switch existing.Status {
		case model.StatusCompensated, model.StatusResolvedManually:
			log.Info().Str("case_id", existing.ID).Str("status", existing.Status).Msg("payment already reconciled")

			return existing, nil
		case model.StatusPendingManual:
			if _, err = s.repo.Transition(ctx, existing.ID, model.StatusPendingManual, statusUpdate(model.StatusCompensating, req.RequestedBy)); err != nil {
				log.Warn().Err(err).Str("case_id", existing.ID).Msg("failed to claim reconciliation case")
			}
		}

		existing.Status = model.StatusCompensating
		rec = existing
	case err != nil:
		recorded = false

		log.Error().
			Err(err).
			Str("case_id", rec.ID).
			Str("payment_reference", rec.PaymentReference).
			Msg("failed to record reconciliation case, compensating anyway")
	}

	return s.reverse(ctx, rec, recorded, req.Cause, req.RequestedBy)
}

func (s *serviceImpl) FindByPayment(ctx context.Context, provider, paymentReference string) (rec model.Reconciliation, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconciliation.FindByPayment")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	id := model.CaseID(provider, paymentReference)

	rec, err = s.repo.Get(ctx, shared.FilterByID(id, model.FieldID, model.TableName))
	if err != nil {
		return rec, fmt.Errorf("failed to get reconciliation case for payment %s: %w", paymentReference, err)
	}

	return rec, nil
}

// reverse runs the reversal for a case in COMPENSATING and moves it to
// COMPENSATED or PENDING_MANUAL.
func (s *serviceImpl) reverse(ctx context.Context, rec model.Reconciliation, recorded bool, cause, operator string) (model.Reconciliation, error) {
	reverseReq := paymentModel.ReverseRequest{
		Reference:      rec.PaymentReference,
		Amount:         rec.Amount,
		Currency:       rec.Currency,
		IdempotencyKey: rec.IdempotencyKey,
	}

	attempts := 0

	_, err := retry.Do(ctx, s.policy, "payment.reverse", func(attempt int) (struct{}, error) {
		attempts = attempt

		err := s.gateway.Reverse(ctx, reverseReq)

		var reverseErr *paymentModel.ReverseError
		if err != nil && (!errors.As(err, &reverseErr) || !reverseErr.Transient) {
			return struct{}{}, retry.Permanent(err)
		}

		return struct{}{}, err
	})

	rec.Attempts += attempts
	now := timezone.Now()
	rec.ModifiedAt = now

	if err == nil {
		rec.Status = model.StatusCompensated
		rec.LastError = nil

		s.save(ctx, rec, recorded, operator)
		s.publish(ctx, model.NewEvent(model.EventCompensated, rec, cause, constant.Empty, now))

		log.Info().
			Str("case_id", rec.ID).
			Str("booking_id", rec.BookingID).
			Str("payment_reference", rec.PaymentReference).
			Int("attempts", rec.Attempts).
			Msg("payment reversed")

		return rec, nil
	}

	lastError := err.Error()
	rec.Status = model.StatusPendingManual
	rec.LastError = &lastError

	s.save(ctx, rec, recorded, operator)

	_, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconciliation.escalate")
	event := model.NewEvent(model.EventRequiresOperator, rec, cause, scope.TraceID(), now)
	scope.End()

	s.publish(ctx, event)
	archiveURL := s.archive(ctx, event)

	// Last line of defence: this entry alone must be enough to resolve the case.
	log.Error().
		Err(err).
		Str("case_id", rec.ID).
		Str("booking_id", rec.BookingID).
		Str("room_id", rec.RoomID).
		Str("provider", rec.Provider).
		Str("payment_reference", rec.PaymentReference).
		Int64("amount", rec.Amount).
		Str("currency", rec.Currency).
		Str("idempotency_key", rec.IdempotencyKey).
		Str("reason", rec.Reason).
		Str("cause", cause).
		Int("attempts", rec.Attempts).
		Bool("recorded", recorded).
		Str("archive", archiveURL).
		Time("occurred_at", now).
		Msg("payment reversal failed, operator action required")

	return rec, fmt.Errorf("failed to reverse payment %s: %w", rec.PaymentReference, err)
}

// save moves the case out of COMPENSATING. When the first insert failed the
// case is inserted again in its final state.
func (s *serviceImpl) save(ctx context.Context, rec model.Reconciliation, recorded bool, operator string) {
	if !recorded {
		if err := s.repo.Insert(ctx, rec); err != nil && !errors.Is(err, repository.ErrDuplicate) {
			log.Error().Err(err).Str("case_id", rec.ID).Str("status", rec.Status).Msg("failed to record reconciliation case")
		}

		return
	}

	mod := shared.TransformFields(model.StatusUpdate{
		Status:    rec.Status,
		Attempts:  rec.Attempts,
		LastError: rec.LastError,
	}, operator)

	ok, err := s.repo.Transition(ctx, rec.ID, model.StatusCompensating, mod)
	if err != nil {
		log.Error().Err(err).Str("case_id", rec.ID).Str("status", rec.Status).Msg("failed to update reconciliation case")

		return
	}

	if !ok {
		log.Warn().Str("case_id", rec.ID).Str("status", rec.Status).Msg("reconciliation case changed while compensating")
	}
}

func (s *serviceImpl) publish(ctx context.Context, event model.Event) {
	topic := s.cfg.Kafka.Topics.Reconciliation
	if topic == constant.Empty {
		log.Debug().Str("type", event.Type).Msg("reconciliation topic not configured, event not published")

		return
	}

	err := s.kafka.SendMessages(ctx, topic, kafka.Message{Key: event.BookingID, Value: event})
	if err != nil {
		log.Error().Err(err).Str("case_id", event.CaseID).Str("type", event.Type).Msg("failed to publish reconciliation event")
	}
}

func (s *serviceImpl) archive(ctx context.Context, event model.Event) string {
	data, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		log.Error().Err(err).Str("case_id", event.CaseID).Msg("failed to encode reconciliation case file")

		return constant.Empty
	}

	url, err := s.s3.UploadFileBytes(ctx, constant.Empty, s.archiveDirectory(), caseFileName(event.CaseID), constant.ContentTypeJSON, data)
	if err != nil {
		log.Error().Err(err).Str("case_id", event.CaseID).Msg("failed to archive reconciliation case file")

		return constant.Empty
	}

	return url
}

func (s *serviceImpl) GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup) (res dto.GetReconciliationsResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconciliation.GetAll")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count reconciliation cases")

		return res, fmt.Errorf("failed to count reconciliation cases: %w", err)
	}

	models, err := s.repo.GetAll(ctx, params, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to get reconciliation cases")

		return res, fmt.Errorf("failed to get reconciliation cases: %w", err)
	}

	res.FromModels(models, total, params.Limit)

	return res, nil
}

func (s *serviceImpl) Get(ctx context.Context, id string) (res dto.ReconciliationResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconciliation.Get")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	rec, err := s.getCase(ctx, id)
	if err != nil {
		return res, err
	}

	res.FromModel(rec)

	return res, nil
}

func (s *serviceImpl) getCase(ctx context.Context, id string) (model.Reconciliation, error) {
	rec, err := s.repo.Get(ctx, shared.FilterByID(id, model.FieldID, model.TableName))
	if err != nil {
		log.Error().Err(err).Str("case_id", id).Msg("failed to get reconciliation case")

		return rec, fmt.Errorf("failed to get reconciliation case: %w", err)
	}

	if rec.ID == constant.Empty {
		return rec, model.ErrCaseNotFound
	}

	return rec, nil
}

// Retry claims a PENDING_MANUAL case and reverses it again. A failed reversal
// is not an error here; the returned case is back in PENDING_MANUAL.
func (s *serviceImpl) Retry(ctx context.Context, id string) (res dto.ReconciliationResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconciliation.Retry")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	operator := operatorFrom(ctx)

	rec, err := s.getCase(ctx, id)
	if err != nil {
		return res, err
	}

	if rec.Status != model.StatusPendingManual {
		return res, model.ErrCaseNotPending
	}

	claimed, err := s.repo.Transition(ctx, id, model.StatusPendingManual, statusUpdate(model.StatusCompensating, operator))
	if err != nil {
		return res, fmt.Errorf("failed to claim reconciliation case: %w", err)
	}

	if !claimed {
		return res, model.ErrCaseNotPending
	}

	rec.Status = model.StatusCompensating

	rec, reverseErr := s.reverse(context.WithoutCancel(ctx), rec, true, causeOperatorRetry, operator)
	if reverseErr != nil {
		log.Warn().Err(reverseErr).Str("case_id", id).Msg("reconciliation retry did not reverse the payment")
	}

	res.FromModel(rec)

	return res, nil
}

func (s *serviceImpl) Resolve(ctx context.Context, id string, req dto.ResolveRequest) (res dto.ReconciliationResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconciliation.Resolve")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	operator := operatorFrom(ctx)

	rec, err := s.getCase(ctx, id)
	if err != nil {
		return res, err
	}

	mod := shared.TransformFields(model.StatusUpdate{
		Status:         model.StatusResolvedManually,
		ResolutionNote: req.Note,
	}, operator)

	resolved, err := s.repo.Transition(ctx, id, model.StatusPendingManual, mod)
	if err != nil {
		return res, fmt.Errorf("failed to resolve reconciliation case: %w", err)
	}

	if !resolved {
		return res, model.ErrCaseNotPending
	}

	rec.Status = model.StatusResolvedManually
	rec.ResolutionNote = &req.Note
	rec.ModifiedBy = operator
	rec.ModifiedAt = timezone.Now()

	log.Info().Str("case_id", id).Str("operator", operator).Msg("reconciliation case resolved manually")

	res.FromModel(rec)

	return res, nil
}

// RetryPending retries the oldest PENDING_MANUAL cases.
func (s *serviceImpl) RetryPending(ctx context.Context, batchSize int) (res model.SweepResult, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconciliation.RetryPending")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}

	params := gDto.QueryParams{Page: 1, Limit: batchSize, SortBy: constant.FieldCreatedAt, SortDir: gDto.SortDirAsc}
	filter := dto.ListFilter{Status: model.StatusPendingManual}.ToFilterGroup()

	cases, err := s.repo.GetAll(ctx, params, filter)
	if err != nil {
		return res, fmt.Errorf("failed to list pending reconciliation cases: %w", err)
	}

	for _, pending := range cases {
		res.Scanned++

		rec, err := s.Retry(ctx, pending.ID)

		switch {
		case errors.Is(err, model.ErrCaseNotPending):
			res.Skipped++
		case err != nil:
			log.Error().Err(err).Str("case_id", pending.ID).Msg("failed to retry reconciliation case")

			res.Failed++
		case rec.Status == model.StatusCompensated:
			res.Compensated++
		default:
			res.Failed++
		}
	}

	return res, nil
}

// RunSweeper calls RetryPending on the configured interval until ctx is done.
func (s *serviceImpl) RunSweeper(ctx context.Context) {
	interval := defaultSweepInterval
	if seconds := s.cfg.Reconciliation.Sweeper.IntervalSeconds; seconds > 0 {
		interval = time.Duration(seconds) * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("reconciliation sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reconciliation sweeper stopped")

			return
		case <-ticker.C:
			sweepCtx := context.WithValue(ctx, constant.ContextKeyOperator, constant.ContextSystem)

			res, err := s.RetryPending(sweepCtx, s.cfg.Reconciliation.Sweeper.BatchSize)
			if err != nil {
				log.Error().Err(err).Msg("reconciliation sweep failed")

				continue
			}

			if res.Scanned > 0 {
				log.Info().
					Int("scanned", res.Scanned).
					Int("compensated", res.Compensated).
					Int("failed", res.Failed).
					Int("skipped", res.Skipped).
					Msg("reconciliation sweep finished")
			}
		}
	}
}

// CaseFile downloads the archived JSON case file.
func (s *serviceImpl) CaseFile(ctx context.Context, id string) (data []byte, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconciliation.CaseFile")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	data, err = s.s3.DownloadFile(ctx, constant.Empty, s.archiveDirectory(), caseFileName(id))
	if err != nil {
		return nil, fmt.Errorf("failed to download reconciliation case file: %w", err)
	}

	return data, nil
}

func (s *serviceImpl) archiveDirectory() string {
	if dir := s.cfg.Reconciliation.ArchiveDirectory; dir != constant.Empty {
		return dir
	}

	return defaultArchiveDirectory
}

func caseFileName(id string) string {
	return id + ".json"
}

func statusUpdate(status, operator string) map[string]any {
	return shared.TransformFields(model.StatusUpdate{Status: status}, operator)
}

func operatorFrom(ctx context.Context) string {
	if operator, ok := ctx.Value(constant.ContextKeyOperator).(string); ok && operator != constant.Empty {
		return operator
	}

	return constant.ContextSystem
}
