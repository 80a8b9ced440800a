package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"roombook/config"
	kafkaMocks "roombook/infras/kafka/mocks"
	"roombook/infras/otel/mocks"
	s3Mocks "roombook/infras/s3/mocks"
	paymentMocks "roombook/internal/domains/payment/mocks"
	paymentModel "roombook/internal/domains/payment/model"
	recMocks "roombook/internal/domains/reconciliation/mocks"
	"roombook/internal/domains/reconciliation/model"
	"roombook/internal/domains/reconciliation/model/dto"
	"roombook/internal/domains/reconciliation/repository"
	"roombook/internal/domains/reconciliation/service"
	"roombook/shared/constant"
)

const reconciliationTopic = "roombook.reconciliation"

type fixture struct {
	repo    *recMocks.MockReconciliation
	gateway *paymentMocks.MockGateway
	kafka   *kafkaMocks.MockClient
	s3      *s3Mocks.MockS3
	svc     service.Reconciliation
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	ctrl := gomock.NewController(t)

	cfg := &config.Config{}
	cfg.Booking.CompensationMaxAttempts = 3
	cfg.Booking.RetryInitialIntervalMs = 1
	cfg.Booking.RetryMaxIntervalMs = 2
	cfg.Kafka.Topics.Reconciliation = reconciliationTopic

	f := fixture{
		repo:    recMocks.NewMockReconciliation(ctrl),
		gateway: paymentMocks.NewMockGateway(ctrl),
		kafka:   kafkaMocks.NewMockClient(ctrl),
		s3:      s3Mocks.NewMockS3(ctrl),
	}

	f.svc = service.New(f.repo, f.gateway, f.kafka, f.s3, cfg, mocks.NewOtel())

	return f
}

func slotConflict() model.CompensationRequest {
	return model.CompensationRequest{
		BookingID:        "3f1c7d3e-8a4b-5c2d-9e6f-0a1b2c3d4e5f",
		RoomID:           "7",
		Provider:         "stripe",
		PaymentReference: "ch_1",
		Amount:           15000,
		Currency:         "USD",
		IdempotencyKey:   "bk_test",
		Reason:           model.ReasonSlotConflict,
		Cause:            "slot no longer available",
		RequestedBy:      "guest-1",
	}
}

func timeFixture() time.Time {
	return time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
}

func statusOf(status string) gomock.Matcher {
	return gomock.Cond(func(mod map[string]any) bool {
		return mod[model.FieldStatus] == status
	})
}

func transient() error {
	return &paymentModel.ReverseError{Transient: true, Code: "api_error", Message: "processor unavailable"}
}

func permanent() error {
	return &paymentModel.ReverseError{Code: "resource_missing", Message: "no such charge"}
}

func TestReconciliationService_Compensate(t *testing.T) {
	caseID := model.CaseID("stripe", "ch_1")

	t.Run("reverses and records the case", func(t *testing.T) {
		f := newFixture(t)

		f.repo.EXPECT().Insert(gomock.Any(), gomock.Cond(func(rec model.Reconciliation) bool {
			return rec.ID == caseID && rec.Status == model.StatusCompensating && rec.Reason == model.ReasonSlotConflict
		})).Return(nil)
		f.gateway.EXPECT().Reverse(gomock.Any(), paymentModel.ReverseRequest{
			Reference:      "ch_1",
			Amount:         15000,
			Currency:       "USD",
			IdempotencyKey: "bk_test",
		}).Return(nil)
		f.repo.EXPECT().Transition(gomock.Any(), caseID, model.StatusCompensating, statusOf(model.StatusCompensated)).Return(true, nil)
		f.kafka.EXPECT().SendMessages(gomock.Any(), reconciliationTopic, gomock.Any()).Return(nil)

		rec, err := f.svc.Compensate(context.Background(), slotConflict())

		require.NoError(t, err)
		assert.Equal(t, caseID, rec.ID)
		assert.Equal(t, model.StatusCompensated, rec.Status)
		assert.Equal(t, 1, rec.Attempts)
		assert.Nil(t, rec.LastError)
	})

	t.Run("retries transient reversal failures", func(t *testing.T) {
		f := newFixture(t)

		f.repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
		gomock.InOrder(
			f.gateway.EXPECT().Reverse(gomock.Any(), gomock.Any()).Return(transient()),
			f.gateway.EXPECT().Reverse(gomock.Any(), gomock.Any()).Return(nil),
		)
		f.repo.EXPECT().Transition(gomock.Any(), caseID, model.StatusCompensating, statusOf(model.StatusCompensated)).Return(true, nil)
		f.kafka.EXPECT().SendMessages(gomock.Any(), reconciliationTopic, gomock.Any()).Return(nil)

		rec, err := f.svc.Compensate(context.Background(), slotConflict())

		require.NoError(t, err)
		assert.Equal(t, model.StatusCompensated, rec.Status)
		assert.Equal(t, 2, rec.Attempts)
	})

	t.Run("escalates when the reversal is rejected", func(t *testing.T) {
		f := newFixture(t)

		f.repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
		f.gateway.EXPECT().Reverse(gomock.Any(), gomock.Any()).Return(permanent()).Times(1)
		f.repo.EXPECT().Transition(gomock.Any(), caseID, model.StatusCompensating, gomock.Cond(func(mod map[string]any) bool {
			lastError, ok := mod[model.FieldLastError].(*string)

			return mod[model.FieldStatus] == model.StatusPendingManual && ok && lastError != nil
		})).Return(true, nil)
		f.kafka.EXPECT().SendMessages(gomock.Any(), reconciliationTopic, gomock.Any()).Return(nil)
		f.s3.EXPECT().
			UploadFileBytes(gomock.Any(), constant.Empty, "reconciliations", caseID+".json", constant.ContentTypeJSON, gomock.Any()).
			Return("s3://cases/"+caseID+".json", nil)

		rec, err := f.svc.Compensate(context.Background(), slotConflict())

		require.Error(t, err)
		assert.Equal(t, caseID, rec.ID)
		assert.Equal(t, model.StatusPendingManual, rec.Status)
		assert.Contains(t, rec.LastErrorMessage(), "no such charge")
		assert.Equal(t, 1, rec.Attempts)
	})

	t.Run("escalates after exhausting transient failures", func(t *testing.T) {
		f := newFixture(t)

		f.repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
		f.gateway.EXPECT().Reverse(gomock.Any(), gomock.Any()).Return(transient()).Times(3)
		f.repo.EXPECT().Transition(gomock.Any(), caseID, model.StatusCompensating, statusOf(model.StatusPendingManual)).Return(true, nil)
		f.kafka.EXPECT().SendMessages(gomock.Any(), reconciliationTopic, gomock.Any()).Return(nil)
		f.s3.EXPECT().UploadFileBytes(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", nil)

		rec, err := f.svc.Compensate(context.Background(), slotConflict())

		require.Error(t, err)
		assert.Equal(t, model.StatusPendingManual, rec.Status)
		assert.Equal(t, 3, rec.Attempts)
	})

	t.Run("re-inserts the case when the first insert failed", func(t *testing.T) {
		f := newFixture(t)

		gomock.InOrder(
			f.repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(errors.New("connection refused")),
			f.repo.EXPECT().Insert(gomock.Any(), gomock.Cond(func(rec model.Reconciliation) bool {
				return rec.Status == model.StatusPendingManual && rec.LastError != nil
			})).Return(nil),
		)
		f.gateway.EXPECT().Reverse(gomock.Any(), gomock.Any()).Return(permanent())
		f.kafka.EXPECT().SendMessages(gomock.Any(), reconciliationTopic, gomock.Any()).Return(errors.New("broker down"))
		f.s3.EXPECT().UploadFileBytes(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("bucket missing"))

		rec, err := f.svc.Compensate(context.Background(), slotConflict())

		require.Error(t, err)
		assert.Equal(t, caseID, rec.ID)
		assert.Equal(t, model.StatusPendingManual, rec.Status)
	})

	t.Run("does not reverse a case that is already compensated", func(t *testing.T) {
		f := newFixture(t)

		existing := slotConflict().NewCase(timeFixture())
		existing.Status = model.StatusCompensated

		f.repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(repository.ErrDuplicate)
		f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(existing, nil)

		rec, err := f.svc.Compensate(context.Background(), slotConflict())

		require.NoError(t, err)
		assert.Equal(t, model.StatusCompensated, rec.Status)
	})

	t.Run("claims a pending case before reversing it again", func(t *testing.T) {
		f := newFixture(t)

		existing := slotConflict().NewCase(timeFixture())
		existing.Status = model.StatusPendingManual
		existing.Attempts = 3

		f.repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(repository.ErrDuplicate)
		f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(existing, nil)
		f.repo.EXPECT().Transition(gomock.Any(), caseID, model.StatusPendingManual, statusOf(model.StatusCompensating)).Return(true, nil)
		f.gateway.EXPECT().Reverse(gomock.Any(), gomock.Any()).Return(nil)
		f.repo.EXPECT().Transition(gomock.Any(), caseID, model.StatusCompensating, statusOf(model.StatusCompensated)).Return(true, nil)
		f.kafka.EXPECT().SendMessages(gomock.Any(), reconciliationTopic, gomock.Any()).Return(nil)

		rec, err := f.svc.Compensate(context.Background(), slotConflict())

		require.NoError(t, err)
		assert.Equal(t, model.StatusCompensated, rec.Status)
		assert.Equal(t, 4, rec.Attempts)
	})
}

func pendingCase() model.Reconciliation {
	rec := slotConflict().NewCase(timeFixture())
	rec.Status = model.StatusPendingManual
	lastError := "payment reversal failed (resource_missing): no such charge"
	rec.LastError = &lastError

	return rec
}

func TestReconciliationService_FindByPayment(t *testing.T) {
	t.Run("existing case", func(t *testing.T) {
		f := newFixture(t)
		rec := model.Reconciliation{ID: model.CaseID("stripe", "ch_1"), PaymentReference: "ch_1", Status: model.StatusCompensated}

		f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(rec, nil)

		res, err := f.svc.FindByPayment(context.Background(), "stripe", "ch_1")

		require.NoError(t, err)
		assert.Equal(t, rec.ID, res.ID)
	})

	t.Run("no case", func(t *testing.T) {
		f := newFixture(t)

		f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(model.Reconciliation{}, nil)

		res, err := f.svc.FindByPayment(context.Background(), "stripe", "ch_1")

		require.NoError(t, err)
		assert.Empty(t, res.ID)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t)

		f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(model.Reconciliation{}, errors.New("connection refused"))

		_, err := f.svc.FindByPayment(context.Background(), "stripe", "ch_1")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "ch_1")
	})
}

func TestReconciliationService_Retry(t *testing.T) {
	operatorCtx := context.WithValue(context.Background(), constant.ContextKeyOperator, "ops-1")

	t.Run("compensates a pending case", func(t *testing.T) {
		f := newFixture(t)
		rec := pendingCase()

		f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(rec, nil)
		f.repo.EXPECT().Transition(gomock.Any(), rec.ID, model.StatusPendingManual, gomock.Cond(func(mod map[string]any) bool {
			return mod[model.FieldStatus] == model.StatusCompensating && mod[constant.FieldModifiedBy] == "ops-1"
		})).Return(true, nil)
		f.gateway.EXPECT().Reverse(gomock.Any(), gomock.Any()).Return(nil)
		f.repo.EXPECT().Transition(gomock.Any(), rec.ID, model.StatusCompensating, statusOf(model.StatusCompensated)).Return(true, nil)
		f.kafka.EXPECT().SendMessages(gomock.Any(), reconciliationTopic, gomock.Any()).Return(nil)

		res, err := f.svc.Retry(operatorCtx, rec.ID)

		require.NoError(t, err)
		assert.Equal(t, model.StatusCompensated, res.Status)
	})

	t.Run("returns the case to pending when the reversal fails again", func(t *testing.T) {
		f := newFixture(t)
		rec := pendingCase()

		f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(rec, nil)
		f.repo.EXPECT().Transition(gomock.Any(), rec.ID, model.StatusPendingManual, gomock.Any()).Return(true, nil)
		f.gateway.EXPECT().Reverse(gomock.Any(), gomock.Any()).Return(permanent())
		f.repo.EXPECT().Transition(gomock.Any(), rec.ID, model.StatusCompensating, statusOf(model.StatusPendingManual)).Return(true, nil)
		f.kafka.EXPECT().SendMessages(gomock.Any(), reconciliationTopic, gomock.Any()).Return(nil)
		f.s3.EXPECT().UploadFileBytes(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", nil)

		res, err := f.svc.Retry(operatorCtx, rec.ID)

		require.NoError(t, err)
		assert.Equal(t, model.StatusPendingManual, res.Status)
	})

	t.Run("rejects a case that is not pending", func(t *testing.T) {
		f := newFixture(t)
		rec := pendingCase()
		rec.Status = model.StatusCompensated

		f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(rec, nil)

		_, err := f.svc.Retry(operatorCtx, rec.ID)

		assert.ErrorIs(t, err, model.ErrCaseNotPending)
	})

	t.Run("loses the claim to another worker", func(t *testing.T) {
		f := newFixture(t)
		rec := pendingCase()

		f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(rec, nil)
		f.repo.EXPECT().Transition(gomock.Any(), rec.ID, model.StatusPendingManual, gomock.Any()).Return(false, nil)

		_, err := f.svc.Retry(operatorCtx, rec.ID)

		assert.ErrorIs(t, err, model.ErrCaseNotPending)
	})

	t.Run("unknown case", func(t *testing.T) {
		f := newFixture(t)

		f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(model.Reconciliation{}, nil)

		_, err := f.svc.Retry(operatorCtx, "missing")

		assert.ErrorIs(t, err, model.ErrCaseNotFound)
	})
}

func TestReconciliationService_Resolve(t *testing.T) {
	operatorCtx := context.WithValue(context.Background(), constant.ContextKeyOperator, "ops-1")
	req := dto.ResolveRequest{Note: "refunded by hand in the processor dashboard"}

	t.Run("resolves a pending case", func(t *testing.T) {
		f := newFixture(t)
		rec := pendingCase()

		f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(rec, nil)
		f.repo.EXPECT().Transition(gomock.Any(), rec.ID, model.StatusPendingManual, gomock.Cond(func(mod map[string]any) bool {
			return mod[model.FieldStatus] == model.StatusResolvedManually && mod[model.FieldResolutionNote] == req.Note
		})).Return(true, nil)

		res, err := f.svc.Resolve(operatorCtx, rec.ID, req)

		require.NoError(t, err)
		assert.Equal(t, model.StatusResolvedManually, res.Status)
	})

	t.Run("rejects a case that moved on", func(t *testing.T) {
		f := newFixture(t)
		rec := pendingCase()

		f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(rec, nil)
		f.repo.EXPECT().Transition(gomock.Any(), rec.ID, model.StatusPendingManual, gomock.Any()).Return(false, nil)

		_, err := f.svc.Resolve(operatorCtx, rec.ID, req)

		assert.ErrorIs(t, err, model.ErrCaseNotPending)
	})
}

func TestReconciliationService_RetryPending(t *testing.T) {
	f := newFixture(t)

	first := pendingCase()
	second := pendingCase()
	second.ID = model.CaseID("stripe", "ch_2")
	second.PaymentReference = "ch_2"
	third := pendingCase()
	third.ID = model.CaseID("stripe", "ch_3")
	third.PaymentReference = "ch_3"

	f.repo.EXPECT().GetAll(gomock.Any(), gomock.Any(), gomock.Any()).Return([]model.Reconciliation{first, second, third}, nil)

	// first compensates
	f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(first, nil)
	f.repo.EXPECT().Transition(gomock.Any(), first.ID, model.StatusPendingManual, gomock.Any()).Return(true, nil)
	f.gateway.EXPECT().Reverse(gomock.Any(), gomock.Cond(func(req paymentModel.ReverseRequest) bool {
		return req.Reference == "ch_1"
	})).Return(nil)
	f.repo.EXPECT().Transition(gomock.Any(), first.ID, model.StatusCompensating, gomock.Any()).Return(true, nil)

	// second fails again
	f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(second, nil)
	f.repo.EXPECT().Transition(gomock.Any(), second.ID, model.StatusPendingManual, gomock.Any()).Return(true, nil)
	f.gateway.EXPECT().Reverse(gomock.Any(), gomock.Cond(func(req paymentModel.ReverseRequest) bool {
		return req.Reference == "ch_2"
	})).Return(permanent())
	f.repo.EXPECT().Transition(gomock.Any(), second.ID, model.StatusCompensating, gomock.Any()).Return(true, nil)
	f.s3.EXPECT().UploadFileBytes(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", nil)

	// third was claimed elsewhere
	f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(third, nil)
	f.repo.EXPECT().Transition(gomock.Any(), third.ID, model.StatusPendingManual, gomock.Any()).Return(false, nil)

	f.kafka.EXPECT().SendMessages(gomock.Any(), reconciliationTopic, gomock.Any()).Return(nil).Times(2)

	res, err := f.svc.RetryPending(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, model.SweepResult{Scanned: 3, Compensated: 1, Failed: 1, Skipped: 1}, res)
}

func TestReconciliationService_CaseFile(t *testing.T) {
	f := newFixture(t)

	f.s3.EXPECT().DownloadFile(gomock.Any(), constant.Empty, "reconciliations", "case-1.json").Return([]byte(`{"case_id":"case-1"}`), nil)
	f.s3.EXPECT().DownloadFile(gomock.Any(), constant.Empty, "reconciliations", "case-2.json").Return(nil, errors.New("not found"))

	data, err := f.svc.CaseFile(context.Background(), "case-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"case_id":"case-1"}`, string(data))

	_, err = f.svc.CaseFile(context.Background(), "case-2")
	assert.Error(t, err)
}
