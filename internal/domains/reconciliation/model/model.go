package model

import (
	"net/http"
	"time"

	"roombook/shared/constant"
	"roombook/shared/failure"
	"roombook/shared/model"

	"github.com/google/uuid"
)

const (
	TableName  = "payment_reconciliations"
	EntityName = "reconciliation"

	FieldID               = "id"
	FieldBookingID        = "booking_id"
	FieldPaymentReference = "payment_reference"
	FieldReason           = "reason"
	FieldStatus           = "status"
	FieldAttempts         = "attempts"
	FieldLastError        = "last_error"
	FieldResolutionNote   = "resolution_note"
)

// Why a captured payment had to be reversed.
const (
	ReasonSlotConflict       = "SLOT_CONFLICT"
	ReasonPersistenceFailure = "PERSISTENCE_FAILURE"
	// ReasonDuplicateCharge is a second capture for a request that is
	// already booked under the same idempotency key.
	ReasonDuplicateCharge = "DUPLICATE_CHARGE"
	// ReasonUnsettledCharge is a charge the processor left neither captured
	// nor failed. It is released so it cannot settle without a booking.
	ReasonUnsettledCharge = "UNSETTLED_CHARGE"
)

// Case statuses. COMPENSATING is held while a reversal is in flight so two
// workers never reverse the same case at once.
const (
	StatusCompensating     = "COMPENSATING"
	StatusCompensated      = "COMPENSATED"
	StatusPendingManual    = "PENDING_MANUAL"
	StatusResolvedManually = "RESOLVED_MANUALLY"
)

// Event types published on the reconciliation topic.
const (
	EventCompensated      = "booking.compensated"
	EventRequiresOperator = "reconciliation.required"
)

var (
	// ErrCaseNotPending is returned when a retry or resolve targets a case
	// that is not waiting for an operator.
	ErrCaseNotPending = &failure.Failure{Code: http.StatusConflict, Message: "reconciliation case is not pending"}
	// ErrCaseNotFound is returned for unknown case ids.
	ErrCaseNotFound = &failure.Failure{Code: http.StatusNotFound, Message: "reconciliation case not found"}
)

var caseNamespace = uuid.MustParse("0b8d7c61-3f2e-5a49-8e1d-7c6b5a4f3e2d")

// Reconciliation is one captured payment that had to be reversed.
type Reconciliation struct {
	ID               string  `db:"id"`
	BookingID        string  `db:"booking_id"`
	RoomID           string  `db:"room_id"`
	Provider         string  `db:"provider"`
	PaymentReference string  `db:"payment_reference"`
	Amount           int64   `db:"amount"`
	Currency         string  `db:"currency"`
	IdempotencyKey   string  `db:"idempotency_key"`
	Reason           string  `db:"reason"`
	Status           string  `db:"status"`
	Attempts         int     `db:"attempts"`
	LastError        *string `db:"last_error"`
	ResolutionNote   *string `db:"resolution_note"`
	model.Metadata
}

func (r Reconciliation) LastErrorMessage() string {
	if r.LastError == nil {
		return constant.Empty
	}

	return *r.LastError
}

// StatusUpdate holds the columns a status transition may change. Zero
// fields are left as stored.
type StatusUpdate struct {
	Status         string  `db:"status"`
	Attempts       int     `db:"attempts"`
	LastError      *string `db:"last_error"`
	ResolutionNote string  `db:"resolution_note"`
}

// CompensationRequest describes a captured charge that must be reversed.
type CompensationRequest struct {
	BookingID        string
	RoomID           string
	Provider         string
	PaymentReference string
	Amount           int64
	Currency         string
	IdempotencyKey   string
	Reason           string
	Cause            string
	RequestedBy      string
}

// CaseID is stable per payment so a repeated compensation reuses the case.
func CaseID(provider, paymentReference string) string {
	return uuid.NewSHA1(caseNamespace, []byte(provider+":"+paymentReference)).String()
}

func (r CompensationRequest) NewCase(now time.Time) Reconciliation {
	return Reconciliation{
		ID:               CaseID(r.Provider, r.PaymentReference),
		BookingID:        r.BookingID,
		RoomID:           r.RoomID,
		Provider:         r.Provider,
		PaymentReference: r.PaymentReference,
		Amount:           r.Amount,
		Currency:         r.Currency,
		IdempotencyKey:   r.IdempotencyKey,
		Reason:           r.Reason,
		Status:           StatusCompensating,
		Metadata:         model.NewMetadata(now, r.RequestedBy),
	}
}

// Event is the payload published for every compensation outcome and
// archived as the operator case file.
type Event struct {
	Type             string    `json:"type"`
	CaseID           string    `json:"case_id"`
	BookingID        string    `json:"booking_id"`
	RoomID           string    `json:"room_id"`
	Provider         string    `json:"provider"`
	PaymentReference string    `json:"payment_reference"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	IdempotencyKey   string    `json:"idempotency_key"`
	Reason           string    `json:"reason"`
	Status           string    `json:"status"`
	Attempts         int       `json:"attempts"`
	Cause            string    `json:"cause,omitempty"`
	LastError        string    `json:"last_error,omitempty"`
	TraceID          string    `json:"trace_id,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

func NewEvent(eventType string, rec Reconciliation, cause, traceID string, at time.Time) Event {
	return Event{
		Type:             eventType,
		CaseID:           rec.ID,
		BookingID:        rec.BookingID,
		RoomID:           rec.RoomID,
		Provider:         rec.Provider,
		PaymentReference: rec.PaymentReference,
		Amount:           rec.Amount,
		Currency:         rec.Currency,
		IdempotencyKey:   rec.IdempotencyKey,
		Reason:           rec.Reason,
		Status:           rec.Status,
		Attempts:         rec.Attempts,
		Cause:            cause,
		LastError:        rec.LastErrorMessage(),
		TraceID:          traceID,
		OccurredAt:       at,
	}
}

// SweepResult counts the outcome of one pass over pending cases.
type SweepResult struct {
	Scanned     int `json:"scanned"`
	Compensated int `json:"compensated"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
}
