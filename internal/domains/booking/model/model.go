package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"roombook/shared/constant"
	"roombook/shared/model"

	"github.com/google/uuid"
)

const (
	TableName  = "bookings"
	EntityName = "booking"

	FieldID               = "id"
	FieldRoomID           = "room_id"
	FieldStartDate        = "start_date"
	FieldEndDate          = "end_date"
	FieldGuestName        = "guest_name"
	FieldAmount           = "amount"
	FieldCurrency         = "currency"
	FieldPaymentStatus    = "payment_status"
	FieldPaymentReference = "payment_reference"
	FieldIdempotencyKey   = "idempotency_key"
)

// Payment statuses of a booking.
const (
	PaymentStatusPending    = "PENDING"
	PaymentStatusAuthorized = "AUTHORIZED"
	PaymentStatusCaptured   = "CAPTURED"
	PaymentStatusFailed     = "FAILED"
	PaymentStatusReversed   = "REVERSED"
)

// State is a step of the booking flow.
type State string

const (
	StateValidating  State = "VALIDATING"
	StateCharging    State = "CHARGING"
	StatePersisting  State = "PERSISTING"
	StateConfirmed   State = "CONFIRMED"
	StateRejected    State = "REJECTED"
	StateReconciling State = "RECONCILING"
)

// IdempotencyKeyPrefix marks keys derived by DeriveIdempotencyKey.
const IdempotencyKeyPrefix = "bk_"

var bookingNamespace = uuid.MustParse("6f1c9b2e-4a1d-5c8e-9b7a-2d3e4f5a6b7c")

// Booking rows only ever exist with a captured payment; the other statuses
// describe requests that never reached the store.
type Booking struct {
	ID               string    `db:"id"`
	RoomID           string    `db:"room_id"`
	StartDate        time.Time `db:"start_date"`
	EndDate          time.Time `db:"end_date"`
	GuestName        string    `db:"guest_name"`
	Amount           int64     `db:"amount"`
	Currency         string    `db:"currency"`
	PaymentStatus    string    `db:"payment_status"`
	PaymentReference *string   `db:"payment_reference"`
	IdempotencyKey   string    `db:"idempotency_key"`
	model.Metadata
}

// Reference returns the processor reference or an empty string.
func (b Booking) Reference() string {
	if b.PaymentReference == nil {
		return constant.Empty
	}

	return *b.PaymentReference
}

// Request is a validated booking request.
type Request struct {
	RoomID        string
	StartDate     time.Time
	EndDate       time.Time
	GuestName     string
	Amount        int64
	Currency      string
	PaymentMethod string
	RequestedBy   string
}

// IdempotencyKey is stable for identical requests. The payment method and
// currency are not part of it, so resubmitting with a different card still
// maps to the first charge.
func (r Request) IdempotencyKey() string {
	return DeriveIdempotencyKey(r.RoomID, r.StartDate, r.EndDate, r.GuestName, r.Amount)
}

// NewBooking builds the PENDING booking for r. The id is derived from the
// idempotency key so every retry and replay inserts the same row.
func (r Request) NewBooking(now time.Time) Booking {
	key := r.IdempotencyKey()

	return Booking{
		ID:             BookingID(key),
		RoomID:         r.RoomID,
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		GuestName:      r.GuestName,
		Amount:         r.Amount,
		Currency:       r.Currency,
		PaymentStatus:  PaymentStatusPending,
		IdempotencyKey: key,
		Metadata:       model.NewMetadata(now, r.RequestedBy),
	}
}

// DeriveIdempotencyKey hashes the request content. Fields are separated by a
// unit separator so adjacent values cannot run together.
func DeriveIdempotencyKey(roomID string, start, end time.Time, guestName string, amount int64) string {
	raw := strings.Join([]string{
		strings.TrimSpace(roomID),
		start.UTC().Format(constant.DateOnlyFormat),
		end.UTC().Format(constant.DateOnlyFormat),
		strings.TrimSpace(guestName),
		strconv.FormatInt(amount, 10),
	}, "\x1f")

	sum := sha256.Sum256([]byte(raw))

	return IdempotencyKeyPrefix + hex.EncodeToString(sum[:])
}

func BookingID(idempotencyKey string) string {
	return uuid.NewSHA1(bookingNamespace, []byte(idempotencyKey)).String()
}

// PaymentAttempt is the audit view of one logical charge.
type PaymentAttempt struct {
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	PaymentMethod   string `json:"payment_method"`
	IdempotencyKey  string `json:"idempotency_key"`
	ProcessorStatus string `json:"processor_status"`
	Attempts        int    `json:"attempts"`
}

// Confirmation is what a successful flow returns.
type Confirmation struct {
	Booking  Booking
	Attempt  PaymentAttempt
	Replayed bool
}

// EventConfirmed is published once a booking is durably recorded.
const EventConfirmed = "booking.confirmed"

// Event is the payload published on the booking topic.
type Event struct {
	Type             string         `json:"type"`
	BookingID        string         `json:"booking_id"`
	RoomID           string         `json:"room_id"`
	StartDate        string         `json:"start_date"`
	EndDate          string         `json:"end_date"`
	Amount           int64          `json:"amount"`
	Currency         string         `json:"currency"`
	PaymentStatus    string         `json:"payment_status"`
	PaymentReference string         `json:"payment_reference"`
	IdempotencyKey   string         `json:"idempotency_key"`
	Attempt          PaymentAttempt `json:"payment_attempt"`
	TraceID          string         `json:"trace_id,omitempty"`
	OccurredAt       time.Time      `json:"occurred_at"`
}

func NewEvent(eventType string, confirmation Confirmation, traceID string, at time.Time) Event {
	booking := confirmation.Booking

	return Event{
		Type:             eventType,
		BookingID:        booking.ID,
		RoomID:           booking.RoomID,
		StartDate:        booking.StartDate.UTC().Format(constant.DateOnlyFormat),
		EndDate:          booking.EndDate.UTC().Format(constant.DateOnlyFormat),
		Amount:           booking.Amount,
		Currency:         booking.Currency,
		PaymentStatus:    booking.PaymentStatus,
		PaymentReference: booking.Reference(),
		IdempotencyKey:   booking.IdempotencyKey,
		Attempt:          confirmation.Attempt,
		TraceID:          traceID,
		OccurredAt:       at,
	}
}
