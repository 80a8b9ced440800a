package model

import (
	"errors"
	"net/http"
)

// ErrorKind is the machine readable reason of a booking failure.
type ErrorKind string

const (
	ErrorKindValidation       ErrorKind = "VALIDATION_ERROR"
	ErrorKindRoomNotFound     ErrorKind = "ROOM_NOT_FOUND"
	ErrorKindPaymentDeclined  ErrorKind = "PAYMENT_DECLINED"
	ErrorKindProcessor        ErrorKind = "PAYMENT_PROCESSOR_ERROR"
	ErrorKindSlotConflict     ErrorKind = "SLOT_NO_LONGER_AVAILABLE"
	ErrorKindNotRecorded      ErrorKind = "BOOKING_NOT_RECORDED"
	ErrorKindPaymentReversed  ErrorKind = "PAYMENT_ALREADY_REVERSED"
	ErrorKindReconciliation   ErrorKind = "RECONCILIATION_FAILURE"
	ErrorKindBookingNotFound  ErrorKind = "BOOKING_NOT_FOUND"
	ErrorKindStoreUnavailable ErrorKind = "SERVICE_UNAVAILABLE"
)

// Error is returned by the booking flow. Message is safe to show to guests;
// the cause stays in logs.
type Error struct {
	Kind      ErrorKind
	Message   string
	retryable bool
	status    int
	cause     error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Message
	}

	return e.Message + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) StatusCode() int {
	return e.status
}

func (e *Error) Reason() string {
	return string(e.Kind)
}

func (e *Error) Retryable() bool {
	return e.retryable
}

// PublicMessage omits the cause.
func (e *Error) PublicMessage() string {
	return e.Message
}

func ValidationError(message string) *Error {
	return &Error{Kind: ErrorKindValidation, Message: message, status: http.StatusBadRequest}
}

func RoomNotFound(roomID string) *Error {
	return &Error{Kind: ErrorKindRoomNotFound, Message: "room " + roomID + " does not exist", status: http.StatusNotFound}
}

func BookingNotFound(id string) *Error {
	return &Error{Kind: ErrorKindBookingNotFound, Message: "booking " + id + " does not exist", status: http.StatusNotFound}
}

func PaymentDeclined(reason string) *Error {
	if reason == "" {
		reason = "payment was declined"
	}

	return &Error{Kind: ErrorKindPaymentDeclined, Message: reason, status: http.StatusPaymentRequired}
}

// ProcessorUnavailable means no money moved and the same request may be sent again.
func ProcessorUnavailable(cause error) *Error {
	return &Error{
		Kind:      ErrorKindProcessor,
		Message:   "payment processor is temporarily unavailable, please retry",
		retryable: true,
		status:    http.StatusServiceUnavailable,
		cause:     cause,
	}
}

// ProcessorFailed means the processor refused the request for a reason other
// than the guest's instrument.
func ProcessorFailed(cause error) *Error {
	return &Error{
		Kind:    ErrorKindProcessor,
		Message: "payment could not be processed",
		status:  http.StatusBadGateway,
		cause:   cause,
	}
}

// StoreUnavailable is returned before any charge when the store cannot be read.
func StoreUnavailable(cause error) *Error {
	return &Error{
		Kind:      ErrorKindStoreUnavailable,
		Message:   "booking service is temporarily unavailable, please retry",
		retryable: true,
		status:    http.StatusServiceUnavailable,
		cause:     cause,
	}
}

// SlotConflict is returned after the charge was reversed.
func SlotConflict() *Error {
	return &Error{
		Kind:    ErrorKindSlotConflict,
		Message: "the room is no longer available for these dates, the payment was reversed",
		status:  http.StatusConflict,
	}
}

// NotRecorded is returned after the charge was reversed because the store kept
// failing. Sending the same request again replays the reversed charge, so it
// is not retryable.
func NotRecorded(cause error) *Error {
	return &Error{
		Kind:    ErrorKindNotRecorded,
		Message: "the booking could not be recorded and the payment was reversed",
		status:  http.StatusInternalServerError,
		cause:   cause,
	}
}

// PaymentReversed is returned when the processor replays a charge for this
// request that was already given back.
func PaymentReversed(caseID string) *Error {
	return &Error{
		Kind: ErrorKindPaymentReversed,
		Message: "the payment for this booking request was already reversed (case " + caseID + "), " +
			"no booking was made",
		status: http.StatusConflict,
	}
}

// PaymentNotSettled is returned after a charge that did not complete was
// released.
func PaymentNotSettled(cause error) *Error {
	return &Error{
		Kind:    ErrorKindProcessor,
		Message: "the payment did not complete and was released",
		status:  http.StatusBadGateway,
		cause:   cause,
	}
}

// ReconciliationFailure is returned when the charge could not be reversed.
// CaseID points operators at the reconciliation record.
func ReconciliationFailure(caseID string, cause error) *Error {
	message := "the booking could not be completed and the payment is being reviewed"
	if caseID != "" {
		message += " (case " + caseID + ")"
	}

	return &Error{
		Kind:    ErrorKindReconciliation,
		Message: message,
		status:  http.StatusInternalServerError,
		cause:   cause,
	}
}

// KindOf returns the kind of a booking error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var bookingErr *Error
	if errors.As(err, &bookingErr) {
		return bookingErr.Kind, true
	}

	return "", false
}
