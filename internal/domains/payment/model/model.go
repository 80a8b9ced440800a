package model

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/currency"
)

var (
	// ErrInvalidChargeRequest is returned before any processor call when the
	// amount or currency cannot be charged.
	ErrInvalidChargeRequest = errors.New("invalid charge request")
	// ErrInvalidReverseRequest is returned when a reversal has no reference.
	ErrInvalidReverseRequest = errors.New("invalid reverse request")
)

// Processor statuses as recorded in the payment audit trail.
const (
	ProcessorStatusCaptured = "captured"
	ProcessorStatusDeclined = "declined"
	ProcessorStatusError    = "error"
)

// ChargeRequest is one logical charge. Amount is in minor units.
type ChargeRequest struct {
	Amount         int64
	Currency       string
	PaymentMethod  string
	IdempotencyKey string
	Description    string
	Metadata       map[string]string
}

// Validate rejects requests the processor must never see.
func (r ChargeRequest) Validate() error {
	if r.Amount <= 0 {
		return fmt.Errorf("%w: amount must be a positive integer in minor units, got %d", ErrInvalidChargeRequest, r.Amount)
	}

	if _, err := ParseCurrency(r.Currency); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChargeRequest, err)
	}

	if r.IdempotencyKey == "" {
		return fmt.Errorf("%w: idempotency key is required", ErrInvalidChargeRequest)
	}

	return nil
}

// ParseCurrency accepts an ISO 4217 code in any case and returns it upper cased.
func ParseCurrency(code string) (string, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil || unit == currency.XXX {
		return "", fmt.Errorf("unknown currency %q", code)
	}

	return unit.String(), nil
}

// ChargeResult is the outcome of a charge: Captured, Declined or
// ProcessorError. The set is closed.
type ChargeResult interface {
	ProcessorStatus() string
	chargeResult()
}

// Captured means the money moved; Reference identifies it at the processor.
type Captured struct {
	Reference string
}

func (Captured) ProcessorStatus() string { return ProcessorStatusCaptured }
func (Captured) chargeResult()           {}

// Declined means the guest's instrument was refused. Never retried.
type Declined struct {
	Reason string
	Code   string
}

func (Declined) ProcessorStatus() string { return ProcessorStatusDeclined }
func (Declined) chargeResult()           {}

// ProcessorError is a fault on the processor side or on the way to it.
// Transient errors may be retried under the same idempotency key. Message is
// for logs only and never shown to guests.
//
// Reference is set when the processor created a charge that neither captured
// nor failed (processing, awaiting capture). It may still settle, so it has to
// be reversed like a capture.
type ProcessorError struct {
	Transient bool
	Code      string
	Message   string
	Reference string
}

func (ProcessorError) ProcessorStatus() string { return ProcessorStatusError }
func (ProcessorError) chargeResult()           {}

// Unsettled reports whether the processor holds a charge for this request.
func (e ProcessorError) Unsettled() bool {
	return e.Reference != ""
}

func (e ProcessorError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}

	if e.Code == "" {
		return fmt.Sprintf("payment processor error (%s): %s", kind, e.Message)
	}

	return fmt.Sprintf("payment processor error (%s, %s): %s", kind, e.Code, e.Message)
}

// ReverseRequest voids or refunds a captured charge in full.
type ReverseRequest struct {
	Reference      string
	Amount         int64
	Currency       string
	IdempotencyKey string
}

func (r ReverseRequest) Validate() error {
	if r.Reference == "" {
		return fmt.Errorf("%w: payment reference is required", ErrInvalidReverseRequest)
	}

	return nil
}

// ReverseError is a failed reversal. Transient failures may be retried.
type ReverseError struct {
	Transient bool
	Code      string
	Message   string
}

func (e *ReverseError) Error() string {
	if e.Code == "" {
		return "payment reversal failed: " + e.Message
	}

	return fmt.Sprintf("payment reversal failed (%s): %s", e.Code, e.Message)
}
