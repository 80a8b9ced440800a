package validator_test

import (
	"roombook/shared/validator"
	"strings"
	"testing"
)

type chargeFixture struct {
	GuestName string `json:"guest_name" validate:"required,max=10"`
	Amount    int64  `json:"amount"     validate:"gt=0"`
	Currency  string `json:"currency"   validate:"required,currency"`
	StartDate string `json:"start_date" validate:"required,date"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name        string
		data        chargeFixture
		expectError bool
		contains    string
	}{
		{
			name:        "valid struct",
			data:        chargeFixture{GuestName: "Ana", Amount: 15000, Currency: "USD", StartDate: "2024-06-01"},
			expectError: false,
		},
		{
			name:        "lower case currency is accepted",
			data:        chargeFixture{GuestName: "Ana", Amount: 15000, Currency: "usd", StartDate: "2024-06-01"},
			expectError: false,
		},
		{
			name:        "missing guest",
			data:        chargeFixture{Amount: 15000, Currency: "USD", StartDate: "2024-06-01"},
			expectError: true,
			contains:    "GuestName is required",
		},
		{
			name:        "zero amount",
			data:        chargeFixture{GuestName: "Ana", Currency: "USD", StartDate: "2024-06-01"},
			expectError: true,
			contains:    "Amount must be greater than 0",
		},
		{
			name:        "unknown currency",
			data:        chargeFixture{GuestName: "Ana", Amount: 1, Currency: "ZZQ", StartDate: "2024-06-01"},
			expectError: true,
			contains:    "ISO 4217",
		},
		{
			name:        "bad date",
			data:        chargeFixture{GuestName: "Ana", Amount: 1, Currency: "EUR", StartDate: "06/01/2024"},
			expectError: true,
			contains:    "YYYY-MM-DD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateStruct(&tt.data)

			if tt.expectError && err == nil {
				t.Fatal("expected validation error, got nil")
			}

			if !tt.expectError && err != nil {
				t.Fatalf("expected no validation error, got: %v", err)
			}

			if tt.contains != "" && !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("expected error to contain %q, got %q", tt.contains, err.Error())
			}
		})
	}
}

func TestValidateVar(t *testing.T) {
	tests := []struct {
		name        string
		field       any
		tag         string
		expectError bool
	}{
		{name: "valid currency", field: "THB", tag: "currency", expectError: false},
		{name: "invalid currency", field: "DOLLARS", tag: "currency", expectError: true},
		{name: "valid date", field: "2024-06-03", tag: "date", expectError: false},
		{name: "impossible date", field: "2024-02-30", tag: "date", expectError: true},
		{name: "valid oneof", field: "CAPTURED", tag: "oneof=CAPTURED REVERSED", expectError: false},
		{name: "invalid oneof", field: "PAID", tag: "oneof=CAPTURED REVERSED", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateVar(tt.field, tt.tag)

			if tt.expectError && err == nil {
				t.Error("expected validation error, got nil")
			}

			if !tt.expectError && err != nil {
				t.Errorf("expected no validation error, got: %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		jsonBody    string
		expectError bool
	}{
		{
			name:        "valid JSON",
			jsonBody:    `{"guest_name":"Ana","amount":15000,"currency":"USD","start_date":"2024-06-01"}`,
			expectError: false,
		},
		{
			name:        "invalid field",
			jsonBody:    `{"guest_name":"Ana","amount":-5,"currency":"USD","start_date":"2024-06-01"}`,
			expectError: true,
		},
		{
			name:        "malformed JSON",
			jsonBody:    `{"guest_name":}`,
			expectError: true,
		},
		{
			name:        "empty JSON",
			jsonBody:    `{}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data chargeFixture
			err := validator.Validate(strings.NewReader(tt.jsonBody), &data)

			if tt.expectError && err == nil {
				t.Error("expected validation error, got nil")
			}

			if !tt.expectError && err != nil {
				t.Errorf("expected no validation error, got: %v", err)
			}
		})
	}
}
