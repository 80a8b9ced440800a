package dto

import (
	"fmt"
	"strings"

	"roombook/internal/domains/booking/model"
	paymentModel "roombook/internal/domains/payment/model"
	"roombook/shared"
	gDto "roombook/shared/dto"
	"roombook/shared/timezone"
)

type CreateBookingRequest struct {
	RoomID        string `json:"room_id"        validate:"required,max=64"`
	StartDate     string `json:"start_date"     validate:"required,date"`
	EndDate       string `json:"end_date"       validate:"required,date"`
	GuestName     string `json:"guest_name"     validate:"required,max=100"`
	Amount        int64  `json:"amount"         validate:"required,gt=0"`
	Currency      string `json:"currency"       validate:"required,currency"`
	PaymentMethod string `json:"payment_method" validate:"required,max=255"`
}

// ToRequest normalizes the payload. Struct validation has already run; the
// only failures left are date ordering and currency case.
func (c *CreateBookingRequest) ToRequest(user string) (model.Request, error) {
	startDate, err := timezone.ParseDate(c.StartDate)
	if err != nil {
		return model.Request{}, fmt.Errorf("invalid start_date: %w", err)
	}

	endDate, err := timezone.ParseDate(c.EndDate)
	if err != nil {
		return model.Request{}, fmt.Errorf("invalid end_date: %w", err)
	}

	currencyCode, err := paymentModel.ParseCurrency(c.Currency)
	if err != nil {
		return model.Request{}, err
	}

	return model.Request{
		RoomID:        strings.TrimSpace(c.RoomID),
		StartDate:     startDate,
		EndDate:       endDate,
		GuestName:     strings.TrimSpace(c.GuestName),
		Amount:        c.Amount,
		Currency:      currencyCode,
		PaymentMethod: c.PaymentMethod,
		RequestedBy:   user,
	}, nil
}

type BookingResponse struct {
	ID               string `json:"id"`
	RoomID           string `json:"room_id"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	GuestName        string `json:"guest_name"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	PaymentStatus    string `json:"payment_status"`
	PaymentReference string `json:"payment_reference,omitempty"`
	gDto.Metadata
}

func (r *BookingResponse) FromModel(model model.Booking) {
	r.ID = model.ID
	r.RoomID = model.RoomID
	r.StartDate = timezone.FormatDate(model.StartDate)
	r.EndDate = timezone.FormatDate(model.EndDate)
	r.GuestName = model.GuestName
	r.Amount = model.Amount
	r.Currency = model.Currency
	r.PaymentStatus = model.PaymentStatus
	r.PaymentReference = model.Reference()
	r.Metadata.FromModel(model.Metadata)
}

// CreateBookingResponse adds the flow outcome to the booking.
type CreateBookingResponse struct {
	BookingResponse
	State    string `json:"state"`
	Replayed bool   `json:"replayed"`
}

func (r *CreateBookingResponse) FromConfirmation(confirmation model.Confirmation) {
	r.BookingResponse.FromModel(confirmation.Booking)
	r.State = string(model.StateConfirmed)
	r.Replayed = confirmation.Replayed
}

type GetBookingsResponse struct {
	Bookings  []BookingResponse `json:"bookings"`
	TotalPage int               `json:"total_page"`
	TotalData int               `json:"total_data"`
}

func (r *GetBookingsResponse) FromModels(models []model.Booking, totalData, limit int) {
	r.TotalData = totalData
	r.TotalPage = shared.CalculateTotalPage(totalData, limit)

	r.Bookings = make([]BookingResponse, len(models))
	for i, mod := range models {
		r.Bookings[i].FromModel(mod)
	}
}

// ListFilter holds the optional query filters of the booking listing.
type ListFilter struct {
	RoomID        string `validate:"omitempty,max=64"`
	PaymentStatus string `validate:"omitempty,oneof=PENDING AUTHORIZED CAPTURED FAILED REVERSED"`
}

func (f ListFilter) ToFilterGroup() gDto.FilterGroup {
	group := gDto.FilterGroup{Operator: gDto.FilterGroupOperatorAnd}

	if f.RoomID != "" {
		group.Filters = append(group.Filters, gDto.Filter{
			Field:    model.FieldRoomID,
			Table:    model.TableName,
			Value:    f.RoomID,
			Operator: gDto.FilterOperatorEq,
		})
	}

	if f.PaymentStatus != "" {
		group.Filters = append(group.Filters, gDto.Filter{
			Field:    model.FieldPaymentStatus,
			Table:    model.TableName,
			Value:    f.PaymentStatus,
			Operator: gDto.FilterOperatorEq,
		})
	}

	return group
}
