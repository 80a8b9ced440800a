package dto

import (
	"roombook/internal/domains/reconciliation/model"
	"roombook/shared"
	gDto "roombook/shared/dto"
)

type ReconciliationResponse struct {
	ID               string `json:"id"`
	BookingID        string `json:"booking_id"`
	RoomID           string `json:"room_id"`
	Provider         string `json:"provider"`
	PaymentReference string `json:"payment_reference"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	IdempotencyKey   string `json:"idempotency_key"`
	Reason           string `json:"reason"`
	Status           string `json:"status"`
	Attempts         int    `json:"attempts"`
	LastError        string `json:"last_error,omitempty"`
	ResolutionNote   string `json:"resolution_note,omitempty"`
	gDto.Metadata
}

func (r *ReconciliationResponse) FromModel(model model.Reconciliation) {
	r.ID = model.ID
	r.BookingID = model.BookingID
	r.RoomID = model.RoomID
	r.Provider = model.Provider
	r.PaymentReference = model.PaymentReference
	r.Amount = model.Amount
	r.Currency = model.Currency
	r.IdempotencyKey = model.IdempotencyKey
	r.Reason = model.Reason
	r.Status = model.Status
	r.Attempts = model.Attempts
	r.LastError = model.LastErrorMessage()

	if model.ResolutionNote != nil {
		r.ResolutionNote = *model.ResolutionNote
	}

	r.Metadata.FromModel(model.Metadata)
}

type GetReconciliationsResponse struct {
	Reconciliations []ReconciliationResponse `json:"reconciliations"`
	TotalPage       int                      `json:"total_page"`
	TotalData       int                      `json:"total_data"`
}

func (r *GetReconciliationsResponse) FromModels(models []model.Reconciliation, totalData, limit int) {
	r.TotalData = totalData
	r.TotalPage = shared.CalculateTotalPage(totalData, limit)

	r.Reconciliations = make([]ReconciliationResponse, len(models))
	for i, mod := range models {
		r.Reconciliations[i].FromModel(mod)
	}
}

type ResolveRequest struct {
	Note string `json:"note" validate:"required,max=1000"`
}

type ListFilter struct {
	Status    string `validate:"omitempty,oneof=COMPENSATING COMPENSATED PENDING_MANUAL RESOLVED_MANUALLY"`
	BookingID string `validate:"omitempty,max=64"`
}

func (f ListFilter) ToFilterGroup() gDto.FilterGroup {
	group := gDto.FilterGroup{Operator: gDto.FilterGroupOperatorAnd}

	if f.Status != "" {
		group.Filters = append(group.Filters, gDto.Filter{
			Field:    model.FieldStatus,
			Table:    model.TableName,
			Value:    f.Status,
			Operator: gDto.FilterOperatorEq,
		})
	}

	if f.BookingID != "" {
		group.Filters = append(group.Filters, gDto.Filter{
			Field:    model.FieldBookingID,
			Table:    model.TableName,
			Value:    f.BookingID,
			Operator: gDto.FilterOperatorEq,
		})
	}

	return group
}
