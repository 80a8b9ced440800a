package reconciliation

import (
	"net/http"
	"roombook/infras/otel"
	"roombook/internal/domains/reconciliation/model"
	"roombook/internal/domains/reconciliation/model/dto"
	"roombook/internal/domains/reconciliation/service"
	"roombook/shared/constant"
	gDto "roombook/shared/dto"
	"roombook/shared/validator"
	"roombook/transport/http/response"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	service service.Reconciliation
	otel    otel.Otel
}

func New(service service.Reconciliation, otel otel.Otel) Handler {
	return Handler{
		service: service,
		otel:    otel,
	}
}

func (handler *Handler) Router(router chi.Router) {
	router.Route("/reconciliations", func(routerGroup chi.Router) {
		routerGroup.Get("/", handler.GetReconciliations)
		routerGroup.Get("/{id}", handler.GetReconciliationByID)
		routerGroup.Get("/{id}/case-file", handler.GetCaseFile)
		routerGroup.Post("/{id}/retry", handler.RetryReconciliation)
		routerGroup.Post("/{id}/resolve", handler.ResolveReconciliation)
	})
}

// GetReconciliations lists compensation cases.
// @Summary Get reconciliation cases
// @Description List compensation cases, oldest first when sorted by created_at.
// @Tags Reconciliation
// @Accept json
// @Produce json
// @Param pagination query gDto.QueryParams false "Pagination parameters"
// @Param status query string false "Filter by status"
// @Param booking_id query string false "Filter by booking"
// @Success 200 {object} response.Data[dto.GetReconciliationsResponse] "List of cases"
// @Failure 400 {object} response.Error
// @Failure 401 {object} response.Error
// @Failure 403 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/reconciliations [get]
// @Security ApiKeyAuth
func (handler *Handler) GetReconciliations(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetReconciliations")
	defer scope.End()

	queryParams := gDto.QueryParams{}
	queryParams.FromRequest(r, true)

	filter := dto.ListFilter{
		Status:    r.URL.Query().Get(model.FieldStatus),
		BookingID: r.URL.Query().Get(model.FieldBookingID),
	}

	if err := validator.ValidateStruct(&filter); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to validate filter")

		response.WithError(w, err)

		return
	}

	cases, err := handler.service.GetAll(ctx, queryParams, filter.ToFilterGroup())
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to get reconciliation cases")

		response.WithError(w, err)

		return
	}

	response.WithJSON(w, http.StatusOK, cases)
}

// GetReconciliationByID retrieves one compensation case.
// @Summary Get a reconciliation case
// @Tags Reconciliation
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Data[dto.ReconciliationResponse] "Case details"
// @Failure 404 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/reconciliations/{id} [get]
// @Security ApiKeyAuth
func (handler *Handler) GetReconciliationByID(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetReconciliationByID")
	defer scope.End()

	id, err := caseID(r)
	if err != nil {
		scope.TraceError(err)
		response.WithError(w, err)

		return
	}

	rec, err := handler.service.Get(ctx, id)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Str("caseID", id).Msg("failed to get reconciliation case")

		response.WithError(w, err)

		return
	}

	response.WithJSON(w, http.StatusOK, rec)
}

// GetCaseFile returns the archived case file written at escalation.
// @Summary Download a reconciliation case file
// @Tags Reconciliation
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} object "Archived case"
// @Failure 404 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/reconciliations/{id}/case-file [get]
// @Security ApiKeyAuth
func (handler *Handler) GetCaseFile(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetCaseFile")
	defer scope.End()

	id, err := caseID(r)
	if err != nil {
		scope.TraceError(err)
		response.WithError(w, err)

		return
	}

	data, err := handler.service.CaseFile(ctx, id)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Str("caseID", id).Msg("failed to get reconciliation case file")

		response.WithError(w, err)

		return
	}

	w.Header().Set(constant.RequestHeaderContentType, constant.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data); err != nil {
		log.Error().Err(err).Str("caseID", id).Msg("failed to write reconciliation case file")
	}
}

// RetryReconciliation attempts the reversal of a pending case again.
// @Summary Retry a reconciliation case
// @Description Claim a PENDING_MANUAL case and attempt the reversal again.
// @Tags Reconciliation
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Data[dto.ReconciliationResponse] "Case after the attempt"
// @Failure 404 {object} response.Error
// @Failure 409 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/reconciliations/{id}/retry [post]
// @Security ApiKeyAuth
func (handler *Handler) RetryReconciliation(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".RetryReconciliation")
	defer scope.End()

	id, err := caseID(r)
	if err != nil {
		scope.TraceError(err)
		response.WithError(w, err)

		return
	}

	rec, err := handler.service.Retry(ctx, id)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Str("caseID", id).Msg("failed to retry reconciliation case")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Reconciliation case retried, status " + rec.Status)

	response.WithJSON(w, http.StatusOK, rec)
}

// ResolveReconciliation closes a pending case that was settled by hand.
// @Summary Resolve a reconciliation case
// @Tags Reconciliation
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param request body dto.ResolveRequest true "Resolution"
// @Success 200 {object} response.Data[dto.ReconciliationResponse] "Resolved case"
// @Failure 400 {object} response.Error
// @Failure 404 {object} response.Error
// @Failure 409 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/reconciliations/{id}/resolve [post]
// @Security ApiKeyAuth
func (handler *Handler) ResolveReconciliation(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".ResolveReconciliation")
	defer scope.End()

	id, err := caseID(r)
	if err != nil {
		scope.TraceError(err)
		response.WithError(w, err)

		return
	}

	var req dto.ResolveRequest

	if err := validator.Validate(r.Body, &req); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to validate request")

		response.WithError(w, err)

		return
	}

	rec, err := handler.service.Resolve(ctx, id, req)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Str("caseID", id).Msg("failed to resolve reconciliation case")

		response.WithError(w, err)

		return
	}

	operator, _ := ctx.Value(constant.ContextKeyOperator).(string)
	scope.AddEvent("Reconciliation case resolved by operator " + operator)

	response.WithJSON(w, http.StatusOK, rec)
}

func caseID(r *http.Request) (string, error) {
	id := chi.URLParam(r, constant.RequestParamID)

	if err := validator.ValidateVar(id, "required,max=64"); err != nil {
		return constant.Empty, err //nolint:wrapcheck
	}

	return id, nil
}
