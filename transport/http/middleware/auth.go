package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"roombook/config"
	"roombook/infras/otel"
	"roombook/permissions"
	"roombook/shared/constant"
	"roombook/shared/failure"
	"roombook/transport/http/response"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const (
	RoleOperator = "operator"

	defaultOperatorName = "operator"
)

// Operator guards the endpoints listed in the permission file. Guest
// endpoints pass through untouched.
type Operator interface {
	Operator(http.Handler) http.Handler
}

type operatorImpl struct {
	otel       otel.Otel
	permission *permissions.PermissionData
	cfg        *config.Config
}

func NewOperatorMiddleware(otel otel.Otel, permissions *permissions.PermissionData, cfg *config.Config) Operator {
	return &operatorImpl{
		otel:       otel,
		permission: permissions,
		cfg:        cfg,
	}
}

func (m *operatorImpl) Operator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		ctx := request.Context()
		_, scope := m.otel.NewScope(ctx, constant.OtelHandlerScopeName, "operator.middleware")

		if m.permission == nil {
			scope.End()
			response.WithError(writer, failure.ForbiddenError)

			return
		}

		if m.permission.Skip {
			scope.End()
			next.ServeHTTP(writer, request)

			return
		}

		method := request.Method
		path := request.URL.Path

		if rctx := chi.RouteContext(ctx); rctx != nil && rctx.Routes != nil {
			if pattern := rctx.Routes.Find(chi.NewRouteContext(), method, request.URL.Path); pattern != constant.Empty {
				path = pattern
			}
		}

		scope.SetAttributes(map[string]any{
			"middleware.type": "operator",
			"http.path":       path,
			"http.method":     method,
		})

		permission := m.permission.FindPermissions(path, method)
		if permission.Skip || len(permission.Permissions) == 0 {
			scope.End()
			next.ServeHTTP(writer, request)

			return
		}

		apiKey := request.Header.Get(constant.RequestHeaderAPIKey)
		if apiKey == constant.Empty {
			err := failure.Unauthorized("Missing API key")
			scope.TraceError(err)
			scope.End()
			response.WithError(writer, err)

			return
		}

		if m.cfg.App.APIKey == constant.Empty ||
			subtle.ConstantTimeCompare([]byte(apiKey), []byte(m.cfg.App.APIKey)) != 1 ||
			!slices.Contains(permission.Permissions, RoleOperator) {
			err := failure.ForbiddenError
			scope.TraceError(err)
			scope.SetAttributes(map[string]any{
				"allowed_roles": permission.Permissions,
				"reason":        "api_key_rejected",
			})
			scope.End()
			response.WithError(writer, err)

			return
		}

		operator := request.Header.Get(constant.RequestHeaderOperator)
		if operator == constant.Empty {
			operator = defaultOperatorName
		}

		log.Info().Str("operator", operator).Str("path", path).Str("method", method).Msg("operator request accepted")

		ctx = context.WithValue(ctx, constant.ContextKeyOperator, operator)

		scope.End()
		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}
