package handler

import (
	"net/http"
	"roombook/config"
	"roombook/di"
	"roombook/shared/logger"
	"roombook/transport/http/response"
)

func Handler(w http.ResponseWriter, r *http.Request) {
	r.RequestURI = r.URL.String()

	cfg := config.Get()

	logger.InitLoggerForEnv(cfg)

	logger.SetLogLevel(cfg)

	handler, err := di.InitializeService()
	if err != nil {
		logger.ErrorWithStack(err)
		response.WithUnhealthy(w)

		return
	}

	handler.Adaptor()(w, r)
}
