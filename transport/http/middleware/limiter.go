package middleware

import (
	"errors"
	"net/http"
	"roombook/shared"
	"roombook/shared/cache"
	"roombook/shared/constant"
	"roombook/transport/http/response"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	cacheKeyRateLimit = "limiter"

	limitScopeDefault = "default"
	limitScopeBooking = "booking"

	bookingCreatePath = "/v1/bookings"
)

// RateLimit counts requests per client in a fixed window. Booking creation
// may charge a card, so it gets its own bucket when BookingMaxRequests is set.
// A failing cache never blocks traffic.
func (a *appMiddleware) RateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := a.config.App.RateLimiter
			if !limiter.Enable {
				next.ServeHTTP(w, r)

				return
			}

			scope, maxReqs := a.limitFor(r)
			windowSecs := limiter.WindowSeconds
			clientIP := a.getClientIP(r)
			cacheKey := shared.BuildCacheKey(cacheKeyRateLimit, scope, clientIP, a.getUA(r))

			var count int

			err := a.cache.Get(r.Context(), cacheKey, &count)

			switch {
			case errors.Is(err, cache.Nil):
				count = 1
			case err != nil:
				log.Warn().Err(err).Str("scope", scope).Msg("rate limiter cache unavailable, letting request through")
				next.ServeHTTP(w, r)

				return
			default:
				count++
			}

			if count > maxReqs {
				log.Warn().Str("scope", scope).Str("client_ip", clientIP).Int("count", count).Msg("rate limit exceeded")
				response.WithRequestLimitExceeded(w)

				return
			}

			if err = a.cache.Save(r.Context(), cacheKey, count, windowSecs); err != nil {
				log.Warn().Err(err).Str("scope", scope).Msg("failed to save rate limit counter")
				next.ServeHTTP(w, r)

				return
			}

			w.Header().Set(constant.RequestHeaderRateLimit, strconv.Itoa(maxReqs))
			w.Header().Set(constant.RequestHeaderRateLimitRemaining, strconv.Itoa(max(0, maxReqs-count)))
			w.Header().Set(constant.RequestHeaderRateLimitWindow, strconv.Itoa(windowSecs))

			next.ServeHTTP(w, r)
		})
	}
}

func (a *appMiddleware) limitFor(r *http.Request) (string, int) {
	limiter := a.config.App.RateLimiter

	isBookingCreate := r.Method == http.MethodPost && strings.TrimSuffix(r.URL.Path, "/") == bookingCreatePath
	if isBookingCreate && limiter.BookingMaxRequests > 0 {
		return limitScopeBooking, limiter.BookingMaxRequests
	}

	return limitScopeDefault, limiter.MaxRequests
}

func (a *appMiddleware) getUA(r *http.Request) string {
	ua := r.Header.Get(constant.RequestHeaderUserAgent)
	if ua == "" {
		ua = "unknown"
	}

	return ua
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP.
func (a *appMiddleware) getClientIP(r *http.Request) string {
	if xff := r.Header.Get(constant.RequestHeaderForwardedFor); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found {
			return strings.TrimSpace(first)
		}

		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get(constant.RequestHeaderRealIP); xri != "" {
		return strings.TrimSpace(xri)
	}

	return r.RemoteAddr
}
