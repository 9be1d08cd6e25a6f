package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/vitormoschetta/agent-engine-proxy/internal/metrics"
	"github.com/vitormoschetta/agent-engine-proxy/internal/model"
	"github.com/vitormoschetta/agent-engine-proxy/internal/service"
)

// APIKeyHeader é o header que carrega a chave compartilhada
const APIKeyHeader = "x-api-key"

// AccessGuard rejeita requisições sem a chave configurada. Com chave vazia
// o acesso é aberto.
func AccessGuard(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		expected := []byte(apiKey)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given := []byte(r.Header.Get(APIKeyHeader))
			if subtle.ConstantTimeCompare(given, expected) != 1 {
				e := service.Unauthorized()
				log.Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Msg("Rejected request without a valid API key")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(e.Status)
				json.NewEncoder(w).Encode(model.ErrorResponse{Detail: e.Detail})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger registra cada requisição ao final, com status e duração
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()

		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
