package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/vitormoschetta/agent-engine-proxy/internal/auth"
	"github.com/vitormoschetta/agent-engine-proxy/internal/config"
	"github.com/vitormoschetta/agent-engine-proxy/internal/engine"
	"github.com/vitormoschetta/agent-engine-proxy/internal/metrics"
	"github.com/vitormoschetta/agent-engine-proxy/internal/service"
)

const shutdownTimeout = 10 * time.Second

// Server representa o servidor HTTP com todas as dependências
type Server struct {
	Config         *config.Config
	Endpoint       *engine.Endpoint
	SessionManager *service.SessionManager
	Relay          *service.Relay
	Router         chi.Router
}

// NewServer cria uma nova instância do servidor
func NewServer(cfg *config.Config, ep *engine.Endpoint, authenticator auth.Authenticator) *Server {
	client := engine.NewClient(ep, authenticator, cfg.SessionTimeout, cfg.StreamConnectTimeout)
	sessions := service.NewSessionManager(client)

	return &Server{
		Config:         cfg,
		Endpoint:       ep,
		SessionManager: sessions,
		Relay:          service.NewRelay(client, sessions),
	}
}

// SetupRouter configura as rotas e middlewares do Chi
func (s *Server) SetupRouter(
	handleRoot http.HandlerFunc,
	handleHealth http.HandlerFunc,
	handleSession http.HandlerFunc,
	handleChatStream http.HandlerFunc,
) {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(newCORS(s.Config.AllowedOrigin).Handler)

	// Rotas operacionais, sem chave de acesso
	r.Get("/", handleRoot)
	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Rotas do proxy
	r.Group(func(r chi.Router) {
		r.Use(AccessGuard(s.Config.APIKey))
		r.With(middleware.Timeout(s.Config.SessionTimeout+10*time.Second)).Post("/session", handleSession)
		r.Post("/chat/stream", handleChatStream)
	})

	s.Router = r
}

// Start inicia o servidor HTTP e bloqueia até o contexto ser cancelado
func (s *Server) Start(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// sem WriteTimeout: os streams de chat são longos
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("address", addr).
			Str("engine", s.Endpoint.Resource()).
			Str("allowed_origin", s.Config.AllowedOrigin).
			Bool("access_guard", s.Config.GuardEnabled()).
			Msg("🚀 Agent Engine proxy listening")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info().Msg("✅ Server stopped gracefully")
	return nil
}

func newCORS(allowedOrigin string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Relay-Id", "X-Session-Id"},
		AllowCredentials: false,
	})
}
