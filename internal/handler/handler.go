package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vitormoschetta/agent-engine-proxy/internal/model"
	"github.com/vitormoschetta/agent-engine-proxy/internal/server"
	"github.com/vitormoschetta/agent-engine-proxy/internal/service"
)

// Handler contém as dependências necessárias para os handlers HTTP
type Handler struct {
	server *server.Server
}

// NewHandler cria uma nova instância do Handler
func NewHandler(srv *server.Server) *Handler {
	return &Handler{
		server: srv,
	}
}

// HandleRoot retorna informações sobre o serviço
func (h *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"service": "Agent Engine streaming proxy",
		"engine":  h.server.Endpoint.Resource(),
		"endpoints": map[string]interface{}{
			"session": map[string]interface{}{
				"path":        "/session",
				"method":      "POST",
				"description": "Create a backend session",
				"example": map[string]string{
					"user_id": h.server.Config.DefaultUserID,
				},
			},
			"chat": map[string]interface{}{
				"path":        "/chat/stream",
				"method":      "POST",
				"description": "Stream a chat turn as server-sent events",
				"example": map[string]string{
					"message":    "Hello, how can you help me?",
					"user_id":    h.server.Config.DefaultUserID,
					"session_id": "optional-session-id",
				},
			},
			"health": map[string]interface{}{
				"path":   "/health",
				"method": "GET",
			},
			"metrics": map[string]interface{}{
				"path":   "/metrics",
				"method": "GET",
			},
		},
		"auth": map[string]interface{}{
			"header":   server.APIKeyHeader,
			"required": h.server.Config.GuardEnabled(),
		},
	}

	writeJSON(w, http.StatusOK, response)
}

// HandleHealth retorna o status de saúde do servidor
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleSession cria uma sessão no Agent Engine para o usuário
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	var req model.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// corpo ausente ou inválido equivale a {}
		req = model.SessionRequest{}
	}

	userID := h.userID(req.UserID)
	sessionID, err := h.server.SessionManager.Create(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.SessionResponse{
		UserID:    userID,
		SessionID: sessionID,
	})
}

// HandleChatStream encaminha um turno de chat e repassa o stream SSE do agente
func (h *Handler) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, service.BadRequest("Invalid JSON body"))
		return
	}

	stream, err := h.server.Relay.Open(r.Context(), service.Turn{
		Message:   req.Message,
		UserID:    h.userID(req.UserID),
		SessionID: req.SessionID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer stream.Close()

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	header.Set("Access-Control-Allow-Origin", h.server.Config.AllowedOrigin)
	header.Set("X-Relay-Id", stream.ID)
	header.Set("X-Session-Id", stream.SessionID)
	w.WriteHeader(http.StatusOK)

	// Depois deste ponto o status já foi enviado; falhas apenas encerram o stream
	_, _ = stream.Relay(r.Context(), newSSEWriter(w))
}

func (h *Handler) userID(requested string) string {
	if requested == "" {
		return h.server.Config.DefaultUserID
	}
	return requested
}

// sseWriter escreve cada frame e faz flush imediatamente
type sseWriter struct {
	w  io.Writer
	rc *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

func (s *sseWriter) WriteFrame(frame []byte) error {
	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := service.AsError(err)

	event := log.Warn()
	if e.Status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(e.Err).
		Str("kind", string(e.Kind)).
		Int("status", e.Status).
		Str("path", r.URL.Path).
		Str("detail", e.Detail).
		Msg("Request failed")

	writeJSON(w, e.Status, model.ErrorResponse{Detail: e.Detail})
}
