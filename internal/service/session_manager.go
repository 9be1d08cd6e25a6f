package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vitormoschetta/agent-engine-proxy/internal/engine"
	"github.com/vitormoschetta/agent-engine-proxy/internal/metrics"
)

// Backend é o subconjunto do cliente do Agent Engine usado pelos serviços.
type Backend interface {
	Query(ctx context.Context, method string, input any) (*engine.Reply, error)
	StreamQuery(ctx context.Context, method string, input any) (*http.Response, error)
}

// SessionManager cria sessões no Agent Engine. Nenhum estado é guardado
// localmente: o id devolvido pertence ao backend e ao chamador.
type SessionManager struct {
	backend Backend
}

func NewSessionManager(backend Backend) *SessionManager {
	return &SessionManager{
		backend: backend,
	}
}

// sessionIDExtractor devolve o id encontrado em um formato de resposta, ou "".
type sessionIDExtractor func(reply map[string]any) string

// A ordem define a precedência quando mais de um formato está presente.
var sessionIDExtractors = []sessionIDExtractor{
	outputID,
	topLevelID,
	resourceNameID,
}

// Create executa async_create_session para o usuário e devolve o id da sessão.
func (sm *SessionManager) Create(ctx context.Context, userID string) (string, error) {
	reply, err := sm.backend.Query(ctx, engine.MethodCreateSession, map[string]string{
		"user_id": userID,
	})
	if err != nil {
		metrics.SessionsCreatedTotal.WithLabelValues("transport_error").Inc()
		return "", UpstreamFailure(err)
	}

	if reply.StatusCode >= http.StatusBadRequest {
		metrics.SessionsCreatedTotal.WithLabelValues(strconv.Itoa(reply.StatusCode)).Inc()
		return "", UpstreamStatus(reply.StatusCode, reply.Body)
	}

	sessionID, err := extractSessionID(reply.Body)
	if err != nil {
		metrics.SessionsCreatedTotal.WithLabelValues("invalid_reply").Inc()
		return "", err
	}

	metrics.SessionsCreatedTotal.WithLabelValues(strconv.Itoa(reply.StatusCode)).Inc()
	log.Info().Str("user_id", userID).Str("session_id", sessionID).Msg("Session created")
	return sessionID, nil
}

func extractSessionID(body []byte) (string, error) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", UpstreamFormat(body, err)
	}

	var reply map[string]any
	switch v := decoded.(type) {
	case nil:
		reply = map[string]any{}
	case map[string]any:
		reply = v
	default:
		return "", UpstreamFormat(body, nil)
	}

	for _, extract := range sessionIDExtractors {
		if id := extract(reply); id != "" {
			return id, nil
		}
	}
	return "", UpstreamContract(body)
}

// outputID lê {"output": {"id": "..."}}.
func outputID(reply map[string]any) string {
	output, ok := reply["output"].(map[string]any)
	if !ok {
		return ""
	}
	return stringField(output, "id")
}

// topLevelID lê {"id": "..."}.
func topLevelID(reply map[string]any) string {
	return stringField(reply, "id")
}

// resourceNameID lê {"name": ".../sessions/{id}"}.
func resourceNameID(reply map[string]any) string {
	name := stringField(reply, "name")
	idx := strings.LastIndex(name, "/sessions/")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(name[idx+len("/sessions/"):])
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
