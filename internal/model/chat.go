package model

// SessionRequest representa a requisição para o endpoint de sessão
type SessionRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// SessionResponse representa a resposta do endpoint de sessão
type SessionResponse struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// ChatRequest representa a requisição para o endpoint de chat em streaming
type ChatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// ErrorResponse representa o corpo de qualquer resposta de erro
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// SessionEvent é o evento sintético enviado antes do stream do agente
type SessionEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}
