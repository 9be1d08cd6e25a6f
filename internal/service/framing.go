package service

import (
	"bytes"
	"encoding/json"

	"github.com/vitormoschetta/agent-engine-proxy/internal/model"
)

var (
	dataPrefix = []byte("data:")

	// DoneFrame encerra o stream enviado ao cliente.
	DoneFrame = []byte("data: [DONE]\n\n")
)

// FrameLine normaliza uma linha do backend para o formato SSE. Linhas vazias
// seguem como separadores; linhas que já começam com "data:" não mudam.
func FrameLine(line []byte) []byte {
	if len(line) == 0 {
		return []byte("\n")
	}

	var frame []byte
	if bytes.HasPrefix(line, dataPrefix) {
		frame = make([]byte, 0, len(line)+1)
	} else {
		frame = make([]byte, 0, len(line)+7)
		frame = append(frame, "data: "...)
	}
	frame = append(frame, line...)
	return append(frame, '\n')
}

// PreambleFrame anuncia a sessão usada no turno.
func PreambleFrame(sessionID string) []byte {
	payload, _ := json.Marshal(model.SessionEvent{Type: "session", SessionID: sessionID})
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	return append(frame, "\n\n"...)
}
