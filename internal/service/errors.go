package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vitormoschetta/agent-engine-proxy/internal/engine"
)

// Kind classifica os erros devolvidos ao cliente.
type Kind string

const (
	KindBadRequest       Kind = "bad_request"
	KindUnauthorized     Kind = "unauthorized"
	KindUpstream         Kind = "upstream"
	KindUpstreamFormat   Kind = "upstream_format"
	KindUpstreamContract Kind = "upstream_contract"
	KindInternal         Kind = "internal"
)

const (
	formatExcerptLimit   = 500
	contractExcerptLimit = 1000
)

// Error é um erro com status HTTP e detalhe destinados ao cliente.
type Error struct {
	Kind   Kind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Kind, e.Status, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// BadRequest indica uma requisição inválida do cliente.
func BadRequest(detail string) *Error {
	return &Error{Kind: KindBadRequest, Status: http.StatusBadRequest, Detail: detail}
}

// Unauthorized indica chave de acesso ausente ou incorreta.
func Unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Detail: "Unauthorized"}
}

// UpstreamStatus espelha um status >= 400 devolvido pelo Agent Engine.
func UpstreamStatus(status int, body []byte) *Error {
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		detail = "Upstream error"
	}
	return &Error{Kind: KindUpstream, Status: status, Detail: detail}
}

// UpstreamFailure converte uma falha de transporte; timeouts viram 504.
func UpstreamFailure(err error) *Error {
	if errors.Is(err, engine.ErrTimeout) {
		return &Error{Kind: KindUpstream, Status: http.StatusGatewayTimeout, Detail: "Upstream timeout", Err: err}
	}
	return &Error{Kind: KindUpstream, Status: http.StatusBadGateway, Detail: "Upstream error", Err: err}
}

// UpstreamFormat indica um corpo que não pôde ser interpretado.
func UpstreamFormat(body []byte, err error) *Error {
	return &Error{
		Kind:   KindUpstreamFormat,
		Status: http.StatusInternalServerError,
		Detail: "Invalid JSON from Agent Engine: " + truncate(body, formatExcerptLimit),
		Err:    err,
	}
}

// UpstreamContract indica um corpo válido sem nenhum identificador de sessão.
func UpstreamContract(body []byte) *Error {
	return &Error{
		Kind:   KindUpstreamContract,
		Status: http.StatusInternalServerError,
		Detail: "No session id returned from Agent Engine. Payload: " + truncate(body, contractExcerptLimit),
	}
}

// AsError converte qualquer erro em *Error; desconhecidos viram 500.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Detail: "Internal server error", Err: err}
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit])
}
