package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vitormoschetta/agent-engine-proxy/internal/engine"
	"github.com/vitormoschetta/agent-engine-proxy/internal/metrics"
)

// maxErrorBody limita o corpo lido de uma resposta de erro do streaming.
const maxErrorBody = 64 << 10

// ErrClientGone indica que o cliente parou de receber o stream.
var ErrClientGone = errors.New("client stopped receiving")

// Turn é um turno de chat recebido do cliente.
type Turn struct {
	Message   string
	UserID    string
	SessionID string
}

// Relay encaminha turnos para o streamQuery do Agent Engine.
type Relay struct {
	backend  Backend
	sessions *SessionManager
}

func NewRelay(backend Backend, sessions *SessionManager) *Relay {
	return &Relay{
		backend:  backend,
		sessions: sessions,
	}
}

// Open valida o turno, resolve a sessão e abre o stream no backend. Nenhum
// byte foi enviado ao cliente quando Open retorna erro.
func (r *Relay) Open(ctx context.Context, turn Turn) (*Stream, error) {
	if strings.TrimSpace(turn.Message) == "" {
		return nil, BadRequest("Missing 'message'")
	}

	sessionID := turn.SessionID
	if sessionID == "" {
		var err error
		sessionID, err = r.sessions.Create(ctx, turn.UserID)
		if err != nil {
			return nil, err
		}
	}

	resp, err := r.backend.StreamQuery(ctx, engine.MethodStreamQuery, map[string]string{
		"user_id":    turn.UserID,
		"session_id": sessionID,
		"message":    turn.Message,
	})
	if err != nil {
		return nil, UpstreamFailure(err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, UpstreamStatus(resp.StatusCode, body)
	}

	return &Stream{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    turn.UserID,
		body:      resp.Body,
	}, nil
}

// FrameWriter entrega frames já formatados ao cliente.
type FrameWriter interface {
	WriteFrame(frame []byte) error
}

// Stream é uma conexão de streaming aberta com o backend.
type Stream struct {
	ID        string
	SessionID string
	UserID    string

	body      io.ReadCloser
	closeOnce sync.Once
}

// Close libera a conexão com o backend. Pode ser chamado mais de uma vez.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}

// Relay envia o preâmbulo, cada linha do backend na ordem recebida e o
// sentinela final. A leitura do backend e a escrita no cliente rodam em
// goroutines separadas ligadas por um canal sem buffer, então um cliente lento
// atrasa as leituras do backend. A conexão com o backend é sempre fechada.
// Retorna o número de linhas repassadas.
func (s *Stream) Relay(ctx context.Context, w FrameWriter) (int, error) {
	defer s.Close()
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	logger := log.With().Str("relay_id", s.ID).Str("session_id", s.SessionID).Logger()
	logger.Info().Str("user_id", s.UserID).Msg("Relay started")

	n, err := s.relay(ctx, w)
	switch {
	case err == nil:
		metrics.StreamsTotal.WithLabelValues(metrics.OutcomeCompleted).Inc()
		logger.Info().Int("lines", n).Msg("Relay completed")
	case errors.Is(err, ErrClientGone):
		metrics.StreamsTotal.WithLabelValues(metrics.OutcomeClientClosed).Inc()
		logger.Info().Int("lines", n).Err(err).Msg("Client disconnected, backend stream closed")
	default:
		metrics.StreamsTotal.WithLabelValues(metrics.OutcomeUpstreamFailed).Inc()
		logger.Error().Int("lines", n).Err(err).Msg("Backend stream failed")
	}
	return n, err
}

func (s *Stream) relay(ctx context.Context, w FrameWriter) (int, error) {
	if err := w.WriteFrame(PreambleFrame(s.SessionID)); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrClientGone, err)
	}

	done := make(chan struct{})
	defer close(done)

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		readErr <- readLines(s.body, lines, done)
	}()

	n := 0
	for line := range lines {
		if err := w.WriteFrame(FrameLine(line)); err != nil {
			s.Close()
			return n, fmt.Errorf("%w: %v", ErrClientGone, err)
		}
		n++
		metrics.RelayedLinesTotal.Inc()
	}

	if ctx.Err() != nil {
		return n, fmt.Errorf("%w: %v", ErrClientGone, context.Cause(ctx))
	}
	if err := <-readErr; err != nil {
		return n, fmt.Errorf("read from agent engine: %w", err)
	}

	if err := w.WriteFrame(DoneFrame); err != nil {
		return n, fmt.Errorf("%w: %v", ErrClientGone, err)
	}
	return n, nil
}

// readLines envia cada linha sem o terminador até EOF ou até done fechar.
func readLines(r io.Reader, out chan<- []byte, done <-chan struct{}) error {
	br := bufio.NewReaderSize(r, 32<<10)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			line = trimEOL(line)
			select {
			case out <- line:
			case <-done:
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func trimEOL(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
