package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vitormoschetta/agent-engine-proxy/internal/auth"
	"github.com/vitormoschetta/agent-engine-proxy/internal/metrics"
)

// Métodos expostos pelo agente implantado no Agent Engine.
const (
	MethodCreateSession = "async_create_session"
	MethodStreamQuery   = "async_stream_query"
)

// ErrTimeout indica que o Agent Engine não respondeu dentro do prazo.
var ErrTimeout = errors.New("agent engine request timed out")

const (
	DefaultQueryTimeout   = 30 * time.Second
	DefaultConnectTimeout = 120 * time.Second
)

// Reply é a resposta completa de uma chamada síncrona.
type Reply struct {
	StatusCode int
	Body       []byte
}

type rpcRequest struct {
	ClassMethod string `json:"classMethod"`
	Input       any    `json:"input"`
}

// Client fala com os endpoints :query e :streamQuery de um reasoning engine.
type Client struct {
	endpoint       *Endpoint
	auth           auth.Authenticator
	queryTimeout   time.Duration
	connectTimeout time.Duration
}

// NewClient cria um Client. Timeouts zerados usam os padrões.
func NewClient(ep *Endpoint, a auth.Authenticator, queryTimeout, connectTimeout time.Duration) *Client {
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &Client{
		endpoint:       ep,
		auth:           a,
		queryTimeout:   queryTimeout,
		connectTimeout: connectTimeout,
	}
}

// Endpoint retorna o descritor usado pelo cliente.
func (c *Client) Endpoint() *Endpoint {
	return c.endpoint
}

// Query executa uma chamada síncrona e lê o corpo inteiro dentro do prazo.
func (c *Client) Query(ctx context.Context, method string, input any) (*Reply, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, c.queryTimeout, ErrTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, c.endpoint.QueryURL, method, input)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, req, method)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransportError(ctx, "read "+method+" response", err)
	}

	return &Reply{StatusCode: resp.StatusCode, Body: body}, nil
}

// StreamQuery abre a conexão de streaming SSE. O prazo de conexão vale só até
// os headers chegarem; o corpo é lido incrementalmente sem deadline e o
// chamador deve sempre fechá-lo.
func (c *Client) StreamQuery(ctx context.Context, method string, input any) (*http.Response, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	timer := time.AfterFunc(c.connectTimeout, func() { cancel(ErrTimeout) })

	req, err := c.newRequest(ctx, c.endpoint.StreamURL, method, input)
	if err != nil {
		timer.Stop()
		cancel(nil)
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.do(ctx, req, method)
	if !timer.Stop() && err == nil {
		// o timer disparou entre a resposta e o Stop
		resp.Body.Close()
		err = wrapTransportError(ctx, method, context.Cause(ctx))
	}
	if err != nil {
		cancel(nil)
		return nil, err
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: func() { cancel(context.Canceled) }}
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, url, method string, input any) (*http.Request, error) {
	payload, err := json.Marshal(rpcRequest{ClassMethod: method, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(ctx context.Context, req *http.Request, method string) (*http.Response, error) {
	client, err := c.auth.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain authenticated client: %w", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, wrapTransportError(ctx, method, err)
	}
	return resp, nil
}

func wrapTransportError(ctx context.Context, op string, err error) error {
	if errors.Is(context.Cause(ctx), ErrTimeout) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// cancelOnClose libera o contexto da requisição quando o corpo é fechado.
type cancelOnClose struct {
	io.ReadCloser
	cancel func()
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
