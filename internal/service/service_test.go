package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vitormoschetta/agent-engine-proxy/internal/engine"
)

type backendCall struct {
	Method string
	Input  map[string]string
}

// fakeBackend responde chamadas síncronas e de streaming com valores fixos.
type fakeBackend struct {
	mu sync.Mutex

	reply    *engine.Reply
	queryErr error

	streamStatus int
	streamBody   io.ReadCloser
	streamErr    error

	queries []backendCall
	streams []backendCall
}

func (f *fakeBackend) Query(_ context.Context, method string, input any) (*engine.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, backendCall{Method: method, Input: input.(map[string]string)})
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.reply, nil
}

func (f *fakeBackend) StreamQuery(_ context.Context, method string, input any) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams = append(f.streams, backendCall{Method: method, Input: input.(map[string]string)})
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	status := f.streamStatus
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{StatusCode: status, Body: f.streamBody}, nil
}

func (f *fakeBackend) calls() (queries, streams int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries), len(f.streams)
}

// trackedBody registra quando o corpo do backend é fechado.
type trackedBody struct {
	io.Reader
	closed atomic.Bool
}

func newTrackedBody(s string) *trackedBody {
	return &trackedBody{Reader: strings.NewReader(s)}
}

func (b *trackedBody) Close() error {
	b.closed.Store(true)
	return nil
}

// frameRecorder acumula os frames escritos, opcionalmente falhando após um limite.
type frameRecorder struct {
	frames []string
	failAt int
}

func (r *frameRecorder) WriteFrame(frame []byte) error {
	if r.failAt > 0 && len(r.frames) >= r.failAt {
		return errors.New("broken pipe")
	}
	r.frames = append(r.frames, string(frame))
	return nil
}

func (r *frameRecorder) body() string {
	return strings.Join(r.frames, "")
}
