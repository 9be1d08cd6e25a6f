package auth

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// AuthenticatedTransport adiciona o header Authorization às requisições HTTP
type AuthenticatedTransport struct {
	Base   http.RoundTripper
	Source oauth2.TokenSource
}

func (t *AuthenticatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.Source.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}

	// Clonar a requisição para não modificar a original
	reqCopy := req.Clone(req.Context())
	token.SetAuthHeader(reqCopy)

	log.Debug().Str("method", reqCopy.Method).Str("url", reqCopy.URL.String()).Msg("Agent Engine request")

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(reqCopy)
}
