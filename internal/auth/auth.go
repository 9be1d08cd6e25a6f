package auth

import (
	"context"
	"fmt"
	"net/http"

	"cloud.google.com/go/auth/credentials"
	"cloud.google.com/go/auth/httptransport"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// CloudPlatformScope é o único escopo solicitado para chamadas ao Agent Engine.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Authenticator fornece um cliente HTTP que anexa credenciais a cada requisição.
// Implementações devem ser seguras para uso concorrente.
type Authenticator interface {
	Client(ctx context.Context) (*http.Client, error)
}

// ADC autentica com Application Default Credentials. A renovação do token
// fica a cargo do provedor de credenciais.
type ADC struct {
	client *http.Client
}

// NewADC detecta as credenciais do ambiente uma única vez.
func NewADC(ctx context.Context) (*ADC, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes: []string{CloudPlatformScope},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect default credentials: %w", err)
	}

	if projectID, err := creds.ProjectID(ctx); err == nil && projectID != "" {
		log.Debug().Str("project_id", projectID).Msg("Default credentials detected")
	}

	client, err := httptransport.NewClient(&httptransport.Options{
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticated client: %w", err)
	}

	return &ADC{client: client}, nil
}

func (a *ADC) Client(context.Context) (*http.Client, error) {
	return a.client, nil
}

// Static autentica com um token fixo, útil em desenvolvimento local e testes.
type Static struct {
	client *http.Client
}

// NewStatic cria um Authenticator a partir de um access token já emitido.
func NewStatic(token string, base http.RoundTripper) *Static {
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	})
	return &Static{
		client: &http.Client{
			Transport: &AuthenticatedTransport{Base: base, Source: src},
		},
	}
}

func (s *Static) Client(context.Context) (*http.Client, error) {
	return s.client, nil
}

// New escolhe o token estático quando informado e ADC caso contrário.
func New(ctx context.Context, accessToken string) (Authenticator, error) {
	if accessToken != "" {
		log.Warn().Msg("Using static access token from AGENT_ACCESS_TOKEN; it will not be refreshed")
		return NewStatic(accessToken, nil), nil
	}
	return NewADC(ctx)
}
