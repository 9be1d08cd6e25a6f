package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidResource indica um identificador de recurso do Agent Engine malformado.
var ErrInvalidResource = errors.New("invalid agent engine resource")

const defaultAPIHost = "https://%s-aiplatform.googleapis.com"

// Endpoint descreve o reasoning engine alvo e as URLs derivadas dele.
// É imutável durante a vida do processo.
type Endpoint struct {
	Project   string
	Location  string
	EngineID  string
	QueryURL  string
	StreamURL string
}

// ParseResource interpreta "projects/{p}/locations/{l}/reasoningEngines/{e}".
// apiBase substitui o host regional padrão quando não vazio.
func ParseResource(resource, apiBase string) (*Endpoint, error) {
	resource = strings.Trim(strings.TrimSpace(resource), "/")
	if resource == "" {
		return nil, fmt.Errorf("%w: resource path is required", ErrInvalidResource)
	}

	parts := strings.Split(resource, "/")
	if len(parts) != 6 ||
		parts[0] != "projects" ||
		parts[2] != "locations" ||
		parts[4] != "reasoningEngines" {
		return nil, fmt.Errorf("%w: %q does not match projects/{project}/locations/{location}/reasoningEngines/{engine}", ErrInvalidResource, resource)
	}
	for _, i := range []int{1, 3, 5} {
		if parts[i] == "" {
			return nil, fmt.Errorf("%w: %q has an empty %s segment", ErrInvalidResource, resource, parts[i-1])
		}
	}

	ep := &Endpoint{
		Project:  parts[1],
		Location: parts[3],
		EngineID: parts[5],
	}

	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if base == "" {
		base = fmt.Sprintf(defaultAPIHost, ep.Location)
	}
	enginePath := fmt.Sprintf("%s/v1/projects/%s/locations/%s/reasoningEngines/%s", base, ep.Project, ep.Location, ep.EngineID)
	ep.QueryURL = enginePath + ":query"
	ep.StreamURL = enginePath + ":streamQuery?alt=sse"

	return ep, nil
}

// Resource retorna o caminho completo do recurso.
func (e *Endpoint) Resource() string {
	return fmt.Sprintf("projects/%s/locations/%s/reasoningEngines/%s", e.Project, e.Location, e.EngineID)
}
