package ollama

import (
	"net/http"
	"net/url"

	"github.com/OFFIS-RIT/depgraph/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

const DefaultModel = "qwen2.5-coder:7b"

// GraphOllamaClient implements ai.GraphAIClient on a locally hosted Ollama
// server. At most MaxConcurrentRequests requests are in flight at once.
type GraphOllamaClient struct {
	ai.MetricsTracker

	model   string
	reqLock *semaphore.Weighted

	Client *api.Client
}

// NewGraphOllamaClientParams contains configuration options for creating a new GraphOllamaClient.
type NewGraphOllamaClientParams struct {
	Model   string
	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewGraphOllamaClient connects to the Ollama server at BaseURL, or the
// default address when BaseURL is empty.
func NewGraphOllamaClient(params NewGraphOllamaClientParams) (*GraphOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)
	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	} else {
		u, err = url.Parse("http://localhost:11434")
		if err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{Transport: http.DefaultTransport}
	if params.ApiKey != "" {
		httpClient.Transport = &headerTransport{
			headers: map[string]string{"Authorization": "Bearer " + params.ApiKey},
			rt:      http.DefaultTransport,
		}
	}

	model := params.Model
	if model == "" {
		model = DefaultModel
	}
	limit := params.MaxConcurrentRequests
	if limit <= 0 {
		limit = 1
	}

	return &GraphOllamaClient{
		model:   model,
		reqLock: semaphore.NewWeighted(limit),
		Client:  api.NewClient(u, httpClient),
	}, nil
}

// NewOllama matches ai.Factory.
func NewOllama(opts ai.ProviderOptions) (ai.GraphAIClient, error) {
	return NewGraphOllamaClient(NewGraphOllamaClientParams{
		Model:                 opts.Model,
		BaseURL:               opts.BaseURL,
		ApiKey:                opts.APIKey,
		MaxConcurrentRequests: opts.MaxConcurrentRequests,
	})
}
