package openai

import (
	"github.com/OFFIS-RIT/depgraph/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	MoonshotBaseURL = "https://api.moonshot.cn/v1"
	MoonshotModel   = "moonshot-v1-8k"
	BigModelBaseURL = "https://open.bigmodel.cn/api/paas/v4/"
	BigModelModel   = "glm-4-flash"
	DefaultModel    = "gpt-4o-mini"
)

// ResponseFormat selects how GenerateCompletionWithFormat asks for JSON.
type ResponseFormat int

const (
	// FormatJSONSchema sends the reflected schema as a json_schema response format.
	FormatJSONSchema ResponseFormat = iota
	// FormatJSONObject asks for json_object and states the schema in the prompt,
	// for OpenAI-compatible services without json_schema support.
	FormatJSONObject
)

// GraphOpenAIClient talks to the OpenAI chat completions API or any service
// that speaks the same protocol.
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	ai.MetricsTracker

	model  string
	format ResponseFormat

	ChatClient *openai.Client
}

// NewGraphOpenAIClientParams defines the configuration parameters for creating
// a new GraphOpenAIClient. An empty ChatURL means the OpenAI API itself.
type NewGraphOpenAIClientParams struct {
	Model   string
	ChatURL string
	ChatKey string
	Format  ResponseFormat
}

// NewGraphOpenAIClient creates a client for the given endpoint.
//
// Example:
//
//	client := openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
//		Model:   openai.MoonshotModel,
//		ChatURL: openai.MoonshotBaseURL,
//		ChatKey: os.Getenv("AI_CHAT_KEY"),
//		Format:  openai.FormatJSONObject,
//	})
func NewGraphOpenAIClient(params NewGraphOpenAIClientParams) *GraphOpenAIClient {
	model := params.Model
	if model == "" {
		model = DefaultModel
	}
	return &GraphOpenAIClient{
		model:      model,
		format:     params.Format,
		ChatClient: newOpenaiClient(params.ChatURL, params.ChatKey),
	}
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)
	return &client
}

// NewOpenAI, NewMoonshot and NewBigModel match ai.Factory.
func NewOpenAI(opts ai.ProviderOptions) (ai.GraphAIClient, error) {
	return NewGraphOpenAIClient(NewGraphOpenAIClientParams{
		Model:   opts.Model,
		ChatURL: opts.BaseURL,
		ChatKey: opts.APIKey,
		Format:  FormatJSONSchema,
	}), nil
}

func NewMoonshot(opts ai.ProviderOptions) (ai.GraphAIClient, error) {
	return newCompatible(opts, MoonshotBaseURL, MoonshotModel), nil
}

func NewBigModel(opts ai.ProviderOptions) (ai.GraphAIClient, error) {
	return newCompatible(opts, BigModelBaseURL, BigModelModel), nil
}

func newCompatible(opts ai.ProviderOptions, baseURL, model string) *GraphOpenAIClient {
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	if opts.Model != "" {
		model = opts.Model
	}
	return NewGraphOpenAIClient(NewGraphOpenAIClientParams{
		Model:   model,
		ChatURL: baseURL,
		ChatKey: opts.APIKey,
		Format:  FormatJSONObject,
	})
}
