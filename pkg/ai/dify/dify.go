// Package dify runs prompts through a Dify workflow. The workflow takes the
// prompt as the "prompt" input and returns the answer as the "text" output.
package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/OFFIS-RIT/depgraph/pkg/ai"
)

type workflowRequest struct {
	Inputs       map[string]string `json:"inputs"`
	ResponseMode string            `json:"response_mode"`
	User         string            `json:"user"`
}

type workflowResponse struct {
	Data struct {
		Status  string `json:"status"`
		Error   string `json:"error"`
		Outputs struct {
			Text string `json:"text"`
		} `json:"outputs"`
		TotalTokens int     `json:"total_tokens"`
		ElapsedTime float64 `json:"elapsed_time"`
	} `json:"data"`
}

// GraphDifyClient implements ai.GraphAIClient on a Dify workflow endpoint.
type GraphDifyClient struct {
	ai.MetricsTracker

	workflowURL string
	token       string
	user        string
	httpClient  *http.Client
}

type NewGraphDifyClientParams struct {
	WorkflowURL string
	Token       string
	User        string
	HTTPClient  *http.Client
}

func NewGraphDifyClient(params NewGraphDifyClientParams) (*GraphDifyClient, error) {
	if params.WorkflowURL == "" {
		return nil, fmt.Errorf("dify: workflow url is required")
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &GraphDifyClient{
		workflowURL: params.WorkflowURL,
		token:       params.Token,
		user:        params.User,
		httpClient:  httpClient,
	}, nil
}

// NewDify matches ai.Factory.
func NewDify(opts ai.ProviderOptions) (ai.GraphAIClient, error) {
	token := opts.Token
	if token == "" {
		token = opts.APIKey
	}
	return NewGraphDifyClient(NewGraphDifyClientParams{
		WorkflowURL: opts.WorkflowURL,
		Token:       token,
		User:        opts.User,
	})
}

// GenerateCompletion runs the workflow with prompt. Model and temperature
// are fixed by the workflow, so opts are ignored.
func (c *GraphDifyClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	body, err := json.Marshal(workflowRequest{
		Inputs:       map[string]string{"prompt": prompt},
		ResponseMode: "blocking",
		User:         c.user,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.workflowURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("dify: workflow request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("dify: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("dify: workflow returned status %d: %s", resp.StatusCode, raw)
	}

	var out workflowResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}
	if out.Data.Error != "" {
		return "", fmt.Errorf("dify: workflow %s: %s", out.Data.Status, out.Data.Error)
	}

	c.AddMetrics(ai.ModelMetrics{
		TotalTokens: out.Data.TotalTokens,
		DurationMs:  time.Since(start).Milliseconds(),
	})
	return out.Data.Outputs.Text, nil
}

// GenerateCompletionWithFormat states the schema of out in the prompt and
// parses the workflow's text output.
func (c *GraphDifyClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	withSchema, err := ai.SchemaPrompt(prompt, out)
	if err != nil {
		return err
	}
	text, err := c.GenerateCompletion(ctx, withSchema, opts...)
	if err != nil {
		return err
	}
	return ai.UnmarshalFlexible(text, out)
}
