package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/depgraph/pkg/ai"

	"github.com/openai/openai-go/v3"
)

func (c *GraphOpenAIClient) messages(options ai.GenerateOptions, prompt string) []openai.ChatCompletionMessageParamUnion {
	msgs := []openai.ChatCompletionMessageParamUnion{}
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	return append(msgs, openai.UserMessage(prompt))
}

func (c *GraphOpenAIClient) complete(ctx context.Context, body openai.ChatCompletionNewParams) (string, error) {
	start := time.Now()
	response, err := c.ChatClient.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", err
	}
	c.AddMetrics(ai.ModelMetrics{
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
		TotalTokens:  int(response.Usage.TotalTokens),
		DurationMs:   time.Since(start).Milliseconds(),
	})

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response from model", ai.ErrMalformedResponse)
	}
	return response.Choices[0].Message.Content, nil
}

// GenerateCompletion sends a single-turn prompt to the chat model and
// returns the generated completion as plain text.
func (c *GraphOpenAIClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{Model: c.model, Temperature: 0.3}, opts...)

	return c.complete(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Messages:    c.messages(options, prompt),
		Temperature: openai.Float(options.Temperature),
	})
}

// GenerateCompletionWithFormat sends a prompt to the chat model and
// unmarshals the JSON answer into out.
//
// Example:
//
//	var out ai.FunctionDescription
//	err := client.GenerateCompletionWithFormat(ctx, "function_description", "...", prompt, &out)
func (c *GraphOpenAIClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	options := ai.ApplyOptions(ai.GenerateOptions{Model: c.model, Temperature: 0.1}, opts...)

	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Temperature: openai.Float(options.Temperature),
	}

	switch c.format {
	case FormatJSONObject:
		withSchema, err := ai.SchemaPrompt(prompt, out)
		if err != nil {
			return err
		}
		prompt = withSchema
		body.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	default:
		body.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        name,
					Description: openai.String(description),
					Schema:      ai.GenerateSchema(out),
				},
			},
		}
	}
	body.Messages = c.messages(options, prompt)

	message, err := c.complete(ctx, body)
	if err != nil {
		return err
	}
	if message == "" {
		return fmt.Errorf("%w: empty response from model", ai.ErrMalformedResponse)
	}
	return ai.UnmarshalFlexible(message, out)
}
