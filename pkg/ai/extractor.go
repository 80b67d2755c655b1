package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/depgraph/internal/util"
	"github.com/OFFIS-RIT/depgraph/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// FunctionDescription is the answer to FunctionDescriptionPrompt.
type FunctionDescription struct {
	Description string `json:"description"`
}

// FunctionDependency is one global instance a function touches. Exactly one
// of Method and Field is set.
type FunctionDependency struct {
	InstanceName string `json:"instanceName" validate:"required"`
	Method       string `json:"method,omitempty" validate:"required_without=Field,excluded_with=Field"`
	Field        string `json:"field,omitempty" validate:"required_without=Method,excluded_with=Method"`
	Usage        string `json:"usage,omitempty"`
}

type FunctionDependencies struct {
	Dependencies []FunctionDependency `json:"dependencies" validate:"required,dive"`
}

// ModuleDependency is one binding introduced by an import or require.
type ModuleDependency struct {
	ModuleName     string `json:"moduleName" validate:"required"`
	ModulePath     string `json:"modulePath" validate:"required"`
	ModuleInstance string `json:"moduleInstance,omitempty"`
	InstanceAlias  string `json:"instanceAlias,omitempty"`
}

type ModuleDependencies struct {
	Dependencies []ModuleDependency `json:"dependencies" validate:"required,dive"`
}

// Extractor asks an AI provider about JavaScript source and validates the
// shape of every answer before returning it.
type Extractor struct {
	client   GraphAIClient
	validate *validator.Validate
	retries  int
	opts     []GenerateOption
}

type ExtractorOption func(*Extractor)

// WithRetries sets how often a failed or malformed answer is asked for again.
func WithRetries(n int) ExtractorOption {
	return func(e *Extractor) {
		e.retries = n
	}
}

// WithGenerateOptions passes opts to every completion request.
func WithGenerateOptions(opts ...GenerateOption) ExtractorOption {
	return func(e *Extractor) {
		e.opts = append(e.opts, opts...)
	}
}

func NewExtractor(client GraphAIClient, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		client:   client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		retries:  1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// FunctionDescription returns a business-level description of the function
// in code, or "" when the model finds none.
func (e *Extractor) FunctionDescription(ctx context.Context, code string) (string, error) {
	var out FunctionDescription
	if err := e.ask(ctx, "function_description", "Business description of a JavaScript function", FunctionDescriptionPrompt, code, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Description), nil
}

// FunctionDependencies returns the global instances the function in code
// uses, excluding locals and parameters.
func (e *Extractor) FunctionDependencies(ctx context.Context, code string) ([]FunctionDependency, error) {
	var out FunctionDependencies
	if err := e.ask(ctx, "function_dependencies", "Global instances used by a JavaScript function", FunctionDependenciesPrompt, code, &out); err != nil {
		return nil, err
	}
	return out.Dependencies, nil
}

// ModuleDependencies returns the bindings the module in code imports.
func (e *Extractor) ModuleDependencies(ctx context.Context, code string) ([]ModuleDependency, error) {
	var out ModuleDependencies
	if err := e.ask(ctx, "module_dependencies", "Modules imported by a JavaScript source file", ModuleDependenciesPrompt, code, &out); err != nil {
		return nil, err
	}
	return out.Dependencies, nil
}

func (e *Extractor) ask(ctx context.Context, name, description, template, code string, out any) error {
	prompt := fmt.Sprintf(template, code)
	_, err := util.RetryWithContext(ctx, e.retries, func(ctx context.Context) (struct{}, error) {
		if err := e.client.GenerateCompletionWithFormat(ctx, name, description, prompt, out, e.opts...); err != nil {
			logger.Debug("[AI][Extractor] Completion failed", "prompt", name, "err", err)
			return struct{}{}, err
		}
		if err := e.validate.Struct(out); err != nil {
			logger.Debug("[AI][Extractor] Response failed validation", "prompt", name, "err", err)
			return struct{}{}, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, name, err)
		}
		return struct{}{}, nil
	})
	return err
}
