package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/OFFIS-RIT/depgraph/pkg/common"

	"github.com/go-playground/validator/v10"
)

// VertexSpec is the wire shape of a vertex tree as it arrives over HTTP, the
// queue or the CLI.
type VertexSpec struct {
	Category        common.Category `json:"category" validate:"required,category"`
	Name            string          `json:"name" validate:"required"`
	Type            string          `json:"type" validate:"required"`
	Description     string          `json:"description,omitempty"`
	SourceCode      string          `json:"sourceCode,omitempty"`
	BusinessModules []string        `json:"businessModules,omitempty"`
	MicroService    string          `json:"microService,omitempty"`
	SystemModule    string          `json:"systemModule,omitempty"`
	Dependencies    []*VertexSpec   `json:"dependencies,omitempty" validate:"omitempty,dive,required"`
}

// querySpec is the validated view of a common.VertexQuery.
type querySpec struct {
	Category     common.Category `json:"category" validate:"required,category"`
	Name         string          `json:"name" validate:"required"`
	MicroService string          `json:"microService"`
	SystemModule string          `json:"systemModule"`
}

// Validator checks vertex trees and vertex queries against the category rules.
// It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return common.Category(fl.Field().String()).Valid()
	})
	v.RegisterStructValidation(vertexRules, VertexSpec{})
	v.RegisterStructValidation(queryRules, querySpec{})

	return &Validator{validate: v}
}

// rule says whether a field is required or forbidden for a category. Fields
// that are not listed are optional.
type rule struct {
	required  []string
	forbidden []string
}

var writeRules = map[common.Category]rule{
	common.CategoryBusinessModule: {forbidden: []string{"microService", "systemModule", "sourceCode", "businessModules"}},
	common.CategoryMicroService:   {forbidden: []string{"microService", "systemModule", "sourceCode", "businessModules"}},
	common.CategorySystemModule:   {required: []string{"microService"}, forbidden: []string{"systemModule", "sourceCode"}},
	common.CategoryComponent:      {required: []string{"microService", "systemModule"}, forbidden: []string{"businessModules"}},
}

var lookupRules = map[common.Category]rule{
	common.CategorySystemModule: {required: []string{"microService"}},
	common.CategoryComponent:    {required: []string{"microService", "systemModule"}},
}

func vertexRules(sl validator.StructLevel) {
	s := sl.Current().Interface().(VertexSpec)
	present := map[string]bool{
		"microService":    s.MicroService != "",
		"systemModule":    s.SystemModule != "",
		"sourceCode":      s.SourceCode != "",
		"businessModules": len(s.BusinessModules) > 0,
	}
	fields := map[string]any{
		"microService":    s.MicroService,
		"systemModule":    s.SystemModule,
		"sourceCode":      s.SourceCode,
		"businessModules": s.BusinessModules,
	}
	report(sl, writeRules[s.Category], s.Category, present, fields)
}

func queryRules(sl validator.StructLevel) {
	q := sl.Current().Interface().(querySpec)
	present := map[string]bool{
		"microService": q.MicroService != "",
		"systemModule": q.SystemModule != "",
	}
	fields := map[string]any{
		"microService": q.MicroService,
		"systemModule": q.SystemModule,
	}
	report(sl, lookupRules[q.Category], q.Category, present, fields)
}

func report(sl validator.StructLevel, r rule, c common.Category, present map[string]bool, fields map[string]any) {
	for _, f := range r.required {
		if !present[f] {
			sl.ReportError(fields[f], f, f, "required_for", string(c))
		}
	}
	for _, f := range r.forbidden {
		if present[f] {
			sl.ReportError(fields[f], f, f, "forbidden_for", string(c))
		}
	}
}

// ValidateSpec validates a complete wire tree, including the fields that the
// graph builder would otherwise derive from parents.
func (v *Validator) ValidateSpec(spec *VertexSpec) error {
	if spec == nil {
		return &ValidationError{Violations: []Violation{{Field: "vertex", Condition: "is required"}}}
	}
	return v.check(spec)
}

// Validate checks a typed vertex tree against the write schema. Every vertex
// in the tree is checked, so a failure is reported before any write happens.
func (v *Validator) Validate(vertex common.Vertex) error {
	if vertex == nil {
		return &ValidationError{Violations: []Violation{{Field: "vertex", Condition: "is required"}}}
	}
	return v.check(Encode(vertex))
}

// ValidateQuery checks a vertex query: category, name, and the scoping fields
// the category needs.
func (v *Validator) ValidateQuery(q common.VertexQuery) error {
	return v.check(&querySpec{
		Category:     q.Category,
		Name:         q.Name,
		MicroService: q.MicroService,
		SystemModule: q.SystemModule,
	})
}

func (v *Validator) check(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, e := range verrs {
		out.Violations = append(out.Violations, Violation{
			Field:     fieldPath(e.Namespace()),
			Condition: formatFieldError(e),
		})
	}
	return out
}

// fieldPath strips the root struct name from a validator namespace, e.g.
// "VertexSpec.dependencies[0].microService" becomes "dependencies[0].microService".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func formatFieldError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "category":
		return fmt.Sprintf("must be one of %v", common.Categories)
	case "required_for":
		return fmt.Sprintf("is required for category %s", e.Param())
	case "forbidden_for":
		return fmt.Sprintf("is not allowed for category %s", e.Param())
	default:
		return "is invalid"
	}
}
