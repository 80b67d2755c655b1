package schema

import (
	"fmt"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
)

// Decode turns a wire tree into a typed vertex tree. Fields that are not
// legal for a vertex's category are rejected here, since the typed tree has
// nowhere to keep them. Fields that can be derived from a parent may still be
// missing; Validate checks them after derivation.
func Decode(spec *VertexSpec) (common.Vertex, error) {
	verr := &ValidationError{}
	v := decode(spec, "", verr)
	if len(verr.Violations) > 0 {
		return nil, verr
	}
	return v, nil
}

func decode(s *VertexSpec, path string, verr *ValidationError) common.Vertex {
	if s == nil {
		verr.Violations = append(verr.Violations, Violation{Field: at(path, "vertex"), Condition: "is required"})
		return nil
	}

	forbid := func(field string, set bool) {
		if set {
			verr.Violations = append(verr.Violations, Violation{
				Field:     at(path, field),
				Condition: fmt.Sprintf("is not allowed for category %s", s.Category),
			})
		}
	}

	base := common.VertexBase{Name: s.Name, Type: s.Type, Description: s.Description}
	var v common.Vertex
	switch s.Category {
	case common.CategoryBusinessModule, common.CategoryMicroService:
		forbid("microService", s.MicroService != "")
		forbid("systemModule", s.SystemModule != "")
		forbid("sourceCode", s.SourceCode != "")
		forbid("businessModules", len(s.BusinessModules) > 0)
		if s.Category == common.CategoryBusinessModule {
			v = &common.BusinessModule{VertexBase: base}
		} else {
			v = &common.MicroService{VertexBase: base}
		}
	case common.CategorySystemModule:
		forbid("systemModule", s.SystemModule != "")
		forbid("sourceCode", s.SourceCode != "")
		v = &common.SystemModule{
			VertexBase:      base,
			MicroService:    s.MicroService,
			BusinessModules: append([]string(nil), s.BusinessModules...),
		}
	case common.CategoryComponent:
		forbid("businessModules", len(s.BusinessModules) > 0)
		v = &common.Component{
			VertexBase:   base,
			MicroService: s.MicroService,
			SystemModule: s.SystemModule,
			SourceCode:   s.SourceCode,
		}
	default:
		verr.Violations = append(verr.Violations, Violation{
			Field:     at(path, "category"),
			Condition: fmt.Sprintf("must be one of %v", common.Categories),
		})
		return nil
	}

	b := v.Base()
	for i, dep := range s.Dependencies {
		child := decode(dep, fmt.Sprintf("%sdependencies[%d]", prefix(path), i), verr)
		if child != nil {
			b.Dependencies = append(b.Dependencies, child)
		}
	}
	return v
}

// Encode is the inverse of Decode.
func Encode(v common.Vertex) *VertexSpec {
	if v == nil {
		return nil
	}
	r := common.RecordOf(v)
	s := &VertexSpec{
		Category:        r.Category,
		Name:            r.Name,
		Type:            r.Type,
		Description:     r.Description,
		SourceCode:      r.SourceCode,
		BusinessModules: r.BusinessModules,
		MicroService:    r.MicroService,
		SystemModule:    r.SystemModule,
	}
	for _, dep := range v.Base().Dependencies {
		s.Dependencies = append(s.Dependencies, Encode(dep))
	}
	return s
}

func prefix(path string) string {
	if path == "" {
		return ""
	}
	return path + "."
}

func at(path, field string) string {
	return prefix(path) + field
}
