package common

import "strings"

// Category is the kind of a vertex in the dependency graph. It is fixed at
// creation and decides which fields a vertex may carry and which fields
// make up its scoping key.
type Category string

const (
	CategoryBusinessModule Category = "businessModule"
	CategoryMicroService   Category = "microService"
	CategorySystemModule   Category = "systemModule"
	CategoryComponent      Category = "component"
)

// Categories lists every known category in hierarchy order.
var Categories = []Category{
	CategoryBusinessModule,
	CategoryMicroService,
	CategorySystemModule,
	CategoryComponent,
}

// EdgeLabel is the label of the only edge type in the graph.
const EdgeLabel = "Uses"

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryBusinessModule, CategoryMicroService, CategorySystemModule, CategoryComponent:
		return true
	}
	return false
}

// NativeType returns the type name a backend stores for the category, e.g.
// "SystemModule" for systemModule.
func (c Category) NativeType() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

// CategoryFromNativeType maps a backend type tag back onto a category.
func CategoryFromNativeType(t string) (Category, bool) {
	if t == "" {
		return "", false
	}
	c := Category(strings.ToLower(t[:1]) + t[1:])
	return c, c.Valid()
}

// Vertex is an unpersisted node of a dependency tree. The concrete types are
// BusinessModule, MicroService, SystemModule and Component; each carries only
// the fields that are legal for its category.
//
// The tree hangs off VertexBase.Dependencies. It is owned by the caller,
// acyclic, and consumed top-down by the graph builder.
type Vertex interface {
	Category() Category
	// Base gives access to the fields shared by every category.
	Base() *VertexBase
	// Key returns the scoping key that identifies the vertex in the store.
	Key() VertexQuery
	isVertex()
}

// VertexBase holds the fields common to all categories.
type VertexBase struct {
	Name         string
	Type         string
	Description  string
	Dependencies []Vertex
}

func (b *VertexBase) Base() *VertexBase { return b }

// BusinessModule groups system modules by business capability.
type BusinessModule struct {
	VertexBase
}

// MicroService is a deployable unit, usually one repository.
type MicroService struct {
	VertexBase
}

// SystemModule is a source module inside a micro service.
type SystemModule struct {
	VertexBase
	MicroService    string
	BusinessModules []string
}

// Component is a function, field or API endpoint inside a system module.
type Component struct {
	VertexBase
	MicroService string
	SystemModule string
	SourceCode   string
}

func (*BusinessModule) Category() Category { return CategoryBusinessModule }
func (*MicroService) Category() Category   { return CategoryMicroService }
func (*SystemModule) Category() Category   { return CategorySystemModule }
func (*Component) Category() Category      { return CategoryComponent }

func (v *BusinessModule) Key() VertexQuery {
	return VertexQuery{Category: CategoryBusinessModule, Name: v.Name}
}

func (v *MicroService) Key() VertexQuery {
	return VertexQuery{Category: CategoryMicroService, Name: v.Name}
}

func (v *SystemModule) Key() VertexQuery {
	return VertexQuery{Category: CategorySystemModule, Name: v.Name, MicroService: v.MicroService}
}

func (v *Component) Key() VertexQuery {
	return VertexQuery{
		Category:     CategoryComponent,
		Name:         v.Name,
		MicroService: v.MicroService,
		SystemModule: v.SystemModule,
	}
}

func (*BusinessModule) isVertex() {}
func (*MicroService) isVertex()   {}
func (*SystemModule) isVertex()   {}
func (*Component) isVertex()      {}

// VertexQuery is the scoping key of a vertex. Name is always part of it,
// MicroService for system modules and components, SystemModule for
// components only.
type VertexQuery struct {
	Category     Category `json:"category"`
	Name         string   `json:"name"`
	MicroService string   `json:"microService,omitempty"`
	SystemModule string   `json:"systemModule,omitempty"`
}

// Normalize drops the fields that are not part of the scoping key of q's
// category.
func (q VertexQuery) Normalize() VertexQuery {
	switch q.Category {
	case CategorySystemModule:
		q.SystemModule = ""
	case CategoryComponent:
	default:
		q.MicroService = ""
		q.SystemModule = ""
	}
	return q
}

// VertexRecord is a vertex as stored by a backend. ID and NativeType are
// assigned by the backend and never generated by the client.
type VertexRecord struct {
	ID              string   `json:"id"`
	Category        Category `json:"category"`
	NativeType      string   `json:"nativeType,omitempty"`
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	Description     string   `json:"description"`
	SourceCode      string   `json:"sourceCode,omitempty"`
	BusinessModules []string `json:"businessModules,omitempty"`
	MicroService    string   `json:"microService,omitempty"`
	SystemModule    string   `json:"systemModule,omitempty"`
}

// Key returns the scoping key of the record.
func (r *VertexRecord) Key() VertexQuery {
	return VertexQuery{
		Category:     r.Category,
		Name:         r.Name,
		MicroService: r.MicroService,
		SystemModule: r.SystemModule,
	}.Normalize()
}

// RecordOf flattens a vertex into an unpersisted record. Dependencies are
// dropped.
func RecordOf(v Vertex) *VertexRecord {
	b := v.Base()
	r := &VertexRecord{
		Category:    v.Category(),
		NativeType:  v.Category().NativeType(),
		Name:        b.Name,
		Type:        b.Type,
		Description: b.Description,
	}
	switch t := v.(type) {
	case *SystemModule:
		r.MicroService = t.MicroService
		r.BusinessModules = append([]string(nil), t.BusinessModules...)
	case *Component:
		r.MicroService = t.MicroService
		r.SystemModule = t.SystemModule
		r.SourceCode = t.SourceCode
	}
	return r
}

// EdgeRecord is a directed Uses edge between two stored vertices.
type EdgeRecord struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Path is an ordered list of vertex ids, starting at the vertex a traversal
// was started from. A path of length one is the start vertex alone.
type Path []string
