package graph

import "github.com/OFFIS-RIT/depgraph/pkg/common"

// FillDerivedFields walks the tree top-down and copies the scoping fields a
// child inherits from its parent: a system module takes the parent's name as
// its micro service, a component takes the parent's micro service and the
// parent's name as its system module. Under a micro service a component takes
// the service's name instead. Values that are already set are kept, so
// explicit overrides win. Running it twice gives the same tree.
func FillDerivedFields(v common.Vertex) {
	if v == nil {
		return
	}
	for _, dep := range v.Base().Dependencies {
		switch child := dep.(type) {
		case *common.SystemModule:
			if child.MicroService == "" {
				child.MicroService = v.Base().Name
			}
		case *common.Component:
			if child.MicroService == "" {
				child.MicroService = serviceOf(v)
			}
			if child.SystemModule == "" {
				child.SystemModule = moduleOf(v)
			}
		}
		FillDerivedFields(dep)
	}
}

// serviceOf returns the micro service a component below v belongs to.
func serviceOf(v common.Vertex) string {
	switch p := v.(type) {
	case *common.MicroService:
		return p.Name
	case *common.SystemModule:
		return p.MicroService
	case *common.Component:
		return p.MicroService
	}
	return ""
}

// moduleOf returns the system module a vertex belongs to.
func moduleOf(v common.Vertex) string {
	switch p := v.(type) {
	case *common.SystemModule:
		return p.Name
	case *common.Component:
		return p.SystemModule
	}
	return ""
}
