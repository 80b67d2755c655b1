package graph

import (
	"slices"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
)

// mergeInto copies the mutable fields of v onto an existing record. Empty
// incoming values never clear stored ones. It reports whether anything
// changed.
func mergeInto(existing *common.VertexRecord, v common.Vertex) bool {
	changed := false
	if d := v.Base().Description; d != "" && d != existing.Description {
		existing.Description = d
		changed = true
	}
	switch t := v.(type) {
	case *common.SystemModule:
		if len(t.BusinessModules) > 0 && !slices.Equal(t.BusinessModules, existing.BusinessModules) {
			existing.BusinessModules = slices.Clone(t.BusinessModules)
			changed = true
		}
	case *common.Component:
		if t.SourceCode != "" && t.SourceCode != existing.SourceCode {
			existing.SourceCode = t.SourceCode
			changed = true
		}
	}
	return changed
}
