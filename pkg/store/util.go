package store

import "github.com/OFFIS-RIT/depgraph/pkg/common"

// DedupeStrings drops empty and repeated values, keeping first occurrences.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Clone returns a deep copy of a record.
func Clone(r *common.VertexRecord) *common.VertexRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.BusinessModules = append([]string(nil), r.BusinessModules...)
	return &c
}
