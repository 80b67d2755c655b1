package neo4j

import (
	"fmt"

	"github.com/OFFIS-RIT/depgraph/pkg/common"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var constraints = []string{
	"CREATE CONSTRAINT business_module_key IF NOT EXISTS FOR (v:BusinessModule) REQUIRE v.name IS UNIQUE",
	"CREATE CONSTRAINT micro_service_key IF NOT EXISTS FOR (v:MicroService) REQUIRE v.name IS UNIQUE",
	"CREATE CONSTRAINT system_module_key IF NOT EXISTS FOR (v:SystemModule) REQUIRE (v.microService, v.name) IS UNIQUE",
	"CREATE CONSTRAINT component_key IF NOT EXISTS FOR (v:Component) REQUIRE (v.microService, v.systemModule, v.name) IS UNIQUE",
}

const (
	edgeCypher      = "MATCH (a:VertexBase)-[e:Uses]->(b:VertexBase) WHERE elementId(a) = $from AND elementId(b) = $to RETURN e LIMIT 1"
	mergeEdgeCypher = "MATCH (a:VertexBase), (b:VertexBase) WHERE elementId(a) = $from AND elementId(b) = $to MERGE (a)-[e:Uses]->(b) RETURN e"
)

// Labels come from the closed set of categories, never from input.
func createCypher(c common.Category) string {
	return fmt.Sprintf("CREATE (v:%s:VertexBase) SET v = $props RETURN v", c.NativeType())
}

func updateCypher(c common.Category) string {
	set := "v.description = $description"
	switch c {
	case common.CategorySystemModule:
		set += ", v.businessModules = $businessModules"
	case common.CategoryComponent:
		set += ", v.sourceCode = $sourceCode"
	}
	return fmt.Sprintf("MATCH (v:%s) WHERE elementId(v) = $id SET %s RETURN v", c.NativeType(), set)
}

// matchCypher binds v to the vertex with the scoping key of q.
func matchCypher(q common.VertexQuery) (string, map[string]any, error) {
	params := map[string]any{"name": q.Name}
	switch q.Category {
	case common.CategoryBusinessModule, common.CategoryMicroService:
		return fmt.Sprintf("MATCH (v:%s {name: $name})", q.Category.NativeType()), params, nil
	case common.CategorySystemModule:
		params["microService"] = q.MicroService
		return "MATCH (v:SystemModule {name: $name, microService: $microService})", params, nil
	case common.CategoryComponent:
		params["microService"] = q.MicroService
		params["systemModule"] = q.SystemModule
		return "MATCH (v:Component {name: $name, microService: $microService, systemModule: $systemModule})", params, nil
	}
	return "", nil, fmt.Errorf("neo4j: unknown category %q", q.Category)
}

func vertexProps(r *common.VertexRecord) map[string]any {
	p := map[string]any{
		"name":        r.Name,
		"type":        r.Type,
		"description": r.Description,
	}
	switch r.Category {
	case common.CategorySystemModule:
		bm := r.BusinessModules
		if bm == nil {
			bm = []string{}
		}
		p["microService"] = r.MicroService
		p["businessModules"] = bm
	case common.CategoryComponent:
		p["microService"] = r.MicroService
		p["systemModule"] = r.SystemModule
		p["sourceCode"] = r.SourceCode
	}
	return p
}

func vertexFromNode(n neo4j.Node) *common.VertexRecord {
	r := &common.VertexRecord{ID: n.ElementId}
	for _, l := range n.Labels {
		if c, ok := common.CategoryFromNativeType(l); ok {
			r.Category = c
			r.NativeType = l
			break
		}
	}
	str := func(k string) string {
		s, _ := n.Props[k].(string)
		return s
	}
	r.Name = str("name")
	r.Type = str("type")
	r.Description = str("description")
	r.SourceCode = str("sourceCode")
	r.MicroService = str("microService")
	r.SystemModule = str("systemModule")
	if list, ok := n.Props["businessModules"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				r.BusinessModules = append(r.BusinessModules, s)
			}
		}
	}
	return r
}

func pathFromValue(raw any) (common.Path, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected path value %T", raw)
	}
	p := make(common.Path, 0, len(list))
	for _, item := range list {
		id, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected path element %T", item)
		}
		p = append(p, id)
	}
	return p, nil
}
