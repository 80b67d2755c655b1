package arcadedb

import (
	"fmt"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
)

const initScript = `
CREATE EDGE TYPE Uses IF NOT EXISTS;

CREATE VERTEX TYPE VertexBase IF NOT EXISTS;
CREATE PROPERTY VertexBase.name IF NOT EXISTS STRING;
CREATE PROPERTY VertexBase.type IF NOT EXISTS STRING;
CREATE PROPERTY VertexBase.description IF NOT EXISTS STRING;

CREATE VERTEX TYPE BusinessModule IF NOT EXISTS EXTENDS VertexBase;
CREATE VERTEX TYPE MicroService IF NOT EXISTS EXTENDS VertexBase;

CREATE VERTEX TYPE SystemModule IF NOT EXISTS EXTENDS VertexBase;
CREATE PROPERTY SystemModule.microService IF NOT EXISTS STRING;
CREATE PROPERTY SystemModule.businessModules IF NOT EXISTS LIST OF STRING;

CREATE VERTEX TYPE Component IF NOT EXISTS EXTENDS VertexBase;
CREATE PROPERTY Component.microService IF NOT EXISTS STRING;
CREATE PROPERTY Component.systemModule IF NOT EXISTS STRING;
CREATE PROPERTY Component.sourceCode IF NOT EXISTS STRING;

CREATE INDEX IF NOT EXISTS ON BusinessModule (name) UNIQUE;
CREATE INDEX IF NOT EXISTS ON MicroService (name) UNIQUE;
CREATE INDEX IF NOT EXISTS ON SystemModule (microService, name) UNIQUE;
CREATE INDEX IF NOT EXISTS ON Component (microService, systemModule, name) UNIQUE;`

// Command text is fixed per category. Values are always bound as named
// parameters.
var createCommands = map[common.Category]string{
	common.CategoryBusinessModule: "CREATE VERTEX BusinessModule SET name = :name, type = :type, description = :description",
	common.CategoryMicroService:   "CREATE VERTEX MicroService SET name = :name, type = :type, description = :description",
	common.CategorySystemModule:   "CREATE VERTEX SystemModule SET name = :name, type = :type, description = :description, businessModules = :businessModules, microService = :microService",
	common.CategoryComponent:      "CREATE VERTEX Component SET name = :name, type = :type, description = :description, microService = :microService, systemModule = :systemModule, sourceCode = :sourceCode",
}

var updateCommands = map[common.Category]string{
	common.CategoryBusinessModule: "UPDATE BusinessModule SET description = :description RETURN AFTER WHERE @rid = :rid",
	common.CategoryMicroService:   "UPDATE MicroService SET description = :description RETURN AFTER WHERE @rid = :rid",
	common.CategorySystemModule:   "UPDATE SystemModule SET description = :description, businessModules = :businessModules RETURN AFTER WHERE @rid = :rid",
	common.CategoryComponent:      "UPDATE Component SET description = :description, sourceCode = :sourceCode RETURN AFTER WHERE @rid = :rid",
}

var vertexQueries = map[common.Category]string{
	common.CategoryBusinessModule: "SELECT FROM BusinessModule WHERE name = :name",
	common.CategoryMicroService:   "SELECT FROM MicroService WHERE name = :name",
	common.CategorySystemModule:   "SELECT FROM SystemModule WHERE name = :name AND microService = :microService",
	common.CategoryComponent:      "SELECT FROM Component WHERE name = :name AND microService = :microService AND systemModule = :systemModule",
}

var categoryQueries = map[common.Category]string{
	common.CategoryBusinessModule: "SELECT FROM BusinessModule",
	common.CategoryMicroService:   "SELECT FROM MicroService",
	common.CategorySystemModule:   "SELECT FROM SystemModule",
	common.CategoryComponent:      "SELECT FROM Component",
}

const (
	verticesByIDsQuery = "SELECT FROM VertexBase WHERE @rid IN :ids"
	edgeQuery          = "SELECT FROM Uses WHERE @out = :from AND @in = :to"
	createEdgeCommand  = "CREATE EDGE Uses FROM (SELECT FROM VertexBase WHERE @rid = :from) TO (SELECT FROM VertexBase WHERE @rid = :to)"
)

// gremlinStart selects the start vertex of a traversal by scoping key, with
// the key values bound as script variables.
var gremlinStart = map[common.Category]string{
	common.CategoryBusinessModule: "g.V().hasLabel('BusinessModule').has('name', name)",
	common.CategoryMicroService:   "g.V().hasLabel('MicroService').has('name', name)",
	common.CategorySystemModule:   "g.V().hasLabel('SystemModule').has('name', name).has('microService', microService)",
	common.CategoryComponent:      "g.V().hasLabel('Component').has('name', name).has('microService', microService).has('systemModule', systemModule)",
}

func pathQuery(c common.Category, direction string) (string, error) {
	start, ok := gremlinStart[c]
	if !ok {
		return "", fmt.Errorf("unknown category %q", c)
	}
	return fmt.Sprintf("%s.emit().repeat(__.%s('Uses').simplePath()).path()", start, direction), nil
}

func vertexParams(r *common.VertexRecord) map[string]any {
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
		p["businessModules"] = bm
		p["microService"] = r.MicroService
	case common.CategoryComponent:
		p["microService"] = r.MicroService
		p["systemModule"] = r.SystemModule
		p["sourceCode"] = r.SourceCode
	}
	if r.ID != "" {
		p["rid"] = r.ID
	}
	return p
}

func queryParams(q common.VertexQuery) map[string]any {
	p := map[string]any{"name": q.Name}
	switch q.Category {
	case common.CategorySystemModule:
		p["microService"] = q.MicroService
	case common.CategoryComponent:
		p["microService"] = q.MicroService
		p["systemModule"] = q.SystemModule
	}
	return p
}
