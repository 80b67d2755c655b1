package scan

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/graph"
	"github.com/OFFIS-RIT/depgraph/pkg/loader/jsast"
	"github.com/OFFIS-RIT/depgraph/pkg/store/memory"
)

type repo map[string]string

func (r repo) List(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(r))
	for p := range r {
		out = append(out, p)
	}
	return out, nil
}

func (r repo) Read(ctx context.Context, p string) ([]byte, error) {
	content, ok := r[p]
	if !ok {
		return nil, errors.New("no such file: " + p)
	}
	return []byte(content), nil
}

type describer struct {
	mu    sync.Mutex
	calls int
	fail  string
}

func (d *describer) FunctionDescription(ctx context.Context, code string) (string, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.fail != "" && strings.Contains(code, d.fail) {
		return "", errors.New("model unavailable")
	}
	name := strings.Fields(strings.TrimPrefix(code, "async "))[1]
	return "Handles " + strings.Split(name, "(")[0], nil
}

var sampleRepo = repo{
	"edge/edge.routes.js": `import * as edgeController from './edge.controller';
import { VERTEX_QUERY_SCHEMA } from '../../../graph-builder.js';

const routes = {
  basePath: '/edge',
  description: 'Edge endpoints',
  routes: [
    { method: 'get', path: '/', action: [edgeController.getEdge], description: 'Load an edge',
      validators: { query: VERTEX_QUERY_SCHEMA } },
    { method: 'post', path: '/', action: [edgeController.createEdge, audit.log], description: 'Create an edge' }
  ]
};

export default routes;
`,
	"edge/edge.controller.js": `import * as edgeService from './edge.service.js';

async function getEdge(req, res) {
  res.json(await edgeService.getEdge(req.query.from, req.query.to));
}

async function createEdge(req, res) {
  res.json(await edgeService.createEdge(req.body));
}

export { getEdge, createEdge };
`,
	"util/config.js": `export const description = 'Runtime settings';
export const port = 8080;
export function brokenHelper() { return port; }
`,
	"stale.routes.js":           `export default { routes: [] };`,
	"node_modules/joi/index.js": `module.exports = {};`,
	"README.md":                 `# sample`,
}

func newScanner(t *testing.T, d Describer) (*Scanner, *graph.Builder) {
	t.Helper()
	b, err := graph.NewBuilder(graph.NewBuilderParams{Connector: memory.New()})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	s, err := NewScanner(NewScannerParams{
		Creator:      b,
		Describer:    d,
		Loader:       sampleRepo,
		MicroService: "dep-graph-builder",
		Description:  "Dependency graph builder",
		Concurrency:  2,
	})
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	return s, b
}

func TestRun(t *testing.T) {
	d := &describer{fail: "brokenHelper"}
	s, b := newScanner(t, d)
	ctx := context.Background()

	res, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Modules != 3 || res.Routes != 2 {
		t.Fatalf("Run() modules=%d routes=%d, want 3 and 2", res.Modules, res.Routes)
	}
	if !reflect.DeepEqual(res.Unresolved, []string{"POST /edge/ -> audit.log"}) {
		t.Fatalf("Unresolved = %v", res.Unresolved)
	}
	if !reflect.DeepEqual(res.Undescribed, []string{"util/config.js#brokenHelper"}) {
		t.Fatalf("Undescribed = %v", res.Undescribed)
	}
	if d.calls != 3 {
		t.Fatalf("describer called %d times, want 3", d.calls)
	}

	getEdge, err := b.GetVertex(ctx, common.VertexQuery{
		Category:     common.CategoryComponent,
		Name:         "getEdge",
		MicroService: "dep-graph-builder",
		SystemModule: "edge/edge.controller.js",
	})
	if err != nil {
		t.Fatalf("GetVertex(getEdge) error = %v", err)
	}
	if getEdge.Description != "Handles getEdge" || !strings.HasPrefix(getEdge.SourceCode, "async function getEdge") {
		t.Fatalf("getEdge = %+v", getEdge)
	}

	api, err := b.GetVertex(ctx, common.VertexQuery{
		Category:     common.CategoryComponent,
		Name:         "GET /edge/",
		MicroService: "dep-graph-builder",
		SystemModule: "edge/edge.routes.js",
	})
	if err != nil {
		t.Fatalf("GetVertex(GET /edge/) error = %v", err)
	}
	if api.Type != TypeAPI || !strings.Contains(api.SourceCode, "VERTEX_QUERY_SCHEMA") {
		t.Fatalf("api = %+v", api)
	}

	paths, err := b.GetDescendants(ctx, api.Key())
	if err != nil {
		t.Fatalf("GetDescendants() error = %v", err)
	}
	want := []common.Path{{api.ID}, {api.ID, getEdge.ID}}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("GetDescendants() = %v, want %v", paths, want)
	}

	port, err := b.GetVertex(ctx, common.VertexQuery{
		Category:     common.CategoryComponent,
		Name:         "port",
		MicroService: "dep-graph-builder",
		SystemModule: "util/config.js",
	})
	if err != nil {
		t.Fatalf("GetVertex(port) error = %v", err)
	}
	if port.Type != TypeField || port.Description != "port" || port.SourceCode != "8080" {
		t.Fatalf("port = %+v", port)
	}

	module, err := b.GetVertex(ctx, common.VertexQuery{
		Category:     common.CategorySystemModule,
		Name:         "util/config.js",
		MicroService: "dep-graph-builder",
	})
	if err != nil {
		t.Fatalf("GetVertex(util/config.js) error = %v", err)
	}
	if module.Description != "Runtime settings" {
		t.Fatalf("module description = %q", module.Description)
	}

	ancestors, err := b.GetAncestors(ctx, module.Key())
	if err != nil {
		t.Fatalf("GetAncestors() error = %v", err)
	}
	if len(ancestors) != 2 {
		t.Fatalf("expected the module and its micro service, got %v", ancestors)
	}
}

func TestRunWithoutDescriber(t *testing.T) {
	s, b := newScanner(t, nil)
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	fn, err := b.GetVertex(context.Background(), common.VertexQuery{
		Category:     common.CategoryComponent,
		Name:         "createEdge",
		MicroService: "dep-graph-builder",
		SystemModule: "edge/edge.controller.js",
	})
	if err != nil {
		t.Fatalf("GetVertex() error = %v", err)
	}
	if fn.Description != "createEdge" {
		t.Fatalf("description = %q, want the function name", fn.Description)
	}
}

func TestRunCanceled(t *testing.T) {
	s, _ := newScanner(t, &describer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Run(ctx); err == nil {
		t.Fatal("expected an error for a canceled context")
	}
}

func TestNewScannerRequires(t *testing.T) {
	tests := []struct {
		name   string
		params NewScannerParams
	}{
		{name: "creator", params: NewScannerParams{Loader: repo{}, MicroService: "svc"}},
		{name: "loader", params: NewScannerParams{Creator: &graph.Builder{}, MicroService: "svc"}},
		{name: "micro service", params: NewScannerParams{Creator: &graph.Builder{}, Loader: repo{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewScanner(tt.params); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func parsedModule(local, imported, source string) *jsast.Module {
	return &jsast.Module{Imports: []jsast.Import{{Local: local, Imported: imported, Source: source}}}
}

func TestResolveAction(t *testing.T) {
	known := map[string]bool{
		"edge/edge.controller.js": true,
		"shared/index.js":         true,
	}
	pf := parsedFile{module: nil}
	pf.file.Path = "edge/edge.routes.js"

	tests := []struct {
		action, source, imported string
		wantTarget, wantFn       string
		ok                       bool
	}{
		{action: "ctrl.getEdge", source: "./edge.controller", imported: "*", wantTarget: "edge/edge.controller.js", wantFn: "getEdge", ok: true},
		{action: "ctrl.getEdge", source: "./edge.controller.js", imported: "default", wantTarget: "edge/edge.controller.js", wantFn: "getEdge", ok: true},
		{action: "ctrl.list", source: "../shared", imported: "*", wantTarget: "shared/index.js", wantFn: "list", ok: true},
		{action: "ctrl.list", source: "express", imported: "*", ok: false},
		{action: "ctrl.list", source: "./missing.js", imported: "*", ok: false},
		{action: "other.list", source: "./edge.controller", imported: "*", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.action+" from "+tt.source, func(t *testing.T) {
			pf.module = parsedModule("ctrl", tt.imported, tt.source)
			target, fn, ok := resolveAction(pf, tt.action, known)
			if target != tt.wantTarget || fn != tt.wantFn || ok != tt.ok {
				t.Fatalf("resolveAction() = %q, %q, %v; want %q, %q, %v", target, fn, ok, tt.wantTarget, tt.wantFn, tt.ok)
			}
		})
	}
}
