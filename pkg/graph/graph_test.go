package graph

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/schema"
	"github.com/OFFIS-RIT/depgraph/pkg/store"
	"github.com/OFFIS-RIT/depgraph/pkg/store/memory"
)

// faultyConnector fails CreateVertex for one vertex name and can be told to
// fail rollbacks too.
type faultyConnector struct {
	store.Connector
	failOn      string
	rollbackErr error
	sessions    int
	rollbacks   int
}

func (f *faultyConnector) StartSession(ctx context.Context) (store.Session, error) {
	f.sessions++
	return f.Connector.StartSession(ctx)
}

func (f *faultyConnector) CreateVertex(ctx context.Context, v common.Vertex, s store.Session) (*common.VertexRecord, error) {
	if v.Base().Name == f.failOn {
		return nil, &store.BackendError{Operation: "create vertex", Session: s, Err: errors.New("disk full")}
	}
	return f.Connector.CreateVertex(ctx, v, s)
}

func (f *faultyConnector) RollbackSession(ctx context.Context, s store.Session) error {
	f.rollbacks++
	if f.rollbackErr != nil {
		return f.rollbackErr
	}
	return f.Connector.RollbackSession(ctx, s)
}

func newTestBuilder(t *testing.T, c store.Connector) *Builder {
	t.Helper()
	b, err := NewBuilder(NewBuilderParams{Connector: c})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	return b
}

func svcTree() common.Vertex {
	return &common.MicroService{
		VertexBase: common.VertexBase{
			Name: "svc",
			Type: "mono",
			Dependencies: []common.Vertex{
				&common.SystemModule{
					VertexBase: common.VertexBase{
						Name: "mod",
						Type: "Class",
						Dependencies: []common.Vertex{
							&common.Component{
								VertexBase: common.VertexBase{Name: "fn", Type: "Function"},
								SourceCode: "function fn() {}",
							},
						},
					},
				},
			},
		},
	}
}

func names(recs []*common.VertexRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Name
	}
	return out
}

func TestFillDerivedFields(t *testing.T) {
	tests := []struct {
		name       string
		tree       common.Vertex
		wantServ   string
		wantModule string
	}{
		{
			name: "component under system module",
			tree: &common.SystemModule{
				VertexBase:   common.VertexBase{Name: "A", Type: "Class", Dependencies: []common.Vertex{&common.Component{VertexBase: common.VertexBase{Name: "B", Type: "Function"}}}},
				MicroService: "svc",
			},
			wantServ:   "svc",
			wantModule: "A",
		},
		{
			name: "explicit values win",
			tree: &common.SystemModule{
				VertexBase: common.VertexBase{Name: "A", Type: "Class", Dependencies: []common.Vertex{&common.Component{
					VertexBase:   common.VertexBase{Name: "B", Type: "Function"},
					MicroService: "other",
					SystemModule: "lib",
				}}},
				MicroService: "svc",
			},
			wantServ:   "other",
			wantModule: "lib",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			FillDerivedFields(tt.tree)
			FillDerivedFields(tt.tree)
			child := tt.tree.Base().Dependencies[0].(*common.Component)
			if child.MicroService != tt.wantServ {
				t.Errorf("microService = %q, want %q", child.MicroService, tt.wantServ)
			}
			if child.SystemModule != tt.wantModule {
				t.Errorf("systemModule = %q, want %q", child.SystemModule, tt.wantModule)
			}
		})
	}

	tree := svcTree()
	FillDerivedFields(tree)
	mod := tree.Base().Dependencies[0].(*common.SystemModule)
	if mod.MicroService != "svc" {
		t.Fatalf("system module microService = %q, want svc", mod.MicroService)
	}
	fn := mod.Dependencies[0].(*common.Component)
	if fn.MicroService != "svc" || fn.SystemModule != "mod" {
		t.Fatalf("component scoping = %q/%q, want svc/mod", fn.MicroService, fn.SystemModule)
	}
}

func TestFillDerivedFieldsSystemModule(t *testing.T) {
	tests := []struct {
		name   string
		parent common.Vertex
		want   string
	}{
		{
			name:   "under micro service",
			parent: &common.MicroService{VertexBase: common.VertexBase{Name: "svc", Type: "mono"}},
			want:   "svc",
		},
		{
			name:   "under business module",
			parent: &common.BusinessModule{VertexBase: common.VertexBase{Name: "billing", Type: "Domain"}},
			want:   "billing",
		},
		{
			name: "under system module",
			parent: &common.SystemModule{
				VertexBase:   common.VertexBase{Name: "outer", Type: "Class"},
				MicroService: "svc",
			},
			want: "outer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := &common.SystemModule{VertexBase: common.VertexBase{Name: "mod", Type: "Class"}}
			tt.parent.Base().Dependencies = []common.Vertex{mod}
			FillDerivedFields(tt.parent)
			FillDerivedFields(tt.parent)
			if mod.MicroService != tt.want {
				t.Fatalf("microService = %q, want %q", mod.MicroService, tt.want)
			}
		})
	}
}

func TestCreateVertexUnderBusinessModule(t *testing.T) {
	b := newTestBuilder(t, memory.New())
	tree := &common.BusinessModule{VertexBase: common.VertexBase{
		Name: "billing",
		Type: "Domain",
		Dependencies: []common.Vertex{
			&common.SystemModule{VertexBase: common.VertexBase{Name: "invoice.js", Type: "Class"}},
		},
	}}
	recs, err := b.CreateVertex(context.Background(), tree, "")
	if err != nil {
		t.Fatalf("CreateVertex() error = %v", err)
	}
	if len(recs) != 2 || recs[1].MicroService != "billing" {
		t.Fatalf("CreateVertex() = %+v, want system module scoped to billing", recs)
	}
}

func TestCreateVertex_EndToEnd(t *testing.T) {
	ctx := context.Background()
	conn := memory.New()
	b := newTestBuilder(t, conn)

	recs, err := b.CreateVertex(ctx, svcTree(), "")
	if err != nil {
		t.Fatalf("CreateVertex() error = %v", err)
	}
	if got := names(recs); !reflect.DeepEqual(got, []string{"svc", "mod", "fn"}) {
		t.Fatalf("CreateVertex() order = %v, want [svc mod fn]", got)
	}
	svc, mod, fn := recs[0], recs[1], recs[2]
	if mod.MicroService != "svc" {
		t.Errorf("mod.microService = %q", mod.MicroService)
	}
	if fn.MicroService != "svc" || fn.SystemModule != "mod" {
		t.Errorf("fn scoping = %q/%q", fn.MicroService, fn.SystemModule)
	}
	if fn.Category != common.CategoryComponent {
		t.Errorf("fn.category = %q", fn.Category)
	}

	for _, pair := range [][2]*common.VertexRecord{{svc, mod}, {mod, fn}} {
		e, err := b.GetEdgeByVertices(ctx, pair[0].Key(), pair[1].Key())
		if err != nil {
			t.Fatalf("GetEdgeByVertices() error = %v", err)
		}
		if e == nil || e.From != pair[0].ID || e.To != pair[1].ID || e.Label != common.EdgeLabel {
			t.Fatalf("missing Uses edge %s -> %s: %+v", pair[0].Name, pair[1].Name, e)
		}
	}
	if e, _ := b.GetEdgeByVertices(ctx, svc.Key(), fn.Key()); e != nil {
		t.Fatalf("unexpected edge svc -> fn: %+v", e)
	}

	paths, err := b.GetDescendants(ctx, svc.Key())
	if err != nil {
		t.Fatalf("GetDescendants() error = %v", err)
	}
	want := []common.Path{{svc.ID}, {svc.ID, mod.ID}, {svc.ID, mod.ID, fn.ID}}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("GetDescendants() = %v, want %v", paths, want)
	}
}

func TestCreateVertex_Idempotent(t *testing.T) {
	ctx := context.Background()
	conn := memory.New()
	b := newTestBuilder(t, conn)

	first, err := b.CreateVertex(ctx, svcTree(), "")
	if err != nil {
		t.Fatalf("first CreateVertex() error = %v", err)
	}
	second, err := b.CreateVertex(ctx, svcTree(), "")
	if err != nil {
		t.Fatalf("second CreateVertex() error = %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("expected %d records, got %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("record %d: id %s != %s", i, first[i].ID, second[i].ID)
		}
	}

	for _, c := range common.Categories {
		all, _ := b.GetVerticesByCategory(ctx, c)
		if c != common.CategoryBusinessModule && len(all) != 1 {
			t.Errorf("category %s: expected 1 vertex, got %d", c, len(all))
		}
	}
	paths, _ := b.GetDescendants(ctx, first[0].Key())
	if len(paths) != 3 {
		t.Fatalf("expected edges not to be doubled, got paths %v", paths)
	}
}

func TestCreateVertex_MergePolicy(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilder(t, memory.New())

	fn := func(desc, src string) common.Vertex {
		return &common.Component{
			VertexBase:   common.VertexBase{Name: "fn", Type: "Function", Description: desc},
			MicroService: "svc",
			SystemModule: "mod",
			SourceCode:   src,
		}
	}

	if _, err := b.CreateVertex(ctx, fn("first", "a()"), ""); err != nil {
		t.Fatal(err)
	}
	recs, err := b.CreateVertex(ctx, fn("", ""), "")
	if err != nil {
		t.Fatal(err)
	}
	if recs[0].Description != "first" || recs[0].SourceCode != "a()" {
		t.Fatalf("empty incoming values cleared stored ones: %+v", recs[0])
	}
	recs, err = b.CreateVertex(ctx, fn("second", "b()"), "")
	if err != nil {
		t.Fatal(err)
	}
	if recs[0].Description != "second" || recs[0].SourceCode != "b()" {
		t.Fatalf("non-empty incoming values not merged: %+v", recs[0])
	}
}

func TestCreateVertex_Atomicity(t *testing.T) {
	ctx := context.Background()
	conn := &faultyConnector{Connector: memory.New(), failOn: "b"}
	b := newTestBuilder(t, conn)

	tree := &common.SystemModule{
		VertexBase: common.VertexBase{
			Name: "mod",
			Type: "Class",
			Dependencies: []common.Vertex{
				&common.Component{VertexBase: common.VertexBase{Name: "a", Type: "Function"}},
				&common.Component{VertexBase: common.VertexBase{Name: "b", Type: "Function"}},
				&common.Component{VertexBase: common.VertexBase{Name: "c", Type: "Function"}},
			},
		},
		MicroService: "svc",
	}

	_, err := b.CreateVertex(ctx, tree, "")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var terr *TransactionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransactionError, got %T", err)
	}
	var berr *store.BackendError
	if !errors.As(err, &berr) {
		t.Fatalf("expected the root cause to be a *store.BackendError, got %v", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("error does not name the root cause: %q", err.Error())
	}
	if conn.rollbacks != 1 {
		t.Fatalf("expected 1 rollback, got %d", conn.rollbacks)
	}

	all, _ := b.GetVerticesByCategory(ctx, common.CategoryComponent)
	if len(all) != 0 {
		t.Fatalf("expected no components after rollback, got %v", names(all))
	}
	mods, _ := b.GetVerticesByCategory(ctx, common.CategorySystemModule)
	if len(mods) != 0 {
		t.Fatalf("expected no system module after rollback, got %v", names(mods))
	}
}

func TestCreateVertex_RollbackFailure(t *testing.T) {
	ctx := context.Background()
	conn := &faultyConnector{Connector: memory.New(), failOn: "svc", rollbackErr: errors.New("connection reset")}
	b := newTestBuilder(t, conn)

	_, err := b.CreateVertex(ctx, svcTree(), "")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "failed to create vertex: failed to rollback due to connection reset after: ") {
		t.Fatalf("unexpected message %q", msg)
	}
	if !strings.Contains(msg, "disk full") {
		t.Fatalf("message lost the root cause: %q", msg)
	}
}

func TestCreateVertex_ValidationFailsBeforeSession(t *testing.T) {
	ctx := context.Background()
	conn := &faultyConnector{Connector: memory.New()}
	b := newTestBuilder(t, conn)

	// A component below a business module has no micro service to inherit.
	tree := &common.BusinessModule{
		VertexBase: common.VertexBase{
			Name:         "billing",
			Type:         "Domain",
			Dependencies: []common.Vertex{&common.Component{VertexBase: common.VertexBase{Name: "fn", Type: "Function"}}},
		},
	}

	_, err := b.CreateVertex(ctx, tree, "")
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *schema.ValidationError, got %v", err)
	}
	if conn.sessions != 0 {
		t.Fatalf("expected no session to be opened, got %d", conn.sessions)
	}
}

func TestCreateVertex_CallerOwnsSession(t *testing.T) {
	ctx := context.Background()
	conn := memory.New()
	b := newTestBuilder(t, conn)

	s, err := conn.StartSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.CreateVertex(ctx, svcTree(), s); err != nil {
		t.Fatalf("CreateVertex() error = %v", err)
	}
	if v, _ := b.GetVertex(ctx, common.VertexQuery{Category: common.CategoryMicroService, Name: "svc"}); v != nil {
		t.Fatal("vertex visible before the caller committed")
	}
	if err := conn.CommitSession(ctx, s); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.GetVertex(ctx, common.VertexQuery{Category: common.CategoryMicroService, Name: "svc"}); v == nil {
		t.Fatal("vertex missing after commit")
	}
}

func TestCreateEdgeByVertices(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilder(t, memory.New())

	if _, err := b.CreateVertex(ctx, svcTree(), ""); err != nil {
		t.Fatal(err)
	}
	svc := common.VertexQuery{Category: common.CategoryMicroService, Name: "svc"}
	fn := common.VertexQuery{Category: common.CategoryComponent, Name: "fn", MicroService: "svc", SystemModule: "mod"}

	e1, err := b.CreateEdgeByVertices(ctx, svc, fn, "")
	if err != nil {
		t.Fatalf("CreateEdgeByVertices() error = %v", err)
	}
	e2, err := b.CreateEdgeByVertices(ctx, svc, fn, "")
	if err != nil {
		t.Fatalf("second CreateEdgeByVertices() error = %v", err)
	}
	if !reflect.DeepEqual(e1, e2) {
		t.Fatalf("expected the same edge twice, got %+v and %+v", e1, e2)
	}

	missing := common.VertexQuery{Category: common.CategoryComponent, Name: "nope", MicroService: "svc", SystemModule: "mod"}
	_, err = b.CreateEdgeByVertices(ctx, svc, missing, "")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *NotFoundError, got %v", err)
	}
	if nf.Side != "to" {
		t.Fatalf("expected side to, got %q", nf.Side)
	}
	if !strings.Contains(err.Error(), "to") || !strings.Contains(err.Error(), `"name":"nope"`) {
		t.Fatalf("message does not name the missing side and query: %q", err.Error())
	}
}

func TestGetDescendants_DepthZero(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilder(t, memory.New())

	recs, err := b.CreateVertex(ctx, &common.MicroService{VertexBase: common.VertexBase{Name: "leaf", Type: "mono"}}, "")
	if err != nil {
		t.Fatal(err)
	}
	paths, err := b.GetDescendants(ctx, recs[0].Key())
	if err != nil {
		t.Fatalf("GetDescendants() error = %v", err)
	}
	if !reflect.DeepEqual(paths, []common.Path{{recs[0].ID}}) {
		t.Fatalf("GetDescendants() = %v, want one path with the vertex itself", paths)
	}

	_, err = b.GetAncestors(ctx, common.VertexQuery{Category: common.CategoryMicroService, Name: "ghost"})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *NotFoundError for unknown vertex, got %v", err)
	}
}

func TestGetVertex_InvalidQuery(t *testing.T) {
	b := newTestBuilder(t, memory.New())
	_, err := b.GetVertex(context.Background(), common.VertexQuery{Category: common.CategoryComponent, Name: "fn"})
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *schema.ValidationError, got %v", err)
	}
}
