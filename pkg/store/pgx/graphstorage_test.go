package pgx

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/store"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		opts store.ConnectionOptions
		want string
	}{
		{
			name: "with credentials",
			opts: store.ConnectionOptions{Host: "db", Port: 5433, Database: "graph", Username: "app", Password: "p@ss"},
			want: "postgres://app:p%40ss@db:5433/graph",
		},
		{
			name: "default port",
			opts: store.ConnectionOptions{Host: "localhost", Database: "graph"},
			want: "postgres://localhost:5432/graph",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildDSN(tt.opts); got != tt.want {
				t.Fatalf("buildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVertexRowRecord(t *testing.T) {
	row := vertexRow{
		ID:           42,
		Category:     "component",
		Name:         "fn",
		Type:         "Function",
		SourceCode:   "function fn() {}",
		MicroService: "svc",
		SystemModule: "mod",
	}
	want := &common.VertexRecord{
		ID:           "42",
		Category:     common.CategoryComponent,
		NativeType:   "Component",
		Name:         "fn",
		Type:         "Function",
		SourceCode:   "function fn() {}",
		MicroService: "svc",
		SystemModule: "mod",
	}
	if got := row.record(); !reflect.DeepEqual(got, want) {
		t.Fatalf("record() = %+v, want %+v", got, want)
	}
}

func TestInsertArgs(t *testing.T) {
	r := common.RecordOf(&common.SystemModule{
		VertexBase:   common.VertexBase{Name: "mod", Type: "Class"},
		MicroService: "svc",
	})
	args := insertArgs(r)
	if len(args) != 8 {
		t.Fatalf("expected 8 args, got %d", len(args))
	}
	if bm, ok := args[5].([]string); !ok || bm == nil {
		t.Fatalf("business modules must be a non-nil slice, got %#v", args[5])
	}
	if args[6] != "svc" || args[7] != "" {
		t.Fatalf("unexpected scoping args %v", args[6:])
	}
}

func TestParseIDs(t *testing.T) {
	got, err := parseIDs([]string{"1", "22"})
	if err != nil || !reflect.DeepEqual(got, []int64{1, 22}) {
		t.Fatalf("parseIDs() = %v, %v", got, err)
	}
	if _, err := parseIDs([]string{"#1:0"}); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}

func TestPathOf(t *testing.T) {
	if got := pathOf([]int64{3, 7}); !reflect.DeepEqual(got, common.Path{"3", "7"}) {
		t.Fatalf("pathOf() = %v", got)
	}
}

func TestEmptySessionIsNoop(t *testing.T) {
	s, _ := NewGraphDBStorageWithConnection(context.Background(), nil)
	if err := s.CommitSession(context.Background(), ""); err != nil {
		t.Fatalf("CommitSession(\"\") error = %v", err)
	}
	if err := s.RollbackSession(context.Background(), ""); err != nil {
		t.Fatalf("RollbackSession(\"\") error = %v", err)
	}
	if err := s.RollbackSession(context.Background(), "gone"); !errors.Is(err, store.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
