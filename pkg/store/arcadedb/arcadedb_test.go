package arcadedb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/store"
)

type recordedRequest struct {
	Path    string
	Session string
	User    string
	Body    commandRequest
}

// fakeArcade answers every request with the next canned response for its
// operation and records what it got.
type fakeArcade struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string][]string
	status    int
}

func (f *fakeArcade) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, _, _ := r.BasicAuth()
	rec := recordedRequest{Path: r.URL.Path, Session: r.Header.Get(headerSessionID), User: user}
	_ = json.NewDecoder(r.Body).Decode(&rec.Body)
	f.requests = append(f.requests, rec)

	op := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/"), "/")[0]
	if op == "begin" {
		w.Header().Set(headerSessionID, "AS-0001")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":"Duplicated key","exception":"com.arcadedb.exception.DuplicatedKeyException"}`))
		return
	}
	queue := f.responses[op]
	body := `{"result":[]}`
	if len(queue) > 0 {
		body, f.responses[op] = queue[0], queue[1:]
	}
	_, _ = w.Write([]byte(body))
}

func newTestConnector(t *testing.T, f *fakeArcade) *Connector {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := NewArcadeDBConnector(NewConnectorParams{
		BaseURL:  srv.URL + "/api/v1",
		Database: "graph",
		Username: "root",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("NewArcadeDBConnector() error = %v", err)
	}
	return c
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	f := &fakeArcade{}
	c := newTestConnector(t, f)

	s, err := c.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if s != "AS-0001" {
		t.Fatalf("expected session AS-0001, got %q", s)
	}
	if err := c.CommitSession(ctx, s); err != nil {
		t.Fatalf("CommitSession() error = %v", err)
	}
	if err := c.RollbackSession(ctx, ""); err != nil {
		t.Fatalf("RollbackSession(\"\") error = %v", err)
	}
	if err := c.CommitSession(ctx, ""); err != nil {
		t.Fatalf("CommitSession(\"\") error = %v", err)
	}

	if len(f.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(f.requests))
	}
	if f.requests[0].Path != "/api/v1/begin/graph" || f.requests[0].Session != "" {
		t.Fatalf("unexpected begin request %+v", f.requests[0])
	}
	if f.requests[1].Path != "/api/v1/commit/graph" || f.requests[1].Session != "AS-0001" {
		t.Fatalf("unexpected commit request %+v", f.requests[1])
	}
	if f.requests[0].User != "root" {
		t.Fatalf("expected basic auth user root, got %q", f.requests[0].User)
	}
}

func TestCreateVertex_BindsParameters(t *testing.T) {
	ctx := context.Background()
	f := &fakeArcade{responses: map[string][]string{
		"command": {`{"result":[{"@rid":"#12:0","@type":"Component","@cat":"v","name":"it's","type":"Function","microService":"svc","systemModule":"mod","sourceCode":"x"}]}`},
	}}
	c := newTestConnector(t, f)

	v := &common.Component{
		VertexBase:   common.VertexBase{Name: "it's", Type: "Function"},
		MicroService: "svc",
		SystemModule: "mod",
		SourceCode:   "x",
	}
	rec, err := c.CreateVertex(ctx, v, "AS-0001")
	if err != nil {
		t.Fatalf("CreateVertex() error = %v", err)
	}
	if rec.ID != "#12:0" || rec.Category != common.CategoryComponent || rec.NativeType != "Component" {
		t.Fatalf("unexpected record %+v", rec)
	}

	req := f.requests[0]
	if req.Path != "/api/v1/command/graph" || req.Session != "AS-0001" {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.Body.Language != "sql" || req.Body.Command != createCommands[common.CategoryComponent] {
		t.Fatalf("unexpected command %q (%s)", req.Body.Command, req.Body.Language)
	}
	if strings.Contains(req.Body.Command, "it's") {
		t.Fatal("vertex name was interpolated into the command")
	}
	if req.Body.Params["name"] != "it's" || req.Body.Params["systemModule"] != "mod" {
		t.Fatalf("unexpected params %v", req.Body.Params)
	}
}

func TestGetVertex(t *testing.T) {
	ctx := context.Background()
	f := &fakeArcade{responses: map[string][]string{
		"query": {
			`{"result":[]}`,
			`{"result":[{"@rid":"#9:1","@type":"SystemModule","name":"mod","type":"Class","microService":"svc","businessModules":["billing"]}]}`,
		},
	}}
	c := newTestConnector(t, f)

	q := common.VertexQuery{Category: common.CategorySystemModule, Name: "mod", MicroService: "svc"}
	got, err := c.GetVertex(ctx, q, "")
	if err != nil || got != nil {
		t.Fatalf("expected no vertex, got %+v, %v", got, err)
	}
	got, err = c.GetVertex(ctx, q, "AS-0001")
	if err != nil {
		t.Fatalf("GetVertex() error = %v", err)
	}
	want := &common.VertexRecord{
		ID:              "#9:1",
		Category:        common.CategorySystemModule,
		NativeType:      "SystemModule",
		Name:            "mod",
		Type:            "Class",
		MicroService:    "svc",
		BusinessModules: []string{"billing"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GetVertex() = %+v, want %+v", got, want)
	}
	if f.requests[0].Session != "" || f.requests[1].Session != "AS-0001" {
		t.Fatal("session header not echoed on session-scoped read only")
	}
}

func TestBackendError(t *testing.T) {
	ctx := context.Background()
	f := &fakeArcade{status: http.StatusInternalServerError}
	c := newTestConnector(t, f)

	_, err := c.CreateVertex(ctx, &common.MicroService{VertexBase: common.VertexBase{Name: "svc", Type: "mono"}}, "AS-0001")
	var berr *store.BackendError
	if !errors.As(err, &berr) {
		t.Fatalf("expected *store.BackendError, got %v", err)
	}
	if berr.Operation != "command" || berr.Session != "AS-0001" || berr.Status != http.StatusInternalServerError {
		t.Fatalf("unexpected error fields %+v", berr)
	}
	if !strings.Contains(berr.Payload, `"name":"svc"`) {
		t.Fatalf("payload missing request body: %q", berr.Payload)
	}
	if !strings.Contains(berr.Response, "DuplicatedKeyException") {
		t.Fatalf("response missing backend body: %q", berr.Response)
	}
	if !strings.HasPrefix(err.Error(), "failed to command: ") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestMalformedResponse(t *testing.T) {
	f := &fakeArcade{responses: map[string][]string{"query": {`not json`}}}
	c := newTestConnector(t, f)

	_, err := c.GetVerticesByCategory(context.Background(), common.CategoryMicroService)
	if !errors.Is(err, store.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestCreateEdge_Dedup(t *testing.T) {
	ctx := context.Background()
	f := &fakeArcade{responses: map[string][]string{
		"query": {`{"result":[{"@rid":"#30:0","@type":"Uses","@out":"#1:0","@in":"#2:0"}]}`},
	}}
	c := newTestConnector(t, f)

	from := &common.VertexRecord{ID: "#1:0"}
	to := &common.VertexRecord{ID: "#2:0"}
	e, err := c.CreateEdgeByVertices(ctx, from, to, "AS-0001")
	if err != nil {
		t.Fatalf("CreateEdgeByVertices() error = %v", err)
	}
	want := &common.EdgeRecord{ID: "#30:0", Label: "Uses", From: "#1:0", To: "#2:0"}
	if !reflect.DeepEqual(e, want) {
		t.Fatalf("CreateEdgeByVertices() = %+v, want %+v", e, want)
	}
	for _, r := range f.requests {
		if strings.HasPrefix(r.Path, "/api/v1/command/") {
			t.Fatalf("edge was created although it existed: %+v", r)
		}
	}
	if f.requests[0].Body.Params["from"] != "#1:0" || f.requests[0].Session != "AS-0001" {
		t.Fatalf("unexpected dedup query %+v", f.requests[0])
	}
}

func TestGetDescendants(t *testing.T) {
	f := &fakeArcade{responses: map[string][]string{
		"query": {`{"result":[{"result":["#105:0"]},{"result":["#105:0","#114:0"]},{"result":["#105:0","#114:0","#111:0"]}]}`},
	}}
	c := newTestConnector(t, f)

	q := common.VertexQuery{Category: common.CategoryComponent, Name: "fn", MicroService: "svc", SystemModule: "mod"}
	got, err := c.GetDescendants(context.Background(), q)
	if err != nil {
		t.Fatalf("GetDescendants() error = %v", err)
	}
	want := []common.Path{{"#105:0"}, {"#105:0", "#114:0"}, {"#105:0", "#114:0", "#111:0"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GetDescendants() = %v, want %v", got, want)
	}

	req := f.requests[0].Body
	if req.Language != "gremlin" || !strings.Contains(req.Command, "__.out('Uses')") {
		t.Fatalf("unexpected traversal %q (%s)", req.Command, req.Language)
	}
	if strings.Contains(req.Command, "'fn'") {
		t.Fatal("scoping key was interpolated into the traversal")
	}
}
