// Package memory is an in-process connector. Every session works on a
// snapshot of the committed graph taken at StartSession and keeps a log of
// its writes; CommitSession replays the log onto the committed graph and
// fails if that would break a scoping key.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type graphState struct {
	vertices map[string]*common.VertexRecord
	order    []string
	keys     map[common.VertexQuery]string
	edges    map[[2]string]*common.EdgeRecord
	out      map[string][]string
	in       map[string][]string
}

func newGraphState() *graphState {
	return &graphState{
		vertices: make(map[string]*common.VertexRecord),
		keys:     make(map[common.VertexQuery]string),
		edges:    make(map[[2]string]*common.EdgeRecord),
		out:      make(map[string][]string),
		in:       make(map[string][]string),
	}
}

func (g *graphState) clone() *graphState {
	c := newGraphState()
	for id, v := range g.vertices {
		c.vertices[id] = store.Clone(v)
	}
	c.order = slices.Clone(g.order)
	for k, id := range g.keys {
		c.keys[k] = id
	}
	for k, e := range g.edges {
		ec := *e
		c.edges[k] = &ec
	}
	for k, ids := range g.out {
		c.out[k] = slices.Clone(ids)
	}
	for k, ids := range g.in {
		c.in[k] = slices.Clone(ids)
	}
	return c
}

// write is one entry of a session log; exactly one field is set.
type write struct {
	vertex *common.VertexRecord
	edge   *common.EdgeRecord
}

func (g *graphState) apply(w write) error {
	if w.vertex != nil {
		v := store.Clone(w.vertex)
		key := v.Key()
		if existing, ok := g.vertices[v.ID]; ok {
			delete(g.keys, existing.Key())
			g.vertices[v.ID] = v
			g.keys[key] = v.ID
			return nil
		}
		if other, ok := g.keys[key]; ok && other != v.ID {
			return fmt.Errorf("duplicate key %s %q violates unique index", key.Category, key.Name)
		}
		g.vertices[v.ID] = v
		g.keys[key] = v.ID
		g.order = append(g.order, v.ID)
		return nil
	}

	e := *w.edge
	if _, ok := g.vertices[e.From]; !ok {
		return fmt.Errorf("vertex %s does not exist", e.From)
	}
	if _, ok := g.vertices[e.To]; !ok {
		return fmt.Errorf("vertex %s does not exist", e.To)
	}
	pair := [2]string{e.From, e.To}
	if _, ok := g.edges[pair]; ok {
		return nil
	}
	g.edges[pair] = &e
	g.out[e.From] = append(g.out[e.From], e.To)
	g.in[e.To] = append(g.in[e.To], e.From)
	return nil
}

type session struct {
	view *graphState
	log  []write
}

// Connector keeps the whole graph in memory.
type Connector struct {
	mu        sync.Mutex
	committed *graphState
	sessions  map[store.Session]*session
}

func New() *Connector {
	return &Connector{
		committed: newGraphState(),
		sessions:  make(map[store.Session]*session),
	}
}

// NewConnector matches store.Factory.
func NewConnector(_ context.Context, _ store.ConnectionOptions) (store.Connector, error) {
	return New(), nil
}

func (c *Connector) InitGraph(ctx context.Context) error { return nil }

func (c *Connector) StartSession(ctx context.Context) (store.Session, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", &store.BackendError{Operation: "begin", Err: err}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	token := store.Session(id)
	c.sessions[token] = &session{view: c.committed.clone()}
	return token, nil
}

func (c *Connector) CommitSession(ctx context.Context, s store.Session) error {
	if s == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[s]
	if !ok {
		return &store.BackendError{Operation: "commit", Session: s, Err: store.ErrNoSession}
	}
	delete(c.sessions, s)

	next := c.committed.clone()
	for _, w := range sess.log {
		if err := next.apply(w); err != nil {
			return &store.BackendError{Operation: "commit", Session: s, Err: err}
		}
	}
	c.committed = next
	return nil
}

func (c *Connector) RollbackSession(ctx context.Context, s store.Session) error {
	if s == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[s]; !ok {
		return &store.BackendError{Operation: "rollback", Session: s, Err: store.ErrNoSession}
	}
	delete(c.sessions, s)
	return nil
}

// record applies w to the session view and logs it, or applies it to the
// committed graph directly when s is empty. Callers hold c.mu.
func (c *Connector) record(op string, s store.Session, w write) error {
	if s == "" {
		if err := c.committed.apply(w); err != nil {
			return &store.BackendError{Operation: op, Err: err}
		}
		return nil
	}
	sess, ok := c.sessions[s]
	if !ok {
		return &store.BackendError{Operation: op, Session: s, Err: store.ErrNoSession}
	}
	if err := sess.view.apply(w); err != nil {
		return &store.BackendError{Operation: op, Session: s, Err: err}
	}
	sess.log = append(sess.log, w)
	return nil
}

// graph returns the state visible to s. Callers hold c.mu.
func (c *Connector) graph(op string, s store.Session) (*graphState, error) {
	if s == "" {
		return c.committed, nil
	}
	sess, ok := c.sessions[s]
	if !ok {
		return nil, &store.BackendError{Operation: op, Session: s, Err: store.ErrNoSession}
	}
	return sess.view, nil
}

func (c *Connector) CreateVertex(ctx context.Context, v common.Vertex, s store.Session) (*common.VertexRecord, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, &store.BackendError{Operation: "create vertex", Session: s, Err: err}
	}
	r := common.RecordOf(v)
	r.ID = id

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("create vertex", s, write{vertex: r}); err != nil {
		return nil, err
	}
	return store.Clone(r), nil
}

func (c *Connector) UpdateVertex(ctx context.Context, r *common.VertexRecord, s store.Session) (*common.VertexRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, err := c.graph("update vertex", s)
	if err != nil {
		return nil, err
	}
	current, ok := g.vertices[r.ID]
	if !ok {
		return nil, &store.BackendError{Operation: "update vertex", Session: s, Err: fmt.Errorf("vertex %s does not exist", r.ID)}
	}

	next := store.Clone(current)
	next.Description = r.Description
	switch current.Category {
	case common.CategorySystemModule:
		next.BusinessModules = slices.Clone(r.BusinessModules)
	case common.CategoryComponent:
		next.SourceCode = r.SourceCode
	}
	if err := c.record("update vertex", s, write{vertex: next}); err != nil {
		return nil, err
	}
	return store.Clone(next), nil
}

func (c *Connector) GetVertex(ctx context.Context, q common.VertexQuery, s store.Session) (*common.VertexRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, err := c.graph("get vertex", s)
	if err != nil {
		return nil, err
	}
	id, ok := g.keys[q.Normalize()]
	if !ok {
		return nil, nil
	}
	return store.Clone(g.vertices[id]), nil
}

func (c *Connector) GetVerticesByIDs(ctx context.Context, ids []string) ([]*common.VertexRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*common.VertexRecord, 0, len(ids))
	for _, id := range store.DedupeStrings(ids) {
		if v, ok := c.committed.vertices[id]; ok {
			out = append(out, store.Clone(v))
		}
	}
	return out, nil
}

func (c *Connector) GetVerticesByCategory(ctx context.Context, cat common.Category) ([]*common.VertexRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*common.VertexRecord
	for _, id := range c.committed.order {
		if v := c.committed.vertices[id]; v.Category == cat {
			out = append(out, store.Clone(v))
		}
	}
	return out, nil
}

func (c *Connector) CreateEdgeByVertices(ctx context.Context, from, to *common.VertexRecord, s store.Session) (*common.EdgeRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, err := c.graph("create edge", s)
	if err != nil {
		return nil, err
	}
	if e, ok := g.edges[[2]string{from.ID, to.ID}]; ok {
		ec := *e
		return &ec, nil
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, &store.BackendError{Operation: "create edge", Session: s, Err: err}
	}
	e := &common.EdgeRecord{ID: id, Label: common.EdgeLabel, From: from.ID, To: to.ID}
	if err := c.record("create edge", s, write{edge: e}); err != nil {
		return nil, err
	}
	ec := *e
	return &ec, nil
}

func (c *Connector) GetEdgeByVertices(ctx context.Context, from, to *common.VertexRecord, s store.Session) (*common.EdgeRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, err := c.graph("get edge", s)
	if err != nil {
		return nil, err
	}
	e, ok := g.edges[[2]string{from.ID, to.ID}]
	if !ok {
		return nil, nil
	}
	ec := *e
	return &ec, nil
}

func (c *Connector) GetDescendants(ctx context.Context, q common.VertexQuery) ([]common.Path, error) {
	return c.paths(ctx, q, func(g *graphState, id string) []string { return g.out[id] })
}

func (c *Connector) GetAncestors(ctx context.Context, q common.VertexQuery) ([]common.Path, error) {
	return c.paths(ctx, q, func(g *graphState, id string) []string { return g.in[id] })
}

// paths emits every simple path starting at the vertex for q, the start
// vertex alone included.
func (c *Connector) paths(ctx context.Context, q common.VertexQuery, next func(*graphState, string) []string) ([]common.Path, error) {
	start, err := c.GetVertex(ctx, q, "")
	if err != nil || start == nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var out []common.Path
	var walk func(path common.Path)
	walk = func(path common.Path) {
		out = append(out, slices.Clone(path))
		for _, id := range next(c.committed, path[len(path)-1]) {
			if slices.Contains(path, id) {
				continue
			}
			walk(append(path, id))
		}
	}
	walk(common.Path{start.ID})
	return out, nil
}

func (c *Connector) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = make(map[store.Session]*session)
	return nil
}
