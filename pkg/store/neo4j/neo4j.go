// Package neo4j stores the dependency graph in Neo4j. Sessions map onto
// explicit Bolt transactions held open until commit or rollback.
package neo4j

import (
	"context"
	"fmt"
	"sync"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/logger"
	"github.com/OFFIS-RIT/depgraph/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type openTx struct {
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
}

// Connector implements store.Connector on top of the Neo4j Go driver.
type Connector struct {
	driver   neo4j.DriverWithContext
	database string

	mu  sync.Mutex
	txs map[store.Session]*openTx
}

type NewConnectorParams struct {
	URI      string
	Username string
	Password string
	Database string
}

func NewNeo4jConnector(ctx context.Context, params NewConnectorParams) (*Connector, error) {
	driver, err := neo4j.NewDriverWithContext(params.URI, neo4j.BasicAuth(params.Username, params.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: failed to connect to %s: %w", params.URI, err)
	}
	return &Connector{
		driver:   driver,
		database: params.Database,
		txs:      make(map[store.Session]*openTx),
	}, nil
}

// NewConnector matches store.Factory.
func NewConnector(ctx context.Context, opts store.ConnectionOptions) (store.Connector, error) {
	uri := opts.URI
	if uri == "" {
		port := opts.Port
		if port == 0 {
			port = 7687
		}
		uri = fmt.Sprintf("neo4j://%s:%d", opts.Host, port)
	}
	return NewNeo4jConnector(ctx, NewConnectorParams{
		URI:      uri,
		Username: opts.Username,
		Password: opts.Password,
		Database: opts.Database,
	})
}

func (c *Connector) InitGraph(ctx context.Context) error {
	for _, stmt := range constraints {
		if _, err := c.run(ctx, "init graph", "", stmt, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connector) StartSession(ctx context.Context) (store.Session, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", &store.BackendError{Operation: "begin", Err: err}
	}
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.database,
	})
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		_ = session.Close(ctx)
		return "", &store.BackendError{Operation: "begin", Err: err}
	}

	token := store.Session(id)
	c.mu.Lock()
	c.txs[token] = &openTx{session: session, tx: tx}
	c.mu.Unlock()
	return token, nil
}

// take removes the transaction for s from the open set.
func (c *Connector) take(op string, s store.Session) (*openTx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.txs[s]
	if !ok {
		return nil, &store.BackendError{Operation: op, Session: s, Err: store.ErrNoSession}
	}
	delete(c.txs, s)
	return t, nil
}

func (c *Connector) CommitSession(ctx context.Context, s store.Session) error {
	if s == "" {
		return nil
	}
	t, err := c.take("commit", s)
	if err != nil {
		return err
	}
	defer t.session.Close(ctx)
	if err := t.tx.Commit(ctx); err != nil {
		return &store.BackendError{Operation: "commit", Session: s, Err: err}
	}
	return nil
}

func (c *Connector) RollbackSession(ctx context.Context, s store.Session) error {
	if s == "" {
		return nil
	}
	t, err := c.take("rollback", s)
	if err != nil {
		return err
	}
	defer t.session.Close(ctx)
	if err := t.tx.Rollback(ctx); err != nil {
		return &store.BackendError{Operation: "rollback", Session: s, Err: err}
	}
	return nil
}

// run executes cypher inside the transaction for s, or as an auto-commit
// query when s is empty.
func (c *Connector) run(ctx context.Context, op string, s store.Session, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	fail := func(err error) error {
		return &store.BackendError{Operation: op, Session: s, Payload: fmt.Sprintf("%s %v", cypher, params), Err: err}
	}

	if s == "" {
		res, err := neo4j.ExecuteQuery(ctx, c.driver, cypher, params,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(c.database),
		)
		if err != nil {
			return nil, fail(err)
		}
		return res.Records, nil
	}

	c.mu.Lock()
	t, ok := c.txs[s]
	c.mu.Unlock()
	if !ok {
		return nil, fail(store.ErrNoSession)
	}
	result, err := t.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, fail(err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fail(err)
	}
	return records, nil
}

func (c *Connector) vertices(ctx context.Context, op string, s store.Session, cypher string, params map[string]any) ([]*common.VertexRecord, error) {
	records, err := c.run(ctx, op, s, cypher, params)
	if err != nil {
		return nil, err
	}
	out := make([]*common.VertexRecord, 0, len(records))
	for _, rec := range records {
		node, _, err := neo4j.GetRecordValue[neo4j.Node](rec, "v")
		if err != nil {
			return nil, &store.BackendError{Operation: op, Session: s, Err: fmt.Errorf("%w: %v", store.ErrMalformedResponse, err)}
		}
		out = append(out, vertexFromNode(node))
	}
	return out, nil
}

func (c *Connector) CreateVertex(ctx context.Context, v common.Vertex, s store.Session) (*common.VertexRecord, error) {
	r := common.RecordOf(v)
	recs, err := c.vertices(ctx, "create vertex", s, createCypher(r.Category), map[string]any{"props": vertexProps(r)})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &store.BackendError{Operation: "create vertex", Session: s, Err: fmt.Errorf("%w: no vertex returned", store.ErrMalformedResponse)}
	}
	return recs[0], nil
}

func (c *Connector) UpdateVertex(ctx context.Context, r *common.VertexRecord, s store.Session) (*common.VertexRecord, error) {
	props := vertexProps(r)
	params := map[string]any{"id": r.ID, "description": r.Description}
	switch r.Category {
	case common.CategorySystemModule:
		params["businessModules"] = props["businessModules"]
	case common.CategoryComponent:
		params["sourceCode"] = r.SourceCode
	}
	recs, err := c.vertices(ctx, "update vertex", s, updateCypher(r.Category), params)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &store.BackendError{Operation: "update vertex", Session: s, Err: fmt.Errorf("vertex %s does not exist", r.ID)}
	}
	return recs[0], nil
}

func (c *Connector) GetVertex(ctx context.Context, q common.VertexQuery, s store.Session) (*common.VertexRecord, error) {
	cypher, params, err := matchCypher(q)
	if err != nil {
		return nil, err
	}
	recs, err := c.vertices(ctx, "get vertex", s, cypher+" RETURN v LIMIT 1", params)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

func (c *Connector) GetVerticesByIDs(ctx context.Context, ids []string) ([]*common.VertexRecord, error) {
	ids = store.DedupeStrings(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	return c.vertices(ctx, "get vertices", "", "MATCH (v:VertexBase) WHERE elementId(v) IN $ids RETURN v", map[string]any{"ids": ids})
}

func (c *Connector) GetVerticesByCategory(ctx context.Context, cat common.Category) ([]*common.VertexRecord, error) {
	if !cat.Valid() {
		return nil, fmt.Errorf("neo4j: unknown category %q", cat)
	}
	return c.vertices(ctx, "get vertices", "", fmt.Sprintf("MATCH (v:%s) RETURN v", cat.NativeType()), nil)
}

func (c *Connector) edge(ctx context.Context, op string, s store.Session, cypher string, from, to *common.VertexRecord) (*common.EdgeRecord, error) {
	records, err := c.run(ctx, op, s, cypher, map[string]any{"from": from.ID, "to": to.ID})
	if err != nil || len(records) == 0 {
		return nil, err
	}
	rel, _, err := neo4j.GetRecordValue[neo4j.Relationship](records[0], "e")
	if err != nil {
		return nil, &store.BackendError{Operation: op, Session: s, Err: fmt.Errorf("%w: %v", store.ErrMalformedResponse, err)}
	}
	return &common.EdgeRecord{ID: rel.ElementId, Label: rel.Type, From: rel.StartElementId, To: rel.EndElementId}, nil
}

// CreateEdgeByVertices relies on MERGE, which only creates the edge when no
// Uses edge links the pair yet.
func (c *Connector) CreateEdgeByVertices(ctx context.Context, from, to *common.VertexRecord, s store.Session) (*common.EdgeRecord, error) {
	e, err := c.edge(ctx, "create edge", s, mergeEdgeCypher, from, to)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, &store.BackendError{Operation: "create edge", Session: s, Err: fmt.Errorf("vertices %s or %s do not exist", from.ID, to.ID)}
	}
	return e, nil
}

func (c *Connector) GetEdgeByVertices(ctx context.Context, from, to *common.VertexRecord, s store.Session) (*common.EdgeRecord, error) {
	return c.edge(ctx, "get edge", s, edgeCypher, from, to)
}

func (c *Connector) GetDescendants(ctx context.Context, q common.VertexQuery) ([]common.Path, error) {
	return c.paths(ctx, q, "-[:Uses*0..]->")
}

func (c *Connector) GetAncestors(ctx context.Context, q common.VertexQuery) ([]common.Path, error) {
	return c.paths(ctx, q, "<-[:Uses*0..]-")
}

func (c *Connector) paths(ctx context.Context, q common.VertexQuery, pattern string) ([]common.Path, error) {
	match, params, err := matchCypher(q)
	if err != nil {
		return nil, err
	}
	cypher := fmt.Sprintf("%s MATCH p = (v)%s(x) RETURN [n IN nodes(p) | elementId(n)] AS ids ORDER BY length(p)", match, pattern)
	records, err := c.run(ctx, "get paths", "", cypher, params)
	if err != nil {
		return nil, err
	}
	out := make([]common.Path, 0, len(records))
	for _, rec := range records {
		raw, _ := rec.Get("ids")
		p, err := pathFromValue(raw)
		if err != nil {
			return nil, &store.BackendError{Operation: "get paths", Err: err}
		}
		out = append(out, p)
	}
	return out, nil
}

// Close rolls back every transaction still open and closes the driver.
func (c *Connector) Close(ctx context.Context) error {
	c.mu.Lock()
	open := c.txs
	c.txs = make(map[store.Session]*openTx)
	c.mu.Unlock()

	for s, t := range open {
		if err := t.tx.Rollback(ctx); err != nil {
			logger.Warn("[Neo4j] Failed to roll back open session on close", "session", s, "err", err)
		}
		_ = t.session.Close(ctx)
	}
	if c.driver == nil {
		return nil
	}
	return c.driver.Close(ctx)
}
