// Package arcadedb is the reference connector. It talks to ArcadeDB over its
// HTTP API: SQL commands for writes and point reads, Gremlin for traversals,
// and the begin/commit/rollback endpoints for sessions.
package arcadedb

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/store"
)

// Connector implements store.Connector for ArcadeDB.
type Connector struct {
	client *client
}

// NewConnectorParams configures a Connector. BaseURL overrides Host and
// Port, e.g. "https://arcade.example.com/api/v1".
type NewConnectorParams struct {
	BaseURL  string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Timeout  time.Duration
}

func NewArcadeDBConnector(params NewConnectorParams) (*Connector, error) {
	if params.Database == "" {
		return nil, fmt.Errorf("arcadedb: database is required")
	}
	baseURL := params.BaseURL
	if baseURL == "" {
		if params.Host == "" {
			return nil, fmt.Errorf("arcadedb: host is required")
		}
		port := params.Port
		if port == 0 {
			port = 2480
		}
		baseURL = fmt.Sprintf("http://%s:%d/api/v1", params.Host, port)
	}
	return &Connector{
		client: &client{
			http:     newHTTPClient(params.Timeout),
			baseURL:  baseURL,
			database: params.Database,
			username: params.Username,
			password: params.Password,
		},
	}, nil
}

// NewConnector matches store.Factory.
func NewConnector(_ context.Context, opts store.ConnectionOptions) (store.Connector, error) {
	return NewArcadeDBConnector(NewConnectorParams{
		BaseURL:  opts.URI,
		Host:     opts.Host,
		Port:     opts.Port,
		Database: opts.Database,
		Username: opts.Username,
		Password: opts.Password,
	})
}

type vertexRow struct {
	RID             string   `json:"@rid"`
	NativeType      string   `json:"@type"`
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	Description     string   `json:"description"`
	SourceCode      string   `json:"sourceCode"`
	BusinessModules []string `json:"businessModules"`
	MicroService    string   `json:"microService"`
	SystemModule    string   `json:"systemModule"`
}

func (r vertexRow) record() *common.VertexRecord {
	c, _ := common.CategoryFromNativeType(r.NativeType)
	return &common.VertexRecord{
		ID:              r.RID,
		Category:        c,
		NativeType:      r.NativeType,
		Name:            r.Name,
		Type:            r.Type,
		Description:     r.Description,
		SourceCode:      r.SourceCode,
		BusinessModules: r.BusinessModules,
		MicroService:    r.MicroService,
		SystemModule:    r.SystemModule,
	}
}

type edgeRow struct {
	RID        string `json:"@rid"`
	NativeType string `json:"@type"`
	Out        string `json:"@out"`
	In         string `json:"@in"`
}

func (r edgeRow) record() *common.EdgeRecord {
	return &common.EdgeRecord{ID: r.RID, Label: r.NativeType, From: r.Out, To: r.In}
}

type pathRow struct {
	Result []string `json:"result"`
}

func (c *Connector) InitGraph(ctx context.Context) error {
	return c.client.run(ctx, "command", "", &commandRequest{
		Language: languageSQLScript,
		Command:  initScript,
		Params:   map[string]any{},
	}, nil)
}

func (c *Connector) StartSession(ctx context.Context) (store.Session, error) {
	return c.client.begin(ctx)
}

func (c *Connector) CommitSession(ctx context.Context, s store.Session) error {
	if s == "" {
		return nil
	}
	_, _, err := c.client.post(ctx, "commit", s, nil)
	return err
}

func (c *Connector) RollbackSession(ctx context.Context, s store.Session) error {
	if s == "" {
		return nil
	}
	_, _, err := c.client.post(ctx, "rollback", s, nil)
	return err
}

func (c *Connector) vertices(ctx context.Context, operation string, s store.Session, req *commandRequest) ([]*common.VertexRecord, error) {
	var rows []vertexRow
	if err := c.client.run(ctx, operation, s, req, &rows); err != nil {
		return nil, err
	}
	out := make([]*common.VertexRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

func (c *Connector) CreateVertex(ctx context.Context, v common.Vertex, s store.Session) (*common.VertexRecord, error) {
	r := common.RecordOf(v)
	req := &commandRequest{Language: languageSQL, Command: createCommands[r.Category], Params: vertexParams(r)}
	recs, err := c.vertices(ctx, "command", s, req)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &store.BackendError{Operation: "command", Session: s, Err: fmt.Errorf("%w: no vertex returned", store.ErrMalformedResponse)}
	}
	return recs[0], nil
}

func (c *Connector) UpdateVertex(ctx context.Context, r *common.VertexRecord, s store.Session) (*common.VertexRecord, error) {
	cmd, ok := updateCommands[r.Category]
	if !ok {
		return nil, fmt.Errorf("arcadedb: cannot update vertex of category %q", r.Category)
	}
	recs, err := c.vertices(ctx, "command", s, &commandRequest{Language: languageSQL, Command: cmd, Params: vertexParams(r)})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return r, nil
	}
	return recs[0], nil
}

func (c *Connector) GetVertex(ctx context.Context, q common.VertexQuery, s store.Session) (*common.VertexRecord, error) {
	query, ok := vertexQueries[q.Category]
	if !ok {
		return nil, fmt.Errorf("arcadedb: unknown category %q", q.Category)
	}
	recs, err := c.vertices(ctx, "query", s, &commandRequest{Language: languageSQL, Command: query, Params: queryParams(q)})
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
	return c.vertices(ctx, "query", "", &commandRequest{
		Language: languageSQL,
		Command:  verticesByIDsQuery,
		Params:   map[string]any{"ids": ids},
	})
}

func (c *Connector) GetVerticesByCategory(ctx context.Context, cat common.Category) ([]*common.VertexRecord, error) {
	query, ok := categoryQueries[cat]
	if !ok {
		return nil, fmt.Errorf("arcadedb: unknown category %q", cat)
	}
	return c.vertices(ctx, "query", "", &commandRequest{Language: languageSQL, Command: query, Params: map[string]any{}})
}

func (c *Connector) CreateEdgeByVertices(ctx context.Context, from, to *common.VertexRecord, s store.Session) (*common.EdgeRecord, error) {
	existing, err := c.GetEdgeByVertices(ctx, from, to, s)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	var rows []edgeRow
	req := &commandRequest{
		Language: languageSQL,
		Command:  createEdgeCommand,
		Params:   map[string]any{"from": from.ID, "to": to.ID},
	}
	if err := c.client.run(ctx, "command", s, req, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &store.BackendError{Operation: "command", Session: s, Err: fmt.Errorf("%w: no edge returned", store.ErrMalformedResponse)}
	}
	return rows[0].record(), nil
}

func (c *Connector) GetEdgeByVertices(ctx context.Context, from, to *common.VertexRecord, s store.Session) (*common.EdgeRecord, error) {
	var rows []edgeRow
	req := &commandRequest{
		Language: languageSQL,
		Command:  edgeQuery,
		Params:   map[string]any{"from": from.ID, "to": to.ID},
	}
	if err := c.client.run(ctx, "query", s, req, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].record(), nil
}

func (c *Connector) GetDescendants(ctx context.Context, q common.VertexQuery) ([]common.Path, error) {
	return c.paths(ctx, q, "out")
}

func (c *Connector) GetAncestors(ctx context.Context, q common.VertexQuery) ([]common.Path, error) {
	return c.paths(ctx, q, "in")
}

func (c *Connector) paths(ctx context.Context, q common.VertexQuery, direction string) ([]common.Path, error) {
	query, err := pathQuery(q.Category, direction)
	if err != nil {
		return nil, err
	}
	var rows []pathRow
	req := &commandRequest{Language: languageGremlin, Command: query, Params: queryParams(q)}
	if err := c.client.run(ctx, "query", "", req, &rows); err != nil {
		return nil, err
	}
	out := make([]common.Path, 0, len(rows))
	for _, r := range rows {
		out = append(out, common.Path(r.Result))
	}
	return out, nil
}

func (c *Connector) Close(ctx context.Context) error {
	c.client.http.CloseIdleConnections()
	return nil
}
