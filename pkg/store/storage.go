package store

import (
	"context"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
)

// Session is an opaque transaction token handed out by StartSession. The
// empty Session means "no transaction": reads see committed data only and
// writes are applied immediately where the backend allows it.
type Session string

// Connector is the contract every graph backend satisfies. Implementations
// must be safe for concurrent use by independent sessions; a single session
// is only ever used by one goroutine at a time.
type Connector interface {
	// InitGraph creates vertex types, the Uses edge type and the unique
	// indexes backing the scoping keys. It is safe to call repeatedly.
	InitGraph(ctx context.Context) error

	StartSession(ctx context.Context) (Session, error)
	// CommitSession and RollbackSession are no-ops for the empty Session.
	CommitSession(ctx context.Context, s Session) error
	RollbackSession(ctx context.Context, s Session) error

	// CreateVertex persists one vertex without its dependencies.
	CreateVertex(ctx context.Context, v common.Vertex, s Session) (*common.VertexRecord, error)
	// UpdateVertex writes the mutable fields legal for the record's category
	// (description, sourceCode, businessModules) to the vertex with r.ID.
	UpdateVertex(ctx context.Context, r *common.VertexRecord, s Session) (*common.VertexRecord, error)
	// GetVertex returns the vertex matching the scoping key, or nil.
	GetVertex(ctx context.Context, q common.VertexQuery, s Session) (*common.VertexRecord, error)
	GetVerticesByIDs(ctx context.Context, ids []string) ([]*common.VertexRecord, error)
	GetVerticesByCategory(ctx context.Context, c common.Category) ([]*common.VertexRecord, error)

	// CreateEdgeByVertices creates a Uses edge between two stored vertices
	// unless one already exists, in which case the existing edge is returned.
	CreateEdgeByVertices(ctx context.Context, from, to *common.VertexRecord, s Session) (*common.EdgeRecord, error)
	// GetEdgeByVertices returns the Uses edge from -> to, or nil.
	GetEdgeByVertices(ctx context.Context, from, to *common.VertexRecord, s Session) (*common.EdgeRecord, error)

	// GetDescendants and GetAncestors list every path following (or against)
	// Uses edges from the given vertex, including the path holding only the
	// vertex itself.
	GetDescendants(ctx context.Context, q common.VertexQuery) ([]common.Path, error)
	GetAncestors(ctx context.Context, q common.VertexQuery) ([]common.Path, error)

	Close(ctx context.Context) error
}

// ConnectionOptions configures a connector. Not every backend uses every
// field; URI takes precedence over host and port where a backend accepts it.
type ConnectionOptions struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Database string `yaml:"database" json:"database"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	URI      string `yaml:"uri" json:"uri"`
}
