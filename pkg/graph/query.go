package graph

import (
	"context"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/store"
)

// GetVertex returns the vertex matching the scoping key of q, or nil.
func (b *Builder) GetVertex(ctx context.Context, q common.VertexQuery) (*common.VertexRecord, error) {
	return b.lookup(ctx, q, "")
}

func (b *Builder) lookup(ctx context.Context, q common.VertexQuery, session store.Session) (*common.VertexRecord, error) {
	if err := b.validator.ValidateQuery(q); err != nil {
		return nil, err
	}
	rec, err := b.connector.GetVertex(ctx, q, session)
	if err != nil {
		return nil, err
	}
	annotate(rec)
	return rec, nil
}

// annotate maps the backend type tag back onto the record's category.
func annotate(rec *common.VertexRecord) {
	if rec == nil {
		return
	}
	if c, ok := common.CategoryFromNativeType(rec.NativeType); ok {
		rec.Category = c
	}
}

// resolve looks up both edge endpoints. A missing endpoint is reported as a
// *NotFoundError naming the side, "from" first.
func (b *Builder) resolve(ctx context.Context, from, to common.VertexQuery, session store.Session) (*common.VertexRecord, *common.VertexRecord, error) {
	f, err := b.lookup(ctx, from, session)
	if err != nil {
		return nil, nil, err
	}
	t, err := b.lookup(ctx, to, session)
	if err != nil {
		return nil, nil, err
	}
	if f == nil {
		return nil, nil, &NotFoundError{Side: "from", Query: from}
	}
	if t == nil {
		return nil, nil, &NotFoundError{Side: "to", Query: to}
	}
	return f, t, nil
}

// CreateEdgeByVertices links two existing vertices. Calling it again for the
// same pair returns the existing edge.
func (b *Builder) CreateEdgeByVertices(ctx context.Context, from, to common.VertexQuery, session store.Session) (*common.EdgeRecord, error) {
	f, t, err := b.resolve(ctx, from, to, session)
	if err != nil {
		return nil, err
	}
	e, err := b.connector.CreateEdgeByVertices(ctx, f, t, session)
	if err != nil {
		return nil, err
	}
	b.observer.EdgeLinked()
	return e, nil
}

// GetEdgeByVertices returns the edge from -> to, or nil if the vertices exist
// but are not linked.
func (b *Builder) GetEdgeByVertices(ctx context.Context, from, to common.VertexQuery) (*common.EdgeRecord, error) {
	f, t, err := b.resolve(ctx, from, to, "")
	if err != nil {
		return nil, err
	}
	return b.connector.GetEdgeByVertices(ctx, f, t, "")
}

func (b *Builder) GetVerticesByIDs(ctx context.Context, ids []string) ([]*common.VertexRecord, error) {
	recs, err := b.connector.GetVerticesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		annotate(r)
	}
	return recs, nil
}

func (b *Builder) GetVerticesByCategory(ctx context.Context, c common.Category) ([]*common.VertexRecord, error) {
	recs, err := b.connector.GetVerticesByCategory(ctx, c)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		annotate(r)
	}
	return recs, nil
}

// GetDescendants lists every path following Uses edges from the vertex
// matching q. The first path holds only the vertex itself.
func (b *Builder) GetDescendants(ctx context.Context, q common.VertexQuery) ([]common.Path, error) {
	if err := b.mustExist(ctx, q); err != nil {
		return nil, err
	}
	return b.connector.GetDescendants(ctx, q)
}

// GetAncestors is GetDescendants against the edge direction.
func (b *Builder) GetAncestors(ctx context.Context, q common.VertexQuery) ([]common.Path, error) {
	if err := b.mustExist(ctx, q); err != nil {
		return nil, err
	}
	return b.connector.GetAncestors(ctx, q)
}

func (b *Builder) mustExist(ctx context.Context, q common.VertexQuery) error {
	rec, err := b.lookup(ctx, q, "")
	if err != nil {
		return err
	}
	if rec == nil {
		return &NotFoundError{Query: q}
	}
	return nil
}
