package graph

import (
	"context"
	"time"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/logger"
	"github.com/OFFIS-RIT/depgraph/pkg/store"
)

// CreateVertex writes a vertex and its whole dependency tree, linking every
// parent to each of its direct children with a Uses edge.
//
// If session is empty, CreateVertex opens its own session and commits it
// once the whole tree is written, or rolls it back on the first failure.
// Otherwise the caller owns the session and nothing is committed or rolled
// back here.
//
// Existing vertices are matched by scoping key and merged: non-empty
// description, sourceCode and businessModules replace stored values.
//
// The returned records are in pre-order: the root, then each child followed
// by its own subtree. Every error is returned as a *TransactionError.
func (b *Builder) CreateVertex(ctx context.Context, v common.Vertex, session store.Session) ([]*common.VertexRecord, error) {
	start := time.Now()
	out, err := b.createVertex(ctx, v, session)
	b.observer.CreateVertexDone(time.Since(start), err)
	return out, err
}

// Validate fills the derived fields of v and checks the tree without
// touching the backend. CreateVertex runs the same check.
func (b *Builder) Validate(v common.Vertex) error {
	FillDerivedFields(v)
	return b.validator.Validate(v)
}

func (b *Builder) createVertex(ctx context.Context, v common.Vertex, session store.Session) ([]*common.VertexRecord, error) {
	if err := b.Validate(v); err != nil {
		return nil, &TransactionError{Cause: err}
	}

	owned := session == ""
	if owned {
		s, err := b.connector.StartSession(ctx)
		if err != nil {
			return nil, &TransactionError{Cause: err}
		}
		session = s
		logger.Debug("[Graph][CreateVertex] Session opened", "session", session, "root", v.Base().Name)
	}

	var out []*common.VertexRecord
	if _, err := b.writeTree(ctx, v, session, &out); err != nil {
		if !owned {
			return nil, &TransactionError{Cause: err}
		}
		// The rollback must run even if ctx is already done.
		rbErr := b.connector.RollbackSession(context.WithoutCancel(ctx), session)
		if rbErr != nil {
			logger.Error("[Graph][CreateVertex] Rollback failed", "session", session, "err", rbErr, "cause", err)
		} else {
			b.observer.SessionRolledBack()
			logger.Debug("[Graph][CreateVertex] Session rolled back", "session", session, "cause", err)
		}
		return nil, &TransactionError{Cause: err, RollbackErr: rbErr}
	}

	if owned {
		if err := b.connector.CommitSession(ctx, session); err != nil {
			rbErr := b.connector.RollbackSession(context.WithoutCancel(ctx), session)
			return nil, &TransactionError{Cause: err, RollbackErr: rbErr}
		}
		b.observer.SessionCommitted()
		logger.Debug("[Graph][CreateVertex] Session committed", "session", session, "vertices", len(out))
	}
	return out, nil
}

// writeTree persists v, then each child subtree in order, then the edge to
// that child. Children are written one at a time: a session is never used by
// more than one goroutine.
func (b *Builder) writeTree(ctx context.Context, v common.Vertex, session store.Session, out *[]*common.VertexRecord) (*common.VertexRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := b.upsert(ctx, v, session)
	if err != nil {
		return nil, err
	}
	*out = append(*out, rec)

	for _, dep := range v.Base().Dependencies {
		child, err := b.writeTree(ctx, dep, session, out)
		if err != nil {
			return nil, err
		}
		if _, err := b.connector.CreateEdgeByVertices(ctx, rec, child, session); err != nil {
			return nil, err
		}
		b.observer.EdgeLinked()
	}
	return rec, nil
}

// upsert looks the vertex up by its scoping key and merges into the match,
// or creates it.
func (b *Builder) upsert(ctx context.Context, v common.Vertex, session store.Session) (*common.VertexRecord, error) {
	existing, err := b.lookup(ctx, v.Key(), session)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		rec, err := b.connector.CreateVertex(ctx, v, session)
		if err != nil {
			return nil, err
		}
		annotate(rec)
		b.observer.VertexCreated(v.Category())
		return rec, nil
	}

	b.observer.VertexMerged(v.Category())
	if !mergeInto(existing, v) {
		return existing, nil
	}
	rec, err := b.connector.UpdateVertex(ctx, existing, session)
	if err != nil {
		return nil, err
	}
	annotate(rec)
	return rec, nil
}
