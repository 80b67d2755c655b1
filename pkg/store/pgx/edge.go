package pgx

import (
	"context"
	"errors"
	"strconv"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

// The no-op update makes RETURNING yield the existing row on conflict.
const upsertEdgeSQL = `
INSERT INTO uses_edges (from_id, to_id)
VALUES ($1, $2)
ON CONFLICT (from_id, to_id) DO UPDATE SET from_id = EXCLUDED.from_id
RETURNING id, from_id, to_id`

const getEdgeSQL = `
SELECT id, from_id, to_id
FROM uses_edges
WHERE from_id = $1 AND to_id = $2`

const descendantsSQL = `
WITH RECURSIVE walk (id, path) AS (
    SELECT v.id, ARRAY[v.id]
    FROM vertices v
    WHERE v.category = $1 AND v.name = $2 AND v.micro_service = $3 AND v.system_module = $4
  UNION ALL
    SELECT e.to_id, w.path || e.to_id
    FROM walk w
    JOIN uses_edges e ON e.from_id = w.id
    WHERE NOT e.to_id = ANY(w.path)
)
SELECT path FROM walk ORDER BY array_length(path, 1), path`

const ancestorsSQL = `
WITH RECURSIVE walk (id, path) AS (
    SELECT v.id, ARRAY[v.id]
    FROM vertices v
    WHERE v.category = $1 AND v.name = $2 AND v.micro_service = $3 AND v.system_module = $4
  UNION ALL
    SELECT e.from_id, w.path || e.from_id
    FROM walk w
    JOIN uses_edges e ON e.to_id = w.id
    WHERE NOT e.from_id = ANY(w.path)
)
SELECT path FROM walk ORDER BY array_length(path, 1), path`

func edgeRecord(id, from, to int64) *common.EdgeRecord {
	return &common.EdgeRecord{
		ID:    strconv.FormatInt(id, 10),
		Label: common.EdgeLabel,
		From:  strconv.FormatInt(from, 10),
		To:    strconv.FormatInt(to, 10),
	}
}

func (s *GraphDBStorage) edge(ctx context.Context, op string, session store.Session, sql string, from, to *common.VertexRecord) (*common.EdgeRecord, error) {
	ids, err := parseIDs([]string{from.ID, to.ID})
	if err != nil {
		return nil, err
	}
	db, err := s.db(op, session)
	if err != nil {
		return nil, err
	}
	var id, f, t int64
	if err := db.QueryRow(ctx, sql, ids[0], ids[1]).Scan(&id, &f, &t); err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, nil
		}
		return nil, s.fail(op, session, sql, []any{ids[0], ids[1]}, err)
	}
	return edgeRecord(id, f, t), nil
}

func (s *GraphDBStorage) CreateEdgeByVertices(ctx context.Context, from, to *common.VertexRecord, session store.Session) (*common.EdgeRecord, error) {
	e, err := s.edge(ctx, "create edge", session, upsertEdgeSQL, from, to)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, &store.BackendError{Operation: "create edge", Session: session, Err: store.ErrMalformedResponse}
	}
	return e, nil
}

func (s *GraphDBStorage) GetEdgeByVertices(ctx context.Context, from, to *common.VertexRecord, session store.Session) (*common.EdgeRecord, error) {
	return s.edge(ctx, "get edge", session, getEdgeSQL, from, to)
}

func (s *GraphDBStorage) GetDescendants(ctx context.Context, q common.VertexQuery) ([]common.Path, error) {
	return s.paths(ctx, descendantsSQL, q)
}

func (s *GraphDBStorage) GetAncestors(ctx context.Context, q common.VertexQuery) ([]common.Path, error) {
	return s.paths(ctx, ancestorsSQL, q)
}

func (s *GraphDBStorage) paths(ctx context.Context, sql string, q common.VertexQuery) ([]common.Path, error) {
	q = q.Normalize()
	args := []any{string(q.Category), q.Name, q.MicroService, q.SystemModule}
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, s.fail("get paths", "", sql, args, err)
	}
	defer rows.Close()

	var out []common.Path
	for rows.Next() {
		var ids []int64
		if err := rows.Scan(&ids); err != nil {
			return nil, s.fail("get paths", "", sql, args, err)
		}
		out = append(out, pathOf(ids))
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("get paths", "", sql, args, err)
	}
	return out, nil
}

func pathOf(ids []int64) common.Path {
	p := make(common.Path, len(ids))
	for i, id := range ids {
		p[i] = strconv.FormatInt(id, 10)
	}
	return p
}
