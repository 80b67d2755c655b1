package pgx

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const vertexColumns = `id, category, name, type, description, source_code, business_modules, micro_service, system_module`

const insertVertexSQL = `
INSERT INTO vertices (category, name, type, description, source_code, business_modules, micro_service, system_module)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + vertexColumns

const updateVertexSQL = `
UPDATE vertices
SET description      = $2,
    source_code      = CASE WHEN category = 'component' THEN $3 ELSE source_code END,
    business_modules = CASE WHEN category = 'systemModule' THEN $4 ELSE business_modules END,
    updated_at       = now()
WHERE id = $1
RETURNING ` + vertexColumns

const getVertexSQL = `
SELECT ` + vertexColumns + `
FROM vertices
WHERE category = $1 AND name = $2 AND micro_service = $3 AND system_module = $4`

const verticesByIDsSQL = `
SELECT ` + vertexColumns + `
FROM vertices
WHERE id = ANY($1)
ORDER BY id`

const verticesByCategorySQL = `
SELECT ` + vertexColumns + `
FROM vertices
WHERE category = $1
ORDER BY id`

type vertexRow struct {
	ID              int64
	Category        string
	Name            string
	Type            string
	Description     string
	SourceCode      string
	BusinessModules []string
	MicroService    string
	SystemModule    string
}

func (r *vertexRow) fields() []any {
	return []any{
		&r.ID, &r.Category, &r.Name, &r.Type, &r.Description,
		&r.SourceCode, &r.BusinessModules, &r.MicroService, &r.SystemModule,
	}
}

func (r *vertexRow) record() *common.VertexRecord {
	c := common.Category(r.Category)
	rec := &common.VertexRecord{
		ID:           strconv.FormatInt(r.ID, 10),
		Category:     c,
		NativeType:   c.NativeType(),
		Name:         r.Name,
		Type:         r.Type,
		Description:  r.Description,
		SourceCode:   r.SourceCode,
		MicroService: r.MicroService,
		SystemModule: r.SystemModule,
	}
	if len(r.BusinessModules) > 0 {
		rec.BusinessModules = r.BusinessModules
	}
	return rec
}

// insertArgs flattens a record into the column order of insertVertexSQL.
func insertArgs(r *common.VertexRecord) []any {
	bm := r.BusinessModules
	if bm == nil {
		bm = []string{}
	}
	return []any{
		string(r.Category), r.Name, r.Type, r.Description,
		r.SourceCode, bm, r.MicroService, r.SystemModule,
	}
}

func parseIDs(ids []string) ([]int64, error) {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vertex id %q: %w", id, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *GraphDBStorage) scanOne(ctx context.Context, op string, session store.Session, sql string, args ...any) (*common.VertexRecord, error) {
	db, err := s.db(op, session)
	if err != nil {
		return nil, err
	}
	var row vertexRow
	if err := db.QueryRow(ctx, sql, args...).Scan(row.fields()...); err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, nil
		}
		return nil, s.fail(op, session, sql, args, err)
	}
	return row.record(), nil
}

func (s *GraphDBStorage) scanMany(ctx context.Context, op string, sql string, args ...any) ([]*common.VertexRecord, error) {
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, s.fail(op, "", sql, args, err)
	}
	defer rows.Close()

	var out []*common.VertexRecord
	for rows.Next() {
		var row vertexRow
		if err := rows.Scan(row.fields()...); err != nil {
			return nil, s.fail(op, "", sql, args, err)
		}
		out = append(out, row.record())
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(op, "", sql, args, err)
	}
	return out, nil
}

func (s *GraphDBStorage) CreateVertex(ctx context.Context, v common.Vertex, session store.Session) (*common.VertexRecord, error) {
	rec, err := s.scanOne(ctx, "create vertex", session, insertVertexSQL, insertArgs(common.RecordOf(v))...)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &store.BackendError{Operation: "create vertex", Session: session, Err: store.ErrMalformedResponse}
	}
	return rec, nil
}

func (s *GraphDBStorage) UpdateVertex(ctx context.Context, r *common.VertexRecord, session store.Session) (*common.VertexRecord, error) {
	id, err := strconv.ParseInt(r.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid vertex id %q: %w", r.ID, err)
	}
	bm := r.BusinessModules
	if bm == nil {
		bm = []string{}
	}
	rec, err := s.scanOne(ctx, "update vertex", session, updateVertexSQL, id, r.Description, r.SourceCode, bm)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &store.BackendError{Operation: "update vertex", Session: session, Err: fmt.Errorf("vertex %s does not exist", r.ID)}
	}
	return rec, nil
}

func (s *GraphDBStorage) GetVertex(ctx context.Context, q common.VertexQuery, session store.Session) (*common.VertexRecord, error) {
	q = q.Normalize()
	return s.scanOne(ctx, "get vertex", session, getVertexSQL, string(q.Category), q.Name, q.MicroService, q.SystemModule)
}

func (s *GraphDBStorage) GetVerticesByIDs(ctx context.Context, ids []string) ([]*common.VertexRecord, error) {
	parsed, err := parseIDs(store.DedupeStrings(ids))
	if err != nil {
		return nil, err
	}
	if len(parsed) == 0 {
		return nil, nil
	}
	return s.scanMany(ctx, "get vertices", verticesByIDsSQL, parsed)
}

func (s *GraphDBStorage) GetVerticesByCategory(ctx context.Context, c common.Category) ([]*common.VertexRecord, error) {
	return s.scanMany(ctx, "get vertices", verticesByCategorySQL, string(c))
}
