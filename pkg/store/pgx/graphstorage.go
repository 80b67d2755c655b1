package pgx

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/OFFIS-RIT/depgraph/pkg/logger"
	"github.com/OFFIS-RIT/depgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage implements store.Connector on PostgreSQL. Vertices and Uses
// edges live in two tables; a unique index over the scoping key is the final
// arbiter between concurrent writers. Each session is one open pgx.Tx.
type GraphDBStorage struct {
	conn        pgxIConn
	databaseURL string
	close       func()

	txLock sync.Mutex
	txs    map[store.Session]pgxv5.Tx
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithDatabaseURL sets the URL InitGraph hands to the migrations.
func WithDatabaseURL(databaseURL string) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.databaseURL = databaseURL
	}
}

// NewGraphDBStorageWithConnection creates a GraphDBStorage on an existing
// connection or pool. The caller keeps ownership of conn.
func NewGraphDBStorageWithConnection(
	ctx context.Context,
	conn pgxIConn,
	opts ...GraphDBStorageOption,
) (*GraphDBStorage, error) {
	s := &GraphDBStorage{
		conn: conn,
		txs:  make(map[store.Session]pgxv5.Tx),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s, nil
}

// NewConnector matches store.Factory. It opens its own pool, which Close
// releases.
func NewConnector(ctx context.Context, opts store.ConnectionOptions) (store.Connector, error) {
	dsn := opts.URI
	if dsn == "" {
		dsn = buildDSN(opts)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s, err := NewGraphDBStorageWithConnection(ctx, pool, WithDatabaseURL(dsn))
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.close = pool.Close
	return s, nil
}

func buildDSN(opts store.ConnectionOptions) string {
	port := opts.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   opts.Host + ":" + strconv.Itoa(port),
		Path:   "/" + opts.Database,
	}
	if opts.Username != "" {
		u.User = url.UserPassword(opts.Username, opts.Password)
	}
	return u.String()
}

func (s *GraphDBStorage) InitGraph(ctx context.Context) error {
	if s.databaseURL == "" {
		return fmt.Errorf("pgx: no database url configured for migrations")
	}
	return Migrate(s.databaseURL)
}

func (s *GraphDBStorage) StartSession(ctx context.Context) (store.Session, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", &store.BackendError{Operation: "begin", Err: err}
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return "", &store.BackendError{Operation: "begin", Err: err}
	}

	token := store.Session(id)
	s.txLock.Lock()
	s.txs[token] = tx
	s.txLock.Unlock()
	return token, nil
}

func (s *GraphDBStorage) take(op string, session store.Session) (pgxv5.Tx, error) {
	s.txLock.Lock()
	defer s.txLock.Unlock()
	tx, ok := s.txs[session]
	if !ok {
		return nil, &store.BackendError{Operation: op, Session: session, Err: store.ErrNoSession}
	}
	delete(s.txs, session)
	return tx, nil
}

func (s *GraphDBStorage) CommitSession(ctx context.Context, session store.Session) error {
	if session == "" {
		return nil
	}
	tx, err := s.take("commit", session)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &store.BackendError{Operation: "commit", Session: session, Err: err}
	}
	return nil
}

func (s *GraphDBStorage) RollbackSession(ctx context.Context, session store.Session) error {
	if session == "" {
		return nil
	}
	tx, err := s.take("rollback", session)
	if err != nil {
		return err
	}
	if err := tx.Rollback(ctx); err != nil {
		return &store.BackendError{Operation: "rollback", Session: session, Err: err}
	}
	return nil
}

// querier is what both the pool and a pgx.Tx offer.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// db returns the transaction for session, or the plain connection when
// session is empty.
func (s *GraphDBStorage) db(op string, session store.Session) (querier, error) {
	if session == "" {
		return s.conn, nil
	}
	s.txLock.Lock()
	defer s.txLock.Unlock()
	tx, ok := s.txs[session]
	if !ok {
		return nil, &store.BackendError{Operation: op, Session: session, Err: store.ErrNoSession}
	}
	return tx, nil
}

func (s *GraphDBStorage) fail(op string, session store.Session, sql string, args []any, err error) error {
	return &store.BackendError{
		Operation: op,
		Session:   session,
		Payload:   fmt.Sprintf("%s %v", sql, args),
		Err:       err,
	}
}

// Close rolls back open sessions and closes the pool if this storage opened it.
func (s *GraphDBStorage) Close(ctx context.Context) error {
	s.txLock.Lock()
	open := s.txs
	s.txs = make(map[store.Session]pgxv5.Tx)
	s.txLock.Unlock()

	for session, tx := range open {
		if err := tx.Rollback(ctx); err != nil {
			logger.Warn("[Postgres] Failed to roll back open session on close", "session", session, "err", err)
		}
	}
	if s.close != nil {
		s.close()
	}
	return nil
}
