package records

import (
	"context"
	"database/sql"
	"sync"
)

// StmtCache maps a query string to its prepared statement.
type StmtCache struct {
	db *sql.DB
	m  sync.Map
}

// NewStmtCache creates an empty cache over db.
func NewStmtCache(db *sql.DB) *StmtCache {
	return &StmtCache{db: db}
}

// Prepare returns the cached statement for query, preparing it on first use.
func (sc *StmtCache) Prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	if cached, ok := sc.m.Load(query); ok {
		return cached.(*sql.Stmt), nil
	}
	stmt, err := sc.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	if existing, loaded := sc.m.LoadOrStore(query, stmt); loaded {
		_ = stmt.Close()
		return existing.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Clear closes and forgets every statement.
func (sc *StmtCache) Clear() {
	sc.m.Range(func(k, v interface{}) bool {
		_ = v.(*sql.Stmt).Close()
		sc.m.Delete(k)
		return true
	})
}
