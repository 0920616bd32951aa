// Package db owns the process-wide connection pool to the credential store.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var ErrClosed = errors.New("db manager closed")

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// Migrator applies schema migrations to a freshly opened pool.
type Migrator interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
}

type Options struct {
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// Manager opens the pool lazily. Concurrent callers of Conn share the same
// *sql.DB and at most one open is in flight. Only a successful open is kept;
// after a failure the next Conn tries again.
type Manager struct {
	dsn      string
	opts     Options
	migrator Migrator

	openMu sync.Mutex // serialises open attempts
	mu     sync.Mutex // guards db and closed
	db     *sql.DB
	closed bool
}

// NewManager does no I/O. migrator may be nil.
func NewManager(dsn string, opts Options, migrator Migrator) *Manager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	return &Manager{dsn: dsn, opts: opts, migrator: migrator}
}

// Conn returns the shared pool, opening, pinging and migrating it when no
// healthy pool exists yet.
func (m *Manager) Conn(ctx context.Context) (*sql.DB, error) {
	if db, err := m.current(); db != nil || err != nil {
		return db, err
	}

	m.openMu.Lock()
	defer m.openMu.Unlock()

	// another caller may have finished opening while we waited
	if db, err := m.current(); db != nil || err != nil {
		return db, err
	}

	db, err := m.open(context.WithoutCancel(ctx))
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		_ = db.Close()
		return nil, ErrClosed
	}
	m.db = db
	return db, nil
}

func (m *Manager) current() (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.db, nil
}

func (m *Manager) open(ctx context.Context) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	db, err := sqlOpen("pgx", m.dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if m.opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(m.opts.MaxOpenConns)
		db.SetMaxIdleConns(m.opts.MaxOpenConns)
	}
	if m.opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(m.opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if m.migrator != nil {
		if err := m.migrator.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migration error: %w", err)
		}
	}

	return db, nil
}

// Ping checks the pool, opening it first when needed.
func (m *Manager) Ping(ctx context.Context) error {
	db, err := m.Conn(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close releases the pool if it was opened. Later Conn calls fail with
// ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}
