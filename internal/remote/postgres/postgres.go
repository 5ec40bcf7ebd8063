// Package postgres implements the remote.Client capability against a
// Postgres database, which is what the hosted backend exposes underneath its
// table API.
//
// SQL is assembled from a fixed table allowlist and parameter placeholders;
// column names come from the engine's own payloads, never from user input.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studentpro/studysync/internal/remote"
)

// insufficient_privilege; also raised by row-level security rejections.
const permissionDeniedCode = "42501"

// Config tunes the connection pool.
type Config struct {
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// DefaultConfig returns pool settings suitable for a single-user client.
func DefaultConfig() Config {
	return Config{MaxConns: 4, MaxConnLifetime: 5 * time.Minute}
}

// Client is the Postgres-backed remote store.
type Client struct {
	pool *pgxpool.Pool
}

// Open connects to the remote database and verifies the connection.
//
// The caller must Close the client when done.
func Open(ctx context.Context, dsn string, cfg Config) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse remote dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping remote store: %w", err)
	}
	return &Client{pool: pool}, nil
}

// Close releases the connection pool.
func (c *Client) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// Select implements remote.Client.
func (c *Client) Select(ctx context.Context, table string, filters remote.Filters) ([]remote.Record, error) {
	if !remote.KnownTable(table) {
		return nil, fmt.Errorf("%w: %s", remote.ErrUnknownTable, table)
	}

	where, args := buildWhere(filters)
	query := fmt.Sprintf("SELECT * FROM %s%s", table, where)

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("select", table, err)
	}
	defer rows.Close()

	var out []remote.Record
	for rows.Next() {
		rec, err := scanRecord(rows.FieldDescriptions(), rows.Values)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("select", table, err)
	}
	return out, nil
}

// Insert implements remote.Client.
func (c *Client) Insert(ctx context.Context, table string, rec remote.Record) ([]remote.Record, error) {
	if !remote.KnownTable(table) {
		return nil, fmt.Errorf("%w: %s", remote.ErrUnknownTable, table)
	}

	cols, args := splitRecord(rec)
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	return c.returningQuery(ctx, "insert", table, query, args)
}

// Upsert implements remote.Client.
func (c *Client) Upsert(ctx context.Context, table string, rec remote.Record, conflictKey string) ([]remote.Record, error) {
	if !remote.KnownTable(table) {
		return nil, fmt.Errorf("%w: %s", remote.ErrUnknownTable, table)
	}

	cols, args := splitRecord(rec)
	placeholders := make([]string, len(cols))
	var updates []string
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col != conflictKey {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}

	var conflict string
	if len(updates) == 0 {
		conflict = fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", conflictKey)
	} else {
		conflict = fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", conflictKey, strings.Join(updates, ", "))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) %s RETURNING *",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), conflict)

	return c.returningQuery(ctx, "upsert", table, query, args)
}

// Delete implements remote.Client.
func (c *Client) Delete(ctx context.Context, table string, filters remote.Filters) error {
	if !remote.KnownTable(table) {
		return fmt.Errorf("%w: %s", remote.ErrUnknownTable, table)
	}

	where, args := buildWhere(filters)
	query := fmt.Sprintf("DELETE FROM %s%s", table, where)

	if _, err := c.pool.Exec(ctx, query, args...); err != nil {
		return classify("delete", table, err)
	}
	return nil
}

// returningQuery runs a write that returns rows and decodes them.
func (c *Client) returningQuery(ctx context.Context, op, table, query string, args []any) ([]remote.Record, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(op, table, err)
	}
	defer rows.Close()

	var out []remote.Record
	for rows.Next() {
		rec, err := scanRecord(rows.FieldDescriptions(), rows.Values)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, table, err)
	}
	return out, nil
}

// buildWhere renders equality filters as a WHERE clause with ordered
// placeholders. Column order is sorted so queries are deterministic.
func buildWhere(filters remote.Filters) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	cols := make([]string, 0, len(filters))
	for col := range filters {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	preds := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		preds[i] = fmt.Sprintf("%s = $%d", col, i+1)
		args[i] = filters[col]
	}
	return " WHERE " + strings.Join(preds, " AND "), args
}

// splitRecord returns the record's columns (sorted) and matching values.
func splitRecord(rec remote.Record) ([]string, []any) {
	cols := make([]string, 0, len(rec))
	for col := range rec {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, col := range cols {
		args[i] = rec[col]
	}
	return cols, args
}

// scanRecord converts the current row into a Record.
func scanRecord(fields []pgconn.FieldDescription, values func() ([]any, error)) (remote.Record, error) {
	vals, err := values()
	if err != nil {
		return nil, err
	}
	rec := make(remote.Record, len(fields))
	for i, f := range fields {
		rec[f.Name] = vals[i]
	}
	return rec, nil
}

// classify wraps remote errors, tagging access-policy rejections so callers
// can tell them apart from transient faults.
func classify(op, table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == permissionDeniedCode {
		return &remote.PermissionError{Table: table, Op: op, Err: err}
	}
	return fmt.Errorf("remote %s on %s failed: %w", op, table, err)
}
