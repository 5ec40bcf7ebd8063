// Package memory implements remote.Client entirely in process.
//
// It behaves like the hosted table store: rows live per table, inserts assign
// positive serial ids, upserts match on a conflict key. Every call is
// recorded in order, and failures can be injected per operation and table,
// which makes it the engine's test double and a stand-in when running
// offline.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/studentpro/studysync/internal/remote"
)

// Call records one client invocation, in order.
type Call struct {
	Op    string // "select", "insert", "upsert", "delete"
	Table string
}

// Client is an in-memory remote store.
type Client struct {
	mu     sync.Mutex
	tables map[string][]remote.Record
	nextID int64
	calls  []Call

	// failures maps "op:table" to an injected error. Use FailWith.
	failures map[string]error
}

// New returns an empty in-memory store.
func New() *Client {
	return &Client{
		tables:   make(map[string][]remote.Record),
		nextID:   1,
		failures: make(map[string]error),
	}
}

// FailWith makes every op on table return err until cleared with err == nil.
func (c *Client) FailWith(op, table string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := op + ":" + table
	if err == nil {
		delete(c.failures, key)
		return
	}
	c.failures[key] = err
}

// Calls returns a copy of the recorded call log.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallsFor returns the recorded calls matching op (empty matches all) and
// table (empty matches all).
func (c *Client) CallsFor(op, table string) []Call {
	var out []Call
	for _, call := range c.Calls() {
		if op != "" && call.Op != op {
			continue
		}
		if table != "" && call.Table != table {
			continue
		}
		out = append(out, call)
	}
	return out
}

// ResetCalls clears the call log without touching stored rows.
func (c *Client) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// Rows returns a copy of every row in table.
func (c *Client) Rows(table string) []remote.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]remote.Record, 0, len(c.tables[table]))
	for _, row := range c.tables[table] {
		out = append(out, cloneRecord(row))
	}
	return out
}

// Seed stores a row verbatim, bypassing call recording. Intended for test
// setup.
func (c *Client) Seed(table string, rec remote.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[table] = append(c.tables[table], cloneRecord(rec))
}

// Select implements remote.Client.
func (c *Client) Select(_ context.Context, table string, filters remote.Filters) ([]remote.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("select", table); err != nil {
		return nil, err
	}

	var out []remote.Record
	for _, row := range c.tables[table] {
		if matches(row, filters) {
			out = append(out, cloneRecord(row))
		}
	}
	return out, nil
}

// Insert implements remote.Client. Rows without an id (or with a negative
// placeholder id) get the next serial id, mirroring the remote store's
// identity columns.
func (c *Client) Insert(_ context.Context, table string, rec remote.Record) ([]remote.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("insert", table); err != nil {
		return nil, err
	}

	row := cloneRecord(rec)
	if id, ok := asInt64(row["id"]); !ok || id <= 0 {
		row["id"] = c.nextID
		c.nextID++
	}
	c.tables[table] = append(c.tables[table], row)
	return []remote.Record{cloneRecord(row)}, nil
}

// Upsert implements remote.Client.
func (c *Client) Upsert(_ context.Context, table string, rec remote.Record, conflictKey string) ([]remote.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("upsert", table); err != nil {
		return nil, err
	}

	keyVal, hasKey := rec[conflictKey]
	if hasKey {
		for i, row := range c.tables[table] {
			if equal(row[conflictKey], keyVal) {
				merged := cloneRecord(row)
				for col, val := range rec {
					merged[col] = val
				}
				c.tables[table][i] = merged
				return []remote.Record{cloneRecord(merged)}, nil
			}
		}
	}

	row := cloneRecord(rec)
	if id, ok := asInt64(row["id"]); !ok || id <= 0 {
		row["id"] = c.nextID
		c.nextID++
	}
	c.tables[table] = append(c.tables[table], row)
	return []remote.Record{cloneRecord(row)}, nil
}

// Delete implements remote.Client.
func (c *Client) Delete(_ context.Context, table string, filters remote.Filters) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("delete", table); err != nil {
		return err
	}

	kept := c.tables[table][:0]
	for _, row := range c.tables[table] {
		if !matches(row, filters) {
			kept = append(kept, row)
		}
	}
	c.tables[table] = kept
	return nil
}

// begin records the call and returns any injected failure. Caller holds mu.
func (c *Client) begin(op, table string) error {
	if !remote.KnownTable(table) {
		return fmt.Errorf("%w: %s", remote.ErrUnknownTable, table)
	}
	c.calls = append(c.calls, Call{Op: op, Table: table})
	if err, ok := c.failures[op+":"+table]; ok {
		return err
	}
	return nil
}

func matches(row remote.Record, filters remote.Filters) bool {
	for col, want := range filters {
		if !equal(row[col], want) {
			return false
		}
	}
	return true
}

// equal compares filter values loosely enough that int/int64 mismatches from
// JSON round-trips still match.
func equal(a, b any) bool {
	if ai, ok := asInt64(a); ok {
		if bi, ok := asInt64(b); ok {
			return ai == bi
		}
	}
	return a == b
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func cloneRecord(rec remote.Record) remote.Record {
	out := make(remote.Record, len(rec))
	for col, val := range rec {
		out[col] = val
	}
	return out
}
