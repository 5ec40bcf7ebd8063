// Package remote defines the remote table-store capability the sync engine
// consumes.
//
// The remote store is a generic multi-tenant table API: select, insert,
// update-or-insert and delete, each filtered by equality predicates. The
// engine never sees a wire protocol; it talks to this interface and the
// concrete client (Postgres in production, in-memory in tests) is injected.
package remote

import "context"

// Table names in the remote schema. Clients reject anything outside this set
// so dynamic SQL can never range over an unexpected identifier.
const (
	TableSemesters = "semesters"
	TableSubjects  = "subjects"
	TableChapters  = "chapters"
	TableProfile   = "user_profile"
	TableSessions  = "study_sessions"
)

// Tables lists every known table.
var Tables = []string{TableSemesters, TableSubjects, TableChapters, TableProfile, TableSessions}

// KnownTable reports whether name is part of the remote schema.
func KnownTable(name string) bool {
	for _, t := range Tables {
		if t == name {
			return true
		}
	}
	return false
}

// Record is one row, keyed by column name. Partial records are fine: absent
// columns are left to the remote store's defaults.
type Record map[string]any

// Filters is a conjunction of column equality predicates.
type Filters map[string]any

// Client is the consumed remote-store capability.
//
// All methods are safe to call concurrently. Implementations must return an
// error rather than panic on any failure, and must satisfy the error
// classification contract in errors.go (permission rejections are
// distinguishable via IsPermissionDenied).
type Client interface {
	// Select returns every row of table matching all filters.
	Select(ctx context.Context, table string, filters Filters) ([]Record, error)

	// Insert adds a row and returns the stored rows, including any
	// server-assigned columns such as the id.
	Insert(ctx context.Context, table string, rec Record) ([]Record, error)

	// Upsert inserts or, on a conflictKey collision, updates the matched
	// row. Returns the stored rows.
	Upsert(ctx context.Context, table string, rec Record, conflictKey string) ([]Record, error)

	// Delete removes every row matching all filters.
	Delete(ctx context.Context, table string, filters Filters) error
}
