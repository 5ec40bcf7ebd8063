// Package engine reconciles the local study document with the remote table
// store.
//
// The engine is the only writer of the document. It owns four kinds of
// reconciliation:
//
//   - Download: replace local collections wholesale from the remote store.
//   - Push: best-effort update-or-insert of a single record.
//   - MirrorUpload: wipe the user's remote rows and re-create them from the
//     local document, parent before child.
//   - Incremental creates: append locally under a placeholder id, then
//     resolve the id from the remote insert response.
//
// The local store and remote client are injected, never ambient. Public
// operations are serialized by an internal mutex, and every remote-facing
// operation runs under a timeout.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/studentpro/studysync/internal/document"
	"github.com/studentpro/studysync/internal/identity"
	"github.com/studentpro/studysync/internal/remote"
	"github.com/studentpro/studysync/internal/store"
)

// ErrNotSignedIn is returned by operations that need an authenticated user
// when no session exists.
var ErrNotSignedIn = errors.New("not signed in")

// ErrWipeFailed wraps a failure while clearing remote rows during a full
// mirror upload. When the cause is an access-policy rejection,
// remote.IsPermissionDenied also reports true on it.
var ErrWipeFailed = errors.New("remote wipe failed")

// Config holds engine tuning.
type Config struct {
	// Timeout bounds each remote-facing operation.
	Timeout time.Duration

	// Logger for engine activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		Logger:  log.New(os.Stderr, "[engine] ", log.LstdFlags),
	}
}

// Engine is the sync engine. Create with New.
type Engine struct {
	store  *store.Store
	remote remote.Client
	ident  identity.Provider
	config *Config

	mu  sync.Mutex
	doc *document.Document
}

// New loads the document from the local store and returns an engine bound to
// the given collaborators.
func New(st *store.Store, rc remote.Client, ident identity.Provider, config *Config) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if rc == nil {
		return nil, fmt.Errorf("remote client cannot be nil")
	}
	if ident == nil {
		ident = identity.None{}
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	doc, err := st.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load local store: %w", err)
	}

	return &Engine{
		store:  st,
		remote: rc,
		ident:  ident,
		config: config,
		doc:    doc,
	}, nil
}

// Document returns the current in-memory document. The engine is the only
// writer; callers must treat it as read-only.
func (e *Engine) Document() *document.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc
}

// Reload re-reads the document from the local store, discarding the
// in-memory copy. Used when another process has written the store file.
func (e *Engine) Reload() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.store.Load()
	if err != nil {
		return fmt.Errorf("failed to reload local store: %w", err)
	}
	e.doc = doc
	return nil
}

// LastSync returns the time of the last successful download, zero if never.
func (e *Engine) LastSync() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.LastSync
}

// persist saves the document, logging rather than failing the caller when
// the medium rejects the write: the in-memory document stays authoritative.
func (e *Engine) persist() {
	if err := e.store.Save(e.doc); err != nil {
		e.config.Logger.Printf("WARNING: failed to persist document: %v", err)
	}
}

func (e *Engine) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Timeout)
}

// userID returns the current user id or ErrNotSignedIn.
func (e *Engine) userID() (string, error) {
	uid, ok := e.ident.CurrentUserID()
	if !ok {
		return "", ErrNotSignedIn
	}
	return uid, nil
}

// Download replaces the local collections with the remote state for the
// current user.
//
// The five reads run concurrently and the result commits all-or-nothing: if
// any read fails, the local document is left untouched. A user with no
// remote profile row gets one created, with the local profile reset to
// defaults. On success the last-sync time is recorded and the document
// persisted.
func (e *Engine) Download(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	uid, err := e.userID()
	if err != nil {
		return err
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	filters := remote.Filters{"user_id": uid}

	// Staged results; nothing touches e.doc until every read has settled
	// successfully.
	var (
		semesters []document.Semester
		subjects  []document.Subject
		chapters  []document.Chapter
		sessions  []document.StudySession
		profile   []remote.Record
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := e.remote.Select(gctx, remote.TableSemesters, filters)
		if err != nil {
			return err
		}
		return decodeRecords(rows, &semesters)
	})
	g.Go(func() error {
		rows, err := e.remote.Select(gctx, remote.TableSubjects, filters)
		if err != nil {
			return err
		}
		return decodeRecords(rows, &subjects)
	})
	g.Go(func() error {
		rows, err := e.remote.Select(gctx, remote.TableChapters, filters)
		if err != nil {
			return err
		}
		return decodeRecords(rows, &chapters)
	})
	g.Go(func() error {
		rows, err := e.remote.Select(gctx, remote.TableSessions, filters)
		if err != nil {
			return err
		}
		return decodeRecords(rows, &sessions)
	})
	g.Go(func() error {
		var err error
		profile, err = e.remote.Select(gctx, remote.TableProfile, filters)
		return err
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	// A returning user with a fresh remote schema has no profile row yet.
	// Create one now so later profile upserts have something to key on.
	// This is still part of the all-or-nothing window: a failure here
	// leaves the local document untouched.
	var prof document.Profile
	if len(profile) == 0 {
		e.config.Logger.Printf("No remote profile for user, creating one")
		prof = document.New().Profile
		rec := remote.Record{
			"user_id":        uid,
			"xp":             prof.XP,
			"level":          prof.Level,
			"total_sessions": prof.TotalSessions,
		}
		if _, err := e.remote.Insert(ctx, remote.TableProfile, rec); err != nil {
			return fmt.Errorf("download failed: could not create remote profile: %w", err)
		}
	} else {
		// Narrowing projection: only the progression counters cross over.
		var full struct {
			XP            int `json:"xp"`
			Level         int `json:"level"`
			TotalSessions int `json:"total_sessions"`
		}
		if err := decodeRecord(profile[0], &full); err != nil {
			return fmt.Errorf("download failed: bad profile row: %w", err)
		}
		prof = document.Profile(full)
	}

	// Commit point: every remote call succeeded, replace wholesale.
	e.doc.Semesters = semesters
	e.doc.Subjects = subjects
	e.doc.Chapters = chapters
	e.doc.Sessions = sessions
	e.doc.Profile = prof
	e.doc.LastSync = time.Now()
	e.persist()

	e.config.Logger.Printf("Download complete: %d semesters, %d subjects, %d chapters, %d sessions",
		len(semesters), len(subjects), len(chapters), len(sessions))
	return nil
}

// Push update-or-inserts one record into the remote store, attaching the
// current user id. The singleton profile table conflicts on user_id, every
// other table on its primary key.
//
// Push is a best-effort side channel: under Manual sync mode it silently
// no-ops unless force is set, and failures are logged, never returned.
func (e *Engine) Push(ctx context.Context, table string, rec remote.Record, force bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.push(ctx, table, rec, force)
}

// push is Push without the lock, for callers already holding it.
func (e *Engine) push(ctx context.Context, table string, rec remote.Record, force bool) {
	uid, err := e.userID()
	if err != nil {
		return
	}
	if e.doc.Settings.SyncMode == document.SyncManual && !force {
		return
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	payload := make(remote.Record, len(rec)+1)
	for col, val := range rec {
		payload[col] = val
	}
	payload["user_id"] = uid

	conflictKey := "id"
	if table == remote.TableProfile {
		conflictKey = "user_id"
	}

	if _, err := e.remote.Upsert(ctx, table, payload, conflictKey); err != nil {
		e.config.Logger.Printf("WARNING: push to %s failed: %v", table, err)
	}
}

// MirrorUpload makes the remote store exactly mirror the local document for
// the current user.
//
// Chapters are deduplicated and persisted first. Then the user's remote rows
// are wiped child-before-parent (sessions, chapters, subjects, semesters); a
// failed wipe aborts the whole operation before any insert happens, and an
// access-policy rejection stays identifiable via remote.IsPermissionDenied.
// Re-creation runs strictly parent-before-child, rewriting each child's
// foreign key from its parent's insert response. The fresh remote ids are
// not written back locally; follow with Download when local ids need to
// match.
func (e *Engine) MirrorUpload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	uid, err := e.userID()
	if err != nil {
		return err
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	if dropped := e.doc.DedupChapters(); dropped > 0 {
		e.config.Logger.Printf("Deduplicated %d chapter(s)", dropped)
		if err := e.store.Save(e.doc); err != nil {
			return fmt.Errorf("failed to persist deduplicated chapters: %w", err)
		}
	}

	// Wipe, children before parents.
	filters := remote.Filters{"user_id": uid}
	for _, table := range []string{
		remote.TableSessions,
		remote.TableChapters,
		remote.TableSubjects,
		remote.TableSemesters,
	} {
		if err := e.remote.Delete(ctx, table, filters); err != nil {
			if remote.IsPermissionDenied(err) {
				return fmt.Errorf("%w: %w (check the remote access policy)", ErrWipeFailed, err)
			}
			return fmt.Errorf("%w: %w", ErrWipeFailed, err)
		}
	}

	// Profile first, keyed by user id.
	profRec := remote.Record{
		"user_id":        uid,
		"xp":             e.doc.Profile.XP,
		"level":          e.doc.Profile.Level,
		"total_sessions": e.doc.Profile.TotalSessions,
	}
	if _, err := e.remote.Upsert(ctx, remote.TableProfile, profRec, "user_id"); err != nil {
		return fmt.Errorf("mirror upload failed on profile: %w", err)
	}

	// Re-create the hierarchy. Children wait for the parent's new id; the
	// old-to-new subject mapping is kept so sessions can be rewritten too.
	subjectIDs := make(map[int64]int64, len(e.doc.Subjects))
	for _, sem := range e.doc.Semesters {
		rows, err := e.remote.Insert(ctx, remote.TableSemesters, remote.Record{
			"name":    sem.Name,
			"user_id": uid,
		})
		if err != nil {
			return fmt.Errorf("mirror upload failed on semester %q: %w", sem.Name, err)
		}
		semID, err := recordID(rows)
		if err != nil {
			return fmt.Errorf("mirror upload: semester %q: %w", sem.Name, err)
		}

		for _, sub := range e.doc.Subjects {
			if sub.SemesterID != sem.ID {
				continue
			}
			subRec := remote.Record{
				"semester_id": semID,
				"name":        sub.Name,
				"notes":       sub.Notes,
				"user_id":     uid,
			}
			if sub.ExamDate != nil {
				subRec["exam_date"] = *sub.ExamDate
			}
			rows, err := e.remote.Insert(ctx, remote.TableSubjects, subRec)
			if err != nil {
				return fmt.Errorf("mirror upload failed on subject %q: %w", sub.Name, err)
			}
			subID, err := recordID(rows)
			if err != nil {
				return fmt.Errorf("mirror upload: subject %q: %w", sub.Name, err)
			}
			subjectIDs[sub.ID] = subID

			for _, ch := range e.doc.Chapters {
				if ch.SubjectID != sub.ID {
					continue
				}
				_, err := e.remote.Insert(ctx, remote.TableChapters, remote.Record{
					"subject_id":          subID,
					"name":                ch.Name,
					"video_completed":     ch.VideoCompleted,
					"exercises_completed": ch.ExercisesCompleted,
					"is_completed":        ch.IsCompleted,
					"user_id":             uid,
				})
				if err != nil {
					return fmt.Errorf("mirror upload failed on chapter %q: %w", ch.Name, err)
				}
			}
		}
	}

	for _, sub := range e.doc.Subjects {
		if _, ok := subjectIDs[sub.ID]; !ok {
			e.config.Logger.Printf("WARNING: subject %q (id %d) references missing semester %d, not uploaded",
				sub.Name, sub.ID, sub.SemesterID)
		}
	}

	// Sessions last, pointing at the re-created subjects.
	for _, sess := range e.doc.Sessions {
		subID, ok := subjectIDs[sess.SubjectID]
		if !ok {
			e.config.Logger.Printf("WARNING: session %d references missing subject %d, not uploaded",
				sess.ID, sess.SubjectID)
			continue
		}
		_, err := e.remote.Insert(ctx, remote.TableSessions, remote.Record{
			"subject_id":       subID,
			"duration_minutes": sess.DurationMinutes,
			"timestamp":        sess.Timestamp,
			"user_id":          uid,
		})
		if err != nil {
			return fmt.Errorf("mirror upload failed on session %d: %w", sess.ID, err)
		}
	}

	e.config.Logger.Printf("Mirror upload complete: %d semesters, %d subjects, %d chapters, %d sessions",
		len(e.doc.Semesters), len(e.doc.Subjects), len(e.doc.Chapters), len(e.doc.Sessions))
	return nil
}

// recordID pulls the server-assigned id out of an insert response.
func recordID(rows []remote.Record) (int64, error) {
	if len(rows) == 0 {
		return 0, fmt.Errorf("insert returned no rows")
	}
	switch id := rows[0]["id"].(type) {
	case int64:
		return id, nil
	case int32:
		return int64(id), nil
	case int:
		return int64(id), nil
	case float64:
		return int64(id), nil
	}
	return 0, fmt.Errorf("insert response has no usable id")
}

// decodeRecords converts generic rows into a typed collection. Columns the
// type does not declare (user_id, server timestamps) are dropped.
func decodeRecords[T any](rows []remote.Record, out *[]T) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode remote rows: %w", err)
	}
	decoded := make([]T, 0, len(rows))
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("failed to decode remote rows: %w", err)
	}
	*out = decoded
	return nil
}

func decodeRecord(row remote.Record, out any) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode remote row: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode remote row: %w", err)
	}
	return nil
}
