package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/studentpro/studysync/internal/document"
	"github.com/studentpro/studysync/internal/remote"
)

// XP awarded per logged study session; a level spans 500 XP.
const (
	xpPerSession = 50
	xpPerLevel   = 500
)

// AddSemester creates a semester locally under a placeholder id, persists
// it, then inserts it remotely. On insert success the placeholder is
// replaced in place by the server-assigned id; on failure the semester stays
// local under its placeholder id until a later mirror upload reconciles it.
//
// The returned semester carries whichever id the entity ended up with.
func (e *Engine) AddSemester(ctx context.Context, name string) (document.Semester, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return document.Semester{}, fmt.Errorf("semester name cannot be empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sem := document.Semester{ID: e.doc.TempID(), Name: name}
	e.doc.Semesters = append(e.doc.Semesters, sem)
	if err := e.store.Save(e.doc); err != nil {
		return document.Semester{}, fmt.Errorf("failed to persist semester: %w", err)
	}

	id := e.createRemote(ctx, remote.TableSemesters, document.KindSemester, sem.ID, remote.Record{
		"name": sem.Name,
	})
	sem.ID = id
	return sem, nil
}

// AddSubject creates a subject under the given semester. examDate may be
// nil. Same placeholder-id lifecycle as AddSemester.
func (e *Engine) AddSubject(ctx context.Context, semesterID int64, name string, examDate *time.Time) (document.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return document.Subject{}, fmt.Errorf("subject name cannot be empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.doc.FindSemester(semesterID) == nil {
		return document.Subject{}, fmt.Errorf("semester %d not found", semesterID)
	}

	sub := document.Subject{
		ID:         e.doc.TempID(),
		SemesterID: semesterID,
		Name:       name,
		ExamDate:   examDate,
	}
	e.doc.Subjects = append(e.doc.Subjects, sub)
	if err := e.store.Save(e.doc); err != nil {
		return document.Subject{}, fmt.Errorf("failed to persist subject: %w", err)
	}

	rec := remote.Record{
		"semester_id": sub.SemesterID,
		"name":        sub.Name,
	}
	if examDate != nil {
		rec["exam_date"] = *examDate
	}
	// A subject under a still-unresolved semester cannot be inserted yet:
	// the payload needs the semester's real id. It stays pending locally.
	if document.IsTempID(semesterID) {
		e.config.Logger.Printf("Subject %q deferred: parent semester %d is not synced yet", sub.Name, semesterID)
		return sub, nil
	}

	id := e.createRemote(ctx, remote.TableSubjects, document.KindSubject, sub.ID, rec)
	sub.ID = id
	return sub, nil
}

// AddChapter creates a chapter under the given subject.
func (e *Engine) AddChapter(ctx context.Context, subjectID int64, name string) (document.Chapter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return document.Chapter{}, fmt.Errorf("chapter name cannot be empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.doc.FindSubject(subjectID) == nil {
		return document.Chapter{}, fmt.Errorf("subject %d not found", subjectID)
	}

	ch := document.Chapter{
		ID:        e.doc.TempID(),
		SubjectID: subjectID,
		Name:      name,
	}
	e.doc.Chapters = append(e.doc.Chapters, ch)
	if err := e.store.Save(e.doc); err != nil {
		return document.Chapter{}, fmt.Errorf("failed to persist chapter: %w", err)
	}

	if document.IsTempID(subjectID) {
		e.config.Logger.Printf("Chapter %q deferred: parent subject %d is not synced yet", ch.Name, subjectID)
		return ch, nil
	}

	id := e.createRemote(ctx, remote.TableChapters, document.KindChapter, ch.ID, remote.Record{
		"subject_id":          ch.SubjectID,
		"name":                ch.Name,
		"video_completed":     false,
		"exercises_completed": false,
		"is_completed":        false,
	})
	ch.ID = id
	return ch, nil
}

// LogSession appends a study session and advances the profile counters:
// one more session, 50 XP, a level every 500 XP. Sessions are append-only;
// nothing ever edits one after this. The session insert and the profile
// push are both best-effort.
func (e *Engine) LogSession(ctx context.Context, subjectID int64, durationMinutes int) (document.StudySession, error) {
	if durationMinutes <= 0 {
		return document.StudySession{}, fmt.Errorf("session duration must be positive (got %d)", durationMinutes)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.doc.FindSubject(subjectID) == nil {
		return document.StudySession{}, fmt.Errorf("subject %d not found", subjectID)
	}

	sess := document.StudySession{
		ID:              e.doc.TempID(),
		SubjectID:       subjectID,
		DurationMinutes: durationMinutes,
		Timestamp:       time.Now(),
	}
	e.doc.Sessions = append(e.doc.Sessions, sess)

	e.doc.Profile.TotalSessions++
	e.doc.Profile.XP += xpPerSession
	e.doc.Profile.Level = 1 + e.doc.Profile.XP/xpPerLevel

	if err := e.store.Save(e.doc); err != nil {
		return document.StudySession{}, fmt.Errorf("failed to persist session: %w", err)
	}

	if !document.IsTempID(subjectID) {
		id := e.createRemote(ctx, remote.TableSessions, document.KindSession, sess.ID, remote.Record{
			"subject_id":       sess.SubjectID,
			"duration_minutes": sess.DurationMinutes,
			"timestamp":        sess.Timestamp,
		})
		sess.ID = id
	}

	e.push(ctx, remote.TableProfile, remote.Record{
		"xp":             e.doc.Profile.XP,
		"level":          e.doc.Profile.Level,
		"total_sessions": e.doc.Profile.TotalSessions,
	}, false)

	return sess, nil
}

// createRemote inserts a freshly created entity and resolves its placeholder
// id from the response. Remote failure leaves the entity pending under its
// placeholder id: logged, no retry, no rollback. Returns the id the entity
// now carries. Caller holds the engine lock.
func (e *Engine) createRemote(ctx context.Context, table, kind string, tempID int64, rec remote.Record) int64 {
	uid, err := e.userID()
	if err != nil {
		e.config.Logger.Printf("%s insert skipped (%v), keeping local id %d", kind, err, tempID)
		return tempID
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	payload := make(remote.Record, len(rec)+1)
	for col, val := range rec {
		payload[col] = val
	}
	payload["user_id"] = uid

	rows, err := e.remote.Insert(ctx, table, payload)
	if err != nil {
		e.config.Logger.Printf("WARNING: %s insert failed (%v), keeping local id %d", kind, err, tempID)
		return tempID
	}

	newID, err := recordID(rows)
	if err != nil {
		e.config.Logger.Printf("WARNING: %s insert response unusable (%v), keeping local id %d", kind, err, tempID)
		return tempID
	}

	if !e.doc.ResolveID(kind, tempID, newID) {
		e.config.Logger.Printf("WARNING: %s %d vanished before id resolution", kind, tempID)
		return tempID
	}
	e.persist()
	return newID
}

// SetChapterPart toggles one completion flag on a chapter. The derived
// is_completed flag is recomputed, the document persisted and the new state
// pushed best-effort.
func (e *Engine) SetChapterPart(ctx context.Context, chapterID int64, part string, done bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := e.doc.FindChapter(chapterID)
	if ch == nil {
		return fmt.Errorf("chapter %d not found", chapterID)
	}
	ch.SetPart(part, done)
	if err := e.store.Save(e.doc); err != nil {
		return fmt.Errorf("failed to persist chapter: %w", err)
	}

	if !document.IsTempID(ch.ID) {
		e.push(ctx, remote.TableChapters, remote.Record{
			"id":                  ch.ID,
			"subject_id":          ch.SubjectID,
			"video_completed":     ch.VideoCompleted,
			"exercises_completed": ch.ExercisesCompleted,
			"is_completed":        ch.IsCompleted,
		}, false)
	}
	return nil
}

// SaveSubjectNotes replaces a subject's notes and pushes them best-effort.
func (e *Engine) SaveSubjectNotes(ctx context.Context, subjectID int64, notes string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := e.doc.FindSubject(subjectID)
	if sub == nil {
		return fmt.Errorf("subject %d not found", subjectID)
	}
	sub.Notes = notes
	if err := e.store.Save(e.doc); err != nil {
		return fmt.Errorf("failed to persist notes: %w", err)
	}

	if !document.IsTempID(sub.ID) {
		e.push(ctx, remote.TableSubjects, remote.Record{
			"id":    sub.ID,
			"notes": sub.Notes,
		}, false)
	}
	return nil
}

// DeleteSemester removes a semester and everything under it locally, then
// deletes the remote row best-effort. Remote child rows cascade on the
// remote side.
func (e *Engine) DeleteSemester(ctx context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.doc.RemoveSemester(id) {
		return fmt.Errorf("semester %d not found", id)
	}
	if err := e.store.Save(e.doc); err != nil {
		return fmt.Errorf("failed to persist delete: %w", err)
	}
	e.deleteRemote(ctx, remote.TableSemesters, id)
	return nil
}

// DeleteSubject removes a subject, its chapters and its sessions locally,
// then deletes the remote row best-effort.
func (e *Engine) DeleteSubject(ctx context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.doc.RemoveSubject(id) {
		return fmt.Errorf("subject %d not found", id)
	}
	if err := e.store.Save(e.doc); err != nil {
		return fmt.Errorf("failed to persist delete: %w", err)
	}
	e.deleteRemote(ctx, remote.TableSubjects, id)
	return nil
}

// DeleteChapter removes a single chapter locally, then deletes the remote
// row best-effort.
func (e *Engine) DeleteChapter(ctx context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.doc.RemoveChapter(id) {
		return fmt.Errorf("chapter %d not found", id)
	}
	if err := e.store.Save(e.doc); err != nil {
		return fmt.Errorf("failed to persist delete: %w", err)
	}
	e.deleteRemote(ctx, remote.TableChapters, id)
	return nil
}

// deleteRemote removes a row by id, best-effort. Entities that never got a
// server id have nothing remote to delete. Caller holds the engine lock.
func (e *Engine) deleteRemote(ctx context.Context, table string, id int64) {
	if document.IsTempID(id) {
		return
	}
	uid, err := e.userID()
	if err != nil {
		return
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	if err := e.remote.Delete(ctx, table, remote.Filters{"id": id, "user_id": uid}); err != nil {
		e.config.Logger.Printf("WARNING: remote delete from %s failed: %v", table, err)
	}
}

// LegacyData is a hierarchy of entities grafted in from an external source,
// such as the old desktop client's database.
type LegacyData interface {
	MergeInto(doc *document.Document) int
}

// ImportLegacy grafts externally sourced entities into the document under
// placeholder ids and persists the result. A mirror upload afterwards
// assigns real ids remotely.
func (e *Engine) ImportLegacy(data LegacyData) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	added := data.MergeInto(e.doc)
	if err := e.store.Save(e.doc); err != nil {
		return 0, fmt.Errorf("failed to persist imported data: %w", err)
	}
	return added, nil
}

// SetSyncMode switches between automatic and manual push policy. The change
// is local only; settings never sync.
func (e *Engine) SetSyncMode(mode string) error {
	if mode != document.SyncAutomatic && mode != document.SyncManual {
		return fmt.Errorf("unknown sync mode %q", mode)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.doc.Settings.SyncMode = mode
	if err := e.store.Save(e.doc); err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	return nil
}

// Reset wipes the persisted local state and replaces the in-memory document
// with a fresh default one. The remote store is untouched.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Reset(); err != nil {
		return err
	}
	e.doc = document.New()
	return nil
}
