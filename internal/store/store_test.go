package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/studentpro/studysync/internal/document"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "studysync.json"))
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.SchemaVersion != document.SchemaVersion {
		t.Errorf("expected schema version %d, got %d", document.SchemaVersion, doc.SchemaVersion)
	}
	if doc.Profile.Level != 1 {
		t.Errorf("expected default profile, got %+v", doc.Profile)
	}

	// A first-run Load must not create the file.
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Error("Load created the store file")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	doc := document.New()
	doc.Semesters = append(doc.Semesters, document.Semester{ID: 1, Name: "Fall 2026"})
	doc.Subjects = append(doc.Subjects, document.Subject{ID: 2, SemesterID: 1, Name: "Analysis"})
	doc.Chapters = append(doc.Chapters, document.Chapter{ID: 3, SubjectID: 2, Name: "Limits", VideoCompleted: true})
	doc.Sessions = append(doc.Sessions, document.StudySession{
		ID: 4, SubjectID: 2, DurationMinutes: 25, Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	doc.Profile = document.Profile{XP: 50, Level: 1, TotalSessions: 1}

	if err := s.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Semesters) != 1 || got.Semesters[0].Name != "Fall 2026" {
		t.Errorf("semesters did not round-trip: %+v", got.Semesters)
	}
	if len(got.Chapters) != 1 || !got.Chapters[0].VideoCompleted {
		t.Errorf("chapters did not round-trip: %+v", got.Chapters)
	}
	if !got.Sessions[0].Timestamp.Equal(doc.Sessions[0].Timestamp) {
		t.Errorf("session timestamp did not round-trip: %v", got.Sessions[0].Timestamp)
	}
	if got.Profile != doc.Profile {
		t.Errorf("profile did not round-trip: %+v", got.Profile)
	}
}

func TestSaveCreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "nested", "deeper", "studysync.json"))

	if err := s.Save(document.New()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Fatalf("store file missing after Save: %v", err)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(document.New()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != DefaultFilename {
		t.Errorf("unexpected directory contents after Save: %v", entries)
	}
}

func TestLoadMigratesOldSchema(t *testing.T) {
	s := newTestStore(t)

	// A version-1 file never carried settings or a level.
	old := []byte(`{"schema_version":1,"user_profile":{"xp":100,"level":0,"total_sessions":2},"semesters":[{"id":1,"name":"S1"}]}`)
	if err := os.WriteFile(s.Path(), old, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	doc, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.SchemaVersion != document.SchemaVersion {
		t.Errorf("expected schema version %d, got %d", document.SchemaVersion, doc.SchemaVersion)
	}
	if doc.Profile.Level != 1 {
		t.Errorf("migrate did not fix level: %d", doc.Profile.Level)
	}
	if doc.Settings.SyncMode != document.SyncAutomatic {
		t.Errorf("migrate did not fill sync mode: %q", doc.Settings.SyncMode)
	}
	if doc.Profile.XP != 100 || len(doc.Semesters) != 1 {
		t.Error("migrate lost existing data")
	}
}

func TestLoadCorruptFile(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := s.Load(); err == nil {
		t.Error("expected error for corrupt store file")
	}
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(document.New()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Error("store file still present after Reset")
	}

	// Resetting an already-clean store is not an error.
	if err := s.Reset(); err != nil {
		t.Errorf("Reset on missing file: %v", err)
	}
}
