package legacy

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/studentpro/studysync/internal/document"
)

// writeLegacyDB builds a database with the old desktop client's schema.
func writeLegacyDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "student_data.db")

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	stmts := []string{
		`CREATE TABLE semesters (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE subjects (id INTEGER PRIMARY KEY, semester_id INTEGER, name TEXT NOT NULL)`,
		`CREATE TABLE chapters (id INTEGER PRIMARY KEY, subject_id INTEGER NOT NULL, name TEXT NOT NULL, is_completed INTEGER NOT NULL DEFAULT 0)`,
		`INSERT INTO semesters (id, name) VALUES (1, 'Winter 2024')`,
		`INSERT INTO subjects (id, semester_id, name) VALUES (10, 1, 'Calculus')`,
		`INSERT INTO subjects (id, semester_id, name) VALUES (11, NULL, 'Detached')`,
		`INSERT INTO chapters (id, subject_id, name, is_completed) VALUES (20, 10, 'Derivatives', 1)`,
		`INSERT INTO chapters (id, subject_id, name, is_completed) VALUES (21, 10, 'Integrals', 0)`,
	}
	for _, stmt := range stmts {
		if _, err := conn.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return path
}

func TestRead(t *testing.T) {
	data, err := Read(writeLegacyDB(t))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if len(data.Semesters) != 1 || data.Semesters[0].Name != "Winter 2024" {
		t.Errorf("unexpected semesters: %+v", data.Semesters)
	}
	if len(data.Subjects) != 2 {
		t.Fatalf("expected 2 subjects, got %d", len(data.Subjects))
	}
	if data.Subjects[1].SemesterID != 0 {
		t.Errorf("NULL semester_id should read as 0, got %d", data.Subjects[1].SemesterID)
	}

	if len(data.Chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(data.Chapters))
	}
	done := data.Chapters[0]
	if !done.VideoCompleted || !done.ExercisesCompleted || !done.IsCompleted {
		t.Errorf("legacy completed flag should set all three flags: %+v", done)
	}
	if data.Chapters[1].IsCompleted {
		t.Errorf("incomplete legacy chapter imported as complete: %+v", data.Chapters[1])
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "nope.db")); err == nil {
		t.Error("expected error for missing database")
	}
}

func TestMergeInto(t *testing.T) {
	data, err := Read(writeLegacyDB(t))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	doc := document.New()
	doc.Semesters = append(doc.Semesters, document.Semester{ID: 5, Name: "Existing"})

	added := data.MergeInto(doc)
	if added != 5 {
		t.Errorf("added = %d, want 5", added)
	}
	if len(doc.Semesters) != 2 {
		t.Errorf("expected existing semester kept, got %+v", doc.Semesters)
	}

	// Every grafted entity carries a placeholder id and the hierarchy holds.
	sem := doc.Semesters[1]
	if !document.IsTempID(sem.ID) {
		t.Errorf("imported semester has non-placeholder id %d", sem.ID)
	}
	var calculus *document.Subject
	for i := range doc.Subjects {
		if doc.Subjects[i].Name == "Calculus" {
			calculus = &doc.Subjects[i]
		}
	}
	if calculus == nil {
		t.Fatal("imported subject missing")
	}
	if calculus.SemesterID != sem.ID {
		t.Errorf("subject not linked to imported semester: %d vs %d", calculus.SemesterID, sem.ID)
	}
	for _, ch := range doc.Chapters {
		if !document.IsTempID(ch.ID) {
			t.Errorf("imported chapter has non-placeholder id %d", ch.ID)
		}
		if ch.SubjectID != calculus.ID {
			t.Errorf("chapter not linked to imported subject: %d", ch.SubjectID)
		}
	}
}
