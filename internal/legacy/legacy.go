// Package legacy imports study data from the old desktop client's SQLite
// database into the document.
//
// The desktop client kept semesters, subjects and chapters in a local
// student_data.db. Importing reads that hierarchy and grafts it into the
// current document under placeholder ids; a mirror upload afterwards makes
// it the remote state.
package legacy

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/studentpro/studysync/internal/document"
)

// Data is the hierarchy read from a legacy database, keyed by the legacy
// integer ids.
type Data struct {
	Semesters []document.Semester
	Subjects  []document.Subject
	Chapters  []document.Chapter
}

// Read loads the legacy database at path.
//
// The legacy chapter model had a single completion flag; an imported
// completed chapter gets both the video and exercises flags set so the
// derived state matches.
func Read(path string) (*Data, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("legacy database not found at %s: %w", path, err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy database: %w", err)
	}
	defer conn.Close()

	data := &Data{}

	rows, err := conn.Query("SELECT id, name FROM semesters ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy semesters: %w", err)
	}
	for rows.Next() {
		var s document.Semester
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan legacy semester: %w", err)
		}
		data.Semesters = append(data.Semesters, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read legacy semesters: %w", err)
	}

	rows, err = conn.Query("SELECT id, COALESCE(semester_id, 0), name FROM subjects ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy subjects: %w", err)
	}
	for rows.Next() {
		var s document.Subject
		if err := rows.Scan(&s.ID, &s.SemesterID, &s.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan legacy subject: %w", err)
		}
		data.Subjects = append(data.Subjects, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read legacy subjects: %w", err)
	}

	rows, err = conn.Query("SELECT id, subject_id, name, is_completed FROM chapters ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy chapters: %w", err)
	}
	for rows.Next() {
		var c document.Chapter
		var done bool
		if err := rows.Scan(&c.ID, &c.SubjectID, &c.Name, &done); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan legacy chapter: %w", err)
		}
		c.VideoCompleted = done
		c.ExercisesCompleted = done
		c.IsCompleted = done
		data.Chapters = append(data.Chapters, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read legacy chapters: %w", err)
	}

	return data, nil
}

// MergeInto grafts the legacy hierarchy into doc under fresh placeholder
// ids, preserving parent links. Returns the number of entities added.
func (d *Data) MergeInto(doc *document.Document) int {
	added := 0

	semIDs := make(map[int64]int64, len(d.Semesters))
	for _, sem := range d.Semesters {
		newSem := document.Semester{ID: doc.TempID(), Name: sem.Name}
		semIDs[sem.ID] = newSem.ID
		doc.Semesters = append(doc.Semesters, newSem)
		added++
	}

	subIDs := make(map[int64]int64, len(d.Subjects))
	for _, sub := range d.Subjects {
		newSub := document.Subject{
			ID:         doc.TempID(),
			SemesterID: semIDs[sub.SemesterID],
			Name:       sub.Name,
		}
		subIDs[sub.ID] = newSub.ID
		doc.Subjects = append(doc.Subjects, newSub)
		added++
	}

	for _, ch := range d.Chapters {
		newCh := ch
		newCh.ID = doc.TempID()
		newCh.SubjectID = subIDs[ch.SubjectID]
		doc.Chapters = append(doc.Chapters, newCh)
		added++
	}

	return added
}
