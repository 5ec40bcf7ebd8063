// Package document defines the typed study-tracker document that the local
// store persists and the sync engine reconciles against the remote store.
//
// The document is a single aggregate: one profile, flat collections of
// semesters, subjects, chapters and study sessions, plus device-local
// settings. Entities reference each other by integer id. Locally created
// entities carry negative placeholder ids until the remote store assigns a
// real (positive) id; see TempID and ResolveID.
package document

import (
	"strings"
	"time"
)

// SchemaVersion is the current document schema version. Load migrates older
// documents forward; see Migrate.
const SchemaVersion = 2

// Sync mode values for Settings.SyncMode.
const (
	SyncAutomatic = "Automatic"
	SyncManual    = "Manual"
)

// Profile holds the per-user progression counters mirrored to the remote
// user_profile row.
type Profile struct {
	XP            int `json:"xp"`
	Level         int `json:"level"`
	TotalSessions int `json:"total_sessions"`
}

// Semester groups subjects. Root of the planner hierarchy.
type Semester struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Subject belongs to a semester and owns chapters.
type Subject struct {
	ID         int64      `json:"id"`
	SemesterID int64      `json:"semester_id"`
	Name       string     `json:"name"`
	ExamDate   *time.Time `json:"exam_date,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// Chapter tracks two independent completion flags per study unit.
// IsCompleted is derived: it is true exactly when both flags are true and is
// only ever written through SetPart.
type Chapter struct {
	ID                 int64  `json:"id"`
	SubjectID          int64  `json:"subject_id"`
	Name               string `json:"name"`
	VideoCompleted     bool   `json:"video_completed"`
	ExercisesCompleted bool   `json:"exercises_completed"`
	IsCompleted        bool   `json:"is_completed"`
}

// Chapter part selectors for SetPart.
const (
	PartVideo     = "video"
	PartExercises = "exercises"
)

// SetPart updates one completion flag and recomputes IsCompleted.
// Unknown parts are ignored.
func (c *Chapter) SetPart(part string, done bool) {
	switch part {
	case PartVideo:
		c.VideoCompleted = done
	case PartExercises:
		c.ExercisesCompleted = done
	}
	c.IsCompleted = c.VideoCompleted && c.ExercisesCompleted
}

// StudySession records one completed study interval. Sessions are
// append-only: once created they are never mutated.
type StudySession struct {
	ID              int64     `json:"id"`
	SubjectID       int64     `json:"subject_id"`
	DurationMinutes int       `json:"duration_minutes"`
	Timestamp       time.Time `json:"timestamp"`
}

// Pomodoro holds countdown durations in minutes. Data only; the engine does
// no scheduling.
type Pomodoro struct {
	Work  int `json:"work"`
	Short int `json:"short"`
	Long  int `json:"long"`
}

// Settings are device-local preferences. Never synced to the remote store.
type Settings struct {
	Theme    string   `json:"theme"`
	Language string   `json:"language"`
	SyncMode string   `json:"sync_mode"`
	Pomodoro Pomodoro `json:"pomodoro"`
}

// Document is the whole locally persisted state.
type Document struct {
	SchemaVersion int            `json:"schema_version"`
	Profile       Profile        `json:"user_profile"`
	Semesters     []Semester     `json:"semesters"`
	Subjects      []Subject      `json:"subjects"`
	Chapters      []Chapter      `json:"chapters"`
	Sessions      []StudySession `json:"study_sessions"`
	Settings      Settings       `json:"settings"`
	LastSync      time.Time      `json:"last_sync,omitempty"`
}

// New returns a default-initialized document for a first run.
func New() *Document {
	return &Document{
		SchemaVersion: SchemaVersion,
		Profile:       Profile{XP: 0, Level: 1, TotalSessions: 0},
		Semesters:     []Semester{},
		Subjects:      []Subject{},
		Chapters:      []Chapter{},
		Sessions:      []StudySession{},
		Settings: Settings{
			Theme:    "Light",
			Language: "English",
			SyncMode: SyncAutomatic,
			Pomodoro: Pomodoro{Work: 25, Short: 5, Long: 15},
		},
	}
}

// Migrate brings an older document forward to the current schema version,
// filling defaults for fields that did not exist when it was written.
func (d *Document) Migrate() {
	if d.Profile.Level < 1 {
		d.Profile.Level = 1
	}
	if d.Settings.Theme == "" {
		d.Settings.Theme = "Light"
	}
	if d.Settings.Language == "" {
		d.Settings.Language = "English"
	}
	if d.Settings.SyncMode == "" {
		d.Settings.SyncMode = SyncAutomatic
	}
	if d.Settings.Pomodoro == (Pomodoro{}) {
		d.Settings.Pomodoro = Pomodoro{Work: 25, Short: 5, Long: 15}
	}
	d.SchemaVersion = SchemaVersion
}

// TempID returns the next placeholder id for a locally created entity.
// Placeholder ids are negative so they can never collide with the positive
// serial ids the remote store assigns. Each call returns an id strictly
// below every id currently in the document.
func (d *Document) TempID() int64 {
	min := int64(0)
	for _, s := range d.Semesters {
		if s.ID < min {
			min = s.ID
		}
	}
	for _, s := range d.Subjects {
		if s.ID < min {
			min = s.ID
		}
	}
	for _, c := range d.Chapters {
		if c.ID < min {
			min = c.ID
		}
	}
	for _, s := range d.Sessions {
		if s.ID < min {
			min = s.ID
		}
	}
	return min - 1
}

// IsTempID reports whether id is an unresolved local placeholder.
func IsTempID(id int64) bool { return id < 0 }

// Entity kind selectors for ResolveID.
const (
	KindSemester = "semester"
	KindSubject  = "subject"
	KindChapter  = "chapter"
	KindSession  = "session"
)

// ResolveID replaces a placeholder id with the remote-assigned id, in place,
// and rewrites every foreign key that referenced the placeholder. After a
// successful resolve the entity is reachable only under its new id.
// Returns false if no entity of that kind carries tempID.
func (d *Document) ResolveID(kind string, tempID, newID int64) bool {
	switch kind {
	case KindSemester:
		for i := range d.Semesters {
			if d.Semesters[i].ID == tempID {
				d.Semesters[i].ID = newID
				for j := range d.Subjects {
					if d.Subjects[j].SemesterID == tempID {
						d.Subjects[j].SemesterID = newID
					}
				}
				return true
			}
		}
	case KindSubject:
		for i := range d.Subjects {
			if d.Subjects[i].ID == tempID {
				d.Subjects[i].ID = newID
				for j := range d.Chapters {
					if d.Chapters[j].SubjectID == tempID {
						d.Chapters[j].SubjectID = newID
					}
				}
				for j := range d.Sessions {
					if d.Sessions[j].SubjectID == tempID {
						d.Sessions[j].SubjectID = newID
					}
				}
				return true
			}
		}
	case KindChapter:
		for i := range d.Chapters {
			if d.Chapters[i].ID == tempID {
				d.Chapters[i].ID = newID
				return true
			}
		}
	case KindSession:
		for i := range d.Sessions {
			if d.Sessions[i].ID == tempID {
				d.Sessions[i].ID = newID
				return true
			}
		}
	}
	return false
}

// FindSemester returns a pointer into the semesters slice, or nil.
func (d *Document) FindSemester(id int64) *Semester {
	for i := range d.Semesters {
		if d.Semesters[i].ID == id {
			return &d.Semesters[i]
		}
	}
	return nil
}

// FindSubject returns a pointer into the subjects slice, or nil.
func (d *Document) FindSubject(id int64) *Subject {
	for i := range d.Subjects {
		if d.Subjects[i].ID == id {
			return &d.Subjects[i]
		}
	}
	return nil
}

// FindChapter returns a pointer into the chapters slice, or nil.
func (d *Document) FindChapter(id int64) *Chapter {
	for i := range d.Chapters {
		if d.Chapters[i].ID == id {
			return &d.Chapters[i]
		}
	}
	return nil
}

// chapterKey is the duplicate identity for DedupChapters: same subject plus
// the same name after trimming and case folding.
func chapterKey(c Chapter) string {
	return strings.ToLower(strings.TrimSpace(c.Name))
}

// DedupChapters removes duplicate chapters, keeping the first occurrence of
// each (subject_id, trimmed case-insensitive name) pair in original order.
// Idempotent: running it twice changes nothing. Returns the number of
// chapters dropped.
func (d *Document) DedupChapters() int {
	type key struct {
		subject int64
		name    string
	}
	seen := make(map[key]bool, len(d.Chapters))
	kept := d.Chapters[:0]
	dropped := 0
	for _, c := range d.Chapters {
		k := key{c.SubjectID, chapterKey(c)}
		if seen[k] {
			dropped++
			continue
		}
		seen[k] = true
		kept = append(kept, c)
	}
	d.Chapters = kept
	return dropped
}

// RemoveSemester deletes a semester and cascades to its subjects, their
// chapters and their sessions. Returns true if the semester existed.
func (d *Document) RemoveSemester(id int64) bool {
	found := false
	semesters := d.Semesters[:0]
	for _, s := range d.Semesters {
		if s.ID == id {
			found = true
			continue
		}
		semesters = append(semesters, s)
	}
	d.Semesters = semesters
	if !found {
		return false
	}
	var doomed []int64
	for _, sub := range d.Subjects {
		if sub.SemesterID == id {
			doomed = append(doomed, sub.ID)
		}
	}
	for _, subID := range doomed {
		d.RemoveSubject(subID)
	}
	return true
}

// RemoveSubject deletes a subject and cascades to its chapters and sessions.
// Returns true if the subject existed.
func (d *Document) RemoveSubject(id int64) bool {
	found := false
	subjects := d.Subjects[:0]
	for _, s := range d.Subjects {
		if s.ID == id {
			found = true
			continue
		}
		subjects = append(subjects, s)
	}
	d.Subjects = subjects
	if !found {
		return false
	}
	chapters := d.Chapters[:0]
	for _, c := range d.Chapters {
		if c.SubjectID != id {
			chapters = append(chapters, c)
		}
	}
	d.Chapters = chapters
	sessions := d.Sessions[:0]
	for _, s := range d.Sessions {
		if s.SubjectID != id {
			sessions = append(sessions, s)
		}
	}
	d.Sessions = sessions
	return true
}

// RemoveChapter deletes a single chapter. Returns true if it existed.
func (d *Document) RemoveChapter(id int64) bool {
	found := false
	chapters := d.Chapters[:0]
	for _, c := range d.Chapters {
		if c.ID == id {
			found = true
			continue
		}
		chapters = append(chapters, c)
	}
	d.Chapters = chapters
	return found
}
