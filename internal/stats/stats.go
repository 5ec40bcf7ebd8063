// Package stats computes read-only dashboard projections over the study
// document: overall and per-subject progress, the next upcoming exam, the
// daily study streak and the to-do list.
//
// Everything here is a pure function. Time-dependent accessors take the
// current time as a parameter instead of reading the clock.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/studentpro/studysync/internal/document"
)

// Progress is a completion tally where each chapter contributes two units:
// one for the video, one for the exercises.
type Progress struct {
	Done  int
	Total int
}

// Ratio returns completion in [0,1], or 0 when there is nothing to do.
func (p Progress) Ratio() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Done) / float64(p.Total)
}

// Overall tallies progress across every chapter in the document.
func Overall(doc *document.Document) Progress {
	return tally(doc.Chapters)
}

// ForSubject tallies progress for one subject's chapters.
func ForSubject(doc *document.Document, subjectID int64) Progress {
	var chapters []document.Chapter
	for _, c := range doc.Chapters {
		if c.SubjectID == subjectID {
			chapters = append(chapters, c)
		}
	}
	return tally(chapters)
}

func tally(chapters []document.Chapter) Progress {
	p := Progress{Total: len(chapters) * 2}
	for _, c := range chapters {
		if c.VideoCompleted {
			p.Done++
		}
		if c.ExercisesCompleted {
			p.Done++
		}
	}
	return p
}

// Exam is an upcoming exam with the number of days until it.
type Exam struct {
	SubjectName string
	Date        time.Time
	Days        int
}

// NextExam returns the soonest exam that is today or later, or ok=false when
// no subject has a future exam date. Day distance is the ceiling of the
// difference from now, so an exam later today counts as 0 days away.
func NextExam(doc *document.Document, now time.Time) (Exam, bool) {
	var upcoming []Exam
	for _, s := range doc.Subjects {
		if s.ExamDate == nil {
			continue
		}
		days := int(math.Ceil(s.ExamDate.Sub(now).Hours() / 24))
		if days < 0 {
			continue
		}
		upcoming = append(upcoming, Exam{SubjectName: s.Name, Date: *s.ExamDate, Days: days})
	}
	if len(upcoming) == 0 {
		return Exam{}, false
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].Days < upcoming[j].Days })
	return upcoming[0], true
}

// Streak counts consecutive calendar days with at least one study session,
// ending today or yesterday. A gap of more than one day breaks the streak;
// if the most recent session day is before yesterday the streak is 0.
//
// A session with a zero timestamp is bucketed to now's date. That can
// fabricate continuity for malformed data; it is kept because the session
// log treats a missing timestamp as "just now".
func Streak(doc *document.Document, now time.Time) int {
	if len(doc.Sessions) == 0 {
		return 0
	}

	seen := make(map[time.Time]bool)
	for _, s := range doc.Sessions {
		ts := s.Timestamp
		if ts.IsZero() {
			ts = now
		}
		seen[dateOf(ts)] = true
	}

	days := make([]time.Time, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	today := dateOf(now)
	yesterday := today.AddDate(0, 0, -1)
	if !days[0].Equal(today) && !days[0].Equal(yesterday) {
		return 0
	}

	streak := 1
	for i := 0; i < len(days)-1; i++ {
		if days[i].AddDate(0, 0, -1).Equal(days[i+1]) {
			streak++
		} else {
			break
		}
	}
	return streak
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Todo is an incomplete chapter joined with its subject's name.
type Todo struct {
	ChapterID   int64
	ChapterName string
	SubjectName string
}

// Todos lists incomplete chapters in document order. Chapters whose subject
// is missing (a transiently dangling reference) are listed with an empty
// subject name rather than dropped.
func Todos(doc *document.Document) []Todo {
	var out []Todo
	for _, c := range doc.Chapters {
		if c.IsCompleted {
			continue
		}
		todo := Todo{ChapterID: c.ID, ChapterName: c.Name}
		if sub := doc.FindSubject(c.SubjectID); sub != nil {
			todo.SubjectName = sub.Name
		}
		out = append(out, todo)
	}
	return out
}
