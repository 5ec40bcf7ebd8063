package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/studentpro/studysync/internal/document"
	"github.com/studentpro/studysync/internal/stats"
	"github.com/studentpro/studysync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the study dashboard",
	Long: `Show overall progress, the next exam, the current study streak, the
to-do list and sync state, all computed from the local document.`,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := buildApp(cmd.Context(), false)
		if err != nil {
			fatalf("%v", err)
		}
		defer app.close()

		doc := app.engine.Document()
		now := time.Now()

		fmt.Printf("\n%s Study Status\n\n", ui.RenderAccent("📚"))

		progress := stats.Overall(doc)
		fmt.Printf("Progress: %.0f%% (%d/%d)\n", progress.Ratio()*100, progress.Done, progress.Total)

		if exam, ok := stats.NextExam(doc, now); ok {
			fmt.Printf("Next exam: %s in %d day(s) (%s)\n",
				ui.RenderAccent(exam.SubjectName), exam.Days, exam.Date.Format("2006-01-02"))
		} else {
			fmt.Printf("Next exam: %s\n", ui.RenderMuted("none scheduled"))
		}

		fmt.Printf("Streak: %d day(s)\n", stats.Streak(doc, now))

		prof := doc.Profile
		fmt.Printf("Level %d, %d XP, %d sessions\n", prof.Level, prof.XP, prof.TotalSessions)

		if todos := stats.Todos(doc); len(todos) > 0 {
			fmt.Printf("\nUp next:\n")
			for _, todo := range todos {
				subject := todo.SubjectName
				if subject == "" {
					subject = "?"
				}
				fmt.Printf("  [%d] %s %s\n", todo.ChapterID, todo.ChapterName, ui.RenderMuted("("+subject+")"))
			}
		}

		pending := pendingCount(doc)
		if pending > 0 {
			fmt.Printf("\n%s %d entit(ies) not yet synced to the cloud; run 'studysync upload'\n",
				ui.RenderWarn("●"), pending)
		}

		fmt.Printf("\nSync mode: %s\n", doc.Settings.SyncMode)
		if doc.LastSync.IsZero() {
			fmt.Printf("Last sync: %s\n\n", ui.RenderMuted("never"))
		} else {
			fmt.Printf("Last sync: %s\n\n", doc.LastSync.Format("2006-01-02 15:04:05"))
		}
	},
}

// pendingCount counts entities still carrying a placeholder id.
func pendingCount(doc *document.Document) int {
	n := 0
	for _, s := range doc.Semesters {
		if document.IsTempID(s.ID) {
			n++
		}
	}
	for _, s := range doc.Subjects {
		if document.IsTempID(s.ID) {
			n++
		}
	}
	for _, c := range doc.Chapters {
		if document.IsTempID(c.ID) {
			n++
		}
	}
	for _, s := range doc.Sessions {
		if document.IsTempID(s.ID) {
			n++
		}
	}
	return n
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
