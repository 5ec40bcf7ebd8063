package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/studentpro/studysync/internal/document"
	"github.com/studentpro/studysync/internal/ui"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Create semesters, subjects and chapters",
}

var addSemesterCmd = &cobra.Command{
	Use:   "semester <name>",
	Short: "Create a semester",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, err := buildApp(cmd.Context(), false)
		if err != nil {
			fatalf("%v", err)
		}
		defer app.close()

		sem, err := app.engine.AddSemester(cmd.Context(), args[0])
		if err != nil {
			fatalf("%v", err)
		}
		printCreated("Semester", sem.Name, sem.ID)
	},
}

var addSubjectCmd = &cobra.Command{
	Use:   "subject <name>",
	Short: "Create a subject in a semester",
	Long: `Create a subject. The exam date may be a calendar date (2006-01-02) or a
natural phrase such as "next friday" or "in 3 weeks".`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		semesterID, _ := cmd.Flags().GetInt64("semester")
		if semesterID == 0 {
			fatalf("--semester is required")
		}
		examFlag, _ := cmd.Flags().GetString("exam")

		var examDate *time.Time
		if examFlag != "" {
			parsed, err := parseExamDate(examFlag)
			if err != nil {
				fatalf("%v", err)
			}
			examDate = &parsed
		}

		app, err := buildApp(cmd.Context(), false)
		if err != nil {
			fatalf("%v", err)
		}
		defer app.close()

		sub, err := app.engine.AddSubject(cmd.Context(), semesterID, args[0], examDate)
		if err != nil {
			fatalf("%v", err)
		}
		printCreated("Subject", sub.Name, sub.ID)
		if sub.ExamDate != nil {
			fmt.Printf("   Exam: %s\n", sub.ExamDate.Format("2006-01-02"))
		}
	},
}

var addChapterCmd = &cobra.Command{
	Use:   "chapter <name>",
	Short: "Create a chapter in a subject",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		subjectID, _ := cmd.Flags().GetInt64("subject")
		if subjectID == 0 {
			fatalf("--subject is required")
		}

		app, err := buildApp(cmd.Context(), false)
		if err != nil {
			fatalf("%v", err)
		}
		defer app.close()

		ch, err := app.engine.AddChapter(cmd.Context(), subjectID, args[0])
		if err != nil {
			fatalf("%v", err)
		}
		printCreated("Chapter", ch.Name, ch.ID)
	},
}

var logCmd = &cobra.Command{
	Use:   "log <subject-id> <minutes>",
	Short: "Record a completed study session",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		subjectID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fatalf("bad subject id %q", args[0])
		}
		minutes, err := strconv.Atoi(args[1])
		if err != nil {
			fatalf("bad duration %q", args[1])
		}

		app, err := buildApp(cmd.Context(), false)
		if err != nil {
			fatalf("%v", err)
		}
		defer app.close()

		if _, err := app.engine.LogSession(cmd.Context(), subjectID, minutes); err != nil {
			fatalf("%v", err)
		}

		prof := app.engine.Document().Profile
		fmt.Printf("%s Logged %d min. Level %d, %d XP, %d sessions total\n",
			ui.RenderPass("✓"), minutes, prof.Level, prof.XP, prof.TotalSessions)
	},
}

var markCmd = &cobra.Command{
	Use:   "mark <chapter-id> <video|exercises> <done|todo>",
	Short: "Toggle a chapter's video or exercises completion",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		chapterID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fatalf("bad chapter id %q", args[0])
		}

		part := args[1]
		if part != document.PartVideo && part != document.PartExercises {
			fatalf("unknown part %q (want video or exercises)", part)
		}

		var done bool
		switch args[2] {
		case "done":
			done = true
		case "todo":
			done = false
		default:
			fatalf("unknown state %q (want done or todo)", args[2])
		}

		app, err := buildApp(cmd.Context(), false)
		if err != nil {
			fatalf("%v", err)
		}
		defer app.close()

		if err := app.engine.SetChapterPart(cmd.Context(), chapterID, part, done); err != nil {
			fatalf("%v", err)
		}

		ch := app.engine.Document().FindChapter(chapterID)
		state := "in progress"
		if ch != nil && ch.IsCompleted {
			state = "completed"
		}
		fmt.Printf("%s Chapter %d %s %s, now %s\n", ui.RenderPass("✓"), chapterID, part, args[2], state)
	},
}

var notesCmd = &cobra.Command{
	Use:   "notes <subject-id> <text>",
	Short: "Save notes on a subject",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		subjectID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fatalf("bad subject id %q", args[0])
		}

		app, err := buildApp(cmd.Context(), false)
		if err != nil {
			fatalf("%v", err)
		}
		defer app.close()

		if err := app.engine.SaveSubjectNotes(cmd.Context(), subjectID, args[1]); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Notes saved\n", ui.RenderPass("✓"))
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <semester|subject|chapter> <id>",
	Short: "Delete an entity and everything under it",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fatalf("bad id %q", args[1])
		}

		app, err := buildApp(cmd.Context(), false)
		if err != nil {
			fatalf("%v", err)
		}
		defer app.close()

		switch args[0] {
		case "semester":
			err = app.engine.DeleteSemester(cmd.Context(), id)
		case "subject":
			err = app.engine.DeleteSubject(cmd.Context(), id)
		case "chapter":
			err = app.engine.DeleteChapter(cmd.Context(), id)
		default:
			fatalf("unknown entity %q (want semester, subject or chapter)", args[0])
		}
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Deleted %s %d\n", ui.RenderPass("✓"), args[0], id)
	},
}

// parseExamDate accepts a plain calendar date or a natural-language phrase.
func parseExamDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(s, time.Now())
	if err != nil || result == nil {
		return time.Time{}, fmt.Errorf("could not understand exam date %q (try 2006-01-02)", s)
	}
	return result.Time, nil
}

func printCreated(kind, name string, id int64) {
	if document.IsTempID(id) {
		fmt.Printf("%s %s %q created locally (pending cloud sync, local id %d)\n",
			ui.RenderWarn("●"), kind, name, id)
		return
	}
	fmt.Printf("%s %s %q created (id %d)\n", ui.RenderPass("✓"), kind, name, id)
}

func init() {
	addSubjectCmd.Flags().Int64("semester", 0, "semester id the subject belongs to")
	addSubjectCmd.Flags().String("exam", "", "exam date (2006-01-02 or natural language)")
	addChapterCmd.Flags().Int64("subject", 0, "subject id the chapter belongs to")

	addCmd.AddCommand(addSemesterCmd)
	addCmd.AddCommand(addSubjectCmd)
	addCmd.AddCommand(addChapterCmd)

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(markCmd)
	rootCmd.AddCommand(notesCmd)
	rootCmd.AddCommand(deleteCmd)
}
