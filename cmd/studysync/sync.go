package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/studentpro/studysync/internal/document"
	"github.com/studentpro/studysync/internal/engine"
	"github.com/studentpro/studysync/internal/remote"
	"github.com/studentpro/studysync/internal/ui"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace local state with the cloud copy",
	Long: `Download your data from the cloud and replace the local collections
wholesale. The five reads run in parallel and commit all-or-nothing: a failed
pull leaves local state untouched.`,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			fatalf("%v", err)
		}
		defer app.close()

		fmt.Printf("%s Pulling cloud data...\n", ui.RenderAccent("⇣"))
		start := time.Now()

		if err := app.engine.Download(cmd.Context()); err != nil {
			if errors.Is(err, engine.ErrNotSignedIn) {
				fatalf("not signed in; sign in from the app first (no session at %s)", app.cfg.SessionPath())
			}
			fatalf("pull failed: %v", err)
		}

		doc := app.engine.Document()
		fmt.Printf("%s Pull complete in %v: %d semesters, %d subjects, %d chapters, %d sessions\n",
			ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond),
			len(doc.Semesters), len(doc.Subjects), len(doc.Chapters), len(doc.Sessions))
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Make the cloud mirror local state exactly",
	Long: `Upload everything, replacing your cloud data with the local document.

This is the full-mirror reconciliation: duplicate chapters are removed first,
then your remote rows are wiped (sessions, chapters, subjects, semesters, in
that order) and re-created parent before child. It is the recovery path when
incremental pushes have drifted or failed. Cloud row ids are reassigned; run
'pull' afterwards if you need local ids to match.`,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			fatalf("%v", err)
		}
		defer app.close()

		fmt.Printf("%s Uploading all data to cloud...\n", ui.RenderAccent("⇡"))
		start := time.Now()

		if err := app.engine.MirrorUpload(cmd.Context()); err != nil {
			if errors.Is(err, engine.ErrNotSignedIn) {
				fatalf("not signed in; sign in from the app first")
			}
			if remote.IsPermissionDenied(err) {
				fmt.Println(ui.RenderWarn("The cloud rejected the wipe. Check the access policy for your account."))
			}
			fatalf("upload failed: %v", err)
		}

		fmt.Printf("%s Upload complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all local state",
	Long: `Delete the local document unconditionally. Cloud data is untouched;
a later 'pull' restores it.`,
	Run: func(cmd *cobra.Command, args []string) {
		confirmed, _ := cmd.Flags().GetBool("yes")
		if !confirmed {
			fatalf("refusing to clear local state without --yes")
		}

		app, err := buildApp(cmd.Context(), false)
		if err != nil {
			fatalf("%v", err)
		}
		defer app.close()

		if err := app.engine.Reset(); err != nil {
			fatalf("reset failed: %v", err)
		}
		fmt.Printf("%s Local state cleared\n", ui.RenderPass("✓"))
	},
}

var modeCmd = &cobra.Command{
	Use:   "mode <automatic|manual>",
	Short: "Set the sync mode",
	Long: `Automatic pushes incidental edits (chapter toggles, notes) to the cloud
as they happen. Manual withholds them until an explicit 'upload'.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, err := buildApp(cmd.Context(), false)
		if err != nil {
			fatalf("%v", err)
		}
		defer app.close()

		var mode string
		switch args[0] {
		case "automatic", "Automatic":
			mode = document.SyncAutomatic
		case "manual", "Manual":
			mode = document.SyncManual
		default:
			fatalf("unknown sync mode %q (want automatic or manual)", args[0])
		}

		if err := app.engine.SetSyncMode(mode); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Sync mode set to %s\n", ui.RenderPass("✓"), ui.RenderAccent(mode))
	},
}

func init() {
	resetCmd.Flags().Bool("yes", false, "confirm clearing local state")

	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(modeCmd)
}
