package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studentpro/studysync/internal/legacy"
	"github.com/studentpro/studysync/internal/ui"
)

var importCmd = &cobra.Command{
	Use:   "import <student_data.db>",
	Short: "Import data from the old desktop client",
	Long: `Import semesters, subjects and chapters from the old desktop client's
SQLite database into the local document.

Imported entities get placeholder ids; pass --upload to immediately mirror
the combined document to the cloud, which assigns real ids.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		upload, _ := cmd.Flags().GetBool("upload")

		app, err := buildApp(cmd.Context(), upload)
		if err != nil {
			fatalf("%v", err)
		}
		defer app.close()

		data, err := legacy.Read(args[0])
		if err != nil {
			fatalf("%v", err)
		}

		added, err := app.engine.ImportLegacy(data)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Imported %d entities (%d semesters, %d subjects, %d chapters)\n",
			ui.RenderPass("✓"), added, len(data.Semesters), len(data.Subjects), len(data.Chapters))

		if upload {
			fmt.Printf("%s Uploading to cloud...\n", ui.RenderAccent("⇡"))
			if err := app.engine.MirrorUpload(cmd.Context()); err != nil {
				fatalf("upload failed: %v", err)
			}
			fmt.Printf("%s Upload complete\n", ui.RenderPass("✓"))
		}
	},
}

func init() {
	importCmd.Flags().Bool("upload", false, "mirror to the cloud after importing")
	rootCmd.AddCommand(importCmd)
}
