package commands

import (
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspects and clears the archive manifest.",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "Prints the tracked archives.",
	Run: func(cmd *cobra.Command, args []string) {
		store, closeStore := openManifest(cacheDir(readProfile()))
		defer closeStore()

		entries, err := store.List(cmd.Context())
		if err != nil {
			fatal("failed to list manifest entries", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Scenario", "File", "Size", "Downloaded", "Verified"})

		for _, e := range entries {
			t.AppendRow(table.Row{
				e.Scenario,
				e.FileName,
				e.SizeBytes,
				e.DownloadedAt.Format("2006-01-02 15:04"),
				e.VerifiedAt.Format("2006-01-02 15:04"),
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge [scenario]",
	Short: "Drops manifest entries, all of them or one scenario's.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, closeStore := openManifest(cacheDir(readProfile()))
		defer closeStore()

		if len(args) == 1 {
			err := store.Delete(cmd.Context(), args[0])
			if err != nil {
				fatal("failed to delete manifest entry", err)
			}
			slog.Info("manifest entry deleted", "scenario", args[0])
			return
		}

		err := store.Purge(cmd.Context())
		if err != nil {
			fatal("failed to purge manifest", err)
		}
		slog.Info("manifest purged")
	},
}
