package commands

import (
	"log/slog"

	"screwdata/lib/fetch"
	"screwdata/lib/scenario"

	"github.com/spf13/cobra"
)

var fetchForce *bool

func init() {
	fetchForce = fetchCmd.Flags().Bool("force", false, "Redownload and re-extract even when cached.")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <scenario>",
	Short: "Downloads, verifies and extracts one scenario archive.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := scenario.Resolve(args[0])
		if err != nil {
			fatal("failed to resolve scenario", err)
		}

		dir := cacheDir(readProfile())
		store, closeStore := openManifest(dir)
		defer closeStore()

		f, err := fetch.New(s, fetch.Options{
			CacheDir: dir,
			Force:    *fetchForce,
			Manifest: store,
		})
		if err != nil {
			fatal("failed to initialize fetcher", err)
		}

		dataDir, err := f.Fetch(cmd.Context())
		if err != nil {
			fatal("fetch failed", err)
		}
		slog.Info("scenario data ready", "dir", dataDir)
	},
}
