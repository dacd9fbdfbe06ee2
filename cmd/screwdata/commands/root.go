package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"screwdata/lib/configutil"
	"screwdata/lib/fetch"
	"screwdata/lib/manifest"
	"screwdata/lib/restyutil"
	"screwdata/lib/telemetry"

	"github.com/spf13/cobra"
)

var verbose *bool
var cacheFlag *string

var rootCmd = &cobra.Command{
	Use:   "screwdata",
	Short: "screwdata downloads and prepares the published screw-driving experiment datasets.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
		if *verbose {
			fetch.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/fetch"))
			telemetry.InstrumentPerfStats(cmd.Context())
		}
	},
}

func init() {
	verbose = rootCmd.PersistentFlags().BoolP(
		"verbose", "v", false,
		"Enable debug logging, request dumps and perf gauges.",
	)
	cacheFlag = rootCmd.PersistentFlags().String(
		"cache", "",
		"Cache directory (defaults to the user cache dir).",
	)
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}

// Profile supplies default flag values from an optional screwdata.json5
// next to the working directory (with the usual .local override).
type Profile struct {
	CacheDir         string `json:"cache_dir"`
	HandleDuplicates string `json:"handle_duplicates"`
	HandleMissings   string `json:"handle_missings"`
	TargetLength     int    `json:"target_length"`
}

func readProfile() Profile {
	profile, err := configutil.ReadConfig[Profile]("screwdata.json5")
	if os.IsNotExist(err) {
		return Profile{}
	}
	if err != nil {
		fatal("failed to read screwdata.json5", err)
	}
	return profile
}

func cacheDir(profile Profile) string {
	if *cacheFlag != "" {
		return *cacheFlag
	}
	if profile.CacheDir != "" {
		return profile.CacheDir
	}
	dir, err := fetch.DefaultCacheDir()
	if err != nil {
		fatal("failed to locate user cache dir", err)
	}
	return dir
}

func openManifest(dir string) (*manifest.Store, func()) {
	err := os.MkdirAll(dir, 0750)
	if err != nil {
		fatal("failed to create cache dir", err)
	}
	db, err := manifest.OpenDB(filepath.Join(dir, "manifest.db"))
	if err != nil {
		fatal("failed to open manifest db", err)
	}
	store := manifest.NewStore(db)
	return &store, func() { db.Close() }
}
