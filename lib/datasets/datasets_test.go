package datasets

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"screwdata/lib/screwset"
	"screwdata/lib/screwtest"
	"screwdata/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	base := Config{Scenario: "s01"}

	require.NoError(t, base.validate())

	{
		c := base
		c.Scenario = ""
		require.ErrorIs(t, c.validate(), ErrConfig)
	}
	{
		c := base
		c.Measurements = []string{"torque", "pressure"}
		require.ErrorIs(t, c.validate(), ErrConfig)
	}
	{
		c := base
		c.HandleDuplicates = "median"
		require.ErrorIs(t, c.validate(), ErrConfig)
	}
	{
		// missing value handling depends on deduplicated time points
		c := base
		c.HandleMissings = "mean"
		err := c.validate()
		require.ErrorIs(t, err, ErrConfig)
		require.ErrorContains(t, err, "requires a duplicate policy")
	}
	{
		c := base
		c.HandleDuplicates = "first"
		c.HandleMissings = "mean"
		require.NoError(t, c.validate())
	}
	{
		c := base
		c.TargetLength = 100
		c.PaddingPosition = "middle"
		require.ErrorIs(t, c.validate(), ErrConfig)
	}
	{
		c := base
		c.TargetLength = -1
		require.ErrorIs(t, c.validate(), ErrConfig)
	}
}

func TestGetEndToEnd(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:datasets")
	defer cleanup()

	archive, checksum := screwtest.BuildArchive(t, []screwtest.RunSpec{
		screwtest.Run(1, 0),
		screwtest.Run(2, 0),
		screwtest.Run(3, 1),
		screwtest.Run(4, 1),
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	s := screwtest.Scenario(checksum)
	config := Config{
		Scenario:         s.Names.Short,
		HandleDuplicates: "first",
		HandleMissings:   "mean",
		TargetLength:     10,
		CacheDir:         t.TempDir(),
		downloadUrl:      srv.URL,
	}

	result, err := get(context.Background(), s, config)
	if err != nil {
		t.Fatal(err)
	}

	require.Len(t, result.Labels, 4)
	require.Len(t, result.Steps, 4)
	require.Len(t, result.Fields, 4)
	for _, m := range screwset.Measurements {
		series := result.Fields[m]
		require.Len(t, series, 4)
		for _, run := range series {
			require.Len(t, run, 10)
			for _, v := range run {
				if math.IsNaN(v) {
					t.Fatalf("%s contains NaN after mean imputation", m)
				}
			}
		}
	}
	for _, steps := range result.Steps {
		require.Len(t, steps, 10)
	}
	require.Equal(t, 0, result.Labels[0].Class)
	require.Equal(t, 1, result.Labels[2].Class)
}

func TestGetFiltersAndSubset(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:datasets")
	defer cleanup()

	archive, checksum := screwtest.BuildArchive(t, []screwtest.RunSpec{
		screwtest.Run(1, 0),
		screwtest.Run(2, 0),
		screwtest.Run(3, 1),
		screwtest.Run(4, 1),
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	s := screwtest.Scenario(checksum)
	config := Config{
		Scenario:         s.Names.Short,
		Measurements:     []string{"torque"},
		Classes:          []int{1},
		HandleDuplicates: "first",
		TargetLength:     8,
		CacheDir:         t.TempDir(),
		downloadUrl:      srv.URL,
	}

	result, err := get(context.Background(), s, config)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, result.Fields, 1)
	require.Len(t, result.Fields[screwset.Torque], 2)
	require.Equal(t, []int{1, 1}, []int{result.Labels[0].Class, result.Labels[1].Class})
}

func TestGetCreatesCacheDir(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:datasets")
	defer cleanup()

	archive, checksum := screwtest.BuildArchive(t, []screwtest.RunSpec{
		screwtest.Run(1, 0),
		screwtest.Run(2, 0),
		screwtest.Run(3, 1),
		screwtest.Run(4, 1),
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	// a fresh machine has no cache root yet, the nested path must be
	// created before the manifest db opens inside it
	cacheDir := filepath.Join(t.TempDir(), "not-created-yet", "screwdata")

	s := screwtest.Scenario(checksum)
	config := Config{
		Scenario:         s.Names.Short,
		HandleDuplicates: "first",
		TargetLength:     8,
		CacheDir:         cacheDir,
		downloadUrl:      srv.URL,
	}

	result, err := get(context.Background(), s, config)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, result.Labels, 4)
	require.DirExists(t, cacheDir)
	require.FileExists(t, filepath.Join(cacheDir, "manifest.db"))
}

func TestGetRejectsCatalogCountMismatch(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:datasets")
	defer cleanup()

	// three runs against a catalog promising two per class
	archive, checksum := screwtest.BuildArchive(t, []screwtest.RunSpec{
		screwtest.Run(1, 0),
		screwtest.Run(2, 0),
		screwtest.Run(3, 1),
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	s := screwtest.Scenario(checksum)
	config := Config{
		Scenario:    s.Names.Short,
		CacheDir:    t.TempDir(),
		downloadUrl: srv.URL,
	}

	_, err := get(context.Background(), s, config)
	require.ErrorIs(t, err, screwset.ErrCatalogMismatch)
}

func TestList(t *testing.T) {
	summaries := List()
	require.Len(t, summaries, 6)
	require.Equal(t, "s01", summaries[0].Short)
	require.True(t, summaries[0].Published)
	require.False(t, summaries[2].Published)
	require.False(t, summaries[3].Published)
}
