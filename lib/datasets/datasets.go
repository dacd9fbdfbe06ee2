// Package datasets is the public facade: one call resolves a scenario,
// fetches and verifies its archive, loads the runs and pushes them
// through the cleaning pipeline.
package datasets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"screwdata/lib/fetch"
	"screwdata/lib/manifest"
	"screwdata/lib/pipeline"
	"screwdata/lib/scenario"
	"screwdata/lib/screwset"
	"screwdata/lib/telemetry"
)

var tracer = telemetry.Tracer("screwdata.lib.datasets")

var ErrConfig = errors.New("invalid configuration")

// Config selects a scenario and describes how its runs are filtered and
// cleaned. The zero value of an option means "off": empty Measurements
// loads all four channels, an empty duplicate or missing policy skips
// that stage, TargetLength zero skips length normalization.
type Config struct {
	// Scenario is a short id ("s01"), full name ("thread-degradation") or
	// combined id ("s01_thread-degradation").
	Scenario string

	Measurements []string
	Classes      []int
	Cycles       []int
	// Position is "left", "right" or "both" (default).
	Position string
	// Steps restricts which tightening step numbers are unpacked
	// (1-based, the screw program has steps 1 through 4).
	Steps []int

	// HandleDuplicates is "first", "last" or "mean".
	HandleDuplicates string
	// HandleMissings is "mean", "zero" or "constant"; it requires
	// HandleDuplicates to be set.
	HandleMissings  string
	MissingConstant float64

	TargetLength    int
	PaddingValue    float64
	PaddingPosition string
	CutoffPosition  string

	CacheDir string
	Force    bool

	// downloadUrl overrides the record host, for tests.
	downloadUrl string
}

// measurements returns the requested channel subset, defaulting to all
// four recorded channels.
func (c *Config) measurements() ([]screwset.Measurement, error) {
	if len(c.Measurements) == 0 {
		return screwset.Measurements, nil
	}
	out := make([]screwset.Measurement, 0, len(c.Measurements))
	for _, name := range c.Measurements {
		m, err := screwset.ParseMeasurement(name)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (c *Config) validate() error {
	if c.Scenario == "" {
		return fmt.Errorf("%w: scenario is required", ErrConfig)
	}
	if _, err := c.measurements(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if c.HandleDuplicates != "" {
		if _, err := pipeline.ParseDedupePolicy(c.HandleDuplicates); err != nil {
			return fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}
	if c.HandleMissings != "" {
		if c.HandleDuplicates == "" {
			return fmt.Errorf("%w: handling missing values requires a duplicate policy", ErrConfig)
		}
		if _, err := pipeline.ParseImputePolicy(c.HandleMissings); err != nil {
			return fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}
	if c.TargetLength < 0 {
		return fmt.Errorf("%w: target length must not be negative", ErrConfig)
	}
	if c.TargetLength > 0 {
		if _, err := pipeline.ParsePosition(c.paddingPosition()); err != nil {
			return fmt.Errorf("%w: padding %v", ErrConfig, err)
		}
		if _, err := pipeline.ParsePosition(c.cutoffPosition()); err != nil {
			return fmt.Errorf("%w: cutoff %v", ErrConfig, err)
		}
	}
	return nil
}

func (c *Config) paddingPosition() string {
	if c.PaddingPosition == "" {
		return string(pipeline.Post)
	}
	return c.PaddingPosition
}

func (c *Config) cutoffPosition() string {
	if c.CutoffPosition == "" {
		return string(pipeline.Post)
	}
	return c.CutoffPosition
}

func (c *Config) stages() []pipeline.Transformer {
	var stages []pipeline.Transformer
	if c.HandleDuplicates != "" {
		stages = append(stages, &pipeline.Dedupe{
			Policy: pipeline.DedupePolicy(c.HandleDuplicates),
		})
	}
	if c.HandleMissings != "" {
		stages = append(stages, &pipeline.Impute{
			Policy:   pipeline.ImputePolicy(c.HandleMissings),
			Constant: c.MissingConstant,
		})
	}
	if c.TargetLength > 0 {
		stages = append(stages, &pipeline.Normalize{
			TargetLength: c.TargetLength,
			PadValue:     c.PaddingValue,
			PadPosition:  pipeline.Position(c.paddingPosition()),
			CutPosition:  pipeline.Position(c.cutoffPosition()),
		})
	}
	stages = append(stages, &pipeline.Validate{
		RequireLength: c.TargetLength,
		ForbidNaN:     c.HandleMissings != "",
	})
	return stages
}

// Result is the processed output of one Get call. Fields holds one series
// per run for each requested measurement; Steps is the parallel step
// indicator; Labels[i] describes run i.
type Result struct {
	Scenario *scenario.Scenario
	Fields   map[screwset.Measurement][][]float64
	Steps    [][]float64
	Labels   []screwset.Label
}

// Get fetches, loads and processes one scenario.
func Get(ctx context.Context, config Config) (*Result, error) {
	ctx, span := tracer.Start(ctx, "get")
	defer span.End()

	err := config.validate()
	if err != nil {
		return nil, err
	}
	s, err := scenario.Resolve(config.Scenario)
	if err != nil {
		return nil, err
	}
	return get(ctx, s, config)
}

func get(ctx context.Context, s *scenario.Scenario, config Config) (*Result, error) {
	requested, err := config.measurements()
	if err != nil {
		return nil, err
	}

	dataDir, err := fetchScenario(ctx, s, config)
	if err != nil {
		return nil, err
	}

	err = screwset.CheckCatalogCounts(dataDir, s.Classes)
	if err != nil {
		return nil, err
	}

	d, err := screwset.Load(ctx, dataDir, screwset.Filter{
		Classes:  config.Classes,
		Cycles:   config.Cycles,
		Position: config.Position,
	})
	if err != nil {
		return nil, err
	}

	frame, err := pipeline.FromDataset(d, config.Steps)
	if err != nil {
		return nil, err
	}
	frame, err = pipeline.New(config.stages()...).Process(ctx, frame)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Scenario: s,
		Fields:   make(map[screwset.Measurement][][]float64, len(requested)),
		Steps:    frame.Values(screwset.StepIndicator),
		Labels:   frame.Labels(),
	}
	for _, m := range requested {
		result.Fields[m] = frame.Values(m)
	}
	return result, nil
}

// fetchScenario ensures the extracted data directory, tracking the
// archive in the cache's manifest database.
func fetchScenario(ctx context.Context, s *scenario.Scenario, config Config) (string, error) {
	opts := fetch.Options{
		CacheDir:    config.CacheDir,
		Force:       config.Force,
		DownloadUrl: config.downloadUrl,
	}
	if opts.CacheDir == "" {
		dir, err := fetch.DefaultCacheDir()
		if err != nil {
			return "", err
		}
		opts.CacheDir = dir
	}

	// the manifest db lives inside the cache root, which may not exist yet
	// on a first run
	err := os.MkdirAll(opts.CacheDir, 0750)
	if err != nil {
		return "", err
	}

	db, err := manifest.OpenDB(filepath.Join(opts.CacheDir, "manifest.db"))
	if err != nil {
		return "", err
	}
	defer db.Close()
	store := manifest.NewStore(db)
	opts.Manifest = &store

	f, err := fetch.New(s, opts)
	if err != nil {
		return "", err
	}
	return f.Fetch(ctx)
}

// Summary is one catalog row for discovery.
type Summary struct {
	Short        string
	Long         string
	Full         string
	Classes      int
	Observations int
	Published    bool
}

// List returns the catalog ordered by scenario id.
func List() []Summary {
	all := scenario.All()
	out := make([]Summary, 0, len(all))
	for _, s := range all {
		out = append(out, Summary{
			Short:        s.Names.Short,
			Long:         s.Names.Long,
			Full:         s.Names.Full,
			Classes:      len(s.Classes),
			Observations: s.TotalObservations(),
			Published:    s.Published(),
		})
	}
	return out
}
