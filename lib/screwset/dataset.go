// Package screwset is the in-memory model of one scenario's extracted
// data: runs, their tightening steps and the label metadata, with
// class/cycle/position filtering applied at load time.
package screwset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"screwdata/lib/telemetry"
)

var tracer = telemetry.Tracer("screwdata.lib.screwset")

// workpiece position codes in labels.csv
const (
	PositionLeft  = 0
	PositionRight = 1
)

// Filter restricts which runs are loaded. Zero values mean "no
// restriction"; Position is "left", "right" or "both" (empty means both).
type Filter struct {
	Classes  []int
	Cycles   []int
	Position string
}

func (f Filter) positionCode() (int, bool, error) {
	switch strings.ToLower(f.Position) {
	case "", "both":
		return 0, false, nil
	case "left":
		return PositionLeft, true, nil
	case "right":
		return PositionRight, true, nil
	}
	return 0, false, fmt.Errorf("invalid position %q, must be one of: left, right, both", f.Position)
}

func (f Filter) matches(label Label) (bool, error) {
	if len(f.Classes) > 0 && !slices.Contains(f.Classes, label.Class) {
		return false, nil
	}
	if len(f.Cycles) > 0 && !slices.Contains(f.Cycles, label.Cycle) {
		return false, nil
	}
	code, restricted, err := f.positionCode()
	if err != nil {
		return false, err
	}
	if restricted && label.Position != code {
		return false, nil
	}
	return true, nil
}

// Dataset holds the runs of one scenario that passed the filter, in
// labels.csv order. Labels[i] belongs to Runs[i].
type Dataset struct {
	DataDir string
	Runs    []*Run
	Labels  []Label
}

// Load reads labels.csv from dataDir, filters it, and decodes the
// matching JSON documents from dataDir/json.
func Load(ctx context.Context, dataDir string, filter Filter) (*Dataset, error) {
	ctx, span := tracer.Start(ctx, "load")
	defer span.End()

	jsonDir := filepath.Join(dataDir, "json")
	_, err := os.Stat(jsonDir)
	if err != nil {
		return nil, fmt.Errorf("json directory not found: %s", jsonDir)
	}

	labels, err := LoadLabels(filepath.Join(dataDir, "labels.csv"))
	if err != nil {
		return nil, err
	}

	d := &Dataset{DataDir: dataDir}
	for _, label := range labels {
		ok, err := filter.matches(label)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		contents, err := os.ReadFile(filepath.Join(jsonDir, label.FileName))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", label.FileName, err)
		}
		run, err := decodeRun(runId(label.FileName), contents, label)
		if err != nil {
			return nil, err
		}
		d.Runs = append(d.Runs, run)
		d.Labels = append(d.Labels, label)
	}

	slog.InfoContext(
		ctx, "dataset loaded",
		"dir", dataDir,
		"selected", len(d.Runs),
		"total", len(labels),
	)
	return d, nil
}

func runId(fileName string) string {
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}

func (d *Dataset) Len() int {
	return len(d.Runs)
}

// Values returns one channel for every run, concatenated across steps.
func (d *Dataset) Values(m Measurement) [][]float64 {
	out := make([][]float64, len(d.Runs))
	for i, run := range d.Runs {
		out[i] = run.Values(m)
	}
	return out
}

// ClassLabels returns the class label of every run, aligned with Runs.
func (d *Dataset) ClassLabels() []int {
	out := make([]int, len(d.Labels))
	for i, label := range d.Labels {
		out[i] = label.Class
	}
	return out
}
