package pipeline

import (
	"fmt"
	"math"
	"slices"

	"screwdata/lib/screwset"
)

// channels is every series a frame carries per run, the four recorded
// measurements plus the derived step indicator.
var channels = []screwset.Measurement{
	screwset.Time,
	screwset.Torque,
	screwset.Angle,
	screwset.Gradient,
	screwset.StepIndicator,
}

// valueChannels are the measurements that duplicate and missing value
// policies apply to. Time drives deduplication and the step indicator
// has its own fixed rules, so neither is listed.
var valueChannels = []screwset.Measurement{
	screwset.Torque,
	screwset.Angle,
	screwset.Gradient,
}

// RunSeries is one run flattened into per-channel series. All five
// slices are index-aligned: sample i of every channel belongs to the
// same instant, and Step[i] names the tightening step it came from.
type RunSeries struct {
	Id    string
	Label screwset.Label

	Time     []float64
	Torque   []float64
	Angle    []float64
	Gradient []float64
	Step     []float64
}

func (r *RunSeries) Len() int {
	return len(r.Time)
}

// Channel returns a pointer to the named series so transformers can
// replace it in place.
func (r *RunSeries) Channel(m screwset.Measurement) *[]float64 {
	switch m {
	case screwset.Time:
		return &r.Time
	case screwset.Torque:
		return &r.Torque
	case screwset.Angle:
		return &r.Angle
	case screwset.Gradient:
		return &r.Gradient
	case screwset.StepIndicator:
		return &r.Step
	}
	return nil
}

// Frame is the unit of work a pipeline transforms: the flattened series
// of every selected run.
type Frame struct {
	Runs []*RunSeries
}

// FromDataset unpacks each run's tightening steps into flat per-channel
// series. steps restricts which step numbers are kept (nil keeps all).
// Channels shorter than their step's time vector are brought to length
// with NaN so the series stay index-aligned; the missing value stage
// fills them in.
func FromDataset(d *screwset.Dataset, steps []int) (*Frame, error) {
	f := &Frame{Runs: make([]*RunSeries, 0, len(d.Runs))}
	for _, run := range d.Runs {
		rs := &RunSeries{
			Id: run.Id,
			Label: screwset.Label{
				FileName: run.Id + ".json",
				Dmc:      run.Dmc,
				Result:   run.Result,
				Cycle:    run.Cycle,
				Position: run.Position,
				Class:    run.Class,
			},
		}
		kept := 0
		for _, step := range run.Steps {
			if steps != nil && !slices.Contains(steps, step.Number) {
				continue
			}
			kept++
			n := step.Len()
			rs.Time = append(rs.Time, step.Time...)
			rs.Torque = appendPadded(rs.Torque, step.Torque, n)
			rs.Angle = appendPadded(rs.Angle, step.Angle, n)
			rs.Gradient = appendPadded(rs.Gradient, step.Gradient, n)
			for i := 0; i < n; i++ {
				rs.Step = append(rs.Step, float64(step.Number))
			}
		}
		if kept == 0 {
			return nil, fmt.Errorf("run %s: no tightening steps left after step selection %v", run.Id, steps)
		}
		f.Runs = append(f.Runs, rs)
	}
	return f, nil
}

func appendPadded(dst, src []float64, n int) []float64 {
	dst = append(dst, src...)
	for i := len(src); i < n; i++ {
		dst = append(dst, math.NaN())
	}
	return dst
}

// Values returns the named series of every run.
func (f *Frame) Values(m screwset.Measurement) [][]float64 {
	out := make([][]float64, len(f.Runs))
	for i, run := range f.Runs {
		out[i] = *run.Channel(m)
	}
	return out
}

// Labels returns the label row of every run, aligned with Runs.
func (f *Frame) Labels() []screwset.Label {
	out := make([]screwset.Label, len(f.Runs))
	for i, run := range f.Runs {
		out[i] = run.Label
	}
	return out
}
