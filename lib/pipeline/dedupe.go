package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// DedupePolicy decides which sample survives when consecutive samples
// share the same time value.
type DedupePolicy string

const (
	DedupeFirst DedupePolicy = "first"
	DedupeLast  DedupePolicy = "last"
	DedupeMean  DedupePolicy = "mean"
)

func ParseDedupePolicy(name string) (DedupePolicy, error) {
	switch DedupePolicy(name) {
	case DedupeFirst, DedupeLast, DedupeMean:
		return DedupePolicy(name), nil
	}
	return "", fmt.Errorf("invalid duplicate policy %q, valid options are: first, last, mean", name)
}

// DuplicateStats describes what a dedupe pass found. A group is a set of
// consecutive samples sharing one time value; identical groups carried
// the same values across every channel, differing groups did not.
type DuplicateStats struct {
	Groups    int
	Removed   int
	Identical int
	Differing int
}

// Dedupe collapses consecutive equal-time samples per run. The step
// indicator always keeps the first sample's step regardless of policy.
type Dedupe struct {
	Policy DedupePolicy

	Stats DuplicateStats
}

func (d *Dedupe) Name() string { return "dedupe" }

func (d *Dedupe) Fit(ctx context.Context, f *Frame) error {
	_, err := ParseDedupePolicy(string(d.Policy))
	return err
}

func (d *Dedupe) Transform(ctx context.Context, f *Frame) (*Frame, error) {
	d.Stats = DuplicateStats{}
	for _, run := range f.Runs {
		d.dedupeRun(run)
	}
	slog.InfoContext(
		ctx, "duplicates collapsed",
		"policy", d.Policy,
		"groups", d.Stats.Groups,
		"removed", d.Stats.Removed,
		"identical", d.Stats.Identical,
		"differing", d.Stats.Differing,
	)
	return f, nil
}

func (d *Dedupe) dedupeRun(run *RunSeries) {
	n := run.Len()
	out := &RunSeries{Id: run.Id, Label: run.Label}

	for start := 0; start < n; {
		end := start + 1
		for end < n && run.Time[end] == run.Time[start] {
			end++
		}
		if end-start > 1 {
			d.Stats.Groups++
			d.Stats.Removed += end - start - 1
			if groupIdentical(run, start, end) {
				d.Stats.Identical++
			} else {
				d.Stats.Differing++
			}
		}

		out.Time = append(out.Time, run.Time[start])
		out.Step = append(out.Step, run.Step[start])
		for _, m := range valueChannels {
			src := *run.Channel(m)
			ch := out.Channel(m)
			*ch = append(*ch, d.pick(src[start:end]))
		}
		start = end
	}

	*run = *out
}

func (d *Dedupe) pick(group []float64) float64 {
	switch d.Policy {
	case DedupeFirst:
		return group[0]
	case DedupeLast:
		return group[len(group)-1]
	case DedupeMean:
		sum := 0.0
		for _, v := range group {
			sum += v
		}
		return sum / float64(len(group))
	}
	return group[0]
}

func groupIdentical(run *RunSeries, start, end int) bool {
	for _, m := range valueChannels {
		ch := *run.Channel(m)
		for i := start + 1; i < end; i++ {
			if ch[i] != ch[start] {
				return false
			}
		}
	}
	return true
}
