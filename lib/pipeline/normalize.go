package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"screwdata/lib/screwset"
)

// Position names the end of a series that padding or cutting applies to.
type Position string

const (
	Pre  Position = "pre"
	Post Position = "post"
)

func ParsePosition(name string) (Position, error) {
	switch Position(name) {
	case Pre, Post:
		return Position(name), nil
	}
	return "", fmt.Errorf("invalid position %q, valid options are: pre, post", name)
}

// Normalize brings every run to TargetLength samples. Longer runs are
// cut at CutPosition; shorter runs are padded at PadPosition with
// PadValue. The step indicator is padded with its edge step number so
// padded samples still map to a real tightening step.
type Normalize struct {
	TargetLength int
	PadValue     float64
	PadPosition  Position
	CutPosition  Position
}

func (t *Normalize) Name() string { return "normalize" }

func (t *Normalize) Fit(ctx context.Context, f *Frame) error {
	if t.TargetLength <= 0 {
		return fmt.Errorf("target length must be positive, got %d", t.TargetLength)
	}
	_, err := ParsePosition(string(t.PadPosition))
	if err != nil {
		return err
	}
	_, err = ParsePosition(string(t.CutPosition))
	return err
}

func (t *Normalize) Transform(ctx context.Context, f *Frame) (*Frame, error) {
	padded, cut := 0, 0
	for _, run := range f.Runs {
		switch {
		case run.Len() > t.TargetLength:
			t.cutRun(run)
			cut++
		case run.Len() < t.TargetLength:
			t.padRun(run)
			padded++
		}
	}
	slog.InfoContext(
		ctx, "series normalized",
		"target_length", t.TargetLength,
		"padded", padded,
		"cut", cut,
	)
	return f, nil
}

func (t *Normalize) cutRun(run *RunSeries) {
	excess := run.Len() - t.TargetLength
	for _, m := range channels {
		ch := run.Channel(m)
		if t.CutPosition == Pre {
			*ch = (*ch)[excess:]
		} else {
			*ch = (*ch)[:t.TargetLength]
		}
	}
}

func (t *Normalize) padRun(run *RunSeries) {
	missing := t.TargetLength - run.Len()
	for _, m := range channels {
		ch := run.Channel(m)
		value := t.PadValue
		if m == screwset.StepIndicator && len(*ch) > 0 {
			if t.PadPosition == Pre {
				value = (*ch)[0]
			} else {
				value = (*ch)[len(*ch)-1]
			}
		}

		pad := make([]float64, missing)
		for i := range pad {
			pad[i] = value
		}
		if t.PadPosition == Pre {
			*ch = append(pad, *ch...)
		} else {
			*ch = append(*ch, pad...)
		}
	}
}
