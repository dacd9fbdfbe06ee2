package pipeline

import (
	"context"
	"fmt"
	"math"
)

// Validate checks frame invariants after processing. RequireLength of
// zero skips the length check; ForbidNaN rejects any remaining NaN
// sample.
type Validate struct {
	RequireLength int
	ForbidNaN     bool
}

func (t *Validate) Name() string { return "validate" }

func (t *Validate) Fit(ctx context.Context, f *Frame) error {
	return nil
}

func (t *Validate) Transform(ctx context.Context, f *Frame) (*Frame, error) {
	for _, run := range f.Runs {
		n := run.Len()
		if t.RequireLength > 0 && n != t.RequireLength {
			return nil, fmt.Errorf("run %s: length %d, expected %d", run.Id, n, t.RequireLength)
		}
		for _, m := range channels {
			ch := *run.Channel(m)
			if len(ch) != n {
				return nil, fmt.Errorf("run %s: %s has %d samples, time has %d", run.Id, m, len(ch), n)
			}
			if !t.ForbidNaN {
				continue
			}
			for i, v := range ch {
				if math.IsNaN(v) {
					return nil, fmt.Errorf("run %s: %s sample %d is NaN", run.Id, m, i)
				}
			}
		}
	}
	return f, nil
}
