package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// ImputePolicy decides what a NaN sample is replaced with.
type ImputePolicy string

const (
	ImputeMean     ImputePolicy = "mean"
	ImputeZero     ImputePolicy = "zero"
	ImputeConstant ImputePolicy = "constant"
)

func ParseImputePolicy(name string) (ImputePolicy, error) {
	switch ImputePolicy(name) {
	case ImputeMean, ImputeZero, ImputeConstant:
		return ImputePolicy(name), nil
	}
	return "", fmt.Errorf("invalid missing value policy %q, valid options are: mean, zero, constant", name)
}

// Impute fills NaN samples in the value channels. The mean policy uses
// the run-level mean of the channel's present samples; a channel with no
// present samples at all falls back to zero.
type Impute struct {
	Policy   ImputePolicy
	Constant float64

	Filled int
}

func (t *Impute) Name() string { return "impute" }

func (t *Impute) Fit(ctx context.Context, f *Frame) error {
	_, err := ParseImputePolicy(string(t.Policy))
	return err
}

func (t *Impute) Transform(ctx context.Context, f *Frame) (*Frame, error) {
	t.Filled = 0
	for _, run := range f.Runs {
		for _, m := range valueChannels {
			ch := *run.Channel(m)
			t.Filled += t.fill(ch)
		}
	}
	slog.InfoContext(ctx, "missing values filled", "policy", t.Policy, "filled", t.Filled)
	return f, nil
}

func (t *Impute) fill(ch []float64) int {
	replacement := t.Constant
	switch t.Policy {
	case ImputeZero:
		replacement = 0
	case ImputeMean:
		replacement = presentMean(ch)
	}

	filled := 0
	for i, v := range ch {
		if math.IsNaN(v) {
			ch[i] = replacement
			filled++
		}
	}
	return filled
}

func presentMean(ch []float64) float64 {
	sum, count := 0.0, 0
	for _, v := range ch {
		if !math.IsNaN(v) {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
