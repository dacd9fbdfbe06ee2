// Package pipeline turns loaded screw driving runs into rectangular,
// analysis-ready series. A pipeline is an ordered chain of transformers,
// each fitted against the frame before transforming it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"screwdata/lib/telemetry"
)

var tracer = telemetry.Tracer("screwdata.lib.pipeline")

// Transformer is one processing stage. Fit inspects the frame and
// validates the stage's configuration against it; Transform produces the
// next frame.
type Transformer interface {
	Name() string
	Fit(ctx context.Context, f *Frame) error
	Transform(ctx context.Context, f *Frame) (*Frame, error)
}

type Pipeline struct {
	stages []Transformer
}

func New(stages ...Transformer) *Pipeline {
	return &Pipeline{stages: stages}
}

// Process runs the frame through every stage in order.
func (p *Pipeline) Process(ctx context.Context, f *Frame) (*Frame, error) {
	ctx, span := tracer.Start(ctx, "process")
	defer span.End()

	for _, stage := range p.stages {
		var err error
		f, err = p.runStage(ctx, stage, f)
		if err != nil {
			return nil, fmt.Errorf("%s stage: %w", stage.Name(), err)
		}
	}
	return f, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Transformer, f *Frame) (*Frame, error) {
	ctx, span := tracer.Start(ctx, stage.Name())
	defer span.End()

	slog.DebugContext(ctx, "stage starting", "stage", stage.Name(), "runs", len(f.Runs))

	err := stage.Fit(ctx, f)
	if err != nil {
		return nil, err
	}
	out, err := stage.Transform(ctx, f)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "stage done", "stage", stage.Name(), "runs", len(out.Runs))
	return out, nil
}
