package pipeline

import (
	"context"
	"math"
	"testing"

	"screwdata/lib/screwset"
	"screwdata/lib/screwtest"
	"screwdata/lib/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func series(time, torque []float64) *RunSeries {
	n := len(time)
	angle := make([]float64, n)
	gradient := make([]float64, n)
	step := make([]float64, n)
	for i := range angle {
		angle[i] = float64(i) * 10
		gradient[i] = float64(i) / 10
	}
	return &RunSeries{
		Id:       "run_001",
		Time:     time,
		Torque:   torque,
		Angle:    angle,
		Gradient: gradient,
		Step:     step,
	}
}

func TestFromDataset(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:pipeline")
	defer cleanup()

	dir := t.TempDir()
	screwtest.WriteDataDir(t, dir, []screwtest.RunSpec{
		screwtest.Run(1, 0),
		screwtest.Run(2, 1),
	})
	d, err := screwset.Load(context.Background(), dir, screwset.Filter{})
	if err != nil {
		t.Fatal(err)
	}

	{
		f, err := FromDataset(d, nil)
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, f.Runs, 2)
		run := f.Runs[0]
		require.Equal(t, 8, run.Len())
		require.Equal(t, []float64{1, 1, 1, 1, 2, 2, 2, 2}, run.Step)
		require.Equal(t, []float64{1, 2, 3, 4, 2, 3, 4, 5}, run.Torque)
		require.Equal(t, 0, run.Label.Class)
		require.Equal(t, 1, f.Runs[1].Label.Class)
	}
	{
		// step numbers are 1-based, so 2 selects the second tightening step
		f, err := FromDataset(d, []int{2})
		if err != nil {
			t.Fatal(err)
		}
		run := f.Runs[0]
		require.Equal(t, 4, run.Len())
		require.Equal(t, []float64{2, 2, 2, 2}, run.Step)
		require.Equal(t, []float64{2, 3, 4, 5}, run.Torque)
	}
	{
		_, err := FromDataset(d, []int{7})
		require.Error(t, err)
	}
}

func TestDedupePolicies(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:pipeline")
	defer cleanup()
	ctx := context.Background()

	build := func() *Frame {
		f := &Frame{Runs: []*RunSeries{
			series(
				[]float64{0.0, 0.0012, 0.0012, 0.0024},
				[]float64{1, 2, 4, 8},
			),
		}}
		f.Runs[0].Step = []float64{1, 1, 2, 2}
		return f
	}

	{
		d := &Dedupe{Policy: DedupeFirst}
		f, err := d.Transform(ctx, build())
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, []float64{0.0, 0.0012, 0.0024}, f.Runs[0].Time)
		require.Equal(t, []float64{1, 2, 8}, f.Runs[0].Torque)
		// the step indicator keeps the first sample's step
		require.Equal(t, []float64{1, 1, 2}, f.Runs[0].Step)
		require.Equal(t, 1, d.Stats.Groups)
		require.Equal(t, 1, d.Stats.Removed)
		require.Equal(t, 1, d.Stats.Differing)
		require.Equal(t, 0, d.Stats.Identical)
	}
	{
		d := &Dedupe{Policy: DedupeLast}
		f, err := d.Transform(ctx, build())
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, []float64{1, 4, 8}, f.Runs[0].Torque)
	}
	{
		d := &Dedupe{Policy: DedupeMean}
		f, err := d.Transform(ctx, build())
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, []float64{1, 3, 8}, f.Runs[0].Torque)
	}
}

func TestDedupeFirstIdempotent(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:pipeline")
	defer cleanup()
	ctx := context.Background()

	f := &Frame{Runs: []*RunSeries{
		series(
			[]float64{0.0, 0.0, 0.0012, 0.0012, 0.0012, 0.0024},
			[]float64{1, 1, 2, 3, 4, 5},
		),
	}}
	// first group repeats the same sample, second group disagrees
	f.Runs[0].Angle = []float64{10, 10, 20, 20, 20, 30}
	f.Runs[0].Gradient = []float64{0.1, 0.1, 0.2, 0.2, 0.2, 0.3}

	d := &Dedupe{Policy: DedupeFirst}
	once, err := d.Transform(ctx, f)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 2, d.Stats.Groups)
	require.Equal(t, 1, d.Stats.Identical)
	require.Equal(t, 1, d.Stats.Differing)

	snapshot := &Frame{}
	for _, run := range once.Runs {
		copied := *run
		snapshot.Runs = append(snapshot.Runs, &copied)
	}

	twice, err := d.Transform(ctx, once)
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, cmp.Diff(snapshot, twice))
	require.Equal(t, 0, d.Stats.Groups)
}

func TestImputeMeanLeavesNoNaN(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:pipeline")
	defer cleanup()

	nan := math.NaN()
	f := &Frame{Runs: []*RunSeries{
		series(
			[]float64{0.0, 0.0012, 0.0024, 0.0036},
			[]float64{2, nan, 4, nan},
		),
	}}

	imp := &Impute{Policy: ImputeMean}
	f, err := imp.Transform(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 2, imp.Filled)
	require.Equal(t, []float64{2, 3, 4, 3}, f.Runs[0].Torque)

	v := &Validate{ForbidNaN: true}
	_, err = v.Transform(context.Background(), f)
	require.NoError(t, err)
}

func TestImputeZeroAndConstant(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:pipeline")
	defer cleanup()

	nan := math.NaN()
	build := func() *Frame {
		return &Frame{Runs: []*RunSeries{
			series([]float64{0, 1}, []float64{nan, 5}),
		}}
	}

	{
		imp := &Impute{Policy: ImputeZero}
		f, err := imp.Transform(context.Background(), build())
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, []float64{0, 5}, f.Runs[0].Torque)
	}
	{
		imp := &Impute{Policy: ImputeConstant, Constant: -1}
		f, err := imp.Transform(context.Background(), build())
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, []float64{-1, 5}, f.Runs[0].Torque)
	}
}

func TestNormalize(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:pipeline")
	defer cleanup()
	ctx := context.Background()

	build := func() *Frame {
		f := &Frame{Runs: []*RunSeries{
			series([]float64{0, 1, 2, 3}, []float64{1, 2, 3, 4}),
			series([]float64{0, 1}, []float64{7, 8}),
		}}
		f.Runs[0].Step = []float64{1, 1, 2, 2}
		f.Runs[1].Step = []float64{1, 2}
		return f
	}

	{
		n := &Normalize{TargetLength: 3, PadPosition: Post, CutPosition: Post}
		f, err := n.Transform(ctx, build())
		if err != nil {
			t.Fatal(err)
		}
		for _, run := range f.Runs {
			for _, m := range channels {
				require.Len(t, *run.Channel(m), 3)
			}
		}
		require.Equal(t, []float64{1, 2, 3}, f.Runs[0].Torque)
		require.Equal(t, []float64{7, 8, 0}, f.Runs[1].Torque)
		// padded samples stay attached to the edge step
		require.Equal(t, []float64{1, 2, 2}, f.Runs[1].Step)
	}
	{
		n := &Normalize{TargetLength: 3, PadPosition: Pre, CutPosition: Pre, PadValue: -5}
		f, err := n.Transform(ctx, build())
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, []float64{2, 3, 4}, f.Runs[0].Torque)
		require.Equal(t, []float64{-5, 7, 8}, f.Runs[1].Torque)
		require.Equal(t, []float64{1, 1, 2}, f.Runs[1].Step)
	}
}

func TestValidate(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:pipeline")
	defer cleanup()
	ctx := context.Background()

	{
		f := &Frame{Runs: []*RunSeries{
			series([]float64{0, 1}, []float64{1, 2}),
		}}
		v := &Validate{RequireLength: 3}
		_, err := v.Transform(ctx, f)
		require.ErrorContains(t, err, "length 2, expected 3")
	}
	{
		f := &Frame{Runs: []*RunSeries{
			series([]float64{0, 1}, []float64{1, math.NaN()}),
		}}
		v := &Validate{ForbidNaN: true}
		_, err := v.Transform(ctx, f)
		require.ErrorContains(t, err, "is NaN")
	}
	{
		f := &Frame{Runs: []*RunSeries{
			series([]float64{0, 1}, []float64{1, 2}),
		}}
		f.Runs[0].Angle = []float64{1}
		v := &Validate{}
		_, err := v.Transform(ctx, f)
		require.ErrorContains(t, err, "angle has 1 samples")
	}
}

func TestPipelineProcess(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:pipeline")
	defer cleanup()

	nan := math.NaN()
	f := &Frame{Runs: []*RunSeries{
		series(
			[]float64{0.0, 0.0012, 0.0012, 0.0024},
			[]float64{1, nan, 4, 8},
		),
	}}
	f.Runs[0].Step = []float64{1, 1, 2, 2}

	p := New(
		&Dedupe{Policy: DedupeFirst},
		&Impute{Policy: ImputeMean},
		&Normalize{TargetLength: 5, PadPosition: Post, CutPosition: Post},
		&Validate{RequireLength: 5, ForbidNaN: true},
	)
	out, err := p.Process(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, out.Runs, 1)
	require.Equal(t, 5, out.Runs[0].Len())

	// fit rejects a bad policy before any stage runs
	_, err = New(&Dedupe{Policy: "median"}).Process(context.Background(), f)
	require.ErrorContains(t, err, "invalid duplicate policy")
}
