package commands

import (
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"screwdata/lib/datasets"
	"screwdata/lib/screwset"

	"github.com/spf13/cobra"
)

var exportFlags struct {
	out          *string
	measurements *[]string
	classes      *[]int
	cycles       *[]int
	position     *string
	steps        *[]int
	duplicates   *string
	missings     *string
	constant     *float64
	length       *int
	padValue     *float64
	padPosition  *string
	cutPosition  *string
	force        *bool
}

func init() {
	f := exportCmd.Flags()
	exportFlags.out = f.StringP("out", "o", "", "Output directory for the csv files.")
	exportFlags.measurements = f.StringSlice("measurements", nil, "Channels to export (default: all four).")
	exportFlags.classes = f.IntSlice("classes", nil, "Keep only these class labels.")
	exportFlags.cycles = f.IntSlice("cycles", nil, "Keep only these cycle numbers.")
	exportFlags.position = f.String("position", "both", "Workpiece position: left, right or both.")
	exportFlags.steps = f.IntSlice("steps", nil, "Keep only these tightening step numbers (1-based, 1-4).")
	exportFlags.duplicates = f.String("duplicates", "first", "Duplicate time policy: first, last or mean.")
	exportFlags.missings = f.String("missings", "mean", "Missing value policy: mean, zero or constant.")
	exportFlags.constant = f.Float64("missing-constant", 0, "Fill value for the constant missing policy.")
	exportFlags.length = f.Int("length", 2000, "Target series length.")
	exportFlags.padValue = f.Float64("pad-value", 0, "Value used to pad short series.")
	exportFlags.padPosition = f.String("pad-position", "post", "Pad short series at: pre or post.")
	exportFlags.cutPosition = f.String("cut-position", "post", "Cut long series at: pre or post.")
	exportFlags.force = f.Bool("force", false, "Redownload and re-extract even when cached.")
	exportCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <scenario> -o <dir>",
	Short: "Runs the full pipeline and writes one wide csv per measurement.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		profile := readProfile()
		config := datasets.Config{
			Scenario:         args[0],
			Measurements:     *exportFlags.measurements,
			Classes:          *exportFlags.classes,
			Cycles:           *exportFlags.cycles,
			Position:         *exportFlags.position,
			Steps:            *exportFlags.steps,
			HandleDuplicates: *exportFlags.duplicates,
			HandleMissings:   *exportFlags.missings,
			MissingConstant:  *exportFlags.constant,
			TargetLength:     *exportFlags.length,
			PaddingValue:     *exportFlags.padValue,
			PaddingPosition:  *exportFlags.padPosition,
			CutoffPosition:   *exportFlags.cutPosition,
			CacheDir:         cacheDir(profile),
			Force:            *exportFlags.force,
		}
		if !cmd.Flags().Changed("duplicates") && profile.HandleDuplicates != "" {
			config.HandleDuplicates = profile.HandleDuplicates
		}
		if !cmd.Flags().Changed("missings") && profile.HandleMissings != "" {
			config.HandleMissings = profile.HandleMissings
		}
		if !cmd.Flags().Changed("length") && profile.TargetLength != 0 {
			config.TargetLength = profile.TargetLength
		}

		t1 := time.Now()
		result, err := datasets.Get(cmd.Context(), config)
		if err != nil {
			fatal("failed to load dataset", err)
		}

		outDir := *exportFlags.out
		err = os.MkdirAll(outDir, 0750)
		if err != nil {
			fatal("failed to create output dir", err)
		}

		for m, series := range result.Fields {
			path := filepath.Join(outDir, string(m)+".csv")
			err := writeWideCsv(path, result.Labels, series)
			if err != nil {
				fatal("failed to write measurement csv", err)
			}
		}
		err = writeWideCsv(filepath.Join(outDir, "step.csv"), result.Labels, result.Steps)
		if err != nil {
			fatal("failed to write step indicator csv", err)
		}
		err = writeLabelsCsv(filepath.Join(outDir, "labels.csv"), result.Labels)
		if err != nil {
			fatal("failed to write labels csv", err)
		}

		slog.Info(
			"export completed",
			"scenario", result.Scenario.FullName(),
			"runs", len(result.Labels),
			"dir", outDir,
			"seconds", time.Since(t1).Seconds(),
		)
	},
}

// writeWideCsv writes one run per row: its file name and class followed
// by the samples.
func writeWideCsv(path string, labels []screwset.Label, series [][]float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	width := 0
	if len(series) > 0 {
		width = len(series[0])
	}
	header := []string{"file_name", "class_label"}
	for i := 0; i < width; i++ {
		header = append(header, "s"+strconv.Itoa(i))
	}
	err = w.Write(header)
	if err != nil {
		return err
	}

	for i, run := range series {
		row := make([]string, 0, len(run)+2)
		row = append(row, labels[i].FileName, strconv.Itoa(labels[i].Class))
		for _, v := range run {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		err := w.Write(row)
		if err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeLabelsCsv(path string, labels []screwset.Label) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	err = w.Write([]string{
		"file_name", "data_matrix_code", "result_value",
		"cycle_number", "workpiece_location", "class_label",
	})
	if err != nil {
		return err
	}
	for _, label := range labels {
		err := w.Write([]string{
			label.FileName,
			label.Dmc,
			label.Result,
			strconv.Itoa(label.Cycle),
			strconv.Itoa(label.Position),
			strconv.Itoa(label.Class),
		})
		if err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
