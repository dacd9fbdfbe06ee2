// Package screwtest builds miniature scenario datasets for tests: raw run
// JSON documents, labels files, extracted data directories and zip
// archives shaped exactly like the published records.
package screwtest

import (
	"archive/zip"
	"bytes"
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"screwdata/lib/scenario"
)

type StepSpec struct {
	Name    string
	Result  string
	Time    []float64
	Torque  []float64
	Angle   []float64
	Grad    []float64
}

type RunSpec struct {
	FileName string
	Dmc      string
	Result   string
	Cycle    int
	Position int
	Class    int
	Steps    []StepSpec
}

// Step returns a four-sample step with distinct values per channel,
// offset so runs and steps are distinguishable in assertions.
func Step(offset float64) StepSpec {
	return StepSpec{
		Name:   "Step 1",
		Result: "OK",
		Time:   []float64{offset, offset + 0.0012, offset + 0.0024, offset + 0.0036},
		Torque: []float64{1 + offset, 2 + offset, 3 + offset, 4 + offset},
		Angle:  []float64{10 + offset, 20 + offset, 30 + offset, 40 + offset},
		Grad:   []float64{0.1, 0.2, 0.3, 0.4},
	}
}

// Run returns a two-step OK run for the given class.
func Run(n, class int) RunSpec {
	return RunSpec{
		FileName: fmt.Sprintf("run_%03d.json", n),
		Dmc:      fmt.Sprintf("%014d", n),
		Result:   "OK",
		Cycle:    n,
		Position: n % 2,
		Class:    class,
		Steps:    []StepSpec{Step(0), Step(1)},
	}
}

func runJson(t testing.TB, run RunSpec) []byte {
	steps := make([]map[string]any, len(run.Steps))
	for i, s := range run.Steps {
		steps[i] = map[string]any{
			"name":         s.Name,
			"step type":    "standard",
			"result":       s.Result,
			"quality code": "1",
			"graph": map[string]any{
				"time values":     s.Time,
				"torque values":   s.Torque,
				"angle values":    s.Angle,
				"gradient values": s.Grad,
			},
		}
	}
	doc := map[string]any{
		"date":             "2024-02-05",
		"result":           run.Result,
		"id code":          run.Dmc,
		"tightening steps": steps,
	}
	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func labelsCsv(t testing.TB, runs []RunSpec) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write([]string{
		"file_name", "data_matrix_code", "result_value",
		"cycle_number", "workpiece_location", "class_label",
	})
	for _, run := range runs {
		w.Write([]string{
			run.FileName,
			run.Dmc,
			run.Result,
			strconv.Itoa(run.Cycle),
			strconv.Itoa(run.Position),
			strconv.Itoa(run.Class),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// WriteDataDir lays out an extracted scenario directory (json/ plus
// labels.csv) under dir.
func WriteDataDir(t testing.TB, dir string, runs []RunSpec) {
	jsonDir := filepath.Join(dir, "json")
	err := os.MkdirAll(jsonDir, 0750)
	if err != nil {
		t.Fatal(err)
	}

	for _, run := range runs {
		err := os.WriteFile(filepath.Join(jsonDir, run.FileName), runJson(t, run), 0644)
		if err != nil {
			t.Fatal(err)
		}
	}
	err = os.WriteFile(filepath.Join(dir, "labels.csv"), labelsCsv(t, runs), 0644)
	if err != nil {
		t.Fatal(err)
	}
}

// BuildArchive zips the runs into the published layout and returns the
// archive bytes with their md5 checksum.
func BuildArchive(t testing.TB, runs []RunSpec) ([]byte, string) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, run := range runs {
		entry, err := w.Create("json/" + run.FileName)
		if err != nil {
			t.Fatal(err)
		}
		_, err = entry.Write(runJson(t, run))
		if err != nil {
			t.Fatal(err)
		}
	}
	entry, err := w.Create("labels.csv")
	if err != nil {
		t.Fatal(err)
	}
	_, err = entry.Write(labelsCsv(t, runs))
	if err != nil {
		t.Fatal(err)
	}

	err = w.Close()
	if err != nil {
		t.Fatal(err)
	}

	sum := md5.Sum(buf.Bytes())
	return buf.Bytes(), hex.EncodeToString(sum[:])
}

// Scenario returns a catalog-shaped scenario pointing at the given archive
// checksum.
func Scenario(checksum string) *scenario.Scenario {
	return &scenario.Scenario{
		Names: scenario.Names{
			Short: "s0x",
			Long:  "test scenario",
			Full:  "test-scenario",
		},
		Classes: []scenario.Class{
			{Id: 0, Name: "001_control-group", Count: 2, Condition: "normal"},
			{Id: 1, Name: "002_faulty-group", Count: 2, Condition: "faulty"},
		},
		Data: scenario.Data{
			RecordId:    "00000000",
			FileName:    "s0x_test-scenario.zip",
			Md5Checksum: checksum,
		},
	}
}
