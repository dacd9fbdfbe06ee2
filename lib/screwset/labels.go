package screwset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"screwdata/lib/scenario"
)

// ErrCatalogMismatch is returned when a labels file disagrees with the
// catalog's published class counts.
var ErrCatalogMismatch = errors.New("labels disagree with catalog")

// Label is one row of labels.csv: the metadata that connects a JSON
// measurement file to its classification.
type Label struct {
	FileName string
	Dmc      string
	Result   string
	Cycle    int
	Position int
	Class    int
}

var labelColumns = []string{
	labelFileName, labelDmc, labelResult,
	labelCycle, labelPosition, labelClass,
}

// LoadLabels reads and validates a labels.csv file. The header must match
// the published column set exactly.
func LoadLabels(path string) ([]Label, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty labels file", path)
	}

	header := rows[0]
	if len(header) != len(labelColumns) {
		return nil, fmt.Errorf("%s: expected %d columns, got %d", path, len(labelColumns), len(header))
	}
	for i, want := range labelColumns {
		if header[i] != want {
			return nil, fmt.Errorf("%s: expected column %q at index %d, got %q", path, want, i, header[i])
		}
	}

	labels := make([]Label, 0, len(rows)-1)
	for n, row := range rows[1:] {
		label, err := parseLabelRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, n+2, err)
		}
		labels = append(labels, label)
	}
	return labels, nil
}

// CheckCatalogCounts compares the per-class row counts of dataDir's
// labels file, before any filtering, against the catalog's published
// counts.
func CheckCatalogCounts(dataDir string, classes []scenario.Class) error {
	labels, err := LoadLabels(filepath.Join(dataDir, "labels.csv"))
	if err != nil {
		return err
	}

	counts := map[int]int{}
	for _, label := range labels {
		counts[label.Class]++
	}

	known := map[int]bool{}
	for _, c := range classes {
		known[c.Id] = true
		if counts[c.Id] != c.Count {
			return fmt.Errorf(
				"%w: class %d has %d rows, catalog says %d",
				ErrCatalogMismatch, c.Id, counts[c.Id], c.Count,
			)
		}
	}
	for id := range counts {
		if !known[id] {
			return fmt.Errorf("%w: class %d is not in the catalog", ErrCatalogMismatch, id)
		}
	}
	return nil
}

func parseLabelRow(row []string) (Label, error) {
	cycle, err := strconv.Atoi(row[3])
	if err != nil {
		return Label{}, fmt.Errorf("cycle_number: %w", err)
	}
	position, err := strconv.Atoi(row[4])
	if err != nil {
		return Label{}, fmt.Errorf("workpiece_location: %w", err)
	}
	class, err := strconv.Atoi(row[5])
	if err != nil {
		return Label{}, fmt.Errorf("class_label: %w", err)
	}
	return Label{
		FileName: row[0],
		Dmc:      row[1],
		Result:   row[2],
		Cycle:    cycle,
		Position: position,
		Class:    class,
	}, nil
}
