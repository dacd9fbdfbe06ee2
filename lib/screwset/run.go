package screwset

import (
	"encoding/json"
	"fmt"
	"math"
)

// Step is one tightening phase of a run. Number is 1-based, matching the
// four phases of the screw program (1 finding, 2 thread forming,
// 3 pre-tightening, 4 final tightening).
type Step struct {
	Number      int
	Name        string
	Type        string
	Result      string
	QualityCode string

	Time     []float64
	Torque   []float64
	Angle    []float64
	Gradient []float64
}

func (s *Step) Len() int {
	return len(s.Time)
}

func (s *Step) Values(m Measurement) []float64 {
	switch m {
	case Time:
		return s.Time
	case Torque:
		return s.Torque
	case Angle:
		return s.Angle
	case Gradient:
		return s.Gradient
	}
	return nil
}

// Run is one recorded screw-driving operation: the JSON document's
// metadata and steps joined with its labels.csv row.
type Run struct {
	Id     string
	Date   string
	Dmc    string
	Result string

	// from the labels file
	Cycle    int
	Position int
	Class    int

	Steps []*Step
}

func (r *Run) Len() int {
	total := 0
	for _, s := range r.Steps {
		total += s.Len()
	}
	return total
}

// Values concatenates one channel across all steps.
func (r *Run) Values(m Measurement) []float64 {
	out := make([]float64, 0, r.Len())
	for _, s := range r.Steps {
		out = append(out, s.Values(m)...)
	}
	return out
}

// graph and step documents use the screw driving control's exact key
// names, spaces included. Channels decode through pointers so that null
// samples survive as NaN instead of failing the whole document.
type graphDoc struct {
	Time     []*float64 `json:"time values"`
	Torque   []*float64 `json:"torque values"`
	Angle    []*float64 `json:"angle values"`
	Gradient []*float64 `json:"gradient values"`
}

func channelValues(vs []*float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		if v == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *v
		}
	}
	return out
}

type stepDoc struct {
	Name        string   `json:"name"`
	StepType    string   `json:"step type"`
	Result      string   `json:"result"`
	QualityCode string   `json:"quality code"`
	Graph       graphDoc `json:"graph"`
}

type runDoc struct {
	Date   string    `json:"date"`
	Result string    `json:"result"`
	IdCode string    `json:"id code"`
	Steps  []stepDoc `json:"tightening steps"`
}

func decodeRun(id string, contents []byte, label Label) (*Run, error) {
	var doc runDoc
	err := json.Unmarshal(contents, &doc)
	if err != nil {
		return nil, fmt.Errorf("invalid json in %s: %w", label.FileName, err)
	}

	if doc.IdCode != label.Dmc {
		return nil, fmt.Errorf(
			"dmc mismatch in %s: json=%q, label=%q",
			label.FileName, doc.IdCode, label.Dmc,
		)
	}
	if doc.Result != label.Result {
		return nil, fmt.Errorf(
			"result mismatch in %s: json=%q, label=%q",
			label.FileName, doc.Result, label.Result,
		)
	}

	run := &Run{
		Id:       id,
		Date:     doc.Date,
		Dmc:      doc.IdCode,
		Result:   doc.Result,
		Cycle:    label.Cycle,
		Position: label.Position,
		Class:    label.Class,
	}
	for i, sd := range doc.Steps {
		step := &Step{
			Number:      i + 1,
			Name:        sd.Name,
			Type:        sd.StepType,
			Result:      sd.Result,
			QualityCode: sd.QualityCode,
			Time:        channelValues(sd.Graph.Time),
			Torque:      channelValues(sd.Graph.Torque),
			Angle:       channelValues(sd.Graph.Angle),
			Gradient:    channelValues(sd.Graph.Gradient),
		}
		err := validateStep(step)
		if err != nil {
			return nil, fmt.Errorf("%s step %d: %w", label.FileName, i, err)
		}
		run.Steps = append(run.Steps, step)
	}
	return run, nil
}

// validateStep enforces the channel-length invariant: channels are
// sampled against the time vector, so none may be longer than it.
// Shorter channels are allowed here and equalized by the missing value
// stage of the processing pipeline.
func validateStep(s *Step) error {
	n := len(s.Time)
	if len(s.Torque) > n || len(s.Angle) > n || len(s.Gradient) > n {
		return fmt.Errorf(
			"channel longer than time vector: time=%d torque=%d angle=%d gradient=%d",
			len(s.Time), len(s.Torque), len(s.Angle), len(s.Gradient),
		)
	}
	return nil
}
