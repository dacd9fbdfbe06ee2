package screwset

import "fmt"

// Measurement names the channels recorded by the screw driving control.
// These are the user-facing identifiers; the JSON documents use the
// control unit's own keys ("torque values" etc, see run.go).
type Measurement string

const (
	Torque   Measurement = "torque"
	Angle    Measurement = "angle"
	Gradient Measurement = "gradient"
	Time     Measurement = "time"
	// StepIndicator is the derived series mapping each sample to the
	// tightening step it came from.
	StepIndicator Measurement = "step"
)

// Measurements are the four recorded channels, in the order the pipeline
// emits them. StepIndicator is derived, not recorded, so it is not listed.
var Measurements = []Measurement{Torque, Angle, Gradient, Time}

func ParseMeasurement(name string) (Measurement, error) {
	for _, m := range Measurements {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("invalid measurement %q, valid options are: torque, angle, gradient, time", name)
}

// labels.csv column names
const (
	labelFileName = "file_name"
	labelDmc      = "data_matrix_code"
	labelResult   = "result_value"
	labelCycle    = "cycle_number"
	labelPosition = "workpiece_location"
	labelClass    = "class_label"
)
