package scoring

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/openplan/corridor-cli/internal/equity"
)

// Calibration holds the scoring weights and the safety baseline. The
// three weights should sum to 1; they are applied as given, so a
// deployment can deliberately over- or under-weight a dimension.
type Calibration struct {
	AccessibilityWeight float64 `yaml:"accessibility_weight"`
	SafetyWeight        float64 `yaml:"safety_weight"`
	EquityWeight        float64 `yaml:"equity_weight"`
	SafetyBase          float64 `yaml:"safety_base"`
}

// DefaultCalibration returns the standard weights: accessibility 35%,
// safety 35%, equity 30%, safety baseline 85.
func DefaultCalibration() Calibration {
	return Calibration{
		AccessibilityWeight: 0.35,
		SafetyWeight:        0.35,
		EquityWeight:        0.30,
		SafetyBase:          85,
	}
}

// CalibrationFile is the on-disk calibration document, combining the
// equity screening thresholds with the scoring weights.
type CalibrationFile struct {
	Equity  equity.Calibration `yaml:"equity"`
	Scoring Calibration        `yaml:"scoring"`
}

// LoadCalibration reads a calibration YAML file. An empty path returns
// the built-in defaults. Unmarshaling happens over a default-populated
// document, so a partial override file inherits every key it omits.
func LoadCalibration(path string) (*CalibrationFile, error) {
	file := &CalibrationFile{
		Equity:  equity.DefaultCalibration(),
		Scoring: DefaultCalibration(),
	}
	if path == "" {
		return file, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: read calibration %s", path)
	}
	if err := yaml.Unmarshal(data, file); err != nil {
		return nil, eris.Wrapf(err, "scoring: parse calibration %s", path)
	}

	return file, nil
}
