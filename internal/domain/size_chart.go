package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Tolerance bounds one measured dimension.
type Tolerance struct {
	Min    decimal.Decimal `bson:"min" json:"min" yaml:"min"`
	Target decimal.Decimal `bson:"target" json:"target" yaml:"target"`
	Max    decimal.Decimal `bson:"max" json:"max" yaml:"max"`
}

// Accepts reports whether min <= v <= max.
func (t Tolerance) Accepts(v decimal.Decimal) bool {
	return v.GreaterThanOrEqual(t.Min) && v.LessThanOrEqual(t.Max)
}

// SizeChart holds the tolerances for one size.
type SizeChart struct {
	ID         string               `bson:"_id" json:"id" yaml:"id"`
	Key        string               `bson:"key" json:"key" yaml:"key"`
	Dimensions map[string]Tolerance `bson:"dimensions" json:"dimensions" yaml:"dimensions"`
}

// MeasurementResult is the check of one dimension.
type MeasurementResult struct {
	Dimension string          `json:"dimension"`
	Value     decimal.Decimal `json:"value"`
	Tolerance Tolerance       `json:"tolerance"`
	Passed    bool            `json:"passed"`
}

// MeasurementReport is the outcome of checking a garment against a chart.
type MeasurementReport struct {
	Results []MeasurementResult `json:"results"`
	Passed  bool                `json:"passed"`
}

// Failures returns the dimensions outside tolerance.
func (r MeasurementReport) Failures() []MeasurementResult {
	var failed []MeasurementResult
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Check measures every chart dimension. A dimension without a measurement, or
// a measurement without a dimension, is an error rather than a failure.
func (c *SizeChart) Check(measurements map[string]decimal.Decimal) (MeasurementReport, error) {
	for name := range measurements {
		if _, ok := c.Dimensions[name]; !ok {
			return MeasurementReport{}, fmt.Errorf("%w: %s", ErrUnknownMeasurement, name)
		}
	}

	names := make([]string, 0, len(c.Dimensions))
	for name := range c.Dimensions {
		names = append(names, name)
	}
	sort.Strings(names)

	report := MeasurementReport{Passed: true}
	for _, name := range names {
		value, ok := measurements[name]
		if !ok {
			return MeasurementReport{}, fmt.Errorf("%w: %s", ErrMissingMeasurement, name)
		}
		tol := c.Dimensions[name]
		passed := tol.Accepts(value)
		report.Results = append(report.Results, MeasurementResult{
			Dimension: name, Value: value, Tolerance: tol, Passed: passed,
		})
		if !passed {
			report.Passed = false
		}
	}
	return report, nil
}

// Clone returns a deep copy.
func (c *SizeChart) Clone() *SizeChart {
	cp := *c
	cp.Dimensions = make(map[string]Tolerance, len(c.Dimensions))
	for k, v := range c.Dimensions {
		cp.Dimensions[k] = v
	}
	return &cp
}
