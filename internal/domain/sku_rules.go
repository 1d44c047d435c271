package domain

import (
	"fmt"
	"sort"
)

// Wash groups gate which washes may share a physical wash bin.
const (
	WashGroupLight = "LIGHT"
	WashGroupDark  = "DARK"
)

// SKURules holds the configurable field ranges and substitution tables.
type SKURules struct {
	WaistMin  int `yaml:"waistMin" json:"waistMin"`
	WaistMax  int `yaml:"waistMax" json:"waistMax"`
	LengthMin int `yaml:"lengthMin" json:"lengthMin"`
	LengthMax int `yaml:"lengthMax" json:"lengthMax"`

	Shapes []string `yaml:"shapes" json:"shapes"`
	Washes []string `yaml:"washes" json:"washes"`

	// LengthAdjustmentRange is the largest length difference a hem can absorb.
	LengthAdjustmentRange int `yaml:"lengthAdjustmentRange" json:"lengthAdjustmentRange"`

	// WashInterchange maps a candidate wash to the target washes it may stand in for.
	WashInterchange map[string][]string `yaml:"washInterchange" json:"washInterchange"`

	// ShapeInterchange maps a candidate shape to the target shapes it may stand in for.
	ShapeInterchange map[string][]string `yaml:"shapeInterchange" json:"shapeInterchange"`

	// WashGroups maps a group name to its washes.
	WashGroups map[string][]string `yaml:"washGroups" json:"washGroups"`
}

// DefaultSKURules returns the standard denim rule set.
func DefaultSKURules() *SKURules {
	return &SKURules{
		WaistMin:              23,
		WaistMax:              48,
		LengthMin:             26,
		LengthMax:             40,
		Shapes:                []string{"S", "R", "L", "T", "U"},
		Washes:                []string{"RAW", "IND", "BLK", "STA", "LGT", "MED", "DRK", "WHT"},
		LengthAdjustmentRange: 2,
		WashInterchange: map[string][]string{
			"RAW": {"IND", "BLK", "STA"},
			"IND": {"RAW", "BLK"},
			"BLK": {"RAW", "IND"},
		},
		ShapeInterchange: map[string][]string{
			"U": {"S", "R", "L"},
		},
		WashGroups: map[string][]string{
			WashGroupDark:  {"RAW", "IND", "BLK", "DRK"},
			WashGroupLight: {"STA", "LGT", "MED", "WHT"},
		},
	}
}

// Check verifies the rule set is internally consistent.
func (r *SKURules) Check() error {
	if r.WaistMin > r.WaistMax {
		return fmt.Errorf("waist range %d-%d is inverted", r.WaistMin, r.WaistMax)
	}
	if r.LengthMin > r.LengthMax {
		return fmt.Errorf("length range %d-%d is inverted", r.LengthMin, r.LengthMax)
	}
	if r.LengthAdjustmentRange < 0 {
		return fmt.Errorf("length adjustment range must not be negative")
	}

	seen := make(map[string]string)
	groups := make([]string, 0, len(r.WashGroups))
	for group := range r.WashGroups {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	for _, group := range groups {
		for _, wash := range r.WashGroups[group] {
			if other, ok := seen[wash]; ok {
				return fmt.Errorf("wash %s belongs to both %s and %s", wash, other, group)
			}
			seen[wash] = group
		}
	}
	return nil
}

// CanSubstituteWash reports whether a candidate wash may fulfil the target wash.
func (r *SKURules) CanSubstituteWash(target, candidate string) bool {
	return contains(r.WashInterchange[candidate], target)
}

// CanSubstituteShape reports whether a candidate shape may fulfil the target shape.
func (r *SKURules) CanSubstituteShape(target, candidate string) bool {
	return contains(r.ShapeInterchange[candidate], target)
}

// WashGroup returns the group for wash, or "" when it has none.
func (r *SKURules) WashGroup(wash string) string {
	for group, washes := range r.WashGroups {
		if contains(washes, wash) {
			return group
		}
	}
	return ""
}
