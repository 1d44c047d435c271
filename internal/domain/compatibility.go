package domain

import "strconv"

// Tier ranks how good a substitute a candidate is. Higher is better.
type Tier int

const (
	TierNone      Tier = 0
	TierShape     Tier = 40
	TierUniversal Tier = 50
	TierLength    Tier = 60
	TierWash      Tier = 80
	TierExact     Tier = 100
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "EXACT"
	case TierWash:
		return "WASH"
	case TierLength:
		return "LENGTH"
	case TierUniversal:
		return "UNIVERSAL"
	case TierShape:
		return "SHAPE"
	default:
		return "NONE"
	}
}

// Substitution records one field where the candidate differs from the target.
type Substitution struct {
	Field string `json:"field" bson:"field"`
	From  string `json:"from" bson:"from"`
	To    string `json:"to" bson:"to"`
	Tier  Tier   `json:"tier" bson:"tier"`
}

// LengthAdjustment describes the hem needed to turn the candidate into the target.
type LengthAdjustment struct {
	From       string `json:"from" bson:"from"`
	To         string `json:"to" bson:"to"`
	Difference int    `json:"difference" bson:"difference"`
}

// Compatibility is the outcome of scoring one candidate against a target.
type Compatibility struct {
	Score         Tier              `json:"score"`
	Substitutions []Substitution    `json:"substitutions,omitempty"`
	Adjustment    *LengthAdjustment `json:"adjustment,omitempty"`
}

// Scorer rates candidate SKUs against a target using a rule set.
type Scorer struct {
	rules *SKURules
}

// NewScorer creates a scorer. A nil rule set uses the defaults.
func NewScorer(rules *SKURules) *Scorer {
	if rules == nil {
		rules = DefaultSKURules()
	}
	return &Scorer{rules: rules}
}

// Rules returns the rule set in use.
func (s *Scorer) Rules() *SKURules {
	return s.rules
}

// Score rates candidate against target. The second result is false when no
// substitution path exists. The score is the weakest tier triggered.
func (s *Scorer) Score(target, candidate SKU) (Compatibility, bool) {
	if target.Style != candidate.Style || target.Waist != candidate.Waist {
		return Compatibility{}, false
	}

	result := Compatibility{Score: TierExact}
	record := func(field, from, to string, tier Tier) {
		result.Substitutions = append(result.Substitutions, Substitution{Field: field, From: from, To: to, Tier: tier})
		if tier < result.Score {
			result.Score = tier
		}
	}

	if target.Shape != candidate.Shape {
		if !s.rules.CanSubstituteShape(target.Shape, candidate.Shape) {
			return Compatibility{}, false
		}
		record("shape", target.Shape, candidate.Shape, TierShape)
	}

	if target.Length != candidate.Length {
		switch {
		case candidate.IsUniversalLength():
			record("length", target.Length, candidate.Length, TierUniversal)
		default:
			adj, ok := s.lengthAdjustment(target.Length, candidate.Length)
			if !ok {
				return Compatibility{}, false
			}
			result.Adjustment = adj
			record("length", target.Length, candidate.Length, TierLength)
		}
	}

	if target.Wash != candidate.Wash {
		if !s.rules.CanSubstituteWash(target.Wash, candidate.Wash) {
			return Compatibility{}, false
		}
		record("wash", target.Wash, candidate.Wash, TierWash)
	}

	return result, true
}

func (s *Scorer) lengthAdjustment(target, candidate string) (*LengthAdjustment, bool) {
	if target == UniversalLength {
		return nil, false
	}
	t, err := strconv.Atoi(target)
	if err != nil {
		return nil, false
	}
	c, err := strconv.Atoi(candidate)
	if err != nil {
		return nil, false
	}

	diff := t - c
	if diff > s.rules.LengthAdjustmentRange || -diff > s.rules.LengthAdjustmentRange {
		return nil, false
	}
	return &LengthAdjustment{From: candidate, To: target, Difference: diff}, true
}
