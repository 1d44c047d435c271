package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScorer_Score(t *testing.T) {
	scorer := NewScorer(nil)

	tests := []struct {
		name       string
		target     string
		candidate  string
		wantOK     bool
		wantTier   Tier
		wantSubs   []Substitution
		wantAdjust *LengthAdjustment
	}{
		{
			name:      "Identical codes are exact",
			target:    "ST-32-R-32-RAW",
			candidate: "ST-32-R-32-RAW",
			wantOK:    true,
			wantTier:  TierExact,
		},
		{
			name:      "Interchangeable wash",
			target:    "ST-32-R-32-RAW",
			candidate: "ST-32-R-32-IND",
			wantOK:    true,
			wantTier:  TierWash,
			wantSubs:  []Substitution{{Field: "wash", From: "RAW", To: "IND", Tier: TierWash}},
		},
		{
			name:      "Raw stands in for stone wash",
			target:    "ST-32-R-32-STA",
			candidate: "ST-32-R-32-RAW",
			wantOK:    true,
			wantTier:  TierWash,
			wantSubs:  []Substitution{{Field: "wash", From: "STA", To: "RAW", Tier: TierWash}},
		},
		{
			name:      "Stone wash does not stand in for raw",
			target:    "ST-32-R-32-RAW",
			candidate: "ST-32-R-32-STA",
		},
		{
			name:       "Length within adjustment range",
			target:     "ST-32-R-32-RAW",
			candidate:  "ST-32-R-34-RAW",
			wantOK:     true,
			wantTier:   TierLength,
			wantSubs:   []Substitution{{Field: "length", From: "32", To: "34", Tier: TierLength}},
			wantAdjust: &LengthAdjustment{From: "34", To: "32", Difference: -2},
		},
		{
			name:      "Length beyond adjustment range",
			target:    "ST-32-R-32-RAW",
			candidate: "ST-32-R-35-RAW",
		},
		{
			name:      "Universal length",
			target:    "ST-32-R-32-RAW",
			candidate: "ST-32-R-00-RAW",
			wantOK:    true,
			wantTier:  TierUniversal,
			wantSubs:  []Substitution{{Field: "length", From: "32", To: "00", Tier: TierUniversal}},
		},
		{
			name:      "Universal shape",
			target:    "ST-32-S-32-RAW",
			candidate: "ST-32-U-32-RAW",
			wantOK:    true,
			wantTier:  TierShape,
			wantSubs:  []Substitution{{Field: "shape", From: "S", To: "U", Tier: TierShape}},
		},
		{
			name:      "Shape without interchange",
			target:    "ST-32-S-32-RAW",
			candidate: "ST-32-L-32-RAW",
		},
		{
			name:      "Combined substitutions take the weakest tier",
			target:    "ST-32-R-32-RAW",
			candidate: "ST-32-U-33-IND",
			wantOK:    true,
			wantTier:  TierShape,
			wantSubs: []Substitution{
				{Field: "shape", From: "R", To: "U", Tier: TierShape},
				{Field: "length", From: "32", To: "33", Tier: TierLength},
				{Field: "wash", From: "RAW", To: "IND", Tier: TierWash},
			},
			wantAdjust: &LengthAdjustment{From: "33", To: "32", Difference: -1},
		},
		{
			name:      "Style mismatch disqualifies",
			target:    "ST-32-R-32-RAW",
			candidate: "JN-32-R-32-RAW",
		},
		{
			name:      "Waist mismatch disqualifies",
			target:    "ST-32-R-32-RAW",
			candidate: "ST-33-R-32-RAW",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := scorer.Score(MustParseSKU(tt.target), MustParseSKU(tt.candidate))
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantTier, got.Score)
			assert.Equal(t, tt.wantSubs, got.Substitutions)
			assert.Equal(t, tt.wantAdjust, got.Adjustment)
		})
	}
}

func TestScorer_Monotonicity(t *testing.T) {
	scorer := NewScorer(nil)
	rules := scorer.Rules()

	var codes []SKU
	for _, shape := range rules.Shapes {
		for _, length := range []string{"00", "30", "31", "32", "33", "34"} {
			for _, wash := range rules.Washes {
				codes = append(codes, SKU{Style: "ST", Waist: "32", Shape: shape, Length: length, Wash: wash})
			}
		}
	}

	for _, target := range codes {
		self, ok := scorer.Score(target, target)
		require.True(t, ok)
		require.Equal(t, TierExact, self.Score, target.String())
		require.Empty(t, self.Substitutions)

		for _, candidate := range codes {
			got, ok := scorer.Score(target, candidate)
			if !ok || candidate == target {
				continue
			}
			require.NotEmpty(t, got.Substitutions)
			require.Less(t, got.Score, TierExact, "%s vs %s", target, candidate)

			weakest := TierExact
			for _, sub := range got.Substitutions {
				if sub.Tier < weakest {
					weakest = sub.Tier
				}
			}
			require.Equal(t, weakest, got.Score)
		}
	}
}

func TestTier_Ordering(t *testing.T) {
	ordered := []Tier{TierExact, TierWash, TierLength, TierUniversal, TierShape, TierNone}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i-1], ordered[i])
	}
	assert.Equal(t, "WASH", TierWash.String())
}

func TestScorer_ConfiguredRange(t *testing.T) {
	rules := DefaultSKURules()
	rules.LengthAdjustmentRange = 4
	scorer := NewScorer(rules)

	got, ok := scorer.Score(MustParseSKU("ST-32-R-30-RAW"), MustParseSKU("ST-32-R-34-RAW"))
	require.True(t, ok)
	assert.Equal(t, TierLength, got.Score)
	assert.Equal(t, -4, got.Adjustment.Difference)
}
