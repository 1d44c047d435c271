package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/logging"
)

func newTestMatcher(f *fixture) *Matcher {
	return NewMatcher(f.store.Items(), domain.NewScorer(nil), logging.Discard(), nil)
}

func TestMatcher_WashSubstitute(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "IND-1", "ST-32-R-32-IND", domain.StageStock)

	match, err := newTestMatcher(f).FindMatchingSKU(f.ctx, "ST-32-R-32-RAW", true)
	require.NoError(t, err)
	require.NotNil(t, match)

	assert.Equal(t, "IND-1", match.Item.ID)
	assert.Equal(t, domain.TierWash, match.Tier)
	assert.Equal(t, PhaseScored, match.Phase)
	require.Len(t, match.Substitutions, 1)
	assert.Equal(t, domain.Substitution{Field: "wash", From: "RAW", To: "IND", Tier: domain.TierWash}, match.Substitutions[0])
	assert.True(t, match.SubstitutesWash())
}

func TestMatcher_Phases(t *testing.T) {
	tests := []struct {
		name      string
		items     map[string]string
		target    string
		wantItem  string
		wantTier  domain.Tier
		wantPhase MatchPhase
	}{
		{
			name:      "exact beats any substitute",
			items:     map[string]string{"A": "ST-32-R-00-RAW", "B": "ST-32-R-32-RAW", "C": "ST-32-R-32-IND"},
			target:    "ST-32-R-32-RAW",
			wantItem:  "B",
			wantTier:  domain.TierExact,
			wantPhase: PhaseExact,
		},
		{
			name:      "universal length before scored substitutes",
			items:     map[string]string{"A": "ST-32-R-32-IND", "B": "ST-32-R-00-RAW"},
			target:    "ST-32-R-32-RAW",
			wantItem:  "B",
			wantTier:  domain.TierUniversal,
			wantPhase: PhaseUniversal,
		},
		{
			name:      "universal length in the same wash group",
			items:     map[string]string{"A": "ST-32-R-00-IND"},
			target:    "ST-32-R-32-RAW",
			wantItem:  "A",
			wantTier:  domain.TierUniversal,
			wantPhase: PhaseUniversal,
		},
		{
			name:      "fewer substitutions win within a tier",
			items:     map[string]string{"A": "ST-32-R-33-IND", "B": "ST-32-R-31-RAW"},
			target:    "ST-32-R-32-RAW",
			wantItem:  "B",
			wantTier:  domain.TierLength,
			wantPhase: PhaseScored,
		},
		{
			name:      "higher tier wins",
			items:     map[string]string{"A": "ST-32-U-32-RAW", "B": "ST-32-R-32-BLK"},
			target:    "ST-32-R-32-RAW",
			wantItem:  "B",
			wantTier:  domain.TierWash,
			wantPhase: PhaseScored,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			for id, sku := range tt.items {
				f.addItem(t, id, sku, domain.StageStock)
			}

			match, err := newTestMatcher(f).FindMatchingSKU(f.ctx, tt.target, true)
			require.NoError(t, err)
			require.NotNil(t, match)
			assert.Equal(t, tt.wantItem, match.Item.ID)
			assert.Equal(t, tt.wantTier, match.Tier)
			assert.Equal(t, tt.wantPhase, match.Phase)
		})
	}
}

func TestMatcher_OldestFirstOnTies(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "NEWER", "ST-32-R-32-IND", domain.StageStock)
	older := domain.NewInventoryItem("OLDER", domain.MustParseSKU("ST-32-R-32-BLK"), domain.StageStock, "RACK-2", f.now.Add(-time.Hour))
	require.NoError(t, f.store.Items().Create(f.ctx, older))

	match, err := newTestMatcher(f).FindMatchingSKU(f.ctx, "ST-32-R-32-RAW", true)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "OLDER", match.Item.ID)
}

func TestMatcher_SkipsUnavailableAndCommitted(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "QC-1", "ST-32-R-32-RAW", domain.StageQC)
	committed := f.addItem(t, "STOCK-1", "ST-32-R-32-RAW", domain.StageStock)
	require.NoError(t, committed.CommitTo("ORDER-1", "LINE-1", "ST-32-R-32-RAW", f.now))
	require.NoError(t, f.store.Items().Update(f.ctx, committed))

	m := newTestMatcher(f)
	match, err := m.FindMatchingSKU(f.ctx, "ST-32-R-32-RAW", true)
	require.NoError(t, err)
	assert.Nil(t, match)

	match, err = m.FindMatchingSKU(f.ctx, "ST-32-R-32-RAW", false)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "STOCK-1", match.Item.ID)
}

func TestMatcher_NoCompatibleCandidate(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "A", "ST-32-R-32-LGT", domain.StageStock)
	f.addItem(t, "B", "ST-34-R-32-RAW", domain.StageStock)

	match, err := newTestMatcher(f).FindMatchingSKU(f.ctx, "ST-32-R-32-RAW", true)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestMatcher_InvalidTarget(t *testing.T) {
	f := newFixture(t)

	_, err := newTestMatcher(f).FindMatchingSKU(f.ctx, "ST-32-R-32", true)
	assert.ErrorIs(t, err, domain.ErrInvalidSKU)
}
