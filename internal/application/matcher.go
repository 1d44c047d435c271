package application

import (
	"context"
	"fmt"
	"sort"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/logging"
	"github.com/wms-platform/production-service/pkg/metrics"
)

// MatchPhase names the lookup that produced a match.
type MatchPhase string

const (
	PhaseExact     MatchPhase = "EXACT"
	PhaseUniversal MatchPhase = "UNIVERSAL"
	PhaseScored    MatchPhase = "SCORED"
)

// MatchResult is the inventory item chosen for a target SKU.
type MatchResult struct {
	Item          *domain.InventoryItem
	Tier          domain.Tier
	Substitutions []domain.Substitution
	Adjustment    *domain.LengthAdjustment
	Phase         MatchPhase
}

// SubstitutesWash reports whether the match swapped the wash.
func (m *MatchResult) SubstitutesWash() bool {
	for _, s := range m.Substitutions {
		if s.Field == "wash" {
			return true
		}
	}
	return false
}

// Matcher finds inventory for a requested SKU.
type Matcher struct {
	items   domain.InventoryRepository
	scorer  *domain.Scorer
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewMatcher creates a Matcher.
func NewMatcher(items domain.InventoryRepository, scorer *domain.Scorer, logger *logging.Logger, m *metrics.Metrics) *Matcher {
	return &Matcher{items: items, scorer: scorer, logger: logger.WithComponent("matcher"), metrics: m}
}

var availableStages = []domain.ItemStage{domain.StageStock, domain.StageAvailable}

// FindMatchingSKU looks for an available item fulfilling target: an exact SKU
// first, then a universal-length item of a compatible wash, then the best
// scored substitute. A nil result means nothing matched.
func (m *Matcher) FindMatchingSKU(ctx context.Context, target string, uncommittedOnly bool) (*MatchResult, error) {
	return m.find(ctx, target, domain.ItemFilter{Stages: availableStages, UncommittedOnly: uncommittedOnly})
}

// FindReplacement matches an uncommitted item for target, skipping the items
// in exclude.
func (m *Matcher) FindReplacement(ctx context.Context, target string, exclude []string) (*MatchResult, error) {
	return m.find(ctx, target, domain.ItemFilter{Stages: availableStages, UncommittedOnly: true, ExcludeIDs: exclude})
}

func (m *Matcher) find(ctx context.Context, target string, filter domain.ItemFilter) (*MatchResult, error) {
	targetSKU, err := m.scorer.Rules().Parse(target)
	if err != nil {
		return nil, err
	}

	result, err := m.exact(ctx, targetSKU, filter)
	if err == nil && result == nil {
		result, err = m.universal(ctx, targetSKU, filter)
	}
	if err == nil && result == nil {
		result, err = m.scored(ctx, targetSKU, filter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to match SKU %s: %w", target, err)
	}

	if result == nil {
		m.metrics.RecordMatch(domain.TierNone.String())
		m.logger.WithContext(ctx).Debug("No inventory matches SKU", "sku", target)
		return nil, nil
	}

	m.metrics.RecordMatch(result.Tier.String())
	m.logger.WithContext(ctx).Debug("Matched SKU",
		"sku", target,
		"itemId", result.Item.ID,
		"matchedSku", result.Item.SKU,
		"tier", result.Tier.String(),
		"phase", result.Phase,
	)
	return result, nil
}

func (m *Matcher) exact(ctx context.Context, target domain.SKU, filter domain.ItemFilter) (*MatchResult, error) {
	items, err := m.items.FindBySKU(ctx, target.String(), filter)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &MatchResult{Item: items[0], Tier: domain.TierExact, Phase: PhaseExact}, nil
}

func (m *Matcher) universal(ctx context.Context, target domain.SKU, filter domain.ItemFilter) (*MatchResult, error) {
	if target.IsUniversalLength() {
		return nil, nil
	}
	items, err := m.items.FindByPrefix(ctx, target.Prefix(), filter)
	if err != nil {
		return nil, err
	}

	rules := m.scorer.Rules()
	targetGroup := rules.WashGroup(target.Wash)
	for _, item := range items {
		candidate, err := item.ParsedSKU()
		if err != nil || candidate.Shape != target.Shape || !candidate.IsUniversalLength() {
			continue
		}
		sameWash := candidate.Wash == target.Wash
		if !sameWash && (targetGroup == "" || rules.WashGroup(candidate.Wash) != targetGroup) {
			continue
		}

		subs := []domain.Substitution{{Field: "length", From: target.Length, To: candidate.Length, Tier: domain.TierUniversal}}
		if !sameWash {
			subs = append(subs, domain.Substitution{Field: "wash", From: target.Wash, To: candidate.Wash, Tier: domain.TierWash})
		}
		return &MatchResult{Item: item, Tier: domain.TierUniversal, Substitutions: subs, Phase: PhaseUniversal}, nil
	}
	return nil, nil
}

type scoredCandidate struct {
	item   *domain.InventoryItem
	result domain.Compatibility
}

func (m *Matcher) scored(ctx context.Context, target domain.SKU, filter domain.ItemFilter) (*MatchResult, error) {
	items, err := m.items.FindByPrefix(ctx, target.Prefix(), filter)
	if err != nil {
		return nil, err
	}

	var candidates []scoredCandidate
	for _, item := range items {
		sku, err := item.ParsedSKU()
		if err != nil {
			continue
		}
		if result, ok := m.scorer.Score(target, sku); ok {
			candidates = append(candidates, scoredCandidate{item: item, result: result})
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.result.Score != b.result.Score {
			return a.result.Score > b.result.Score
		}
		if len(a.result.Substitutions) != len(b.result.Substitutions) {
			return len(a.result.Substitutions) < len(b.result.Substitutions)
		}
		return a.item.CreatedAt.Before(b.item.CreatedAt)
	})

	best := candidates[0]
	return &MatchResult{
		Item:          best.item,
		Tier:          best.result.Score,
		Substitutions: best.result.Substitutions,
		Adjustment:    best.result.Adjustment,
		Phase:         PhaseScored,
	}, nil
}
