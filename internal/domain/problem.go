package domain

import (
	"fmt"
	"time"
)

// ProblemCategory classifies a defect.
type ProblemCategory string

const (
	ProblemMeasurement ProblemCategory = "MEASUREMENT"
	ProblemVisual      ProblemCategory = "VISUAL"
	ProblemDamage      ProblemCategory = "DAMAGE"
	ProblemOther       ProblemCategory = "OTHER"
)

// ProblemSeverity ranks a defect.
type ProblemSeverity string

const (
	SeverityMinor    ProblemSeverity = "MINOR"
	SeverityMajor    ProblemSeverity = "MAJOR"
	SeverityCritical ProblemSeverity = "CRITICAL"
)

var severityRank = map[ProblemSeverity]int{SeverityMinor: 1, SeverityMajor: 2, SeverityCritical: 3}

// Worse returns the more severe of s and other.
func (s ProblemSeverity) Worse(other ProblemSeverity) ProblemSeverity {
	if severityRank[other] > severityRank[s] {
		return other
	}
	return s
}

// ResolutionAction is how a defect is dealt with.
type ResolutionAction string

const (
	ResolutionRepair    ResolutionAction = "REPAIR"
	ResolutionScrap     ResolutionAction = "SCRAP"
	ResolutionDowngrade ResolutionAction = "DOWNGRADE"
)

// IsValid reports whether the action is known.
func (a ResolutionAction) IsValid() bool {
	return a == ResolutionRepair || a == ResolutionScrap || a == ResolutionDowngrade
}

// SuggestedResolution maps severity to the default resolution.
func SuggestedResolution(severity ProblemSeverity) ResolutionAction {
	switch severity {
	case SeverityCritical:
		return ResolutionScrap
	case SeverityMinor:
		return ResolutionDowngrade
	default:
		return ResolutionRepair
	}
}

// Problem is a recorded defect against an item.
type Problem struct {
	ID              string           `bson:"_id" json:"id"`
	ItemID          string           `bson:"itemId,omitempty" json:"itemId,omitempty"`
	RequestID       string           `bson:"requestId" json:"requestId"`
	Category        ProblemCategory  `bson:"category" json:"category"`
	Severity        ProblemSeverity  `bson:"severity" json:"severity"`
	DiscoveredStage RequestType      `bson:"discoveredStage" json:"discoveredStage"`
	Description     string           `bson:"description" json:"description"`
	Resolution      ResolutionAction `bson:"resolution" json:"resolution"`
	ReportedBy      string           `bson:"reportedBy" json:"reportedBy"`
	ReportedAt      time.Time        `bson:"reportedAt" json:"reportedAt"`
	ResolvedAt      *time.Time       `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
}

// Resolve closes the problem with the action taken.
func (p *Problem) Resolve(action ResolutionAction, now time.Time) error {
	if p.ResolvedAt != nil {
		return fmt.Errorf("%w: %s", ErrProblemResolved, p.ID)
	}
	if !action.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidResolutionAction, action)
	}
	p.Resolution = action
	p.ResolvedAt = &now
	return nil
}

// Clone returns a copy.
func (p *Problem) Clone() *Problem {
	c := *p
	if p.ResolvedAt != nil {
		t := *p.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}
