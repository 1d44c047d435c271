package domain

import (
	"fmt"
	"time"
)

// MaterialStatus is the availability of a fabric roll.
type MaterialStatus string

const (
	MaterialStatusAvailable MaterialStatus = "AVAILABLE"
	MaterialStatusInUse     MaterialStatus = "IN_USE"
	MaterialStatusCompleted MaterialStatus = "COMPLETED"
)

// MaterialCondition is the physical state of a fabric roll.
type MaterialCondition string

const (
	MaterialConditionRaw     MaterialCondition = "RAW"
	MaterialConditionCutting MaterialCondition = "CUTTING"
	MaterialConditionCut     MaterialCondition = "CUT"
)

// Material is fabric consumed by cutting.
type Material struct {
	ID        string            `bson:"_id" json:"id"`
	Code      string            `bson:"code" json:"code"`
	Status    MaterialStatus    `bson:"status" json:"status"`
	Condition MaterialCondition `bson:"condition" json:"condition"`
	Version   int64             `bson:"version" json:"version"`
	UpdatedAt time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// IsReadyToCut reports whether the material is AVAILABLE and RAW.
func (m *Material) IsReadyToCut() bool {
	return m.Status == MaterialStatusAvailable && m.Condition == MaterialConditionRaw
}

// IsBeingCut reports whether the material is IN_USE and CUTTING.
func (m *Material) IsBeingCut() bool {
	return m.Status == MaterialStatusInUse && m.Condition == MaterialConditionCutting
}

// StartCutting moves the material to IN_USE/CUTTING.
func (m *Material) StartCutting(now time.Time) error {
	if !m.IsReadyToCut() {
		return fmt.Errorf("%w: material %s is %s/%s", ErrMaterialUnavailable, m.Code, m.Status, m.Condition)
	}
	m.Status, m.Condition, m.UpdatedAt = MaterialStatusInUse, MaterialConditionCutting, now
	return nil
}

// FinishCutting moves the material to COMPLETED/CUT.
func (m *Material) FinishCutting(now time.Time) error {
	if !m.IsBeingCut() {
		return fmt.Errorf("%w: material %s is %s/%s", ErrInvalidMaterialTransition, m.Code, m.Status, m.Condition)
	}
	m.Status, m.Condition, m.UpdatedAt = MaterialStatusCompleted, MaterialConditionCut, now
	return nil
}

// Clone returns a copy.
func (m *Material) Clone() *Material {
	c := *m
	return &c
}
