package domain

import (
	"fmt"
	"time"
)

// RequestType selects the workflow driving a request.
type RequestType string

const (
	RequestTypeMove      RequestType = "MOVE"
	RequestTypePattern   RequestType = "PATTERN"
	RequestTypeCutting   RequestType = "CUTTING"
	RequestTypeQC        RequestType = "QC"
	RequestTypeWash      RequestType = "WASH"
	RequestTypeFinishing RequestType = "FINISHING"
	RequestTypePacking   RequestType = "PACKING"
	RequestTypeRecovery  RequestType = "RECOVERY"
)

// AllRequestTypes lists every request type.
var AllRequestTypes = []RequestType{
	RequestTypeMove, RequestTypePattern, RequestTypeCutting, RequestTypeQC,
	RequestTypeWash, RequestTypeFinishing, RequestTypePacking, RequestTypeRecovery,
}

// IsValid reports whether the type is known.
func (t RequestType) IsValid() bool {
	for _, known := range AllRequestTypes {
		if t == known {
			return true
		}
	}
	return false
}

// MaxRequestRetries bounds the FAILED -> PENDING path.
const MaxRequestRetries = 3

// Retryable reports whether a failed request of this type may be retried.
func (t RequestType) Retryable() bool {
	switch t {
	case RequestTypeMove, RequestTypeWash, RequestTypePacking:
		return true
	}
	return false
}

// RequestStatus represents the status of a request
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "PENDING"
	RequestStatusInProgress RequestStatus = "IN_PROGRESS"
	RequestStatusCompleted  RequestStatus = "COMPLETED"
	RequestStatusFailed     RequestStatus = "FAILED"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:    {RequestStatusInProgress, RequestStatusCompleted, RequestStatusFailed},
	RequestStatusInProgress: {RequestStatusCompleted, RequestStatusFailed},
	RequestStatusFailed:     {RequestStatusPending},
}

// IsTerminal reports whether the status ends the request.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusFailed
}

// CanTransitionTo reports whether the status table permits next.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, allowed := range requestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Step names a position in a request workflow.
type Step string

// StepNone is the current step of a request whose workflow has no entry step.
const StepNone Step = ""

// Move steps
const (
	StepItemScan        Step = "ITEM_SCAN"
	StepDestinationScan Step = "DESTINATION_SCAN"
	StepMoveComplete    Step = "MOVE_COMPLETE"
)

// Cutting steps
const (
	StepMaterialValidation Step = "MATERIAL_VALIDATION"
	StepCuttingProcess     Step = "CUTTING_PROCESS"
	StepCuttingComplete    Step = "CUTTING_COMPLETE"
)

// Pattern steps
const (
	StepBatchValidation Step = "BATCH_VALIDATION"
	StepPatternProcess  Step = "PATTERN_PROCESS"
	StepPatternComplete Step = "PATTERN_COMPLETE"
)

// Packing steps. Packing shares StepItemScan with Move.
const (
	StepOrderValidation Step = "ORDER_VALIDATION"
	StepBinAssignment   Step = "BIN_ASSIGNMENT"
	StepPackingComplete Step = "PACKING_COMPLETE"
)

// QC steps
const (
	StepMeasurementsRequired     Step = "MEASUREMENTS_REQUIRED"
	StepMeasurementsValidated    Step = "MEASUREMENTS_VALIDATED"
	StepVisualInspectionRequired Step = "VISUAL_INSPECTION_REQUIRED"
	StepVisualInspectionPassed   Step = "VISUAL_INSPECTION_PASSED"
	StepBinAssignmentRequired    Step = "BIN_ASSIGNMENT_REQUIRED"
	StepDefectDetected           Step = "DEFECT_DETECTED"
	StepCompleted                Step = "COMPLETED"
)

// Wash steps. Wash ends with StepCompleted.
const (
	StepAssignBin       Step = "ASSIGN_BIN"
	StepBinAssigned     Step = "BIN_ASSIGNED"
	StepReadyForLaundry Step = "READY_FOR_LAUNDRY"
	StepAtLaundry       Step = "AT_LAUNDRY"
)

// Finishing steps
const (
	StepOperationsPending Step = "OPERATIONS_PENDING"
	StepButton            Step = "BUTTON"
	StepNametag           Step = "NAMETAG"
	StepHem               Step = "HEM"
	StepFinalQC           Step = "FINAL_QC"
)

// Recovery steps
const (
	StepAssessmentRequired Step = "ASSESSMENT_REQUIRED"
	StepResolutionDecided  Step = "RESOLUTION_DECIDED"
	StepRepairComplete     Step = "REPAIR_COMPLETE"
	StepScrapConfirmed     Step = "SCRAP_CONFIRMED"
	StepDowngradeConfirmed Step = "DOWNGRADE_CONFIRMED"
)

// Lifecycle entries recorded outside step advances.
const (
	StepCreated       Step = "CREATED"
	StepFailed        Step = "FAILED"
	StepRetried       Step = "RETRIED"
	StepProblemReport Step = "PROBLEM_REPORTED"
)

// TimelineEntry records one transition of a request.
type TimelineEntry struct {
	Step       Step              `bson:"step" json:"step"`
	Status     RequestStatus     `bson:"status" json:"status"`
	OperatorID string            `bson:"operatorId" json:"operatorId"`
	Timestamp  time.Time         `bson:"timestamp" json:"timestamp"`
	Changes    map[string]string `bson:"changes,omitempty" json:"changes,omitempty"`
}

// Failure describes why a request failed.
type Failure struct {
	Step      Step              `bson:"step" json:"step"`
	Reason    string            `bson:"reason" json:"reason"`
	ProblemID string            `bson:"problemId,omitempty" json:"problemId,omitempty"`
	Details   map[string]string `bson:"details,omitempty" json:"details,omitempty"`
	FailedAt  time.Time         `bson:"failedAt" json:"failedAt"`
}

// Request drives one item or batch through one pipeline stage.
type Request struct {
	ID              string            `bson:"_id" json:"id"`
	Type            RequestType       `bson:"type" json:"type"`
	Status          RequestStatus     `bson:"status" json:"status"`
	CurrentStep     Step              `bson:"currentStep" json:"currentStep"`
	ItemID          string            `bson:"itemId,omitempty" json:"itemId,omitempty"`
	OrderID         string            `bson:"orderId,omitempty" json:"orderId,omitempty"`
	BatchID         string            `bson:"batchId,omitempty" json:"batchId,omitempty"`
	MaterialID      string            `bson:"materialId,omitempty" json:"materialId,omitempty"`
	BinID           string            `bson:"binId,omitempty" json:"binId,omitempty"`
	ParentRequestID string            `bson:"parentRequestId,omitempty" json:"parentRequestId,omitempty"`
	Metadata        Metadata          `bson:"metadata" json:"metadata"`
	Annotations     map[string]string `bson:"annotations,omitempty" json:"annotations,omitempty"`
	Timeline        []TimelineEntry   `bson:"timeline" json:"timeline"`
	Failure         *Failure          `bson:"failure,omitempty" json:"failure,omitempty"`
	RetryCount      int               `bson:"retryCount" json:"retryCount"`
	CreatedBy       string            `bson:"createdBy" json:"createdBy"`
	Version         int64             `bson:"version" json:"version"`
	CreatedAt       time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time         `bson:"updatedAt" json:"updatedAt"`
	CompletedAt     *time.Time        `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	Events          []DomainEvent     `bson:"-" json:"-"`
}

// NewRequest creates a PENDING request positioned at entry.
func NewRequest(id string, requestType RequestType, entry Step, metadata Metadata, createdBy string, now time.Time) (*Request, error) {
	if !requestType.IsValid() {
		return nil, fmt.Errorf("%w: unknown request type %s", ErrMetadataMismatch, requestType)
	}
	if err := metadata.CheckType(requestType); err != nil {
		return nil, err
	}

	r := &Request{
		ID:          id,
		Type:        requestType,
		Status:      RequestStatusPending,
		CurrentStep: entry,
		Metadata:    metadata,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.Timeline = append(r.Timeline, TimelineEntry{
		Step: StepCreated, Status: RequestStatusPending, OperatorID: createdBy, Timestamp: now,
	})
	r.Events = append(r.Events, &RequestCreatedEvent{
		RequestID: id, Type: string(requestType), CreatedAt: now,
	})
	return r, nil
}

// SetStatus moves the request status through the transition table.
func (r *Request) SetStatus(next RequestStatus, now time.Time) error {
	if r.Status == next {
		return nil
	}
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidRequestTransition, r.Status, next)
	}
	r.Status = next
	r.UpdatedAt = now
	if next == RequestStatusCompleted {
		r.CompletedAt = &now
		r.Events = append(r.Events, &RequestCompletedEvent{
			RequestID: r.ID, Type: string(r.Type), ItemID: r.ItemID, CompletedAt: now,
		})
	}
	return nil
}

// Record appends a timeline entry for step and makes it current.
func (r *Request) Record(step Step, operatorID string, changes map[string]string, now time.Time) {
	r.CurrentStep = step
	r.UpdatedAt = now
	r.Timeline = append(r.Timeline, TimelineEntry{
		Step: step, Status: r.Status, OperatorID: operatorID, Timestamp: now, Changes: changes,
	})
	r.Events = append(r.Events, &RequestStepAdvancedEvent{
		RequestID: r.ID, Type: string(r.Type), Step: string(step), OperatorID: operatorID, AdvancedAt: now,
	})
}

// Fail marks the request FAILED and records why.
func (r *Request) Fail(failure Failure, operatorID string, now time.Time) error {
	if err := r.SetStatus(RequestStatusFailed, now); err != nil {
		return err
	}
	failure.FailedAt = now
	r.Failure = &failure
	r.Timeline = append(r.Timeline, TimelineEntry{
		Step: failure.Step, Status: RequestStatusFailed, OperatorID: operatorID, Timestamp: now,
		Changes: map[string]string{"reason": failure.Reason},
	})
	r.CurrentStep = failure.Step
	r.Events = append(r.Events, &RequestFailedEvent{
		RequestID: r.ID, Type: string(r.Type), Step: string(failure.Step), Reason: failure.Reason, FailedAt: now,
	})
	return nil
}

// Retry reopens a failed request at entry.
func (r *Request) Retry(entry Step, operatorID string, now time.Time) error {
	if r.Status != RequestStatusFailed {
		return fmt.Errorf("%w: request is %s", ErrInvalidRequestTransition, r.Status)
	}
	if !r.Type.Retryable() {
		return fmt.Errorf("%w: %s", ErrRequestNotRetryable, r.Type)
	}
	if r.RetryCount >= MaxRequestRetries {
		return fmt.Errorf("%w: %d of %d", ErrRetryLimitReached, r.RetryCount, MaxRequestRetries)
	}
	if err := r.SetStatus(RequestStatusPending, now); err != nil {
		return err
	}
	r.RetryCount++
	r.Failure = nil
	r.CurrentStep = entry
	r.Timeline = append(r.Timeline, TimelineEntry{
		Step: StepRetried, Status: RequestStatusPending, OperatorID: operatorID, Timestamp: now,
		Changes: map[string]string{"retryCount": fmt.Sprint(r.RetryCount)},
	})
	return nil
}

// Annotate stores an operator note.
func (r *Request) Annotate(key, value string) {
	if r.Annotations == nil {
		r.Annotations = make(map[string]string)
	}
	r.Annotations[key] = value
}

// PullEvents returns and clears pending domain events.
func (r *Request) PullEvents() []DomainEvent {
	events := r.Events
	r.Events = nil
	return events
}

// Clone returns a deep copy without pending events.
func (r *Request) Clone() *Request {
	c := *r
	c.Metadata = r.Metadata.Clone()
	if r.Annotations != nil {
		c.Annotations = make(map[string]string, len(r.Annotations))
		for k, v := range r.Annotations {
			c.Annotations[k] = v
		}
	}
	c.Timeline = make([]TimelineEntry, len(r.Timeline))
	for i, e := range r.Timeline {
		e.Changes = copyStrings(e.Changes)
		c.Timeline[i] = e
	}
	if r.Failure != nil {
		f := *r.Failure
		f.Details = copyStrings(r.Failure.Details)
		c.Failure = &f
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	c.Events = nil
	return &c
}

func copyStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
