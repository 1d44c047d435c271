package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(t *testing.T, requestType RequestType) *Request {
	t.Helper()
	r, err := NewRequest("REQ-001", requestType, StepNone, NewMetadata(requestType), "op-1", time.Now())
	require.NoError(t, err)
	return r
}

func TestNewRequest(t *testing.T) {
	r := newTestRequest(t, RequestTypeMove)

	assert.Equal(t, RequestStatusPending, r.Status)
	require.Len(t, r.Timeline, 1)
	assert.Equal(t, StepCreated, r.Timeline[0].Step)
	require.Len(t, r.PullEvents(), 1)
	assert.Empty(t, r.Events)
}

func TestNewRequest_RejectsMismatchedMetadata(t *testing.T) {
	_, err := NewRequest("REQ-001", RequestTypeMove, StepNone, NewMetadata(RequestTypeQC), "op-1", time.Now())
	assert.ErrorIs(t, err, ErrMetadataMismatch)

	_, err = NewRequest("REQ-001", RequestTypeMove, StepNone, Metadata{}, "op-1", time.Now())
	assert.ErrorIs(t, err, ErrMetadataMismatch)

	_, err = NewRequest("REQ-001", RequestType("SEW"), StepNone, Metadata{}, "op-1", time.Now())
	assert.Error(t, err)
}

func TestRequest_StatusTable(t *testing.T) {
	tests := []struct {
		from, to RequestStatus
		allowed  bool
	}{
		{RequestStatusPending, RequestStatusInProgress, true},
		{RequestStatusInProgress, RequestStatusCompleted, true},
		{RequestStatusInProgress, RequestStatusFailed, true},
		{RequestStatusFailed, RequestStatusPending, true},
		{RequestStatusCompleted, RequestStatusInProgress, false},
		{RequestStatusCompleted, RequestStatusFailed, false},
		{RequestStatusFailed, RequestStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestRequest_RecordAndComplete(t *testing.T) {
	r := newTestRequest(t, RequestTypeMove)
	now := time.Now()

	require.NoError(t, r.SetStatus(RequestStatusInProgress, now))
	r.Record(StepItemScan, "op-1", map[string]string{"itemId": "ITEM-1"}, now)
	require.NoError(t, r.SetStatus(RequestStatusCompleted, now))

	assert.Equal(t, StepItemScan, r.CurrentStep)
	assert.Len(t, r.Timeline, 2)
	assert.NotNil(t, r.CompletedAt)
	assert.ErrorIs(t, r.SetStatus(RequestStatusInProgress, now), ErrInvalidRequestTransition)
}

func TestRequest_FailAndRetry(t *testing.T) {
	r := newTestRequest(t, RequestTypeWash)
	now := time.Now()

	for i := 0; i < MaxRequestRetries; i++ {
		require.NoError(t, r.Fail(Failure{Step: StepFailed, Reason: "laundry rejected"}, "op-1", now))
		assert.Equal(t, RequestStatusFailed, r.Status)
		require.NoError(t, r.Retry(StepAssignBin, "op-1", now))
		assert.Equal(t, RequestStatusPending, r.Status)
		assert.Nil(t, r.Failure)
	}

	require.NoError(t, r.Fail(Failure{Step: StepFailed, Reason: "again"}, "op-1", now))
	assert.ErrorIs(t, r.Retry(StepAssignBin, "op-1", now), ErrRetryLimitReached)
}

func TestRequest_RetryNotAllowedForQC(t *testing.T) {
	r := newTestRequest(t, RequestTypeQC)
	require.NoError(t, r.Fail(Failure{Step: StepDefectDetected, Reason: "out of tolerance"}, "op-1", time.Now()))

	assert.ErrorIs(t, r.Retry(StepMeasurementsRequired, "op-1", time.Now()), ErrRequestNotRetryable)
}

func TestRequest_CloneIsDeep(t *testing.T) {
	r := newTestRequest(t, RequestTypeFinishing)
	r.Metadata.Finishing.RequiredOps = []Step{StepButton}
	r.Annotate("note", "rush")

	c := r.Clone()
	c.Metadata.Finishing.RequiredOps[0] = StepHem
	c.Annotations["note"] = "changed"
	c.Timeline[0].Step = StepFailed

	assert.Equal(t, StepButton, r.Metadata.Finishing.RequiredOps[0])
	assert.Equal(t, "rush", r.Annotations["note"])
	assert.Equal(t, StepCreated, r.Timeline[0].Step)
}

func TestFinishingMetadata_Pending(t *testing.T) {
	f := &FinishingMetadata{
		RequiredOps:  []Step{StepButton, StepNametag, StepHem, StepFinalQC},
		CompletedOps: []Step{StepButton},
	}

	assert.True(t, f.IsRequired(StepHem))
	assert.True(t, f.IsDone(StepButton))
	assert.Equal(t, []Step{StepNametag, StepHem}, f.Pending(StepFinalQC))
}
