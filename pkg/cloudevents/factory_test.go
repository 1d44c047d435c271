package cloudevents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventFactory_CreateEvent(t *testing.T) {
	f := NewEventFactory(SourceProduction)

	e := f.CreateEvent(context.Background(), RequestCompleted, "request/REQ-1", map[string]string{"requestId": "REQ-1"})

	assert.Equal(t, "1.0", e.SpecVersion)
	assert.Equal(t, RequestCompleted, e.Type)
	assert.Equal(t, SourceProduction, e.Source)
	assert.Equal(t, "request/REQ-1", e.Subject)
	assert.NotEmpty(t, e.ID)
	assert.Empty(t, e.TraceParent)
	assert.False(t, e.Time.IsZero())

	other := f.CreateEvent(context.Background(), RequestCompleted, "request/REQ-1", nil)
	assert.NotEqual(t, e.ID, other.ID)
}
