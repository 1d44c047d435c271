package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wms-platform/production-service/pkg/cloudevents"
)

func headers(t *testing.T, event *cloudevents.Event) map[string]string {
	t.Helper()
	msg, err := Message(event)
	require.NoError(t, err)

	h := make(map[string]string)
	for _, header := range msg.Headers {
		h[header.Key] = string(header.Value)
	}
	return h
}

func TestMessage_BinaryModeHeaders(t *testing.T) {
	event := cloudevents.NewEventFactory(cloudevents.SourceProduction).
		CreateEvent(context.Background(), cloudevents.RequestFailed, "request/REQ-1", map[string]string{"reason": "defect"})
	event.RequestID = "REQ-1"

	msg, err := Message(event)
	require.NoError(t, err)
	assert.Equal(t, "request/REQ-1", string(msg.Key))

	var decoded cloudevents.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)

	h := headers(t, event)
	assert.Equal(t, "1.0", h["ce-specversion"])
	assert.Equal(t, cloudevents.RequestFailed, h["ce-type"])
	assert.Equal(t, "REQ-1", h["ce-requestid"])
	assert.NotContains(t, h, "ce-orderid")
	assert.NotContains(t, h, "ce-traceparent")
}
