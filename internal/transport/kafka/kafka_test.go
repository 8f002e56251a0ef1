package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/print-queue-service/internal/lib/logger"
	"github.com/asquebay/print-queue-service/internal/model"
)

type fakeCreator struct {
	events []model.PrintJobEvent
	err    error
}

func (f *fakeCreator) CreatePrintjobNotification(_ context.Context, e model.PrintJobEvent) (model.Notification, error) {
	if f.err != nil {
		return model.Notification{}, f.err
	}
	f.events = append(f.events, e)
	return model.Notification{ID: "n-1", PrintJobID: e.PrintJobID}, nil
}

func completedEvent() model.PrintJobEvent {
	return model.PrintJobEvent{
		Type:        model.EventPrintJobCompleted,
		PrintJobID:  "job-1",
		ReceiverIDs: []string{"user-1"},
		Message:     "Your document a.pdf is printed by printer at H6",
		OccurredAt:  time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEncodeEvent(t *testing.T) {
	msg, err := encodeEvent(completedEvent())
	require.NoError(t, err)

	assert.Equal(t, "user-1", string(msg.Key))

	var decoded model.PrintJobEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, completedEvent(), decoded)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &raw))
	assert.Equal(t, "printjob.completed", raw["type"])
	assert.Equal(t, "job-1", raw["printjob_id"])
}

func TestEncodeEvent_RejectsInvalid(t *testing.T) {
	e := completedEvent()
	e.ReceiverIDs = nil

	_, err := encodeEvent(e)
	require.Error(t, err)
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(nil, "printjob.events")
	require.Error(t, err)
}

func TestConsumer_HandleMessage(t *testing.T) {
	payload, err := json.Marshal(completedEvent())
	require.NoError(t, err)

	tests := []struct {
		name       string
		value      []byte
		serviceErr error
		wantErr    bool
		wantEvents int
	}{
		{name: "valid event is delivered", value: payload, wantEvents: 1},
		{name: "broken json is skipped", value: []byte("{not json")},
		{name: "invalid event is skipped", value: []byte(`{"type":"printjob.completed"}`)},
		{name: "missing printjob is skipped", value: payload, serviceErr: model.NotFoundf("printjob not found")},
		{name: "storage failure is retried", value: payload, serviceErr: errors.New("db is down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeCreator{err: tt.serviceErr}
			c := &Consumer{service: svc, log: logger.Discard()}

			err := c.handleMessage(context.Background(), kafka.Message{Value: tt.value})
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, svc.events, tt.wantEvents)
		})
	}
}
