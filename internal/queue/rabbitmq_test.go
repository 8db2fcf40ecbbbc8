package queue

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAck struct {
	acked   bool
	nacked  bool
	requeue bool
	err     error
}

func (a *recordingAck) Ack(multiple bool) error {
	a.acked = true
	return a.err
}

func (a *recordingAck) Nack(multiple, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return a.err
}

func TestEncodeDecodeRequest(t *testing.T) {
	body, err := encodeRequest(RefreshRequest{UserID: "7"})
	require.NoError(t, err)

	req, err := decodeRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "7", req.UserID)
	assert.WithinDuration(t, time.Now(), req.RequestedAt, time.Minute)
}

func TestProcess(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		handlerErr   error
		expectCalled bool
		expectAck    bool
		expectNack   bool
		expectedUser string
	}{
		{
			name:         "handled",
			body:         `{"user_id":"7","requested_at":"2024-01-01T00:00:00Z"}`,
			expectCalled: true,
			expectAck:    true,
			expectedUser: "7",
		},
		{
			name:         "refresh everything",
			body:         `{"requested_at":"2024-01-01T00:00:00Z"}`,
			expectCalled: true,
			expectAck:    true,
		},
		{
			name:       "malformed body",
			body:       `not json`,
			expectNack: true,
		},
		{
			name:         "handler fails",
			body:         `{"user_id":"7"}`,
			handlerErr:   errors.New("backend down"),
			expectCalled: true,
			expectNack:   true,
			expectedUser: "7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &recordingAck{}
			called := false
			var got RefreshRequest

			process(context.Background(), []byte(tt.body), ack, func(ctx context.Context, req RefreshRequest) error {
				called = true
				got = req
				return tt.handlerErr
			})

			assert.Equal(t, tt.expectCalled, called)
			assert.Equal(t, tt.expectAck, ack.acked)
			assert.Equal(t, tt.expectNack, ack.nacked)
			assert.False(t, ack.requeue)
			assert.Equal(t, tt.expectedUser, got.UserID)
		})
	}
}

func TestProcess_LogsAcknowledgementErrors(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })

	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{name: "ack fails", body: `{"user_id":"7"}`, expected: "Error acknowledging refresh request: channel closed"},
		{name: "nack fails", body: `not json`, expected: "Error rejecting refresh request: channel closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			ack := &recordingAck{err: errors.New("channel closed")}

			process(context.Background(), []byte(tt.body), ack, func(ctx context.Context, req RefreshRequest) error {
				return nil
			})

			assert.Contains(t, buf.String(), tt.expected)
		})
	}
}
