/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/equitraccion/site/pkg/config"
)

// recordingSink collects events and can be told to fail or block.
type recordingSink struct {
	name   string
	mu     sync.Mutex
	events []*Event
	err    error
	block  chan struct{}
	closed bool
}

func (s *recordingSink) Write(_ context.Context, event *Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Events() []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Event(nil), s.events...)
}

func TestSeverityForEventType(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      Severity
	}{
		{EventLoginSucceeded, SeverityInfo},
		{EventLoginFailed, SeverityWarning},
		{EventRateLimited, SeverityWarning},
		{EventHoneypotTriggered, SeverityWarning},
		{EventNewsletterForbidden, SeverityCritical},
		{EventSubscribed, SeverityInfo},
	}
	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			assert.Equal(t, tt.want, SeverityForEventType(tt.eventType))
		})
	}
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	err := sink.Write(context.Background(), &Event{
		ID:       "e1",
		Type:     EventLoginFailed,
		Severity: SeverityWarning,
		Actor:    Actor{User: "admin@example.org", SourceIP: "1.2.3.4"},
		Target:   Target{Kind: "session"},
		Details:  map[string]interface{}{"reason": "bad password"},
	})
	require.NoError(t, err)
	assert.Equal(t, "log", sink.Name())
	assert.NoError(t, sink.Close())

	entries := logs.FilterMessage("audit_event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "auth.login.failed", fields["event_type"])
	assert.Equal(t, "admin@example.org", fields["actor_user"])
	assert.Equal(t, "1.2.3.4", fields["actor_ip"])
	assert.Equal(t, `{"reason":"bad password"}`, fields["details"])
}

func TestManagerEmit(t *testing.T) {
	first := &recordingSink{name: "first"}
	failing := &recordingSink{name: "failing", err: errors.New("unavailable")}
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	m := NewManager([]Sink{failing, first}, ManagerConfig{Now: func() time.Time { return fixed }}, zaptest.NewLogger(t))

	m.Emit(context.Background(), &Event{Type: EventRateLimited, Actor: Actor{SourceIP: "1.2.3.4"}})
	require.NoError(t, m.Close(context.Background()))

	events := first.Events()
	require.Len(t, events, 1, "a failing sink does not stop the others")
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, SeverityWarning, events[0].Severity)
	assert.Equal(t, fixed.UTC(), events[0].Timestamp)
	assert.True(t, first.closed)
	assert.True(t, failing.closed)
}

func TestManagerKeepsExplicitFields(t *testing.T) {
	sink := &recordingSink{name: "s"}
	m := NewManager([]Sink{sink}, ManagerConfig{}, zaptest.NewLogger(t))

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.Emit(context.Background(), &Event{ID: "fixed", Type: EventSubscribed, Severity: SeverityCritical, Timestamp: ts})
	require.NoError(t, m.Close(context.Background()))

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "fixed", events[0].ID)
	assert.Equal(t, SeverityCritical, events[0].Severity)
	assert.Equal(t, ts, events[0].Timestamp)
}

func TestManagerDropsWhenQueueIsFull(t *testing.T) {
	block := make(chan struct{})
	sink := &recordingSink{name: "slow", block: block}
	m := NewManager([]Sink{sink}, ManagerConfig{QueueSize: 1}, zap.NewNop())

	// the worker takes the first event and blocks, the second fills the queue
	for i := 0; i < 10; i++ {
		m.Emit(context.Background(), &Event{Type: EventSubscribed})
	}
	close(block)
	require.NoError(t, m.Close(context.Background()))

	n := len(sink.Events())
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, 2)
}

func TestManagerCloseDeadline(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	sink := &recordingSink{name: "stuck", block: block}
	m := NewManager([]Sink{sink}, ManagerConfig{}, zap.NewNop())
	m.Emit(context.Background(), &Event{Type: EventSubscribed})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManagerAfterClose(t *testing.T) {
	sink := &recordingSink{name: "s"}
	m := NewManager([]Sink{sink}, ManagerConfig{}, zap.NewNop())
	require.NoError(t, m.Close(context.Background()))
	require.NoError(t, m.Close(context.Background()), "closing twice is a no-op")

	assert.NotPanics(t, func() { m.Emit(context.Background(), &Event{Type: EventLogout}) })
	assert.Empty(t, sink.Events())
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() { m.Emit(context.Background(), &Event{Type: EventLogout}) })
	assert.NoError(t, m.Close(context.Background()))
}

func TestNewFromConfig(t *testing.T) {
	m, err := NewFromConfig(config.Audit{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, m.sinks, 1)
	assert.Equal(t, "log", m.sinks[0].Name())
	require.NoError(t, m.Close(context.Background()))

	_, err = NewFromConfig(config.Audit{Kafka: config.KafkaAudit{Enabled: true}}, zaptest.NewLogger(t))
	assert.Error(t, err, "kafka without brokers is rejected")
}
