/*
Copyright 2024.

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
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/equitraccion/site/pkg/config"
	"github.com/equitraccion/site/pkg/metrics"
)

// Auditor is what request handlers depend on.
type Auditor interface {
	Emit(ctx context.Context, event *Event)
}

// Manager fans audit events out to its sinks from a background worker.
// Emit never blocks the caller; events are dropped when the queue is full.
// A nil *Manager discards every event.
type Manager struct {
	sinks  []Sink
	queue  chan *Event
	logger *zap.Logger
	config ManagerConfig
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// ManagerConfig configures the audit Manager.
type ManagerConfig struct {
	// QueueSize is the size of the async event queue.
	// Default: 1000
	QueueSize int

	// WriteTimeout bounds every sink write.
	// Default: 5s
	WriteTimeout time.Duration

	// Now stamps events without a timestamp. Defaults to time.Now.
	Now func() time.Time
}

// NewManager creates a Manager and starts its worker.
func NewManager(sinks []Sink, cfg ManagerConfig, logger *zap.Logger) *Manager {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{
		sinks:  sinks,
		queue:  make(chan *Event, cfg.QueueSize),
		logger: logger.Named("audit-manager"),
		config: cfg,
	}
	m.wg.Add(1)
	go m.processQueue()

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	m.logger.Info("audit manager started",
		zap.Int("queue_size", cfg.QueueSize),
		zap.Strings("sinks", names))
	return m
}

// NewFromConfig builds the log sink and, when enabled, the Kafka sink.
func NewFromConfig(cfg config.Audit, logger *zap.Logger) (*Manager, error) {
	sinks := []Sink{NewLogSink(logger)}
	if cfg.Kafka.Enabled {
		kafkaSink, err := NewKafkaSink(KafkaSinkConfigFrom(cfg.Kafka), logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, kafkaSink)
	}
	return NewManager(sinks, ManagerConfig{}, logger), nil
}

// Emit stamps the event and queues it.
func (m *Manager) Emit(_ context.Context, event *Event) {
	if m == nil || event == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = m.config.Now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityForEventType(event.Type)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- event:
	default:
		metrics.AuditEventsFailed.WithLabelValues("queue").Inc()
		m.logger.Warn("audit queue full, dropping event",
			zap.String("event_type", string(event.Type)))
	}
}

func (m *Manager) processQueue() {
	defer m.wg.Done()
	for event := range m.queue {
		m.write(event)
	}
}

// write delivers one event to every sink. A failing sink never stops the others.
func (m *Manager) write(event *Event) {
	for _, sink := range m.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.WriteTimeout)
		err := sink.Write(ctx, event)
		cancel()
		if err != nil {
			metrics.AuditEventsFailed.WithLabelValues(sink.Name()).Inc()
			m.logger.Warn("audit sink write failed",
				zap.String("sink", sink.Name()),
				zap.String("event_id", event.ID),
				zap.String("error", err.Error()))
			continue
		}
		metrics.AuditEventsWritten.WithLabelValues(sink.Name()).Inc()
	}
}

// Close stops accepting events, flushes the queue and closes the sinks.
// Events still queued when ctx ends are lost.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("audit queue not drained before shutdown deadline", zap.Int("pending", len(m.queue)))
		errs = append(errs, ctx.Err())
	}

	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
