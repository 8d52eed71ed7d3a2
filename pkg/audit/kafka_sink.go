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
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
	"go.uber.org/zap"

	"github.com/equitraccion/site/pkg/config"
)

// KafkaSinkConfig configures a KafkaSink.
type KafkaSinkConfig struct {
	// Name is the identifier for this sink instance.
	Name string

	Brokers []string
	Topic   string

	// TLS enables TLS with the system root CAs.
	TLS bool

	// SASLMechanism is one of "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512". Empty disables SASL.
	SASLMechanism string
	SASLUsername  string
	SASLPassword  string

	// BatchTimeout is the maximum time to wait before flushing a batch.
	// Default: 1 second
	BatchTimeout time.Duration

	// WriteTimeout is the timeout for writing messages.
	// Default: 10 seconds
	WriteTimeout time.Duration
}

// KafkaSinkConfigFrom maps the audit section of the site configuration.
func KafkaSinkConfigFrom(cfg config.KafkaAudit) KafkaSinkConfig {
	return KafkaSinkConfig{
		Name:          "kafka",
		Brokers:       cfg.Brokers,
		Topic:         cfg.Topic,
		TLS:           cfg.TLS,
		SASLMechanism: cfg.SASLMechanism,
		SASLUsername:  cfg.SASLUsername,
		SASLPassword:  cfg.SASLPassword,
	}
}

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes audit events to a Kafka topic, keyed by event ID.
type KafkaSink struct {
	name   string
	writer messageWriter
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

// NewKafkaSink creates a new KafkaSink.
func NewKafkaSink(cfg KafkaSinkConfig, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	transport := &kafka.Transport{}
	if cfg.TLS {
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.SASLMechanism != "" {
		mechanism, err := buildSASLMechanism(cfg.SASLMechanism, cfg.SASLUsername, cfg.SASLPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to build SASL mechanism: %w", err)
		}
		transport.SASL = mechanism
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           batchTimeout,
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		Transport:              transport,
		AllowAutoTopicCreation: false,
	}

	logger.Info("Kafka audit sink created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.Bool("tls_enabled", cfg.TLS),
		zap.Bool("sasl_enabled", cfg.SASLMechanism != ""))

	return newKafkaSink(cfg.Name, writer, logger), nil
}

func newKafkaSink(name string, writer messageWriter, logger *zap.Logger) *KafkaSink {
	if name == "" {
		name = "kafka"
	}
	return &KafkaSink{
		name:   name,
		writer: writer,
		logger: logger.Named("kafka-audit"),
	}
}

// classifyKafkaError categorizes Kafka errors for logging.
func classifyKafkaError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "SASL") || strings.Contains(errStr, "authentication"):
		return "auth"
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host"):
		return "network"
	case strings.Contains(errStr, "broker") || strings.Contains(errStr, "leader"):
		return "broker"
	case strings.Contains(errStr, "topic"):
		return "topic"
	default:
		return "other"
	}
}

// eventMessage converts an event into a Kafka message with metadata headers.
func eventMessage(event *Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal audit event: %w", err)
	}
	headers := []kafka.Header{
		{Key: "event-type", Value: []byte(event.Type)},
		{Key: "severity", Value: []byte(event.Severity)},
		{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
	}
	if event.Actor.User != "" {
		headers = append(headers, kafka.Header{Key: "actor", Value: []byte(event.Actor.User)})
	}
	return kafka.Message{
		Key:     []byte(event.ID),
		Value:   value,
		Headers: headers,
	}, nil
}

// Write sends an audit event to Kafka.
func (s *KafkaSink) Write(ctx context.Context, event *Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("kafka sink is closed")
	}
	s.mu.Unlock()

	msg, err := eventMessage(event)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		errorType := classifyKafkaError(err)
		logFields := []zap.Field{
			zap.Error(err),
			zap.String("error_type", errorType),
			zap.Duration("duration", time.Since(start)),
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
		}
		switch errorType {
		case "network", "timeout":
			s.logger.Warn("Kafka sink temporarily unavailable, event dropped", logFields...)
		default:
			s.logger.Error("failed to write audit event to Kafka", logFields...)
		}
		return fmt.Errorf("failed to write to Kafka (%s): %w", errorType, err)
	}
	return nil
}

// Close closes the Kafka writer. Closing twice is a no-op.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("closing Kafka audit sink", zap.String("name", s.name))

	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}

// Name returns the sink identifier.
func (s *KafkaSink) Name() string {
	return s.name
}

func buildSASLMechanism(mechanism, username, password string) (sasl.Mechanism, error) {
	switch mechanism {
	case "PLAIN":
		return plain.Mechanism{Username: username, Password: password}, nil
	case "SCRAM-SHA-256":
		m, err := scram.Mechanism(scram.SHA256, username, password)
		if err != nil {
			return nil, fmt.Errorf("failed to create SCRAM-SHA-256 mechanism: %w", err)
		}
		return m, nil
	case "SCRAM-SHA-512":
		m, err := scram.Mechanism(scram.SHA512, username, password)
		if err != nil {
			return nil, fmt.Errorf("failed to create SCRAM-SHA-512 mechanism: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", mechanism)
	}
}
