package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/breaker"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/model"
)

// kafkaMessageWriter abstracts *kafka.Writer so sinks can be exercised in
// tests without a broker.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func newWriter(brokers []string) *kafka.Writer {
	// Topic is set per message; one writer serves all zone topics.
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// KafkaAuditSink writes audit transactions to the per-zone ledger topic.
type KafkaAuditSink struct {
	writer      kafkaMessageWriter
	topicPrefix string
	brk         *breaker.Breaker
	lg          *slog.Logger
}

// NewKafkaAuditSink wires the audit ledger writer.
func NewKafkaAuditSink(brokers []string, topicPrefix string, lg *slog.Logger) *KafkaAuditSink {
	return &KafkaAuditSink{
		writer:      newWriter(brokers),
		topicPrefix: topicPrefix,
		brk:         breaker.New("audit-writer", breaker.DefaultConfig(), lg),
		lg:          lg,
	}
}

// EmitAuditEvent publishes one transaction, keyed by zone.
func (s *KafkaAuditSink) EmitAuditEvent(ctx context.Context, ev model.AuditEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit %s: %w", ev.TxID, err)
	}
	msg := kafka.Message{
		Topic: s.topicPrefix + ev.ZoneID,
		Key:   []byte(ev.ZoneID),
		Value: b,
		Time:  time.Now(),
	}
	return s.brk.Execute(ctx, func(ctx context.Context) error {
		if err := s.writer.WriteMessages(ctx, msg); err != nil {
			return fmt.Errorf("audit write %s: %w", ev.ZoneID, err)
		}
		return nil
	})
}

// Close releases the underlying writer.
func (s *KafkaAuditSink) Close() error { return s.writer.Close() }

// KafkaVentilationPublisher drives the ventilation actuators over the
// per-zone command topic, same schema family as the other zone commands.
type KafkaVentilationPublisher struct {
	writer      kafkaMessageWriter
	topicPrefix string
	brk         *breaker.Breaker
	lg          *slog.Logger
}

// NewKafkaVentilationPublisher wires the actuator command writer.
func NewKafkaVentilationPublisher(brokers []string, topicPrefix string, lg *slog.Logger) *KafkaVentilationPublisher {
	return &KafkaVentilationPublisher{
		writer:      newWriter(brokers),
		topicPrefix: topicPrefix,
		brk:         breaker.New("ventilation-writer", breaker.DefaultConfig(), lg),
		lg:          lg,
	}
}

// SetVentilationMode publishes the mode command for the zone.
func (p *KafkaVentilationPublisher) SetVentilationMode(ctx context.Context, cmd model.VentilationCommand) error {
	b, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal vent command %s: %w", cmd.ZoneID, err)
	}
	msg := kafka.Message{
		Topic: p.topicPrefix + cmd.ZoneID,
		Key:   []byte(cmd.ZoneID),
		Value: b,
		Time:  time.Now(),
	}
	return p.brk.Execute(ctx, func(ctx context.Context) error {
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			return fmt.Errorf("vent write %s: %w", cmd.ZoneID, err)
		}
		return nil
	})
}

// Close releases the underlying writer.
func (p *KafkaVentilationPublisher) Close() error { return p.writer.Close() }
