// Package ingest bridges sensor transports into the classification core.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/model"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/risk"
)

// ReadingHandler is the core entry point the subscriber feeds. The result is
// discarded here; side effects already happened inside the core.
type ReadingHandler interface {
	ProcessReading(ctx context.Context, reading model.GasReading) (model.Result, error)
}

// sensorMessage is the wire format sensors publish on zones/<zoneId>/readings.
type sensorMessage struct {
	ZoneID     string             `json:"zoneId"`
	Gases      map[string]float64 `json:"gases"`
	ObservedAt time.Time          `json:"observedAt"`
}

// MQTTSubscriber consumes sensor readings from the broker and hands each one
// to the core. Bad payloads are logged and dropped, never retried.
type MQTTSubscriber struct {
	lg      *slog.Logger
	client  mqtt.Client
	topic   string
	handler ReadingHandler
	timeout time.Duration
}

// NewMQTTSubscriber connects to the broker and subscribes. The topic filter
// normally carries a zone wildcard, zones/+/readings; a zoneId in the payload
// wins over the topic segment when both are present.
func NewMQTTSubscriber(brokerAddr, clientID, topic string, handler ReadingHandler, lg *slog.Logger) (*MQTTSubscriber, error) {
	s := &MQTTSubscriber{
		lg:      lg,
		topic:   topic,
		handler: handler,
		timeout: 5 * time.Second,
	}
	opts := mqtt.NewClientOptions().
		AddBroker(brokerAddr).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			if token := c.Subscribe(topic, 0, s.onMessage); token.Wait() && token.Error() != nil {
				lg.Error("mqtt subscribe failed", "topic", topic, "error", token.Error())
				return
			}
			lg.Info("mqtt subscribed", "topic", topic)
		})
	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return s, nil
}

func (s *MQTTSubscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	reading, err := DecodeReading(msg.Topic(), msg.Payload())
	if err != nil {
		s.lg.Warn("dropping malformed sensor message", "topic", msg.Topic(), "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.handler.ProcessReading(ctx, reading); err != nil {
		if errors.Is(err, risk.ErrInvalidInput) {
			s.lg.Warn("dropping invalid sensor reading", "zone", reading.ZoneID, "error", err)
			return
		}
		s.lg.Error("sensor reading processing failed", "zone", reading.ZoneID, "error", err)
	}
}

// Stop unsubscribes and disconnects.
func (s *MQTTSubscriber) Stop() {
	if token := s.client.Unsubscribe(s.topic); token.Wait() && token.Error() != nil {
		s.lg.Warn("mqtt unsubscribe failed", "error", token.Error())
	}
	s.client.Disconnect(250)
}

// DecodeReading parses one sensor payload, falling back to the topic's zone
// segment when the payload omits zoneId.
func DecodeReading(topic string, payload []byte) (model.GasReading, error) {
	var msg sensorMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return model.GasReading{}, err
	}
	if msg.ZoneID == "" {
		msg.ZoneID = zoneFromTopic(topic)
	}
	return model.GasReading{ZoneID: msg.ZoneID, Gases: msg.Gases, ObservedAt: msg.ObservedAt}, nil
}

// zoneFromTopic extracts the zone segment of zones/<zoneId>/readings.
func zoneFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 && parts[0] == "zones" {
		return parts[1]
	}
	return ""
}
