package sinks

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/model"
)

const broadcastQueueSize = 256

// BroadcastEvent is the full classification plus raw reading pushed to
// real-time consumers.
type BroadcastEvent struct {
	Reading model.GasReading `json:"reading"`
	Result  model.Result     `json:"result"`
}

// KafkaBroadcast publishes classification events to a single topic on a
// best-effort basis. Publish never blocks the reading pipeline: events are
// queued and dropped on overflow, and writer failures are only logged.
type KafkaBroadcast struct {
	writer   kafkaMessageWriter
	topic    string
	lg       *slog.Logger
	queue    chan BroadcastEvent
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	dropped  int64
	mu       sync.Mutex
}

// NewKafkaBroadcast wires the broadcast writer and starts its worker.
func NewKafkaBroadcast(brokers []string, topic string, lg *slog.Logger) *KafkaBroadcast {
	b := &KafkaBroadcast{
		writer: newWriter(brokers),
		topic:  topic,
		lg:     lg,
		queue:  make(chan BroadcastEvent, broadcastQueueSize),
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(1)
	go b.run(ctx)
	return b
}

// Publish queues the event, dropping it if the queue is full.
func (b *KafkaBroadcast) Publish(ev BroadcastEvent) {
	select {
	case b.queue <- ev:
	default:
		b.mu.Lock()
		b.dropped++
		n := b.dropped
		b.mu.Unlock()
		if n%100 == 1 {
			b.lg.Warn("broadcast queue full, dropping", "dropped_total", n)
		}
	}
}

func (b *KafkaBroadcast) run(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.queue:
			payload, err := json.Marshal(ev)
			if err != nil {
				b.lg.Warn("broadcast marshal failed", "zone", ev.Reading.ZoneID, "error", err)
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err = b.writer.WriteMessages(wctx, kafka.Message{
				Topic: b.topic,
				Key:   []byte(ev.Reading.ZoneID),
				Value: payload,
				Time:  time.Now(),
			})
			cancel()
			if err != nil {
				// Best effort only; core correctness is unaffected.
				b.lg.Warn("broadcast write failed", "zone", ev.Reading.ZoneID, "error", err)
			}
		}
	}
}

// Close stops the worker and releases the writer.
func (b *KafkaBroadcast) Close() error {
	var err error
	b.stopOnce.Do(func() {
		b.cancel()
		b.wg.Wait()
		err = b.writer.Close()
	})
	return err
}
