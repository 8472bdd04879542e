// Package sinks implements the outbound collaborator clients: the Redis
// alert store, the Kafka audit ledger and ventilation command publishers,
// and the best-effort broadcast feed. Each client owns its transport
// details; retry policy, if any, belongs here and not in the core.
package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/model"
)

const (
	alertKeyPrefix  = "gasguard:alert:"
	recentAlertsKey = "gasguard:alerts:recent"
	recentAlertsCap = 100
	alertTTL        = 24 * time.Hour
)

// RedisAlertSink persists alert records in Redis: one keyed document per
// alert plus a capped recent-alerts list for the dashboard API.
type RedisAlertSink struct {
	client *redis.Client
	lg     *slog.Logger
}

// NewRedisAlertSink connects and pings the Redis backend.
func NewRedisAlertSink(addr, password string, lg *slog.Logger) (*RedisAlertSink, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	lg.Info("alert store connected", "addr", addr)
	return &RedisAlertSink{client: client, lg: lg}, nil
}

// CreateAlert stores the alert document and pushes it onto the recent list.
func (s *RedisAlertSink) CreateAlert(ctx context.Context, a model.Alert) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert %s: %w", a.AlertID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, alertKeyPrefix+a.AlertID, b, alertTTL)
	pipe.LPush(ctx, recentAlertsKey, b)
	pipe.LTrim(ctx, recentAlertsKey, 0, recentAlertsCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store alert %s: %w", a.AlertID, err)
	}
	return nil
}

// RecentAlerts returns up to n most recent alerts, newest first.
func (s *RedisAlertSink) RecentAlerts(ctx context.Context, n int) ([]model.Alert, error) {
	if n <= 0 || n > recentAlertsCap {
		n = recentAlertsCap
	}
	raw, err := s.client.LRange(ctx, recentAlertsKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("recent alerts: %w", err)
	}
	out := make([]model.Alert, 0, len(raw))
	for _, r := range raw {
		var a model.Alert
		if err := json.Unmarshal([]byte(r), &a); err != nil {
			s.lg.Warn("bad alert document in recent list", "error", err)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Close releases the Redis connection.
func (s *RedisAlertSink) Close() error { return s.client.Close() }
