// Package config loads settings from the environment plus a .properties
// file. Environment variables cover deployment wiring (brokers, bind
// addresses, backends); the properties file covers the operational tuning
// that operators adjust at runtime (zones, threshold boundaries, anomaly
// bands) and can be reloaded without a restart.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/anomaly"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/risk"
)

type AppConfig struct {
	HTTPBind         string
	KafkaBrokers     []string
	MQTTBroker       string
	MQTTTopic        string
	MQTTClientID     string
	RedisAddr        string
	RedisPassword    string
	PredictorURL     string
	PredictorTimeout int // ms
	EmitTimeout      int // ms
	AuditTopicPref   string
	VentTopicPref    string
	BroadcastTopic   string
	PropertiesPath   string
	ScalerPath       string
	LogFile          string

	mu         sync.RWMutex
	zones      []string
	boundaries map[string][]float64
	bands      anomaly.Bands
}

// LoadEnvAndFiles reads the environment, then layers the properties file on
// top. KAFKA_BROKERS is the only hard requirement.
func LoadEnvAndFiles() (*AppConfig, error) {
	c := &AppConfig{
		HTTPBind:         getenv("HTTP_BIND", ":8080"),
		KafkaBrokers:     split(getenv("KAFKA_BROKERS", ""), ","),
		MQTTBroker:       getenv("MQTT_BROKER", ""),
		MQTTTopic:        getenv("MQTT_TOPIC", "zones/+/readings"),
		MQTTClientID:     getenv("MQTT_CLIENT_ID", "gasguard-core"),
		RedisAddr:        getenv("REDIS_ADDR", ""),
		RedisPassword:    getenv("REDIS_PASSWORD", ""),
		PredictorURL:     getenv("PREDICTOR_URL", ""),
		PredictorTimeout: geti("PREDICTOR_TIMEOUT_MS", 800),
		EmitTimeout:      geti("EMIT_TIMEOUT_MS", 3000),
		AuditTopicPref:   getenv("AUDIT_TOPIC_PREFIX", "gasguard.audit."),
		VentTopicPref:    getenv("VENT_TOPIC_PREFIX", "zone.commands."),
		BroadcastTopic:   getenv("BROADCAST_TOPIC", "gasguard.classifications"),
		PropertiesPath:   getenv("PROPERTIES_PATH", "./configs/gasguard.properties"),
		ScalerPath:       getenv("SCALER_PATH", ""),
		LogFile:          getenv("LOG_FILE", ""),
	}
	if len(c.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS required")
	}
	if err := c.loadProperties(c.PropertiesPath); err != nil {
		return nil, err
	}
	return c, nil
}

// ReloadProperties re-reads the properties file in place. On parse failure
// the previously loaded values stay active.
func (c *AppConfig) ReloadProperties() error { return c.loadProperties(c.PropertiesPath) }

func (c *AppConfig) loadProperties(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var zones []string
	boundaries := map[string][]float64{}
	bands := anomaly.DefaultBands

	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		switch {
		case k == "zones":
			zones = split(v, ",")
		case k == "anomaly.bands":
			fs, err := floats(v)
			if err != nil {
				return fmt.Errorf("anomaly.bands: %w", err)
			}
			if len(fs) != len(bands) {
				return fmt.Errorf("anomaly.bands: want %d boundaries, got %d", len(bands), len(fs))
			}
			copy(bands[:], fs)
			if err := bands.Validate(); err != nil {
				return fmt.Errorf("anomaly.bands: %w", err)
			}
		case strings.HasPrefix(k, "thresholds."):
			gas := strings.TrimPrefix(k, "thresholds.")
			fs, err := floats(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			if len(fs) != 5 {
				return fmt.Errorf("%s: want 5 boundaries, got %d", k, len(fs))
			}
			boundaries[gas] = fs
		}
	}
	if err := s.Err(); err != nil {
		return err
	}
	if len(zones) == 0 {
		return errors.New("zones must be set in properties")
	}
	// Validate threshold overrides before swapping anything in.
	if _, err := risk.NewClassifier(mergedBands(boundaries)); err != nil {
		return err
	}

	c.mu.Lock()
	c.zones = zones
	c.boundaries = boundaries
	c.bands = bands
	c.mu.Unlock()
	return nil
}

// Zones returns the monitored zone ids from the last successful load.
func (c *AppConfig) Zones() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.zones...)
}

// ThresholdBands returns the effective band tables: the defaults with any
// per-gas boundary overrides from the properties file applied.
func (c *AppConfig) ThresholdBands() map[string][]risk.Band {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return mergedBands(c.boundaries)
}

// AnomalyBands returns the effective prediction-error boundaries.
func (c *AppConfig) AnomalyBands() anomaly.Bands {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bands
}

func mergedBands(overrides map[string][]float64) map[string][]risk.Band {
	out := make(map[string][]risk.Band, len(risk.DefaultBands))
	for gas, bands := range risk.DefaultBands {
		out[gas] = bands
	}
	for gas, b := range overrides {
		out[gas] = risk.BandsFromBoundaries(b[0], b[1], b[2], b[3], b[4])
	}
	return out
}

func floats(csv string) ([]float64, error) {
	parts := split(csv, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", p, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func geti(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

func split(s, sep string) []string {
	if s == "" {
		return nil
	}
	p := strings.Split(s, sep)
	out := make([]string, 0, len(p))
	for _, x := range p {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}
