package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/anomaly"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/config"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/core"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/decision"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/httpapi"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/ingest"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/logging"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/risk"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/sinks"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/zonestate"
)

func main() {
	lg, lf := logging.Init("gasguard")
	defer func(lf *os.File) {
		err := lf.Close()
		if err != nil {
			lg.Error("log file close", "error", err)
		}
	}(lf)
	lg.Info("gasguard core starting")

	cfg, err := config.LoadEnvAndFiles()
	if err != nil {
		lg.Error("config", "error", err)
		os.Exit(1)
	}
	lg.Info("config loaded", "zones", cfg.Zones(), "brokers", cfg.KafkaBrokers)

	classifier, err := risk.NewClassifier(cfg.ThresholdBands())
	if err != nil {
		lg.Error("thresholds", "error", err)
		os.Exit(1)
	}

	scaler := anomaly.DefaultScaler()
	if cfg.ScalerPath != "" {
		scaler, err = anomaly.LoadScaler(cfg.ScalerPath)
		if err != nil {
			lg.Error("scaler", "path", cfg.ScalerPath, "error", err)
			os.Exit(1)
		}
	}

	var predictor anomaly.Predictor = anomaly.NewEWMAPredictor(0.3)
	if cfg.PredictorURL != "" {
		predictor = anomaly.NewHTTPPredictor(cfg.PredictorURL, time.Duration(cfg.PredictorTimeout)*time.Millisecond)
		lg.Info("using remote predictor", "url", cfg.PredictorURL)
	} else {
		lg.Warn("no predictor configured, using in-process EWMA fallback")
	}

	var alerts decision.AlertSink
	var alertsReader httpapi.AlertsReader
	if cfg.RedisAddr != "" {
		redisSink, err := sinks.NewRedisAlertSink(cfg.RedisAddr, cfg.RedisPassword, lg)
		if err != nil {
			lg.Error("alert store", "error", err)
			os.Exit(1)
		}
		defer redisSink.Close()
		alerts = redisSink
		alertsReader = redisSink
	} else {
		lg.Warn("no alert store configured, alerts go to the log only")
		alerts = sinks.NewLogAlertSink(lg)
	}

	audits := sinks.NewKafkaAuditSink(cfg.KafkaBrokers, cfg.AuditTopicPref, lg)
	defer audits.Close()
	vents := sinks.NewKafkaVentilationPublisher(cfg.KafkaBrokers, cfg.VentTopicPref, lg)
	defer vents.Close()
	broadcast := sinks.NewKafkaBroadcast(cfg.KafkaBrokers, cfg.BroadcastTopic, lg)
	defer broadcast.Close()

	store := zonestate.NewStore(zonestate.DefaultHistoryCap, zonestate.DefaultWindowLen)
	engine := decision.NewEngine(alerts, vents, audits, time.Duration(cfg.EmitTimeout)*time.Millisecond, lg)
	proc := core.NewProcessor(classifier, scaler, cfg.AnomalyBands(), predictor, store, engine, broadcast, lg)

	if cfg.MQTTBroker != "" {
		sub, err := ingest.NewMQTTSubscriber(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, proc, lg)
		if err != nil {
			lg.Error("mqtt", "broker", cfg.MQTTBroker, "error", err)
			os.Exit(1)
		}
		defer sub.Stop()
	}

	srv := httpapi.NewServer(cfg, lg, proc, alertsReader)
	go func() {
		if err := srv.Start(); err != nil {
			lg.Error("http", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	sh, c := context.WithTimeout(context.Background(), 5*time.Second)
	defer c()
	_ = srv.Stop(sh)
	lg.Info("gasguard core stopped")
}
