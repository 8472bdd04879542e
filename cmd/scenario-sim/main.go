package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/logging"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/sim"
)

func main() {
	lg, lf := logging.Init("scenario-sim")
	defer lf.Close()

	backend := getenv("BACKEND_URL", "http://localhost:8080")
	bind := getenv("SIM_BIND", ":8090")
	zones := splitCSV(getenv("SIM_ZONES", "ZONE_A_01,ZONE_B_02,ZONE_C_03,ZONE_D_04"))
	interval := time.Duration(getint("SEND_INTERVAL_MS", 2000)) * time.Millisecond

	engine := sim.NewEngine(backend, zones, interval, lg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	srv := sim.NewServer(bind, engine, lg)
	go func() {
		if err := srv.Start(); err != nil {
			lg.Error("control api", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	sh, c := context.WithTimeout(context.Background(), 5*time.Second)
	defer c()
	_ = srv.Stop(sh)
	lg.Info("scenario simulator stopped")
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
