package main

import (
	"context"
	"flag"

	"github.com/go-chi/chi/v5"

	"harbridge-backend/lib/configutil"
	"harbridge-backend/lib/serviceutil"
	"harbridge-backend/lib/telemetry"
	"harbridge-backend/services/espn/extractor"
	"harbridge-backend/services/espn/server"
)

type Config struct {
	Port           int                `json:"port"`
	Archives       extractor.Archives `json:"archives"`
	SimulateScores bool               `json:"simulate_scores"`
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	telemetry.InitSlog(*verbose)
	tel, err := telemetry.SetupFromEnv(ctx, "espn-provider")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		tel.Shutdown(context.Background())
	}()

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}

	x := extractor.New(cfg.Archives, extractor.Options{
		SimulateScores: cfg.SimulateScores,
	})
	svc := server.New(x, cfg.Archives)

	r := chi.NewRouter()
	svc.RegisterHTTP(r)

	go serviceutil.StartHttpServer(cfg.Port, r)
	<-ctx.Done()
}
