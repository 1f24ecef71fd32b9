package main

import (
	"context"
	"flag"

	"github.com/go-chi/chi/v5"

	"harbridge-backend/lib/configutil"
	"harbridge-backend/lib/serviceutil"
	"harbridge-backend/lib/telemetry"
	"harbridge-backend/services/sephora/live"
	"harbridge-backend/services/sephora/orders"
	"harbridge-backend/services/sephora/server"
	"harbridge-backend/services/sephora/session"
)

type Config struct {
	Port     int            `json:"port"`
	OrdersDB string         `json:"orders_db"`
	Session  session.Config `json:"session"`
	Profile  server.Profile `json:"profile"`
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	telemetry.InitSlog(*verbose)
	tel, err := telemetry.SetupFromEnv(ctx, "sephora-live")
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
		cfg.Port = 8001
	}
	if cfg.OrdersDB == "" {
		cfg.OrdersDB = "sephora_orders.db"
	}
	if cfg.Session.BaseURL == "" {
		cfg.Session.BaseURL = "https://api.sephora.com"
	}

	sessions, err := session.NewManager(cfg.Session)
	if err != nil {
		serviceutil.Fatal("init session manager", err)
	}

	store, err := orders.Open(cfg.OrdersDB)
	if err != nil {
		serviceutil.Fatal("open orders db", err)
	}

	executor := live.New(sessions, cfg.Session.BaseURL)
	svc := server.New(sessions, executor, store, cfg.Profile, cfg.Session.BaseURL)

	r := chi.NewRouter()
	svc.RegisterHTTP(r)

	go serviceutil.StartHttpServer(cfg.Port, r)
	<-ctx.Done()
}
