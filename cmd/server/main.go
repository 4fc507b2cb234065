package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/epheterson/energy-dashboard/internal/config"
	"github.com/epheterson/energy-dashboard/internal/egauge"
	"github.com/epheterson/energy-dashboard/internal/ha"
	"github.com/epheterson/energy-dashboard/internal/mail"
	"github.com/epheterson/energy-dashboard/internal/meter"
	"github.com/epheterson/energy-dashboard/internal/metrics"
	"github.com/epheterson/energy-dashboard/internal/server"
	"github.com/epheterson/energy-dashboard/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	schedule, err := cfg.Schedule()
	if err != nil {
		log.Fatalf("Invalid tariff config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}

	metrics.Init()

	parser := meter.NewCSVParser(schedule, loc)
	meterClient := egauge.New(cfg.Meter.URL, cfg.Meter.Username, cfg.Meter.Password, parser)
	haClient := ha.New(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token,
		cfg.HomeAssistant.QuantityEntities(), cfg.HomeAssistant.LiveEntities, loc)

	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.Open(cfg.Store.Path)
		if err != nil {
			log.Fatalf("Failed to open store: %v", err)
		}
		defer st.Close()
	}

	var mailer *mail.Sender
	if cfg.Email.SMTPHost != "" && len(cfg.Email.To) > 0 {
		mailer = mail.New(cfg.Email)
	}

	srv := server.New(cfg, schedule, loc, meterClient, haClient, st, mailer)
	if srv.SolarEnabled() {
		log.Printf("Solar attribution enabled via %s", cfg.HomeAssistant.URL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go srv.Run(ctx)

	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: srv.Routes()}
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	log.Printf("Starting server on %s", cfg.Server.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
