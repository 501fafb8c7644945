package main

import (
	"ajo/config"
	"ajo/internal/database"
	"ajo/internal/repository"
	"ajo/internal/scheduler"
	"ajo/internal/service"
	"ajo/internal/ws"
	"ajo/pkg/ledger"
	"ajo/pkg/logger"
	"ajo/pkg/sms"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// app is the process object graph shared by every subcommand.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	repos     *repository.Repositories
	hub       *ws.Hub
	notifier  *service.NotificationService
	auth      *service.AuthService
	ajo       *service.AjoService
	wallet    *service.WalletService
	scheduler *scheduler.Scheduler
	registry  *prometheus.Registry
}

func newApp() (*app, error) {
	cfg := config.Load()
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		return nil, err
	}
	repos := repository.New(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var client ledger.Client
	switch cfg.Ledger.Provider {
	case "vfd":
		client = ledger.NewVFDClient(cfg.Ledger.BaseURL, cfg.Ledger.ClientID, cfg.Ledger.ClientSecret, cfg.Ledger.Timeout, log)
	default:
		log.Warn().Msg("ledger provider is stub: money moves are local only")
		client = ledger.NewStubClient()
	}

	var sender sms.Sender = sms.Noop{}
	if cfg.SMS.Username != "" && cfg.SMS.APIKey != "" {
		sender = sms.NewAfricasTalking(cfg.SMS.BaseURL, cfg.SMS.Username, cfg.SMS.APIKey, cfg.SMS.Sender)
	} else {
		log.Info().Msg("sms disabled: set AT_USERNAME and AT_API_KEY to enable")
	}

	fcm := service.NewFCMService(cfg.Firebase.ServiceAccountPath, log)
	if fcm == nil {
		log.Info().Msg("push notifications disabled")
	}

	hub := ws.NewHub()
	notifier := service.NewNotificationService(repos.Notifications, repos.Users, fcm, hub, sender, cfg.SMS.OpsPhone, log)
	ajoSvc := service.NewAjoService(repos, client, notifier, cfg.Ajo, cfg.Ledger.Timeout, log)

	return &app{
		cfg:       cfg,
		log:       log,
		repos:     repos,
		hub:       hub,
		notifier:  notifier,
		auth:      service.NewAuthService(cfg, repos),
		ajo:       ajoSvc,
		wallet:    service.NewWalletService(repos, ajoSvc, notifier, log),
		scheduler: scheduler.New(repos, ajoSvc, notifier, cfg.Scheduler, scheduler.NewMetrics(registry), log),
		registry:  registry,
	}, nil
}

func (a *app) close() {
	if sqlDB, err := a.repos.DB().DB(); err == nil {
		sqlDB.Close()
	}
}
