package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cimillas/site-market/services/api/internal/app"
	"github.com/cimillas/site-market/services/api/internal/clock"
	"github.com/cimillas/site-market/services/api/internal/config"
	"github.com/cimillas/site-market/services/api/internal/notify"
	"github.com/cimillas/site-market/services/api/internal/scheduler"
	"github.com/cimillas/site-market/services/api/internal/storage/postgres"
	transporthttp "github.com/cimillas/site-market/services/api/internal/transport/http"
	"github.com/cimillas/site-market/services/api/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := log.Default()

	cfg, err := config.Load(logger)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.AdminToken == "" {
		logger.Printf("WARN: ADMIN_TOKEN not set, admin routes are disabled")
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	clk := clock.NewSystem()
	market := cfg.Market

	penaltySvc := app.NewPenaltyService(postgres.NewPenaltyRepository(pool), clk,
		app.WithPenaltyDuration(market.PenaltyDuration),
		app.WithReminderThreshold(market.ReminderThreshold),
		app.WithPenaltyLogger(logger),
	)
	offerSvc := app.NewOfferService(postgres.NewOfferRepository(pool), clk,
		app.WithBidWindow(market.BidWindow),
		app.WithPurchaseWindow(market.PurchaseWindow),
		app.WithOfferLogger(logger),
	)
	cartSvc := app.NewCartService(postgres.NewCartRepository(pool), clk, penaltySvc,
		app.WithReservationWindow(market.ReservationWindow),
	)
	orderSvc := app.NewOrderService(postgres.NewOrderRepository(pool), clk, penaltySvc)
	adminSvc := app.NewAdminService(postgres.NewAdminRepository(pool), clk)
	statsRepo := postgres.NewStatsRepository(pool)

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.Telegram.Enabled() {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
		if err != nil {
			logger.Printf("WARN: telegram disabled: %v", err)
		} else {
			notifier = tg
			go tg.ServeCommands(stopCtx, statsRepo)
			logger.Printf("telegram notifications enabled chat=%s", cfg.Telegram.ChatID)
		}
	} else {
		logger.Printf("WARN: telegram not configured, notifications go to the log")
	}

	dispatcher := notify.NewDispatcher(postgres.NewOutboxRepository(pool), notifier, clk,
		notify.WithBatchSize(cfg.Outbox.BatchSize),
		notify.WithMaxAttempts(cfg.Outbox.MaxAttempts),
		notify.WithRetention(cfg.Outbox.Retention),
		notify.WithLease(cfg.Outbox.Lease),
		notify.WithDispatcherLogger(logger),
	)

	sweeps := cfg.Sweeps
	sched := scheduler.New(logger, app.SweepTasks(app.SweepIntervals{
		ResolveOffers:      sweeps.ResolveOffers,
		ExpireReservations: sweeps.ExpireReservations,
		EnforceDeadlines:   sweeps.EnforceDeadlines,
		SendReminders:      sweeps.SendReminders,
		UnblockUsers:       sweeps.UnblockUsers,
		DispatchEvents:     sweeps.DispatchEvents,
		PurgeEvents:        sweeps.PurgeEvents,
	}, logger, offerSvc, cartSvc, penaltySvc, dispatcher)...)
	if err := sched.Start(stopCtx); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}

	router := transporthttp.NewRouter(transporthttp.Services{
		Offers:     offerSvc,
		Cart:       cartSvc,
		Orders:     orderSvc,
		Confirmer:  orderSvc,
		Admin:      adminSvc,
		Blocks:     penaltySvc,
		Stats:      statsRepo,
		DB:         pool,
		AdminToken: cfg.AdminToken,
	})
	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, router), logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	log.Printf("api listening on :%s", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	case <-stopCtx.Done():
		log.Printf("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server shutdown error: %v", err)
	}
	sched.Stop()
	log.Printf("server stopped")
}
