package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"custom-alerts-service/internal/alerts"
	"custom-alerts-service/internal/api"
	"custom-alerts-service/internal/config"
	"custom-alerts-service/internal/db"
	"custom-alerts-service/internal/kafka"
	"custom-alerts-service/internal/logging"
	"custom-alerts-service/internal/notifier"
	"custom-alerts-service/internal/providers"
	"custom-alerts-service/internal/reporting"
	"custom-alerts-service/internal/service"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Connect to database and ensure schema
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dbConn.Install(ctx); err != nil {
		logger.Errorf("Schema install failed: %v", err)
		log.Fatalf("Schema install failed: %v", err)
	}

	// External collaborators and transports
	reports := reporting.NewClient(cfg)
	email := providers.NewSMTPSender(cfg)
	sms := providers.NewTwilioSender(cfg)
	summary := providers.NewTelegramSummary(cfg, logger)

	// Core engine
	processor := alerts.NewProcessor(dbConn, dbConn, reports, logger)
	notify := notifier.New(dbConn, reports, reports, email, sms, logger)

	// Run service with worker pool
	svc := service.New(processor, notify, summary, logger, cfg)
	var wg sync.WaitGroup
	svc.Start(&wg)

	// Kafka consumer for scheduler run messages
	consumer := kafka.NewConsumer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic, cfg.Kafka.GroupID, svc)
	logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.Topic)
	consumer.Start(ctx, &wg)

	// API server
	router := api.NewRouter(dbConn, logger, cfg, svc)
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	cancel()
	consumer.Close()
	svc.Stop()
	wg.Wait()
	logger.Infof("Service stopped")
}
