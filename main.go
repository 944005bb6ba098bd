package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"donation-service/internal/config"
	"donation-service/internal/consumer"
	"donation-service/internal/handler"
	"donation-service/internal/identity"
	"donation-service/internal/payments"
	"donation-service/internal/publisher"
	"donation-service/internal/repository"
	"donation-service/internal/sender"
	"donation-service/internal/service"
	"donation-service/internal/storage"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
	log.Info("Starting donation service...")

	if err := godotenv.Load(); err != nil {
		log.Warn("Could not load .env file.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Could not load configuration")
	}

	// Use a separate migrations table to avoid conflicts with other services
	// sharing the database
	migrationDBURL := cfg.DatabaseURL
	if strings.Contains(migrationDBURL, "?") {
		migrationDBURL += "&x-migrations-table=donation_schema_migrations"
	} else {
		migrationDBURL += "?x-migrations-table=donation_schema_migrations"
	}

	m, err := migrate.New(cfg.MigrationsPath, migrationDBURL)
	if err != nil {
		log.WithError(err).Fatal("Could not create migration instance")
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.WithError(err).Fatal("Could not apply migration")
	}
	log.Info("Database migration successfully applied")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	donationRepo := repository.NewPostgresDonationRepository(db)
	storyRepo := repository.NewPostgresStoryRepository(db)
	userRepo := repository.NewPostgresUserRepository(db)
	settlementRepo := repository.NewPostgresSettlementRepository(db)

	stripeClient := payments.NewStripeClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	verifier := identity.NewHTTPVerifier(cfg.AuthVerifyURL)

	receiptStore, err := storage.NewS3Store(ctx, cfg.ReceiptBucket, cfg.AWSRegion)
	if err != nil {
		log.WithError(err).Fatal("Could not create receipt store")
	}

	mailer := sender.NewSMTPEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	receiptService := service.NewReceiptService(donationRepo, receiptStore, mailer)

	var settledPublisher publisher.SettledPublisher
	if cfg.KafkaBootstrapServers != "" {
		producer, err := kafka.NewProducer(&kafka.ConfigMap{
			"bootstrap.servers": cfg.KafkaBootstrapServers,
		})
		if err != nil {
			log.WithError(err).Fatal("Failed to create Kafka producer")
		}
		kafkaPublisher := publisher.NewKafkaPublisher(producer, cfg.SettledTopic)
		defer kafkaPublisher.Close()
		settledPublisher = kafkaPublisher

		kafkaConsumer, err := kafka.NewConsumer(&kafka.ConfigMap{
			"bootstrap.servers": cfg.KafkaBootstrapServers,
			"group.id":          cfg.KafkaGroupID,
			"auto.offset.reset": "earliest",
		})
		if err != nil {
			log.WithError(err).Fatal("Failed to create Kafka consumer")
		}

		settledConsumer, err := consumer.NewKafkaConsumer(
			kafkaConsumer, cfg.SettledTopic, handler.NewSettledHandler(receiptService))
		if err != nil {
			log.WithError(err).Fatal("Failed to subscribe to settled topic")
		}
		defer settledConsumer.Close()

		go func() {
			if err := settledConsumer.Start(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("Settled-event consumer stopped")
				stop()
			}
		}()
	} else {
		log.Warn("KAFKA_BOOTSTRAP_SERVERS not set, receipt pipeline runs on demand only")
	}

	donationService := service.NewDonationService(stripeClient, donationRepo, storyRepo, userRepo)
	settlementService := service.NewSettlementService(donationRepo, settlementRepo, settledPublisher)
	storyService := service.NewStoryService(storyRepo)

	server := handler.NewServer(
		verifier, donationService, stripeClient, settlementService, receiptService, storyService)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
}
