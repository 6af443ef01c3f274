package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/senyabanana/insurance-marketplace/internal/db"
	"github.com/senyabanana/insurance-marketplace/internal/handlers"
	"github.com/senyabanana/insurance-marketplace/internal/realtime"
	"github.com/senyabanana/insurance-marketplace/internal/repository"
	"github.com/senyabanana/insurance-marketplace/internal/router"
	"github.com/senyabanana/insurance-marketplace/internal/router/config"
	"github.com/senyabanana/insurance-marketplace/internal/services"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const expireSweepInterval = time.Minute

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	runDBMigration(cfg.MigrationURL, cfg.PostgresConn)

	dbPool, err := db.InitDb(cfg)
	if err != nil {
		log.Fatalf("error initializing database: %v", err)
	}
	defer dbPool.Close()

	logger := log.New(os.Stdout, "INFO: ", log.LstdFlags)

	hub := realtime.NewHub(logger)
	go hub.Run()

	requestRepo := repository.NewPostgresRequestRepository(dbPool)
	bidRepo := repository.NewPostgresBidRepository(dbPool)
	notificationRepo := repository.NewPostgresNotificationRepository(dbPool)
	chatRepo := repository.NewPostgresChatRepository(dbPool)

	notificationService := services.NewNotificationService(notificationRepo, hub)
	requestService := services.NewRequestService(requestRepo, notificationService, logger)
	bidService := services.NewBidService(requestRepo, bidRepo, notificationService, logger)
	chatService := services.NewChatService(chatRepo, requestRepo, notificationService, logger)

	requestHandler := handlers.NewRequestHandler(requestService, logger, 5*time.Second)
	bidHandler := handlers.NewBidHandler(bidService, logger, 5*time.Second)
	notificationHandler := handlers.NewNotificationHandler(notificationService, logger, 5*time.Second)
	chatHandler := handlers.NewChatHandler(chatService, logger, 5*time.Second)

	go runExpireSweeper(requestService, logger)

	routes := router.InitRoutes(requestHandler, bidHandler, notificationHandler, chatHandler, hub)

	log.Printf("server is listening on %s...", cfg.ServerAddress)
	if err := http.ListenAndServe(cfg.ServerAddress, routes); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func runDBMigration(migrationURL string, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		log.Fatal("cannot create a new migrate instance", err)
	}

	if err = migration.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal("failed to run migrate up:", err)
	}

	log.Println("db migrated successfully")
}

// runExpireSweeper периодически переводит просроченные заявки в expired.
// Ядро домена проверяет дедлайн только при подаче предложения, перевод
// статуса по таймеру - политика этого внешнего цикла.
func runExpireSweeper(requestService *services.RequestService, logger *log.Logger) {
	ticker := time.NewTicker(expireSweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		count, err := requestService.ExpireOverdueRequests(ctx)
		cancel()
		if err != nil {
			logger.Printf("expire sweep failed: %v", err)
			continue
		}
		if count > 0 {
			logger.Printf("expired %d overdue requests", count)
		}
	}
}
