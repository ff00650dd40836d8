package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/notify-gateway/internal/config"
	"github.com/notify-gateway/internal/infrastructure/dynamo"
	jwtinfra "github.com/notify-gateway/internal/infrastructure/jwt"
	s3infra "github.com/notify-gateway/internal/infrastructure/s3"
	"github.com/notify-gateway/internal/infrastructure/smtp"
	"github.com/notify-gateway/internal/infrastructure/sns"
	"github.com/notify-gateway/internal/template"
	transporthttp "github.com/notify-gateway/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// JWT provider is optional; history routes are disabled without it.
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	// S3 archive for purged notifications.
	s3Client := s3infra.NewClient(cfg)
	archive := s3infra.NewArchive(s3Client, cfg.ArchiveBucket)

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// SNS publisher is optional; SMS and push degrade without it.
	var publisher sns.Publisher
	if p, err := sns.NewPublisher(cfg); err == nil {
		publisher = p
	} else {
		log.Printf("WARN: SNS publisher not available: %v", err)
	}

	// Fail fast on an incomplete template table.
	templates := template.NewRegistry()
	templates.MustValidate()

	deps := &transporthttp.Deps{
		OTPRepo:           dynamo.NewOTPRepo(dynamoClient, cfg.DynamoTables.OTPs),
		VerifiedEmailRepo: dynamo.NewVerifiedEmailRepo(dynamoClient, cfg.DynamoTables.VerifiedEmails),
		NotificationRepo:  dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications),
		Archive:           archive,
		Mailer:            mailer,
		Publisher:         publisher,
		JWTProvider:       jwtProvider,
		Templates:         templates,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Notification gateway starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
