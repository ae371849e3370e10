package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/example/eventshop/internal/api"
	"github.com/example/eventshop/internal/auth"
	"github.com/example/eventshop/internal/cart"
	"github.com/example/eventshop/internal/command"
	"github.com/example/eventshop/internal/config"
	"github.com/example/eventshop/internal/domain/order"
	"github.com/example/eventshop/internal/domain/product"
	"github.com/example/eventshop/internal/domain/user"
	"github.com/example/eventshop/internal/email"
	"github.com/example/eventshop/internal/infrastructure/kafka"
	"github.com/example/eventshop/internal/infrastructure/s3"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/notification"
	"github.com/example/eventshop/internal/payment"
	"github.com/example/eventshop/internal/projection"
	"github.com/example/eventshop/internal/query"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadAPI()

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[API] failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	if err := store.InitSchema(ctx, db); err != nil {
		log.Fatalf("[API] failed to initialise schema: %v", err)
	}

	eventProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.EventsTopic)
	defer eventProducer.Close()
	emailProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.EmailTopic)
	defer emailProducer.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("[API] failed to load AWS config: %v", err)
	}

	// The Dynamo log streams committed events through Kinesis, so it takes no
	// publisher; the Postgres log fans out through Kafka itself.
	var eventLog store.EventLog
	if cfg.EventStore == "dynamo" {
		eventLog = store.NewDynamoEventStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable)
	} else {
		eventLog = store.NewPostgresEventStore(db, eventProducer)
	}
	readStore := store.NewPostgresReadStore(db)
	tokenStore := store.NewPostgresTokenStore(db)
	emailLedger := store.NewPostgresEmailLedger(db)

	productSvc := product.NewService(eventLog)
	orderSvc := order.NewService(eventLog)
	userSvc := user.NewService(eventLog)

	jwtService := auth.NewJWTService(cfg.JWTSecret, time.Hour, 30*24*time.Hour)
	sender := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	authService := auth.NewService(userSvc, readStore, tokenStore, jwtService, sender, cfg.AppBaseURL)

	gateway := payment.NewStripeGateway(cfg.StripeAPIKey)
	queue := notification.NewQueue(emailLedger, emailProducer)
	projector := projection.NewProjector(readStore)

	commands := command.NewHandler(productSvc, orderSvc, projector, gateway, queue, readStore)
	queries := query.NewHandler(readStore)

	carts := cart.NewManager(readStore)
	defer carts.Close()

	images := s3.NewImageStore(awss3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3PublicBaseURL)

	router := api.NewRouter(
		api.NewHandlers(commands, queries, carts, readStore),
		api.NewAuthHandlers(authService, readStore),
		api.NewAdminHandlers(commands, queries, readStore, images),
		api.NewCategoryHandlers(readStore),
		jwtService,
	)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		log.Printf("[API] listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[API] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] shutdown: %v", err)
	}
}
