package config

import (
	"log"
	"strings"
)

// API carries everything the HTTP binary needs.
type API struct {
	ListenAddr  string
	DatabaseURL string

	JWTSecret  string
	AppBaseURL string

	StripeAPIKey string

	SMTPHost string
	SMTPPort string
	SMTPFrom string

	KafkaBrokers []string
	EventsTopic  string
	EmailTopic   string

	S3Bucket        string
	S3PublicBaseURL string
	AWSRegion       string

	EventStore  string
	DynamoTable string
}

// Projector carries the catch-up consumer's configuration.
type Projector struct {
	DatabaseURL  string
	KafkaBrokers []string
	EventsTopic  string
	GroupID      string
}

// Notifier carries the email dispatch consumer's configuration.
type Notifier struct {
	DatabaseURL  string
	KafkaBrokers []string
	EmailTopic   string
	GroupID      string

	SMTPHost string
	SMTPPort string
	SMTPFrom string
}

// LoadAPI reads the API binary's configuration, exiting on unusable values.
// The JWT secret must be long enough for HS256 to mean anything.
func LoadAPI() API {
	Load()

	secret := MustGet("JWT_SECRET")
	if len(secret) < 32 {
		log.Fatalf("[Config] JWT_SECRET must be at least 32 characters")
	}

	return API{
		ListenAddr:      Get("LISTEN_ADDR", ":8080"),
		DatabaseURL:     MustGet("DATABASE_URL"),
		JWTSecret:       secret,
		AppBaseURL:      Get("APP_BASE_URL", "http://localhost:8080"),
		StripeAPIKey:    Get("STRIPE_API_KEY", ""),
		SMTPHost:        Get("SMTP_HOST", "localhost"),
		SMTPPort:        Get("SMTP_PORT", "587"),
		SMTPFrom:        Get("SMTP_FROM", "noreply@eventshop.example.com"),
		KafkaBrokers:    brokers(),
		EventsTopic:     Get("KAFKA_EVENTS_TOPIC", "domain-events"),
		EmailTopic:      Get("KAFKA_EMAIL_TOPIC", "email-dispatch"),
		S3Bucket:        Get("S3_BUCKET", ""),
		S3PublicBaseURL: Get("S3_PUBLIC_BASE_URL", ""),
		AWSRegion:       Get("AWS_REGION", "ap-northeast-1"),
		EventStore:      Get("EVENT_STORE", "postgres"),
		DynamoTable:     Get("EVENTS_TABLE", "events"),
	}
}

func LoadProjector() Projector {
	Load()
	return Projector{
		DatabaseURL:  MustGet("DATABASE_URL"),
		KafkaBrokers: brokers(),
		EventsTopic:  Get("KAFKA_EVENTS_TOPIC", "domain-events"),
		GroupID:      Get("KAFKA_GROUP_ID", "projector"),
	}
}

func LoadNotifier() Notifier {
	Load()
	return Notifier{
		DatabaseURL:  MustGet("DATABASE_URL"),
		KafkaBrokers: brokers(),
		EmailTopic:   Get("KAFKA_EMAIL_TOPIC", "email-dispatch"),
		GroupID:      Get("KAFKA_GROUP_ID", "notifier"),
		SMTPHost:     Get("SMTP_HOST", "localhost"),
		SMTPPort:     Get("SMTP_PORT", "587"),
		SMTPFrom:     Get("SMTP_FROM", "noreply@eventshop.example.com"),
	}
}

func brokers() []string {
	return strings.Split(Get("KAFKA_BROKERS", "localhost:9092"), ",")
}
