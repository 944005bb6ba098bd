package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, parsed from the environment.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	DatabaseURL    string `env:"DATABASE_URL,required"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"file://db/migrations"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`

	AuthVerifyURL string `env:"AUTH_VERIFY_URL,required"`

	KafkaBootstrapServers string `env:"KAFKA_BOOTSTRAP_SERVERS"`
	KafkaGroupID          string `env:"KAFKA_GROUP_ID" envDefault:"donation_service_group"`
	SettledTopic          string `env:"SETTLED_TOPIC" envDefault:"donations.settled"`

	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASSWORD"`
	MailFrom string `env:"MAIL_FROM"`

	AWSRegion     string `env:"AWS_REGION" envDefault:"eu-central-1"`
	ReceiptBucket string `env:"RECEIPT_BUCKET,required"`
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
