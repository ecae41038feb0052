package config

import (
	"time"

	"botqueue/internal/domain"

	"github.com/caarlos0/env/v11"

	"log"
)

type Config struct {
	Redis   Redis
	Queue   Queue
	Webhook Webhook
	Media   Media
}

type Redis struct {
	Addr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"botq"`
}

type Queue struct {
	DefaultMaxAttempts int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
	BackoffBase        time.Duration `env:"QUEUE_BACKOFF_BASE" envDefault:"2s"`
	BackoffCap         time.Duration `env:"QUEUE_BACKOFF_CAP" envDefault:"1m"`
	ClaimBlock         time.Duration `env:"QUEUE_CLAIM_BLOCK" envDefault:"5s"`

	MediaConcurrency   int `env:"QUEUE_MEDIA_CONCURRENCY" envDefault:"3"`
	MessageConcurrency int `env:"QUEUE_MESSAGE_CONCURRENCY" envDefault:"5"`
	OrderConcurrency   int `env:"QUEUE_ORDER_CONCURRENCY" envDefault:"2"`
	WebhookConcurrency int `env:"QUEUE_WEBHOOK_CONCURRENCY" envDefault:"5"`
}

type Webhook struct {
	HistoryCapacity int           `env:"WEBHOOK_HISTORY_CAPACITY" envDefault:"1000"`
	UserAgent       string        `env:"WEBHOOK_USER_AGENT" envDefault:"botqueue/1.0"`
	DeliveryTimeout time.Duration `env:"WEBHOOK_DELIVERY_TIMEOUT" envDefault:"10s"`

	// Merchant signing secrets as merchant:secret pairs, comma
	// separated. Merchants can also be registered at runtime.
	Secrets map[string]string `env:"WEBHOOK_SECRETS"`
}

type Media struct {
	UploadDir string `env:"MEDIA_UPLOAD_DIR" envDefault:"./uploads"`
	Quality   int    `env:"MEDIA_JPEG_QUALITY" envDefault:"85"`
}

func Load() *Config {
	var c Config
	if err := env.Parse(&c); err != nil {
		log.Fatal(err)
	}

	return &c
}

// Concurrency returns the worker count configured for a queue class.
func (q Queue) Concurrency(class domain.QueueClass) int {
	switch class {
	case domain.QueueMediaProcessing:
		return q.MediaConcurrency
	case domain.QueueMessageSending:
		return q.MessageConcurrency
	case domain.QueueOrderProcessing:
		return q.OrderConcurrency
	case domain.QueueWebhookDelivery:
		return q.WebhookConcurrency
	}
	return 1
}
