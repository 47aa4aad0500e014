package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	GinMode string `env:"GIN_MODE" envDefault:"debug"`

	// Webhook
	VerifyToken         string `env:"VERIFY_TOKEN"`
	AppSecret           string `env:"APP_SECRET"`
	WebhookMaxBodyBytes int64  `env:"WEBHOOK_MAX_BODY_BYTES" envDefault:"1048576"`

	// Graph API
	WhatsAppToken             string `env:"WHATSAPP_TOKEN"`
	PhoneNumberID             string `env:"PHONE_NUMBER_ID"`
	WhatsAppBusinessAccountID string `env:"WABA_ID"`
	GraphAPIURL               string `env:"GRAPH_API_URL" envDefault:"https://graph.facebook.com"`
	GraphAPIVersion           string `env:"GRAPH_API_VERSION" envDefault:"v19.0"`

	// Storage
	DBDriver   string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBPath     string `env:"DB_PATH" envDefault:"./whatsapp.db"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" envDefault:"waba"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	MongoURI   string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB    string `env:"MONGO_DB" envDefault:"waba"`

	// Auth
	JWTSecret string        `env:"JWT_SECRET"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogFile   string `env:"LOG_FILE"`
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// PostgresDSN builds the libpq connection string from the DB_* settings.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// GraphBaseURL is the versioned Graph API root, e.g. https://graph.facebook.com/v19.0.
func (c *Config) GraphBaseURL() string {
	return fmt.Sprintf("%s/%s", c.GraphAPIURL, c.GraphAPIVersion)
}
