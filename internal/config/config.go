package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"

	BlobLocal = "local"
	BlobS3    = "s3"
)

// Config holds all runtime settings
type Config struct {
	AppName     string
	Env         string
	Port        string
	LogLevel    string
	CORSOrigins string

	JWTSecret string
	TokenTTL  time.Duration

	StoreDriver   string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	BlobDriver     string
	UploadDir      string
	S3Bucket       string
	S3Region       string
	S3Prefix       string
	MaxUploadBytes int64
	MaxAttachments int

	PollInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string
	KafkaTimeout time.Duration
}

// IsDevelopment reports whether the app runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "Campushub API v1.0")
	v.SetDefault("app_env", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("cors_origins", "http://localhost:3000")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("store_driver", DriverMemory)
	v.SetDefault("mongo_database", "campushub")
	v.SetDefault("blob_driver", BlobLocal)
	v.SetDefault("upload_dir", "./uploads")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_prefix", "uploads")
	v.SetDefault("max_upload_bytes", 5*1024*1024) // 5MB
	v.SetDefault("max_attachments", 5)
	v.SetDefault("poll_interval", "4s")
	v.SetDefault("redis_db", 0)
	v.SetDefault("kafka_topic", "chat.messages")
	v.SetDefault("kafka_timeout", "3s")
}

// Load reads .env (if present), an optional CONFIG_FILE and the environment.
// Environment variables win over the file.
func Load() (*Config, error) {
	// Missing .env is fine outside development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		AppName:        v.GetString("app_name"),
		Env:            v.GetString("app_env"),
		Port:           v.GetString("port"),
		LogLevel:       v.GetString("log_level"),
		CORSOrigins:    v.GetString("cors_origins"),
		JWTSecret:      v.GetString("jwt_secret"),
		TokenTTL:       v.GetDuration("token_ttl"),
		StoreDriver:    strings.ToLower(v.GetString("store_driver")),
		DatabaseURL:    v.GetString("database_url"),
		MongoURI:       v.GetString("mongo_uri"),
		MongoDatabase:  v.GetString("mongo_database"),
		BlobDriver:     strings.ToLower(v.GetString("blob_driver")),
		UploadDir:      v.GetString("upload_dir"),
		S3Bucket:       v.GetString("s3_bucket"),
		S3Region:       v.GetString("s3_region"),
		S3Prefix:       v.GetString("s3_prefix"),
		MaxUploadBytes: v.GetInt64("max_upload_bytes"),
		MaxAttachments: v.GetInt("max_attachments"),
		PollInterval:   v.GetDuration("poll_interval"),
		RedisAddr:      v.GetString("redis_addr"),
		RedisPassword:  v.GetString("redis_password"),
		RedisDB:        v.GetInt("redis_db"),
		KafkaBrokers:   splitList(v.GetString("kafka_brokers")),
		KafkaTopic:     v.GetString("kafka_topic"),
		KafkaTimeout:   v.GetDuration("kafka_timeout"),
	}

	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		cfg.JWTSecret = "campushub-dev-secret"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks driver names and their required settings
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI environment variable is not set")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.BlobDriver {
	case BlobLocal:
	case BlobS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET environment variable is not set")
		}
	default:
		return fmt.Errorf("unknown BLOB_DRIVER %q", c.BlobDriver)
	}

	if c.MaxAttachments < 1 {
		return fmt.Errorf("MAX_ATTACHMENTS must be at least 1")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
