// internal/config/config.go
package config

import (
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Cache        CacheConfig
	Prediction   PredictionConfig
	Forecast     ForecastConfig
	Notification NotificationConfig
	Kafka        KafkaConfig
	Realtime     RealtimeConfig
	Refresh      RefreshConfig
	Storage      ObjectStorageConfig
	LogLevel     string
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Backend       string
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	TTLSeconds    int
}

type PredictionConfig struct {
	WindowDays          int
	MovingAveragePeriod int
	FreshnessWindow     time.Duration
	VelocityDecay       float64
	MinDataPoints       int
	BatchConcurrency    int
}

type ForecastConfig struct {
	ModelEnabled    bool
	ModelURL        string
	ModelTimeout    time.Duration
	ModelMinRecords int
}

type NotificationConfig struct {
	Cooldown time.Duration
}

type KafkaConfig struct {
	Brokers    []string
	SalesTopic string
	GroupID    string
}

type RealtimeConfig struct {
	Backend       string
	ChannelPrefix string
}

type RefreshConfig struct {
	Interval time.Duration
}

type ObjectStorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults()

		// Read from environment variables
		viper.AutomaticEnv()

		instance = build()
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("SERVER_READ_TIMEOUT", 15)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 0)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("STORAGE_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "shelfwise")
	viper.SetDefault("DB_SSLMODE", "disable")

	viper.SetDefault("CACHE_BACKEND", "memory")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_TTL_SECONDS", 60)

	viper.SetDefault("PREDICTION_WINDOW_DAYS", 30)
	viper.SetDefault("PREDICTION_MOVING_AVERAGE_PERIOD", 7)
	viper.SetDefault("PREDICTION_FRESHNESS_WINDOW_MS", 5000)
	viper.SetDefault("PREDICTION_VELOCITY_DECAY", 0.9)
	viper.SetDefault("PREDICTION_MIN_DATA_POINTS", 7)
	viper.SetDefault("PREDICTION_BATCH_CONCURRENCY", 8)

	viper.SetDefault("FORECAST_MODEL_ENABLED", false)
	viper.SetDefault("FORECAST_MODEL_URL", "")
	viper.SetDefault("FORECAST_MODEL_TIMEOUT_MS", 2000)
	viper.SetDefault("FORECAST_MODEL_MIN_RECORDS", 14)

	viper.SetDefault("NOTIFICATION_COOLDOWN_HOURS", 24)

	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_SALES_TOPIC", "sales.recorded")
	viper.SetDefault("KAFKA_GROUP_ID", "shelfwise-predictions")

	viper.SetDefault("REALTIME_BACKEND", "local")
	viper.SetDefault("REALTIME_CHANNEL_PREFIX", "shelfwise")

	viper.SetDefault("REFRESH_INTERVAL_MINUTES", 60)

	viper.SetDefault("OBJECT_STORAGE_ENDPOINT", "")
	viper.SetDefault("OBJECT_STORAGE_ACCESS_KEY", "")
	viper.SetDefault("OBJECT_STORAGE_SECRET_KEY", "")
	viper.SetDefault("OBJECT_STORAGE_BUCKET", "shelfwise-snapshots")
	viper.SetDefault("OBJECT_STORAGE_USE_SSL", true)
}

func build() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Mode:           viper.GetString("SERVER_MODE"),
			ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(viper.GetString("STORAGE_DRIVER")),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Backend:       strings.ToLower(viper.GetString("CACHE_BACKEND")),
			RedisURL:      viper.GetString("REDIS_URL"),
			RedisHost:     viper.GetString("REDIS_HOST"),
			RedisPort:     viper.GetString("REDIS_PORT"),
			RedisPassword: viper.GetString("REDIS_PASSWORD"),
			RedisDB:       viper.GetInt("REDIS_DB"),
			TTLSeconds:    viper.GetInt("CACHE_TTL_SECONDS"),
		},
		Prediction: PredictionConfig{
			WindowDays:          viper.GetInt("PREDICTION_WINDOW_DAYS"),
			MovingAveragePeriod: viper.GetInt("PREDICTION_MOVING_AVERAGE_PERIOD"),
			FreshnessWindow:     time.Duration(viper.GetInt("PREDICTION_FRESHNESS_WINDOW_MS")) * time.Millisecond,
			VelocityDecay:       viper.GetFloat64("PREDICTION_VELOCITY_DECAY"),
			MinDataPoints:       viper.GetInt("PREDICTION_MIN_DATA_POINTS"),
			BatchConcurrency:    viper.GetInt("PREDICTION_BATCH_CONCURRENCY"),
		},
		Forecast: ForecastConfig{
			ModelEnabled:    viper.GetBool("FORECAST_MODEL_ENABLED"),
			ModelURL:        viper.GetString("FORECAST_MODEL_URL"),
			ModelTimeout:    time.Duration(viper.GetInt("FORECAST_MODEL_TIMEOUT_MS")) * time.Millisecond,
			ModelMinRecords: viper.GetInt("FORECAST_MODEL_MIN_RECORDS"),
		},
		Notification: NotificationConfig{
			Cooldown: time.Duration(viper.GetInt("NOTIFICATION_COOLDOWN_HOURS")) * time.Hour,
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(viper.GetString("KAFKA_BROKERS")),
			SalesTopic: viper.GetString("KAFKA_SALES_TOPIC"),
			GroupID:    viper.GetString("KAFKA_GROUP_ID"),
		},
		Realtime: RealtimeConfig{
			Backend:       strings.ToLower(viper.GetString("REALTIME_BACKEND")),
			ChannelPrefix: viper.GetString("REALTIME_CHANNEL_PREFIX"),
		},
		Refresh: RefreshConfig{
			Interval: time.Duration(viper.GetInt("REFRESH_INTERVAL_MINUTES")) * time.Minute,
		},
		Storage: ObjectStorageConfig{
			Endpoint:  viper.GetString("OBJECT_STORAGE_ENDPOINT"),
			AccessKey: viper.GetString("OBJECT_STORAGE_ACCESS_KEY"),
			SecretKey: viper.GetString("OBJECT_STORAGE_SECRET_KEY"),
			Bucket:    viper.GetString("OBJECT_STORAGE_BUCKET"),
			UseSSL:    viper.GetBool("OBJECT_STORAGE_USE_SSL"),
		},
		LogLevel: viper.GetString("LOG_LEVEL"),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
