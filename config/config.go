package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DB        DBConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Server    ServerConfig
	Narrative NarrativeConfig
	Scoring   ScoringConfig
	Directory DirectoryConfig
	Log       LogConfig
}

type DBConfig struct {
	DBPath string // Путь к файлу SQLite
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL time.Duration // срок хранения оценок риска
}

type KafkaConfig struct {
	Brokers           []string
	LedgerTopic       string
	ReviewEventsTopic string
	ConsumerGroup     string
}

type ServerConfig struct {
	HTTPPort       int
	GRPCPort       int
	WorkerHTTPPort int // health и metrics воркера скоринга
}

type NarrativeConfig struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

type ScoringConfig struct {
	Workers            int
	DefaultCountry     string
	LargeAmount        float64 // порог крупной суммы статистического слоя
	ApprovalThreshold  float64 // порог разбиения суммы
	SLAInterval        time.Duration
	SLAOrganizationIDs []string
	FeedInterval       time.Duration // 0 отключает демонстрационный поток операций
	FeedOrganizationID string
	FeedCreators       []string
	UnresolvedOrgID    string // очередь операций, автор которых не найден в справочнике
}

type DirectoryConfig struct {
	SeedUsers []string // "id:organization:role[:name]", создаются при старте, если отсутствуют
}

type LogConfig struct {
	Level       string
	Development bool
}

func Load() *Config {
	// Загружаем .env файл, если он существует
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		DB: DBConfig{
			DBPath: getEnv("DB_PATH", "./data/risk_review.db"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: getEnvAsDuration("REDIS_CACHE_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:           getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			LedgerTopic:       getEnv("KAFKA_LEDGER_TOPIC", "ledger.transactions.created"),
			ReviewEventsTopic: getEnv("KAFKA_REVIEW_EVENTS_TOPIC", "risk.review.events"),
			ConsumerGroup:     getEnv("KAFKA_CONSUMER_GROUP", "scoring-worker"),
		},
		Server: ServerConfig{
			HTTPPort:       getEnvAsInt("HTTP_PORT", 8080),
			GRPCPort:       getEnvAsInt("GRPC_PORT", 50051),
			WorkerHTTPPort: getEnvAsInt("WORKER_HTTP_PORT", 8081),
		},
		Narrative: NarrativeConfig{
			Enabled: getEnvAsBool("NARRATIVE_ENABLED", false),
			BaseURL: getEnv("NARRATIVE_BASE_URL", "http://localhost:8090"),
			Timeout: getEnvAsDuration("NARRATIVE_TIMEOUT", 3*time.Second),
		},
		Scoring: ScoringConfig{
			Workers:            getEnvAsInt("SCORING_WORKERS", 8),
			DefaultCountry:     getEnv("SCORING_DEFAULT_COUNTRY", "US"),
			LargeAmount:        getEnvAsFloat("SCORING_LARGE_AMOUNT", 10000),
			ApprovalThreshold:  getEnvAsFloat("SCORING_APPROVAL_THRESHOLD", 10000),
			SLAInterval:        getEnvAsDuration("SLA_CHECK_INTERVAL", 15*time.Minute),
			SLAOrganizationIDs: getEnvAsList("SLA_ORGANIZATION_IDS", nil),
			FeedInterval:       getEnvAsDuration("FEED_INTERVAL", 0),
			FeedOrganizationID: getEnv("FEED_ORGANIZATION_ID", "demo-org"),
			FeedCreators:       getEnvAsList("FEED_CREATORS", []string{"demo-user"}),
			UnresolvedOrgID:    getEnv("UNRESOLVED_ORGANIZATION_ID", "unresolved"),
		},
		Directory: DirectoryConfig{
			SeedUsers: getEnvAsList("DIRECTORY_SEED_USERS", []string{
				"demo-user:demo-org:accountant",
				"demo-reviewer:demo-org:senior_accountant",
				"demo-admin:demo-org:admin",
			}),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration принимает формат time.ParseDuration ("30s", "15m")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList значения через запятую
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
