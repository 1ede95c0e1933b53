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
	ServiceName string
	InstanceID  string

	HTTPAddr    string
	ObsHTTPAddr string
	GRPCAddr    string

	DatabaseURL     string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	AutoMigrate     bool
	RedisAddr       string
	RedisPassword   string
	ConversationTTL time.Duration
	UserCacheTTL    time.Duration

	KafkaBrokers       []string
	KafkaTopic         string
	KafkaConsumerGroup string
	OutboxBatchSize    int
	OutboxPollDelay    time.Duration
	OutboxMaxRetries   int

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	RateLimitRequests int
	RateLimitWindow   string
	RequestTimeout    time.Duration

	CatalogURL     string
	CatalogTimeout time.Duration

	S3Region     string
	S3Bucket     string
	S3PublicRead bool
	S3URLTTL     time.Duration
	MaxUploadMB  int64

	FCMEndpoint  string
	FCMServerKey string
	PushQueue    string
	PushRetries  int
	PushWorkers  int

	RealtimeLegacyEvents bool
	RealtimeSignalOnly   bool
	RealtimeFrameRate    float64
	RealtimeFrameBurst   int

	MetricsEnabled bool
	TracingEnabled bool
	JaegerURL      string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first without overriding variables already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName: getEnv("SERVICE_NAME", "chat"),
		InstanceID:  getEnv("INSTANCE_ID", ""),

		HTTPAddr:    fixPort(getEnv("HTTP_ADDR", ":8080")),
		ObsHTTPAddr: fixPort(getEnv("OBS_HTTP_ADDR", ":8090")),
		GRPCAddr:    fixPort(getEnv("GRPC_ADDR", ":50060")),

		DatabaseURL:     mustEnv("DATABASE_URL"),
		DBMaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 5),
		AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		ConversationTTL: getEnvDuration("CONVERSATION_CACHE_TTL", 10*time.Minute),
		UserCacheTTL:    getEnvDuration("USER_CACHE_TTL", time.Hour),

		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "chat.messages"),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "chat-notifier"),
		OutboxBatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 100),
		OutboxPollDelay:    getEnvDuration("OUTBOX_POLL_DELAY", 2*time.Second),
		OutboxMaxRetries:   getEnvInt("OUTBOX_MAX_RETRIES", 3),

		JWTSecret:   mustEnv("JWT_SECRET"),
		JWTIssuer:   getEnv("JWT_ISSUER", ""),
		JWTAudience: getEnv("JWT_AUDIENCE", ""),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnv("RATE_LIMIT_WINDOW", "1m"),
		RequestTimeout:    getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),

		CatalogURL:     getEnv("CATALOG_URL", ""),
		CatalogTimeout: getEnvDuration("CATALOG_TIMEOUT", 3*time.Second),

		S3Region:     getEnv("S3_REGION", "us-east-1"),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3PublicRead: getEnvBool("S3_PUBLIC_READ", false),
		S3URLTTL:     getEnvDuration("S3_URL_TTL", 7*24*time.Hour),
		MaxUploadMB:  int64(getEnvInt("MAX_UPLOAD_MB", 10)),

		FCMEndpoint:  getEnv("FCM_ENDPOINT", "https://fcm.googleapis.com/fcm/send"),
		FCMServerKey: getEnv("FCM_SERVER_KEY", ""),
		PushQueue:    getEnv("PUSH_QUEUE", "push"),
		PushRetries:  getEnvInt("PUSH_MAX_RETRIES", 5),
		PushWorkers:  getEnvInt("PUSH_WORKERS", 10),

		RealtimeLegacyEvents: getEnvBool("REALTIME_LEGACY_EVENTS", false),
		RealtimeSignalOnly:   getEnvBool("REALTIME_SIGNAL_ONLY", false),
		RealtimeFrameRate:    getEnvFloat("REALTIME_FRAME_RATE", 5),
		RealtimeFrameBurst:   getEnvInt("REALTIME_FRAME_BURST", 20),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		JaegerURL:      getEnv("JAEGER_URL", "http://localhost:14268/api/traces"),
	}
}

func fixPort(port string) string {
	if port != "" && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("missing required env: %s", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
