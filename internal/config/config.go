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
	ServiceID   string
	Port        int
	// ServiceAddress is advertised to Consul; empty means the outbound IP.
	ServiceAddress string

	// orderbase API
	APIBaseURL     string
	APIServiceName string
	APIUsername    string
	APIPassword    string
	APITimeout     time.Duration

	TaxRate    string
	ResetDelay time.Duration
	QRBaseURL  string

	CORSOrigins []string

	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	RedisHost string
	RedisPort int
	CacheTTL  time.Duration
	LockTTL   time.Duration

	RabbitMQHost     string
	RabbitMQPort     int
	RabbitMQUser     string
	RabbitMQPassword string

	ConsulHost string
	ConsulPort int
}

// Load reads .env when present and then the process environment.
// Leaving a host empty disables that piece of infrastructure.
func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️ No .env file found, using system environment")
	} else {
		log.Println("✅ Loaded .env")
	}

	cfg := &Config{
		ServiceName:    getEnv("SERVICE_NAME", "checkout-service"),
		ServiceID:      getEnv("SERVICE_ID", "checkout-service-1"),
		Port:           getEnvInt("PORT", 8083),
		ServiceAddress: getEnv("SERVICE_ADDRESS", ""),

		APIBaseURL:     strings.TrimRight(getEnv("ORDERBASE_API_URL", "http://localhost:8080"), "/"),
		APIServiceName: getEnv("ORDERBASE_API_SERVICE", ""),
		APIUsername:    getEnv("ORDERBASE_API_USERNAME", ""),
		APIPassword:    getEnv("ORDERBASE_API_PASSWORD", ""),
		APITimeout:     getEnvDuration("ORDERBASE_API_TIMEOUT", 10*time.Second),

		TaxRate:    getEnv("TAX_RATE", "0.10"),
		ResetDelay: getEnvDuration("RESET_DELAY", 3*time.Second),
		QRBaseURL:  getEnv("QR_BASE_URL", "http://localhost:8080/html/view"),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		PostgresHost:     getEnv("POSTGRES_HOST", ""),
		PostgresPort:     getEnvInt("POSTGRES_PORT", 5432),
		PostgresUser:     getEnv("POSTGRES_USER", "orderbase"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "orderbase"),

		RedisHost: getEnv("REDIS_HOST", ""),
		RedisPort: getEnvInt("REDIS_PORT", 6379),
		CacheTTL:  getEnvDuration("CACHE_TTL", 5*time.Minute),
		LockTTL:   getEnvDuration("LOCK_TTL", 30*time.Second),

		RabbitMQHost:     getEnv("RABBITMQ_HOST", ""),
		RabbitMQPort:     getEnvInt("RABBITMQ_PORT", 5672),
		RabbitMQUser:     getEnv("RABBITMQ_USER", "guest"),
		RabbitMQPassword: getEnv("RABBITMQ_PASSWORD", "guest"),

		ConsulHost: getEnv("CONSUL_HOST", ""),
		ConsulPort: getEnvInt("CONSUL_PORT", 8500),
	}

	// the commit lock is extended before every backend call, so it has to
	// outlive the slowest one
	if minTTL := 2 * cfg.APITimeout; cfg.LockTTL < minTTL {
		log.Printf("⚠️ LOCK_TTL %s is shorter than two API timeouts, using %s", cfg.LockTTL, minTTL)
		cfg.LockTTL = minTTL
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
