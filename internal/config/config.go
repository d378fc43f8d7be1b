package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is loaded once at startup and handed to every component at
// construction. Nothing reads the environment after LoadConfig returns,
// which keeps risk scoring and threshold checks deterministic under test.
type Config struct {
	Environment string

	Server        ServerConfig
	Logging       LoggingConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	Clickhouse    ClickhouseConfig
	Elasticsearch ElasticsearchConfig
	Kafka         KafkaConfig
	KMS           KMSConfig
	Auth          AuthConfig
	Security      SecurityConfig
	Bucketing     BucketingConfig
}

type ServerConfig struct {
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	Email        string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type ClickhouseConfig struct {
	URL      string
	Username string
	Password string
	Database string
}

type ElasticsearchConfig struct {
	URL           string
	Username      string
	Password      string
	IncidentIndex string
}

type KafkaConfig struct {
	Brokers       []string
	SecurityTopic string
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

type AuthConfig struct {
	JWTSigningKey       string
	SessionTTL          time.Duration
	InactivityTimeout   time.Duration
	VerificationCodeTTL time.Duration
}

// SecurityConfig carries every threshold used by the monitoring pipeline.
type SecurityConfig struct {
	HighRiskThreshold  int // incident creation
	AutoBlockThreshold int // automated response dispatch

	SweepWindow    time.Duration
	BaselineWindow time.Duration
	AnomalyWindow  time.Duration

	BruteForceThreshold    int
	MultiAccountThreshold  int
	OffHoursLoginThreshold int
	TakeoverPairThreshold  int
	ExfiltrationThreshold  int
	OffHoursStart          int // hour of day, inclusive
	OffHoursEnd            int // hour of day, exclusive

	IPBlockDuration      time.Duration
	AccountLockDuration  time.Duration
	VerificationDuration time.Duration

	RateLimitWindow     time.Duration
	IPRateLimit         int
	MemberRateLimit     int
}

type BucketingConfig struct {
	EventBuckets int
}

// LoadConfig reads the environment (plus .env in development) into a Config.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8080),
			TLSPort:      getEnvInt("SERVER_TLS_PORT", 8443),
			EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
			AutoCert:     getEnvBool("SERVER_AUTO_CERT", false),
			Domain:       getEnv("SERVER_DOMAIN", ""),
			Email:        getEnv("SERVER_ACME_EMAIL", ""),
			CertFile:     getEnv("SERVER_CERT_FILE", ""),
			KeyFile:      getEnv("SERVER_KEY_FILE", ""),
			AutoCertDir:  getEnv("SERVER_AUTOCERT_DIR", "/var/lib/taskly/autocert"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		},
		Scylla: ScyllaConfig{
			Nodes:    getEnvList("SCYLLA_NODES", "localhost:9042"),
			Keyspace: getEnv("SCYLLA_KEYSPACE", "taskly"),
			Username: getEnv("SCYLLA_USERNAME", ""),
			Password: getEnv("SCYLLA_PASSWORD", ""),
		},
		Clickhouse: ClickhouseConfig{
			URL:      getEnv("CLICKHOUSE_URL", "localhost:9000"),
			Username: getEnv("CLICKHOUSE_USERNAME", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			Database: getEnv("CLICKHOUSE_DATABASE", "taskly_audit"),
		},
		Elasticsearch: ElasticsearchConfig{
			URL:           getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Username:      getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:      getEnv("ELASTICSEARCH_PASSWORD", ""),
			IncidentIndex: getEnv("ELASTICSEARCH_INCIDENT_INDEX", "taskly-incidents"),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvList("KAFKA_BROKERS", "localhost:9092"),
			SecurityTopic: getEnv("KAFKA_SECURITY_TOPIC", "security-events"),
		},
		KMS: KMSConfig{
			Enabled: getEnvBool("KMS_ENABLED", false),
			KeyID:   getEnv("KMS_KEY_ID", ""),
			Region:  getEnv("KMS_REGION", "us-east-1"),
		},
		Auth: AuthConfig{
			JWTSigningKey:       getEnv("JWT_SIGNING_KEY", ""),
			SessionTTL:          getEnvDuration("SESSION_TTL", 24*time.Hour),
			InactivityTimeout:   getEnvDuration("SESSION_INACTIVITY_TIMEOUT", 30*time.Minute),
			VerificationCodeTTL: getEnvDuration("VERIFICATION_CODE_TTL", 10*time.Minute),
		},
		Security: SecurityConfig{
			HighRiskThreshold:      getEnvInt("SECURITY_HIGH_RISK_THRESHOLD", 70),
			AutoBlockThreshold:     getEnvInt("SECURITY_AUTO_BLOCK_THRESHOLD", 80),
			SweepWindow:            getEnvDuration("SECURITY_SWEEP_WINDOW", time.Hour),
			BaselineWindow:         getEnvDuration("SECURITY_BASELINE_WINDOW", 30*24*time.Hour),
			AnomalyWindow:          getEnvDuration("SECURITY_ANOMALY_WINDOW", 24*time.Hour),
			BruteForceThreshold:    getEnvInt("SECURITY_BRUTE_FORCE_THRESHOLD", 10),
			MultiAccountThreshold:  getEnvInt("SECURITY_MULTI_ACCOUNT_THRESHOLD", 5),
			OffHoursLoginThreshold: getEnvInt("SECURITY_OFF_HOURS_LOGIN_THRESHOLD", 3),
			TakeoverPairThreshold:  getEnvInt("SECURITY_TAKEOVER_PAIR_THRESHOLD", 2),
			ExfiltrationThreshold:  getEnvInt("SECURITY_EXFILTRATION_THRESHOLD", 5),
			OffHoursStart:          getEnvInt("SECURITY_OFF_HOURS_START", 22),
			OffHoursEnd:            getEnvInt("SECURITY_OFF_HOURS_END", 6),
			IPBlockDuration:        getEnvDuration("SECURITY_IP_BLOCK_DURATION", time.Hour),
			AccountLockDuration:    getEnvDuration("SECURITY_ACCOUNT_LOCK_DURATION", 15*time.Minute),
			VerificationDuration:   getEnvDuration("SECURITY_VERIFICATION_DURATION", time.Hour),
			RateLimitWindow:        getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			IPRateLimit:            getEnvInt("RATE_LIMIT_IP", 120),
			MemberRateLimit:        getEnvInt("RATE_LIMIT_MEMBER", 60),
		},
		Bucketing: BucketingConfig{
			EventBuckets: getEnvInt("EVENT_BUCKETS", 16),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	v := getEnv(key, fallback)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
