package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"reviewqueue"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address               string        `envconfig:"REVIEWQUEUE_ADDRESS" default:":3443"`
	WorkerEndpointAddress string        `envconfig:"REVIEWQUEUE_WORKER_ENDPOINT_ADDRESS" default:":7443"`
	MetricsAddress        string        `envconfig:"REVIEWQUEUE_METRICS_ADDRESS" default:":8080"`
	LogLevel              string        `envconfig:"REVIEWQUEUE_LOG_LEVEL" default:"info"`
	WorkerToken           string        `envconfig:"REVIEWQUEUE_WORKER_TOKEN" default:""`
	RateLimitWindow       time.Duration `envconfig:"REVIEWQUEUE_RATE_LIMIT_WINDOW" default:"60s"`
	RateLimitMax          int           `envconfig:"REVIEWQUEUE_RATE_LIMIT_MAX" default:"10"`
	MigrationFolder       string        `envconfig:"REVIEWQUEUE_MIGRATIONS_FOLDER" default:""`
	Auth                  Auth
	Kafka                 kafkaConfig
}

type kafkaConfig struct {
	Brokers []string `envconfig:"REVIEWQUEUE_KAFKA_BROKERS" default:""`
	Topic   string   `envconfig:"REVIEWQUEUE_KAFKA_TOPIC" default:""`
}

type Auth struct {
	AuthenticationType string `envconfig:"REVIEWQUEUE_AUTH" default:""`
	JwkCertURL         string `envconfig:"REVIEWQUEUE_JWK_URL" default:""`
	LocalSigningKey    string `envconfig:"REVIEWQUEUE_JWT_SECRET" default:""`
}

// New loads the process-wide configuration from the environment. The
// configuration is read once; later calls return the same instance.
func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a configuration populated with defaults only, ignoring
// the environment. Used by tests.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{
			Type:     "pgsql",
			Hostname: "localhost",
			Port:     5432,
			Name:     "reviewqueue",
			User:     "admin",
			Password: "adminpass",
		},
		Service: &svcConfig{
			Address:               ":3443",
			WorkerEndpointAddress: ":7443",
			MetricsAddress:        ":8080",
			LogLevel:              "info",
			RateLimitWindow:       60 * time.Second,
			RateLimitMax:          10,
		},
	}
}
