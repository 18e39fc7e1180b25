package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/sakashimaa/go-pet-project/shop/internal/utils"
)

const (
	EnvLocal = "local"
	EnvProd  = "prod"
)

type Config struct {
	Env      string  `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel string  `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTP     HTTP    `yaml:"http"`
	Postgres PG      `yaml:"postgres"`
	Redis    Redis   `yaml:"redis"`
	Kafka    Kafka   `yaml:"kafka"`
	Auth     Auth    `yaml:"auth"`
	Limiter  Limiter `yaml:"limiter"`
	Cart     Cart    `yaml:"cart"`
	Outbox   Outbox  `yaml:"outbox"`
	Tracing  Tracing `yaml:"tracing"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"4s"`
}

type PG struct {
	URL string `yaml:"url" env:"DB_URL" env-required:"true"`
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"REDIS_CACHE_TTL" env-default:"30s"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"shop-service-group"`
}

type Auth struct {
	AccessSecret string `yaml:"access_secret" env:"ACCESS_SECRET" env-required:"true"`
}

type Limiter struct {
	Max        int           `yaml:"max" env:"LIMITER_MAX" env-default:"20"`
	Expiration time.Duration `yaml:"expiration" env:"LIMITER_EXPIRATION" env-default:"5s"`
}

type Cart struct {
	TTL          time.Duration `yaml:"ttl" env:"CART_TTL" env-default:"24h"`
	ReapInterval time.Duration `yaml:"reap_interval" env:"CART_REAP_INTERVAL" env-default:"1m"`
	ReapBatch    int           `yaml:"reap_batch" env:"CART_REAP_BATCH" env-default:"50"`
}

type Outbox struct {
	BatchSize int           `yaml:"batch_size" env:"OUTBOX_BATCH_SIZE" env-default:"50"`
	Interval  time.Duration `yaml:"interval" env:"OUTBOX_INTERVAL" env-default:"500ms"`
}

type Tracing struct {
	Endpoint    string  `yaml:"endpoint" env:"JAEGER_ENDPOINT" env-default:"localhost:4318"`
	SampleRatio float64 `yaml:"sample_ratio" env:"TRACE_SAMPLE_RATIO" env-default:"1"`
}

func MustLoad() *Config {
	cfg, err := Load(utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml"))
	if err != nil {
		log.Fatalf("error reading config: %v", err)
	}

	return cfg
}

// Load reads the yaml file at path with env overrides. A missing file is
// not an error: the config then comes from the environment alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Printf("config file %s not found, reading environment only", path)

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}

		return &cfg, nil
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
