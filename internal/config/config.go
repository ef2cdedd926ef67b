// README: Config loader with env defaults for HTTP, store backends, Redis, MQTT and logging.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreSQLite   = "sqlite"
)

type StoreConfig struct {
	Driver      string
	DatabaseURL string
	InsecureTLS bool
	MongoURI    string
	MongoDB     string
	SQLitePath  string
	Timeout     time.Duration
}

type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
}

type Config struct {
	HTTP struct {
		Addr        string
		CORSOrigins []string
	}
	Store StoreConfig
	Redis struct {
		Addr string
	}
	MQTT MQTTConfig
	Log  struct {
		Level  string
		Format string
	}
}

// Load reads configuration from the environment, after loading .env if present.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	cfg.HTTP.Addr = envOrDefault("UBICACIONES_HTTP_ADDR", ":"+envOrDefault("PORT", "3000"))
	cfg.HTTP.CORSOrigins = splitList(envOrDefault("UBICACIONES_CORS_ORIGINS", "*"))

	cfg.Store.Driver = strings.ToLower(envOrDefault("UBICACIONES_STORE", StorePostgres))
	cfg.Store.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.Store.MongoURI = envOrDefault("MONGO_URI", "mongodb://localhost:27017")
	cfg.Store.MongoDB = envOrDefault("MONGO_DB", "ubicaciones")
	cfg.Store.SQLitePath = envOrDefault("UBICACIONES_SQLITE_PATH", "data/ubicaciones.db")

	var err error
	if cfg.Store.InsecureTLS, err = envOrDefaultBool("UBICACIONES_DB_INSECURE_TLS", true); err != nil {
		return Config{}, err
	}
	if cfg.Store.Timeout, err = envOrDefaultDuration("UBICACIONES_STORE_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}

	cfg.Redis.Addr = os.Getenv("UBICACIONES_REDIS_ADDR")

	cfg.MQTT.Broker = os.Getenv("UBICACIONES_MQTT_BROKER")
	cfg.MQTT.Topic = envOrDefault("UBICACIONES_MQTT_TOPIC", "ubicacion/+")
	cfg.MQTT.ClientID = envOrDefault("UBICACIONES_MQTT_CLIENT_ID", fmt.Sprintf("ubicaciones-%d", os.Getpid()))

	cfg.Log.Level = envOrDefault("UBICACIONES_LOG_LEVEL", "info")
	cfg.Log.Format = envOrDefault("UBICACIONES_LOG_FORMAT", "text")

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store.Driver {
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when UBICACIONES_STORE=%s", StorePostgres)
		}
	case StoreMongo, StoreSQLite:
	default:
		return fmt.Errorf("invalid UBICACIONES_STORE %q: want postgres, mongo or sqlite", c.Store.Driver)
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("UBICACIONES_STORE_TIMEOUT must be positive")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func envOrDefaultDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
