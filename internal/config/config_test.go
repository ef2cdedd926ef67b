package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "UBICACIONES_HTTP_ADDR", "UBICACIONES_CORS_ORIGINS", "UBICACIONES_STORE", "DATABASE_URL",
		"UBICACIONES_DB_INSECURE_TLS", "UBICACIONES_STORE_TIMEOUT", "UBICACIONES_REDIS_ADDR",
		"UBICACIONES_MQTT_BROKER", "UBICACIONES_MQTT_TOPIC", "UBICACIONES_LOG_LEVEL", "UBICACIONES_LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/ubicaciones")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.HTTP.Addr)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.True(t, cfg.Store.InsecureTLS)
	assert.Equal(t, 5*time.Second, cfg.Store.Timeout)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.MQTT.Broker)
	assert.Equal(t, "ubicacion/+", cfg.MQTT.Topic)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_PortAndOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8081")
	t.Setenv("UBICACIONES_STORE", "SQLite")
	t.Setenv("UBICACIONES_DB_INSECURE_TLS", "false")
	t.Setenv("UBICACIONES_STORE_TIMEOUT", "750ms")
	t.Setenv("UBICACIONES_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.HTTP.Addr)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.False(t, cfg.Store.InsecureTLS)
	assert.Equal(t, 750*time.Millisecond, cfg.Store.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url": {},
		"unknown driver":       {"UBICACIONES_STORE": "cassandra"},
		"bad bool":             {"UBICACIONES_STORE": "sqlite", "UBICACIONES_DB_INSECURE_TLS": "maybe"},
		"bad duration":         {"UBICACIONES_STORE": "sqlite", "UBICACIONES_STORE_TIMEOUT": "soon"},
		"negative duration":    {"UBICACIONES_STORE": "sqlite", "UBICACIONES_STORE_TIMEOUT": "-1s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
