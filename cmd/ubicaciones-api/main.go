// README: Entry point; loads config, wires the location store, geo index and MQTT ingest, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ubicaciones/internal/config"
	httptransport "ubicaciones/internal/http"
	"ubicaciones/internal/infra"
	"ubicaciones/internal/ingest"
	"ubicaciones/internal/modules/location"
)

type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}

	log, err := infra.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.Fatal(err)
	}
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.WithError(err).Fatal("server exited")
	}
	log.Info("server stopped")
}

// run owns every resource it opens and releases them before returning, so
// main can exit on error without leaking connections.
func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer closeStore()

	if s, ok := store.(schemaEnsurer); ok {
		if err := s.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	opts := []location.Option{location.WithTimeout(cfg.Store.Timeout), location.WithLogger(log)}
	if cfg.Redis.Addr != "" {
		redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		opts = append(opts, location.WithGeoIndex(location.NewRedisGeoIndex(redisClient)))
		log.WithField("addr", cfg.Redis.Addr).Info("geo index enabled")
	}

	locationSvc := location.NewService(store, opts...)

	if cfg.MQTT.Broker != "" {
		sub := ingest.NewSubscriber(ctx, locationSvc, cfg.MQTT.Topic, log)
		mqttClient, err := infra.NewMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID, sub.OnConnect)
		if err != nil {
			return err
		}
		defer mqttClient.Disconnect(250)
		log.WithField("broker", cfg.MQTT.Broker).Info("mqtt ingest enabled")
	}

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Location:    locationSvc,
		Logger:      log,
		CORSOrigins: cfg.HTTP.CORSOrigins,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("http shutdown")
		}
	}()

	log.WithFields(logrus.Fields{"addr": server.Addr, "store": cfg.Store.Driver}).Info("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// openStore builds the configured backend and returns its close function.
func openStore(ctx context.Context, cfg config.StoreConfig) (location.Repository, func(), error) {
	switch cfg.Driver {
	case config.StoreMongo:
		client, err := infra.NewMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		coll := client.Database(cfg.MongoDB).Collection(location.MongoCollectionName)
		return location.NewMongoStore(coll), func() { _ = client.Disconnect(context.Background()) }, nil
	case config.StoreSQLite:
		db, err := infra.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return location.NewSQLiteStore(db), func() { _ = db.Close() }, nil
	default:
		pool, err := infra.NewDB(ctx, cfg.DatabaseURL, cfg.InsecureTLS)
		if err != nil {
			return nil, nil, err
		}
		return location.NewPostgresStore(pool), pool.Close, nil
	}
}
