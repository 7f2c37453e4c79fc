package factory

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"rfid-bridge/internal/bridge"
	"rfid-bridge/internal/client"
	"rfid-bridge/internal/config"
	"rfid-bridge/internal/handler"
	redisrepo "rfid-bridge/internal/repository/redis"
	"rfid-bridge/internal/repository/scylla"
	"rfid-bridge/internal/service"
	"rfid-bridge/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config *config.Config

	// Clients
	mqttClient    *client.MQTTClient
	scyllaClient  *scylla.ScyllaClient
	redisClient   *client.RedisClient
	kafkaProducer *client.KafkaProducer

	// Repositories
	accessLogRepo     scylla.AccessLogRepository
	securityEventRepo scylla.SecurityEventRepository

	// Services
	accessService   *service.AccessService
	cardService     *service.CardService
	securityService *service.SecurityService

	dispatcher *bridge.Dispatcher

	closeOnce sync.Once
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{config: cfg}

	if err := f.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	f.initializeServices()
	f.wireTransport()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("redis_enabled", f.redisClient != nil),
		util.Bool("kafka_enabled", f.kafkaProducer != nil))

	return f, nil
}

func (f *Factory) initializeClients() error {
	// ScyllaDB is the system of record; without it the bridge is useless.
	scyllaClient, err := scylla.NewScyllaClient(f.config, util.Get())
	if err != nil {
		return fmt.Errorf("scylla: %w", err)
	}
	f.scyllaClient = scyllaClient
	if err := f.scyllaClient.HealthCheck(); err != nil {
		return fmt.Errorf("scylla health check: %w", err)
	}
	util.Info("ScyllaDB client initialized and healthy")

	f.mqttClient = client.NewMQTTClient(f.config, util.Get())

	// Redis backs API rate limiting only; run without it when unconfigured
	// or unreachable.
	if f.config.RedisEnabled() {
		if redisClient, err := client.NewRedisClient(f.config, util.Get()); err != nil {
			util.Warn("Redis initialization failed - proceeding without rate limiting", util.ErrorField(err))
		} else {
			f.redisClient = redisClient
		}
	}

	// Kafka mirrors events for downstream consumers; also optional.
	if f.config.KafkaEnabled() {
		if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without audit stream", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
		}
	}

	return nil
}

func (f *Factory) initializeServices() {
	f.accessLogRepo = scylla.NewAccessLogRepository(f.scyllaClient)
	f.securityEventRepo = scylla.NewSecurityEventRepository(f.scyllaClient)

	var streamer service.EventStreamer
	if f.kafkaProducer != nil {
		streamer = f.kafkaProducer
	}

	f.accessService = service.NewAccessService(f.accessLogRepo, streamer, util.Get())
	f.cardService = service.NewCardService(f.accessLogRepo, f.mqttClient, f.config.MQTT.Topics, util.Get())
	f.securityService = service.NewSecurityService(f.securityEventRepo, streamer, util.Get())

	f.dispatcher = bridge.NewDispatcher(f.config.MQTT.Topics,
		f.accessService, f.cardService, f.securityService, util.Get())
}

// wireTransport registers the dispatcher on the subscribed topics and hooks
// the card sync pass to every (re)connection.
func (f *Factory) wireTransport() {
	for _, topic := range f.dispatcher.Topics() {
		f.mqttClient.Handle(topic, f.dispatcher.Dispatch)
	}

	f.mqttClient.OnConnect(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := f.cardService.SyncAuthorized(ctx); err != nil {
			util.Error("Card sync pass failed", util.ErrorField(err))
		}
	})
}

// Connect starts the MQTT connection (retrying in background on failure).
func (f *Factory) Connect() error {
	return f.mqttClient.Connect()
}

// Router builds the HTTP router over the initialized services.
func (f *Factory) Router() http.Handler {
	bridgeHandler := handler.NewBridgeHandler(f.cardService, f.securityService, util.Get())

	var rateLimit func(http.Handler) http.Handler
	if f.redisClient != nil {
		cache := redisrepo.NewRateLimitCache(f.redisClient)
		rateLimit = handler.RateLimitMiddleware(cache, f.config.RateLimit.RequestsPerMinute, util.Get())
	}

	return handler.NewRouter(bridgeHandler, rateLimit, f.mqttClient.IsConnected, util.Get())
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(); err != nil {
			healthErrors["scylla"] = err
		}
	} else {
		healthErrors["scylla"] = fmt.Errorf("scylla client not initialized")
	}

	if f.mqttClient != nil && !f.mqttClient.IsConnected() {
		healthErrors["mqtt"] = fmt.Errorf("mqtt client not connected")
	}

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}

	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	return healthErrors
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		util.Info("Shutting down factory...")

		if f.mqttClient != nil {
			f.mqttClient.Disconnect()
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}
