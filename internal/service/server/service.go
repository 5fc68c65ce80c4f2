package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	mqttapi "github.com/oshokin/catpoint/internal/api/mqtt/security"
	"github.com/oshokin/catpoint/internal/classifier"
	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/mqtt"
	"github.com/oshokin/catpoint/internal/notify"
	repo "github.com/oshokin/catpoint/internal/repository/security"
	"github.com/oshokin/catpoint/internal/service/security"
)

// panel bundles the engine with everything that has to be released on shutdown.
type panel struct {
	// engine is the alarm decision engine.
	engine *security.Service
	// sensorListeners fill the engine's single sensor listener slot.
	sensorListeners notify.SensorFanout
	// registry holds the panel metrics.
	registry *prometheus.Registry
	// closers release resources in reverse order of acquisition.
	closers []func() error
}

// errUnknownBackend is returned for storage backends Validate let through.
var errUnknownBackend = errors.New("unknown storage backend")

// newPanel builds the repository, classifier and engine and attaches the
// log and metrics listeners. MQTT is attached separately, see attachMQTT.
func newPanel(ctx context.Context, settings *config.Config) (*panel, error) {
	p := &panel{
		registry: prometheus.NewRegistry(),
	}

	repository, closeRepository, err := openRepository(ctx, &settings.Storage)
	if err != nil {
		return nil, err
	}

	p.closers = append(p.closers, closeRepository)
	p.engine = security.NewService(repository, newClassifier(&settings.Classifier))

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics, err := notify.NewMetricsListener(p.registry)
	if err != nil {
		p.close(ctx)

		return nil, err
	}

	for _, listener := range []security.StatusListener{notify.NewLogListener(), metrics} {
		if err = p.engine.AddStatusListener(listener); err != nil {
			p.close(ctx)

			return nil, err
		}
	}

	p.addSensorListener(notify.NewLogListener())

	return p, nil
}

// addSensorListener appends listener to the sensor fanout installed in the engine.
func (p *panel) addSensorListener(listener notify.SensorStatusListener) {
	p.sensorListeners = append(p.sensorListeners, listener)
	p.engine.SetSensorStatusListener(p.sensorListeners)
}

// attachMQTT connects to the broker, subscribes to command topics and
// mirrors engine notifications to status topics.
func (p *panel) attachMQTT(ctx context.Context, settings *config.MQTT) error {
	if !settings.Enabled() {
		return nil
	}

	client, err := mqtt.Connect(ctx, mqtt.Options{
		Broker:   settings.Broker,
		ClientID: settings.ClientID,
		Username: settings.Username,
		Password: settings.Password,
	})
	if err != nil {
		return err
	}

	p.closers = append(p.closers, func() error {
		client.Close()

		return nil
	})

	publisher := notify.NewMQTTPublisher(client, p.engine, settings.TopicPrefix)
	if err = p.engine.AddStatusListener(publisher); err != nil {
		return err
	}

	p.addSensorListener(publisher)

	// Single sensor commands leave the sensor listener silent, refresh the topic here.
	handler := mqttapi.NewHandler(
		p.engine,
		settings.TopicPrefix,
		mqttapi.WithSensorsChanged(publisher.OnSensorStatusChanged),
	)

	if err = handler.Register(ctx, client); err != nil {
		return fmt.Errorf("register mqtt handlers: %w", err)
	}

	return nil
}

// close releases every resource, logging failures.
func (p *panel) close(ctx context.Context) {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			logger.ErrorKV(ctx, "Failed to release resource", "error", err)
		}
	}

	p.closers = nil
}

// openRepository creates the configured state repository and its release function.
func openRepository(ctx context.Context, storage *config.Storage) (repo.Repository, func() error, error) {
	noop := func() error { return nil }

	switch storage.Backend {
	case config.BackendMemory:
		return repo.NewMemoryRepository(), noop, nil
	case config.BackendFile, "":
		return repo.NewFileRepository(storage.StateFile), noop, nil
	case config.BackendRedis:
		redisRepository := repo.NewRedisRepository(
			repo.NewRedisClient(storage.RedisAddress, storage.RedisPassword, storage.RedisDB),
			storage.RedisKeyPrefix)

		if err := redisRepository.Ping(ctx); err != nil {
			_ = redisRepository.Close()

			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}

		return redisRepository, redisRepository.Close, nil
	case config.BackendSQLite:
		sqlRepository, err := repo.OpenSQLite(ctx, storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}

		return sqlRepository, sqlRepository.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", errUnknownBackend, storage.Backend)
	}
}

// newClassifier creates the configured image classifier.
func newClassifier(settings *config.Classifier) classifier.Classifier {
	if settings.Kind == config.ClassifierRemote {
		return classifier.NewRemoteClassifier(classifier.RemoteOptions{
			BaseURL:    settings.URL,
			Timeout:    settings.Timeout,
			MaxRetries: settings.MaxRetries,
		})
	}

	return classifier.NewFakeClassifier()
}
