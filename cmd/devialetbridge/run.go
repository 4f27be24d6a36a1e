package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/gray-logic-devialet/internal/api"
	"github.com/nerrad567/gray-logic-devialet/internal/bridges/devialetmqtt"
	"github.com/nerrad567/gray-logic-devialet/internal/coordinator"
	"github.com/nerrad567/gray-logic-devialet/internal/devialet"
	"github.com/nerrad567/gray-logic-devialet/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-devialet/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-devialet/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-devialet/internal/infrastructure/mqtt"
)

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML file to load; empty configures from the environment
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting Devialet bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	client, err := devialet.NewClient(devialet.Options{
		Host:    cfg.Device.IP,
		Timeout: cfg.GetRequestTimeout(),
		InfoTTL: cfg.GetInfoTTL(),
		Logger:  log.With("component", "devialet"),
	})
	if err != nil {
		return fmt.Errorf("creating device client: %w", err)
	}
	defer client.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := coordinator.NewMetrics(registry, cfg.Device.ID)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	// Connect to InfluxDB (optional)
	influxClient, err := connectInflux(ctx, cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	coordCfg := coordinator.Config{
		Interval: cfg.GetPollInterval(),
		Metrics:  metrics,
		Logger:   log.With("component", "coordinator"),
	}
	if influxClient != nil {
		coordCfg.OnPoll = func(ok bool, elapsed time.Duration) {
			influxClient.WritePoll(cfg.Device.ID, ok, elapsed)
		}
	}
	coord := coordinator.New(client, coordCfg)
	registry.MustRegister(coordinator.NewStateCollector(coord, cfg.Device.ID))

	if influxClient != nil {
		unsubscribe := coord.Subscribe(func(state devialet.DeviceState) {
			influxClient.WriteState(stateSample(cfg.Device.ID, state))
		})
		defer unsubscribe()
	}

	// Connect to MQTT and start the bridge (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		var bridge *devialetmqtt.Bridge
		mqttClient, bridge, err = startBridge(ctx, cfg, coord, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			bridge.Stop()
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled")
	}

	coord.Start(ctx)
	defer func() {
		log.Info("stopping poller")
		coord.Stop()
	}()
	log.Info("polling device",
		"ip", cfg.Device.IP,
		"interval", cfg.GetPollInterval(),
	)

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Logger:      log.With("component", "api"),
			Coordinator: coord,
			DeviceID:    cfg.Device.ID,
			Gatherer:    registry,
			Version:     version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. Poller
	// 3. MQTT bridge and connection
	// 4. InfluxDB
	// 5. Device client

	log.Info("Devialet bridge stopped")
	return nil
}

// connectInflux returns nil, nil when InfluxDB is disabled.
func connectInflux(ctx context.Context, cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}

// startBridge connects to the broker and starts the MQTT bridge.
//
// Returns:
//   - *mqtt.Client: Connected client; the caller closes it
//   - *devialetmqtt.Bridge: Running bridge; the caller stops it
//   - error: If the broker is unreachable or the bridge fails to start
func startBridge(ctx context.Context, cfg *config.Config, coord *coordinator.Coordinator, log *logging.Logger) (*mqtt.Client, *devialetmqtt.Bridge, error) {
	topics := mqtt.NewTopics(cfg.Bridge.TopicPrefix, cfg.Device.ID)

	client, err := mqtt.Connect(cfg.MQTT, topics.Status())
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.With("component", "mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	bridge, err := devialetmqtt.NewBridge(devialetmqtt.Options{
		BridgeID:       "devialet-" + cfg.Device.ID,
		DeviceID:       cfg.Device.ID,
		TopicPrefix:    cfg.Bridge.TopicPrefix,
		Version:        version,
		HealthInterval: time.Duration(cfg.Bridge.HealthInterval) * time.Second,
		QoS:            byte(cfg.MQTT.QoS), // #nosec G115 -- validated to 0..2
		MQTT:           client,
		Coordinator:    coord,
		Logger:         log.With("component", "bridge"),
	})
	if err != nil {
		_ = client.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("creating MQTT bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		_ = client.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("starting MQTT bridge: %w", err)
	}
	log.Info("MQTT bridge started", "topics", topics.All())

	return client, bridge, nil
}

// stateSample flattens a DeviceState into an InfluxDB point.
func stateSample(deviceID string, s devialet.DeviceState) influxdb.StateSample {
	return influxdb.StateSample{
		DeviceID:      deviceID,
		Volume:        s.Volume,
		Muted:         s.Muted,
		PlaybackState: string(s.PlaybackState),
		Source:        s.CurrentSource,
		EqPreset:      string(s.EqPreset),
		EqLow:         s.EqLow,
		EqHigh:        s.EqHigh,
		NightMode:     s.NightMode,
		Time:          s.UpdatedAt,
	}
}
