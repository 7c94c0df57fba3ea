package main

import (
	"context"
	"os/signal"
	"syscall"

	_ "thermostat_control/docs"
	"thermostat_control/internal/config"
	"thermostat_control/internal/engine"
	"thermostat_control/internal/handlers"
	"thermostat_control/internal/logger"
	"thermostat_control/internal/mqtt"
	"thermostat_control/internal/repository"
	"thermostat_control/internal/repository/db"
	"thermostat_control/internal/server"
	"thermostat_control/internal/service"
)

// @title                       Thermostat Control API
// @version                     1.0
// @description                 Regulates electric heaters from weighted temperature sources.
// @host                        localhost:8080
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.InfoLevel, logger.FormatConsole).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.LogLevel, cfg.LogFormat)

	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// cancelled on SIGINT/SIGTERM; stops the regulator, broker handlers and HTTP server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos := repository.NewRepository(sqlDB)
	fleet, err := newFleet(ctx, cfg, repos, log)
	if err != nil {
		log.Fatalw("failed to build thermostats", "err", err)
	}

	routes := mqttRoutes(cfg)
	var (
		broker *mqtt.Client
		sink   service.CommandSink
	)
	if cfg.MQTT.Enabled {
		broker, err = mqtt.Connect(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, log)
		if err != nil {
			log.Fatalw("failed to connect mqtt broker", "err", err, "broker", cfg.MQTT.Broker)
		}
		defer broker.Close()
		sink = mqtt.NewPublisher(broker, routes, cfg.MQTT.QoS)
	} else {
		log.Infow("mqtt disabled; commands are logged only")
		sink = service.NewLogSink(log)
	}

	services := service.NewService(repos, service.Deps{
		Fleet:  fleet,
		Sink:   sink,
		Clock:  service.SystemClock{},
		Auth:   service.AuthConfig{SigningKey: cfg.Auth.SigningKey, TokenTTL: cfg.Auth.TokenTTL},
		Logger: log,
	})

	// heaters start OFF whatever the device last received
	if err := services.Regulator.Sync(ctx); err != nil {
		log.Warnw("initial heater sync failed", "err", err)
	}
	go services.Regulator.Run(ctx, cfg.Engine.Tick)

	if broker != nil {
		bridge := mqtt.NewBridge(broker, services.Control, routes, cfg.MQTT.QoS, service.SystemClock{}, log)
		if err := bridge.Start(ctx); err != nil {
			log.Fatalw("failed to subscribe thermostat topics", "err", err)
		}
	}

	srv := server.New(cfg.Port, handlers.NewHandler(services, log).InitRoutes())
	log.Infow("http server started", "addr", srv.Addr())
	if err := srv.Serve(ctx); err != nil {
		log.Errorw("http server stopped", "err", err)
	}
	stop()
	log.Infow("shutting down")

	// nothing regulates the heaters once the process exits
	if err := services.Regulator.Sync(context.Background()); err != nil {
		log.Warnw("final heater sync failed", "err", err)
	}
}

// newFleet builds one engine per configured thermostat and restores the
// stored enabled, alarm and setpoint values.
func newFleet(ctx context.Context, cfg *config.Config, repos *repository.Repository, log *logger.Logger) (*service.Fleet, error) {
	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}
	specs := make([]service.ThermostatSpec, 0, len(cfg.Thermostats))
	for _, t := range cfg.Thermostats {
		specs = append(specs, service.ThermostatSpec{ID: t.ID, Setpoint: t.Setpoint, Enabled: t.Enabled})
	}
	fleet, err := service.NewFleet(specs, engine.Options{
		Settings:     settings,
		Tuning:       cfg.Tuning(),
		MaxSampleAge: cfg.Engine.MaxSampleAge,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}
	if err := fleet.Restore(ctx, repos.StateRepo); err != nil {
		return nil, err
	}
	return fleet, nil
}

func mqttRoutes(cfg *config.Config) []mqtt.Route {
	routes := make([]mqtt.Route, 0, len(cfg.Thermostats))
	for _, t := range cfg.Thermostats {
		routes = append(routes, mqtt.Route{
			ThermostatID: t.ID,
			LocationID:   cfg.MQTT.LocationID,
			DeviceID:     t.DeviceID,
			SensorID:     t.SensorID,
		})
	}
	return routes
}
