package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/dbehnke/dect-nwk/pkg/config"
	"github.com/dbehnke/dect-nwk/pkg/database"
	"github.com/dbehnke/dect-nwk/pkg/event"
	"github.com/dbehnke/dect-nwk/pkg/fp"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/metrics"
	"github.com/dbehnke/dect-nwk/pkg/mqtt"
	"github.com/dbehnke/dect-nwk/pkg/network"
	"github.com/dbehnke/dect-nwk/pkg/web"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	// Parse command line flags
	fs := pflag.NewFlagSet("dect-fp", pflag.ExitOnError)
	configFile := fs.StringP("config", "c", "config.yaml", "Path to configuration file")
	showVersion := fs.Bool("version", false, "Show version information")
	validate := fs.Bool("validate", false, "Validate configuration and exit")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.String("listen", "0.0.0.0:6810", "TCP address links are accepted on")
	fs.String("db", "dect-nwk.db", "Path to the portable registry")
	_ = fs.Parse(os.Args[1:])

	// Show version
	if *showVersion {
		fmt.Printf("dect-fp %s (%s, built %s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	err := config.BindFlags(fs, map[string]string{
		"log-level": "logging.level",
		"listen":    "network.listen",
		"db":        "database.path",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate only mode
	if *validate {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	})
	web.SetVersionInfo(version, commit, buildTime)

	log.Info("Starting dect-fp",
		logger.String("version", version),
		logger.String("build_time", buildTime),
		logger.String("config_file", *configFile))

	if err := run(cfg, log); err != nil {
		log.Error("Fixed part failed", logger.Error(err))
		os.Exit(1)
	}
	log.Info("dect-fp stopped")
}

func run(cfg *config.Config, log *logger.Logger) error {
	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	db, err := database.NewDB(database.Config{Path: cfg.Database.Path}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database", logger.Error(err))
		}
	}()

	metricsCollector := metrics.NewCollector()
	loop := event.NewLoop(log)

	transport := network.NewTransport(network.Config{
		Listen:      cfg.Network.Listen,
		PageAddress: cfg.Network.PageAddress,
	}, loop, log)
	transport.SetStats(metricsCollector)

	lceCfg := lce.Config{
		Mode:                  lce.ModeFP,
		MaxQueue:              cfg.LCE.MaxQueue,
		ReleaseTimeout:        cfg.LCE.ReleaseTimeout,
		PartialReleaseTimeout: cfg.LCE.PartialReleaseTimeout,
		PageTimeout:           cfg.LCE.PageTimeout,
		PageRetries:           cfg.LCE.PageRetries,
	}
	link := lce.New(lceCfg, loop, transport, log)
	transport.SetHost(link)
	link.AddObserver(metricsCollector.Observe)

	opts := fp.Options{DB: db, Metrics: metricsCollector}

	// Initialize MQTT publisher if enabled
	var mqttPublisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		mqttPublisher = mqtt.New(
			mqtt.Config{
				Enabled:     cfg.MQTT.Enabled,
				Broker:      cfg.MQTT.Broker,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				QoS:         cfg.MQTT.QoS,
				Retained:    cfg.MQTT.Retained,
			},
			log.WithComponent("mqtt"),
		)
		opts.Publisher = mqttPublisher
	}

	app, err := fp.New(fp.ConfigFrom(cfg), link, opts, log)
	if err != nil {
		return err
	}

	server := web.NewServer(cfg.Web, log, app, db)
	server.GetAPI().OnUnsubscribe(app.Unsubscribe)
	if cfg.Web.Enabled {
		app.SetEvents(server.GetHub())
		link.AddObserver(server.GetHub().BroadcastLCEEvent)
	}

	if err := transport.Listen(); err != nil {
		return err
	}

	// Initialize wait group for goroutines
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil {
			log.Error("Event loop error", logger.Error(err))
		}
	}()

	// Start Prometheus metrics server if enabled
	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metricsServer := metrics.NewPrometheusServer(
				metrics.PrometheusConfig{
					Enabled: cfg.Metrics.Prometheus.Enabled,
					Port:    cfg.Metrics.Prometheus.Port,
					Path:    cfg.Metrics.Prometheus.Path,
				},
				metricsCollector,
				log.WithComponent("metrics"),
			)
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Prometheus metrics server error", logger.Error(err))
			}
		}()
		log.Info("Prometheus metrics server started",
			logger.Int("port", cfg.Metrics.Prometheus.Port),
			logger.String("path", cfg.Metrics.Prometheus.Path))
	}

	if mqttPublisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mqttPublisher.Start(ctx); err != nil && err != context.Canceled {
				log.Error("MQTT publisher error", logger.Error(err))
			}
		}()
		log.Info("MQTT publisher started",
			logger.String("broker", cfg.MQTT.Broker),
			logger.String("topic_prefix", cfg.MQTT.TopicPrefix))
	}

	// Start web server if enabled
	if cfg.Web.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Web server error", logger.Error(err))
			}
		}()
		log.Info("Web server started",
			logger.String("host", cfg.Web.Host),
			logger.Int("port", cfg.Web.Port))
	}

	log.Info("Fixed part running",
		logger.String("server_name", cfg.Server.Name),
		logger.String("listen", cfg.Network.Listen))

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info("Received shutdown signal",
		logger.String("signal", sig.String()))

	// Release the links while the loop still runs
	stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	err = loop.Do(stopCtx, func() error {
		app.Close()
		link.Shutdown()
		return nil
	})
	stop()
	if err != nil {
		log.Warn("Link shutdown incomplete", logger.Error(err))
	}

	// Cancel context to trigger graceful shutdown
	cancel()

	// Stop MQTT publisher if running
	if mqttPublisher != nil {
		mqttPublisher.Stop()
	}
	if err := transport.Close(); err != nil {
		log.Debug("Transport close", logger.Error(err))
	}

	// Wait for all components to stop
	wg.Wait()
	return nil
}
