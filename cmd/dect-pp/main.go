// Command dect-pp simulates a portable part: it subscribes to a fixed
// part, locates, and optionally sends a message or places a call.
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

	"github.com/dbehnke/dect-nwk/pkg/cc"
	"github.com/dbehnke/dect-nwk/pkg/config"
	"github.com/dbehnke/dect-nwk/pkg/event"
	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/mm"
	"github.com/dbehnke/dect-nwk/pkg/network"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	fs := pflag.NewFlagSet("dect-pp", pflag.ExitOnError)
	configFile := fs.StringP("config", "c", "config.yaml", "Path to configuration file")
	showVersion := fs.Bool("version", false, "Show version information")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.String("fp", "127.0.0.1:6810", "TCP address of the fixed part")
	fs.Uint32("psn", 0x83d1e, "Portable serial number")
	fs.String("dial", "", "Extension to call once attached")
	message := fs.String("message", "", "Text to send once attached")
	hold := fs.Duration("hold", 10*time.Second, "Hang up connected calls after this long, 0 to keep them")
	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("dect-pp %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	err := config.BindFlags(fs, map[string]string{
		"log-level": "logging.level",
		"fp":        "pp.fp_address",
		"psn":       "pp.psn",
		"dial":      "pp.extension",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	})

	do := script{dial: cfg.PP.Extension, message: *message, hold: *hold}
	if err := run(cfg, do, log); err != nil {
		log.Error("Portable failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, do script, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ipui := identity.IPUI{Type: identity.IPUITypeN, IPEI: identity.IPEI{EMC: cfg.PP.EMC, PSN: cfg.PP.PSN}}
	log.Info("Starting dect-pp",
		logger.String("version", version),
		logger.String("ipui", ipui.String()),
		logger.String("fp", cfg.PP.FPAddress))

	loop := event.NewLoop(log)
	transport := network.NewTransport(network.Config{
		FPAddress:  cfg.PP.FPAddress,
		PageListen: cfg.Network.PageListen,
	}, loop, log)

	link := lce.New(lce.Config{
		Mode:                  lce.ModePP,
		MaxQueue:              cfg.LCE.MaxQueue,
		ReleaseTimeout:        cfg.LCE.ReleaseTimeout,
		PartialReleaseTimeout: cfg.LCE.PartialReleaseTimeout,
		LocalIPUI:             ipui,
		LocalTPUI:             identity.DefaultTPUI(ipui),
	}, loop, transport, log)
	transport.SetHost(link)

	ari := identity.ARI{Class: identity.ARIClassA, EMC: cfg.FP.EMC, FPN: cfg.FP.FPN}
	h, err := newHandset(link, do,
		mm.Config{TimeoutScale: cfg.MM.TimeoutScale},
		cc.Config{
			ReleaseTimeout: cfg.CC.ReleaseTimeout,
			FixedIdentity:  &sfmt.FixedIdentity{Kind: sfmt.FixedIDARI, ARI: ari},
		},
		log)
	if err != nil {
		return err
	}

	if err := transport.ListenPages(); err != nil {
		log.Warn("Pages will not be received", logger.Error(err))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil {
			log.Error("Event loop error", logger.Error(err))
		}
	}()
	loop.Post(h.start)

	sig := <-sigChan
	log.Info("Received shutdown signal", logger.String("signal", sig.String()))

	stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	err = loop.Do(stopCtx, func() error {
		h.detach()
		return nil
	})
	if err == nil {
		// give the detach a moment to leave before the links drop
		time.Sleep(200 * time.Millisecond)
		err = loop.Do(stopCtx, func() error {
			link.Shutdown()
			return nil
		})
	}
	stop()
	if err != nil {
		log.Warn("Shutdown incomplete", logger.Error(err))
	}

	cancel()
	if err := transport.Close(); err != nil {
		log.Debug("Transport close", logger.Error(err))
	}
	wg.Wait()
	log.Info("dect-pp stopped")
	return nil
}
