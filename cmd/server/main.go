package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/simforge/simforge/internal/core/config"
	"github.com/simforge/simforge/internal/core/gameplay"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/scenes"
	"github.com/simforge/simforge/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error loading config:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := injector.ProvideLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", log.Error(err))
	}
}

func run(cfg *config.Config, logger log.Log) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := injector.ProvideEngine(cfg, logger)

	if cfg.Gameplay.Enabled {
		if err := eng.InstallPlugin(gameplay.Plugin(injector.ProvideTunables(cfg))); err != nil {
			return fmt.Errorf("installing gameplay bundle: %w", err)
		}
	}

	for _, sc := range cfg.Scenes {
		eng.AddScene(&scenes.Scene{
			ID:       sc.ID,
			Name:     sc.Name,
			Systems:  sc.Systems,
			Settings: sc.Settings,
		})
	}

	if err := eng.Init(); err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}
	eng.Start()
	defer eng.Close()

	if cfg.StartScene != "" {
		if err := eng.LoadScene(cfg.StartScene); err != nil {
			return fmt.Errorf("loading start scene: %w", err)
		}
	}

	gateway := injector.ProvideGateway(cfg, eng, logger)
	if err := gateway.Start(ctx); err != nil {
		return fmt.Errorf("starting gateway: %w", err)
	}

	saver := injector.ProvideSaver(cfg, eng, logger)
	if saver != nil {
		if err := saver.Start(); err != nil {
			return fmt.Errorf("starting saver: %w", err)
		}
	}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-stopCh
	cancel()

	logger.Info("Shutting down")
	if err := gateway.Stop(context.Background()); err != nil {
		logger.Error("Error stopping gateway", log.Error(err))
	}
	if saver != nil {
		saver.Stop()
	}
	return nil
}
