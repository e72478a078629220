// Command clipforged is the capture daemon. It owns the ffmpeg
// pipeline, the replay buffer, and the recordings library, and exposes
// control over a Unix socket for the clipforge CLI.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"clipforge/internal/config"
	"clipforge/internal/daemon"
	"clipforge/internal/encoder"
	"clipforge/internal/engine"
	"clipforge/internal/events"
	"clipforge/internal/ipc"
	"clipforge/internal/library"
	"clipforge/internal/logging"
)

func main() {
	var socketFlag string
	var configFlag string
	flag.StringVar(&socketFlag, "socket", "", "control socket path (defaults to the configured log directory)")
	flag.StringVar(&configFlag, "config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := library.Open(cfg)
	if err != nil {
		logger.Error("open library store", logging.Error(err))
		return
	}

	bus := events.NewBus()
	selector := encoder.NewSelector(logger, encoder.ParseOrder(cfg.Encoder.Order))
	indexer := library.NewIndexer(store, cfg.FFprobeBinary())
	eng := engine.New(logger, cfg, bus, selector, indexer)

	d, err := daemon.New(cfg, logger, eng, store, bus)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	socketPath := strings.TrimSpace(socketFlag)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-ctx.Done()
	logger.Info("clipforged shutting down")
}
