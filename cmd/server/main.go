package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/depgraph/internal/config"
	"github.com/OFFIS-RIT/depgraph/internal/metrics"
	"github.com/OFFIS-RIT/depgraph/internal/providers"
	"github.com/OFFIS-RIT/depgraph/internal/queue"
	"github.com/OFFIS-RIT/depgraph/internal/server"
	mid "github.com/OFFIS-RIT/depgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/depgraph/pkg/logger"

	"github.com/MicahParks/keyfunc/v3"
)

func main() {
	configPath := flag.String("config", "depgraph.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", "err", err)
	}
	providers.InitLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	b, conn, err := providers.Graph(ctx, cfg.Graph, m)
	if err != nil {
		logger.Fatal("Failed to connect to graph", "err", err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	if err := b.InitGraph(ctx); err != nil {
		logger.Fatal("Failed to initialise graph", "err", err)
	}

	app := &mid.App{Graph: b, MasterAPIKey: cfg.Server.MasterAPIKey}

	if cfg.Server.JWKSURL != "" {
		k, err := keyfunc.NewDefault([]string{cfg.Server.JWKSURL})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		app.KeyFunc = k.Keyfunc
	}

	if url := cfg.Queue.URL(); url != "" {
		que, err := queue.Dial(url)
		if err != nil {
			logger.Fatal("Failed to connect to queue", "err", err)
		}
		defer que.Close()
		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, queue.VertexQueue); err != nil {
			logger.Fatal("Failed to declare queues", "err", err)
		}
		app.Queue = ch
	} else {
		logger.Warn("RABBITMQ_HOST not set, asynchronous writes are disabled")
	}

	e, err := server.New(server.NewServerParams{App: app, Metrics: m.Handler()})
	if err != nil {
		logger.Fatal("Failed to create server", "err", err)
	}
	if err := server.Run(ctx, e, cfg.Server.Port); err != nil {
		logger.Fatal("Server stopped", "err", err)
	}
}
