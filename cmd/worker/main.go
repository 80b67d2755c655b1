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
	"github.com/OFFIS-RIT/depgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/depgraph/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
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

	params := queue.NewHandlerParams{Creator: b}

	// Lease locks serialise trees that share a root across workers.
	if cfg.LockDatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.LockDatabaseURL)
		if err != nil {
			logger.Fatal("Unable to connect to lock database", "err", err)
		}
		defer pool.Close()
		locks := leaselock.New(pool)
		if err := locks.EnsureSchema(ctx); err != nil {
			logger.Fatal("Failed to create lock table", "err", err)
		}
		params.Locker = locks
	}

	h, err := queue.NewHandler(params)
	if err != nil {
		logger.Fatal("Failed to create handler", "err", err)
	}

	url := cfg.Queue.URL()
	if url == "" {
		logger.Fatal("RABBITMQ_HOST is required")
	}
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

	if err := queue.Consume(ctx, ch, queue.VertexQueue, h, m); err != nil {
		logger.Fatal("Consumer stopped", "err", err)
	}
}
