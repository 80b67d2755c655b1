package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/depgraph/internal/config"
	"github.com/OFFIS-RIT/depgraph/pkg/ai"
	"github.com/OFFIS-RIT/depgraph/pkg/graph"
	"github.com/OFFIS-RIT/depgraph/pkg/loader"
	ioloader "github.com/OFFIS-RIT/depgraph/pkg/loader/io"
	s3loader "github.com/OFFIS-RIT/depgraph/pkg/loader/s3"
	"github.com/OFFIS-RIT/depgraph/pkg/logger"
	"github.com/OFFIS-RIT/depgraph/pkg/logger/console"
	"github.com/OFFIS-RIT/depgraph/pkg/store"
)

// InitLogger installs the console logger configured by cfg.
func InitLogger(cfg *config.Config) {
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		Level:  cfg.LogLevel,
		Prefix: "depgraph",
	}))
}

// Graph connects the configured backend and wraps it in a builder. The
// caller closes the returned connector.
func Graph(ctx context.Context, cfg config.GraphConfig, obs graph.Observer) (*graph.Builder, store.Connector, error) {
	conn, err := Connectors().New(ctx, cfg.Type, cfg.ConnectionOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}
	b, err := graph.NewBuilder(graph.NewBuilderParams{Connector: conn, Observer: obs})
	if err != nil {
		_ = conn.Close(ctx)
		return nil, nil, err
	}
	logger.Debug("[Graph] Connected", "type", cfg.Type)
	return b, conn, nil
}

// Extractor builds the configured AI client and wraps it in an extractor.
// It returns nil, nil, nil when the provider type is "" or "NONE".
func Extractor(cfg config.AIConfig, retries int) (*ai.Extractor, ai.GraphAIClient, error) {
	if cfg.Type == "" || strings.EqualFold(cfg.Type, "NONE") {
		return nil, nil, nil
	}
	client, err := AIProviders().New(cfg.Type, cfg.ProviderOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s client: %w", cfg.Type, err)
	}
	return ai.NewExtractor(client, ai.WithRetries(retries)), client, nil
}

// SourceLoader returns the loader for the configured scan source.
func SourceLoader(ctx context.Context, cfg *config.Config) (loader.SourceLoader, error) {
	if strings.EqualFold(cfg.Scan.Source, "s3") {
		return s3loader.NewS3SourceLoader(ctx, s3loader.NewS3SourceLoaderParams{
			Bucket:    cfg.Scan.Bucket,
			Prefix:    cfg.Scan.Prefix,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
	}
	return ioloader.NewIOSourceLoader(cfg.Scan.RootDir), nil
}
