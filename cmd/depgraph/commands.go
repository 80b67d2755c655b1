package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/OFFIS-RIT/depgraph/internal/config"
	"github.com/OFFIS-RIT/depgraph/internal/metrics"
	"github.com/OFFIS-RIT/depgraph/internal/providers"
	"github.com/OFFIS-RIT/depgraph/internal/scan"
	"github.com/OFFIS-RIT/depgraph/pkg/ai"
	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/graph"
	"github.com/OFFIS-RIT/depgraph/pkg/logger"
	"github.com/OFFIS-RIT/depgraph/pkg/schema"

	"github.com/spf13/cobra"
)

// cli carries the state shared by all subcommands.
type cli struct {
	configPath string
	cfg        *config.Config
	metrics    *metrics.Collectors

	// openGraph connects the configured backend; tests replace it.
	openGraph func(ctx context.Context, cfg *config.Config, obs graph.Observer) (*graph.Builder, func(), error)
}

func newCLI() *cli {
	return &cli{
		metrics: metrics.New(),
		openGraph: func(ctx context.Context, cfg *config.Config, obs graph.Observer) (*graph.Builder, func(), error) {
			b, conn, err := providers.Graph(ctx, cfg.Graph, obs)
			if err != nil {
				return nil, nil, err
			}
			return b, func() { _ = conn.Close(context.WithoutCancel(ctx)) }, nil
		},
	}
}

// withGraph runs fn against an open builder and closes it afterwards.
func (c *cli) withGraph(cmd *cobra.Command, fn func(ctx context.Context, b *graph.Builder) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, closeGraph, err := c.openGraph(ctx, c.cfg, c.metrics)
	if err != nil {
		return err
	}
	defer closeGraph()
	return fn(ctx, b)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "depgraph",
		Short:        "Build and query typed dependency graphs",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			providers.InitLogger(cfg)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "depgraph.yaml", "path to the YAML config file")

	rootCmd.AddCommand(
		initCmd(c),
		createCmd(c),
		scanCmd(c),
		verticesCmd(c),
		traversalCmd(c, "descendants", "List every path leaving a vertex", (*graph.Builder).GetDescendants),
		traversalCmd(c, "ancestors", "List every path reaching a vertex", (*graph.Builder).GetAncestors),
	)
	return rootCmd
}

func initCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create vertex types, the Uses edge type and unique indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withGraph(cmd, func(ctx context.Context, b *graph.Builder) error {
				if err := b.InitGraph(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "graph %s initialised\n", c.cfg.Graph.Type)
				return nil
			})
		},
	}
}

func createCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "create [file|-]",
		Short: "Create a vertex tree read from a JSON file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 0 || args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read vertex tree: %w", err)
			}

			var spec schema.VertexSpec
			if err := json.Unmarshal(data, &spec); err != nil {
				return fmt.Errorf("malformed vertex tree: %w", err)
			}
			vertex, err := schema.Decode(&spec)
			if err != nil {
				return err
			}

			return c.withGraph(cmd, func(ctx context.Context, b *graph.Builder) error {
				records, err := b.CreateVertex(ctx, vertex, "")
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), records)
			})
		},
	}
}

func scanCmd(c *cli) *cobra.Command {
	var (
		rootDir      string
		microService string
		description  string
		pushURL      string
		noAI         bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a JavaScript repository into the graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootDir != "" {
				c.cfg.Scan.RootDir = rootDir
			}
			if microService != "" {
				c.cfg.Scan.MicroService = microService
			}
			if description != "" {
				c.cfg.Scan.Description = description
			}
			sc := c.cfg.Scan
			if sc.MicroService == "" {
				return errors.New("a micro service name is required (--micro-service or SCAN_MICRO_SERVICE)")
			}

			return c.withGraph(cmd, func(ctx context.Context, b *graph.Builder) error {
				src, err := providers.SourceLoader(ctx, c.cfg)
				if err != nil {
					return err
				}

				params := scan.NewScannerParams{
					Creator:      b,
					Loader:       src,
					MicroService: sc.MicroService,
					Description:  sc.Description,
					RouteSuffix:  sc.RouteSuffix,
					Concurrency:  sc.Concurrency,
				}
				var client ai.GraphAIClient
				if !noAI {
					extractor, aiClient, err := providers.Extractor(c.cfg.AIProvider, sc.AIRetries)
					if err != nil {
						return err
					}
					if extractor != nil {
						params.Describer = extractor
						client = aiClient
					}
				}

				s, err := scan.NewScanner(params)
				if err != nil {
					return err
				}
				res, err := s.Run(ctx)
				if err != nil {
					return err
				}
				c.metrics.ModulesScanned(res.Modules)
				if client != nil {
					usage := client.GetMetrics()
					c.metrics.AIUsage(usage)
					logger.Info("[Scan] AI usage", "input_tokens", usage.InputTokens, "output_tokens", usage.OutputTokens)
				}
				if pushURL != "" {
					if err := c.metrics.Push(ctx, pushURL, "depgraph_scan"); err != nil {
						logger.Warn("[Scan] Failed to push metrics", "url", pushURL, "err", err)
					}
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&rootDir, "root", "", "repository root (overrides scan.rootDir)")
	cmd.Flags().StringVar(&microService, "micro-service", "", "micro service the repository implements")
	cmd.Flags().StringVar(&description, "description", "", "description of the micro service")
	cmd.Flags().StringVar(&pushURL, "pushgateway", "", "Prometheus Pushgateway to push scan metrics to")
	cmd.Flags().BoolVar(&noAI, "no-ai", false, "describe functions by name instead of asking the AI provider")
	return cmd
}

func verticesCmd(c *cli) *cobra.Command {
	var (
		category string
		ids      []string
	)
	cmd := &cobra.Command{
		Use:   "vertices",
		Short: "List vertices by category or by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (category == "") == (len(ids) == 0) {
				return errors.New("exactly one of --category and --ids is required")
			}
			cat := common.Category(category)
			if category != "" && !cat.Valid() {
				return fmt.Errorf("unknown category %q, must be one of %v", category, common.Categories)
			}

			return c.withGraph(cmd, func(ctx context.Context, b *graph.Builder) error {
				var (
					records []*common.VertexRecord
					err     error
				)
				if category != "" {
					records, err = b.GetVerticesByCategory(ctx, cat)
				} else {
					records, err = b.GetVerticesByIDs(ctx, ids)
				}
				if err != nil {
					return err
				}
				if records == nil {
					records = []*common.VertexRecord{}
				}
				return printJSON(cmd.OutOrStdout(), records)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "businessModule, microService, systemModule or component")
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "comma separated vertex ids")
	return cmd
}

type traversal func(b *graph.Builder, ctx context.Context, q common.VertexQuery) ([]common.Path, error)

func traversalCmd(c *cli, use, short string, walk traversal) *cobra.Command {
	var q common.VertexQuery
	var category string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Category = common.Category(strings.TrimSpace(category))
			return c.withGraph(cmd, func(ctx context.Context, b *graph.Builder) error {
				paths, err := walk(b, ctx, q)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), paths)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category of the start vertex")
	cmd.Flags().StringVar(&q.Name, "name", "", "name of the start vertex")
	cmd.Flags().StringVar(&q.MicroService, "micro-service", "", "micro service of a system module or component")
	cmd.Flags().StringVar(&q.SystemModule, "system-module", "", "system module of a component")
	return cmd
}
