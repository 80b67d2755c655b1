// Package config loads the process configuration: an optional YAML file,
// overlaid with environment variables (a .env file is loaded first).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/OFFIS-RIT/depgraph/internal/util"
	"github.com/OFFIS-RIT/depgraph/pkg/ai"
	"github.com/OFFIS-RIT/depgraph/pkg/store"
	"gopkg.in/yaml.v3"
)

type GraphConfig struct {
	Type              string                  `yaml:"type"`
	ConnectionOptions store.ConnectionOptions `yaml:"connectionOptions"`
}

type AIConfig struct {
	Type            string             `yaml:"type"`
	ProviderOptions ai.ProviderOptions `yaml:"providerOptions"`
}

type ScanConfig struct {
	RootDir      string `yaml:"rootDir"`
	MicroService string `yaml:"microService"`
	Description  string `yaml:"description"`
	RouteSuffix  string `yaml:"routeSuffix"`
	// Source is "local" or "s3".
	Source      string `yaml:"source"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	AIRetries   int    `yaml:"aiRetries"`
	Concurrency int    `yaml:"concurrency"`
}

type ServerConfig struct {
	Port         string `yaml:"port"`
	MasterAPIKey string `yaml:"masterApiKey"`
	JWKSURL      string `yaml:"jwksUrl"`
}

type QueueConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// URL returns the AMQP URL, or "" when no host is configured.
func (q QueueConfig) URL() string {
	if q.Host == "" {
		return ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", q.User, q.Password, q.Host, q.Port)
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

type Config struct {
	Graph      GraphConfig  `yaml:"graph"`
	AIProvider AIConfig     `yaml:"aiProvider"`
	Scan       ScanConfig   `yaml:"scan"`
	Server     ServerConfig `yaml:"server"`
	Queue      QueueConfig  `yaml:"queue"`
	S3         S3Config     `yaml:"s3"`
	// LockDatabaseURL enables worker lease locks when set.
	LockDatabaseURL string `yaml:"lockDatabaseUrl"`
	Debug           bool   `yaml:"debug"`
	LogLevel        string `yaml:"logLevel"`
}

func defaults() *Config {
	return &Config{
		Graph: GraphConfig{Type: "ARCADEDB"},
		AIProvider: AIConfig{
			Type: "MOONSHOT",
		},
		Scan: ScanConfig{
			RootDir:     ".",
			RouteSuffix: ".routes.js",
			Source:      "local",
			AIRetries:   3,
			Concurrency: 4,
		},
		Server: ServerConfig{Port: "8080"},
		Queue: QueueConfig{
			Port:     "5672",
			User:     "guest",
			Password: "guest",
		},
		LogLevel: "info",
	}
}

// Load reads path (if non-empty and present) and applies environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	util.LoadEnv()

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setString(dst *string, key string) {
	if v := util.GetEnv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyEnv() {
	g := &c.Graph.ConnectionOptions
	setString(&c.Graph.Type, "GRAPH_TYPE")
	setString(&g.Host, "GRAPH_HOST")
	g.Port = util.GetEnvInt("GRAPH_PORT", g.Port)
	setString(&g.Database, "GRAPH_DATABASE")
	setString(&g.Username, "GRAPH_USERNAME")
	setString(&g.Password, "GRAPH_PASSWORD")
	setString(&g.URI, "DATABASE_URL")
	setString(&g.URI, "GRAPH_URI")

	p := &c.AIProvider.ProviderOptions
	setString(&c.AIProvider.Type, "AI_ADAPTER")
	setString(&p.APIKey, "AI_CHAT_KEY")
	setString(&p.BaseURL, "AI_CHAT_URL")
	setString(&p.Model, "AI_CHAT_MODEL")
	setString(&p.User, "AI_USER")
	setString(&p.Token, "AI_TOKEN")
	setString(&p.WorkflowURL, "AI_WORKFLOW_URL")
	p.MaxConcurrentRequests = int64(util.GetEnvInt("AI_PARALLEL_REQ", int(p.MaxConcurrentRequests)))

	setString(&c.Scan.RootDir, "SCAN_ROOT_DIR")
	setString(&c.Scan.MicroService, "SCAN_MICRO_SERVICE")
	setString(&c.Scan.Source, "SCAN_SOURCE")
	setString(&c.Scan.Bucket, "AWS_BUCKET")
	setString(&c.Scan.Prefix, "SCAN_PREFIX")
	c.Scan.Concurrency = util.GetEnvInt("SCAN_CONCURRENCY", c.Scan.Concurrency)

	setString(&c.Server.Port, "PORT")
	setString(&c.Server.MasterAPIKey, "MASTER_API_KEY")
	setString(&c.Server.JWKSURL, "AUTH_JWKS_URL")

	setString(&c.Queue.Host, "RABBITMQ_HOST")
	setString(&c.Queue.Port, "RABBITMQ_PORT")
	setString(&c.Queue.User, "RABBITMQ_USER")
	setString(&c.Queue.Password, "RABBITMQ_PASSWORD")

	setString(&c.S3.Endpoint, "AWS_ENDPOINT")
	setString(&c.S3.Region, "AWS_REGION")
	setString(&c.S3.AccessKey, "AWS_ACCESS_KEY")
	setString(&c.S3.SecretKey, "AWS_SECRET_KEY")

	setString(&c.LockDatabaseURL, "LOCK_DATABASE_URL")
	c.Debug = util.GetEnvBool("DEBUG", c.Debug)
	setString(&c.LogLevel, "LOG_LEVEL")
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.Graph.Type == "" {
		errs = append(errs, errors.New("graph.type is required"))
	}
	switch strings.ToLower(c.Scan.Source) {
	case "local":
	case "s3":
		if c.Scan.Bucket == "" {
			errs = append(errs, errors.New("scan.bucket is required for the s3 source"))
		}
	default:
		errs = append(errs, fmt.Errorf("scan.source must be local or s3, got %q", c.Scan.Source))
	}
	if c.Scan.Concurrency < 1 {
		errs = append(errs, errors.New("scan.concurrency must be at least 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
