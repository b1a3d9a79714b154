package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/thisisjab/docquery/audit"
	"github.com/thisisjab/docquery/client"
	"github.com/thisisjab/docquery/credentials"
	"github.com/thisisjab/docquery/storage"
	"github.com/thisisjab/docquery/stub"
	"github.com/thisisjab/docquery/transform"
	"go.yaml.in/yaml/v3"
)

const (
	EnvEndpoint  = "DOCQUERY_ENDPOINT"
	EnvToken     = "DOCQUERY_TOKEN"
	EnvTokenFile = "DOCQUERY_TOKEN_FILE"
)

type Config struct {
	Endpoint  string          `yaml:"endpoint"`
	Token     string          `yaml:"token"`
	TokenFile string          `yaml:"token_file"`
	Timeout   time.Duration   `yaml:"timeout"`
	Logger    LoggerConfig    `yaml:"logger"`
	Audit     AuditConfig     `yaml:"audit"`
	Transform TransformConfig `yaml:"transform"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Type   string `yaml:"type"`
	Output string `yaml:"output"`
}

// AuditConfig selects where request records are kept. An empty Type disables auditing.
type AuditConfig struct {
	Type          string        `yaml:"type"`
	BufferSize    uint          `yaml:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	Config        any           `yaml:"config"`
}

type TransformConfig struct {
	ScriptPath string `yaml:"script_path"`
}

// ServerConfig is the file format of the stub server.
type ServerConfig struct {
	Logger LoggerConfig `yaml:"logger"`
	Server stub.Config  `yaml:"server"`
}

func Default() Config {
	return Config{
		Timeout: 30 * time.Second,
		Logger: LoggerConfig{
			Level:  "warn",
			Type:   "colored-text",
			Output: "stderr",
		},
		Audit: AuditConfig{
			BufferSize:    100,
			FlushInterval: 5 * time.Second,
		},
	}
}

// Load reads the YAML file at path on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()

	fileContent, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read config file content: %w", err)
	}

	if err := yaml.Unmarshal(fileContent, &cfg); err != nil {
		return cfg, fmt.Errorf("cannot parse config file: %w", err)
	}

	return cfg, nil
}

func LoadServer(path string) (ServerConfig, error) {
	cfg := ServerConfig{Logger: LoggerConfig{Level: "info", Type: "json", Output: "stdout"}}

	fileContent, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read config file content: %w", err)
	}

	if err := yaml.Unmarshal(fileContent, &cfg); err != nil {
		return cfg, fmt.Errorf("cannot parse config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides connection settings from DOCQUERY_* variables.
func (cfg *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvEndpoint); ok {
		cfg.Endpoint = v
	}
	if v, ok := os.LookupEnv(EnvToken); ok {
		cfg.Token = v
	}
	if v, ok := os.LookupEnv(EnvTokenFile); ok {
		cfg.TokenFile = v
	}
}

// Runtime is everything built from a Config.
type Runtime struct {
	Database *client.Database
	Logger   *slog.Logger

	// Recorder is nil when auditing is disabled.
	Recorder *audit.Recorder
	// TokenFile is nil unless the token comes from a file.
	TokenFile *credentials.FileToken

	storage auditStorage
}

type auditStorage interface {
	audit.Storage
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
}

// Parse builds the logger, token source, audit recorder, transformer and
// database client. Audit storage is connected here. extra options are applied
// to the client last.
func (cfg Config) Parse(ctx context.Context, extra ...client.Option) (*Runtime, error) {
	logger, err := NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("cannot create logger: %w", err)
	}

	rt := &Runtime{Logger: logger}
	var opts []client.Option

	if cfg.TokenFile != "" {
		tf, err := credentials.NewFileToken(logger, cfg.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("cannot load token file: %w", err)
		}
		rt.TokenFile = tf
		opts = append(opts, client.WithTokenSource(tf))
	}

	if cfg.Transform.ScriptPath != "" {
		t, err := transform.NewLuaTransformer(transform.LuaTransformerConfig{ScriptPath: cfg.Transform.ScriptPath})
		if err != nil {
			return nil, fmt.Errorf("cannot create transformer: %w", err)
		}
		opts = append(opts, client.WithTransformer(t))
	}

	st, err := parseAuditStorage(cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("cannot create audit storage: %w", err)
	}

	if st != nil {
		rec, err := audit.NewRecorder(logger, st, audit.Config{
			BufferSize:    cfg.Audit.BufferSize,
			FlushInterval: cfg.Audit.FlushInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("cannot create audit recorder: %w", err)
		}

		if err := st.Connect(ctx); err != nil {
			return nil, fmt.Errorf("cannot connect audit storage: %w", err)
		}

		rt.storage = st
		rt.Recorder = rec
		opts = append(opts, client.WithRecorder(rec))
	}

	opts = append(opts, extra...)

	db, err := client.New(client.Config{
		Endpoint: cfg.Endpoint,
		Token:    cfg.Token,
		Timeout:  cfg.Timeout,
	}, logger, opts...)
	if err != nil {
		rt.Close(ctx) //nolint:errcheck
		return nil, err
	}
	rt.Database = db

	return rt, nil
}

// Start runs the background workers until ctx is done. The returned function
// blocks until all of them have stopped.
func (rt *Runtime) Start(ctx context.Context) (wait func()) {
	var wg sync.WaitGroup

	if rt.Recorder != nil {
		wg.Go(func() { rt.Recorder.Run(ctx) })
	}

	if rt.TokenFile != nil {
		wg.Go(func() {
			if err := rt.TokenFile.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				rt.Logger.Error("token file watcher stopped.", "error", err)
			}
		})
	}

	return wg.Wait
}

// Close releases the audit storage. Call it after the workers have stopped.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt.storage == nil {
		return nil
	}

	return rt.storage.Close(ctx)
}

func NewLogger(cfg LoggerConfig) (*slog.Logger, error) {
	var handler slog.Handler

	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	var w io.Writer
	switch cfg.Output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		return nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	switch cfg.Type {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "colored-text":
		handler = tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	default:
		return nil, fmt.Errorf("invalid log type: %s", cfg.Type)
	}

	return slog.New(handler), nil
}

func parseAuditStorage(cfg AuditConfig) (auditStorage, error) {
	switch cfg.Type {
	case "":
		return nil, nil

	case "clickhouse":
		var clickHouseConfig storage.ClickHouseStorageConfig

		if err := remarshal(cfg.Config, &clickHouseConfig); err != nil {
			return nil, fmt.Errorf("cannot parse clickhouse storage config: %w", err)
		}

		s, err := storage.NewClickHouseStorage(clickHouseConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create clickhouse storage: %w", err)
		}

		return s, nil

	default:
		return nil, fmt.Errorf("invalid audit storage type: %s", cfg.Type)
	}
}

// remarshal takes an input value, marshals it to YAML, and then unmarshals it into a new value of the same type.
// This is useful for converting generic interfaces (like map[string]any) into concrete struct types.
// The output parameter must be a pointer to the target type.
func remarshal(input any, output any) error {
	yamlBytes, err := yaml.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal to YAML: %w", err)
	}

	if err := yaml.Unmarshal(yamlBytes, output); err != nil {
		return fmt.Errorf("failed to unmarshal from YAML: %w", err)
	}

	return nil
}
