// Package config loads engine configuration from YAML or CUE files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rete/internal/session"
)

// DefaultMaxCycles bounds a single Fire call unless configured otherwise.
const DefaultMaxCycles = 10000

// Config is the engine configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`

	// MaxCycles limits rule firings per Fire call. 0 disables the limit.
	MaxCycles int `yaml:"max_cycles" json:"max_cycles" validate:"gte=0"`

	Journal JournalConfig `yaml:"journal" json:"journal"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// JournalConfig configures the SQLite event journal.
type JournalConfig struct {
	// Path of the journal database. Empty disables journaling.
	Path string `yaml:"path" json:"path" validate:"omitempty,endswith=.db"`
}

// MetricsConfig configures Prometheus counters.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		LogLevel:  "info",
		MaxCycles: DefaultMaxCycles,
	}
}

// Load reads a configuration file. The format is chosen by extension:
// .yaml and .yml are decoded strictly, .cue is unified with the config
// schema. Missing keys keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = decodeYAML(data, &cfg)
	case ".cue":
		err = decodeCUE(path, data, &cfg)
	default:
		err = fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		// An empty document keeps the defaults.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

// schemaCUE closes the config struct, so unknown fields are rejected, and
// supplies the defaults.
var schemaCUE = fmt.Sprintf(`
#Config: {
	log_level:  *"info" | "debug" | "warn" | "error"
	max_cycles: *%d | (int & >=0)
	journal: {
		path: *"" | string
	}
	metrics: {
		enabled: *false | bool
	}
}
`, DefaultMaxCycles)

func decodeCUE(path string, data []byte, cfg *Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return fmt.Errorf("compile cue: %w", err)
	}
	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validate cue: %w", err)
	}
	if err := unified.Decode(cfg); err != nil {
		return fmt.Errorf("decode cue: %w", err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SessionOptions converts the configuration to session options.
func (c Config) SessionOptions() []session.Option {
	return []session.Option{session.WithMaxCycles(c.MaxCycles)}
}
