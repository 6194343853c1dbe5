package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jittakal/csvsplit/internal/compress"
)

// Loader handles configuration loading and validation.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CSVSPLIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// flagKeys maps configuration keys to the CLI flags that override them.
var flagKeys = map[string]string{
	"stdin":              "stdin",
	"max_rows":           "num-rows",
	"group_column":       "group-col",
	"header":             "header",
	"suffix_length":      "suffix-length",
	"input_compression":  "input-compression",
	"output_compression": "output-compression",
	"trigger":            "trigger",
	"engine":             "engine",
	"buffer_size":        "buffer-size",
	"queue_depth":        "queue-depth",
	"channel_depth":      "channel-depth",
	"metrics_addr":       "metrics-addr",
	"logging.level":      "log-level",
	"logging.format":     "log-format",
}

// Load layers defaults, an optional YAML file, CSVSPLIT_* environment
// variables, and CLI flags, then validates the result. flags may be
// nil.
func (l *Loader) Load(path string, flags *pflag.FlagSet) (*Config, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := l.v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key gets a
// default so CSVSPLIT_* environment variables are picked up during
// unmarshalling.
func (l *Loader) setDefaults() {
	l.v.SetDefault("file", "")
	l.v.SetDefault("stdin", false)
	l.v.SetDefault("max_rows", 0)
	l.v.SetDefault("header", false)
	l.v.SetDefault("trigger", "")
	l.v.SetDefault("metrics_addr", "")
	l.v.SetDefault("out_dir", ".")
	l.v.SetDefault("group_column", -1)
	l.v.SetDefault("suffix_length", 5)
	l.v.SetDefault("input_compression", "none")
	l.v.SetDefault("output_compression", "none")
	l.v.SetDefault("engine", EngineURing)
	l.v.SetDefault("buffer_size", 1<<20)
	l.v.SetDefault("queue_depth", 8)
	l.v.SetDefault("channel_depth", 1024)
	l.v.SetDefault("logging.level", "info")
	l.v.SetDefault("logging.format", "text")
}

// SetPositional records the positional input file and output directory
// arguments before Load.
func (l *Loader) SetPositional(file, outDir string) {
	if file != "" {
		l.v.Set("file", file)
	}
	if outDir != "" {
		l.v.Set("out_dir", outDir)
	}
}

// Validate checks the configuration for consistency.
func (l *Loader) Validate(c *Config) error {
	var errs []error

	if c.File == "" && !c.Stdin {
		errs = append(errs, errors.New("an input file or --stdin is required"))
	}
	if c.MaxRows <= 0 {
		errs = append(errs, errors.New("num-rows must be positive"))
	}
	if c.GroupColumn < -1 {
		errs = append(errs, fmt.Errorf("group-col must be zero-based, got %d", c.GroupColumn))
	}
	if c.SuffixLen < 1 || c.SuffixLen > 9 {
		errs = append(errs, fmt.Errorf("suffix-length must be between 1 and 9, got %d", c.SuffixLen))
	}

	in, err := compress.Parse(c.InputCompression)
	if err != nil {
		errs = append(errs, fmt.Errorf("input-compression: %w", err))
	}
	out, err := compress.Parse(c.OutputCompression)
	if err != nil {
		errs = append(errs, fmt.Errorf("output-compression: %w", err))
	} else if out == compress.Detect {
		errs = append(errs, errors.New("output-compression cannot be detect"))
	}
	if c.Stdin && in == compress.Detect {
		errs = append(errs, errors.New("detect compression requires a seekable input file, not stdin"))
	}

	switch c.Engine {
	case EngineURing:
		if out != compress.None {
			errs = append(errs, errors.New("output-compression requires --engine=sync or --engine=background"))
		}
	case EngineSync, EngineBackground:
	default:
		errs = append(errs, fmt.Errorf("unknown engine %q: uring, sync, background are supported", c.Engine))
	}

	if c.BufferSize < 4096 {
		errs = append(errs, fmt.Errorf("buffer-size must be at least 4096 bytes, got %d", c.BufferSize))
	}
	if c.QueueDepth < 2 || c.QueueDepth > 4096 {
		errs = append(errs, fmt.Errorf("queue-depth must be between 2 and 4096, got %d", c.QueueDepth))
	}
	if c.ChannelDepth < 1 {
		errs = append(errs, fmt.Errorf("channel-depth must be positive, got %d", c.ChannelDepth))
	}

	return errors.Join(errs...)
}

// InputType returns the parsed input compression type. Call after
// Validate.
func (c *Config) InputType() compress.Type {
	t, _ := compress.Parse(c.InputCompression)
	return t
}

// OutputType returns the parsed output compression type. Call after
// Validate.
func (c *Config) OutputType() compress.Type {
	t, _ := compress.Parse(c.OutputCompression)
	return t
}
