// Package config implements configuration loading and validation.
package config

// Config is the validated option set consumed by the splitting
// pipeline.
type Config struct {
	// File is the input path; empty only with Stdin.
	File string `mapstructure:"file"`
	// OutDir is the output directory.
	OutDir string `mapstructure:"out_dir"`
	// Stdin reads records from standard input.
	Stdin bool `mapstructure:"stdin"`

	// MaxRows is the row-count rotation threshold per output file.
	MaxRows int `mapstructure:"max_rows"`
	// GroupColumn is the zero-based column whose equal consecutive
	// values must stay together; -1 disables grouping. The input must
	// already be sorted by this column.
	GroupColumn int `mapstructure:"group_column"`
	// Header treats the first row as a header re-emitted into every
	// output file.
	Header bool `mapstructure:"header"`
	// SuffixLen is the width of the zero-padded file sequence number.
	SuffixLen int `mapstructure:"suffix_length"`

	// InputCompression is none|gzip|bzip|detect.
	InputCompression string `mapstructure:"input_compression"`
	// OutputCompression is none|gzip|bzip; only valid with the sync or
	// background engines.
	OutputCompression string `mapstructure:"output_compression"`

	// Trigger is a shell command template executed after each finished
	// file; {} is the absolute path, {/} the basename, {rows} the row
	// count.
	Trigger string `mapstructure:"trigger"`

	// Engine selects the write path: uring (asynchronous buffer
	// cache), sync (buffered writer), or background (channel-fed
	// writer thread).
	Engine string `mapstructure:"engine"`
	// BufferSize is the capacity of each encode buffer in bytes.
	BufferSize int `mapstructure:"buffer_size"`
	// QueueDepth is the I/O concurrency limit and buffer pool size.
	QueueDepth int `mapstructure:"queue_depth"`
	// ChannelDepth bounds the background writer's record channel.
	ChannelDepth int `mapstructure:"channel_depth"`

	// MetricsAddr enables the ops endpoint when non-empty.
	MetricsAddr string `mapstructure:"metrics_addr"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Engine values.
const (
	EngineURing      = "uring"
	EngineSync       = "sync"
	EngineBackground = "background"
)
