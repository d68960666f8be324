package remotedisk

import (
	"github.com/mwantia/remotedisk/log"
	"github.com/mwantia/remotedisk/metrics"
)

type DiskOptions struct {
	LogName        string
	LogLevel       log.LogLevel
	Logger         *log.Logger
	ThreadPoolSize int
	QueueSize      int
	Metrics        *metrics.DiskMetrics
}

type DiskOption func(*DiskOptions) error

func newDefaultDiskOptions() *DiskOptions {
	return &DiskOptions{
		LogLevel:       log.Info,
		ThreadPoolSize: 4,
		QueueSize:      1024,
	}
}

// WithLogName sets the diagnostic tag used for this disk's log output.
// Defaults to the disk name.
func WithLogName(name string) DiskOption {
	return func(opts *DiskOptions) error {
		opts.LogName = name
		return nil
	}
}

func WithLogLevel(level log.LogLevel) DiskOption {
	return func(opts *DiskOptions) error {
		opts.LogLevel = level
		return nil
	}
}

// WithLogLevelName sets the log level from its textual name, as carried in
// configuration files. Unknown names fall back to Info.
func WithLogLevelName(level string) DiskOption {
	return func(opts *DiskOptions) error {
		opts.LogLevel = log.Parse(level)
		return nil
	}
}

// WithLogger replaces the disk's own logger with a shared one.
func WithLogger(logger *log.Logger) DiskOption {
	return func(opts *DiskOptions) error {
		opts.Logger = logger
		return nil
	}
}

// WithThreadPoolSize sets the worker count of the disk's async executor.
func WithThreadPoolSize(size int) DiskOption {
	return func(opts *DiskOptions) error {
		opts.ThreadPoolSize = size
		return nil
	}
}

// WithQueueSize bounds the async executor's task queue.
func WithQueueSize(size int) DiskOption {
	return func(opts *DiskOptions) error {
		opts.QueueSize = size
		return nil
	}
}

// WithMetrics enables Prometheus metrics for this disk.
func WithMetrics(m *metrics.DiskMetrics) DiskOption {
	return func(opts *DiskOptions) error {
		opts.Metrics = m
		return nil
	}
}
