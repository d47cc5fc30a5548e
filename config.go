package perfmon

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config defines the construction-time configuration for a Monitor.
// Fields may be loaded from a YAML file and overridden in code.
type Config struct {
	// UpdateInterval is the subscriber notification cadence.
	UpdateInterval time.Duration `yaml:"update_interval"`
	// MaxHistorySamples is each tracker's ring-buffer capacity.
	MaxHistorySamples int `yaml:"max_history_samples"`
	// TargetFPS is the display refresh rate assumed for dropped-frame
	// estimation.
	TargetFPS int `yaml:"target_fps"`

	// ReportRuntimeHeap feeds Go runtime heap numbers into the heap
	// cells, for hosts with no external runtime pushing them.
	ReportRuntimeHeap bool `yaml:"report_runtime_heap"`

	// Export enables Prometheus remote-write snapshot export when its
	// URL is set.
	Export ExportConfig `yaml:"export"`

	// Platform overrides the build-selected platform collaborator.
	Platform PlatformMetrics `yaml:"-"`

	// Optional logger
	Logger *zap.Logger `yaml:"-"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		UpdateInterval:    DefaultUpdateInterval,
		MaxHistorySamples: DefaultMaxSamples,
		TargetFPS:         DefaultTargetFPS,
		Export: ExportConfig{
			WriteTimeout: defaultWriteTimeout,
			Namespace:    "app",
			Subsystem:    "perf",
			ServiceName:  "service",
			CustomLabels: make(map[string]string),
		},
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}
