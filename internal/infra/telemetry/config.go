package telemetry

import (
	"errors"
	"fmt"
	"time"
)

type ExporterType string

const (
	ExporterStdout ExporterType = "stdout"
	ExporterOTLP   ExporterType = "otlp"
)

type OTLPConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	Insecure bool          `yaml:"insecure" json:"insecure"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

type Config struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	ServiceName string `yaml:"service_name" json:"service_name"`
	// Environment lands on the resource as deployment.environment.name.
	Environment string       `yaml:"environment" json:"environment"`
	Exporter    ExporterType `yaml:"exporter" json:"exporter"` // stdout|otlp
	// SampleRatio applies to request spans. Snapshot build spans are always kept.
	SampleRatio float64     `yaml:"sample_ratio" json:"sample_ratio"`
	OTLP        *OTLPConfig `yaml:"otlp" json:"otlp"`
	// StdoutFile redirects the stdout exporter, shared by traces and metrics.
	StdoutFile     string        `yaml:"stdout_file" json:"stdout_file"`
	StdoutPretty   bool          `yaml:"stdout_pretty" json:"stdout_pretty"`
	MetricInterval time.Duration `yaml:"metric_interval" json:"metric_interval"`
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.ServiceName == "" {
		out.ServiceName = "norns"
	}
	if out.SampleRatio <= 0 || out.SampleRatio > 1 {
		out.SampleRatio = 1
	}
	if out.Exporter == "" {
		out.Exporter = ExporterStdout
	}
	if out.OTLP != nil {
		otlp := *out.OTLP
		if otlp.Timeout <= 0 {
			otlp.Timeout = 5 * time.Second
		}
		out.OTLP = &otlp
	}
	if out.MetricInterval <= 0 {
		out.MetricInterval = 30 * time.Second
	}
	return out
}

func (c *Config) validate() error {
	switch c.Exporter {
	case ExporterStdout:
	case ExporterOTLP:
		if c.OTLP == nil || c.OTLP.Endpoint == "" {
			return errors.New("telemetry: otlp exporter needs otlp.endpoint")
		}
	default:
		return fmt.Errorf("telemetry: unsupported exporter %q", c.Exporter)
	}
	return nil
}
