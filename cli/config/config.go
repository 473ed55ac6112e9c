package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pithecene-io/adbshell/shell"
)

// Config represents an adbshell.yaml configuration file.
// All values are optional and act as defaults for adbshell flags.
// CLI flags always override config values.
type Config struct {
	Encoding     string             `yaml:"encoding"`
	ChunkSize    int                `yaml:"chunk_size"`
	Receiver     string             `yaml:"receiver"`
	Serial       string             `yaml:"serial"`
	LogLevel     string             `yaml:"log_level"`
	ErrorSensing ErrorSensingConfig `yaml:"error_sensing"`
	// Sentinels overrides the byte receiver's prompt prefixes. An explicit
	// empty list disables sentinel filtering.
	Sentinels *[]string     `yaml:"sentinels,omitempty"`
	Adapter   AdapterConfig `yaml:"adapter"`
	Archive   ArchiveConfig `yaml:"archive"`
}

// ErrorSensingConfig holds failure-signature defaults.
type ErrorSensingConfig struct {
	// Enabled turns sensing on. Nil leaves the CLI default in place.
	Enabled *bool `yaml:"enabled,omitempty"`
	// Signatures replaces the built-in signature set when non-empty.
	Signatures []SignatureConfig `yaml:"signatures,omitempty"`
}

// SignatureConfig is one failure signature.
type SignatureConfig struct {
	Kind    string `yaml:"kind"`
	Pattern string `yaml:"pattern"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// ArchiveConfig holds archive sink defaults from the config file.
type ArchiveConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Sensor builds the configured error-sensing policy. It returns nil when
// sensing is not enabled in the file. Custom signatures replace the
// built-in set.
func (c *Config) Sensor() (*shell.Sensor, error) {
	if c.ErrorSensing.Enabled == nil || !*c.ErrorSensing.Enabled {
		return nil, nil
	}
	if len(c.ErrorSensing.Signatures) == 0 {
		return shell.DefaultSensor(), nil
	}

	sigs := make([]shell.Signature, 0, len(c.ErrorSensing.Signatures))
	for i, sc := range c.ErrorSensing.Signatures {
		kind, err := shell.ParseFailureKind(strings.TrimSpace(sc.Kind))
		if err != nil {
			return nil, fmt.Errorf("error_sensing.signatures[%d]: %w", i, err)
		}
		sig, err := shell.NewSignature(kind, sc.Pattern)
		if err != nil {
			return nil, fmt.Errorf("error_sensing.signatures[%d]: %w", i, err)
		}
		sigs = append(sigs, sig)
	}
	return shell.NewSensor(sigs...), nil
}
