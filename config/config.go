// Package config loads the pipeline configuration from YAML files and
// TFPREP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-tfprep/pipeline"
)

// EnvPrefix prefixes environment overrides, e.g. TFPREP_DM=56.7.
const EnvPrefix = "TFPREP"

// New returns a viper instance carrying the defaults and the environment
// bindings. Callers may bind command-line flags to it before Decode.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, pipeline.DefaultConfig())
	return v
}

func setDefaults(v *viper.Viper, d pipeline.Config) {
	v.SetDefault("mode", string(d.Mode))
	v.SetDefault("td", d.TD)
	v.SetDefault("fd", d.FD)
	v.SetDefault("bswidth", d.BSWidth)
	v.SetDefault("zaplist", d.ZapList)
	v.SetDefault("zapchannels", d.ZapChannels)
	v.SetDefault("rfilist", d.RFIList)
	v.SetDefault("bandlimit", d.BandLimit)
	v.SetDefault("widthlimit", d.WidthLimit)
	v.SetDefault("bandlimitkt", d.BandLimitKT)
	v.SetDefault("threkadanet", d.ThreKadaneT)
	v.SetDefault("threkadanef", d.ThreKadaneF)
	v.SetDefault("thremask", d.ThreMask)
	v.SetDefault("filltype", d.FillType)
	v.SetDefault("dm", d.DM)
	v.SetDefault("rm", d.RM)
	v.SetDefault("computestats", d.ComputeStats)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("kernel", d.Kernel)
	v.SetDefault("seed", d.Seed)
}

// Load reads path, applies environment overrides and validates the result.
// An empty path yields the defaults plus environment overrides.
func Load(path string) (pipeline.Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return pipeline.Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}
	return Decode(v)
}

// Read is Load for configuration text from r.
func Read(r io.Reader) (pipeline.Config, error) {
	v := New()
	if err := v.ReadConfig(r); err != nil {
		return pipeline.Config{}, fmt.Errorf("error reading config: %w", err)
	}
	return Decode(v)
}

// Decode unmarshals the settings held by v into a validated Config.
func Decode(v *viper.Viper) (pipeline.Config, error) {
	var cfg pipeline.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return pipeline.Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return cfg, nil
}

// Marshal encodes cfg as YAML.
func Marshal(cfg pipeline.Config) ([]byte, error) {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("error marshaling config: %w", err)
	}
	return data, nil
}

// ErrExists is returned by WriteDefault when the target file exists.
var ErrExists = errors.New("config: file exists")

// WriteDefault writes the default configuration to path, creating parent
// directories. An existing file is left untouched.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	data, err := Marshal(pipeline.DefaultConfig())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	return nil
}
