package config

import (
	"github.com/spf13/viper"
)

// FlightctlConfig holds CLI settings read from $HOME/.flightctl.yaml and
// FLIGHTCTL_* environment variables.
type FlightctlConfig struct {
	DefaultOutput      string `mapstructure:"default_output"`
	DefaultCompression string `mapstructure:"default_compression"`
	DiagnosticsPath    string `mapstructure:"diagnostics_path"`
	InspectRows        int    `mapstructure:"inspect_rows"`
	QuietDiagnostics   bool   `mapstructure:"quiet_diagnostics"`
}

func Load() (*FlightctlConfig, error) {
	var cfg FlightctlConfig

	// Set defaults
	viper.SetDefault("default_output", "output/flights.parquet")
	viper.SetDefault("default_compression", "snappy")
	viper.SetDefault("diagnostics_path", "")
	viper.SetDefault("inspect_rows", 10)
	viper.SetDefault("quiet_diagnostics", false)

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func GetString(key string) string {
	return viper.GetString(key)
}
