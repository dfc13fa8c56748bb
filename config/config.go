// Package config loads the solver/server configuration: network and
// timetable paths, solve tunables, and server bind address, from a single
// YAML file via viper.
package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level application configuration for mbsolve/mbserve.
type Config struct {
	NetworkPath   string        `mapstructure:"networkPath"`
	TimetablePath string        `mapstructure:"timetablePath"`
	OutputPath    string        `mapstructure:"outputPath"`
	DT            time.Duration `mapstructure:"dt"`
	Lambda        float64       `mapstructure:"lambda"`

	LateEntryPossible bool `mapstructure:"lateEntryPossible"`
	LateExitPossible  bool `mapstructure:"lateExitPossible"`
	LateStopPossible  bool `mapstructure:"lateStopPossible"`

	Heuristic string `mapstructure:"heuristic"` // "zero" | "simple"
	Strategy  string `mapstructure:"strategy"`  // "singleEdge" | "nextTTD"

	Workers      int           `mapstructure:"workers"`
	SolveTimeout time.Duration `mapstructure:"solveTimeout"`

	LogLevel string `mapstructure:"logLevel"`

	ServerAddr string `mapstructure:"serverAddr"`
	ServerPort string `mapstructure:"serverPort"`
}

// Default returns a Config with the same conservative defaults as
// instance.DefaultOptions, expressed at the config layer.
func Default() Config {
	return Config{
		DT:           time.Second,
		Lambda:       1.0,
		Heuristic:    "simple",
		Strategy:     "nextTTD",
		Workers:      4,
		SolveTimeout: 0,
		LogLevel:     "info",
		ServerAddr:   "0.0.0.0",
		ServerPort:   "22222",
	}
}

// FromYaml reads a single YAML config file at path into a Config, defaults
// filled first so the file need only override what it cares about.
func FromYaml(path string) (*Config, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))

	cfg := Default()
	if err := vp.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := vp.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
