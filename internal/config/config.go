package config

import "fmt"

// Config holds all memseries configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" env:"SERVER"`
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`
	Log      LogConfig      `yaml:"log" env:"LOG"`
	Sweep    SweepConfig    `yaml:"sweep" env:"SWEEP"`
}

type ServerConfig struct {
	Bind string `yaml:"bind" env:"BIND"`
	Port int    `yaml:"port" env:"PORT"`
	// MaxN caps the run length accepted by the series endpoints.
	MaxN int `yaml:"max_n" env:"MAX_N"`
	// SweepRate is sweep submissions per second; SweepBurst the bucket size.
	SweepRate  float64 `yaml:"sweep_rate" env:"SWEEP_RATE"`
	SweepBurst int     `yaml:"sweep_burst" env:"SWEEP_BURST"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" env:"FORMAT"` // json, console
}

type SweepConfig struct {
	Workers int `yaml:"workers" env:"WORKERS"` // 0 means GOMAXPROCS
	Window  int `yaml:"window" env:"WINDOW"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind:       "127.0.0.1",
			Port:       37780,
			MaxN:       2_000_000,
			SweepRate:  0.5,
			SweepBurst: 2,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Sweep: SweepConfig{
			Workers: 0,
			Window:  10000,
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.MaxN < 1 {
		return fmt.Errorf("server.max_n must be >= 1, got %d", c.Server.MaxN)
	}
	if c.Server.SweepRate <= 0 || c.Server.SweepBurst < 1 {
		return fmt.Errorf("server.sweep_rate and sweep_burst must be positive")
	}
	if c.Sweep.Workers < 0 {
		return fmt.Errorf("sweep.workers must be >= 0, got %d", c.Sweep.Workers)
	}
	if c.Sweep.Window < 1 {
		return fmt.Errorf("sweep.window must be >= 1, got %d", c.Sweep.Window)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}
