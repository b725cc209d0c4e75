package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DataDir is where the reservation store lives. Empty means the
	// OS-specific application data directory.
	DataDir string `json:"dataDir"`
	// HTTPAddr is the API listen address.
	HTTPAddr string `json:"httpAddr"`

	// LockDir, when set, makes generators coordinate across processes:
	// everyone configured with the same directory shares one logical
	// sequence counter behind a filesystem lock.
	LockDir string `json:"lockDir"`
	// LockTimeoutMs bounds each lock acquisition.
	LockTimeoutMs int `json:"lockTimeoutMs"`

	// MachineID/MachineBits reserve high bits of the random field for a
	// fixed per-machine value. MachineBits = 0 disables the extension.
	MachineID   int `json:"machineId"`
	MachineBits int `json:"machineBits"`

	Reserve ReserveConfig `json:"reserve"`

	LogLevel  string `json:"logLevel"`
	LogFormat string `json:"logFormat"`
}

// ReserveConfig controls the optional collision-reservation store.
type ReserveConfig struct {
	Enabled bool `json:"enabled"`
	// Fsync is always|interval|never.
	Fsync string `json:"fsync"`
	// FsyncIntervalMs is the group-commit window when Fsync is interval.
	FsyncIntervalMs int `json:"fsyncIntervalMs"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr:      ":8080",
		LockTimeoutMs: 1000,
		Reserve: ReserveConfig{
			Enabled:         false,
			Fsync:           "interval",
			FsyncIntervalMs: 5,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// LockTimeout returns the configured lock timeout as a duration.
func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	if c.MachineBits < 0 || c.MachineBits > 10 {
		return fmt.Errorf("config: machineBits %d out of range [0,10]", c.MachineBits)
	}
	if c.MachineBits > 0 && (c.MachineID < 0 || c.MachineID >= 1<<c.MachineBits) {
		return fmt.Errorf("config: machineId %d does not fit in %d bits", c.MachineID, c.MachineBits)
	}
	switch c.Reserve.Fsync {
	case "always", "interval", "never":
	default:
		return fmt.Errorf("config: reserve.fsync must be always|interval|never, got %q", c.Reserve.Fsync)
	}
	return nil
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
