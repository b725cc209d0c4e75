package config

import (
	"os"
	"strconv"
)

// FromEnv overlays TINY64_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("TINY64_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TINY64_HTTP"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("TINY64_LOCK_DIR"); v != "" {
		cfg.LockDir = v
	}
	if v := os.Getenv("TINY64_LOCK_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LockTimeoutMs = n
		}
	}
	if v := os.Getenv("TINY64_MACHINE_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MachineID = n
		}
	}
	if v := os.Getenv("TINY64_MACHINE_BITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MachineBits = n
		}
	}
	if v := os.Getenv("TINY64_RESERVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Reserve.Enabled = b
		}
	}
	if v := os.Getenv("TINY64_RESERVE_FSYNC"); v != "" {
		cfg.Reserve.Fsync = v
	}
	if v := os.Getenv("TINY64_RESERVE_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reserve.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("TINY64_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TINY64_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}
