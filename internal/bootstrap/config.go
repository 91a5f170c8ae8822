package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"cartsync/internal/config"
)

// Config is an alias for the project's main configuration struct
type Config = config.Config

// LoadConfig loads path, or the defaults when path is empty, and runs
// pre-flight checks on the result
func LoadConfig(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path == "" {
		cfg = config.DefaultConfig()
		err = cfg.Validate()
	} else {
		cfg, err = config.LoadConfig(path)
	}
	if err != nil {
		return nil, err
	}

	if err := checkPreFlight(cfg); err != nil {
		return nil, fmt.Errorf("pre-flight checks failed: %w", err)
	}

	return cfg, nil
}

// checkPreFlight performs environment checks beyond schema validation
func checkPreFlight(cfg *Config) error {
	if cfg.Session.Store == "sqlite" {
		dir := filepath.Dir(cfg.Session.Path)
		info, err := os.Stat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("session directory not found: %s", dir)
			}
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("session path parent is not a directory: %s", dir)
		}

		tmp, err := os.CreateTemp(dir, ".cartsync-tmp-*")
		if err != nil {
			return fmt.Errorf("session directory %s is not writable: %w", dir, err)
		}
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	if cfg.Server.StaticDir != "" {
		if info, err := os.Stat(cfg.Server.StaticDir); err != nil || !info.IsDir() {
			return fmt.Errorf("static_dir is not a directory: %s", cfg.Server.StaticDir)
		}
	}

	return nil
}
