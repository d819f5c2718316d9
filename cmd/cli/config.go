package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const configFileName = ".splitledger.toml"

// fileConfig is the optional ~/.splitledger.toml. Flags override it.
type fileConfig struct {
	URL      string `toml:"url"`
	Token    string `toml:"token"`
	UserID   string `toml:"user_id"`
	Currency string `toml:"currency"`
	Secret   string `toml:"secret"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(home, configFileName)
}

// loadFileConfig reads path. A missing file yields an empty config.
func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fileConfig{}, nil
		}
		return fileConfig{}, err
	}
	return cfg, nil
}
