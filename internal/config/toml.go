// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Service  ServiceConfig  `toml:"service"`
	Speech   SpeechConfig   `toml:"speech"`
	Keyboard KeyboardConfig `toml:"keyboard"`
	History  HistoryConfig  `toml:"history"`
	Log      LogConfig      `toml:"log"`
}

// ServiceConfig maps the remote classification service settings.
type ServiceConfig struct {
	URL     *string `toml:"url"`
	Timeout *string `toml:"timeout"`
}

// SpeechConfig maps speech capture settings.
type SpeechConfig struct {
	Command *string `toml:"command"`
	Lang    *string `toml:"lang"`
}

// KeyboardConfig maps virtual keyboard settings.
type KeyboardConfig struct {
	Lang *string `toml:"lang"`
}

// HistoryConfig maps the initial history filter.
type HistoryConfig struct {
	Lang  *string `toml:"lang"`
	Label *string `toml:"label"`
}

// LogConfig maps diagnostics log settings.
type LogConfig struct {
	Dir   *string `toml:"dir"`
	Level *string `toml:"level"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays TUIMETA_* environment variables on top of the file values.
func ApplyEnv(cfg *FileConfig) {
	if v, ok := lookupEnv("TUIMETA_SERVICE_URL"); ok {
		cfg.Service.URL = &v
	}
	if v, ok := lookupEnv("TUIMETA_SERVICE_TIMEOUT"); ok {
		cfg.Service.Timeout = &v
	}
	if v, ok := lookupEnv("TUIMETA_SPEECH_COMMAND"); ok {
		cfg.Speech.Command = &v
	}
	if v, ok := lookupEnv("TUIMETA_SPEECH_LANG"); ok {
		cfg.Speech.Lang = &v
	}
	if v, ok := lookupEnv("TUIMETA_LOG_DIR"); ok {
		cfg.Log.Dir = &v
	}
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
