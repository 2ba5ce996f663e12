package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync/atomic"
)

var instance atomic.Pointer[Config]

// Init loads the configuration once for the process.
func Init(workingDir string, debug bool) (*Config, error) {
	cfg, err := Load(workingDir, debug)
	if err != nil {
		return nil, err
	}
	instance.Store(cfg)
	return cfg, nil
}

func Get() *Config {
	return instance.Load()
}

// Load reads the global, data and project config files, merges them in that
// order and applies defaults.
func Load(workingDir string, debug bool) (*Config, error) {
	configPaths := lookupConfigs(workingDir)
	cfg, err := loadFromConfigPaths(configPaths)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from paths %v: %w", configPaths, err)
	}

	cfg.dataConfigDir = GlobalConfigData()
	cfg.setDefaults(workingDir)
	if debug {
		cfg.Options.Debug = true
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	slog.Debug("Config loaded", "paths", configPaths, "sources", len(cfg.Sources))
	return cfg, nil
}

// lookupConfigs returns the candidate config files, lowest priority first.
// Project files closer to workingDir win over those further up.
func lookupConfigs(workingDir string) []string {
	configPaths := []string{
		GlobalConfig(),
		GlobalConfigData(),
	}
	configNames := []string{appName + ".json", "." + appName + ".json"}

	var found []string
	dir := workingDir
	for {
		for _, name := range slices.Backward(configNames) {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				found = append(found, path)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	slices.Reverse(found)
	return append(configPaths, found...)
}

func loadFromConfigPaths(configPaths []string) (*Config, error) {
	var configs []io.Reader
	for _, path := range configPaths {
		fd, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
		}
		defer fd.Close()
		configs = append(configs, fd)
	}
	return loadFromReaders(configs)
}

func loadFromReaders(readers []io.Reader) (*Config, error) {
	if len(readers) == 0 {
		return &Config{}, nil
	}
	merged, err := Merge(readers)
	if err != nil {
		return nil, fmt.Errorf("failed to merge configuration readers: %w", err)
	}
	return LoadReader(merged)
}

func LoadReader(fd io.Reader) (*Config, error) {
	data, err := io.ReadAll(fd)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// GlobalConfig returns the path to the main config file for the user.
func GlobalConfig() string {
	if p := os.Getenv("DGRID_GLOBAL_CONFIG"); p != "" {
		return filepath.Join(p, appName+".json")
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, appName+".json")
	}
	return filepath.Join(homeDir(), ".config", appName, appName+".json")
}

// GlobalConfigData returns the path to the config file written by the
// application itself.
func GlobalConfigData() string {
	if p := os.Getenv("DGRID_GLOBAL_DATA"); p != "" {
		return filepath.Join(p, appName+".json")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, appName+".json")
	}
	if runtime.GOOS == "windows" {
		local := os.Getenv("LOCALAPPDATA")
		if local == "" {
			local = filepath.Join(homeDir(), "AppData", "Local")
		}
		return filepath.Join(local, appName, appName+".json")
	}
	return filepath.Join(homeDir(), ".local", "share", appName, appName+".json")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
