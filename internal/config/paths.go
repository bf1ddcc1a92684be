package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths is the single source of truth for the engine's file locations. All
// paths are relative to the executable directory, never the working
// directory, so the application behaves the same however it is launched.
//
// Layout:
//
//	beirut-pos/
//	  ├── beirut-pos.yaml     (optional config)
//	  ├── data/
//	  │   ├── activation.json (the one activation record)
//	  │   └── activation.salt (per-installation hashing salt)
//	  └── logs/
//	      └── beirut-pos.log
type Paths struct {
	ExecutableDir  string
	DataDir        string
	LogsDir        string
	ActivationFile string
	SaltFile       string
	ConfigFile     string
	LogFile        string
}

// GetPaths resolves the executable-relative layout.
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating executable: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("resolving executable symlinks: %w", err)
	}

	exeDir := filepath.Dir(exe)
	dataDir := filepath.Join(exeDir, "data")
	logsDir := filepath.Join(exeDir, "logs")

	return &Paths{
		ExecutableDir:  exeDir,
		DataDir:        dataDir,
		LogsDir:        logsDir,
		ActivationFile: filepath.Join(dataDir, "activation.json"),
		SaltFile:       filepath.Join(dataDir, "activation.salt"),
		ConfigFile:     filepath.Join(exeDir, "beirut-pos.yaml"),
		LogFile:        filepath.Join(logsDir, "beirut-pos.log"),
	}, nil
}

// ConfigFilePath returns the expected location of the YAML config file.
func ConfigFilePath() (string, error) {
	paths, err := GetPaths()
	if err != nil {
		return "", err
	}
	return paths.ConfigFile, nil
}

// EnsureDirectories creates the data and logs directories the engine writes
// into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}
