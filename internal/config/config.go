// Package config provides configuration management for the camera-ready exporter.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"latex-camera-ready/internal/logger"
	"latex-camera-ready/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "config.json"
	// DefaultOutputDirectory is where the sanitized tree is written
	DefaultOutputDirectory = "./final"
	// DefaultBibliographyFile is the consolidated database name under bib/
	DefaultBibliographyFile = "references.bib"
	// DefaultJPEGQuality is used when a cropped JPEG is re-encoded
	DefaultJPEGQuality = 95
	// DefaultLogLevel is the console log level
	DefaultLogLevel = "info"

	// EnvOutputDirectory overrides output_directory
	EnvOutputDirectory = "CAMERA_READY_OUTPUT"
	// EnvLogLevel overrides log_level
	EnvLogLevel = "CAMERA_READY_LOG_LEVEL"
	// EnvLogFile overrides log_file
	EnvLogFile = "CAMERA_READY_LOG_FILE"
	// EnvJPEGQuality overrides jpeg_quality
	EnvJPEGQuality = "CAMERA_READY_JPEG_QUALITY"
)

// DefaultAliasMacros are the path-prefix macros rewritten by default.
var DefaultAliasMacros = []string{`\DataPath`, `\FigPath`}

// DefaultTrackedEnvironments are the environments whose includes get numbered names.
var DefaultTrackedEnvironments = []string{"figure", "table", "algorithm"}

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	config     *types.Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, it uses the default path in user's home directory.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "latex-camera-ready", DefaultConfigFileName)
	}

	logger.Debug("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		config:     defaultConfig(),
	}, nil
}

func defaultConfig() *types.Config {
	return &types.Config{
		OutputDirectory:     DefaultOutputDirectory,
		AliasMacros:         append([]string(nil), DefaultAliasMacros...),
		TrackedEnvironments: append([]string(nil), DefaultTrackedEnvironments...),
		BibliographyFile:    DefaultBibliographyFile,
		JPEGQuality:         DefaultJPEGQuality,
		LogLevel:            DefaultLogLevel,
	}
}

// Load loads configuration from the config file.
// A missing file leaves the defaults in place; a file that cannot be parsed is
// a CONFIG_ERROR. Environment variables are applied after the file.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	m.config = defaultConfig()

	data, err := os.ReadFile(m.configPath)
	switch {
	case err == nil:
		config := defaultConfig()
		if err := unmarshal(m.configPath, data, config); err != nil {
			logger.Error("invalid config file", err, logger.String("path", m.configPath))
			return types.NewAppErrorWithDetails(types.ErrConfig, "invalid config file", m.configPath, err)
		}
		m.config = config
		logger.Debug("configuration loaded",
			logger.String("path", m.configPath),
			logger.Int("aliasMacros", len(config.AliasMacros)),
			logger.Int("trackedEnvironments", len(config.TrackedEnvironments)))
	case os.IsNotExist(err):
		logger.Debug("config file not found, using defaults", logger.String("path", m.configPath))
	default:
		logger.Error("failed to read config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to read config file", err)
	}

	m.applyEnv()
	m.applyDefaults()
	return nil
}

// unmarshal decodes YAML for .yaml/.yml files and JSON otherwise.
func unmarshal(path string, data []byte, config *types.Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	default:
		return json.Unmarshal(data, config)
	}
}

func (m *ConfigManager) applyEnv() {
	if v := os.Getenv(EnvOutputDirectory); v != "" {
		m.config.OutputDirectory = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		m.config.LogLevel = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		m.config.LogFile = v
	}
	if v := os.Getenv(EnvJPEGQuality); v != "" {
		if q, err := strconv.Atoi(v); err == nil {
			m.config.JPEGQuality = q
		} else {
			logger.Warn("ignoring invalid jpeg quality", logger.String("env", EnvJPEGQuality), logger.String("value", v))
		}
	}
}

func (m *ConfigManager) applyDefaults() {
	if m.config.OutputDirectory == "" {
		m.config.OutputDirectory = DefaultOutputDirectory
	}
	if len(m.config.TrackedEnvironments) == 0 {
		m.config.TrackedEnvironments = append([]string(nil), DefaultTrackedEnvironments...)
	}
	if m.config.BibliographyFile == "" {
		m.config.BibliographyFile = DefaultBibliographyFile
	}
	if m.config.JPEGQuality < 1 || m.config.JPEGQuality > 100 {
		m.config.JPEGQuality = DefaultJPEGQuality
	}
	if m.config.LogLevel == "" {
		m.config.LogLevel = DefaultLogLevel
	}
	// An explicit empty alias list is allowed and disables alias rewriting.
	if m.config.AliasMacros == nil {
		m.config.AliasMacros = append([]string(nil), DefaultAliasMacros...)
	}
}

// Save saves the current configuration to the config file.
func (m *ConfigManager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(m.configPath)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(m.config)
	default:
		data, err = json.MarshalIndent(m.config, "", "  ")
	}
	if err != nil {
		logger.Error("failed to marshal config", err)
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved", logger.String("path", m.configPath))
	return nil
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	if m.config == nil {
		return defaultConfig()
	}
	return m.config
}

// SetConfig sets the entire configuration.
func (m *ConfigManager) SetConfig(config *types.Config) {
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}

// Options builds run options for inputFile from the loaded configuration.
// Flags that the caller sets afterwards take precedence.
func (m *ConfigManager) Options(inputFile string) *types.Options {
	cfg := m.GetConfig()
	return &types.Options{
		InputFile:           inputFile,
		OutputDir:           cfg.OutputDirectory,
		AliasMacros:         slices.Clone(cfg.AliasMacros),
		TrackedEnvironments: slices.Clone(cfg.TrackedEnvironments),
		BibliographyFile:    cfg.BibliographyFile,
		JPEGQuality:         cfg.JPEGQuality,
	}
}
