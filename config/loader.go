package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFormat represents the configuration file format
type ConfigFormat string

const (
	FormatYAML ConfigFormat = "yaml"
	FormatJSON ConfigFormat = "json"
)

// Loader handles configuration loading from files and the environment
type Loader struct {
	searchPaths []string
	envPrefix   string
	lookupEnv   func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	paths := []string{".", "./config", "/etc/hellonode"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".hellonode"))
	}
	return &Loader{
		searchPaths: paths,
		envPrefix:   "HELLONODE",
		lookupEnv:   os.LookupEnv,
	}
}

// SetSearchPaths sets the configuration file search paths
func (l *Loader) SetSearchPaths(paths []string) *Loader {
	l.searchPaths = paths
	return l
}

// SetEnvPrefix sets the environment variable prefix
func (l *Loader) SetEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load loads configuration from filename, or from the defaults when
// filename is empty, then applies environment overrides and validates.
func (l *Loader) Load(filename string) (*Config, error) {
	config := DefaultConfig()

	if filename != "" {
		format, err := formatOf(filename)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filename)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, filename)
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
		}
		if err := decode(data, format, config); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", filename, err)
		}
	}

	return l.finish(config)
}

// LoadFromReader loads configuration from an io.Reader
func (l *Loader) LoadFromReader(reader io.Reader, format ConfigFormat) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration data: %w", err)
	}

	config := DefaultConfig()
	if err := decode(data, format, config); err != nil {
		return nil, err
	}
	return l.finish(config)
}

// AutoLoad looks for hellonode.yaml, hellonode.yml or hellonode.json in the
// search paths and falls back to the defaults.
func (l *Loader) AutoLoad() (*Config, error) {
	configFile, err := l.findConfigFile()
	if err != nil {
		if errors.Is(err, ErrConfigFileNotFound) {
			return l.Load("")
		}
		return nil, err
	}
	return l.Load(configFile)
}

func (l *Loader) finish(config *Config) (*Config, error) {
	if err := l.loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// findConfigFile searches for configuration files in search paths
func (l *Loader) findConfigFile() (string, error) {
	filenames := []string{"hellonode.yaml", "hellonode.yml", "hellonode.json"}

	for _, searchPath := range l.searchPaths {
		for _, filename := range filenames {
			fullPath := filepath.Join(searchPath, filename)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
	}
	return "", ErrConfigFileNotFound
}

func formatOf(filename string) (ConfigFormat, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported config file format: %s", filepath.Ext(filename))
	}
}

// decode parses data over config, so that missing fields keep their
// current values.
func decode(data []byte, format ConfigFormat, config *Config) error {
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("%w: %v", ErrConfigParseError, err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(config); err != nil {
			return fmt.Errorf("%w: %v", ErrConfigParseError, err)
		}
	default:
		return fmt.Errorf("unsupported config format: %s", format)
	}
	return nil
}

// loadFromEnv applies HELLONODE_* overrides
func (l *Loader) loadFromEnv(config *Config) error {
	str := func(name string, dst *string) {
		if val, ok := l.lookupEnv(l.envPrefix + "_" + name); ok && val != "" {
			*dst = val
		}
	}
	dur := func(name string, dst *time.Duration) error {
		val, ok := l.lookupEnv(l.envPrefix + "_" + name)
		if !ok || val == "" {
			return nil
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%w: %s_%s: %v", ErrEnvironmentVarError, l.envPrefix, name, err)
		}
		*dst = d
		return nil
	}

	str("APP_NAME", &config.App.Name)
	if val, ok := l.lookupEnv(l.envPrefix + "_APP_ROLE"); ok && val != "" {
		config.App.Role = Role(val)
	}
	if val, ok := l.lookupEnv(l.envPrefix + "_LOG_LEVEL"); ok && val != "" {
		config.Log.Level = LogLevel(strings.ToLower(val))
	}
	str("LOG_OUTPUT", &config.Log.Output)

	str("TRANSPORT_LISTEN", &config.Transport.Listen)
	str("TRANSPORT_CONNECT", &config.Transport.Connect)
	if err := dur("TRANSPORT_CONNECT_TIMEOUT", &config.Transport.ConnectTimeout); err != nil {
		return err
	}

	str("IDENTITY_SECRET", &config.Identity.Secret)
	str("IDENTITY_AUTHORITY", &config.Identity.Authority)

	str("ISSUER_MEMBERS_FILE", &config.Issuer.MembersFile)
	if err := dur("ISSUER_CREDENTIAL_TTL", &config.Issuer.CredentialTTL); err != nil {
		return err
	}

	if val, ok := l.lookupEnv(l.envPrefix + "_ADMIN_ENABLED"); ok && val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%w: %s_ADMIN_ENABLED: %v", ErrEnvironmentVarError, l.envPrefix, err)
		}
		config.Admin.Enabled = enabled
	}
	str("ADMIN_LISTEN", &config.Admin.Listen)

	return nil
}
