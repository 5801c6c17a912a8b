package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".quip-export"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .quip-export configuration file.
// Every field is optional; CLI flags take precedence over file values.
type File struct {
	// Token is the personal access token. Storing it in the file keeps it
	// out of shell history.
	Token string `yaml:"token,omitempty"`

	// Domain is the service base domain.
	Domain string `yaml:"domain,omitempty"`

	// Destination is the export destination directory.
	Destination string `yaml:"destination,omitempty"`

	// Folders lists seed folder IDs.
	Folders []string `yaml:"folders,omitempty"`

	// TitlePrefix is the post-export title prefix.
	TitlePrefix string `yaml:"titlePrefix,omitempty"`

	// RequestInterval spaces outgoing requests, e.g. "500ms".
	// Parsed with time.ParseDuration; an unparsable value is ignored.
	RequestInterval string `yaml:"requestInterval,omitempty"`
}

// LoadConfigFile loads defaults from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound. Callers should
// handle this error appropriately based on whether the config file path was
// explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	return &cf, nil
}

// Apply merges file values into the config for every field the CLI flags
// left unset.
func (c *Config) Apply(cf *File) {
	if cf == nil {
		return
	}
	if c.Token == "" {
		c.Token = cf.Token
	}
	if c.BaseDomain == "" {
		c.BaseDomain = cf.Domain
	}
	if (c.Destination == "" || c.Destination == DefaultDestination) && cf.Destination != "" {
		c.Destination = cf.Destination
	}
	if len(c.Folders) == 0 {
		c.Folders = cf.Folders
	}
	if c.TitlePrefix == "" {
		c.TitlePrefix = cf.TitlePrefix
	}
	if c.RequestInterval == 0 && cf.RequestInterval != "" {
		if d, err := time.ParseDuration(cf.RequestInterval); err == nil && d > 0 {
			c.RequestInterval = d
		}
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .quip-export in the current directory
// 3. Look for .quip-export in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if
// not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
