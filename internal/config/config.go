package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	configData Config
	v          *viper.Viper
)

// Config holds all configuration settings.
type Config struct {
	// Reader configuration: the serial device the PN532/RC522 transceiver
	// listens on.
	Reader struct {
		Port         string
		Baud         int
		WireMode     string // "native" or "iso"
		TimeoutMs    int
		FrameRetries int
	}
	// Keys holds the default key material (one hex key and its version)
	// used when no explicit key is supplied on the command line.
	Keys struct {
		DefaultKeyHex     string
		DefaultKeyVersion int
	}
	// Logging configuration
	Log struct {
		Level  string
		Format string
	}
}

// Initialize sets up the configuration system.
func Initialize() error {
	v = viper.New()

	// Set config name and paths
	v.SetConfigName("config")            // name of config file (without extension)
	v.SetConfigType("yaml")              // config file type
	v.AddConfigPath(".")                 // optionally look for config in working directory
	v.AddConfigPath("$HOME/.go_desfire") // look for config in .go_desfire directory in home
	v.AddConfigPath("/etc/go_desfire/")  // path to look for the config file in

	// Set default values
	setDefaults()

	// Environment variables
	v.SetEnvPrefix("GODESFIRE") // prefix for env vars
	v.AutomaticEnv()            // read in environment variables that match
	v.SetEnvKeyReplacer(        // replace dots with underscores in env vars
		strings.NewReplacer(".", "_"),
	)

	// Create config file if it doesn't exist
	if err := ensureConfig(); err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}

	// Read in config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if we can't find a config file, we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal config into struct
	if err := v.Unmarshal(&configData); err != nil {
		return fmt.Errorf("unable to decode into config struct: %w", err)
	}

	return nil
}

// setDefaults sets default values for all configuration options.
func setDefaults() {
	// Reader defaults
	v.SetDefault("reader.port", "/dev/ttyUSB0")
	v.SetDefault("reader.baud", 115200)
	v.SetDefault("reader.wiremode", "native")
	v.SetDefault("reader.timeoutms", 1000)
	v.SetDefault("reader.frameretries", 3)

	// Key defaults: the DESFire factory default DES key (16 zero bytes),
	// version 0.
	v.SetDefault("keys.defaultkeyhex", "00000000000000000000000000000000")
	v.SetDefault("keys.defaultkeyversion", 0)

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "human")
}

// ensureConfig creates a default config file if none exists.
func ensureConfig() error {
	// Check if config file exists
	if _, err := os.Stat(filepath.Join(os.Getenv("HOME"), ".go_desfire")); os.IsNotExist(err) {
		// Create directory
		if err := os.MkdirAll(filepath.Join(os.Getenv("HOME"), ".go_desfire"), 0o755); err != nil {
			return err
		}
	}

	configFile := filepath.Join(os.Getenv("HOME"), ".go_desfire", "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		// Create default config file
		defaultConfig := `# go_desfire configuration file
reader:
  port: /dev/ttyUSB0
  baud: 115200
  wiremode: native
  timeoutms: 1000
  frameretries: 3

keys:
  defaultkeyhex: "00000000000000000000000000000000"
  defaultkeyversion: 0

log:
  level: info
  format: human
`
		if err := os.WriteFile(configFile, []byte(defaultConfig), 0o644); err != nil {
			return err
		}
	}

	return nil
}

// Get returns the current configuration.
func Get() *Config {
	return &configData
}

// GetViper returns the viper instance.
func GetViper() *viper.Viper {
	return v
}
