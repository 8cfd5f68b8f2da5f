package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for blobcourier
type Config struct {
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	Encryption  EncryptionConfig  `yaml:"encryption" json:"encryption"`
	Compression CompressionConfig `yaml:"compression" json:"compression"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// StorageConfig defines the storage backend settings
type StorageConfig struct {
	Provider  string `yaml:"provider" json:"provider"` // s3, local
	Bucket    string `yaml:"bucket" json:"bucket"`
	Region    string `yaml:"region" json:"region"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"` // For S3-compatible (MinIO, B2)
	AccessKey string `yaml:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	Prefix    string `yaml:"prefix" json:"prefix"`       // Optional key prefix
	BasePath  string `yaml:"base_path" json:"base_path"` // For the local provider
}

// EncryptionConfig defines encryption settings
type EncryptionConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Algorithm string `yaml:"algorithm" json:"algorithm"` // aes-256-gcm
	KDF       string `yaml:"kdf" json:"kdf"`             // argon2id
	SaltFile  string `yaml:"salt_file" json:"salt_file"` // Key-derivation salt location
}

// CompressionConfig defines compression settings
type CompressionConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Algorithm string `yaml:"algorithm" json:"algorithm"` // zstd, none
	Level     int    `yaml:"level" json:"level"`         // Compression level
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"` // debug, info, warn, error
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Provider: "s3",
		},
		Encryption: EncryptionConfig{
			Enabled:   false,
			Algorithm: "aes-256-gcm",
			KDF:       "argon2id",
		},
		Compression: CompressionConfig{
			Enabled:   false,
			Algorithm: "zstd",
			Level:     3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	ext := filepath.Ext(path)
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		// Try YAML first, then JSON
		if err = yaml.Unmarshal(data, cfg); err != nil {
			err = json.Unmarshal(data, cfg)
		}
	}

	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to a file
func (c *Config) Save(path string) error {
	var data []byte
	var err error

	ext := filepath.Ext(path)
	switch ext {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		data, err = yaml.Marshal(c)
	}

	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks the configuration and normalizes correctable fields
func (c *Config) Validate() error {
	switch c.Storage.Provider {
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 provider")
		}
	case "local":
		if c.Storage.BasePath == "" {
			return fmt.Errorf("storage.base_path is required for the local provider")
		}
	case "":
		c.Storage.Provider = "s3"
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 provider")
		}
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}

	switch c.Compression.Algorithm {
	case "zstd", "none", "":
		// Valid
	default:
		c.Compression.Algorithm = "zstd"
	}
	if c.Compression.Level < 1 {
		c.Compression.Level = 1
	}
	if c.Compression.Level > 19 {
		c.Compression.Level = 19
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid
	default:
		c.Logging.Level = "info"
	}

	return nil
}
