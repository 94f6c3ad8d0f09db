package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const appName = "ml-artifact-store"

type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentProduction  Environment = "production"
)

type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

type DatabaseConfig struct {
	Driver DatabaseDriver `toml:"driver"`
	// DSN is optional for sqlite. A file under ConfigDirectory is used when it is empty
	DSN string `toml:"dsn"`
}

type StorageConfig struct {
	// Root is the name of the root directory, and also the path segment
	// that marks a path as stored in the database
	Root    string   `toml:"root"`
	Buckets []string `toml:"buckets"`
}

type S3Config struct {
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

type Config struct {
	Environment     Environment `toml:"environment"`
	ConfigDirectory string      `toml:"config_directory"`
	LogDirectory    string      `toml:"log_directory"`
	TempDirectory   string      `toml:"temp_directory"`

	Database DatabaseConfig `toml:"database"`
	Storage  StorageConfig  `toml:"storage"`
	S3       S3Config       `toml:"s3"`
}

func defaultConfig(homeDir string) Config {
	configDir := filepath.Join(homeDir, ".config", appName)
	return Config{
		Environment:     EnvironmentProduction,
		ConfigDirectory: configDir,
		LogDirectory:    filepath.Join(configDir, "logs"),
		Database: DatabaseConfig{
			Driver: DatabaseDriverSQLite,
		},
		Storage: StorageConfig{
			Root:    "ml_system",
			Buckets: []string{"datasets", "models", "downloads", "runs"},
		},
		S3: S3Config{
			Region: "us-east-1",
		},
	}
}

// ReadConfig reads a TOML file on top of the default values.
// The default file ~/.config/ml-artifact-store/default.toml is used when configFile is empty,
// and a missing default file is not an error.
func ReadConfig(configFile string) (Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("os.UserHomeDir: %w", err)
	}
	conf := defaultConfig(homeDir)

	isDefaultFile := configFile == ""
	if isDefaultFile {
		configFile = filepath.Join(conf.ConfigDirectory, "default.toml")
	}

	file, err := os.Open(configFile)
	if err != nil {
		if isDefaultFile && errors.Is(err, fs.ErrNotExist) {
			return conf, nil
		}
		return conf, fmt.Errorf("os.Open: %w", err)
	}
	defer file.Close()

	contents, err := io.ReadAll(file)
	if err != nil {
		return conf, fmt.Errorf("io.ReadAll: %w", err)
	}

	if _, err := toml.Decode(string(contents), &conf); err != nil {
		return conf, fmt.Errorf("toml.Decode: %w", err)
	}
	if err := conf.validate(); err != nil {
		return conf, err
	}
	return conf, nil
}

func (conf Config) validate() error {
	switch conf.Environment {
	case EnvironmentDevelopment, EnvironmentProduction:
	default:
		return fmt.Errorf("unknown environment: %q", conf.Environment)
	}
	switch conf.Database.Driver {
	case DatabaseDriverSQLite:
	case DatabaseDriverPostgres:
		if conf.Database.DSN == "" {
			return errors.New("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown database driver: %q", conf.Database.Driver)
	}
	if conf.Storage.Root == "" {
		return errors.New("storage.root must not be empty")
	}
	return nil
}

// TempDir returns the directory for throwaway files
func (conf Config) TempDir() string {
	if conf.TempDirectory == "" {
		return os.TempDir()
	}
	return conf.TempDirectory
}
