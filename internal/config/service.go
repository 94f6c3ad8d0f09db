package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

type Service struct {
	config Config
}

func NewService(config Config) (*Service, error) {
	// Ensure directories used by the store exist.
	directories := []string{
		config.ConfigDirectory,
		config.LogDirectory,
		config.TempDir(),
	}
	for _, directory := range directories {
		if directory == "" {
			continue
		}
		_, err := os.Stat(directory)
		if errors.Is(err, fs.ErrNotExist) {
			if err := os.MkdirAll(directory, 0755); err != nil {
				return nil, fmt.Errorf("os.MkdirAll: %w", err)
			}
		}
	}

	return &Service{
		config: config,
	}, nil
}

func (service *Service) Config() Config {
	return service.config
}
