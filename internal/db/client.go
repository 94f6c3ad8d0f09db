package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/michael-freling/ml-artifact-store/internal/config"
	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite" // Sqlite driver based on CGO
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrRecordNotFound = gorm.ErrRecordNotFound

type Client struct {
	connection *gorm.DB
}

type clientOptions struct {
	gormLogger logger.Interface
	driver     config.DatabaseDriver
}

type ClientOption func(*clientOptions)

func WithNopLogger() ClientOption {
	return func(c *clientOptions) {
		c.gormLogger = logger.New(nil, logger.Config{})
	}
}

func WithGormLogger(l *slog.Logger) ClientOption {
	return func(c *clientOptions) {
		c.gormLogger = slogGorm.New(
			slogGorm.WithHandler(l.Handler()),
			slogGorm.WithTraceAll(), // trace all messages
		)
	}
}

func WithPostgres() ClientOption {
	return func(c *clientOptions) {
		c.driver = config.DatabaseDriverPostgres
	}
}

type DSN string

func DSNFromFilePath(directory string, filename string) DSN {
	return DSN(
		fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000",
			filepath.Join(directory, filename),
		),
	)
}

// DSNMemoryNamed returns an in-memory database which is shared only by clients using the same name
func DSNMemoryNamed(name string) DSN {
	return DSN(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
}

func (dsn DSN) String() string {
	return string(dsn)
}

const (
	DSNMemory DSN = "file::memory:?cache=shared"
)

func FromConfig(conf config.Config, logger *slog.Logger) (*Client, error) {
	options := make([]ClientOption, 0)
	if conf.Environment == config.EnvironmentDevelopment {
		options = append(options, WithGormLogger(logger))
	} else {
		options = append(options, WithNopLogger())
	}

	if conf.Database.Driver == config.DatabaseDriverPostgres {
		logger.Info("Connecting to a DB", "driver", conf.Database.Driver)
		return NewClient(DSN(conf.Database.DSN), append(options, WithPostgres())...)
	}

	dsn := DSN(conf.Database.DSN)
	if dsn == "" {
		dsn = DSNFromFilePath(conf.ConfigDirectory,
			fmt.Sprintf("%s_v1.sqlite", conf.Environment),
		)
	}
	logger.Info("Connecting to a DB", "driver", conf.Database.Driver, "dbFile", dsn)
	return NewClient(dsn, options...)
}

func NewClient(dsn DSN, options ...ClientOption) (*Client, error) {
	opts := clientOptions{
		driver: config.DatabaseDriverSQLite,
	}
	for _, option := range options {
		option(&opts)
	}

	var dialector gorm.Dialector
	switch opts.driver {
	case config.DatabaseDriverPostgres:
		dialector = postgres.Open(dsn.String())
	default:
		dialector = sqlite.Open(dsn.String())
	}

	connection, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   opts.gormLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gorm.Open: %w", err)
	}

	if opts.driver == config.DatabaseDriverSQLite {
		// sqlite allows a single writer, and a shared cache database raises
		// table lock errors when several connections write at once
		sqlDB, err := connection.DB()
		if err != nil {
			return nil, fmt.Errorf("connection.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return &Client{
		connection: connection,
	}, nil
}

func (client *Client) Close() error {
	sqlDB, err := client.connection.DB()
	if err != nil {
		return fmt.Errorf("connection.DB: %w", err)
	}
	return sqlDB.Close()
}

// Migrate creates tables and seeds the root directory and its buckets.
// It is safe to call it more than once.
func (client *Client) Migrate(ctx context.Context, rootName string, bucketNames []string) error {
	if err := client.connection.WithContext(ctx).AutoMigrate(
		&Directory{},
		&File{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}

	directoryClient := client.Directory()
	if err := directoryClient.CreateIfAbsent(ctx, &Directory{Name: rootName}); err != nil {
		return fmt.Errorf("CreateIfAbsent: %w", err)
	}
	root, err := directoryClient.FindByName(ctx, rootName)
	if err != nil {
		return fmt.Errorf("FindByName: %w", err)
	}
	if root.ParentID != nil {
		return fmt.Errorf("root directory %s has a parent: %d", rootName, *root.ParentID)
	}

	for _, name := range bucketNames {
		_, err := directoryClient.FindByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("FindByName: %w", err)
		}
		if err := directoryClient.CreateIfAbsent(ctx, &Directory{
			Name:     name,
			ParentID: &root.ID,
		}); err != nil {
			return fmt.Errorf("CreateIfAbsent: %w", err)
		}
	}
	return nil
}

type ORMClient[Model any] struct {
	connection *gorm.DB
}
