package db

import (
	"context"

	"gorm.io/gorm/clause"
)

// Directory is a named bucket. Names are unique in the whole tree, not only under a parent
type Directory struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"not null;uniqueIndex:directories_name"`
	ParentID *uint  `gorm:"index:directories_parent_id"`
}

type DirectoryClient ORMClient[Directory]

func (client *Client) Directory() *DirectoryClient {
	return &DirectoryClient{
		connection: client.connection,
	}
}

func (client *DirectoryClient) FindByName(ctx context.Context, name string) (Directory, error) {
	var directory Directory
	err := connectionWithContext(ctx, client.connection).
		Where("name = ?", name).
		Take(&directory).
		Error
	return directory, err
}

func (client *DirectoryClient) FindChildren(ctx context.Context, parentID uint) ([]Directory, error) {
	var directories []Directory
	err := connectionWithContext(ctx, client.connection).
		Where("parent_id = ?", parentID).
		Order("name").
		Find(&directories).
		Error
	return directories, err
}

// CreateIfAbsent inserts a directory unless one with the same name already exists.
// The ID of the argument is not set when nothing was inserted.
func (client *DirectoryClient) CreateIfAbsent(ctx context.Context, directory *Directory) error {
	return connectionWithContext(ctx, client.connection).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(directory).
		Error
}

// LockByID locks a directory row until the transaction in ctx ends.
// SQLite has no row locks, and its single connection already serializes transactions.
func (client *DirectoryClient) LockByID(ctx context.Context, id uint) error {
	var directory Directory
	return connectionWithContext(ctx, client.connection).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		Take(&directory).
		Error
}
