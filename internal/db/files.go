package db

import (
	"context"
	"time"
)

// File is a stored blob. (directory_id, name) is not unique, and
// the row with the highest ID is the live one when names are duplicated
type File struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"not null;index:files_directory_id_name,priority:2"`
	DirectoryID uint   `gorm:"not null;index:files_directory_id_name,priority:1"`
	Content     []byte
	ContentType string
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// FileInfo is a File without its content
type FileInfo struct {
	ID          uint
	Name        string
	DirectoryID uint
	ContentType string
	Size        int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type FileClient ORMClient[File]

func (client *Client) File() *FileClient {
	return &FileClient{
		connection: client.connection,
	}
}

func (client *FileClient) FindByName(ctx context.Context, directoryID uint, name string) (File, error) {
	var file File
	err := connectionWithContext(ctx, client.connection).
		Where("directory_id = ? AND name = ?", directoryID, name).
		Order("id desc").
		Take(&file).
		Error
	return file, err
}

// FindInfoByName is FindByName without reading content
func (client *FileClient) FindInfoByName(ctx context.Context, directoryID uint, name string) (FileInfo, error) {
	var info FileInfo
	result := connectionWithContext(ctx, client.connection).
		Model(&File{}).
		Select("id, name, directory_id, content_type, length(content) AS size, created_at, updated_at").
		Where("directory_id = ? AND name = ?", directoryID, name).
		Order("id desc").
		Limit(1).
		Scan(&info)
	if result.Error != nil {
		return info, result.Error
	}
	if result.RowsAffected == 0 {
		return info, ErrRecordNotFound
	}
	return info, nil
}

func (client *FileClient) Exists(ctx context.Context, directoryID uint, name string) (bool, error) {
	var count int64
	err := connectionWithContext(ctx, client.connection).
		Model(&File{}).
		Where("directory_id = ? AND name = ?", directoryID, name).
		Limit(1).
		Count(&count).
		Error
	return count > 0, err
}

// FindNamesByDirectoryID returns names in alphabetical order, including duplicated names
func (client *FileClient) FindNamesByDirectoryID(ctx context.Context, directoryID uint) ([]string, error) {
	names := make([]string, 0)
	err := connectionWithContext(ctx, client.connection).
		Model(&File{}).
		Where("directory_id = ?", directoryID).
		Order("name").
		Order("id").
		Pluck("name", &names).
		Error
	return names, err
}

func (client *FileClient) UpdateContent(ctx context.Context, id uint, content []byte, contentType string) error {
	return connectionWithContext(ctx, client.connection).
		Model(&File{ID: id}).
		Updates(map[string]any{
			"content":      content,
			"content_type": contentType,
			"updated_at":   time.Now(),
		}).
		Error
}

func (client *FileClient) Create(ctx context.Context, file *File) error {
	return connectionWithContext(ctx, client.connection).
		Create(file).
		Error
}

func (client *FileClient) DeleteByName(ctx context.Context, directoryID uint, name string) (int64, error) {
	result := connectionWithContext(ctx, client.connection).
		Where("directory_id = ? AND name = ?", directoryID, name).
		Delete(&File{})
	return result.RowsAffected, result.Error
}

func (client *FileClient) DeleteByDirectoryID(ctx context.Context, directoryID uint) (int64, error) {
	result := connectionWithContext(ctx, client.connection).
		Where("directory_id = ?", directoryID).
		Delete(&File{})
	return result.RowsAffected, result.Error
}
