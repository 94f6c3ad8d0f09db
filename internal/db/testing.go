package db

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	TestRootName    = "ml_system"
	TestBucketNames = []string{"datasets", "models", "downloads", "runs"}
)

func Truncate(client *Client, models ...interface{}) error {
	for _, model := range models {
		err := client.connection.Session(&gorm.Session{
			AllowGlobalUpdate: true,
		}).Delete(model).Error
		if err != nil {
			return err
		}
	}
	return nil
}

type TestClient struct {
	*Client
}

// NewTestClient creates a migrated in-memory database which is not shared with other tests
func NewTestClient(t *testing.T, options ...ClientOption) TestClient {
	t.Helper()

	if len(options) == 0 {
		options = append(options, WithNopLogger())
	}
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	client, err := NewClient(DSNMemoryNamed(name), options...)
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Close()
	})
	require.NoError(t, client.Migrate(context.Background(), TestRootName, TestBucketNames))

	return TestClient{
		Client: client,
	}
}

func FindAllByValue[Model any](ctx context.Context, client *Client, value Model) ([]Model, error) {
	var result []Model
	err := connectionWithContext(ctx, client.connection).Find(&result, value).Error
	return result, err
}

func GetAll[Model any](ctx context.Context, client *Client) ([]Model, error) {
	var values []Model
	err := connectionWithContext(ctx, client.connection).Find(&values).Error
	return values, err
}
