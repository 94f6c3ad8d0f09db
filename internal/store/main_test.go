package store

import (
	"context"
	"testing"

	"github.com/michael-freling/ml-artifact-store/internal/config"
	"github.com/michael-freling/ml-artifact-store/internal/db"
	"github.com/michael-freling/ml-artifact-store/internal/xlog"
	"github.com/stretchr/testify/require"
)

type tester struct {
	config   config.Config
	dbClient db.TestClient
}

func newTester(t *testing.T) tester {
	t.Helper()

	return tester{
		config: config.Config{
			TempDirectory: t.TempDir(),
			Storage: config.StorageConfig{
				Root:    db.TestRootName,
				Buckets: db.TestBucketNames,
			},
		},
		dbClient: db.NewTestClient(t),
	}
}

func (tester tester) getEngine() *Engine {
	return NewEngine(xlog.Nop(), tester.config, tester.dbClient.Client)
}

func (tester tester) saveContents(t *testing.T, directoryName string, contents map[string]string) {
	t.Helper()

	engine := tester.getEngine()
	for name, content := range contents {
		_, err := engine.SaveContent(context.Background(), []byte(content), name, directoryName, true)
		require.NoError(t, err)
	}
}
