// Package testutil holds shared fixtures for package tests
package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/db"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Logger discards everything
func Logger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// VerboseLogger writes development output, handy while debugging a single test
func VerboseLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

var sqliteSeq atomic.Int64

// SQLite opens a private in-memory database with the schema migrated. A single
// connection keeps every statement on the same in-memory database.
func SQLite(t *testing.T) database.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:fern_test_%d?mode=memory&cache=shared&_foreign_keys=on", sqliteSeq.Add(1))
	conn, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	logger := Logger()
	source, dir := db.Migrations("sqlite3")
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{}, source, dir)
	require.NoError(t, migrations.Migrate("sqlite3", conn.DB))

	return database.NewDatabaseInstance(conn, logger, nil)
}

// Seeder is implemented by every store that can create fixtures
type Seeder interface {
	CreateEntity(ctx context.Context, e *models.Entity) (*models.Entity, error)
	CreateRelationship(ctx context.Context, rel *models.Relationship) (*models.Relationship, error)
	CreateFile(ctx context.Context, f *models.File) (*models.File, error)
}

var (
	clockMu sync.Mutex
	clock   = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func tick() time.Time {
	clockMu.Lock()
	defer clockMu.Unlock()
	clock = clock.Add(time.Second)
	return clock
}

// Entity creates an entity with a deterministic created_at so list order follows seed order
func Entity(t *testing.T, s Seeder, id, folderID, typ, name string, attrs models.Attributes) *models.Entity {
	t.Helper()
	e, err := s.CreateEntity(context.Background(), &models.Entity{
		ID:         id,
		FolderID:   folderID,
		Type:       typ,
		Name:       name,
		Attributes: attrs,
		CreatedAt:  tick(),
	})
	require.NoError(t, err)
	return e
}

func Relationship(t *testing.T, s Seeder, id, from, to, typ string) *models.Relationship {
	t.Helper()
	rel, err := s.CreateRelationship(context.Background(), &models.Relationship{
		ID:         id,
		FromEntity: from,
		ToEntity:   to,
		Type:       typ,
		Strength:   models.StrengthMedium,
		CreatedAt:  tick(),
	})
	require.NoError(t, err)
	return rel
}

func File(t *testing.T, s Seeder, id, entityID, filename string) *models.File {
	t.Helper()
	f, err := s.CreateFile(context.Background(), &models.File{
		ID:        id,
		EntityID:  entityID,
		Filename:  filename,
		Path:      "/files/" + filename,
		Size:      128,
		Hash:      "sha256:" + id,
		CreatedAt: tick(),
	})
	require.NoError(t, err)
	return f
}
