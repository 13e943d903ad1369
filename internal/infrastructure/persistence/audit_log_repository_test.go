package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/catalogd/backend/internal/domain/catalog"
	"github.com/catalogd/backend/internal/domain/shared"
)

func setupAuditLogTestDB(t *testing.T) *GormAuditLogRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&catalog.AuditLog{}))

	return NewGormAuditLogRepository(db)
}

func TestGormAuditLogRepository_FindBySKU(t *testing.T) {
	repo := setupAuditLogTestDB(t)
	ctx := context.Background()

	created, err := catalog.NewAuditLog("WIDGET-1", catalog.AuditActionCreate,
		map[string]any{"name": "Widget One"}, "alice")
	require.NoError(t, err)
	created.Timestamp = time.Now().Add(-2 * time.Hour)

	updated, err := catalog.NewAuditLog("WIDGET-1", catalog.AuditActionUpdate,
		map[string]any{"name": "Widget One v2"}, "")
	require.NoError(t, err)

	other, err := catalog.NewAuditLog("WIDGET-2", catalog.AuditActionCreate, nil, "bob")
	require.NoError(t, err)

	for _, entry := range []*catalog.AuditLog{created, updated, other} {
		require.NoError(t, repo.Create(ctx, entry))
	}

	entries, err := repo.FindBySKU(ctx, "WIDGET-1", shared.NewFilter())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first
	assert.Equal(t, catalog.AuditActionUpdate, entries[0].Action)
	assert.Equal(t, "system", entries[0].User)
	assert.Equal(t, "alice", entries[1].User)

	none, err := repo.FindBySKU(ctx, "MISSING", shared.NewFilter())
	require.NoError(t, err)
	assert.Empty(t, none)
}
