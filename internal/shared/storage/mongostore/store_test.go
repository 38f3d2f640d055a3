package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"sheet-insights/internal/shared/model"
	"sheet-insights/internal/shared/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore 连接本地 MongoDB；不可用时跳过测试
func newTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	store, err := NewStore(uri, "sheet_insights_test_"+uuid.NewString()[:8])
	if err != nil {
		t.Skip("MongoDB not available")
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store.db.Drop(ctx)
		store.Close()
	})
	return store
}

func seedUser(id, subject string) *model.User {
	now := time.Now().UTC()
	return &model.User{
		ID:         id,
		SubjectKey: subject,
		Name:       "Test User",
		Status:     model.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestMongoResolveUserCreatesOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.ResolveUser(ctx, "sub-1", seedUser("usr-1", "sub-1"))
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "usr-1", first.ID)

	second, err := store.ResolveUser(ctx, "sub-1", seedUser("usr-2", "sub-1"))
	require.NoError(t, err)
	assert.Equal(t, "usr-1", second.ID)
}

func TestMongoFileCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.ResolveUser(ctx, "sub-1", seedUser("usr-1", "sub-1"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		file := &model.SheetFile{
			ID:        fmt.Sprintf("f-%d", i),
			FileName:  fmt.Sprintf("file-%d.csv", i),
			FileType:  "csv",
			Rows:      []model.Row{{"name": "Ada", "score": "10"}},
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, store.AppendFile(ctx, "usr-1", file))
	}

	summaries, err := store.ListFileSummaries(ctx, "usr-1")
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	for i, s := range summaries {
		assert.Equal(t, fmt.Sprintf("f-%d", i), s.ID)
	}

	got, err := store.GetFile(ctx, "usr-1", "f-1")
	require.NoError(t, err)
	assert.Equal(t, "file-1.csv", got.FileName)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "Ada", got.Rows[0]["name"])

	require.NoError(t, store.RemoveFile(ctx, "usr-1", "f-1"))
	assert.ErrorIs(t, store.RemoveFile(ctx, "usr-1", "f-1"), storage.ErrNotFound)

	_, err = store.GetFile(ctx, "usr-2", "f-0")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMongoSoleSuperadminGuard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	super := &model.Admin{
		ID: "sup-1", Username: "super_one", PasswordHash: "hash",
		Role: model.AdminRoleSuperadmin, Status: model.StatusActive,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreateAdmin(ctx, super))

	assert.ErrorIs(t, store.SetAdminStatus(ctx, "sup-1", model.StatusInactive), storage.ErrSoleSuperadmin)
	assert.ErrorIs(t, store.DeleteAdmin(ctx, "sup-1"), storage.ErrSoleSuperadmin)

	second := &model.Admin{
		ID: "sup-2", Username: "super_two", PasswordHash: "hash",
		Role: model.AdminRoleSuperadmin, Status: model.StatusActive,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreateAdmin(ctx, second))
	require.NoError(t, store.SetAdminStatus(ctx, "sup-1", model.StatusInactive))
}

func TestMongoDuplicateAdminUsername(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	a := &model.Admin{ID: "adm-1", Username: "same_name", PasswordHash: "h",
		Role: model.AdminRoleAdmin, Status: model.StatusActive, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.CreateAdmin(ctx, a))

	b := &model.Admin{ID: "adm-2", Username: "same_name", PasswordHash: "h",
		Role: model.AdminRoleAdmin, Status: model.StatusActive, CreatedAt: now, UpdatedAt: now}
	assert.ErrorIs(t, store.CreateAdmin(ctx, b), storage.ErrDuplicate)
}
