package sheet

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"sheet-insights/internal/shared/model"
	"sheet-insights/internal/shared/storage"
	"sheet-insights/internal/shared/storage/driver/sqlite"
	"sheet-insights/internal/shared/storage/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSummarizer 固定返回给定文案
type stubSummarizer struct {
	result string
}

func (s stubSummarizer) Summarize(ctx context.Context, rows []model.Row) string {
	return s.result
}

func newTestService(t *testing.T, summarizer Summarizer) (*Service, storage.Store) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	store, err := repository.NewStore(db, sqlite.NewDialect())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(store, summarizer, nil), store
}

func testOwner(t *testing.T, store storage.Store) *model.User {
	t.Helper()
	now := time.Now().UTC()
	u, err := store.ResolveUser(context.Background(), "sub-1", &model.User{
		ID: "usr-1", SubjectKey: "sub-1", Name: "Owner", Status: model.StatusActive,
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	return u
}

var csvFixture = []byte("name,score\nAda,10\nLin,20\n")

func TestIngestWithoutPersist(t *testing.T) {
	svc, store := newTestService(t, stubSummarizer{result: "two rows of scores"})
	owner := testOwner(t, store)

	result, err := svc.Ingest(context.Background(), owner, "scores.csv", "csv", csvFixture, false)
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Ada", result.Rows[0]["name"])
	assert.Equal(t, "two rows of scores", result.Insights)
	assert.Nil(t, result.File)

	// 未持久化：集合保持为空
	summaries, err := store.ListFileSummaries(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestIngestWithPersist(t *testing.T) {
	svc, store := newTestService(t, stubSummarizer{result: "ok"})
	owner := testOwner(t, store)

	result, err := svc.Ingest(context.Background(), owner, "scores.csv", "csv", csvFixture, true)
	require.NoError(t, err)
	require.NotNil(t, result.File)
	assert.NotEmpty(t, result.File.ID)
	assert.Equal(t, "scores.csv", result.File.FileName)
	assert.Equal(t, "csv", result.File.FileType)

	summaries, err := store.ListFileSummaries(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, result.File.ID, summaries[0].ID)
}

func TestIngestUnsupportedFormatBeforeStorage(t *testing.T) {
	svc, store := newTestService(t, stubSummarizer{result: "ok"})
	owner := testOwner(t, store)

	_, err := svc.Ingest(context.Background(), owner, "doc.pdf", "pdf", []byte("x"), true)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	summaries, err := store.ListFileSummaries(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestIngestMalformedInput(t *testing.T) {
	svc, store := newTestService(t, stubSummarizer{result: "ok"})
	owner := testOwner(t, store)

	_, err := svc.Ingest(context.Background(), owner, "x.xlsx", "xlsx", []byte("not a workbook"), true)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestIngestSummarizerFailureDoesNotAffectPersist(t *testing.T) {
	svc, store := newTestService(t, stubSummarizer{result: insightFailed})
	owner := testOwner(t, store)

	result, err := svc.Ingest(context.Background(), owner, "scores.csv", "csv", csvFixture, true)
	require.NoError(t, err)
	assert.Equal(t, "Failed to generate AI insights.", result.Insights)

	// 摘要失败不影响已落库的文件
	summaries, err := store.ListFileSummaries(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestViewRegeneratesInsights(t *testing.T) {
	svc, store := newTestService(t, stubSummarizer{result: "fresh summary"})
	owner := testOwner(t, store)

	ingested, err := svc.Ingest(context.Background(), owner, "scores.csv", "csv", csvFixture, true)
	require.NoError(t, err)

	view, err := svc.View(context.Background(), owner.ID, ingested.File.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh summary", view.Insights)
	require.Len(t, view.File.Rows, 2)
}

func TestViewSuspendedOwnerReturnsNotFound(t *testing.T) {
	svc, store := newTestService(t, stubSummarizer{result: "ok"})
	owner := testOwner(t, store)

	ingested, err := svc.Ingest(context.Background(), owner, "scores.csv", "csv", csvFixture, true)
	require.NoError(t, err)

	require.NoError(t, store.SetUserStatus(context.Background(), owner.ID, model.StatusInactive))

	// 属主停用后文件对外等同不存在
	_, err = svc.View(context.Background(), owner.ID, ingested.File.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestViewUnknownFile(t *testing.T) {
	svc, store := newTestService(t, stubSummarizer{result: "ok"})
	owner := testOwner(t, store)

	_, err := svc.View(context.Background(), owner.ID, "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRemove(t *testing.T) {
	svc, store := newTestService(t, stubSummarizer{result: "ok"})
	owner := testOwner(t, store)

	ingested, err := svc.Ingest(context.Background(), owner, "scores.csv", "csv", csvFixture, true)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(context.Background(), owner.ID, ingested.File.ID))
	assert.ErrorIs(t, svc.Remove(context.Background(), owner.ID, ingested.File.ID), storage.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	svc, store := newTestService(t, stubSummarizer{result: "ok"})
	owner := testOwner(t, store)

	require.NoError(t, svc.UpdateProfile(context.Background(), owner.ID, "New Name", "https://pic"))

	got, err := store.GetUser(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Name)
	assert.Equal(t, "https://pic", got.Picture)
}
