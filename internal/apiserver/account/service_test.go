package account

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sheet-insights/internal/apiserver/auth"
	"sheet-insights/internal/shared/model"
	"sheet-insights/internal/shared/storage"
	"sheet-insights/internal/shared/storage/driver/sqlite"
	"sheet-insights/internal/shared/storage/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRevoker 记录吊销调用的桩实现
type fakeRevoker struct {
	mu       sync.Mutex
	revoked  []string
	failWith error
}

func (f *fakeRevoker) Revoke(ctx context.Context, subjectKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, subjectKey)
	return f.failWith
}

func newTestService(t *testing.T) (*Service, *fakeRevoker, storage.Store) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	store, err := repository.NewStore(db, sqlite.NewDialect())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	revoker := &fakeRevoker{}
	return NewService(store, revoker, nil), revoker, store
}

// ============================================================================
// 运营账号创建
// ============================================================================

func TestCreateOperatorValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"username too short", "abcd", "secret1"},
		{"username too long", "a_very_long_username_x", "secret1"},
		{"username illegal chars", "bad name!", "secret1"},
		{"password too short", "valid_name", "abc"},
		{"password illegal chars", "valid_name", "pass word"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOperator(ctx, model.AdminRoleSuperadmin, tt.username, tt.password, model.AdminRoleAdmin)
			assert.True(t, IsValidationError(err), "expected validation error, got %v", err)
		})
	}
}

func TestCreateOperatorRoleCoercion(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// 非 superadmin 操作者请求 superadmin：静默降级为 admin
	admin, err := svc.CreateOperator(ctx, model.AdminRoleAdmin, "wants_super", "secret1", model.AdminRoleSuperadmin)
	require.NoError(t, err)
	assert.Equal(t, model.AdminRoleAdmin, admin.Role)

	// superadmin 操作者请求 superadmin：放行
	super, err := svc.CreateOperator(ctx, model.AdminRoleSuperadmin, "real_super", "secret1", model.AdminRoleSuperadmin)
	require.NoError(t, err)
	assert.Equal(t, model.AdminRoleSuperadmin, super.Role)
}

func TestCreateOperatorSecondSuperadminConflict(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateOperator(ctx, model.AdminRoleSuperadmin, "super_one", "secret1", model.AdminRoleSuperadmin)
	require.NoError(t, err)

	_, err = svc.CreateOperator(ctx, model.AdminRoleSuperadmin, "super_two", "secret1", model.AdminRoleSuperadmin)
	assert.ErrorIs(t, err, storage.ErrSuperadminExists)
}

func TestCreateSuperadminAfterSuspension(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateOperator(ctx, model.AdminRoleSuperadmin, "super_one", "secret1", model.AdminRoleSuperadmin)
	require.NoError(t, err)
	_, err = svc.CreateOperator(ctx, model.AdminRoleSuperadmin, "super_two", "secret1", model.AdminRoleAdmin)
	require.NoError(t, err)

	// 第一个被停用前不能再建 superadmin
	_, err = svc.CreateOperator(ctx, model.AdminRoleSuperadmin, "super_three", "secret1", model.AdminRoleSuperadmin)
	assert.ErrorIs(t, err, storage.ErrSuperadminExists)

	// 唯一活跃 superadmin 不能停用自己
	assert.ErrorIs(t, svc.SetAdminStatus(ctx, first.ID, model.StatusInactive), storage.ErrSoleSuperadmin)
}

func TestConcurrentSuspendDeleteKeepsOneSuperadmin(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	// 直接在存储层种入两个活跃 superadmin，构造并发停用/删除的竞争：
	// 两个请求各自以对方为目标，最多允许一个改变状态
	now := time.Now().UTC()
	for id, username := range map[string]string{"sup-1": "super_one", "sup-2": "super_two"} {
		require.NoError(t, store.CreateAdmin(ctx, &model.Admin{
			ID: id, Username: username, PasswordHash: "x",
			Role: model.AdminRoleSuperadmin, Status: model.StatusActive,
			CreatedAt: now, UpdatedAt: now,
		}))
	}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); errs[0] = svc.SetAdminStatus(ctx, "sup-1", model.StatusInactive) }()
	go func() { defer wg.Done(); errs[1] = svc.DeleteAdmin(ctx, "sup-2") }()
	wg.Wait()

	// 恰好一个成功，另一个观察到守卫
	var guarded int
	for _, err := range errs {
		if errors.Is(err, storage.ErrSoleSuperadmin) {
			guarded++
		} else {
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 1, guarded)

	n, err := store.CountActiveSuperadmins(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCreateOperatorDuplicateUsername(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateOperator(ctx, model.AdminRoleAdmin, "taken_name", "secret1", model.AdminRoleAdmin)
	require.NoError(t, err)
	_, err = svc.CreateOperator(ctx, model.AdminRoleAdmin, "taken_name", "secret1", model.AdminRoleAdmin)
	assert.ErrorIs(t, err, storage.ErrDuplicate)
}

// ============================================================================
// 启动引导
// ============================================================================

func TestEnsureSuperadmin(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureSuperadmin(ctx, "boot_admin", "secret1"))

	admin, err := store.GetAdminByUsername(ctx, "boot_admin")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, model.AdminRoleSuperadmin, admin.Role)

	// 幂等：已有活跃 superadmin 时不再创建
	require.NoError(t, svc.EnsureSuperadmin(ctx, "another_boot", "secret1"))
	ghost, err := store.GetAdminByUsername(ctx, "another_boot")
	require.NoError(t, err)
	assert.Nil(t, ghost)
}

func TestEnsureSuperadminEmptyConfig(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureSuperadmin(ctx, "", ""))
	admins, err := store.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Empty(t, admins)
}

// ============================================================================
// 登录校验
// ============================================================================

func TestAuthenticateUniformError(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateOperator(ctx, model.AdminRoleAdmin, "login_user", "secret1", model.AdminRoleAdmin)
	require.NoError(t, err)

	// 用户名不存在与密码错误返回同一错误
	_, errNoUser := svc.Authenticate(ctx, "no_such_user", "secret1")
	_, errBadPass := svc.Authenticate(ctx, "login_user", "wrong_pass")
	assert.ErrorIs(t, errNoUser, auth.ErrInvalidCredentials)
	assert.ErrorIs(t, errBadPass, auth.ErrInvalidCredentials)

	admin, err := svc.Authenticate(ctx, "login_user", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "login_user", admin.Username)
}

func TestAuthenticateSuspendedStillSucceeds(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	admin, err := svc.CreateOperator(ctx, model.AdminRoleAdmin, "sleepy_user", "secret1", model.AdminRoleAdmin)
	require.NoError(t, err)
	require.NoError(t, svc.SetAdminStatus(ctx, admin.ID, model.StatusInactive))

	// 登录本身成功，状态由门禁在每个请求上检查
	got, err := svc.Authenticate(ctx, "sleepy_user", "secret1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInactive, got.Status)
}

// ============================================================================
// 终端用户管理
// ============================================================================

func seedUser(t *testing.T, store storage.Store, id, subject string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	u, err := store.ResolveUser(context.Background(), subject, &model.User{
		ID: id, SubjectKey: subject, Name: "User", Status: model.StatusActive,
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	return u
}

func TestDeleteUserRevokesExternalSession(t *testing.T) {
	svc, revoker, store := newTestService(t)
	ctx := context.Background()

	seedUser(t, store, "usr-1", "sub-1")
	require.NoError(t, svc.DeleteUser(ctx, "usr-1"))

	assert.Equal(t, []string{"sub-1"}, revoker.revoked)

	got, err := store.GetUser(ctx, "usr-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteUserRevokeFailureIsBestEffort(t *testing.T) {
	svc, revoker, store := newTestService(t)
	ctx := context.Background()

	revoker.failWith = errors.New("idp unreachable")
	seedUser(t, store, "usr-1", "sub-1")

	// 远端吊销失败不影响本地删除结果
	require.NoError(t, svc.DeleteUser(ctx, "usr-1"))
	got, err := store.GetUser(ctx, "usr-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteUserNotFound(t *testing.T) {
	svc, revoker, _ := newTestService(t)
	assert.ErrorIs(t, svc.DeleteUser(context.Background(), "ghost"), storage.ErrNotFound)
	assert.Empty(t, revoker.revoked)
}

func TestUserFilesNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.UserFiles(context.Background(), "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRemoveUserFile(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	seedUser(t, store, "usr-1", "sub-1")
	require.NoError(t, store.AppendFile(ctx, "usr-1", &model.SheetFile{
		ID: "f-1", FileName: "a.csv", FileType: "csv",
		Rows: []model.Row{{"k": "v"}}, CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, svc.RemoveUserFile(ctx, "usr-1", "f-1"))
	assert.ErrorIs(t, svc.RemoveUserFile(ctx, "usr-1", "f-1"), storage.ErrNotFound)
}

// ============================================================================
// 分析统计
// ============================================================================

func TestAnalyticsZeroFilled(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	seedUser(t, store, "usr-1", "sub-1")
	seedUser(t, store, "usr-2", "sub-2")

	stats, err := svc.Analytics(ctx)
	require.NoError(t, err)

	now := time.Now().UTC()
	assert.Len(t, stats, now.Day())

	// 序列从当月 1 日开始，今天计入 2 个新增
	assert.Equal(t, time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), stats[0].Date)
	assert.Equal(t, 2, stats[len(stats)-1].Count)
	for _, s := range stats[:len(stats)-1] {
		assert.Equal(t, 0, s.Count)
	}
}
