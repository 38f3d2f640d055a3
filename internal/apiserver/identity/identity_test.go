package identity

import (
	"context"
	"testing"
	"time"

	"sheet-insights/internal/shared/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUserStore 记录 seed 的内存 UserStore（只实现 Resolver 用到的部分）
type fakeUserStore struct {
	users map[string]*model.User
}

func (f *fakeUserStore) ResolveUser(ctx context.Context, subjectKey string, seed *model.User) (*model.User, error) {
	if u, ok := f.users[subjectKey]; ok {
		return u, nil
	}
	f.users[subjectKey] = seed
	return seed, nil
}

func (f *fakeUserStore) GetUser(ctx context.Context, id string) (*model.User, error) { return nil, nil }
func (f *fakeUserStore) GetUserBySubject(ctx context.Context, subjectKey string) (*model.User, error) {
	return f.users[subjectKey], nil
}
func (f *fakeUserStore) ListUsers(ctx context.Context) ([]*model.User, error) { return nil, nil }
func (f *fakeUserStore) UpdateUserProfile(ctx context.Context, id, name, picture string) error {
	return nil
}
func (f *fakeUserStore) SetUserStatus(ctx context.Context, id string, status model.AccountStatus) error {
	return nil
}
func (f *fakeUserStore) DeleteUser(ctx context.Context, id string) error { return nil }
func (f *fakeUserStore) CountUsersByDay(ctx context.Context, since time.Time) (map[string]int, error) {
	return nil, nil
}

func TestResolveOrCreateSeedsFromAssertion(t *testing.T) {
	store := &fakeUserStore{users: map[string]*model.User{}}
	r := NewResolver(store)

	user, err := r.ResolveOrCreate(context.Background(), &Assertion{
		SubjectKey:  "sub-1",
		DisplayName: "Ada",
		Email:       "ada@example.com",
		AvatarURL:   "https://pic",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "sub-1", user.SubjectKey)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, model.StatusActive, user.Status)

	// 再次解析同一主体：返回既有账号
	again, err := r.ResolveOrCreate(context.Background(), &Assertion{SubjectKey: "sub-1", DisplayName: "Other"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, "Ada", again.Name)
}

// ============================================================================
// JWTVerifier
// ============================================================================

func sessionToken(t *testing.T, secret, subject string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":     subject,
		"name":    "Ada",
		"email":   "ada@example.com",
		"picture": "https://pic",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJWTVerifier(t *testing.T) {
	v := NewJWTVerifier("identity-secret")

	assertion, err := v.Verify(context.Background(), sessionToken(t, "identity-secret", "sub-1"))
	require.NoError(t, err)
	assert.Equal(t, "sub-1", assertion.SubjectKey)
	assert.Equal(t, "Ada", assertion.DisplayName)
	assert.Equal(t, "ada@example.com", assertion.Email)
	assert.Equal(t, "https://pic", assertion.AvatarURL)
}

func TestJWTVerifierRejects(t *testing.T) {
	v := NewJWTVerifier("identity-secret")

	_, err := v.Verify(context.Background(), "garbage")
	assert.Error(t, err)

	// 错误密钥签名
	_, err = v.Verify(context.Background(), sessionToken(t, "wrong-secret", "sub-1"))
	assert.Error(t, err)

	// 缺少 subject
	_, err = v.Verify(context.Background(), sessionToken(t, "identity-secret", ""))
	assert.Error(t, err)
}

func TestJWTVerifierEmptySecret(t *testing.T) {
	v := NewJWTVerifier("")

	// 未配置密钥时，用空串签出的令牌本可通过 HMAC 校验，必须整体拒绝
	_, err := v.Verify(context.Background(), sessionToken(t, "", "sub-1"))
	assert.Error(t, err)
}
