package auth

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/studysync/internal/model"
)

// mockUserRepo はUserRepositoryのモック。
type mockUserRepo struct {
	users      map[string]*model.User // id -> user
	byEmail    map[string]*model.User
	deletedIDs []string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:   make(map[string]*model.User),
		byEmail: make(map[string]*model.User),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.users[user.ID] = user
	m.byEmail[user.Email] = user
	return nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return m.byEmail[email], nil
}

func (m *mockUserRepo) DeleteByID(_ context.Context, id string) error {
	m.deletedIDs = append(m.deletedIDs, id)
	delete(m.users, id)
	return nil
}

// mockSessionRepo はSessionRepositoryのモック。
type mockSessionRepo struct {
	byTokenHash    map[string]*model.Session
	deletedUserIDs []string
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{byTokenHash: make(map[string]*model.Session)}
}

func (m *mockSessionRepo) Create(_ context.Context, session *model.Session) error {
	m.byTokenHash[session.TokenHash] = session
	return nil
}

func (m *mockSessionRepo) FindByTokenHash(_ context.Context, tokenHash string) (*model.Session, error) {
	session, ok := m.byTokenHash[tokenHash]
	if !ok || session.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	return session, nil
}

func (m *mockSessionRepo) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	delete(m.byTokenHash, tokenHash)
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(_ context.Context, userID string) error {
	m.deletedUserIDs = append(m.deletedUserIDs, userID)
	for hash, session := range m.byTokenHash {
		if session.UserID == userID {
			delete(m.byTokenHash, hash)
		}
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

func newTestService(users *mockUserRepo, sessions *mockSessionRepo) *Service {
	return NewService(users, sessions, ServiceConfig{
		SessionMaxAge:     86400,
		HelperTokenSecret: []byte("test-secret"),
		HelperTokenTTL:    12 * time.Hour,
	})
}

// --- パスワードハッシュテスト ---

// TestHashPassword_VerifyRoundTrip はハッシュと検証の往復をテストする。
func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	encoded, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	if !VerifyPassword("correct horse battery staple", encoded) {
		t.Error("expected correct password to verify")
	}
	if VerifyPassword("wrong password", encoded) {
		t.Error("expected wrong password to fail verification")
	}
}

// TestHashPassword_UniqueSalts は同一パスワードでも毎回異なるハッシュに
// なることをテストする。
func TestHashPassword_UniqueSalts(t *testing.T) {
	h1, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	h2, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	if h1 == h2 {
		t.Error("expected different salts to produce different hashes")
	}
}

// TestVerifyPassword_MalformedHash は不正な形式のハッシュで安全にfalseが
// 返されることをテストする。
func TestVerifyPassword_MalformedHash(t *testing.T) {
	for _, encoded := range []string{"", "nodollar", "$", "!!$!!"} {
		if VerifyPassword("password", encoded) {
			t.Errorf("expected verification to fail for malformed hash %q", encoded)
		}
	}
}

// --- Register テスト ---

// TestRegister_CreatesUserAndSession は登録でユーザーとセッションが
// 作成されることをテストする。
func TestRegister_CreatesUserAndSession(t *testing.T) {
	users := newMockUserRepo()
	sessions := newMockSessionRepo()
	svc := newTestService(users, sessions)

	user, token, err := svc.Register(context.Background(), "taro@example.com", "password123", "太郎")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if user.ID == "" {
		t.Error("expected user ID to be assigned")
	}
	if user.PasswordHash == "password123" || user.PasswordHash == "" {
		t.Error("expected password to be stored as hash")
	}
	if token.Token == "" {
		t.Error("expected session token to be issued")
	}

	// DBには平文トークンではなくハッシュが保存される
	if _, ok := sessions.byTokenHash[token.Token]; ok {
		t.Error("raw token must not be stored in repository")
	}
	if _, ok := sessions.byTokenHash[HashToken(token.Token)]; !ok {
		t.Error("expected hashed token to be stored in repository")
	}
}

// TestRegister_EmailTaken は登録済みメールアドレスでEMAIL_TAKENが
// 返されることをテストする。
func TestRegister_EmailTaken(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestService(users, newMockSessionRepo())

	if _, _, err := svc.Register(context.Background(), "taro@example.com", "password123", "太郎"); err != nil {
		t.Fatalf("first Register returned error: %v", err)
	}

	_, _, err := svc.Register(context.Background(), "taro@example.com", "otherpassword", "次郎")
	if err == nil {
		t.Fatal("expected error for duplicate email")
	}

	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeEmailTaken {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeEmailTaken)
	}
}

// TestRegister_Validation は不正な入力が拒否されることをテストする。
func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"不正なメール形式", "not-an-email", "password123"},
		{"パスワード短すぎ", "taro@example.com", "short"},
	}

	svc := newTestService(newMockUserRepo(), newMockSessionRepo())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(context.Background(), tt.email, tt.password, "太郎")
			if err == nil {
				t.Fatal("expected validation error")
			}
			apiErr, ok := err.(*model.APIError)
			if !ok {
				t.Fatalf("expected *model.APIError, got %T", err)
			}
			if apiErr.Code != model.ErrCodeValidation {
				t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeValidation)
			}
		})
	}
}

// --- Login テスト ---

// TestLogin_Success は正しい資格情報でセッションが発行されることをテストする。
func TestLogin_Success(t *testing.T) {
	users := newMockUserRepo()
	sessions := newMockSessionRepo()
	svc := newTestService(users, sessions)

	if _, _, err := svc.Register(context.Background(), "taro@example.com", "password123", "太郎"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	user, token, err := svc.Login(context.Background(), "taro@example.com", "password123")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if user.Email != "taro@example.com" {
		t.Errorf("user.Email = %q, want %q", user.Email, "taro@example.com")
	}
	if token.Token == "" {
		t.Error("expected session token to be issued")
	}
}

// TestLogin_UniformFailure は未登録ユーザーと誤パスワードで同一のエラーに
// なることをテストする（ユーザー列挙の防止）。
func TestLogin_UniformFailure(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestService(users, newMockSessionRepo())

	if _, _, err := svc.Register(context.Background(), "taro@example.com", "password123", "太郎"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	_, _, errUnknown := svc.Login(context.Background(), "unknown@example.com", "password123")
	_, _, errWrongPw := svc.Login(context.Background(), "taro@example.com", "wrongpassword")

	for _, err := range []error{errUnknown, errWrongPw} {
		if err == nil {
			t.Fatal("expected login to fail")
		}
		apiErr, ok := err.(*model.APIError)
		if !ok {
			t.Fatalf("expected *model.APIError, got %T", err)
		}
		if apiErr.Code != model.ErrCodeInvalidCredentials {
			t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeInvalidCredentials)
		}
	}
	if errUnknown.Error() != errWrongPw.Error() {
		t.Error("expected identical error messages for unknown user and wrong password")
	}
}

// --- CurrentUser / Logout テスト ---

// TestCurrentUser_ValidSession は有効なセッションでユーザーが返されることをテストする。
func TestCurrentUser_ValidSession(t *testing.T) {
	users := newMockUserRepo()
	sessions := newMockSessionRepo()
	svc := newTestService(users, sessions)

	registered, token, err := svc.Register(context.Background(), "taro@example.com", "password123", "太郎")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	user, err := svc.CurrentUser(context.Background(), token.Token)
	if err != nil {
		t.Fatalf("CurrentUser returned error: %v", err)
	}
	if user.ID != registered.ID {
		t.Errorf("user.ID = %q, want %q", user.ID, registered.ID)
	}
}

// TestCurrentUser_AfterLogout はログアウト後のトークンが無効になることをテストする。
func TestCurrentUser_AfterLogout(t *testing.T) {
	svc := newTestService(newMockUserRepo(), newMockSessionRepo())

	_, token, err := svc.Register(context.Background(), "taro@example.com", "password123", "太郎")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if err := svc.Logout(context.Background(), token.Token); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}

	_, err = svc.CurrentUser(context.Background(), token.Token)
	if err == nil {
		t.Fatal("expected error after logout")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeUnauthorized {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeUnauthorized)
	}
}

// TestCurrentUser_EmptyToken は空トークンでUNAUTHORIZEDが返されることをテストする。
func TestCurrentUser_EmptyToken(t *testing.T) {
	svc := newTestService(newMockUserRepo(), newMockSessionRepo())
	_, err := svc.CurrentUser(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for empty token")
	}
}

// --- ヘルパートークンテスト ---

// TestHelperToken_RoundTrip は発行したトークンからユーザーが解決されることをテストする。
func TestHelperToken_RoundTrip(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestService(users, newMockSessionRepo())

	registered, _, err := svc.Register(context.Background(), "taro@example.com", "password123", "太郎")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	token, expiresAt, err := svc.IssueHelperToken(registered.ID)
	if err != nil {
		t.Fatalf("IssueHelperToken returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Error("expected expiresAt to be in the future")
	}

	user, err := svc.UserFromHelperToken(context.Background(), token)
	if err != nil {
		t.Fatalf("UserFromHelperToken returned error: %v", err)
	}
	if user.ID != registered.ID {
		t.Errorf("user.ID = %q, want %q", user.ID, registered.ID)
	}
}

// TestHelperToken_WrongSecret は別の鍵で署名されたトークンが拒否されることをテストする。
func TestHelperToken_WrongSecret(t *testing.T) {
	token, _, err := GenerateHelperToken("user-123", []byte("other-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateHelperToken returned error: %v", err)
	}

	svc := newTestService(newMockUserRepo(), newMockSessionRepo())
	_, err = svc.UserFromHelperToken(context.Background(), token)
	if err == nil {
		t.Fatal("expected error for token signed with a different secret")
	}
}

// TestHelperToken_Expired は期限切れトークンが拒否されることをテストする。
func TestHelperToken_Expired(t *testing.T) {
	token, _, err := GenerateHelperToken("user-123", []byte("test-secret"), -time.Minute)
	if err != nil {
		t.Fatalf("GenerateHelperToken returned error: %v", err)
	}

	if _, err := ParseHelperToken(token, []byte("test-secret")); err == nil {
		t.Fatal("expected error for expired token")
	}
}

// --- Withdraw テスト ---

// TestWithdraw_DeletesSessionsAndUser は退会でセッションとユーザーが
// 削除されることをテストする。
func TestWithdraw_DeletesSessionsAndUser(t *testing.T) {
	users := newMockUserRepo()
	sessions := newMockSessionRepo()
	svc := newTestService(users, sessions)

	registered, token, err := svc.Register(context.Background(), "taro@example.com", "password123", "太郎")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if err := svc.Withdraw(context.Background(), registered.ID); err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}

	if len(sessions.deletedUserIDs) != 1 || sessions.deletedUserIDs[0] != registered.ID {
		t.Errorf("deleted session user IDs = %v, want [%s]", sessions.deletedUserIDs, registered.ID)
	}
	if len(users.deletedIDs) != 1 || users.deletedIDs[0] != registered.ID {
		t.Errorf("deleted user IDs = %v, want [%s]", users.deletedIDs, registered.ID)
	}

	if _, err := svc.CurrentUser(context.Background(), token.Token); err == nil {
		t.Error("expected session to be invalid after withdrawal")
	}
}
