// Package auth は資格情報認証、セッション管理、ヘルパートークン発行を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/studysync/internal/model"
	"github.com/hitoshi/studysync/internal/repository"
)

const minPasswordLength = 8

// SessionToken は発行済みセッションの平文トークンと有効期限を表す。
// 平文はレスポンスのCookieにのみ載り、DBにはSHA-256ハッシュを保存する。
type SessionToken struct {
	Token     string
	ExpiresAt time.Time
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge     int // セッション有効期間（秒）
	HelperTokenSecret []byte
	HelperTokenTTL    time.Duration
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// Register は新規ユーザーを登録し、セッションを発行する。
func (s *Service) Register(ctx context.Context, email, password, name string) (*model.User, *SessionToken, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, model.NewValidationError("emailの形式が正しくありません")
	}
	if len(password) < minPasswordLength {
		return nil, nil, model.NewValidationError(fmt.Sprintf("passwordは%d文字以上で指定してください", minPasswordLength))
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, nil, model.NewEmailTakenError()
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("new user registered", slog.String("user_id", user.ID))
	return user, token, nil
}

// Login は資格情報を検証し、セッションを発行する。
// ユーザーの存在有無が判別できないよう、失敗理由は常に同一のエラーにする。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, *SessionToken, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil || !VerifyPassword(password, user.PasswordHash) {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	token, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return user, token, nil
}

// Logout は平文トークンに対応するセッションを破棄する。
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return fmt.Errorf("session token is required")
	}
	if err := s.sessionRepo.DeleteByTokenHash(ctx, HashToken(rawToken)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CurrentUser は平文トークンから現在のユーザーを取得する。
// セッションが無効・期限切れの場合はUNAUTHORIZEDを返す。
func (s *Service) CurrentUser(ctx context.Context, rawToken string) (*model.User, error) {
	if rawToken == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindByTokenHash(ctx, HashToken(rawToken))
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}
	return user, nil
}

// UserFromHelperToken はBearerトークンからユーザーを取得する。
// デスクトップ音声ヘルパーのCookieなしアクセスに使う。
func (s *Service) UserFromHelperToken(ctx context.Context, tokenString string) (*model.User, error) {
	userID, err := ParseHelperToken(tokenString, s.config.HelperTokenSecret)
	if err != nil {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}
	return user, nil
}

// IssueHelperToken は認証済みユーザーにヘルパートークンを発行する。
func (s *Service) IssueHelperToken(userID string) (string, time.Time, error) {
	token, expiresAt, err := GenerateHelperToken(userID, s.config.HelperTokenSecret, s.config.HelperTokenTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ヘルパートークンの発行に失敗しました: %w", err)
	}
	slog.Info("helper token issued", slog.String("user_id", userID))
	return token, expiresAt, nil
}

// Withdraw は退会処理を行う。全セッションを破棄した後にユーザーを削除し、
// 所有データはDBのCASCADEで一括削除される。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user withdrawn", slog.String("user_id", userID))
	return nil
}

// HashToken は平文セッショントークンのSHA-256ハッシュを返す。
// DBにはこのハッシュだけを保存する。
func HashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

// createSession はセッションを作成し永続化する。平文トークンを返す。
func (s *Service) createSession(ctx context.Context, userID string) (*SessionToken, error) {
	rawToken, err := generateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now().UTC()
	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: HashToken(rawToken),
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return &SessionToken{Token: rawToken, ExpiresAt: session.ExpiresAt}, nil
}

// generateSessionToken は暗号的に安全なセッショントークンを生成する。
func generateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
