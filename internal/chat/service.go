// Package chat はチャットセッション・メッセージ同期のドメインロジックを提供する。
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/studysync/internal/model"
	"github.com/hitoshi/studysync/internal/repository"
	"github.com/hitoshi/studysync/internal/security"
	"github.com/hitoshi/studysync/internal/sync"
)

// 入力値の上限。クライアント側スキーマと揃えている。
const (
	maxTitleLength   = 200
	maxSubjectLength = 100
	maxContentLength = 10000
)

// Service はチャット同期のサービス層。
type Service struct {
	sessionRepo repository.ChatSessionRepository
	messageRepo repository.ChatMessageRepository
	sanitizer   security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	sessionRepo repository.ChatSessionRepository,
	messageRepo repository.ChatMessageRepository,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		sanitizer:   sanitizer,
	}
}

// ListSessions は取得条件に一致するセッション一覧とフィルタ一致総数を返す。
func (s *Service) ListSessions(ctx context.Context, userID string, f repository.ChatSessionFilter, page sync.Page) ([]model.ChatSession, int, error) {
	sessions, err := s.sessionRepo.List(ctx, userID, f, page)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.sessionRepo.Count(ctx, userID, f)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// ListMessages は取得条件に一致するメッセージ一覧とフィルタ一致総数を返す。
func (s *Service) ListMessages(ctx context.Context, userID string, f repository.ChatMessageFilter, page sync.Page) ([]model.ChatMessage, int, error) {
	messages, err := s.messageRepo.List(ctx, userID, f, page)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.messageRepo.Count(ctx, userID, f)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// validateSessionInput はセッション入力を検証し、デフォルトを補う。
func validateSessionInput(in *model.ChatSessionInput, now time.Time) error {
	if in.SessionID == "" {
		return model.NewValidationError("sessionIdは必須です")
	}
	if len(in.Title) > maxTitleLength {
		return model.NewValidationError(fmt.Sprintf("titleは%d文字以内で指定してください", maxTitleLength))
	}
	if len(in.Subject) > maxSubjectLength {
		return model.NewValidationError(fmt.Sprintf("subjectは%d文字以内で指定してください", maxSubjectLength))
	}
	if in.MessageCount < 0 {
		return model.NewValidationError("messageCountは0以上で指定してください")
	}
	if in.StartedAt == nil {
		in.StartedAt = &now
	}
	return nil
}

// UpsertSession はセッションを作成または全フィールド上書きで更新する。
// 競合時はバージョン確認なしの後勝ち（last-write-wins）。
func (s *Service) UpsertSession(ctx context.Context, userID string, in *model.ChatSessionInput) (*model.ChatSession, error) {
	now := time.Now().UTC()
	if err := validateSessionInput(in, now); err != nil {
		return nil, err
	}
	return s.sessionRepo.Upsert(ctx, userID, in, now)
}

// UpdateSession は既存セッションを全フィールド上書きで更新する。
// 未検出の場合はSESSION_NOT_FOUNDを返し、作成はしない。
func (s *Service) UpdateSession(ctx context.Context, userID string, in *model.ChatSessionInput) (*model.ChatSession, error) {
	now := time.Now().UTC()
	if err := validateSessionInput(in, now); err != nil {
		return nil, err
	}
	session, err := s.sessionRepo.Update(ctx, userID, in, now)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(in.SessionID)
	}
	return session, nil
}

// validateMessageInput はメッセージ入力を検証する。
func validateMessageInput(in *model.ChatMessageInput) error {
	if in.MessageID == "" {
		return model.NewValidationError("messageIdは必須です")
	}
	if in.Role != model.RoleUser && in.Role != model.RoleAssistant {
		return model.NewValidationError("roleはuserまたはassistantを指定してください")
	}
	if in.Content == "" {
		return model.NewValidationError("contentは必須です")
	}
	if len(in.Content) > maxContentLength {
		return model.NewValidationError(fmt.Sprintf("contentは%d文字以内で指定してください", maxContentLength))
	}
	return nil
}

// SaveMessages はメッセージをバッチ保存する。項目ごとに独立して処理し、
// 1件の失敗が他の項目を中断させることはない。保存のたびに親セッションの
// message_count/last_message_atを更新する（補償更新。メッセージ本体とは
// 別トランザクションのため、障害時にカウントがずれることがある）。
func (s *Service) SaveMessages(ctx context.Context, userID, sessionID string, inputs []model.ChatMessageInput) (*sync.Outcome[model.ChatMessage], error) {
	if sessionID == "" {
		return nil, model.NewInvalidRequestError("sessionIdは必須です")
	}
	if len(inputs) > sync.MaxBatchSize {
		return nil, model.NewBatchTooLargeError(sync.MaxBatchSize)
	}

	// 親セッションの存在確認（所有者スコープ）
	session, err := s.sessionRepo.FindBySessionID(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}

	outcome := sync.Run(inputs, func(in model.ChatMessageInput) (model.ChatMessage, error) {
		if err := validateMessageInput(&in); err != nil {
			return model.ChatMessage{}, err
		}

		// クロックは項目ごとに読む。同一バッチ内でもlast_synced_atは単調に進む
		now := time.Now().UTC()
		createdAt := now
		if in.Timestamp != nil {
			createdAt = in.Timestamp.UTC()
		}

		msg := &model.ChatMessage{
			UserID:       userID,
			SessionID:    sessionID,
			MessageID:    in.MessageID,
			Role:         in.Role,
			Content:      s.sanitizer.Sanitize(in.Content),
			Metadata:     in.Metadata,
			Tokens:       in.Tokens,
			LastSyncedAt: now,
			CreatedAt:    createdAt,
		}

		saved, err := s.messageRepo.Upsert(ctx, msg)
		if err != nil {
			return model.ChatMessage{}, err
		}

		// 補償更新の失敗は項目の失敗にしない（ログのみ）
		if err := s.sessionRepo.BumpMessageStats(ctx, userID, sessionID, createdAt, now); err != nil {
			slog.Warn("セッション統計の更新に失敗しました",
				"session_id", sessionID,
				"message_id", in.MessageID,
				"error", err,
			)
		}

		return *saved, nil
	})

	return &outcome, nil
}

// UpdateMessage は既存メッセージを全フィールド上書きで更新する。
// 未検出の場合はMESSAGE_NOT_FOUNDを返し、作成はしない。
func (s *Service) UpdateMessage(ctx context.Context, userID string, in *model.ChatMessageInput) (*model.ChatMessage, error) {
	if err := validateMessageInput(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &model.ChatMessage{
		UserID:       userID,
		MessageID:    in.MessageID,
		Role:         in.Role,
		Content:      s.sanitizer.Sanitize(in.Content),
		Metadata:     in.Metadata,
		Tokens:       in.Tokens,
		LastSyncedAt: now,
	}

	saved, err := s.messageRepo.Update(ctx, msg)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, model.NewMessageNotFoundError(in.MessageID)
	}
	return saved, nil
}

// DeleteSession はセッションと配下の全メッセージを削除する。
// メッセージを先に削除して件数を取り、その後セッション本体を削除する。
// どちらも0件でもエラーにはしない（冪等な削除）。
func (s *Service) DeleteSession(ctx context.Context, userID, sessionID string) (*sync.SessionDeleteResponse, error) {
	deletedMessages, err := s.messageRepo.DeleteBySessionID(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	deletedSessions, err := s.sessionRepo.Delete(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return &sync.SessionDeleteResponse{
		DeletedSession:  deletedSessions > 0,
		DeletedMessages: deletedMessages,
	}, nil
}

// DeleteMessage は単一メッセージを削除する。0件でもエラーにはしない。
func (s *Service) DeleteMessage(ctx context.Context, userID, messageID string) (*sync.DeleteResponse, error) {
	deleted, err := s.messageRepo.DeleteByMessageID(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	return &sync.DeleteResponse{Deleted: deleted}, nil
}
