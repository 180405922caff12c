// Package repository はデータ永続化のインターフェースを定義する。
// すべての検索・更新・削除の述語にuser_idを含め、所有者スコープを
// リポジトリ層で強制する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/studysync/internal/model"
	"github.com/hitoshi/studysync/internal/sync"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 所有する全データ（セッション、チャット、スケジュール、音声）はCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はログインセッションの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByTokenHash はトークンハッシュでセッションを取得する。
	// 期限切れまたは未検出の場合はnilを返す。
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error)

	// DeleteByTokenHash は指定トークンのセッションを削除する。
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error

	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	// 保持期間ワーカーから呼ばれる。
	DeleteExpired(ctx context.Context) (int64, error)
}

// ChatSessionFilter はチャットセッション一覧の取得条件。
type ChatSessionFilter struct {
	Subject   string
	StartDate *time.Time // started_at >=
	EndDate   *time.Time // started_at <=
	Since     *time.Time // last_synced_at > （増分同期の厳密な境界）
}

// ChatSessionRepository はチャットセッションの永続化インターフェース。
type ChatSessionRepository interface {
	// Upsert はsession_idをキーにlast-write-winsで全フィールド上書きする。
	// 未存在なら作成する。session_idが他ユーザーの行と衝突した場合はエラー。
	// nowは各項目ごとに呼び出し側が採ったタイムスタンプで、
	// last_synced_at/updated_atに設定される。
	Upsert(ctx context.Context, userID string, in *model.ChatSessionInput, now time.Time) (*model.ChatSession, error)

	// Update は既存セッションをlast-write-winsで全フィールド上書きする。
	// 所有者スコープで未検出の場合はnilを返す（作成はしない）。
	Update(ctx context.Context, userID string, in *model.ChatSessionInput, now time.Time) (*model.ChatSession, error)

	// FindBySessionID は所有者スコープでセッションを取得する。見つからない場合はnilを返す。
	FindBySessionID(ctx context.Context, userID, sessionID string) (*model.ChatSession, error)

	// List は取得条件に一致するセッションをstarted_at降順（id昇順タイブレーク）で返す。
	List(ctx context.Context, userID string, f ChatSessionFilter, page sync.Page) ([]model.ChatSession, error)

	// Count はListと同一条件の総件数を返す。
	Count(ctx context.Context, userID string, f ChatSessionFilter) (int, error)

	// BumpMessageStats はメッセージ作成に伴いmessage_countを加算し、
	// last_message_at/last_synced_at/updated_atを更新する。
	BumpMessageStats(ctx context.Context, userID, sessionID string, messageAt, now time.Time) error

	// Delete は所有者スコープでセッションを削除し、削除件数を返す。
	// 配下のメッセージは呼び出し側が先に削除して件数を取る。
	Delete(ctx context.Context, userID, sessionID string) (int64, error)
}

// ChatMessageFilter はチャットメッセージ一覧の取得条件。
type ChatMessageFilter struct {
	SessionID string
	Since     *time.Time // last_synced_at >
}

// ChatMessageRepository はチャットメッセージの永続化インターフェース。
type ChatMessageRepository interface {
	// Upsert はmessage_idをキーにlast-write-winsで全フィールド上書きする。
	// msgには呼び出し側がタイムスタンプとサニタイズ済みContentを設定しておく。
	Upsert(ctx context.Context, msg *model.ChatMessage) (*model.ChatMessage, error)

	// Update は既存メッセージをlast-write-winsで全フィールド上書きする。
	// 所有者スコープで未検出の場合はnilを返す（作成はしない）。
	Update(ctx context.Context, msg *model.ChatMessage) (*model.ChatMessage, error)

	// List は取得条件に一致するメッセージをcreated_at昇順（id昇順タイブレーク）で返す。
	List(ctx context.Context, userID string, f ChatMessageFilter, page sync.Page) ([]model.ChatMessage, error)

	// Count はListと同一条件の総件数を返す。
	Count(ctx context.Context, userID string, f ChatMessageFilter) (int, error)

	// DeleteByMessageID は所有者スコープでメッセージを削除し、削除件数を返す。
	DeleteByMessageID(ctx context.Context, userID, messageID string) (int64, error)

	// DeleteBySessionID はセッション配下の全メッセージを削除し、削除件数を返す。
	DeleteBySessionID(ctx context.Context, userID, sessionID string) (int64, error)
}

// ScheduleItemFilter はスケジュール項目一覧の取得条件。
type ScheduleItemFilter struct {
	Status    string
	Priority  string
	Subject   string
	StartDate *time.Time // due_date >=
	EndDate   *time.Time // due_date <=
	Since     *time.Time // last_synced_at >
}

// ScheduleItemRepository はスケジュール項目の永続化インターフェース。
type ScheduleItemRepository interface {
	// Create は新規項目を作成する。IDは呼び出し側が採番する。
	Create(ctx context.Context, item *model.ScheduleItem) error

	// Update は所有者スコープでlast-write-winsの全フィールド上書きを行い、
	// 永続化後の行を返す。未検出の場合はnilを返す（作成はしない）。
	Update(ctx context.Context, item *model.ScheduleItem) (*model.ScheduleItem, error)

	// List は取得条件に一致する項目をdue_date昇順・priority降順・created_at降順
	// （id昇順タイブレーク）で返す。
	List(ctx context.Context, userID string, f ScheduleItemFilter, page sync.Page) ([]model.ScheduleItem, error)

	// Count はListと同一条件の総件数を返す。
	Count(ctx context.Context, userID string, f ScheduleItemFilter) (int, error)

	// DeleteByID は所有者スコープで項目を削除し、削除件数を返す。
	DeleteByID(ctx context.Context, userID, id string) (int64, error)

	// DeleteByIDs は所有者スコープで複数項目を削除し、削除件数を返す。
	DeleteByIDs(ctx context.Context, userID string, ids []string) (int64, error)
}

// VoiceSettingsRepository は音声設定の永続化インターフェース。
type VoiceSettingsRepository interface {
	// FindByUserID はユーザーの設定を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.VoiceSettings, error)

	// Create は設定行を作成する。IDは呼び出し側が採番する。
	Create(ctx context.Context, settings *model.VoiceSettings) error

	// Upsert はuser_idをキーにlast-write-winsで全フィールド上書きする。
	// 未存在なら作成する。
	Upsert(ctx context.Context, settings *model.VoiceSettings) (*model.VoiceSettings, error)
}

// VoiceCommandFilter は音声コマンド一覧の取得条件。
type VoiceCommandFilter struct {
	SessionID  string
	Successful *bool
	StartDate  *time.Time // executed_at >=
	EndDate    *time.Time // executed_at <=
	Since      *time.Time // last_synced_at >
}

// VoiceCommandRepository は音声コマンド履歴の永続化インターフェース。
type VoiceCommandRepository interface {
	// Create は新規コマンドを作成する。IDは呼び出し側が採番する。
	Create(ctx context.Context, cmd *model.VoiceCommand) error

	// Update は所有者スコープでlast-write-winsの全フィールド上書きを行い、
	// 永続化後の行を返す。未検出の場合はnilを返す（作成はしない）。
	Update(ctx context.Context, cmd *model.VoiceCommand) (*model.VoiceCommand, error)

	// List は取得条件に一致するコマンドをexecuted_at降順（id昇順タイブレーク）で返す。
	List(ctx context.Context, userID string, f VoiceCommandFilter, page sync.Page) ([]model.VoiceCommand, error)

	// Count はListと同一条件の総件数を返す。
	Count(ctx context.Context, userID string, f VoiceCommandFilter) (int, error)

	// DeleteByID は所有者スコープでコマンドを削除し、削除件数を返す。
	DeleteByID(ctx context.Context, userID, id string) (int64, error)

	// DeleteBySessionID はセッションに紐付く全コマンドを削除し、削除件数を返す。
	DeleteBySessionID(ctx context.Context, userID, sessionID string) (int64, error)

	// DeleteOlderThan はexecuted_atがcutoffより古いコマンドを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, userID string, cutoff time.Time) (int64, error)

	// DeleteExecutedBefore は全ユーザーを対象にexecuted_atがcutoffより古い
	// コマンドを削除する。保持期間ワーカーから呼ばれる。
	DeleteExecutedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
