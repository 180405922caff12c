// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, sync, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken           = "EMAIL_TAKEN"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeBatchTooLarge        = "BATCH_TOO_LARGE"
	ErrCodeSessionNotFound      = "SESSION_NOT_FOUND"
	ErrCodeMessageNotFound      = "MESSAGE_NOT_FOUND"
	ErrCodeScheduleItemNotFound = "SCHEDULE_ITEM_NOT_FOUND"
	ErrCodeCommandNotFound      = "COMMAND_NOT_FOUND"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
)

// NewUnauthorizedError は認証切れ・未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// ユーザーの存在有無を漏らさないよう、メッセージは共通にする。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト形式を確認してください。",
	}
}

// NewBatchTooLargeError はバッチ件数超過エラーを生成する。
func NewBatchTooLargeError(max int) *APIError {
	return &APIError{
		Code:     ErrCodeBatchTooLarge,
		Message:  fmt.Sprintf("一度に送信できる件数は%d件までです。", max),
		Category: "validation",
		Action:   "件数を分割して再送信してください。",
	}
}

// NewSessionNotFoundError はチャットセッション未検出エラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定されたセッションが見つかりません: %s", sessionID),
		Category: "sync",
		Action:   "セッションIDを確認してください。",
	}
}

// NewMessageNotFoundError はチャットメッセージ未検出エラーを生成する。
func NewMessageNotFoundError(messageID string) *APIError {
	return &APIError{
		Code:     ErrCodeMessageNotFound,
		Message:  fmt.Sprintf("指定されたメッセージが見つかりません: %s", messageID),
		Category: "sync",
		Action:   "メッセージIDを確認してください。",
	}
}

// NewScheduleItemNotFoundError はスケジュール項目未検出エラーを生成する。
func NewScheduleItemNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeScheduleItemNotFound,
		Message:  fmt.Sprintf("指定されたスケジュール項目が見つかりません: %s", id),
		Category: "sync",
		Action:   "項目IDを確認してください。",
	}
}

// NewCommandNotFoundError は音声コマンド未検出エラーを生成する。
func NewCommandNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeCommandNotFound,
		Message:  fmt.Sprintf("指定された音声コマンドが見つかりません: %s", id),
		Category: "sync",
		Action:   "コマンドIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}
