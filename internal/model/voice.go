// Package model はドメインモデルを定義する。
package model

import "time"

// VoiceSettings は音声アシスタントのユーザー設定を表す。ユーザーごとに1行。
type VoiceSettings struct {
	ID                  string
	UserID              string
	Enabled             bool
	Volume              float64 // 0〜1
	Rate                int     // 50〜300 (wpm)
	Voice               string  // 空文字はシステムデフォルト
	Language            string
	ActivationKeyword   string
	WakeWordSensitivity float64 // 0〜1
	NoiseReduction      bool
	AutoTranscription   bool
	ConfidenceThreshold float64 // 0〜1
	LastSyncedAt        time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DefaultVoiceSettings は初回アクセス時に作成されるデフォルト設定を返す。
func DefaultVoiceSettings(userID string) *VoiceSettings {
	return &VoiceSettings{
		UserID:              userID,
		Enabled:             true,
		Volume:              0.8,
		Rate:                150,
		Language:            "en-US",
		ActivationKeyword:   "hey study helper",
		WakeWordSensitivity: 0.7,
		NoiseReduction:      true,
		AutoTranscription:   true,
		// フロントエンドの判定閾値に合わせて低めに設定する
		ConfidenceThreshold: 0.4,
	}
}

// VoiceCommand は実行された音声コマンドの履歴を表す。IDはサーバー採番。
type VoiceCommand struct {
	ID            string
	UserID        string
	SessionID     string // 任意。学習セッションとの紐付け
	Command       string
	Transcription string
	Confidence    float64 // 0〜1
	Intent        string
	Response      string
	ExecutedAt    time.Time
	ResponseTime  *int // ミリ秒
	Successful    bool
	ErrorMessage  string
	Context       CommandContext
	LastSyncedAt  time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CommandContext はコマンド実行時のクライアント状態を表す。
// JSONBカラムに保存される。
type CommandContext struct {
	CurrentPage  string `json:"currentPage,omitempty"`
	StudySubject string `json:"studySubject,omitempty"`
	ActiveTimer  bool   `json:"activeTimer,omitempty"`
}

// VoiceSettingsInput はクライアントから受信した未保存の設定データを表す。
// 更新は全フィールド上書き（last-write-wins）。
type VoiceSettingsInput struct {
	Enabled             bool
	Volume              float64
	Rate                int
	Voice               string
	Language            string
	ActivationKeyword   string
	WakeWordSensitivity float64
	NoiseReduction      bool
	AutoTranscription   bool
	ConfidenceThreshold float64
}

// VoiceCommandInput はクライアントから受信した未保存のコマンドデータを表す。
type VoiceCommandInput struct {
	SessionID     string
	Command       string
	Transcription string
	Confidence    *float64 // 必須のためポインタで欠落を区別する
	Intent        string
	Response      string
	ExecutedAt    *time.Time
	ResponseTime  *int
	Successful    *bool
	ErrorMessage  string
	Context       CommandContext
}
