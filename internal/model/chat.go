// Package model はドメインモデルを定義する。
package model

import "time"

// メッセージのロール
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatSession は学習チャットの1セッションを表す。
// SessionIDはクライアントが採番するグローバル一意のID。
type ChatSession struct {
	ID            string
	UserID        string
	SessionID     string
	Title         string
	Subject       string
	MessageCount  int
	StartedAt     time.Time
	LastMessageAt *time.Time
	EndedAt       *time.Time
	TotalTokens   int
	Summary       string
	Tags          []string
	LastSyncedAt  time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ChatMessage はチャットセッション内の1メッセージを表す。
// MessageIDはクライアントが採番する一意のID。Contentはサニタイズ済み。
type ChatMessage struct {
	ID           string
	UserID       string
	SessionID    string
	MessageID    string
	Role         string
	Content      string
	Metadata     MessageMetadata
	Tokens       TokenUsage
	LastSyncedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MessageMetadata はアシスタント応答に付随する補助情報を表す。
// JSONBカラムにそのまま保存される。
type MessageMetadata struct {
	Subject       string   `json:"subject,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	TimeAvailable int      `json:"timeAvailable,omitempty"`
	Suggestions   []string `json:"suggestions,omitempty"`
	ActionItems   []string `json:"actionItems,omitempty"`
	Confidence    float64  `json:"confidence,omitempty"`
	ResponseTime  int      `json:"responseTime,omitempty"`
}

// TokenUsage はメッセージ生成時のトークン消費量を表す。
type TokenUsage struct {
	Input  int `json:"input,omitempty"`
	Output int `json:"output,omitempty"`
	Total  int `json:"total,omitempty"`
}

// ChatSessionInput はクライアントから受信した未保存のセッションデータを表す。
// 更新時は全フィールド上書き（last-write-wins）。
type ChatSessionInput struct {
	SessionID    string
	Title        string
	Subject      string
	MessageCount int
	StartedAt    *time.Time
	EndedAt      *time.Time
	TotalTokens  int
	Summary      string
	Tags         []string
}

// ChatMessageInput はクライアントから受信した未保存のメッセージデータを表す。
// Contentは保存前にサニタイズされる。Timestampはクライアント側の送信時刻。
type ChatMessageInput struct {
	SessionID string
	MessageID string
	Role      string
	Content   string
	Metadata  MessageMetadata
	Tokens    TokenUsage
	Timestamp *time.Time
}
