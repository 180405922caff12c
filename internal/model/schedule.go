// Package model はドメインモデルを定義する。
package model

import "time"

// スケジュール項目の優先度
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// スケジュール項目の状態
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// ScheduleItem は学習スケジュールの1項目を表す。IDはサーバー採番。
type ScheduleItem struct {
	ID           string
	UserID       string
	Title        string
	Description  string
	Subject      string
	DueDate      *time.Time
	StartTime    *time.Time
	EndTime      *time.Time
	Duration     *int // 分単位（1〜1440）
	Priority     string
	Status       string
	Tags         []string
	Reminder     ReminderSettings
	Recurrence   RecurrenceRule
	CompletedAt  *time.Time
	LastSyncedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReminderSettings はリマインダー設定を表す。JSONBカラムに保存される。
type ReminderSettings struct {
	Enabled       bool   `json:"enabled,omitempty"`
	MinutesBefore int    `json:"minutesBefore,omitempty"`
	Method        string `json:"method,omitempty"`
}

// RecurrenceRule は繰り返し設定を表す。JSONBカラムに保存される。
type RecurrenceRule struct {
	Enabled    bool       `json:"enabled,omitempty"`
	Frequency  string     `json:"frequency,omitempty"` // daily, weekly, monthly
	Interval   int        `json:"interval,omitempty"`
	DaysOfWeek []int      `json:"daysOfWeek,omitempty"`
	EndDate    *time.Time `json:"endDate,omitempty"`
}

// ScheduleItemInput はクライアントから受信した未保存の項目データを表す。
// 更新時はIDを必須とし、全フィールド上書き（last-write-wins）。
type ScheduleItemInput struct {
	ID          string
	Title       string
	Description string
	Subject     string
	DueDate     *time.Time
	StartTime   *time.Time
	EndTime     *time.Time
	Duration    *int
	Priority    string
	Status      string
	Tags        []string
	Reminder    ReminderSettings
	Recurrence  RecurrenceRule
	CompletedAt *time.Time
}
