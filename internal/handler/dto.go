package handler

import (
	"time"

	"github.com/hitoshi/studysync/internal/model"
)

// フィールド名はクライアントのローカルストアに合わせてcamelCase。

// chatSessionPayload はチャットセッションのリクエスト・レスポンス形式。
type chatSessionPayload struct {
	SessionID     string     `json:"sessionId"`
	Title         string     `json:"title"`
	Subject       string     `json:"subject,omitempty"`
	MessageCount  int        `json:"messageCount"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	EndedAt       *time.Time `json:"endedAt,omitempty"`
	TotalTokens   int        `json:"totalTokens"`
	Summary       string     `json:"summary,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	LastSyncedAt  *time.Time `json:"lastSyncedAt,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

func (p *chatSessionPayload) toInput() *model.ChatSessionInput {
	return &model.ChatSessionInput{
		SessionID:    p.SessionID,
		Title:        p.Title,
		Subject:      p.Subject,
		MessageCount: p.MessageCount,
		StartedAt:    p.StartedAt,
		EndedAt:      p.EndedAt,
		TotalTokens:  p.TotalTokens,
		Summary:      p.Summary,
		Tags:         p.Tags,
	}
}

func toChatSessionPayload(s *model.ChatSession) chatSessionPayload {
	return chatSessionPayload{
		SessionID:     s.SessionID,
		Title:         s.Title,
		Subject:       s.Subject,
		MessageCount:  s.MessageCount,
		StartedAt:     &s.StartedAt,
		LastMessageAt: s.LastMessageAt,
		EndedAt:       s.EndedAt,
		TotalTokens:   s.TotalTokens,
		Summary:       s.Summary,
		Tags:          s.Tags,
		LastSyncedAt:  &s.LastSyncedAt,
		CreatedAt:     &s.CreatedAt,
		UpdatedAt:     &s.UpdatedAt,
	}
}

func toChatSessionPayloads(sessions []model.ChatSession) []chatSessionPayload {
	out := make([]chatSessionPayload, 0, len(sessions))
	for i := range sessions {
		out = append(out, toChatSessionPayload(&sessions[i]))
	}
	return out
}

// chatMessagePayload はチャットメッセージのリクエスト・レスポンス形式。
type chatMessagePayload struct {
	SessionID    string                `json:"sessionId,omitempty"`
	MessageID    string                `json:"messageId"`
	Role         string                `json:"role"`
	Content      string                `json:"content"`
	Metadata     model.MessageMetadata `json:"metadata,omitempty"`
	Tokens       model.TokenUsage      `json:"tokens,omitempty"`
	Timestamp    *time.Time            `json:"timestamp,omitempty"`
	LastSyncedAt *time.Time            `json:"lastSyncedAt,omitempty"`
	CreatedAt    *time.Time            `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time            `json:"updatedAt,omitempty"`
}

func (p *chatMessagePayload) toInput() model.ChatMessageInput {
	return model.ChatMessageInput{
		SessionID: p.SessionID,
		MessageID: p.MessageID,
		Role:      p.Role,
		Content:   p.Content,
		Metadata:  p.Metadata,
		Tokens:    p.Tokens,
		Timestamp: p.Timestamp,
	}
}

func toChatMessagePayload(m *model.ChatMessage) chatMessagePayload {
	return chatMessagePayload{
		SessionID:    m.SessionID,
		MessageID:    m.MessageID,
		Role:         m.Role,
		Content:      m.Content,
		Metadata:     m.Metadata,
		Tokens:       m.Tokens,
		LastSyncedAt: &m.LastSyncedAt,
		CreatedAt:    &m.CreatedAt,
		UpdatedAt:    &m.UpdatedAt,
	}
}

func toChatMessagePayloads(messages []model.ChatMessage) []chatMessagePayload {
	out := make([]chatMessagePayload, 0, len(messages))
	for i := range messages {
		out = append(out, toChatMessagePayload(&messages[i]))
	}
	return out
}

// scheduleItemPayload はスケジュール項目のリクエスト・レスポンス形式。
type scheduleItemPayload struct {
	ID           string                 `json:"id,omitempty"`
	Title        string                 `json:"title"`
	Description  string                 `json:"description,omitempty"`
	Subject      string                 `json:"subject,omitempty"`
	DueDate      *time.Time             `json:"dueDate,omitempty"`
	StartTime    *time.Time             `json:"startTime,omitempty"`
	EndTime      *time.Time             `json:"endTime,omitempty"`
	Duration     *int                   `json:"duration,omitempty"`
	Priority     string                 `json:"priority,omitempty"`
	Status       string                 `json:"status,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
	Reminder     model.ReminderSettings `json:"reminder,omitempty"`
	Recurrence   model.RecurrenceRule   `json:"recurrence,omitempty"`
	CompletedAt  *time.Time             `json:"completedAt,omitempty"`
	LastSyncedAt *time.Time             `json:"lastSyncedAt,omitempty"`
	CreatedAt    *time.Time             `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time             `json:"updatedAt,omitempty"`
}

func (p *scheduleItemPayload) toInput() model.ScheduleItemInput {
	return model.ScheduleItemInput{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Subject:     p.Subject,
		DueDate:     p.DueDate,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		Duration:    p.Duration,
		Priority:    p.Priority,
		Status:      p.Status,
		Tags:        p.Tags,
		Reminder:    p.Reminder,
		Recurrence:  p.Recurrence,
		CompletedAt: p.CompletedAt,
	}
}

func toScheduleItemPayload(item *model.ScheduleItem) scheduleItemPayload {
	return scheduleItemPayload{
		ID:           item.ID,
		Title:        item.Title,
		Description:  item.Description,
		Subject:      item.Subject,
		DueDate:      item.DueDate,
		StartTime:    item.StartTime,
		EndTime:      item.EndTime,
		Duration:     item.Duration,
		Priority:     item.Priority,
		Status:       item.Status,
		Tags:         item.Tags,
		Reminder:     item.Reminder,
		Recurrence:   item.Recurrence,
		CompletedAt:  item.CompletedAt,
		LastSyncedAt: &item.LastSyncedAt,
		CreatedAt:    &item.CreatedAt,
		UpdatedAt:    &item.UpdatedAt,
	}
}

func toScheduleItemPayloads(items []model.ScheduleItem) []scheduleItemPayload {
	out := make([]scheduleItemPayload, 0, len(items))
	for i := range items {
		out = append(out, toScheduleItemPayload(&items[i]))
	}
	return out
}

// voiceSettingsPayload は音声設定のリクエスト・レスポンス形式。
type voiceSettingsPayload struct {
	Enabled             bool       `json:"enabled"`
	Volume              float64    `json:"volume"`
	Rate                int        `json:"rate"`
	Voice               string     `json:"voice,omitempty"`
	Language            string     `json:"language"`
	ActivationKeyword   string     `json:"activationKeyword"`
	WakeWordSensitivity float64    `json:"wakeWordSensitivity"`
	NoiseReduction      bool       `json:"noiseReduction"`
	AutoTranscription   bool       `json:"autoTranscription"`
	ConfidenceThreshold float64    `json:"confidenceThreshold"`
	LastSyncedAt        *time.Time `json:"lastSyncedAt,omitempty"`
	CreatedAt           *time.Time `json:"createdAt,omitempty"`
	UpdatedAt           *time.Time `json:"updatedAt,omitempty"`
}

func (p *voiceSettingsPayload) toInput() *model.VoiceSettingsInput {
	return &model.VoiceSettingsInput{
		Enabled:             p.Enabled,
		Volume:              p.Volume,
		Rate:                p.Rate,
		Voice:               p.Voice,
		Language:            p.Language,
		ActivationKeyword:   p.ActivationKeyword,
		WakeWordSensitivity: p.WakeWordSensitivity,
		NoiseReduction:      p.NoiseReduction,
		AutoTranscription:   p.AutoTranscription,
		ConfidenceThreshold: p.ConfidenceThreshold,
	}
}

func toVoiceSettingsPayload(s *model.VoiceSettings) voiceSettingsPayload {
	return voiceSettingsPayload{
		Enabled:             s.Enabled,
		Volume:              s.Volume,
		Rate:                s.Rate,
		Voice:               s.Voice,
		Language:            s.Language,
		ActivationKeyword:   s.ActivationKeyword,
		WakeWordSensitivity: s.WakeWordSensitivity,
		NoiseReduction:      s.NoiseReduction,
		AutoTranscription:   s.AutoTranscription,
		ConfidenceThreshold: s.ConfidenceThreshold,
		LastSyncedAt:        &s.LastSyncedAt,
		CreatedAt:           &s.CreatedAt,
		UpdatedAt:           &s.UpdatedAt,
	}
}

// voiceCommandPayload は音声コマンドのリクエスト・レスポンス形式。
type voiceCommandPayload struct {
	ID            string               `json:"id,omitempty"`
	SessionID     string               `json:"sessionId,omitempty"`
	Command       string               `json:"command"`
	Transcription string               `json:"transcription,omitempty"`
	Confidence    *float64             `json:"confidence,omitempty"`
	Intent        string               `json:"intent,omitempty"`
	Response      string               `json:"response,omitempty"`
	ExecutedAt    *time.Time           `json:"executedAt,omitempty"`
	ResponseTime  *int                 `json:"responseTime,omitempty"`
	Successful    *bool                `json:"successful,omitempty"`
	ErrorMessage  string               `json:"errorMessage,omitempty"`
	Context       model.CommandContext `json:"context,omitempty"`
	LastSyncedAt  *time.Time           `json:"lastSyncedAt,omitempty"`
	CreatedAt     *time.Time           `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time           `json:"updatedAt,omitempty"`
}

func (p *voiceCommandPayload) toInput() model.VoiceCommandInput {
	return model.VoiceCommandInput{
		SessionID:     p.SessionID,
		Command:       p.Command,
		Transcription: p.Transcription,
		Confidence:    p.Confidence,
		Intent:        p.Intent,
		Response:      p.Response,
		ExecutedAt:    p.ExecutedAt,
		ResponseTime:  p.ResponseTime,
		Successful:    p.Successful,
		ErrorMessage:  p.ErrorMessage,
		Context:       p.Context,
	}
}

func toVoiceCommandPayload(c *model.VoiceCommand) voiceCommandPayload {
	successful := c.Successful
	confidence := c.Confidence
	return voiceCommandPayload{
		ID:            c.ID,
		SessionID:     c.SessionID,
		Command:       c.Command,
		Transcription: c.Transcription,
		Confidence:    &confidence,
		Intent:        c.Intent,
		Response:      c.Response,
		ExecutedAt:    &c.ExecutedAt,
		ResponseTime:  c.ResponseTime,
		Successful:    &successful,
		ErrorMessage:  c.ErrorMessage,
		Context:       c.Context,
		LastSyncedAt:  &c.LastSyncedAt,
		CreatedAt:     &c.CreatedAt,
		UpdatedAt:     &c.UpdatedAt,
	}
}

func toVoiceCommandPayloads(commands []model.VoiceCommand) []voiceCommandPayload {
	out := make([]voiceCommandPayload, 0, len(commands))
	for i := range commands {
		out = append(out, toVoiceCommandPayload(&commands[i]))
	}
	return out
}
