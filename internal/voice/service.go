// Package voice は音声設定・コマンド履歴同期のドメインロジックを提供する。
package voice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/studysync/internal/model"
	"github.com/hitoshi/studysync/internal/repository"
	"github.com/hitoshi/studysync/internal/sync"
)

const (
	maxCommandLength       = 500
	maxTranscriptionLength = 1000
	minRate                = 50
	maxRate                = 300
)

// Service は音声同期のサービス層。
type Service struct {
	settingsRepo repository.VoiceSettingsRepository
	commandRepo  repository.VoiceCommandRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(settingsRepo repository.VoiceSettingsRepository, commandRepo repository.VoiceCommandRepository) *Service {
	return &Service{
		settingsRepo: settingsRepo,
		commandRepo:  commandRepo,
	}
}

// GetSettings はユーザーの設定を返す。初回アクセス時はデフォルト設定を
// 作成して返し、createdで新規作成を報告する。
func (s *Service) GetSettings(ctx context.Context, userID string) (*model.VoiceSettings, bool, error) {
	settings, err := s.settingsRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if settings != nil {
		return settings, false, nil
	}

	now := time.Now().UTC()
	settings = model.DefaultVoiceSettings(userID)
	settings.ID = uuid.NewString()
	settings.LastSyncedAt = now
	settings.CreatedAt = now
	settings.UpdatedAt = now
	if err := s.settingsRepo.Create(ctx, settings); err != nil {
		return nil, false, err
	}
	return settings, true, nil
}

// validateSettingsInput は設定入力を検証する。
func validateSettingsInput(in *model.VoiceSettingsInput) error {
	if in.Volume < 0 || in.Volume > 1 {
		return model.NewValidationError("volumeは0〜1の範囲で指定してください")
	}
	if in.Rate < minRate || in.Rate > maxRate {
		return model.NewValidationError(fmt.Sprintf("rateは%d〜%dの範囲で指定してください", minRate, maxRate))
	}
	if in.WakeWordSensitivity < 0 || in.WakeWordSensitivity > 1 {
		return model.NewValidationError("wakeWordSensitivityは0〜1の範囲で指定してください")
	}
	if in.ConfidenceThreshold < 0 || in.ConfidenceThreshold > 1 {
		return model.NewValidationError("confidenceThresholdは0〜1の範囲で指定してください")
	}
	return nil
}

// UpsertSettings はuser_idをキーにlast-write-winsで設定を全フィールド上書きする。
// 未存在なら作成する。
func (s *Service) UpsertSettings(ctx context.Context, userID string, in *model.VoiceSettingsInput) (*model.VoiceSettings, error) {
	if err := validateSettingsInput(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	settings := &model.VoiceSettings{
		ID:                  uuid.NewString(), // 既存行がある場合はON CONFLICTで無視される
		UserID:              userID,
		Enabled:             in.Enabled,
		Volume:              in.Volume,
		Rate:                in.Rate,
		Voice:               in.Voice,
		Language:            in.Language,
		ActivationKeyword:   in.ActivationKeyword,
		WakeWordSensitivity: in.WakeWordSensitivity,
		NoiseReduction:      in.NoiseReduction,
		AutoTranscription:   in.AutoTranscription,
		ConfidenceThreshold: in.ConfidenceThreshold,
		LastSyncedAt:        now,
		UpdatedAt:           now,
	}
	return s.settingsRepo.Upsert(ctx, settings)
}

// ListCommands は取得条件に一致するコマンド一覧とフィルタ一致総数を返す。
func (s *Service) ListCommands(ctx context.Context, userID string, f repository.VoiceCommandFilter, page sync.Page) ([]model.VoiceCommand, int, error) {
	commands, err := s.commandRepo.List(ctx, userID, f, page)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.commandRepo.Count(ctx, userID, f)
	if err != nil {
		return nil, 0, err
	}
	return commands, total, nil
}

// validateCommandInput はコマンド入力を検証する。
func validateCommandInput(in *model.VoiceCommandInput) error {
	if in.Command == "" {
		return model.NewValidationError("commandは必須です")
	}
	if len(in.Command) > maxCommandLength {
		return model.NewValidationError(fmt.Sprintf("commandは%d文字以内で指定してください", maxCommandLength))
	}
	if len(in.Transcription) > maxTranscriptionLength {
		return model.NewValidationError(fmt.Sprintf("transcriptionは%d文字以内で指定してください", maxTranscriptionLength))
	}
	if in.Confidence == nil {
		return model.NewValidationError("confidenceは必須です")
	}
	if *in.Confidence < 0 || *in.Confidence > 1 {
		return model.NewValidationError("confidenceは0〜1の範囲で指定してください")
	}
	if in.ExecutedAt == nil {
		return model.NewValidationError("executedAtは必須です")
	}
	return nil
}

// buildCommand は検証済み入力から永続化用のコマンドを組み立てる。
func buildCommand(userID, id string, in model.VoiceCommandInput, now time.Time) *model.VoiceCommand {
	successful := true
	if in.Successful != nil {
		successful = *in.Successful
	}
	return &model.VoiceCommand{
		ID:            id,
		UserID:        userID,
		SessionID:     in.SessionID,
		Command:       in.Command,
		Transcription: in.Transcription,
		Confidence:    *in.Confidence,
		Intent:        in.Intent,
		Response:      in.Response,
		ExecutedAt:    in.ExecutedAt.UTC(),
		ResponseTime:  in.ResponseTime,
		Successful:    successful,
		ErrorMessage:  in.ErrorMessage,
		Context:       in.Context,
		LastSyncedAt:  now,
		UpdatedAt:     now,
	}
}

// SaveCommands はコマンド履歴をバッチ保存する。IDはサーバー側で採番し、
// 項目ごとに独立して処理する。
func (s *Service) SaveCommands(ctx context.Context, userID string, inputs []model.VoiceCommandInput) (*sync.Outcome[model.VoiceCommand], error) {
	if len(inputs) > sync.MaxBatchSize {
		return nil, model.NewBatchTooLargeError(sync.MaxBatchSize)
	}

	outcome := sync.Run(inputs, func(in model.VoiceCommandInput) (model.VoiceCommand, error) {
		if err := validateCommandInput(&in); err != nil {
			return model.VoiceCommand{}, err
		}

		now := time.Now().UTC()
		cmd := buildCommand(userID, uuid.NewString(), in, now)
		cmd.CreatedAt = now
		if err := s.commandRepo.Create(ctx, cmd); err != nil {
			return model.VoiceCommand{}, err
		}
		return *cmd, nil
	})

	return &outcome, nil
}

// UpdateCommand は既存コマンドをlast-write-winsで全フィールド上書きする。
// 未検出の場合はCOMMAND_NOT_FOUNDを返す。
func (s *Service) UpdateCommand(ctx context.Context, userID, id string, in *model.VoiceCommandInput) (*model.VoiceCommand, error) {
	if id == "" {
		return nil, model.NewValidationError("idは必須です")
	}
	if err := validateCommandInput(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cmd := buildCommand(userID, id, *in, now)
	// クライアントにはDBの行をそのまま返す（created_atはサーバー管理）
	saved, err := s.commandRepo.Update(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, model.NewCommandNotFoundError(id)
	}
	return saved, nil
}

// DeleteCommand は単一コマンドを削除し、削除件数を返す。0件でもエラーにはしない。
func (s *Service) DeleteCommand(ctx context.Context, userID, id string) (*sync.DeleteResponse, error) {
	deleted, err := s.commandRepo.DeleteByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return &sync.DeleteResponse{Deleted: deleted}, nil
}

// DeleteCommandsBySession はセッションに紐付く全コマンドを削除する。
func (s *Service) DeleteCommandsBySession(ctx context.Context, userID, sessionID string) (*sync.DeleteResponse, error) {
	deleted, err := s.commandRepo.DeleteBySessionID(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return &sync.DeleteResponse{Deleted: deleted}, nil
}

// DeleteCommandsOlderThan はexecuted_atがcutoffより古いコマンドを削除する。
func (s *Service) DeleteCommandsOlderThan(ctx context.Context, userID string, cutoff time.Time) (*sync.DeleteResponse, error) {
	if cutoff.IsZero() {
		return nil, model.NewValidationError("olderThanを指定してください")
	}

	deleted, err := s.commandRepo.DeleteOlderThan(ctx, userID, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	return &sync.DeleteResponse{Deleted: deleted}, nil
}
