package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/studysync/internal/model"
)

// PostgresVoiceSettingsRepo はPostgreSQLを使用した音声設定リポジトリ。
type PostgresVoiceSettingsRepo struct {
	db *sql.DB
}

// NewPostgresVoiceSettingsRepo はPostgresVoiceSettingsRepoを生成する。
func NewPostgresVoiceSettingsRepo(db *sql.DB) *PostgresVoiceSettingsRepo {
	return &PostgresVoiceSettingsRepo{db: db}
}

// FindByUserID はユーザーの設定を取得する。見つからない場合はnilを返す。
func (r *PostgresVoiceSettingsRepo) FindByUserID(ctx context.Context, userID string) (*model.VoiceSettings, error) {
	settings := &model.VoiceSettings{}
	var voice sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, enabled, volume, rate, voice, language, activation_keyword,
		        wake_word_sensitivity, noise_reduction, auto_transcription,
		        confidence_threshold, last_synced_at, created_at, updated_at
		 FROM voice_settings WHERE user_id = $1`,
		userID,
	).Scan(
		&settings.ID, &settings.UserID, &settings.Enabled, &settings.Volume,
		&settings.Rate, &voice, &settings.Language, &settings.ActivationKeyword,
		&settings.WakeWordSensitivity, &settings.NoiseReduction,
		&settings.AutoTranscription, &settings.ConfidenceThreshold,
		&settings.LastSyncedAt, &settings.CreatedAt, &settings.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("音声設定の取得に失敗しました: %w", err)
	}

	settings.Voice = nullStringValue(voice)

	return settings, nil
}

// Create は設定行を作成する。
func (r *PostgresVoiceSettingsRepo) Create(ctx context.Context, settings *model.VoiceSettings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO voice_settings (
		    id, user_id, enabled, volume, rate, voice, language, activation_keyword,
		    wake_word_sensitivity, noise_reduction, auto_transcription,
		    confidence_threshold, last_synced_at, created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		settings.ID, settings.UserID, settings.Enabled, settings.Volume,
		settings.Rate, nullString(settings.Voice), settings.Language,
		settings.ActivationKeyword, settings.WakeWordSensitivity,
		settings.NoiseReduction, settings.AutoTranscription,
		settings.ConfidenceThreshold, settings.LastSyncedAt,
		settings.CreatedAt, settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("音声設定の作成に失敗しました: %w", err)
	}
	return nil
}

// Upsert はuser_idをキーにlast-write-winsで全フィールド上書きする。
// 未存在なら作成する。
func (r *PostgresVoiceSettingsRepo) Upsert(ctx context.Context, settings *model.VoiceSettings) (*model.VoiceSettings, error) {
	saved := &model.VoiceSettings{}
	var voice sql.NullString

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO voice_settings (
		    id, user_id, enabled, volume, rate, voice, language, activation_keyword,
		    wake_word_sensitivity, noise_reduction, auto_transcription,
		    confidence_threshold, last_synced_at, created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (user_id) DO UPDATE SET
		    enabled = EXCLUDED.enabled,
		    volume = EXCLUDED.volume,
		    rate = EXCLUDED.rate,
		    voice = EXCLUDED.voice,
		    language = EXCLUDED.language,
		    activation_keyword = EXCLUDED.activation_keyword,
		    wake_word_sensitivity = EXCLUDED.wake_word_sensitivity,
		    noise_reduction = EXCLUDED.noise_reduction,
		    auto_transcription = EXCLUDED.auto_transcription,
		    confidence_threshold = EXCLUDED.confidence_threshold,
		    last_synced_at = EXCLUDED.last_synced_at,
		    updated_at = EXCLUDED.updated_at
		 RETURNING id, user_id, enabled, volume, rate, voice, language,
		    activation_keyword, wake_word_sensitivity, noise_reduction,
		    auto_transcription, confidence_threshold, last_synced_at,
		    created_at, updated_at`,
		settings.ID, settings.UserID, settings.Enabled, settings.Volume,
		settings.Rate, nullString(settings.Voice), settings.Language,
		settings.ActivationKeyword, settings.WakeWordSensitivity,
		settings.NoiseReduction, settings.AutoTranscription,
		settings.ConfidenceThreshold, settings.LastSyncedAt,
		settings.CreatedAt, settings.UpdatedAt,
	).Scan(
		&saved.ID, &saved.UserID, &saved.Enabled, &saved.Volume, &saved.Rate,
		&voice, &saved.Language, &saved.ActivationKeyword,
		&saved.WakeWordSensitivity, &saved.NoiseReduction,
		&saved.AutoTranscription, &saved.ConfidenceThreshold,
		&saved.LastSyncedAt, &saved.CreatedAt, &saved.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("音声設定のUPSERTに失敗しました: %w", err)
	}

	saved.Voice = nullStringValue(voice)

	return saved, nil
}

// compile-time interface check
var _ VoiceSettingsRepository = (*PostgresVoiceSettingsRepo)(nil)
