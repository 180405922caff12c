package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/studysync/internal/model"
	"github.com/hitoshi/studysync/internal/sync"
)

// PostgresVoiceCommandRepo はPostgreSQLを使用した音声コマンドリポジトリ。
type PostgresVoiceCommandRepo struct {
	db *sql.DB
}

// NewPostgresVoiceCommandRepo はPostgresVoiceCommandRepoを生成する。
func NewPostgresVoiceCommandRepo(db *sql.DB) *PostgresVoiceCommandRepo {
	return &PostgresVoiceCommandRepo{db: db}
}

// Create は新規コマンドを作成する。IDは呼び出し側が採番する。
func (r *PostgresVoiceCommandRepo) Create(ctx context.Context, cmd *model.VoiceCommand) error {
	contextJSON, err := json.Marshal(cmd.Context)
	if err != nil {
		return fmt.Errorf("コマンドコンテキストのシリアライズに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO voice_commands (
		    id, user_id, session_id, command, transcription, confidence, intent,
		    response, executed_at, response_time, successful, error_message,
		    context, last_synced_at, created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		cmd.ID, cmd.UserID, nullString(cmd.SessionID), cmd.Command,
		cmd.Transcription, cmd.Confidence, nullString(cmd.Intent),
		nullString(cmd.Response), cmd.ExecutedAt, cmd.ResponseTime,
		cmd.Successful, nullString(cmd.ErrorMessage), contextJSON,
		cmd.LastSyncedAt, cmd.CreatedAt, cmd.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("音声コマンドの作成に失敗しました: %w", err)
	}
	return nil
}

// Update は所有者スコープでlast-write-winsの全フィールド上書きを行い、
// 永続化後の行を返す。未検出（または他ユーザー所有）の場合はnilを返す。
// created_atはサーバー管理のため、クライアント入力ではなくDBの値を返す。
func (r *PostgresVoiceCommandRepo) Update(ctx context.Context, cmd *model.VoiceCommand) (*model.VoiceCommand, error) {
	contextJSON, err := json.Marshal(cmd.Context)
	if err != nil {
		return nil, fmt.Errorf("コマンドコンテキストのシリアライズに失敗しました: %w", err)
	}

	row := r.db.QueryRowContext(ctx,
		`UPDATE voice_commands SET
		    session_id = $3, command = $4, transcription = $5, confidence = $6,
		    intent = $7, response = $8, executed_at = $9, response_time = $10,
		    successful = $11, error_message = $12, context = $13,
		    last_synced_at = $14, updated_at = $14
		 WHERE user_id = $1 AND id = $2
		 RETURNING id, user_id, session_id, command, transcription, confidence, intent,
		    response, executed_at, response_time, successful, error_message,
		    context, last_synced_at, created_at, updated_at`,
		cmd.UserID, cmd.ID, nullString(cmd.SessionID), cmd.Command,
		cmd.Transcription, cmd.Confidence, nullString(cmd.Intent),
		nullString(cmd.Response), cmd.ExecutedAt, cmd.ResponseTime,
		cmd.Successful, nullString(cmd.ErrorMessage), contextJSON,
		cmd.LastSyncedAt,
	)

	saved, err := scanVoiceCommand(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("音声コマンドの更新に失敗しました: %w", err)
	}
	return &saved, nil
}

// voiceCommandWhere はListとCountで共通のWHERE句と引数を組み立てる。
func voiceCommandWhere(userID string, f VoiceCommandFilter) (string, []interface{}) {
	where := "WHERE user_id = $1"
	args := []interface{}{userID}
	argIndex := 2

	if f.SessionID != "" {
		where += fmt.Sprintf(" AND session_id = $%d", argIndex)
		args = append(args, f.SessionID)
		argIndex++
	}
	if f.Successful != nil {
		where += fmt.Sprintf(" AND successful = $%d", argIndex)
		args = append(args, *f.Successful)
		argIndex++
	}
	if f.StartDate != nil {
		where += fmt.Sprintf(" AND executed_at >= $%d", argIndex)
		args = append(args, *f.StartDate)
		argIndex++
	}
	if f.EndDate != nil {
		where += fmt.Sprintf(" AND executed_at <= $%d", argIndex)
		args = append(args, *f.EndDate)
		argIndex++
	}
	if f.Since != nil {
		where += fmt.Sprintf(" AND last_synced_at > $%d", argIndex)
		args = append(args, *f.Since)
		argIndex++
	}

	return where, args
}

// scanVoiceCommand は1行分の音声コマンドを読み取る。
func scanVoiceCommand(scan func(dest ...interface{}) error) (model.VoiceCommand, error) {
	var cmd model.VoiceCommand
	var sessionID, intent, response, errorMessage sql.NullString
	var responseTime sql.NullInt64
	var contextRaw []byte

	err := scan(
		&cmd.ID, &cmd.UserID, &sessionID, &cmd.Command, &cmd.Transcription,
		&cmd.Confidence, &intent, &response, &cmd.ExecutedAt, &responseTime,
		&cmd.Successful, &errorMessage, &contextRaw,
		&cmd.LastSyncedAt, &cmd.CreatedAt, &cmd.UpdatedAt,
	)
	if err != nil {
		return cmd, err
	}

	cmd.SessionID = nullStringValue(sessionID)
	cmd.Intent = nullStringValue(intent)
	cmd.Response = nullStringValue(response)
	cmd.ErrorMessage = nullStringValue(errorMessage)
	if responseTime.Valid {
		rt := int(responseTime.Int64)
		cmd.ResponseTime = &rt
	}

	if err := json.Unmarshal(contextRaw, &cmd.Context); err != nil {
		return cmd, fmt.Errorf("コマンドコンテキストの復元に失敗しました: %w", err)
	}

	return cmd, nil
}

// List は取得条件に一致するコマンドをexecuted_at降順で返す。
// 同時刻の行はid昇順で安定させる。
func (r *PostgresVoiceCommandRepo) List(ctx context.Context, userID string, f VoiceCommandFilter, page sync.Page) ([]model.VoiceCommand, error) {
	where, args := voiceCommandWhere(userID, f)
	argIndex := len(args) + 1

	query := fmt.Sprintf(
		`SELECT id, user_id, session_id, command, transcription, confidence, intent,
		        response, executed_at, response_time, successful, error_message,
		        context, last_synced_at, created_at, updated_at
		 FROM voice_commands %s
		 ORDER BY executed_at DESC, id ASC
		 LIMIT $%d OFFSET $%d`,
		where, argIndex, argIndex+1,
	)
	args = append(args, page.Limit, page.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("音声コマンド一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	commands := []model.VoiceCommand{}
	for rows.Next() {
		cmd, err := scanVoiceCommand(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("音声コマンド行の読み取りに失敗しました: %w", err)
		}
		commands = append(commands, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("音声コマンド一覧の走査に失敗しました: %w", err)
	}

	return commands, nil
}

// Count はListと同一条件の総件数を返す。
func (r *PostgresVoiceCommandRepo) Count(ctx context.Context, userID string, f VoiceCommandFilter) (int, error) {
	where, args := voiceCommandWhere(userID, f)

	var count int
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT count(*) FROM voice_commands %s", where),
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("音声コマンド件数の取得に失敗しました: %w", err)
	}

	return count, nil
}

// DeleteByID は所有者スコープでコマンドを削除し、削除件数を返す。
func (r *PostgresVoiceCommandRepo) DeleteByID(ctx context.Context, userID, id string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM voice_commands WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	if err != nil {
		return 0, fmt.Errorf("音声コマンドの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// DeleteBySessionID はセッションに紐付く全コマンドを削除し、削除件数を返す。
func (r *PostgresVoiceCommandRepo) DeleteBySessionID(ctx context.Context, userID, sessionID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM voice_commands WHERE user_id = $1 AND session_id = $2`,
		userID, sessionID,
	)
	if err != nil {
		return 0, fmt.Errorf("セッション紐付きコマンドの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// DeleteOlderThan はexecuted_atがcutoffより古いコマンドを削除し、削除件数を返す。
func (r *PostgresVoiceCommandRepo) DeleteOlderThan(ctx context.Context, userID string, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM voice_commands WHERE user_id = $1 AND executed_at < $2`,
		userID, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("古い音声コマンドの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// DeleteExecutedBefore は全ユーザーを対象にexecuted_atがcutoffより古い
// コマンドを削除する。保持期間ワーカーから呼ばれる。
func (r *PostgresVoiceCommandRepo) DeleteExecutedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM voice_commands WHERE executed_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("保持期間超過コマンドの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ VoiceCommandRepository = (*PostgresVoiceCommandRepo)(nil)
