package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/studysync/internal/model"
	"github.com/hitoshi/studysync/internal/sync"
)

// PostgresChatMessageRepo はPostgreSQLを使用したチャットメッセージリポジトリ。
type PostgresChatMessageRepo struct {
	db *sql.DB
}

// NewPostgresChatMessageRepo はPostgresChatMessageRepoを生成する。
func NewPostgresChatMessageRepo(db *sql.DB) *PostgresChatMessageRepo {
	return &PostgresChatMessageRepo{db: db}
}

// Upsert はmessage_idをキーにlast-write-winsで全フィールド上書きする。
// message_idが他ユーザーの行と衝突した場合はエラーを返す。
func (r *PostgresChatMessageRepo) Upsert(ctx context.Context, msg *model.ChatMessage) (*model.ChatMessage, error) {
	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return nil, fmt.Errorf("メタデータのシリアライズに失敗しました: %w", err)
	}
	tokensJSON, err := json.Marshal(msg.Tokens)
	if err != nil {
		return nil, fmt.Errorf("トークン情報のシリアライズに失敗しました: %w", err)
	}

	saved := &model.ChatMessage{}
	var metadataRaw, tokensRaw []byte

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO chat_messages (
		    id, user_id, session_id, message_id, role, content, metadata, tokens,
		    last_synced_at, created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $9)
		 ON CONFLICT (message_id) DO UPDATE SET
		    role = EXCLUDED.role,
		    content = EXCLUDED.content,
		    metadata = EXCLUDED.metadata,
		    tokens = EXCLUDED.tokens,
		    last_synced_at = EXCLUDED.last_synced_at,
		    updated_at = EXCLUDED.updated_at
		 WHERE chat_messages.user_id = EXCLUDED.user_id
		 RETURNING id, user_id, session_id, message_id, role, content, metadata, tokens,
		    last_synced_at, created_at, updated_at`,
		uuid.NewString(), msg.UserID, msg.SessionID, msg.MessageID, msg.Role,
		msg.Content, metadataJSON, tokensJSON, msg.LastSyncedAt, msg.CreatedAt,
	).Scan(
		&saved.ID, &saved.UserID, &saved.SessionID, &saved.MessageID,
		&saved.Role, &saved.Content, &metadataRaw, &tokensRaw,
		&saved.LastSyncedAt, &saved.CreatedAt, &saved.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("message_id %s is owned by another user", msg.MessageID)
	}
	if err != nil {
		return nil, fmt.Errorf("チャットメッセージのUPSERTに失敗しました: %w", err)
	}

	if err := json.Unmarshal(metadataRaw, &saved.Metadata); err != nil {
		return nil, fmt.Errorf("メタデータの復元に失敗しました: %w", err)
	}
	if err := json.Unmarshal(tokensRaw, &saved.Tokens); err != nil {
		return nil, fmt.Errorf("トークン情報の復元に失敗しました: %w", err)
	}

	return saved, nil
}

// Update は既存メッセージをlast-write-winsで全フィールド上書きする。
// 所有者スコープで未検出の場合はnilを返す（作成はしない）。
func (r *PostgresChatMessageRepo) Update(ctx context.Context, msg *model.ChatMessage) (*model.ChatMessage, error) {
	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return nil, fmt.Errorf("メタデータのシリアライズに失敗しました: %w", err)
	}
	tokensJSON, err := json.Marshal(msg.Tokens)
	if err != nil {
		return nil, fmt.Errorf("トークン情報のシリアライズに失敗しました: %w", err)
	}

	saved := &model.ChatMessage{}
	var metadataRaw, tokensRaw []byte

	err = r.db.QueryRowContext(ctx,
		`UPDATE chat_messages SET
		    role = $3, content = $4, metadata = $5, tokens = $6,
		    last_synced_at = $7, updated_at = $7
		 WHERE user_id = $1 AND message_id = $2
		 RETURNING id, user_id, session_id, message_id, role, content, metadata, tokens,
		    last_synced_at, created_at, updated_at`,
		msg.UserID, msg.MessageID, msg.Role, msg.Content, metadataJSON,
		tokensJSON, msg.LastSyncedAt,
	).Scan(
		&saved.ID, &saved.UserID, &saved.SessionID, &saved.MessageID,
		&saved.Role, &saved.Content, &metadataRaw, &tokensRaw,
		&saved.LastSyncedAt, &saved.CreatedAt, &saved.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チャットメッセージの更新に失敗しました: %w", err)
	}

	if err := json.Unmarshal(metadataRaw, &saved.Metadata); err != nil {
		return nil, fmt.Errorf("メタデータの復元に失敗しました: %w", err)
	}
	if err := json.Unmarshal(tokensRaw, &saved.Tokens); err != nil {
		return nil, fmt.Errorf("トークン情報の復元に失敗しました: %w", err)
	}

	return saved, nil
}

// chatMessageWhere はListとCountで共通のWHERE句と引数を組み立てる。
func chatMessageWhere(userID string, f ChatMessageFilter) (string, []interface{}) {
	where := "WHERE user_id = $1"
	args := []interface{}{userID}
	argIndex := 2

	if f.SessionID != "" {
		where += fmt.Sprintf(" AND session_id = $%d", argIndex)
		args = append(args, f.SessionID)
		argIndex++
	}
	if f.Since != nil {
		where += fmt.Sprintf(" AND last_synced_at > $%d", argIndex)
		args = append(args, *f.Since)
		argIndex++
	}

	return where, args
}

// List は取得条件に一致するメッセージをcreated_at昇順で返す。
// 同時刻の行はid昇順で安定させる。
func (r *PostgresChatMessageRepo) List(ctx context.Context, userID string, f ChatMessageFilter, page sync.Page) ([]model.ChatMessage, error) {
	where, args := chatMessageWhere(userID, f)
	argIndex := len(args) + 1

	query := fmt.Sprintf(
		`SELECT id, user_id, session_id, message_id, role, content, metadata, tokens,
		        last_synced_at, created_at, updated_at
		 FROM chat_messages %s
		 ORDER BY created_at ASC, id ASC
		 LIMIT $%d OFFSET $%d`,
		where, argIndex, argIndex+1,
	)
	args = append(args, page.Limit, page.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("チャットメッセージ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	messages := []model.ChatMessage{}
	for rows.Next() {
		var m model.ChatMessage
		var metadataRaw, tokensRaw []byte

		if err := rows.Scan(
			&m.ID, &m.UserID, &m.SessionID, &m.MessageID, &m.Role, &m.Content,
			&metadataRaw, &tokensRaw, &m.LastSyncedAt, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("チャットメッセージ行の読み取りに失敗しました: %w", err)
		}

		if err := json.Unmarshal(metadataRaw, &m.Metadata); err != nil {
			return nil, fmt.Errorf("メタデータの復元に失敗しました: %w", err)
		}
		if err := json.Unmarshal(tokensRaw, &m.Tokens); err != nil {
			return nil, fmt.Errorf("トークン情報の復元に失敗しました: %w", err)
		}

		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("チャットメッセージ一覧の走査に失敗しました: %w", err)
	}

	return messages, nil
}

// Count はListと同一条件の総件数を返す。
func (r *PostgresChatMessageRepo) Count(ctx context.Context, userID string, f ChatMessageFilter) (int, error) {
	where, args := chatMessageWhere(userID, f)

	var count int
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT count(*) FROM chat_messages %s", where),
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("チャットメッセージ件数の取得に失敗しました: %w", err)
	}

	return count, nil
}

// DeleteByMessageID は所有者スコープでメッセージを削除し、削除件数を返す。
func (r *PostgresChatMessageRepo) DeleteByMessageID(ctx context.Context, userID, messageID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM chat_messages WHERE user_id = $1 AND message_id = $2`,
		userID, messageID,
	)
	if err != nil {
		return 0, fmt.Errorf("チャットメッセージの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// DeleteBySessionID はセッション配下の全メッセージを削除し、削除件数を返す。
func (r *PostgresChatMessageRepo) DeleteBySessionID(ctx context.Context, userID, sessionID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM chat_messages WHERE user_id = $1 AND session_id = $2`,
		userID, sessionID,
	)
	if err != nil {
		return 0, fmt.Errorf("セッション配下メッセージの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ ChatMessageRepository = (*PostgresChatMessageRepo)(nil)
