package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/studysync/internal/model"
	"github.com/hitoshi/studysync/internal/sync"
)

// PostgresChatSessionRepo はPostgreSQLを使用したチャットセッションリポジトリ。
type PostgresChatSessionRepo struct {
	db *sql.DB
}

// NewPostgresChatSessionRepo はPostgresChatSessionRepoを生成する。
func NewPostgresChatSessionRepo(db *sql.DB) *PostgresChatSessionRepo {
	return &PostgresChatSessionRepo{db: db}
}

// Upsert はsession_idをキーにlast-write-winsで全フィールド上書きする。
// session_idがグローバル一意のため、他ユーザーの行と衝突した場合は
// 更新対象から外れ、エラーを返す。
func (r *PostgresChatSessionRepo) Upsert(ctx context.Context, userID string, in *model.ChatSessionInput, now time.Time) (*model.ChatSession, error) {
	session := &model.ChatSession{}
	var lastMessageAt, endedAt sql.NullTime
	var tags pq.StringArray

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO chat_sessions (
		    id, user_id, session_id, title, subject, message_count, started_at,
		    ended_at, total_tokens, summary, tags, last_synced_at, created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12, $12)
		 ON CONFLICT (session_id) DO UPDATE SET
		    title = EXCLUDED.title,
		    subject = EXCLUDED.subject,
		    message_count = EXCLUDED.message_count,
		    started_at = EXCLUDED.started_at,
		    ended_at = EXCLUDED.ended_at,
		    total_tokens = EXCLUDED.total_tokens,
		    summary = EXCLUDED.summary,
		    tags = EXCLUDED.tags,
		    last_synced_at = EXCLUDED.last_synced_at,
		    updated_at = EXCLUDED.updated_at
		 WHERE chat_sessions.user_id = EXCLUDED.user_id
		 RETURNING id, user_id, session_id, title, subject, message_count, started_at,
		    last_message_at, ended_at, total_tokens, summary, tags,
		    last_synced_at, created_at, updated_at`,
		uuid.NewString(), userID, in.SessionID, in.Title, in.Subject,
		in.MessageCount, in.StartedAt, in.EndedAt, in.TotalTokens, in.Summary,
		pq.Array(in.Tags), now,
	).Scan(
		&session.ID, &session.UserID, &session.SessionID, &session.Title,
		&session.Subject, &session.MessageCount, &session.StartedAt,
		&lastMessageAt, &endedAt, &session.TotalTokens, &session.Summary,
		&tags, &session.LastSyncedAt, &session.CreatedAt, &session.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		// 他ユーザー所有のsession_idと衝突し、更新対象にならなかった
		return nil, fmt.Errorf("session_id %s is owned by another user", in.SessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("チャットセッションのUPSERTに失敗しました: %w", err)
	}

	if lastMessageAt.Valid {
		session.LastMessageAt = &lastMessageAt.Time
	}
	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}
	session.Tags = []string(tags)

	return session, nil
}

// Update は既存セッションをlast-write-winsで全フィールド上書きする。
// 所有者スコープで未検出の場合はnilを返す（作成はしない）。
func (r *PostgresChatSessionRepo) Update(ctx context.Context, userID string, in *model.ChatSessionInput, now time.Time) (*model.ChatSession, error) {
	session := &model.ChatSession{}
	var lastMessageAt, endedAt sql.NullTime
	var tags pq.StringArray

	err := r.db.QueryRowContext(ctx,
		`UPDATE chat_sessions SET
		    title = $3, subject = $4, message_count = $5, started_at = $6,
		    ended_at = $7, total_tokens = $8, summary = $9, tags = $10,
		    last_synced_at = $11, updated_at = $11
		 WHERE user_id = $1 AND session_id = $2
		 RETURNING id, user_id, session_id, title, subject, message_count, started_at,
		    last_message_at, ended_at, total_tokens, summary, tags,
		    last_synced_at, created_at, updated_at`,
		userID, in.SessionID, in.Title, in.Subject, in.MessageCount,
		in.StartedAt, in.EndedAt, in.TotalTokens, in.Summary,
		pq.Array(in.Tags), now,
	).Scan(
		&session.ID, &session.UserID, &session.SessionID, &session.Title,
		&session.Subject, &session.MessageCount, &session.StartedAt,
		&lastMessageAt, &endedAt, &session.TotalTokens, &session.Summary,
		&tags, &session.LastSyncedAt, &session.CreatedAt, &session.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チャットセッションの更新に失敗しました: %w", err)
	}

	if lastMessageAt.Valid {
		session.LastMessageAt = &lastMessageAt.Time
	}
	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}
	session.Tags = []string(tags)

	return session, nil
}

// FindBySessionID は所有者スコープでセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresChatSessionRepo) FindBySessionID(ctx context.Context, userID, sessionID string) (*model.ChatSession, error) {
	session := &model.ChatSession{}
	var lastMessageAt, endedAt sql.NullTime
	var tags pq.StringArray

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, session_id, title, subject, message_count, started_at,
		        last_message_at, ended_at, total_tokens, summary, tags,
		        last_synced_at, created_at, updated_at
		 FROM chat_sessions WHERE user_id = $1 AND session_id = $2`,
		userID, sessionID,
	).Scan(
		&session.ID, &session.UserID, &session.SessionID, &session.Title,
		&session.Subject, &session.MessageCount, &session.StartedAt,
		&lastMessageAt, &endedAt, &session.TotalTokens, &session.Summary,
		&tags, &session.LastSyncedAt, &session.CreatedAt, &session.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チャットセッションの取得に失敗しました: %w", err)
	}

	if lastMessageAt.Valid {
		session.LastMessageAt = &lastMessageAt.Time
	}
	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}
	session.Tags = []string(tags)

	return session, nil
}

// chatSessionWhere はListとCountで共通のWHERE句と引数を組み立てる。
func chatSessionWhere(userID string, f ChatSessionFilter) (string, []interface{}) {
	where := "WHERE user_id = $1"
	args := []interface{}{userID}
	argIndex := 2

	if f.Subject != "" {
		where += fmt.Sprintf(" AND subject = $%d", argIndex)
		args = append(args, f.Subject)
		argIndex++
	}
	if f.StartDate != nil {
		where += fmt.Sprintf(" AND started_at >= $%d", argIndex)
		args = append(args, *f.StartDate)
		argIndex++
	}
	if f.EndDate != nil {
		where += fmt.Sprintf(" AND started_at <= $%d", argIndex)
		args = append(args, *f.EndDate)
		argIndex++
	}
	if f.Since != nil {
		// 厳密な「より後」。前回レスポンスのタイムスタンプちょうどの行は返さない
		where += fmt.Sprintf(" AND last_synced_at > $%d", argIndex)
		args = append(args, *f.Since)
		argIndex++
	}

	return where, args
}

// List は取得条件に一致するセッションをstarted_at降順で返す。
// 同時刻の行はid昇順で安定させる。
func (r *PostgresChatSessionRepo) List(ctx context.Context, userID string, f ChatSessionFilter, page sync.Page) ([]model.ChatSession, error) {
	where, args := chatSessionWhere(userID, f)
	argIndex := len(args) + 1

	query := fmt.Sprintf(
		`SELECT id, user_id, session_id, title, subject, message_count, started_at,
		        last_message_at, ended_at, total_tokens, summary, tags,
		        last_synced_at, created_at, updated_at
		 FROM chat_sessions %s
		 ORDER BY started_at DESC, id ASC
		 LIMIT $%d OFFSET $%d`,
		where, argIndex, argIndex+1,
	)
	args = append(args, page.Limit, page.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("チャットセッション一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	sessions := []model.ChatSession{}
	for rows.Next() {
		var s model.ChatSession
		var lastMessageAt, endedAt sql.NullTime
		var tags pq.StringArray

		if err := rows.Scan(
			&s.ID, &s.UserID, &s.SessionID, &s.Title, &s.Subject,
			&s.MessageCount, &s.StartedAt, &lastMessageAt, &endedAt,
			&s.TotalTokens, &s.Summary, &tags,
			&s.LastSyncedAt, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("チャットセッション行の読み取りに失敗しました: %w", err)
		}

		if lastMessageAt.Valid {
			s.LastMessageAt = &lastMessageAt.Time
		}
		if endedAt.Valid {
			s.EndedAt = &endedAt.Time
		}
		s.Tags = []string(tags)

		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("チャットセッション一覧の走査に失敗しました: %w", err)
	}

	return sessions, nil
}

// Count はListと同一条件の総件数を返す。
func (r *PostgresChatSessionRepo) Count(ctx context.Context, userID string, f ChatSessionFilter) (int, error) {
	where, args := chatSessionWhere(userID, f)

	var count int
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT count(*) FROM chat_sessions %s", where),
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("チャットセッション件数の取得に失敗しました: %w", err)
	}

	return count, nil
}

// BumpMessageStats はメッセージ作成に伴いmessage_countを加算し、
// last_message_at/last_synced_at/updated_atを更新する。
// メッセージ本体の書き込みとは別トランザクションのため、障害時に
// カウントがずれることがある（次回の全フィールド上書きで収束する）。
func (r *PostgresChatSessionRepo) BumpMessageStats(ctx context.Context, userID, sessionID string, messageAt, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chat_sessions SET
		    message_count = message_count + 1,
		    last_message_at = $3,
		    last_synced_at = $4,
		    updated_at = $4
		 WHERE user_id = $1 AND session_id = $2`,
		userID, sessionID, messageAt, now,
	)
	if err != nil {
		return fmt.Errorf("セッション統計の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は所有者スコープでセッションを削除し、削除件数を返す。
func (r *PostgresChatSessionRepo) Delete(ctx context.Context, userID, sessionID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM chat_sessions WHERE user_id = $1 AND session_id = $2`,
		userID, sessionID,
	)
	if err != nil {
		return 0, fmt.Errorf("チャットセッションの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ ChatSessionRepository = (*PostgresChatSessionRepo)(nil)
