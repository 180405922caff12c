package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/studysync/internal/model"
	"github.com/hitoshi/studysync/internal/sync"
)

// PostgresScheduleRepo はPostgreSQLを使用したスケジュール項目リポジトリ。
type PostgresScheduleRepo struct {
	db *sql.DB
}

// NewPostgresScheduleRepo はPostgresScheduleRepoを生成する。
func NewPostgresScheduleRepo(db *sql.DB) *PostgresScheduleRepo {
	return &PostgresScheduleRepo{db: db}
}

// Create は新規項目を作成する。IDは呼び出し側が採番する。
func (r *PostgresScheduleRepo) Create(ctx context.Context, item *model.ScheduleItem) error {
	reminderJSON, err := json.Marshal(item.Reminder)
	if err != nil {
		return fmt.Errorf("リマインダー設定のシリアライズに失敗しました: %w", err)
	}
	recurrenceJSON, err := json.Marshal(item.Recurrence)
	if err != nil {
		return fmt.Errorf("繰り返し設定のシリアライズに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO schedule_items (
		    id, user_id, title, description, subject, due_date, start_time, end_time,
		    duration, priority, status, tags, reminder, recurrence, completed_at,
		    last_synced_at, created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		item.ID, item.UserID, item.Title, item.Description, item.Subject,
		item.DueDate, item.StartTime, item.EndTime, item.Duration,
		item.Priority, item.Status, pq.Array(item.Tags), reminderJSON,
		recurrenceJSON, item.CompletedAt, item.LastSyncedAt, item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("スケジュール項目の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は所有者スコープでlast-write-winsの全フィールド上書きを行い、
// 永続化後の行を返す。未検出（または他ユーザー所有）の場合はnilを返す。
// created_atはサーバー管理のため、クライアント入力ではなくDBの値を返す。
func (r *PostgresScheduleRepo) Update(ctx context.Context, item *model.ScheduleItem) (*model.ScheduleItem, error) {
	reminderJSON, err := json.Marshal(item.Reminder)
	if err != nil {
		return nil, fmt.Errorf("リマインダー設定のシリアライズに失敗しました: %w", err)
	}
	recurrenceJSON, err := json.Marshal(item.Recurrence)
	if err != nil {
		return nil, fmt.Errorf("繰り返し設定のシリアライズに失敗しました: %w", err)
	}

	row := r.db.QueryRowContext(ctx,
		`UPDATE schedule_items SET
		    title = $3, description = $4, subject = $5, due_date = $6,
		    start_time = $7, end_time = $8, duration = $9, priority = $10,
		    status = $11, tags = $12, reminder = $13, recurrence = $14,
		    completed_at = $15, last_synced_at = $16, updated_at = $16
		 WHERE user_id = $1 AND id = $2
		 RETURNING id, user_id, title, description, subject, due_date, start_time, end_time,
		    duration, priority, status, tags, reminder, recurrence, completed_at,
		    last_synced_at, created_at, updated_at`,
		item.UserID, item.ID, item.Title, item.Description, item.Subject,
		item.DueDate, item.StartTime, item.EndTime, item.Duration,
		item.Priority, item.Status, pq.Array(item.Tags), reminderJSON,
		recurrenceJSON, item.CompletedAt, item.LastSyncedAt,
	)

	saved, err := scanScheduleItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("スケジュール項目の更新に失敗しました: %w", err)
	}
	return &saved, nil
}

// scheduleItemWhere はListとCountで共通のWHERE句と引数を組み立てる。
func scheduleItemWhere(userID string, f ScheduleItemFilter) (string, []interface{}) {
	where := "WHERE user_id = $1"
	args := []interface{}{userID}
	argIndex := 2

	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, f.Status)
		argIndex++
	}
	if f.Priority != "" {
		where += fmt.Sprintf(" AND priority = $%d", argIndex)
		args = append(args, f.Priority)
		argIndex++
	}
	if f.Subject != "" {
		where += fmt.Sprintf(" AND subject = $%d", argIndex)
		args = append(args, f.Subject)
		argIndex++
	}
	if f.StartDate != nil {
		where += fmt.Sprintf(" AND due_date >= $%d", argIndex)
		args = append(args, *f.StartDate)
		argIndex++
	}
	if f.EndDate != nil {
		where += fmt.Sprintf(" AND due_date <= $%d", argIndex)
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

// scanScheduleItem は1行分のスケジュール項目を読み取る。
func scanScheduleItem(scan func(dest ...interface{}) error) (model.ScheduleItem, error) {
	var item model.ScheduleItem
	var dueDate, startTime, endTime, completedAt sql.NullTime
	var duration sql.NullInt64
	var tags pq.StringArray
	var reminderRaw, recurrenceRaw []byte

	err := scan(
		&item.ID, &item.UserID, &item.Title, &item.Description, &item.Subject,
		&dueDate, &startTime, &endTime, &duration, &item.Priority, &item.Status,
		&tags, &reminderRaw, &recurrenceRaw, &completedAt,
		&item.LastSyncedAt, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return item, err
	}

	if dueDate.Valid {
		item.DueDate = &dueDate.Time
	}
	if startTime.Valid {
		item.StartTime = &startTime.Time
	}
	if endTime.Valid {
		item.EndTime = &endTime.Time
	}
	if completedAt.Valid {
		item.CompletedAt = &completedAt.Time
	}
	if duration.Valid {
		d := int(duration.Int64)
		item.Duration = &d
	}
	item.Tags = []string(tags)

	if err := json.Unmarshal(reminderRaw, &item.Reminder); err != nil {
		return item, fmt.Errorf("リマインダー設定の復元に失敗しました: %w", err)
	}
	if err := json.Unmarshal(recurrenceRaw, &item.Recurrence); err != nil {
		return item, fmt.Errorf("繰り返し設定の復元に失敗しました: %w", err)
	}

	return item, nil
}

// List は取得条件に一致する項目をdue_date昇順（NULLは末尾）・priority降順・
// created_at降順で返す。同順の行はid昇順で安定させる。
func (r *PostgresScheduleRepo) List(ctx context.Context, userID string, f ScheduleItemFilter, page sync.Page) ([]model.ScheduleItem, error) {
	where, args := scheduleItemWhere(userID, f)
	argIndex := len(args) + 1

	query := fmt.Sprintf(
		`SELECT id, user_id, title, description, subject, due_date, start_time, end_time,
		        duration, priority, status, tags, reminder, recurrence, completed_at,
		        last_synced_at, created_at, updated_at
		 FROM schedule_items %s
		 ORDER BY due_date ASC NULLS LAST,
		          CASE priority
		              WHEN 'urgent' THEN 4 WHEN 'high' THEN 3
		              WHEN 'medium' THEN 2 ELSE 1
		          END DESC,
		          created_at DESC, id ASC
		 LIMIT $%d OFFSET $%d`,
		where, argIndex, argIndex+1,
	)
	args = append(args, page.Limit, page.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("スケジュール項目一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	items := []model.ScheduleItem{}
	for rows.Next() {
		item, err := scanScheduleItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("スケジュール項目行の読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("スケジュール項目一覧の走査に失敗しました: %w", err)
	}

	return items, nil
}

// Count はListと同一条件の総件数を返す。
func (r *PostgresScheduleRepo) Count(ctx context.Context, userID string, f ScheduleItemFilter) (int, error) {
	where, args := scheduleItemWhere(userID, f)

	var count int
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT count(*) FROM schedule_items %s", where),
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("スケジュール項目件数の取得に失敗しました: %w", err)
	}

	return count, nil
}

// DeleteByID は所有者スコープで項目を削除し、削除件数を返す。
func (r *PostgresScheduleRepo) DeleteByID(ctx context.Context, userID, id string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM schedule_items WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	if err != nil {
		return 0, fmt.Errorf("スケジュール項目の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// DeleteByIDs は所有者スコープで複数項目を削除し、削除件数を返す。
func (r *PostgresScheduleRepo) DeleteByIDs(ctx context.Context, userID string, ids []string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM schedule_items WHERE user_id = $1 AND id = ANY($2::uuid[])`,
		userID, pq.Array(ids),
	)
	if err != nil {
		return 0, fmt.Errorf("スケジュール項目の一括削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ ScheduleItemRepository = (*PostgresScheduleRepo)(nil)
