// Package retention は保持期間を超過したデータの自動削除ジョブを提供する。
// 期限切れのログインセッションと、保持期間（デフォルト90日）を超過した
// 音声コマンド履歴を日次バッチで削除する。
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/studysync/internal/metrics"
)

// SessionPruner は期限切れセッションの削除インターフェース。
// repository.SessionRepositoryの部分集合。
type SessionPruner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CommandPruner は古い音声コマンド履歴の削除インターフェース。
// repository.VoiceCommandRepositoryの部分集合。
type CommandPruner interface {
	DeleteExecutedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job は保持期間を超過したデータの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type Job struct {
	sessions      SessionPruner
	commands      CommandPruner
	logger        *slog.Logger
	metrics       metrics.MetricsCollector
	RetentionDays int // 音声コマンド履歴の保持日数（デフォルト: 90）
}

// NewJob は新しいJobを生成する。collectorはnil可。
// デフォルトの保持日数は90日。
func NewJob(sessions SessionPruner, commands CommandPruner, logger *slog.Logger, collector metrics.MetricsCollector) *Job {
	return &Job{
		sessions:      sessions,
		commands:      commands,
		logger:        logger,
		metrics:       collector,
		RetentionDays: 90,
	}
}

// Run は期限切れセッションと保持期間超過の音声コマンドを削除する。
// 一方の削除が失敗してももう一方は実行し、エラーはまとめて返す。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	var firstErr error

	expiredSessions, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		firstErr = fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	} else {
		j.recordDeleted("sessions", expiredSessions)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -j.RetentionDays)
	oldCommands, err := j.commands.DeleteExecutedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("音声コマンド履歴の削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		if firstErr == nil {
			firstErr = fmt.Errorf("音声コマンド履歴の削除に失敗: %w", err)
		}
	} else {
		j.recordDeleted("voice_commands", oldCommands)
	}

	if firstErr != nil {
		return firstErr
	}

	duration := time.Since(start)
	j.logger.Info("保持期間ジョブが完了しました",
		slog.Int64("expired_sessions", expiredSessions),
		slog.Int64("old_voice_commands", oldCommands),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は日次でRunを繰り返し実行する。起動直後に1回実行し、
// 以降は24時間間隔で実行する。ctxのキャンセルで停止する。
func (j *Job) Start(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("retention job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("retention job failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (j *Job) recordDeleted(kind string, count int64) {
	if j.metrics != nil {
		j.metrics.RecordRetentionDeleted(kind, int(count))
	}
}
