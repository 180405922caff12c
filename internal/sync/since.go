package sync

import (
	"fmt"
	"time"
)

// ParseSince はlastSyncedAtクエリパラメータを解釈する。
// 空文字は「全件取得」を意味しnilを返す。時刻はRFC 3339形式。
// 取得側の比較は厳密な「last_synced_at > since」で行うため、
// クライアントは前回レスポンスのsync.timestampをそのまま渡せば
// 同じ行を二度受け取らない。
func ParseSince(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid lastSyncedAt %q: %w", raw, err)
	}
	return &t, nil
}
