// Package sync は増分同期プロトコルの共有型を定義する。
// ページング、ウォーターマーク、バッチ書き込みの結果形式を
// 全エンティティファミリーで共通化する。
package sync

import "strconv"

const (
	// DefaultLimit は limit 未指定時の1ページあたり件数。
	DefaultLimit = 50
	// MaxLimit は limit の上限。超過分はここに丸める。
	MaxLimit = 200
	// MaxBatchSize はバッチ書き込み1回あたりの最大件数。
	MaxBatchSize = 100
)

// Page は正規化済みのページング指定を表す。
type Page struct {
	Limit  int
	Offset int
}

// NormalizePage はクエリ文字列のlimit/offsetを正規化する。
// 不正な値や未指定はデフォルトに落とし、limitは上限に丸める。
// 負のoffsetは0にする。
func NormalizePage(limitStr, offsetStr string) Page {
	p := Page{Limit: DefaultLimit, Offset: 0}

	if limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil && v > 0 {
			p.Limit = v
		}
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	if offsetStr != "" {
		if v, err := strconv.Atoi(offsetStr); err == nil && v > 0 {
			p.Offset = v
		}
	}

	return p
}

// Pagination はレスポンスに含めるページング情報を表す。
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// NewPagination はフィルタ一致総数とページ指定からページング情報を組み立てる。
func NewPagination(total int, p Page) Pagination {
	return Pagination{
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: total > p.Offset+p.Limit,
	}
}
