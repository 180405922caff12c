package sync

import "time"

// Meta は同期レスポンスのサーバー時刻情報を表す。
// クライアントはTimestampを保存し、次回のlastSyncedAtとして送る。
type Meta struct {
	Timestamp  time.Time `json:"timestamp"`
	TotalItems int       `json:"totalItems"` // 今回のレスポンスに含めた項目数
	Created    bool      `json:"created,omitempty"` // デフォルト設定を新規作成した場合のみtrue
}

// ReadResponse は読み取り系同期レスポンスの共通エンベロープ。
type ReadResponse struct {
	Items      any        `json:"items"`
	Pagination Pagination `json:"pagination"`
	Sync       Meta       `json:"sync"`
}

// WriteResponse は書き込み系同期レスポンスの共通エンベロープ。
// POSTはCreated、PUTはUpdatedを設定する。部分失敗してもHTTP 200で、
// 失敗項目はErrorsに元の入力とともに載せる。
type WriteResponse struct {
	Created any         `json:"created,omitempty"`
	Updated any         `json:"updated,omitempty"`
	Errors  []ItemError `json:"errors"`
	Count   int         `json:"count"`
	Sync    Meta        `json:"sync"`
}

// DeleteResponse は削除系レスポンスの共通形式。
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// SessionDeleteResponse はチャットセッション削除のレスポンス。
// セッション本体の削除有無と配下メッセージの削除件数を分けて返す。
type SessionDeleteResponse struct {
	DeletedSession  bool  `json:"deletedSession"`
	DeletedMessages int64 `json:"deletedMessages"`
}
