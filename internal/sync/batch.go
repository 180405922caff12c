package sync

// ItemError はバッチ内の1項目の失敗を表す。
// クライアントが再送できるよう、元の入力をそのまま返す。
type ItemError struct {
	Item  any    `json:"item"`
	Error string `json:"error"`
}

// Outcome はバッチ書き込みの集計結果を表す。
type Outcome[R any] struct {
	Applied []R
	Errors  []ItemError
}

// Run は項目ごとに独立してopを適用する。1項目の失敗は他の項目に
// 影響せず、処理は常に最後まで進む。全件失敗してもエラーは返さない。
// opは項目ごとに呼ばれるため、各項目のタイムスタンプはop内で
// その都度クロックを読んで採る。
func Run[T, R any](items []T, op func(T) (R, error)) Outcome[R] {
	out := Outcome[R]{
		Applied: make([]R, 0, len(items)),
		Errors:  []ItemError{},
	}
	for _, item := range items {
		applied, err := op(item)
		if err != nil {
			out.Errors = append(out.Errors, ItemError{Item: item, Error: err.Error()})
			continue
		}
		out.Applied = append(out.Applied, applied)
	}
	return out
}
