package sync

import (
	"errors"
	"testing"
)

// TestRun_AllSucceed は全項目成功時の集計を検証する。
func TestRun_AllSucceed(t *testing.T) {
	out := Run([]int{1, 2, 3}, func(n int) (int, error) {
		return n * 2, nil
	})

	if len(out.Applied) != 3 {
		t.Errorf("Applied = %d件, want 3件", len(out.Applied))
	}
	if len(out.Errors) != 0 {
		t.Errorf("Errors = %d件, want 0件", len(out.Errors))
	}
	if out.Applied[2] != 6 {
		t.Errorf("Applied[2] = %d, want 6", out.Applied[2])
	}
}

// TestRun_PartialFailure は1項目の失敗が他の項目に伝播しないことを検証する。
func TestRun_PartialFailure(t *testing.T) {
	out := Run([]string{"a", "bad", "c"}, func(s string) (string, error) {
		if s == "bad" {
			return "", errors.New("validation failed")
		}
		return s + "!", nil
	})

	if len(out.Applied) != 2 {
		t.Errorf("Applied = %d件, want 2件", len(out.Applied))
	}
	if len(out.Errors) != 1 {
		t.Fatalf("Errors = %d件, want 1件", len(out.Errors))
	}
	// 失敗項目には元の入力がそのまま載ること
	if out.Errors[0].Item != "bad" {
		t.Errorf("Errors[0].Item = %v, want %q", out.Errors[0].Item, "bad")
	}
	if out.Errors[0].Error != "validation failed" {
		t.Errorf("Errors[0].Error = %q, want %q", out.Errors[0].Error, "validation failed")
	}
}

// TestRun_AllFail は全件失敗してもエラー項目だけが増え、パニックや
// 中断が起きないことを検証する。
func TestRun_AllFail(t *testing.T) {
	out := Run([]int{1, 2}, func(n int) (int, error) {
		return 0, errors.New("boom")
	})

	if len(out.Applied) != 0 {
		t.Errorf("Applied = %d件, want 0件", len(out.Applied))
	}
	if len(out.Errors) != 2 {
		t.Errorf("Errors = %d件, want 2件", len(out.Errors))
	}
}

// TestRun_Empty は空バッチで空の結果（nilでないスライス）を返すことを検証する。
func TestRun_Empty(t *testing.T) {
	out := Run(nil, func(n int) (int, error) { return n, nil })

	if out.Applied == nil {
		t.Error("Appliedがnilです（JSONで[]になるよう空スライスであるべき）")
	}
	if out.Errors == nil {
		t.Error("Errorsがnilです（JSONで[]になるよう空スライスであるべき）")
	}
}

// TestRun_ContinuesAfterFailure は失敗後も残りの項目が順番どおり処理されることを検証する。
func TestRun_ContinuesAfterFailure(t *testing.T) {
	var seen []int
	Run([]int{1, 2, 3, 4}, func(n int) (int, error) {
		seen = append(seen, n)
		if n%2 == 0 {
			return 0, errors.New("even")
		}
		return n, nil
	})

	if len(seen) != 4 {
		t.Errorf("処理された項目数 = %d, want 4", len(seen))
	}
	for i, n := range seen {
		if n != i+1 {
			t.Errorf("処理順が不正: seen = %v", seen)
			break
		}
	}
}
