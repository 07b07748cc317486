package client

import (
	"strings"
	"time"
)

// Filter は読み込み済みタスクに対するクライアント側の絞り込み条件。
// ゼロ値はすべてのタスクに一致する。
type Filter struct {
	Status      string // 空の場合はすべての状態
	Search      string // タイトルと説明の部分一致（大文字小文字を区別しない）
	OverdueOnly bool
}

// IsOverdue は期限がnowより前かどうかを返す。状態は考慮しない。
func IsOverdue(t Task, now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now)
}

// Match はタスクが条件に一致するかどうかを返す。
func (f Filter) Match(t Task, now time.Time) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if q := strings.ToLower(f.Search); q != "" {
		inTitle := strings.Contains(strings.ToLower(t.Title), q)
		inDesc := t.Description != nil && strings.Contains(strings.ToLower(*t.Description), q)
		if !inTitle && !inDesc {
			return false
		}
	}
	if f.OverdueOnly && !IsOverdue(t, now) {
		return false
	}
	return true
}

// ApplyFilter は条件に一致するタスクを元の順序のまま返す。
func ApplyFilter(tasks []Task, f Filter, now time.Time) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t, now) {
			out = append(out, t)
		}
	}
	return out
}

// GroupByStatus はタスクを状態ごとに分類する。3つの状態のキーは常に存在する。
func GroupByStatus(tasks []Task) map[string][]Task {
	groups := map[string][]Task{
		StatusTodo:       {},
		StatusInProgress: {},
		StatusDone:       {},
	}
	for _, t := range tasks {
		groups[t.Status] = append(groups[t.Status], t)
	}
	return groups
}
