package model

import "time"

// Task はユーザーが所有するタスクを表す。
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description *string
	Status      TaskStatus
	DueDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskStatus はタスクの状態を表す。状態間の遷移に制約はない。
type TaskStatus string

const (
	// TaskStatusTodo は未着手の状態。
	TaskStatusTodo TaskStatus = "todo"
	// TaskStatusInProgress は作業中の状態。
	TaskStatusInProgress TaskStatus = "in-progress"
	// TaskStatusDone は完了した状態。
	TaskStatusDone TaskStatus = "done"
)

// Valid はステータスが定義済みの値かどうかを返す。
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// SortOrder は作成日時による並び順を表す。
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// TaskPatch は部分更新の内容を表す。nilのフィールドは変更しない。
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	DueDate     *time.Time
}

// IsEmpty は更新対象のフィールドが1つもないかどうかを返す。
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.DueDate == nil
}
