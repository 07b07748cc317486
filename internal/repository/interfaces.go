// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/taskman/internal/model"
)

// ErrDuplicateEmail はメールアドレスが既に登録済みの場合に返される。
var ErrDuplicateEmail = errors.New("repository: email already registered")

// ErrEmptyOwner は所有者IDなしでタスクリポジトリを取得しようとした場合に返される。
var ErrEmptyOwner = errors.New("repository: owner id is required")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成し、CreatedAt/UpdatedAtを設定する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は正規化済みメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// TaskRepository は所有者単位のタスク操作を払い出す。
// タスクへのアクセスは必ずForOwnerを経由する。
type TaskRepository interface {
	// ForOwner は指定ユーザーに限定されたリポジトリを返す。
	// ownerIDが空の場合はErrEmptyOwnerを返す。
	ForOwner(ownerID string) (OwnerTaskRepository, error)
}

// OwnerTaskRepository は1人の所有者に限定されたタスクの永続化インターフェース。
// すべての操作は所有者のタスクのみを対象とし、他ユーザーのタスクは存在しないものとして扱う。
type OwnerTaskRepository interface {
	// OwnerID はこのリポジトリが対象とする所有者IDを返す。
	OwnerID() string

	// Create はタスクを作成する。UserIDは所有者IDで上書きされ、
	// CreatedAt/UpdatedAtはデータベースが割り当てた値で設定される。
	Create(ctx context.Context, task *model.Task) error

	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Task, error)

	// List は作成日時（同時刻は挿入順）で並べたタスクをoffset件スキップしてlimit件返す。
	List(ctx context.Context, offset, limit int, order model.SortOrder) ([]*model.Task, error)

	// Count は所有者のタスク総数を返す。
	Count(ctx context.Context) (int, error)

	// Update はpatchのnilでないフィールドのみ更新し、更新後のタスクを返す。
	// 見つからない場合はnilを返す。
	Update(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error)

	// Delete は指定IDのタスクを削除する。削除対象がなかった場合はfalseを返す。
	Delete(ctx context.Context, id string) (bool, error)
}
