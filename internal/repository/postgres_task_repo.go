package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/model"
)

// タスクに対するSQLはすべて第1パラメータを所有者IDとし、
// 参照・更新・削除は user_id = $1 で所有者を限定する。
const (
	taskColumns = `id, user_id, title, description, status, due_date, created_at, updated_at`

	insertTaskSQL = `INSERT INTO tasks (user_id, id, title, description, status, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	findTaskSQL = `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 AND id = $2`

	listTasksAscSQL = `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1
		ORDER BY created_at ASC, seq ASC LIMIT $2 OFFSET $3`

	listTasksDescSQL = `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC LIMIT $2 OFFSET $3`

	countTasksSQL = `SELECT count(*) FROM tasks WHERE user_id = $1`

	updateTaskSQL = `UPDATE tasks SET
		    title = COALESCE($3::varchar, title),
		    description = COALESCE($4::varchar, description),
		    status = COALESCE($5::varchar, status),
		    due_date = COALESCE($6::timestamptz, due_date),
		    updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING ` + taskColumns

	deleteTaskSQL = `DELETE FROM tasks WHERE user_id = $1 AND id = $2`
)

// ownerFilteredTaskQueries は user_id = $1 で絞り込むSQLの一覧。
var ownerFilteredTaskQueries = []string{
	findTaskSQL, listTasksAscSQL, listTasksDescSQL,
	countTasksSQL, updateTaskSQL, deleteTaskSQL,
}

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
// タスク操作はForOwnerで得られる所有者限定リポジトリからのみ行える。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// ForOwner は指定ユーザーに限定されたリポジトリを返す。
func (r *PostgresTaskRepo) ForOwner(ownerID string) (OwnerTaskRepository, error) {
	if ownerID == "" {
		return nil, ErrEmptyOwner
	}
	if _, err := uuid.Parse(ownerID); err != nil {
		return nil, fmt.Errorf("invalid owner id %q: %w", ownerID, err)
	}
	return &postgresOwnerTaskRepo{db: r.db, ownerID: ownerID}, nil
}

// postgresOwnerTaskRepo は所有者IDを固定したタスクリポジトリ。
type postgresOwnerTaskRepo struct {
	db      *sql.DB
	ownerID string
}

func (r *postgresOwnerTaskRepo) OwnerID() string {
	return r.ownerID
}

// Create はタスクを作成する。IDが空の場合は新規に採番する。
func (r *postgresOwnerTaskRepo) Create(ctx context.Context, task *model.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	task.UserID = r.ownerID
	if task.Status == "" {
		task.Status = model.TaskStatusTodo
	}

	err := r.db.QueryRowContext(ctx, insertTaskSQL,
		r.ownerID, task.ID, task.Title, nullStringPtr(task.Description), string(task.Status), nullTimePtr(task.DueDate),
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

// FindByID は指定IDのタスクを取得する。IDがUUID形式でない場合も見つからないものとしてnilを返す。
func (r *postgresOwnerTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	task, err := scanTask(r.db.QueryRowContext(ctx, findTaskSQL, r.ownerID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// List は並び順に従ってタスクを取得する。
func (r *postgresOwnerTaskRepo) List(ctx context.Context, offset, limit int, order model.SortOrder) ([]*model.Task, error) {
	query := listTasksDescSQL
	if order == model.SortAsc {
		query = listTasksAscSQL
	}

	rows, err := r.db.QueryContext(ctx, query, r.ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*model.Task, 0, limit)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// Count は所有者のタスク総数を返す。
func (r *postgresOwnerTaskRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, countTasksSQL, r.ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// Update はpatchのnilでないフィールドのみ更新する。
func (r *postgresOwnerTaskRepo) Update(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	var status sql.NullString
	if patch.Status != nil {
		status = sql.NullString{String: string(*patch.Status), Valid: true}
	}

	task, err := scanTask(r.db.QueryRowContext(ctx, updateTaskSQL,
		r.ownerID, id, nullStringPtr(patch.Title), nullStringPtr(patch.Description), status, nullTimePtr(patch.DueDate),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// Delete は指定IDのタスクを削除する。
func (r *postgresOwnerTaskRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx, deleteTaskSQL, r.ownerID, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*model.Task, error) {
	var (
		task        model.Task
		status      string
		description sql.NullString
		dueDate     sql.NullTime
	)
	if err := row.Scan(
		&task.ID, &task.UserID, &task.Title, &description, &status,
		&dueDate, &task.CreatedAt, &task.UpdatedAt,
	); err != nil {
		return nil, err
	}

	task.Status = model.TaskStatus(status)
	if description.Valid {
		task.Description = &description.String
	}
	if dueDate.Valid {
		t := dueDate.Time.UTC()
		task.DueDate = &t
	}
	return &task, nil
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// compile-time interface check
var (
	_ TaskRepository      = (*PostgresTaskRepo)(nil)
	_ OwnerTaskRepository = (*postgresOwnerTaskRepo)(nil)
)
