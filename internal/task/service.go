// Package task はタスク管理のドメインロジックを提供する。
// すべての操作は認証済みユーザー（所有者）の範囲に限定される。
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/validation"
)

const (
	// DefaultPage は一覧取得でpage未指定時のページ番号。
	DefaultPage = 1
	// DefaultLimit は一覧取得でlimit未指定時の件数。
	DefaultLimit = 10
	// DefaultMaxLimit はlimitの上限のデフォルト値。
	DefaultMaxLimit = 100
)

// CreateTaskInput はタスク作成の入力値。
type CreateTaskInput struct {
	Title       string  `json:"title" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Status      string  `json:"status" validate:"omitempty,taskstatus"`
	DueDate     string  `json:"dueDate" validate:"omitempty,isodate"`
}

// UpdateTaskInput はタスク部分更新の入力値。nilのフィールドは変更しない。
type UpdateTaskInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	DueDate     *string `json:"dueDate"`
}

// ListQuery は一覧取得の条件。ゼロ値のフィールドはデフォルト値を使用する。
type ListQuery struct {
	Page      int
	Limit     int
	SortOrder model.SortOrder
}

// Service はタスクのサービス層。
type Service struct {
	repo      repository.TaskRepository
	validator *validation.Validator
	metrics   metrics.TaskRecorder
	maxLimit  int
}

// NewService はServiceの新しいインスタンスを生成する。
// maxLimitが0以下の場合はDefaultMaxLimitを使用する。
func NewService(
	repo repository.TaskRepository,
	validator *validation.Validator,
	recorder metrics.TaskRecorder,
	maxLimit int,
) *Service {
	if validator == nil {
		validator = validation.New()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	return &Service{
		repo:      repo,
		validator: validator,
		metrics:   recorder,
		maxLimit:  maxLimit,
	}
}

// owner は所有者に限定されたリポジトリを取得する。
func (s *Service) owner(ownerID string) (repository.OwnerTaskRepository, error) {
	owned, err := s.repo.ForOwner(ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrEmptyOwner) {
			return nil, model.NewUnauthorizedError()
		}
		return nil, fmt.Errorf("所有者リポジトリの取得に失敗しました: %w", err)
	}
	return owned, nil
}

// Create はタスクを作成し、保存されたタスクを返す。
// statusが未指定の場合はtodoになる。
func (s *Service) Create(ctx context.Context, ownerID string, input CreateTaskInput) (*model.Task, error) {
	if err := s.validator.Struct(input).Err(); err != nil {
		return nil, err
	}

	owned, err := s.owner(ownerID)
	if err != nil {
		return nil, err
	}

	t := &model.Task{
		Title:       input.Title,
		Description: input.Description,
		Status:      model.TaskStatus(input.Status),
	}
	if t.Status == "" {
		t.Status = model.TaskStatusTodo
	}
	if input.DueDate != "" {
		due, err := validation.ParseDate(input.DueDate)
		if err != nil {
			return nil, validation.FieldErrors{"dueDate": err.Error()}.Err()
		}
		t.DueDate = &due
	}

	if err := owned.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}

	s.metrics.RecordTaskCreated()
	slog.Info("タスクを作成しました",
		slog.String("user_id", ownerID),
		slog.String("task_id", t.ID),
	)
	return t, nil
}

// List は所有者のタスクを1ページ分返す。
// ページのデータ取得と総件数の取得は並行に実行する。
func (s *Service) List(ctx context.Context, ownerID string, q ListQuery) (*model.TaskPage, error) {
	page, limit, order, err := s.normalizeQuery(q)
	if err != nil {
		return nil, err
	}

	owned, err := s.owner(ownerID)
	if err != nil {
		return nil, err
	}

	var (
		tasks []*model.Task
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	// オフセットがintに収まらないページは件数に関わらず空になる
	if page-1 <= math.MaxInt/limit {
		g.Go(func() error {
			var err error
			tasks, err = owned.List(gctx, (page-1)*limit, limit, order)
			if err != nil {
				return fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		var err error
		total, err = owned.Count(gctx)
		if err != nil {
			return fmt.Errorf("タスク件数の取得に失敗しました: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if tasks == nil {
		tasks = []*model.Task{}
	}
	return &model.TaskPage{
		Tasks:      tasks,
		Pagination: model.NewPagination(page, limit, total),
	}, nil
}

// normalizeQuery はデフォルト値を補完し、範囲外の値をINVALID_QUERYとして返す。
func (s *Service) normalizeQuery(q ListQuery) (int, int, model.SortOrder, error) {
	page := q.Page
	switch {
	case page == 0:
		page = DefaultPage
	case page < 0:
		return 0, 0, "", model.NewInvalidQueryError("page", "1以上の整数を指定してください。")
	}

	limit := q.Limit
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 0 || limit > s.maxLimit:
		return 0, 0, "", model.NewInvalidQueryError("limit",
			"1以上"+strconv.Itoa(s.maxLimit)+"以下の整数を指定してください。")
	}

	order := q.SortOrder
	switch order {
	case "":
		order = model.SortDesc
	case model.SortAsc, model.SortDesc:
	default:
		return 0, 0, "", model.NewInvalidQueryError("sortOrder", "asc または desc を指定してください。")
	}

	return page, limit, order, nil
}

// Get は所有者のタスクを1件返す。他ユーザーのタスクは存在しないものとして扱う。
func (s *Service) Get(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	owned, err := s.owner(ownerID)
	if err != nil {
		return nil, err
	}

	t, err := owned.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if t == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	return t, nil
}

// Update は指定されたフィールドのみを更新し、更新後のタスクを返す。
// 更新項目が1つもない場合はバリデーションエラーを返す。
func (s *Service) Update(ctx context.Context, ownerID, taskID string, input UpdateTaskInput) (*model.Task, error) {
	patch, err := s.buildPatch(input)
	if err != nil {
		return nil, err
	}

	owned, err := s.owner(ownerID)
	if err != nil {
		return nil, err
	}

	t, err := owned.Update(ctx, taskID, patch)
	if err != nil {
		return nil, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	if t == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}

	s.metrics.RecordTaskUpdated()
	slog.Info("タスクを更新しました",
		slog.String("user_id", ownerID),
		slog.String("task_id", taskID),
	)
	return t, nil
}

// buildPatch は作成時と同じ制約で指定フィールドを検証し、TaskPatchに変換する。
func (s *Service) buildPatch(input UpdateTaskInput) (model.TaskPatch, error) {
	var patch model.TaskPatch
	errs := validation.FieldErrors{}

	if input.Title != nil {
		s.validator.Var(errs, "title", *input.Title, "required,max=100")
		patch.Title = input.Title
	}
	if input.Description != nil {
		s.validator.Var(errs, "description", *input.Description, "max=500")
		patch.Description = input.Description
	}
	if input.Status != nil {
		s.validator.Var(errs, "status", *input.Status, "required,taskstatus")
		status := model.TaskStatus(*input.Status)
		patch.Status = &status
	}
	if input.DueDate != nil {
		s.validator.Var(errs, "dueDate", *input.DueDate, "required,isodate")
		if due, err := validation.ParseDate(*input.DueDate); err == nil {
			patch.DueDate = &due
		}
	}

	if err := errs.Err(); err != nil {
		return model.TaskPatch{}, err
	}
	if patch.IsEmpty() {
		return model.TaskPatch{}, validation.FieldErrors{
			"_": "更新する項目を1つ以上指定してください。",
		}.Err()
	}
	return patch, nil
}

// Delete は所有者のタスクを削除する。対象がなければ何度でもNotFoundを返す。
func (s *Service) Delete(ctx context.Context, ownerID, taskID string) error {
	owned, err := s.owner(ownerID)
	if err != nil {
		return err
	}

	deleted, err := owned.Delete(ctx, taskID)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewTaskNotFoundError(taskID)
	}

	s.metrics.RecordTaskDeleted()
	slog.Info("タスクを削除しました",
		slog.String("user_id", ownerID),
		slog.String("task_id", taskID),
	)
	return nil
}
