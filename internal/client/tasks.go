package client

import (
	"context"
	"fmt"
	"sync"
)

// PageSize はTaskStateが1回に取得する件数。
const PageSize = 10

// TaskSnapshot はTaskStateのある時点の状態。
type TaskSnapshot struct {
	Tasks       []Task
	Pagination  *Pagination
	Loading     bool
	Creating    bool
	Err         error
	CurrentPage int
	SortOrder   SortOrder
}

// TaskState は読み込み済みタスクの一覧とページ位置を管理する。
type TaskState struct {
	client *Client

	mu          sync.Mutex
	tasks       []Task
	pagination  *Pagination
	loading     bool
	creating    bool
	err         error
	currentPage int
	sortOrder   SortOrder
}

// NewTaskState は作成日時の降順で空のTaskStateを生成する。
func NewTaskState(c *Client) *TaskState {
	return &TaskState{
		client:      c,
		tasks:       []Task{},
		currentPage: 1,
		sortOrder:   SortDesc,
	}
}

// Snapshot は現在の状態のコピーを返す。
func (s *TaskState) Snapshot() TaskSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := TaskSnapshot{
		Tasks:       append([]Task(nil), s.tasks...),
		Loading:     s.loading,
		Creating:    s.creating,
		Err:         s.err,
		CurrentPage: s.currentPage,
		SortOrder:   s.sortOrder,
	}
	if s.pagination != nil {
		p := *s.pagination
		snap.Pagination = &p
	}
	return snap
}

// Tasks は読み込み済みのタスクを返す。
func (s *TaskState) Tasks() []Task {
	return s.Snapshot().Tasks
}

// Refresh は1ページ目を取得して一覧を置き換える。
func (s *TaskState) Refresh(ctx context.Context) error {
	return s.fetch(ctx, 1, false)
}

// LoadMore は次のページを取得して一覧の末尾に追加する。次のページがない場合は何もしない。
func (s *TaskState) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	hasNext := s.pagination != nil && s.pagination.HasNext
	next := s.currentPage + 1
	s.mu.Unlock()

	if !hasNext {
		return nil
	}
	return s.fetch(ctx, next, true)
}

// LoadAll は次のページがなくなるまで取得を繰り返す。
func (s *TaskState) LoadAll(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	for s.HasNext() {
		if err := s.LoadMore(ctx); err != nil {
			return err
		}
	}
	return nil
}

// HasNext は次のページが存在するかどうかを返す。
func (s *TaskState) HasNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pagination != nil && s.pagination.HasNext
}

// SetSortOrder は並び順を変更して1ページ目から取得し直す。
func (s *TaskState) SetSortOrder(ctx context.Context, order SortOrder) error {
	if order != SortAsc && order != SortDesc {
		return fmt.Errorf("invalid sort order %q", order)
	}
	s.mu.Lock()
	s.sortOrder = order
	s.mu.Unlock()
	return s.Refresh(ctx)
}

func (s *TaskState) fetch(ctx context.Context, page int, appendPage bool) error {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	order := s.sortOrder
	s.mu.Unlock()

	resp, err := s.client.ListTasks(ctx, page, PageSize, order)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.err = err
		return err
	}

	if appendPage {
		s.tasks = append(s.tasks, resp.Data...)
	} else {
		s.tasks = append([]Task{}, resp.Data...)
	}
	p := resp.Pagination
	s.pagination = &p
	s.currentPage = page
	return nil
}

// Create はタスクを作成し、一覧の先頭に追加する。
func (s *TaskState) Create(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	s.mu.Lock()
	s.creating = true
	s.err = nil
	s.mu.Unlock()

	created, err := s.client.CreateTask(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creating = false
	if err != nil {
		s.err = err
		return nil, err
	}
	s.tasks = append([]Task{*created}, s.tasks...)
	return created, nil
}

// Update はタスクを更新し、一覧内の同じIDのタスクを置き換える。
func (s *TaskState) Update(ctx context.Context, id string, req UpdateTaskRequest) (*Task, error) {
	s.begin()
	updated, err := s.client.UpdateTask(ctx, id, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.err = err
		return nil, err
	}
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i] = *updated
		}
	}
	return updated, nil
}

// Delete はタスクを削除し、一覧から取り除く。
func (s *TaskState) Delete(ctx context.Context, id string) error {
	s.begin()
	err := s.client.DeleteTask(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.err = err
		return err
	}
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	return nil
}

func (s *TaskState) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()
}
