package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/model"
)

// MemoryUserRepo はプロセス内メモリのユーザーリポジトリ。
// PostgreSQLなしで動かす結合テストやローカル検証で使用する。
type MemoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[string]*model.User
	byEmail map[string]string
	now     func() time.Time
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// Create はユーザーを保存する。メールアドレスが重複する場合はErrDuplicateEmailを返す。
func (r *MemoryUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return ErrDuplicateEmail
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := r.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[user.Email] = user.ID
	return nil
}

// FindByID は指定IDのユーザーを返す。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// FindByEmail は正規化済みメールアドレスでユーザーを返す。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[email]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.FindByID(ctx, id)
}

// memoryTask は保存済みタスクと挿入順の連番。
type memoryTask struct {
	task model.Task
	seq  int64
}

// MemoryTaskRepo はプロセス内メモリのタスクリポジトリ。
// 並び順と所有者による絞り込みはPostgresTaskRepoと同じ規則に従う。
type MemoryTaskRepo struct {
	mu    sync.RWMutex
	tasks map[string]*memoryTask
	seq   int64
	now   func() time.Time
}

// NewMemoryTaskRepo はMemoryTaskRepoを生成する。
func NewMemoryTaskRepo() *MemoryTaskRepo {
	return &MemoryTaskRepo{
		tasks: make(map[string]*memoryTask),
		now:   time.Now,
	}
}

// ForOwner は指定ユーザーに限定されたリポジトリを返す。
func (r *MemoryTaskRepo) ForOwner(ownerID string) (OwnerTaskRepository, error) {
	if ownerID == "" {
		return nil, ErrEmptyOwner
	}
	if _, err := uuid.Parse(ownerID); err != nil {
		return nil, fmt.Errorf("invalid owner id %q: %w", ownerID, err)
	}
	return &memoryOwnerTaskRepo{repo: r, ownerID: ownerID}, nil
}

type memoryOwnerTaskRepo struct {
	repo    *MemoryTaskRepo
	ownerID string
}

func (o *memoryOwnerTaskRepo) OwnerID() string { return o.ownerID }

// lookup は所有者のタスクを返す。ロックは呼び出し側で取得する。
func (o *memoryOwnerTaskRepo) lookup(id string) (*memoryTask, bool) {
	mt, ok := o.repo.tasks[id]
	if !ok || mt.task.UserID != o.ownerID {
		return nil, false
	}
	return mt, true
}

func (o *memoryOwnerTaskRepo) Create(ctx context.Context, task *model.Task) error {
	r := o.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	task.UserID = o.ownerID
	if task.Status == "" {
		task.Status = model.TaskStatusTodo
	}
	now := r.now().UTC()
	task.CreatedAt, task.UpdatedAt = now, now

	stored := *task
	if task.Description != nil {
		d := *task.Description
		stored.Description = &d
	}
	if task.DueDate != nil {
		due := task.DueDate.UTC()
		stored.DueDate = &due
	}

	r.seq++
	r.tasks[task.ID] = &memoryTask{task: stored, seq: r.seq}
	return nil
}

func (o *memoryOwnerTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	r := o.repo
	r.mu.RLock()
	defer r.mu.RUnlock()

	mt, ok := o.lookup(id)
	if !ok {
		return nil, nil
	}
	t := mt.task
	return &t, nil
}

func (o *memoryOwnerTaskRepo) List(ctx context.Context, offset, limit int, order model.SortOrder) ([]*model.Task, error) {
	r := o.repo
	r.mu.RLock()
	defer r.mu.RUnlock()

	var owned []*memoryTask
	for _, mt := range r.tasks {
		if mt.task.UserID == o.ownerID {
			owned = append(owned, mt)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		a, b := owned[i], owned[j]
		if !a.task.CreatedAt.Equal(b.task.CreatedAt) {
			if order == model.SortAsc {
				return a.task.CreatedAt.Before(b.task.CreatedAt)
			}
			return a.task.CreatedAt.After(b.task.CreatedAt)
		}
		if order == model.SortAsc {
			return a.seq < b.seq
		}
		return a.seq > b.seq
	})

	out := []*model.Task{}
	if offset < 0 || offset >= len(owned) {
		return out, nil
	}
	for i := offset; i < len(owned) && len(out) < limit; i++ {
		t := owned[i].task
		out = append(out, &t)
	}
	return out, nil
}

func (o *memoryOwnerTaskRepo) Count(ctx context.Context) (int, error) {
	r := o.repo
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, mt := range r.tasks {
		if mt.task.UserID == o.ownerID {
			n++
		}
	}
	return n, nil
}

func (o *memoryOwnerTaskRepo) Update(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	r := o.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	mt, ok := o.lookup(id)
	if !ok {
		return nil, nil
	}
	if patch.Title != nil {
		mt.task.Title = *patch.Title
	}
	if patch.Description != nil {
		d := *patch.Description
		mt.task.Description = &d
	}
	if patch.Status != nil {
		mt.task.Status = *patch.Status
	}
	if patch.DueDate != nil {
		due := patch.DueDate.UTC()
		mt.task.DueDate = &due
	}
	mt.task.UpdatedAt = r.now().UTC()

	t := mt.task
	return &t, nil
}

func (o *memoryOwnerTaskRepo) Delete(ctx context.Context, id string) (bool, error) {
	r := o.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := o.lookup(id); !ok {
		return false, nil
	}
	delete(r.tasks, id)
	return true, nil
}

var (
	_ UserRepository      = (*MemoryUserRepo)(nil)
	_ TaskRepository      = (*MemoryTaskRepo)(nil)
	_ OwnerTaskRepository = (*memoryOwnerTaskRepo)(nil)
)
