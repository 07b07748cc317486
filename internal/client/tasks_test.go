package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func TestTaskState_RefreshAndLoadMore(t *testing.T) {
	server := newTestServer(t)
	c, _ := loggedInClient(t, server.URL, "alice")
	createTasks(t, c, 15)
	ctx := context.Background()

	state := NewTaskState(c)
	require.NoError(t, state.Refresh(ctx))

	snap := state.Snapshot()
	require.Len(t, snap.Tasks, PageSize)
	assert.Equal(t, "task 15", snap.Tasks[0].Title)
	require.NotNil(t, snap.Pagination)
	assert.Equal(t, 15, snap.Pagination.Total)
	assert.Equal(t, 2, snap.Pagination.TotalPages)
	assert.True(t, snap.Pagination.HasNext)
	assert.Equal(t, 1, snap.CurrentPage)
	assert.False(t, snap.Loading)

	require.NoError(t, state.LoadMore(ctx))
	snap = state.Snapshot()
	require.Len(t, snap.Tasks, 15)
	assert.Equal(t, "task 01", snap.Tasks[14].Title)
	assert.Equal(t, 2, snap.CurrentPage)
	assert.False(t, snap.Pagination.HasNext)

	// 次のページがない場合は何もしない
	require.NoError(t, state.LoadMore(ctx))
	assert.Len(t, state.Tasks(), 15)
}

func TestTaskState_LoadMoreBeforeRefreshIsNoop(t *testing.T) {
	server := newTestServer(t)
	c, _ := loggedInClient(t, server.URL, "alice")

	state := NewTaskState(c)
	require.NoError(t, state.LoadMore(context.Background()))
	assert.Empty(t, state.Tasks())
}

func TestTaskState_LoadAll(t *testing.T) {
	server := newTestServer(t)
	c, _ := loggedInClient(t, server.URL, "alice")
	createTasks(t, c, 23)

	state := NewTaskState(c)
	require.NoError(t, state.LoadAll(context.Background()))
	assert.Len(t, state.Tasks(), 23)
	assert.Equal(t, 3, state.Snapshot().CurrentPage)
}

func TestTaskState_SetSortOrder(t *testing.T) {
	server := newTestServer(t)
	c, _ := loggedInClient(t, server.URL, "alice")
	createTasks(t, c, 3)
	ctx := context.Background()

	state := NewTaskState(c)
	require.NoError(t, state.Refresh(ctx))
	assert.Equal(t, []string{"task 03", "task 02", "task 01"}, titles(state.Tasks()))

	require.NoError(t, state.SetSortOrder(ctx, SortAsc))
	assert.Equal(t, []string{"task 01", "task 02", "task 03"}, titles(state.Tasks()))
	assert.Equal(t, SortAsc, state.Snapshot().SortOrder)

	assert.Error(t, state.SetSortOrder(ctx, "sideways"))
}

func TestTaskState_CreateUpdateDelete(t *testing.T) {
	server := newTestServer(t)
	c, _ := loggedInClient(t, server.URL, "alice")
	createTasks(t, c, 2)
	ctx := context.Background()

	state := NewTaskState(c)
	require.NoError(t, state.Refresh(ctx))

	created, err := state.Create(ctx, CreateTaskRequest{Title: "newest"})
	require.NoError(t, err)
	assert.Equal(t, []string{"newest", "task 02", "task 01"}, titles(state.Tasks()))

	_, err = state.Update(ctx, created.ID, UpdateTaskRequest{Title: strPtr("renamed"), Status: strPtr(StatusInProgress)})
	require.NoError(t, err)
	tasks := state.Tasks()
	assert.Equal(t, "renamed", tasks[0].Title)
	assert.Equal(t, StatusInProgress, tasks[0].Status)

	require.NoError(t, state.Delete(ctx, created.ID))
	assert.Equal(t, []string{"task 02", "task 01"}, titles(state.Tasks()))
}

func TestTaskState_ErrorIsRecorded(t *testing.T) {
	server := newTestServer(t)
	c, _ := loggedInClient(t, server.URL, "alice")
	ctx := context.Background()

	state := NewTaskState(c)
	_, err := state.Create(ctx, CreateTaskRequest{Title: ""})
	require.Error(t, err)

	snap := state.Snapshot()
	assert.Equal(t, err, snap.Err)
	assert.False(t, snap.Creating)
	assert.Empty(t, snap.Tasks)

	// 次の操作でエラーはリセットされる
	require.NoError(t, state.Refresh(ctx))
	assert.NoError(t, state.Snapshot().Err)
}
