package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/peoplesearch-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTask() *model.Task {
	return &model.Task{
		Site:      "truepeoplesearch",
		Mode:      model.ModeNameLocation,
		Names:     []string{"John Smith", "Jane Doe"},
		Locations: []string{"Austin, TX"},
		Filter:    model.Filter{MinAge: 30, RequirePhone: true},
		Credits:   50,
	}
}

func TestTaskRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := newTask()
	require.NoError(t, s.CreateTask(ctx, task))
	require.NotEmpty(t, task.ID)
	assert.Equal(t, model.StatusPending, task.Status)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, "truepeoplesearch", got.Site)
	assert.Equal(t, model.ModeNameLocation, got.Mode)
	assert.Equal(t, []string{"John Smith", "Jane Doe"}, got.Names)
	assert.Equal(t, []string{"Austin, TX"}, got.Locations)
	assert.Equal(t, 30, got.Filter.MinAge)
	assert.True(t, got.Filter.RequirePhone)
	assert.Equal(t, 50, got.Credits)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestGetTask_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTaskStatusAndProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := newTask()
	require.NoError(t, s.CreateTask(ctx, task))

	require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, model.StatusRunning))
	require.NoError(t, s.UpdateTaskProgress(ctx, task.ID, model.Progress{
		SearchPageRequests: 2,
		DetailPageRequests: 5,
		CacheHits:          1,
	}))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, got.Status)
	assert.Equal(t, 2, got.Progress.SearchPageRequests)
	assert.Equal(t, 5, got.Progress.DetailPageRequests)
	assert.Equal(t, 1, got.Progress.CacheHits)

	assert.ErrorIs(t, s.UpdateTaskStatus(ctx, "missing", model.StatusRunning), ErrNotFound)
}

func TestCompleteTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := newTask()
	require.NoError(t, s.CreateTask(ctx, task))

	stats := model.TaskStats{
		Status:              model.StatusInsufficientCredits,
		TotalResults:        7,
		SearchPageRequests:  2,
		DetailPageRequests:  4,
		CreditsUsed:         6,
		StoppedDueToCredits: true,
	}
	require.NoError(t, s.CompleteTask(ctx, task.ID, stats, []string{"line one", "line two"}))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInsufficientCredits, got.Status)
}

func TestFailTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := newTask()
	require.NoError(t, s.CreateTask(ctx, task))
	require.NoError(t, s.FailTask(ctx, task.ID, "proxy unreachable", []string{"log line"}))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "proxy unreachable", got.Error)
}

func TestListTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		task := newTask()
		require.NoError(t, s.CreateTask(ctx, task))
		if i == 0 {
			require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, model.StatusCompleted))
		}
	}

	all, err := s.ListTasks(ctx, TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	completed, err := s.ListTasks(ctx, TaskFilter{Status: model.StatusCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 1)

	limited, err := s.ListTasks(ctx, TaskFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestResultsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := newTask()
	require.NoError(t, s.CreateTask(ctx, task))

	rec := model.Person{
		SubtaskIndex: 0,
		Name:         "John Smith",
		Age:          44,
		Phones:       []model.Phone{{Number: "212-555-0100", Type: model.PhoneWireless, Carrier: "Verizon", Primary: true}},
		Emails:       []string{"jsmith@example.com"},
		Addresses:    []model.Address{{Street: "1 Main St", City: "Austin", State: "TX", Zip: "78701"}},
		DetailLink:   "/find/john-smith/1",
	}
	require.NoError(t, s.SaveResults(ctx, task.ID, 0, []model.Person{rec}))
	require.NoError(t, s.SaveResults(ctx, task.ID, 1, []model.Person{{SubtaskIndex: 1, Name: "Jane Doe"}}))

	got, err := s.GetResults(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "John Smith", got[0].Name)
	assert.Equal(t, 44, got[0].Age)
	assert.Equal(t, "Verizon", got[0].Phones[0].Carrier)
	assert.Equal(t, "jsmith@example.com", got[0].Emails[0])
	assert.Equal(t, "78701", got[0].Addresses[0].Zip)
	assert.Equal(t, 1, got[1].SubtaskIndex)
}

func TestPageCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pages := map[string]string{
		"/p/1": "<html>one</html>",
		"/p/2": "<html>two</html>",
	}
	require.NoError(t, s.SetCachedPages(ctx, pages, time.Hour))

	got, err := s.GetCachedPages(ctx, []string{"/p/1", "/p/2", "/p/3"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "<html>one</html>", got["/p/1"])

	// Upsert replaces the body and refreshes the TTL.
	require.NoError(t, s.SetCachedPages(ctx, map[string]string{"/p/1": "<html>fresh</html>"}, time.Hour))
	got, err = s.GetCachedPages(ctx, []string{"/p/1"})
	require.NoError(t, err)
	assert.Equal(t, "<html>fresh</html>", got["/p/1"])
}

func TestPageCache_Expiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetCachedPages(ctx, map[string]string{"/p/old": "<html>stale</html>"}, -time.Minute))
	require.NoError(t, s.SetCachedPages(ctx, map[string]string{"/p/new": "<html>live</html>"}, time.Hour))

	got, err := s.GetCachedPages(ctx, []string{"/p/old", "/p/new"})
	require.NoError(t, err)
	assert.NotContains(t, got, "/p/old", "expired entries are invisible to readers")
	assert.Contains(t, got, "/p/new")

	n, err := s.DeleteExpiredPages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetCachedPages_EmptyInput(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetCachedPages(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
