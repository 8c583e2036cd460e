package persistence_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/studiosoft/lessonscheduler/internal/scheduling/domain"
	"github.com/studiosoft/lessonscheduler/internal/scheduling/infrastructure/persistence"
)

func setupStore(t *testing.T) *persistence.SQLiteSolutionStore {
	t.Helper()
	dbConn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbConn.Close() })

	require.NoError(t, persistence.Migrate(context.Background(), dbConn))
	return persistence.NewSQLiteSolutionStore(dbConn)
}

func TestSQLiteSolutionStoreSaveAndLoadLatest(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	solution := domain.ScheduleSolution{
		Assignments: []domain.LessonAssignment{
			{StudentID: "s1", DayOfWeek: 1, StartMinute: 540, DurationMinutes: 60},
		},
		Unscheduled: []string{"s2"},
		Metadata: domain.SolutionMetadata{
			RunID:             "run-1",
			TotalStudents:     2,
			ScheduledStudents: 1,
			StrategyUsed:      "backtracking",
		},
	}

	require.NoError(t, store.Save(ctx, "studio-1", solution))

	loaded, err := store.LoadLatest(ctx, "studio-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.Metadata.RunID)
	require.Len(t, loaded.Assignments, 1)
	assert.Equal(t, "s1", loaded.Assignments[0].StudentID)
	assert.Equal(t, []string{"s2"}, loaded.Unscheduled)
}

func TestSQLiteSolutionStoreLoadLatestMissing(t *testing.T) {
	store := setupStore(t)
	_, err := store.LoadLatest(context.Background(), "unknown-studio")
	assert.ErrorIs(t, err, persistence.ErrSolutionNotFound)
}

func TestSQLiteSolutionStoreLoadLatestReturnsMostRecent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first := domain.ScheduleSolution{Metadata: domain.SolutionMetadata{RunID: "run-1"}}
	second := domain.ScheduleSolution{Metadata: domain.SolutionMetadata{RunID: "run-2"}}

	require.NoError(t, store.Save(ctx, "studio-1", first))
	require.NoError(t, store.Save(ctx, "studio-1", second))

	loaded, err := store.LoadLatest(ctx, "studio-1")
	require.NoError(t, err)
	assert.Equal(t, "run-2", loaded.Metadata.RunID)
}
