package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiosoft/lessonscheduler/internal/scheduling/domain"
)

func TestTimeBlockValid(t *testing.T) {
	assert.True(t, domain.TimeBlock{Start: 540, Duration: 60}.Valid())
	assert.False(t, domain.TimeBlock{Start: -1, Duration: 60}.Valid())
	assert.False(t, domain.TimeBlock{Start: 540, Duration: 0}.Valid())
	assert.False(t, domain.TimeBlock{Start: 1400, Duration: 60}.Valid())
}

func TestOverlaps(t *testing.T) {
	a := domain.TimeBlock{Start: 540, Duration: 60}
	b := domain.TimeBlock{Start: 570, Duration: 60}
	c := domain.TimeBlock{Start: 600, Duration: 60}

	assert.True(t, domain.Overlaps(a, b))
	assert.False(t, domain.Overlaps(a, c), "touching blocks do not overlap")
}

func TestContains(t *testing.T) {
	block := domain.TimeBlock{Start: 540, Duration: 180}
	inside := domain.TimeBlock{Start: 600, Duration: 30}
	outside := domain.TimeBlock{Start: 700, Duration: 60}

	assert.True(t, domain.Contains(block, inside))
	assert.False(t, domain.Contains(block, outside))
}

func TestSortAndMerge(t *testing.T) {
	blocks := []domain.TimeBlock{
		{Start: 600, Duration: 60},
		{Start: 540, Duration: 60}, // touches the first: 540-600, 600-660
		{Start: 800, Duration: 30},
	}

	merged := domain.SortAndMerge(blocks)
	require.Len(t, merged, 2)
	assert.Equal(t, domain.TimeBlock{Start: 540, Duration: 120}, merged[0])
	assert.Equal(t, domain.TimeBlock{Start: 800, Duration: 30}, merged[1])
}

func TestIntersectDay(t *testing.T) {
	teacher := []domain.TimeBlock{{Start: 540, Duration: 480}}
	student := []domain.TimeBlock{{Start: 540, Duration: 120}, {Start: 780, Duration: 120}}

	windows := domain.IntersectDay(teacher, student)
	require.Len(t, windows, 2)
	assert.Equal(t, 540, windows[0].Start)
	assert.Equal(t, 120, windows[0].Duration)
	assert.Equal(t, 780, windows[1].Start)
}

func TestWeekScheduleIsEmpty(t *testing.T) {
	w := domain.NewWeekSchedule("America/Denver")
	assert.True(t, w.IsEmpty())

	w.Days[1].Blocks = append(w.Days[1].Blocks, domain.TimeBlock{Start: 540, Duration: 60})
	assert.False(t, w.IsEmpty())
	assert.Equal(t, 60, w.TotalAvailableMinutes())
}
