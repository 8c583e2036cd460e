package domain_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiosoft/lessonscheduler/internal/scheduling/domain"
)

func weekWithMonday(block domain.TimeBlock) domain.WeekSchedule {
	w := domain.NewWeekSchedule("UTC")
	w.Days[1].Blocks = []domain.TimeBlock{block}
	return w
}

func TestAvailabilityConstraint(t *testing.T) {
	c := domain.NewAvailabilityConstraint()
	teacher := weekWithMonday(domain.TimeBlock{Start: 540, Duration: 120})
	student := domain.StudentConfig{Availability: weekWithMonday(domain.TimeBlock{Start: 540, Duration: 60})}

	ctx := domain.EvalContext{Teacher: teacher, Student: student}
	inside := domain.LessonAssignment{DayOfWeek: 1, StartMinute: 540, DurationMinutes: 60}
	outside := domain.LessonAssignment{DayOfWeek: 1, StartMinute: 600, DurationMinutes: 60}

	assert.True(t, c.Evaluate(inside, ctx))
	assert.False(t, c.Evaluate(outside, ctx), "outside student availability")
	assert.True(t, math.IsInf(c.ViolationCost(outside, ctx), 1))
}

func TestNonOverlappingConstraint(t *testing.T) {
	c := domain.NewNonOverlappingConstraint()
	placed := []domain.LessonAssignment{
		{StudentID: "s1", DayOfWeek: 1, StartMinute: 540, DurationMinutes: 60},
	}
	ctx := domain.EvalContext{Placed: placed}

	conflicting := domain.LessonAssignment{StudentID: "s2", DayOfWeek: 1, StartMinute: 570, DurationMinutes: 60}
	sameStudentOverlap := domain.LessonAssignment{StudentID: "s1", DayOfWeek: 1, StartMinute: 570, DurationMinutes: 60}
	clear := domain.LessonAssignment{StudentID: "s2", DayOfWeek: 1, StartMinute: 600, DurationMinutes: 60}

	assert.False(t, c.Evaluate(conflicting, ctx))
	assert.False(t, c.Evaluate(sameStudentOverlap, ctx), "a student's own two occurrences must not overlap either")
	assert.True(t, c.Evaluate(clear, ctx))
}

func TestDurationConstraint(t *testing.T) {
	c := domain.NewDurationConstraint()
	constraints := domain.SchedulingConstraints{MinLessonDuration: 30, MaxLessonDuration: 90, AllowedDurations: []int{30, 45}}
	ctx := domain.EvalContext{Constraints: constraints}

	assert.True(t, c.Evaluate(domain.LessonAssignment{DurationMinutes: 30}, ctx))
	assert.False(t, c.Evaluate(domain.LessonAssignment{DurationMinutes: 60}, ctx), "60 is in bounds but not in the whitelist")
}

func TestDurationConstraintZeroBoundsAreUnbounded(t *testing.T) {
	c := domain.NewDurationConstraint()
	ctx := domain.EvalContext{Constraints: domain.SchedulingConstraints{}}

	assert.True(t, c.Evaluate(domain.LessonAssignment{DurationMinutes: 45}, ctx),
		"an unset Min/MaxLessonDuration must not reject every duration")
}

func TestConsecutiveLimitConstraint(t *testing.T) {
	c := domain.NewConsecutiveLimitConstraint()
	constraints := domain.SchedulingConstraints{MaxConsecutiveMinutes: 90}
	placed := []domain.LessonAssignment{
		{StudentID: "s1", DayOfWeek: 1, StartMinute: 540, DurationMinutes: 60},
	}
	ctx := domain.EvalContext{Constraints: constraints, Placed: placed}

	ok := domain.LessonAssignment{StudentID: "s2", DayOfWeek: 1, StartMinute: 600, DurationMinutes: 30}
	tooLong := domain.LessonAssignment{StudentID: "s2", DayOfWeek: 1, StartMinute: 600, DurationMinutes: 60}

	assert.True(t, c.Evaluate(ok, ctx))
	assert.False(t, c.Evaluate(tooLong, ctx))
}

func TestBreakRequirementConstraint(t *testing.T) {
	c := domain.NewBreakRequirementConstraint()
	constraints := domain.SchedulingConstraints{BreakDurationMinutes: 10}
	placed := []domain.LessonAssignment{
		{StudentID: "s1", DayOfWeek: 1, StartMinute: 540, DurationMinutes: 60},
	}
	ctx := domain.EvalContext{Constraints: constraints, Placed: placed}

	tooClose := domain.LessonAssignment{StudentID: "s2", DayOfWeek: 1, StartMinute: 605, DurationMinutes: 30}
	enoughGap := domain.LessonAssignment{StudentID: "s2", DayOfWeek: 1, StartMinute: 610, DurationMinutes: 30}

	assert.False(t, c.Evaluate(tooClose, ctx))
	assert.True(t, c.Evaluate(enoughGap, ctx))
}

func TestWorkloadBalanceConstraint(t *testing.T) {
	c := domain.NewWorkloadBalanceConstraint()
	var placed []domain.LessonAssignment
	for i := 0; i < 8; i++ {
		placed = append(placed, domain.LessonAssignment{StudentID: "s", DayOfWeek: 1, StartMinute: i * 60, DurationMinutes: 30})
	}
	ctx := domain.EvalContext{Placed: placed}
	candidate := domain.LessonAssignment{DayOfWeek: 1, StartMinute: 900, DurationMinutes: 30}

	assert.False(t, c.Evaluate(candidate, ctx), "piling everything on one day should violate balance")
}

func TestBackToBackConstraint(t *testing.T) {
	c := domain.NewBackToBackConstraint()
	placed := []domain.LessonAssignment{
		{StudentID: "s1", DayOfWeek: 1, StartMinute: 540, DurationMinutes: 60},
	}
	adjacent := domain.LessonAssignment{StudentID: "s2", DayOfWeek: 1, StartMinute: 600, DurationMinutes: 60}
	gapped := domain.LessonAssignment{StudentID: "s2", DayOfWeek: 1, StartMinute: 700, DurationMinutes: 60}

	maximize := domain.EvalContext{Constraints: domain.SchedulingConstraints{BackToBackPreference: domain.BackToBackMaximize}, Placed: placed}
	assert.True(t, c.Evaluate(adjacent, maximize))
	assert.False(t, c.Evaluate(gapped, maximize))

	minimize := domain.EvalContext{Constraints: domain.SchedulingConstraints{BackToBackPreference: domain.BackToBackMinimize}, Placed: placed}
	assert.False(t, c.Evaluate(adjacent, minimize))
	assert.True(t, c.Evaluate(gapped, minimize))

	agnostic := domain.EvalContext{Constraints: domain.SchedulingConstraints{BackToBackPreference: domain.BackToBackAgnostic}, Placed: placed}
	assert.True(t, c.Evaluate(adjacent, agnostic))
}

func TestConstraintManagerFilter(t *testing.T) {
	m := domain.DefaultConstraintManager()
	filtered := m.Filter([]string{"availability", "non-overlapping", "duration"})

	require.Len(t, filtered.All(), 3)
	for _, c := range filtered.All() {
		assert.Equal(t, domain.Hard, c.Kind())
	}
}

func TestConstraintManagerIsValid(t *testing.T) {
	m := domain.NewConstraintManager(domain.NewAvailabilityConstraint(), domain.NewDurationConstraint())
	teacher := weekWithMonday(domain.TimeBlock{Start: 540, Duration: 60})
	student := domain.StudentConfig{Availability: weekWithMonday(domain.TimeBlock{Start: 540, Duration: 60})}
	constraints := domain.SchedulingConstraints{MinLessonDuration: 30, MaxLessonDuration: 90}
	ctx := domain.EvalContext{Teacher: teacher, Student: student, Constraints: constraints}

	valid := domain.LessonAssignment{DayOfWeek: 1, StartMinute: 540, DurationMinutes: 60}
	assert.True(t, m.IsValid(valid, ctx))

	invalid := domain.LessonAssignment{DayOfWeek: 1, StartMinute: 540, DurationMinutes: 10}
	assert.False(t, m.IsValid(invalid, ctx))
}

func TestConstraintManagerPriorityOrder(t *testing.T) {
	m := domain.DefaultConstraintManager()
	all := m.All()
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Priority(), all[i].Priority())
	}
}
