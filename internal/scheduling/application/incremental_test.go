package application_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiosoft/lessonscheduler/internal/scheduling/application"
	"github.com/studiosoft/lessonscheduler/internal/scheduling/domain"
)

func TestPlanNilPriorSolvesEveryStudent(t *testing.T) {
	students := []domain.StudentConfig{{Person: domain.Person{ID: "s1"}}, {Person: domain.Person{ID: "s2"}}}
	plan := application.Plan(nil, domain.TeacherConfig{}, students)

	assert.Empty(t, plan.Pinned)
	assert.Len(t, plan.ToSolve, 2)
}

func TestPlanPinsUnchangedStudentsWhenTeacherUnchanged(t *testing.T) {
	teacher := domain.TeacherConfig{Availability: mondayWeek(domain.TimeBlock{Start: 540, Duration: 120})}
	student := domain.StudentConfig{Person: domain.Person{ID: "s1"}, PreferredDuration: 60, Availability: mondayWeek(domain.TimeBlock{Start: 540, Duration: 60})}
	solution := domain.ScheduleSolution{Assignments: []domain.LessonAssignment{{StudentID: "s1", DayOfWeek: 1, StartMinute: 540, DurationMinutes: 60}}}
	prior := application.Snapshot(teacher, []domain.StudentConfig{student}, solution)

	plan := application.Plan(&prior, teacher, []domain.StudentConfig{student})

	require.Len(t, plan.Pinned, 1)
	assert.Equal(t, "s1", plan.Pinned[0].StudentID)
	assert.Empty(t, plan.ToSolve)
}

func TestPlanResolvesEveryoneWhenTeacherChanges(t *testing.T) {
	teacher := domain.TeacherConfig{Availability: mondayWeek(domain.TimeBlock{Start: 540, Duration: 120})}
	student := domain.StudentConfig{Person: domain.Person{ID: "s1"}, PreferredDuration: 60, Availability: mondayWeek(domain.TimeBlock{Start: 540, Duration: 60})}
	solution := domain.ScheduleSolution{Assignments: []domain.LessonAssignment{{StudentID: "s1", DayOfWeek: 1, StartMinute: 540, DurationMinutes: 60}}}
	prior := application.Snapshot(teacher, []domain.StudentConfig{student}, solution)

	changedTeacher := domain.TeacherConfig{Availability: mondayWeek(domain.TimeBlock{Start: 540, Duration: 240})}
	plan := application.Plan(&prior, changedTeacher, []domain.StudentConfig{student})

	assert.Empty(t, plan.Pinned)
	require.Len(t, plan.ToSolve, 1)
}

func TestPlanResolvesChangedStudentOnly(t *testing.T) {
	teacher := domain.TeacherConfig{Availability: mondayWeek(domain.TimeBlock{Start: 540, Duration: 180})}
	s1 := domain.StudentConfig{Person: domain.Person{ID: "s1"}, PreferredDuration: 60, Availability: mondayWeek(domain.TimeBlock{Start: 540, Duration: 60})}
	s2 := domain.StudentConfig{Person: domain.Person{ID: "s2"}, PreferredDuration: 60, Availability: mondayWeek(domain.TimeBlock{Start: 660, Duration: 60})}
	solution := domain.ScheduleSolution{Assignments: []domain.LessonAssignment{
		{StudentID: "s1", DayOfWeek: 1, StartMinute: 540, DurationMinutes: 60},
		{StudentID: "s2", DayOfWeek: 1, StartMinute: 660, DurationMinutes: 60},
	}}
	prior := application.Snapshot(teacher, []domain.StudentConfig{s1, s2}, solution)

	s2Changed := s2
	s2Changed.PreferredDuration = 45
	plan := application.Plan(&prior, teacher, []domain.StudentConfig{s1, s2Changed})

	require.Len(t, plan.Pinned, 1)
	assert.Equal(t, "s1", plan.Pinned[0].StudentID)
	require.Len(t, plan.ToSolve, 1)
	assert.Equal(t, "s2", plan.ToSolve[0].Person.ID)
}
