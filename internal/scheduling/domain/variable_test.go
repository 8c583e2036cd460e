package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiosoft/lessonscheduler/internal/scheduling/domain"
)

func TestBuildVariablesSingleFit(t *testing.T) {
	teacher := domain.TeacherConfig{
		Availability: weekWithMonday(domain.TimeBlock{Start: 540, Duration: 60}),
	}
	student := domain.StudentConfig{
		Person:            domain.Person{ID: "s1"},
		PreferredDuration: 60,
		Availability:      weekWithMonday(domain.TimeBlock{Start: 540, Duration: 60}),
	}

	vars := domain.BuildVariables(teacher, []domain.StudentConfig{student})
	require.Len(t, vars, 1)
	require.Len(t, vars[0].Domain, 1, "exactly one 60-minute slot fits a 60-minute window")
	assert.Equal(t, 540, vars[0].Domain[0].StartMinute)
}

func TestBuildVariablesAllowedDurations(t *testing.T) {
	teacher := domain.TeacherConfig{
		Availability: weekWithMonday(domain.TimeBlock{Start: 540, Duration: 120}),
		Constraints:  domain.SchedulingConstraints{AllowedDurations: []int{30, 45}},
	}
	student := domain.StudentConfig{
		Person:            domain.Person{ID: "s1"},
		PreferredDuration: 60,
		Availability:      weekWithMonday(domain.TimeBlock{Start: 540, Duration: 120}),
	}

	vars := domain.BuildVariables(teacher, []domain.StudentConfig{student})
	require.Len(t, vars, 1)
	for _, v := range vars[0].Domain {
		assert.Contains(t, []int{30, 45}, v.DurationMinutes)
	}
}

func TestBuildVariablesNoMutualAvailability(t *testing.T) {
	teacher := domain.TeacherConfig{
		Availability: weekWithMonday(domain.TimeBlock{Start: 540, Duration: 180}),
	}
	student := domain.StudentConfig{
		Person:            domain.Person{ID: "s1"},
		PreferredDuration: 60,
		Availability:      weekWithMonday(domain.TimeBlock{Start: 840, Duration: 180}),
	}

	vars := domain.BuildVariables(teacher, []domain.StudentConfig{student})
	require.Len(t, vars, 1)
	assert.Empty(t, vars[0].Domain)
}

func TestBuildVariablesEmitsOneVariablePerOccurrence(t *testing.T) {
	teacher := domain.TeacherConfig{
		Availability: weekWithMonday(domain.TimeBlock{Start: 540, Duration: 180}),
	}
	student := domain.StudentConfig{
		Person:            domain.Person{ID: "s1"},
		PreferredDuration: 60,
		MaxLessonsPerWeek: 3,
		Availability:      weekWithMonday(domain.TimeBlock{Start: 540, Duration: 180}),
	}

	vars := domain.BuildVariables(teacher, []domain.StudentConfig{student})
	require.Len(t, vars, 3, "one CSPVariable per weekly occurrence")
	for i, v := range vars {
		assert.Equal(t, "s1", v.StudentID)
		assert.Equal(t, i, v.Occurrence)
		assert.NotEmpty(t, v.Domain)
	}
}

func TestBuildVariablesDefaultsToOneOccurrence(t *testing.T) {
	teacher := domain.TeacherConfig{
		Availability: weekWithMonday(domain.TimeBlock{Start: 540, Duration: 60}),
	}
	student := domain.StudentConfig{
		Person:            domain.Person{ID: "s1"},
		PreferredDuration: 60,
		Availability:      weekWithMonday(domain.TimeBlock{Start: 540, Duration: 60}),
	}

	vars := domain.BuildVariables(teacher, []domain.StudentConfig{student})
	require.Len(t, vars, 1)
	assert.Equal(t, 0, vars[0].Occurrence)
}

func TestCSPValueSequenceIsMonotonic(t *testing.T) {
	teacher := domain.TeacherConfig{
		Availability: weekWithMonday(domain.TimeBlock{Start: 540, Duration: 60}),
	}
	student := domain.StudentConfig{
		Person:            domain.Person{ID: "s1"},
		PreferredDuration: 30,
		Availability:      weekWithMonday(domain.TimeBlock{Start: 540, Duration: 60}),
	}

	vars := domain.BuildVariables(teacher, []domain.StudentConfig{student})
	require.NotEmpty(t, vars[0].Domain)
	for i := 1; i < len(vars[0].Domain); i++ {
		assert.Greater(t, vars[0].Domain[i].Sequence, vars[0].Domain[i-1].Sequence)
	}
}
