package domain

// BackToBackPreference controls whether adjacent lesson placements are
// rewarded, penalized, or ignored by the back-to-back soft constraint.
type BackToBackPreference string

const (
	BackToBackMaximize BackToBackPreference = "maximize"
	BackToBackMinimize BackToBackPreference = "minimize"
	BackToBackAgnostic BackToBackPreference = "agnostic"
)

// SchedulingConstraints holds the studio-wide constraint parameters.
type SchedulingConstraints struct {
	MaxConsecutiveMinutes  int
	BreakDurationMinutes   int
	MinLessonDuration      int
	MaxLessonDuration      int
	AllowedDurations       []int // optional whitelist; empty means unrestricted
	BackToBackPreference   BackToBackPreference
}

// DurationAllowed reports whether duration satisfies the hard duration
// bounds and, if AllowedDurations is non-empty, membership in it. A
// zero MinLessonDuration/MaxLessonDuration is unset rather than zero,
// matching TerminationOptions' "0 disables this bound" convention.
func (c SchedulingConstraints) DurationAllowed(duration int) bool {
	if c.MinLessonDuration > 0 && duration < c.MinLessonDuration {
		return false
	}
	if c.MaxLessonDuration > 0 && duration > c.MaxLessonDuration {
		return false
	}
	if len(c.AllowedDurations) == 0 {
		return true
	}
	for _, d := range c.AllowedDurations {
		if d == duration {
			return true
		}
	}
	return false
}

// Person carries the caller-opaque display fields for a teacher or
// student; the core never inspects Name or Email.
type Person struct {
	ID    string
	Name  string
	Email string
}

// TeacherConfig is one teacher's weekly availability and studio-wide
// constraints.
type TeacherConfig struct {
	Person       Person
	StudioID     string
	Availability WeekSchedule
	Constraints  SchedulingConstraints
}

// StudentConfig is one student's weekly availability and lesson
// preferences.
type StudentConfig struct {
	Person           Person
	PreferredDuration int
	MaxLessonsPerWeek int
	Availability      WeekSchedule
	PreferredTimes    []TimeBlock // optional, per §3; empty means no preference
}

// LessonsPerWeek returns the configured MaxLessonsPerWeek, defaulting to
// one when unset (spec §3: "at most one weekly lesson per student, or
// configurably more").
func (s StudentConfig) LessonsPerWeek() int {
	if s.MaxLessonsPerWeek <= 0 {
		return 1
	}
	return s.MaxLessonsPerWeek
}

// LessonAssignment is one placed (student, day, start, duration) tuple.
type LessonAssignment struct {
	StudentID      string
	DayOfWeek      int
	StartMinute    int
	DurationMinutes int
}

// Interval returns the assignment's TimeBlock on its day.
func (a LessonAssignment) Interval() TimeBlock {
	return TimeBlock{Start: a.StartMinute, Duration: a.DurationMinutes}
}

// Valid reports whether the assignment is in canonical form.
func (a LessonAssignment) Valid() bool {
	return a.DayOfWeek >= 0 && a.DayOfWeek < DaysPerWeek && a.Interval().Valid()
}

// SolutionMetadata carries both the spec-required summary fields and
// the supplemental diagnostics described in SPEC_FULL.md §4.
type SolutionMetadata struct {
	TotalStudents              int
	ScheduledStudents          int
	AverageUtilizationPercent  float64
	ComputeTimeMs              int64

	// Supplemental fields (SPEC_FULL.md §4).
	RunID           string
	BacktrackCount  int
	StrategyUsed    string
	CacheHitRate    float64
	StopReason      string // "" (no bound tripped), "TIMED_OUT", "BACKTRACK_LIMIT", "QUALITY_REACHED"
}

// ScheduleSolution is the value-typed result of a solve: a list of
// placed assignments, the students who could not be scheduled, and
// summary metadata.
type ScheduleSolution struct {
	Assignments []LessonAssignment
	Unscheduled []string
	Metadata    SolutionMetadata
}
