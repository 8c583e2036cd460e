package domain

// CSPValue is one candidate (day, start, duration) placement for a
// student, pre-scored by a cheap heuristic that the searcher uses as a
// value-order tie-breaker and the preprocessor's L4/L5 levels rank by.
type CSPValue struct {
	Day             int
	StartMinute     int
	DurationMinutes int
	Cost            float64 // lower is better
	Sequence        int     // monotonic generation order, for deterministic tie-breaks
}

// Interval returns the value's TimeBlock.
func (v CSPValue) Interval() TimeBlock {
	return TimeBlock{Start: v.StartMinute, Duration: v.DurationMinutes}
}

// ToAssignment binds the value to a student id.
func (v CSPValue) ToAssignment(studentID string) LessonAssignment {
	return LessonAssignment{
		StudentID:       studentID,
		DayOfWeek:       v.Day,
		StartMinute:     v.StartMinute,
		DurationMinutes: v.DurationMinutes,
	}
}

// CSPVariable is one candidate slot for a student: a student with
// MaxLessonsPerWeek > 1 is represented by several CSPVariables sharing
// a StudentID, one per Occurrence, so the searcher can place each
// weekly lesson independently.
type CSPVariable struct {
	StudentID  string
	Occurrence int
	Config     StudentConfig
	Domain     []CSPValue
}

// startOffsetMinutes is the granularity at which candidate start times
// are enumerated within a mutual-availability window (spec §4.3).
const startOffsetMinutes = 5

// BuildVariables generates StudentConfig.LessonsPerWeek() CSPVariables
// per student, each over the same candidate domain built by
// intersecting teacher and student availability for every day and
// enumerating every 5-minute start offset for every candidate duration
// that fits. Occurrences of the same student share a domain at
// generation time; the searcher's forward checking is what keeps a
// student's own occurrences from landing on overlapping placements.
func BuildVariables(teacher TeacherConfig, students []StudentConfig) []CSPVariable {
	vars := make([]CSPVariable, 0, len(students))
	seq := 0
	for _, student := range students {
		domainValues, nextSeq := buildDomain(teacher, student, seq)
		seq = nextSeq
		for occurrence := 0; occurrence < student.LessonsPerWeek(); occurrence++ {
			domainCopy := append([]CSPValue(nil), domainValues...)
			vars = append(vars, CSPVariable{
				StudentID:  student.Person.ID,
				Occurrence: occurrence,
				Config:     student,
				Domain:     domainCopy,
			})
		}
	}
	return vars
}

// buildDomain enumerates one student's full candidate domain, starting
// value sequence numbers at seq and returning the next free sequence
// number so multiple students (and multiple occurrences) stay
// monotonically and deterministically ordered.
func buildDomain(teacher TeacherConfig, student StudentConfig, seq int) ([]CSPValue, int) {
	var values []CSPValue
	durations := candidateDurations(teacher.Constraints, student.PreferredDuration)

	for day := 0; day < DaysPerWeek; day++ {
		windows := IntersectDay(teacher.Availability.Day(day).Blocks, student.Availability.Day(day).Blocks)
		for _, window := range windows {
			for _, duration := range durations {
				if duration > window.Duration {
					continue
				}
				for start := window.Start; start+duration <= window.End(); start += startOffsetMinutes {
					values = append(values, CSPValue{
						Day:             day,
						StartMinute:     start,
						DurationMinutes: duration,
						Cost:            scoreValue(start, duration, student),
						Sequence:        seq,
					})
					seq++
				}
			}
		}
	}
	return values, seq
}

// candidateDurations returns the durations to try for a student: the
// studio's whitelist when non-empty, otherwise just the student's
// preferred duration (spec §4.3).
func candidateDurations(constraints SchedulingConstraints, preferred int) []int {
	if len(constraints.AllowedDurations) > 0 {
		return constraints.AllowedDurations
	}
	return []int{preferred}
}

// scoreValue computes the pre-baked preference score for a candidate
// value: penalize early-morning/late-evening starts, penalize
// deviation from the student's preferred duration, and credit overlap
// with any of the student's preferred blocks.
func scoreValue(start, duration int, student StudentConfig) float64 {
	cost := 0.0

	const dayStartIdeal, dayEndIdeal = 9 * 60, 17 * 60
	if start < dayStartIdeal {
		cost += float64(dayStartIdeal-start) * 0.1
	}
	if end := start + duration; end > dayEndIdeal {
		cost += float64(end-dayEndIdeal) * 0.1
	}

	if diff := duration - student.PreferredDuration; diff != 0 {
		if diff < 0 {
			diff = -diff
		}
		cost += float64(diff) * 0.5
	}

	if len(student.PreferredTimes) > 0 {
		candidate := TimeBlock{Start: start, Duration: duration}
		overlapsPreferred := false
		for _, pt := range student.PreferredTimes {
			if Overlaps(candidate, pt) {
				overlapsPreferred = true
				break
			}
		}
		if !overlapsPreferred {
			cost += 15
		}
	}

	return cost
}
