package application

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/studiosoft/lessonscheduler/internal/scheduling/domain"
)

// PriorRun is the previous orchestrator output an incremental solve can
// reuse (spec §4.8): the prior solution plus a fingerprint of the
// student/teacher configuration it was computed from.
type PriorRun struct {
	Solution     domain.ScheduleSolution
	TeacherHash  string
	StudentHashes map[string]string // studentID -> config fingerprint at solve time
}

// ReusePlan is the result of diffing a new request against a PriorRun:
// which students can be pinned to their prior placement, and which must
// be re-solved from scratch.
type ReusePlan struct {
	Pinned  []domain.LessonAssignment
	ToSolve []domain.StudentConfig
}

// TeacherFingerprint hashes the parts of a teacher configuration that
// affect every student's domain, so a reuse plan can tell "nothing
// about the teacher changed" from "something did".
func TeacherFingerprint(teacher domain.TeacherConfig) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|%d|%d|%v|%s", teacher.Constraints.MaxConsecutiveMinutes, teacher.Constraints.BreakDurationMinutes,
		teacher.Constraints.MinLessonDuration, teacher.Constraints.MaxLessonDuration, teacher.Constraints.AllowedDurations,
		teacher.Constraints.BackToBackPreference)
	for day := 0; day < domain.DaysPerWeek; day++ {
		for _, b := range teacher.Availability.Day(day).Blocks {
			fmt.Fprintf(h, "|%d:%d:%d", day, b.Start, b.Duration)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// StudentFingerprint hashes the parts of a student configuration that
// affect its own domain: availability, preferred duration, preferred
// times, and the per-week cap.
func StudentFingerprint(student domain.StudentConfig) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d", student.PreferredDuration, student.MaxLessonsPerWeek)
	for day := 0; day < domain.DaysPerWeek; day++ {
		for _, b := range student.Availability.Day(day).Blocks {
			fmt.Fprintf(h, "|%d:%d:%d", day, b.Start, b.Duration)
		}
	}
	preferred := append([]domain.TimeBlock(nil), student.PreferredTimes...)
	sort.Slice(preferred, func(i, j int) bool { return preferred[i].Start < preferred[j].Start })
	for _, b := range preferred {
		fmt.Fprintf(h, "|p%d:%d", b.Start, b.Duration)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Plan decides, for a new teacher/student set against a PriorRun,
// which students can be pinned unchanged and which must be solved.
// Reuse requires the teacher's fingerprint to be unchanged: any
// teacher-level edit invalidates every prior placement (spec §4.8),
// because a changed availability or constraint set can silently make a
// previously-valid placement infeasible.
func Plan(prior *PriorRun, teacher domain.TeacherConfig, students []domain.StudentConfig) ReusePlan {
	plan := ReusePlan{}
	if prior == nil {
		plan.ToSolve = students
		return plan
	}

	teacherUnchanged := TeacherFingerprint(teacher) == prior.TeacherHash
	priorAssignments := make(map[string][]domain.LessonAssignment, len(prior.Solution.Assignments))
	for _, a := range prior.Solution.Assignments {
		priorAssignments[a.StudentID] = append(priorAssignments[a.StudentID], a)
	}

	for _, s := range students {
		prevHash, hadPrior := prior.StudentHashes[s.Person.ID]
		prevAssignments, wasScheduled := priorAssignments[s.Person.ID]
		wasScheduled = wasScheduled && len(prevAssignments) > 0

		if teacherUnchanged && hadPrior && wasScheduled && prevHash == StudentFingerprint(s) {
			plan.Pinned = append(plan.Pinned, prevAssignments...)
			continue
		}
		plan.ToSolve = append(plan.ToSolve, s)
	}
	return plan
}

// Snapshot captures a completed solve as a PriorRun for the next
// incremental request to diff against.
func Snapshot(teacher domain.TeacherConfig, students []domain.StudentConfig, solution domain.ScheduleSolution) PriorRun {
	hashes := make(map[string]string, len(students))
	for _, s := range students {
		hashes[s.Person.ID] = StudentFingerprint(s)
	}
	return PriorRun{Solution: solution, TeacherHash: TeacherFingerprint(teacher), StudentHashes: hashes}
}
