package application

import (
	"math"
	"sort"

	"github.com/studiosoft/lessonscheduler/internal/scheduling/domain"
)

// OptimizationObjective names one of the three scoring dimensions local
// search trades off against each other (spec §4.7).
type OptimizationObjective string

const (
	ObjectiveUtilization OptimizationObjective = "utilization"
	ObjectiveBalance     OptimizationObjective = "balance"
	ObjectivePreferences OptimizationObjective = "preferences"
)

// LocalSearchOptions configures the simulated-annealing optimizer.
type LocalSearchOptions struct {
	MaxIterations int
	Objectives    []OptimizationObjective // empty => all three, equally weighted
	RandomSource  func() float64          // uniform [0,1); nil rejects every worsening move (no math/rand seeding inside core)
}

// LocalSearchOptimizer improves a feasible schedule by hill-climbing
// through swap, relocate, and re-duration neighbor moves under a
// simulated-annealing acceptance rule.
type LocalSearchOptimizer struct {
	teacher     domain.TeacherConfig
	constraints *domain.ConstraintManager
	vars        map[string]domain.CSPVariable
	options     LocalSearchOptions
	controller  *TerminationController
}

// NewLocalSearchOptimizer builds an optimizer over the same variable
// population the searcher used, so moves can be validated against each
// student's real candidate domain. A student with more than one weekly
// occurrence contributes more than one CSPVariable with the same
// StudentID; their domains are unioned here so moves see every
// candidate value available to that student across all of its
// occurrences.
func NewLocalSearchOptimizer(teacher domain.TeacherConfig, vars []domain.CSPVariable, constraints *domain.ConstraintManager, options LocalSearchOptions, controller *TerminationController) *LocalSearchOptimizer {
	byStudent := make(map[string]domain.CSPVariable, len(vars))
	seen := make(map[string]map[domain.CSPValue]bool, len(vars))
	for _, v := range vars {
		merged, ok := byStudent[v.StudentID]
		if !ok {
			merged = domain.CSPVariable{StudentID: v.StudentID, Config: v.Config}
			seen[v.StudentID] = make(map[domain.CSPValue]bool, len(v.Domain))
		}
		for _, value := range v.Domain {
			if seen[v.StudentID][value] {
				continue
			}
			seen[v.StudentID][value] = true
			merged.Domain = append(merged.Domain, value)
		}
		byStudent[v.StudentID] = merged
	}
	if len(options.Objectives) == 0 {
		options.Objectives = []OptimizationObjective{ObjectiveUtilization, ObjectiveBalance, ObjectivePreferences}
	}
	return &LocalSearchOptimizer{teacher: teacher, constraints: constraints, vars: byStudent, options: options, controller: controller}
}

// Improve runs simulated annealing over the initial solution's
// assignments and returns the best feasible arrangement found,
// including the initial one if no move ever improved on it.
func (o *LocalSearchOptimizer) Improve(initial []domain.LessonAssignment) []domain.LessonAssignment {
	current := canonicalOrder(initial)
	currentScore := o.score(current)

	best := append([]domain.LessonAssignment(nil), current...)
	bestScore := currentScore

	maxIter := o.options.MaxIterations
	if maxIter <= 0 {
		maxIter = 200
	}

	for iter := 0; iter < maxIter; iter++ {
		if o.controller != nil && o.controller.ShouldStop(0, bestScore) {
			break
		}

		candidate, ok := o.proposeMove(current, iter)
		if !ok {
			continue
		}
		if !o.isFeasible(candidate) {
			continue
		}

		candidateScore := o.score(candidate)
		temperature := 1 - float64(iter)/float64(maxIter)
		if temperature < 0 {
			temperature = 0
		}

		if o.accept(candidateScore, currentScore, temperature) {
			current = candidate
			currentScore = candidateScore
			if candidateScore > bestScore {
				best = append([]domain.LessonAssignment(nil), candidate...)
				bestScore = candidateScore
			}
		}
	}

	return best
}

// accept applies the simulated-annealing acceptance rule: always take
// an improving move, otherwise take a worsening move with probability
// exp(delta/temperature), per spec §4.7's T = 1 - iteration/max schedule.
func (o *LocalSearchOptimizer) accept(candidateScore, currentScore, temperature float64) bool {
	if candidateScore >= currentScore {
		return true
	}
	if temperature <= 0 {
		return false
	}
	delta := candidateScore - currentScore
	probability := math.Exp(delta / temperature)
	return o.randomFloat() < probability
}

func (o *LocalSearchOptimizer) randomFloat() float64 {
	if o.options.RandomSource != nil {
		return o.options.RandomSource()
	}
	return 1 // no source configured: reject every worsening move, degrade to greedy hill-climbing
}

// proposeMove picks a neighbor move deterministically from iter so that
// runs are reproducible given the same RandomSource sequence: swap two
// students' time slots, relocate one student to another of its own
// domain values, or re-duration one student within its allowed set.
func (o *LocalSearchOptimizer) proposeMove(current []domain.LessonAssignment, iter int) ([]domain.LessonAssignment, bool) {
	if len(current) == 0 {
		return nil, false
	}
	switch iter % 3 {
	case 0:
		return o.swapMove(current, iter)
	case 1:
		return o.relocateMove(current, iter)
	default:
		return o.reDurationMove(current, iter)
	}
}

func (o *LocalSearchOptimizer) swapMove(current []domain.LessonAssignment, iter int) ([]domain.LessonAssignment, bool) {
	if len(current) < 2 {
		return nil, false
	}
	i := iter % len(current)
	j := (iter + 1) % len(current)
	if i == j {
		return nil, false
	}
	out := append([]domain.LessonAssignment(nil), current...)
	out[i].DayOfWeek, out[j].DayOfWeek = out[j].DayOfWeek, out[i].DayOfWeek
	out[i].StartMinute, out[j].StartMinute = out[j].StartMinute, out[i].StartMinute
	return out, true
}

func (o *LocalSearchOptimizer) relocateMove(current []domain.LessonAssignment, iter int) ([]domain.LessonAssignment, bool) {
	i := iter % len(current)
	v, ok := o.vars[current[i].StudentID]
	if !ok || len(v.Domain) == 0 {
		return nil, false
	}
	candidate := v.Domain[iter%len(v.Domain)]
	out := append([]domain.LessonAssignment(nil), current...)
	out[i] = candidate.ToAssignment(current[i].StudentID)
	return out, true
}

func (o *LocalSearchOptimizer) reDurationMove(current []domain.LessonAssignment, iter int) ([]domain.LessonAssignment, bool) {
	i := iter % len(current)
	v, ok := o.vars[current[i].StudentID]
	if !ok {
		return nil, false
	}
	for _, candidate := range v.Domain {
		if candidate.Day == current[i].DayOfWeek && candidate.StartMinute == current[i].StartMinute && candidate.DurationMinutes != current[i].DurationMinutes {
			out := append([]domain.LessonAssignment(nil), current...)
			out[i].DurationMinutes = candidate.DurationMinutes
			return out, true
		}
	}
	return nil, false
}

// isFeasible checks that no two assignments in the candidate
// arrangement overlap on the same day — including a student's own two
// occurrences, which must never be placed back-to-back-overlapping
// either — and that every assignment still lies within its student's
// known domain.
func (o *LocalSearchOptimizer) isFeasible(candidate []domain.LessonAssignment) bool {
	for i := range candidate {
		v, ok := o.vars[candidate[i].StudentID]
		if !ok {
			return false
		}
		inDomain := false
		for _, d := range v.Domain {
			if d.Day == candidate[i].DayOfWeek && d.StartMinute == candidate[i].StartMinute && d.DurationMinutes == candidate[i].DurationMinutes {
				inDomain = true
				break
			}
		}
		if !inDomain {
			return false
		}
	}
	for i := range candidate {
		for j := i + 1; j < len(candidate); j++ {
			if candidate[i].DayOfWeek != candidate[j].DayOfWeek {
				continue
			}
			if domain.Overlaps(candidate[i].Interval(), candidate[j].Interval()) {
				return false
			}
		}
	}
	return true
}

// score combines the configured objectives into a single value to
// maximize; each objective contributes in [0,1], equally weighted.
func (o *LocalSearchOptimizer) score(assignments []domain.LessonAssignment) float64 {
	total := 0.0
	for _, objective := range o.options.Objectives {
		switch objective {
		case ObjectiveUtilization:
			total += o.utilizationScore(assignments)
		case ObjectiveBalance:
			total += o.balanceScore(assignments)
		case ObjectivePreferences:
			total += o.preferenceScore(assignments)
		}
	}
	return total / float64(len(o.options.Objectives))
}

func (o *LocalSearchOptimizer) utilizationScore(assignments []domain.LessonAssignment) float64 {
	teacherMinutes := o.teacher.Availability.TotalAvailableMinutes()
	if teacherMinutes == 0 {
		return 0
	}
	used := 0
	for _, a := range assignments {
		used += a.DurationMinutes
	}
	score := float64(used) / float64(teacherMinutes)
	if score > 1 {
		score = 1
	}
	return score
}

// balanceScore rewards an even spread of lesson counts across days the
// teacher is available, penalizing the frozen workload formula's
// variance term.
func (o *LocalSearchOptimizer) balanceScore(assignments []domain.LessonAssignment) float64 {
	counts := make(map[int]int)
	for _, a := range assignments {
		counts[a.DayOfWeek]++
	}
	if len(counts) == 0 {
		return 1
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	mean := float64(total) / float64(len(counts))
	variance := 0.0
	for _, c := range counts {
		diff := float64(c) - mean
		variance += diff * diff
	}
	threshold := 2 * float64(total)
	if threshold == 0 {
		return 1
	}
	score := 1 - variance/threshold
	if score < 0 {
		score = 0
	}
	return score
}

func (o *LocalSearchOptimizer) preferenceScore(assignments []domain.LessonAssignment) float64 {
	if len(assignments) == 0 {
		return 1
	}
	matches := 0
	for _, a := range assignments {
		v, ok := o.vars[a.StudentID]
		if !ok || len(v.Config.PreferredTimes) == 0 {
			matches++
			continue
		}
		if domain.ContainsAny(v.Config.PreferredTimes, a.Interval()) {
			matches++
		}
	}
	return float64(matches) / float64(len(assignments))
}

// sortedStudentIDs returns the assignments' student IDs in sorted order
// (repeats included); canonicalOrder ranks students by it.
func sortedStudentIDs(assignments []domain.LessonAssignment) []string {
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.StudentID)
	}
	sort.Strings(ids)
	return ids
}

// canonicalOrder sorts a copy of assignments by (student rank, day,
// start minute) so that Improve's iter-derived move indices select the
// same move sequence regardless of the order the caller happened to
// hand assignments in.
func canonicalOrder(assignments []domain.LessonAssignment) []domain.LessonAssignment {
	out := append([]domain.LessonAssignment(nil), assignments...)
	rank := make(map[string]int, len(out))
	for i, id := range sortedStudentIDs(out) {
		if _, exists := rank[id]; !exists {
			rank[id] = i
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if rank[out[i].StudentID] != rank[out[j].StudentID] {
			return rank[out[i].StudentID] < rank[out[j].StudentID]
		}
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartMinute < out[j].StartMinute
	})
	return out
}
