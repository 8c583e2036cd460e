package application

import (
	"sort"

	"github.com/studiosoft/lessonscheduler/internal/scheduling/domain"
)

// SearchOptions configures the backtracking searcher.
type SearchOptions struct {
	UseHeuristics            bool // MRV/LCV ordering; false => input order, generation order
	UseConstraintPropagation bool // run the AC-3-style pre-pass once before search
	Cache                    *EvaluationCache // optional; nil disables memoization
}

// SearchResult is the outcome of one backtracking run.
type SearchResult struct {
	Assignments    map[string][]domain.LessonAssignment // studentID -> placements (one per occurrence scheduled)
	Unscheduled    []string
	BacktrackCount int
	Completed      bool // false if the termination controller stopped the search early
}

// pruneRecord is one undo-log entry: variable varIndex had value
// removed from its domain.
type pruneRecord struct {
	varIndex int
	value    domain.CSPValue
}

// Searcher runs MRV/LCV backtracking with forward checking over a
// fixed set of variables.
type Searcher struct {
	teacher     domain.TeacherConfig
	constraints *domain.ConstraintManager
	options     SearchOptions
	controller  *TerminationController

	vars       []domain.CSPVariable // mutable working domains
	assigned   map[int]domain.LessonAssignment // variable index (negative for pinned) -> placement
	pinnedSeq  int
	placed     []domain.LessonAssignment
	backtracks int
}

// NewSearcher builds a searcher over vars (not mutated; the searcher
// clones working domains internally).
func NewSearcher(teacher domain.TeacherConfig, vars []domain.CSPVariable, constraints *domain.ConstraintManager, options SearchOptions, controller *TerminationController) *Searcher {
	return &Searcher{
		teacher:     teacher,
		constraints: constraints,
		options:     options,
		controller:  controller,
		vars:        cloneVariables(vars),
		assigned:    make(map[int]domain.LessonAssignment),
	}
}

// PinAssignments commits a set of already-decided assignments (from
// incremental reuse) and removes every variable belonging to a pinned
// student from the search, since all of that student's occurrences are
// assumed unchanged. Pinned assignments are stored under synthetic
// negative keys, since they have no corresponding index into s.vars.
func (s *Searcher) PinAssignments(pinned []domain.LessonAssignment) {
	pinnedIDs := make(map[string]bool, len(pinned))
	for _, a := range pinned {
		pinnedIDs[a.StudentID] = true
		s.pinnedSeq--
		s.assigned[s.pinnedSeq] = a
		s.placed = append(s.placed, a)
	}
	remaining := s.vars[:0]
	for _, v := range s.vars {
		if !pinnedIDs[v.StudentID] {
			remaining = append(remaining, v)
		}
	}
	s.vars = remaining
}

// Solve runs the AC-3 pre-pass (if enabled) and then backtracking
// search to completion, termination, or exhaustion.
func (s *Searcher) Solve() SearchResult {
	if s.options.UseConstraintPropagation {
		s.propagateAC3()
	}

	unassigned := make([]int, len(s.vars))
	for i := range s.vars {
		unassigned[i] = i
	}

	completed := s.backtrack(unassigned)

	result := SearchResult{
		Assignments:    make(map[string][]domain.LessonAssignment, len(s.assigned)),
		BacktrackCount: s.backtracks,
		Completed:      completed,
	}
	for _, a := range s.assigned {
		result.Assignments[a.StudentID] = append(result.Assignments[a.StudentID], a)
	}
	for _, list := range result.Assignments {
		sort.Slice(list, func(i, j int) bool {
			if list[i].DayOfWeek != list[j].DayOfWeek {
				return list[i].DayOfWeek < list[j].DayOfWeek
			}
			return list[i].StartMinute < list[j].StartMinute
		})
	}

	// a student is unscheduled iff it has zero placed occurrences, not
	// fewer than its configured max — invariant 6 partitions students by
	// presence, invariant 5 only bounds the count from above.
	seenStudents := make(map[string]bool, len(s.vars))
	for _, v := range s.vars {
		if seenStudents[v.StudentID] {
			continue
		}
		seenStudents[v.StudentID] = true
		if len(result.Assignments[v.StudentID]) == 0 {
			result.Unscheduled = append(result.Unscheduled, v.StudentID)
		}
	}
	sort.Strings(result.Unscheduled)
	return result
}

// propagateAC3 prunes, for every ordered pair of variables sharing a
// day, any value that has no consistent partner in the other
// variable's domain (spec §4.6).
func (s *Searcher) propagateAC3() {
	changed := true
	for changed {
		changed = false
		for i := range s.vars {
			kept := s.vars[i].Domain[:0]
			for _, v := range s.vars[i].Domain {
				if s.hasConsistentPartner(i, v) {
					kept = append(kept, v)
				} else {
					changed = true
				}
			}
			s.vars[i].Domain = kept
		}
	}
}

func (s *Searcher) hasConsistentPartner(i int, v domain.CSPValue) bool {
	for j := range s.vars {
		if j == i {
			continue
		}
		sharesDay := false
		for _, other := range s.vars[j].Domain {
			if other.Day == v.Day {
				sharesDay = true
				if !domain.Overlaps(v.Interval(), other.Interval()) {
					break
				}
			}
		}
		// if the other variable has no value on this day at all, or
		// has at least one non-conflicting value, v survives w.r.t. j
		if !sharesDay {
			continue
		}
		consistent := false
		for _, other := range s.vars[j].Domain {
			if other.Day != v.Day || !domain.Overlaps(v.Interval(), other.Interval()) {
				consistent = true
				break
			}
		}
		if !consistent {
			return false
		}
	}
	return true
}

// backtrack is the recursive search over the remaining unassigned
// variable indices (indices into s.vars).
func (s *Searcher) backtrack(remaining []int) bool {
	if len(remaining) == 0 {
		return true
	}
	if s.controller != nil && s.controller.ShouldStop(s.backtracks, s.currentQuality()) {
		return false
	}

	varIdx, rest := s.selectVariable(remaining)
	values := s.orderValues(varIdx, rest)

	for _, value := range values {
		assignment := value.ToAssignment(s.vars[varIdx].StudentID)
		if !s.isConsistent(assignment) {
			continue
		}

		s.commit(varIdx, assignment)
		pruned := s.forwardCheck(varIdx, rest)

		if s.backtrack(rest) {
			return true
		}

		s.backtracks++
		s.undo(varIdx, assignment, pruned)

		if s.controller != nil && s.controller.ShouldStop(s.backtracks, s.currentQuality()) {
			return false
		}
	}
	// no value of this variable fits the current partial assignment:
	// leave it unassigned (its student may end up unscheduled) and go on
	// with the remaining variables.
	return s.backtrack(rest)
}

// currentQuality estimates quality = 0.8*scheduling_rate + 0.2*utilization
// over the total variable population, for the termination controller.
func (s *Searcher) currentQuality() float64 {
	totalVars := len(s.assigned) + len(s.vars)
	if totalVars == 0 {
		return 1
	}
	schedulingRate := float64(len(s.assigned)) / float64(totalVars)

	teacherMinutes := s.teacher.Availability.TotalAvailableMinutes()
	utilization := 0.0
	if teacherMinutes > 0 {
		assignedMinutes := 0
		for _, a := range s.placed {
			assignedMinutes += a.DurationMinutes
		}
		utilization = float64(assignedMinutes) / float64(teacherMinutes)
		if utilization > 1 {
			utilization = 1
		}
	}
	return 0.8*schedulingRate + 0.2*utilization
}

// selectVariable applies MRV with degree tie-break (spec §4.6) when
// heuristics are enabled; otherwise it returns the first remaining
// variable in input order.
func (s *Searcher) selectVariable(remaining []int) (chosen int, rest []int) {
	if !s.options.UseHeuristics {
		return remaining[0], remaining[1:]
	}

	bestPos := 0
	for i := 1; i < len(remaining); i++ {
		if s.betterVariable(remaining[i], remaining[bestPos]) {
			bestPos = i
		}
	}

	chosen = remaining[bestPos]
	rest = make([]int, 0, len(remaining)-1)
	rest = append(rest, remaining[:bestPos]...)
	rest = append(rest, remaining[bestPos+1:]...)
	return chosen, rest
}

func (s *Searcher) betterVariable(a, b int) bool {
	da, db := len(s.vars[a].Domain), len(s.vars[b].Domain)
	if da != db {
		return da < db
	}
	return s.degree(a) > s.degree(b)
}

// degree counts other unassigned variables whose domains still
// contain a value conflicting (same day + overlap) with some value of
// variable idx.
func (s *Searcher) degree(idx int) int {
	count := 0
	for j := range s.vars {
		if j == idx {
			continue
		}
		if s.conflictsWithAny(idx, j) {
			count++
		}
	}
	return count
}

func (s *Searcher) conflictsWithAny(idx, other int) bool {
	for _, v := range s.vars[idx].Domain {
		for _, o := range s.vars[other].Domain {
			if v.Day == o.Day && domain.Overlaps(v.Interval(), o.Interval()) {
				return true
			}
		}
	}
	return false
}

// orderValues applies LCV with cost tie-break (spec §4.6) when
// heuristics are enabled; otherwise returns values in generation order.
func (s *Searcher) orderValues(varIdx int, rest []int) []domain.CSPValue {
	values := append([]domain.CSPValue(nil), s.vars[varIdx].Domain...)
	if !s.options.UseHeuristics {
		sort.SliceStable(values, func(i, j int) bool { return values[i].Sequence < values[j].Sequence })
		return values
	}

	type scored struct {
		value        domain.CSPValue
		eliminations int
	}
	scoredValues := make([]scored, len(values))
	for i, v := range values {
		scoredValues[i] = scored{value: v, eliminations: s.countEliminations(v, rest)}
	}
	sort.SliceStable(scoredValues, func(i, j int) bool {
		if scoredValues[i].eliminations != scoredValues[j].eliminations {
			return scoredValues[i].eliminations < scoredValues[j].eliminations
		}
		if scoredValues[i].value.Cost != scoredValues[j].value.Cost {
			return scoredValues[i].value.Cost < scoredValues[j].value.Cost
		}
		return scoredValues[i].value.Sequence < scoredValues[j].value.Sequence
	})
	out := make([]domain.CSPValue, len(scoredValues))
	for i, sv := range scoredValues {
		out[i] = sv.value
	}
	return out
}

func (s *Searcher) countEliminations(v domain.CSPValue, rest []int) int {
	count := 0
	for _, j := range rest {
		for _, o := range s.vars[j].Domain {
			if o.Day == v.Day && domain.Overlaps(v.Interval(), o.Interval()) {
				count++
			}
		}
	}
	return count
}

// isConsistent checks every active hard constraint, consulting the
// cache when present.
func (s *Searcher) isConsistent(a domain.LessonAssignment) bool {
	ctx := domain.EvalContext{
		Constraints: s.teacher.Constraints,
		Teacher:     s.teacher.Availability,
		Student:     s.studentConfig(a.StudentID),
		Placed:      s.placed,
	}

	var contextHash uint64
	useCache := s.options.Cache != nil
	if useCache {
		contextHash = ContextHash(s.placed)
	}

	for _, c := range s.constraints.ByKind(domain.Hard) {
		if useCache {
			if v, ok := s.options.Cache.Get(c.ID(), a.StudentID, a.DayOfWeek, a.StartMinute, a.DurationMinutes, contextHash); ok {
				if !v {
					return false
				}
				continue
			}
		}
		ok := c.Evaluate(a, ctx)
		if useCache {
			s.options.Cache.Put(c.ID(), a.StudentID, a.DayOfWeek, a.StartMinute, a.DurationMinutes, contextHash, ok)
		}
		if !ok {
			return false
		}
	}
	return true
}

func (s *Searcher) studentConfig(studentID string) domain.StudentConfig {
	for _, v := range s.vars {
		if v.StudentID == studentID {
			return v.Config
		}
	}
	return domain.StudentConfig{}
}

func (s *Searcher) commit(varIdx int, a domain.LessonAssignment) {
	s.assigned[varIdx] = a
	s.placed = append(s.placed, a)
}

// forwardCheck removes, from every other remaining variable's domain,
// values that now conflict with the just-committed assignment,
// recording removals in an undo log.
func (s *Searcher) forwardCheck(committedIdx int, rest []int) []pruneRecord {
	var log []pruneRecord
	committed := s.vars[committedIdx]
	if len(committed.Domain) == 0 {
		return log
	}
	// use the just-placed assignment's interval, not the whole domain
	placed := s.placed[len(s.placed)-1]
	interval := placed.Interval()

	for _, j := range rest {
		kept := s.vars[j].Domain[:0]
		for _, v := range s.vars[j].Domain {
			if v.Day == placed.DayOfWeek && domain.Overlaps(interval, v.Interval()) {
				log = append(log, pruneRecord{varIndex: j, value: v})
				continue
			}
			kept = append(kept, v)
		}
		s.vars[j].Domain = kept
	}
	return log
}

func (s *Searcher) undo(varIdx int, a domain.LessonAssignment, pruned []pruneRecord) {
	delete(s.assigned, varIdx)
	s.placed = s.placed[:len(s.placed)-1]
	for _, p := range pruned {
		s.vars[p.varIndex].Domain = append(s.vars[p.varIndex].Domain, p.value)
	}
}
