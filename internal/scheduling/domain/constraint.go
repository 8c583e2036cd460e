package domain

import (
	"math"
	"sort"
)

// ConstraintKind distinguishes constraints that must hold (Hard, cost
// +Inf when violated) from those merely optimized (Soft, finite cost).
type ConstraintKind string

const (
	Hard ConstraintKind = "hard"
	Soft ConstraintKind = "soft"
)

// EvalContext is the read-only context a constraint evaluates an
// assignment against: the constraint parameters plus every assignment
// already placed in the partial (or complete) solution.
type EvalContext struct {
	Constraints SchedulingConstraints
	Teacher     WeekSchedule
	Student     StudentConfig
	Placed      []LessonAssignment // assignments already committed, excluding the candidate
}

// Constraint is a single hard or soft rule over a candidate assignment.
// Constraints are stateless: identical (assignment, context) inputs
// always produce identical outputs, which is what makes the
// evaluation cache in the application layer safe.
type Constraint interface {
	ID() string
	Kind() ConstraintKind
	Priority() int // [0,100], higher evaluated first
	Evaluate(assignment LessonAssignment, ctx EvalContext) bool
	ViolationCost(assignment LessonAssignment, ctx EvalContext) float64 // 0 if satisfied; +Inf for hard
	Message() string
}

// baseConstraint factors the bookkeeping every Constraint variant shares.
type baseConstraint struct {
	id       string
	kind     ConstraintKind
	priority int
	message  string
}

func (b baseConstraint) ID() string           { return b.id }
func (b baseConstraint) Kind() ConstraintKind { return b.kind }
func (b baseConstraint) Priority() int        { return b.priority }
func (b baseConstraint) Message() string      { return b.message }

// --- Hard constraints -------------------------------------------------

// AvailabilityConstraint requires the assignment to be contained in
// both a teacher block and the student's block for that day.
type AvailabilityConstraint struct{ baseConstraint }

func NewAvailabilityConstraint() *AvailabilityConstraint {
	return &AvailabilityConstraint{baseConstraint{
		id: "availability", kind: Hard, priority: 100,
		message: "assignment falls outside teacher or student availability",
	}}
}

func (c *AvailabilityConstraint) Evaluate(a LessonAssignment, ctx EvalContext) bool {
	interval := a.Interval()
	teacherDay := ctx.Teacher.Day(a.DayOfWeek)
	studentDay := ctx.Student.Availability.Day(a.DayOfWeek)
	return ContainsAny(teacherDay.Blocks, interval) && ContainsAny(studentDay.Blocks, interval)
}

func (c *AvailabilityConstraint) ViolationCost(a LessonAssignment, ctx EvalContext) float64 {
	if c.Evaluate(a, ctx) {
		return 0
	}
	return math.Inf(1)
}

// NonOverlappingConstraint requires disjointness from every already
// placed assignment on the same day — including a student's own other
// weekly occurrences, which must never double-book the same time slot
// any more than two different students could.
type NonOverlappingConstraint struct{ baseConstraint }

func NewNonOverlappingConstraint() *NonOverlappingConstraint {
	return &NonOverlappingConstraint{baseConstraint{
		id: "non-overlapping", kind: Hard, priority: 99,
		message: "assignment overlaps another lesson",
	}}
}

func (c *NonOverlappingConstraint) Evaluate(a LessonAssignment, ctx EvalContext) bool {
	interval := a.Interval()
	for _, other := range ctx.Placed {
		if other.DayOfWeek != a.DayOfWeek {
			continue
		}
		if Overlaps(interval, other.Interval()) {
			return false
		}
	}
	return true
}

func (c *NonOverlappingConstraint) ViolationCost(a LessonAssignment, ctx EvalContext) float64 {
	if c.Evaluate(a, ctx) {
		return 0
	}
	return math.Inf(1)
}

// DurationConstraint bounds the assignment duration and, when the
// whitelist is non-empty, requires membership in it.
type DurationConstraint struct{ baseConstraint }

func NewDurationConstraint() *DurationConstraint {
	return &DurationConstraint{baseConstraint{
		id: "duration", kind: Hard, priority: 98,
		message: "duration outside allowed bounds",
	}}
}

func (c *DurationConstraint) Evaluate(a LessonAssignment, ctx EvalContext) bool {
	return ctx.Constraints.DurationAllowed(a.DurationMinutes)
}

func (c *DurationConstraint) ViolationCost(a LessonAssignment, ctx EvalContext) float64 {
	if c.Evaluate(a, ctx) {
		return 0
	}
	return math.Inf(1)
}

// --- Soft constraints ---------------------------------------------------

// PreferredTimeConstraint rewards overlap with a student's preferred blocks.
type PreferredTimeConstraint struct {
	baseConstraint
	cost float64
}

func NewPreferredTimeConstraint() *PreferredTimeConstraint {
	return &PreferredTimeConstraint{
		baseConstraint{id: "preferred-time", kind: Soft, priority: 40, message: "outside student's preferred times"},
		50,
	}
}

func (c *PreferredTimeConstraint) Evaluate(a LessonAssignment, ctx EvalContext) bool {
	if len(ctx.Student.PreferredTimes) == 0 {
		return true
	}
	interval := a.Interval()
	for _, pt := range ctx.Student.PreferredTimes {
		if Overlaps(interval, pt) {
			return true
		}
	}
	return false
}

func (c *PreferredTimeConstraint) ViolationCost(a LessonAssignment, ctx EvalContext) float64 {
	if c.Evaluate(a, ctx) {
		return 0
	}
	return c.cost
}

// ConsecutiveLimitConstraint caps runs of strictly adjacent same-day lessons.
type ConsecutiveLimitConstraint struct {
	baseConstraint
	cost float64
}

func NewConsecutiveLimitConstraint() *ConsecutiveLimitConstraint {
	return &ConsecutiveLimitConstraint{
		baseConstraint{id: "consecutive-limit", kind: Soft, priority: 35, message: "exceeds max consecutive minutes"},
		75,
	}
}

func (c *ConsecutiveLimitConstraint) Evaluate(a LessonAssignment, ctx EvalContext) bool {
	if ctx.Constraints.MaxConsecutiveMinutes <= 0 {
		return true
	}
	sameDay := sameDayAssignments(ctx.Placed, a)
	runMinutes := a.DurationMinutes
	runEnd := a.Interval().End()
	// extend backward and forward across zero-gap neighbors
	for i := len(sameDay) - 1; i >= 0; i-- {
		if sameDay[i].Interval().End() == a.Interval().Start {
			runMinutes += sameDay[i].DurationMinutes
			a = sameDay[i]
		}
	}
	for _, next := range sameDay {
		if next.StartMinute == runEnd {
			runMinutes += next.DurationMinutes
			runEnd = next.Interval().End()
		}
	}
	return runMinutes <= ctx.Constraints.MaxConsecutiveMinutes
}

func (c *ConsecutiveLimitConstraint) ViolationCost(a LessonAssignment, ctx EvalContext) float64 {
	if c.Evaluate(a, ctx) {
		return 0
	}
	return c.cost
}

// BreakRequirementConstraint requires a minimum gap between two
// different-student, same-day, disjoint lessons.
type BreakRequirementConstraint struct {
	baseConstraint
	cost float64
}

func NewBreakRequirementConstraint() *BreakRequirementConstraint {
	return &BreakRequirementConstraint{
		baseConstraint{id: "break-requirement", kind: Soft, priority: 30, message: "insufficient break before/after an adjacent lesson"},
		40,
	}
}

func (c *BreakRequirementConstraint) Evaluate(a LessonAssignment, ctx EvalContext) bool {
	if ctx.Constraints.BreakDurationMinutes <= 0 {
		return true
	}
	interval := a.Interval()
	for _, other := range ctx.Placed {
		if other.StudentID == a.StudentID || other.DayOfWeek != a.DayOfWeek {
			continue
		}
		otherInterval := other.Interval()
		if Overlaps(interval, otherInterval) {
			continue // overlap is the non-overlapping constraint's job
		}
		var gap int
		if otherInterval.Start >= interval.End() {
			gap = otherInterval.Start - interval.End()
		} else {
			gap = interval.Start - otherInterval.End()
		}
		required := ctx.Constraints.BreakDurationMinutes
		if interval.Duration > 60 || otherInterval.Duration > 60 {
			required *= 2 // scaled variant: larger gap after long lessons
		}
		if gap < required {
			return false
		}
	}
	return true
}

func (c *BreakRequirementConstraint) ViolationCost(a LessonAssignment, ctx EvalContext) float64 {
	if c.Evaluate(a, ctx) {
		return 0
	}
	return c.cost
}

// WorkloadBalanceConstraint penalizes an uneven spread of lessons across days.
type WorkloadBalanceConstraint struct {
	baseConstraint
	cost float64
}

func NewWorkloadBalanceConstraint() *WorkloadBalanceConstraint {
	return &WorkloadBalanceConstraint{
		baseConstraint{id: "workload-balance", kind: Soft, priority: 20, message: "uneven daily workload"},
		60,
	}
}

func (c *WorkloadBalanceConstraint) Evaluate(a LessonAssignment, ctx EvalContext) bool {
	counts := dayCounts(ctx.Placed, a)
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return true
	}
	mean := float64(total) / float64(DaysPerWeek)
	imbalance := 0.0
	for _, n := range counts {
		d := float64(n) - mean
		imbalance += d * d
	}
	threshold := 2.0 * float64(total)
	return imbalance <= threshold
}

func (c *WorkloadBalanceConstraint) ViolationCost(a LessonAssignment, ctx EvalContext) float64 {
	if c.Evaluate(a, ctx) {
		return 0
	}
	return c.cost
}

// BackToBackConstraint rewards or penalizes adjacency per studio preference.
type BackToBackConstraint struct {
	baseConstraint
	cost float64
}

func NewBackToBackConstraint() *BackToBackConstraint {
	return &BackToBackConstraint{
		baseConstraint{id: "back-to-back", kind: Soft, priority: 10, message: "back-to-back preference not honored"},
		20,
	}
}

func (c *BackToBackConstraint) isAdjacent(a LessonAssignment, ctx EvalContext) bool {
	interval := a.Interval()
	for _, other := range ctx.Placed {
		if other.DayOfWeek != a.DayOfWeek {
			continue
		}
		otherInterval := other.Interval()
		if otherInterval.End() == interval.Start || interval.End() == otherInterval.Start {
			return true
		}
	}
	return false
}

func (c *BackToBackConstraint) Evaluate(a LessonAssignment, ctx EvalContext) bool {
	switch ctx.Constraints.BackToBackPreference {
	case BackToBackMaximize:
		return c.isAdjacent(a, ctx) || len(ctx.Placed) == 0
	case BackToBackMinimize:
		return !c.isAdjacent(a, ctx)
	default:
		return true
	}
}

func (c *BackToBackConstraint) ViolationCost(a LessonAssignment, ctx EvalContext) float64 {
	if c.Evaluate(a, ctx) {
		return 0
	}
	return c.cost
}

// --- helpers --------------------------------------------------------

func sameDayAssignments(placed []LessonAssignment, candidate LessonAssignment) []LessonAssignment {
	var out []LessonAssignment
	for _, p := range placed {
		if p.DayOfWeek == candidate.DayOfWeek {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMinute < out[j].StartMinute })
	return out
}

func dayCounts(placed []LessonAssignment, candidate LessonAssignment) [DaysPerWeek]int {
	var counts [DaysPerWeek]int
	for _, p := range placed {
		counts[p.DayOfWeek]++
	}
	counts[candidate.DayOfWeek]++
	return counts
}

// --- ConstraintManager ------------------------------------------------

// ConstraintManager holds the active constraint set, sorted by
// descending priority so forward checking fails fast on the
// highest-priority hard constraints first.
type ConstraintManager struct {
	constraints []Constraint
}

// NewConstraintManager builds a manager from the given constraints,
// sorted by descending priority.
func NewConstraintManager(constraints ...Constraint) *ConstraintManager {
	m := &ConstraintManager{constraints: append([]Constraint(nil), constraints...)}
	m.resort()
	return m
}

// DefaultConstraintManager returns a manager with every built-in hard
// and soft constraint enabled.
func DefaultConstraintManager() *ConstraintManager {
	return NewConstraintManager(
		NewAvailabilityConstraint(),
		NewNonOverlappingConstraint(),
		NewDurationConstraint(),
		NewPreferredTimeConstraint(),
		NewConsecutiveLimitConstraint(),
		NewBreakRequirementConstraint(),
		NewWorkloadBalanceConstraint(),
		NewBackToBackConstraint(),
	)
}

func (m *ConstraintManager) resort() {
	sort.SliceStable(m.constraints, func(i, j int) bool {
		return m.constraints[i].Priority() > m.constraints[j].Priority()
	})
}

// Add appends a constraint and re-sorts by priority.
func (m *ConstraintManager) Add(c Constraint) {
	m.constraints = append(m.constraints, c)
	m.resort()
}

// Remove drops every constraint with the given id.
func (m *ConstraintManager) Remove(id string) {
	out := m.constraints[:0]
	for _, c := range m.constraints {
		if c.ID() != id {
			out = append(out, c)
		}
	}
	m.constraints = out
}

// Filter returns a new manager retaining only constraints whose ID is
// in allowed. A nil or empty allowed keeps every constraint (spec §6:
// "default: all").
func (m *ConstraintManager) Filter(allowed []string) *ConstraintManager {
	if len(allowed) == 0 {
		return NewConstraintManager(m.constraints...)
	}
	keep := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		keep[id] = true
	}
	var kept []Constraint
	for _, c := range m.constraints {
		if keep[c.ID()] {
			kept = append(kept, c)
		}
	}
	return NewConstraintManager(kept...)
}

// ByKind returns the constraints of the given kind, in priority order.
func (m *ConstraintManager) ByKind(kind ConstraintKind) []Constraint {
	var out []Constraint
	for _, c := range m.constraints {
		if c.Kind() == kind {
			out = append(out, c)
		}
	}
	return out
}

// All returns every active constraint, in priority order.
func (m *ConstraintManager) All() []Constraint {
	return append([]Constraint(nil), m.constraints...)
}

// Violation describes one failed constraint check.
type Violation struct {
	ConstraintID string
	Cost         float64 // +Inf for a hard violation
	Message      string
}

// Check evaluates every active constraint and returns the violations,
// highest priority first.
func (m *ConstraintManager) Check(a LessonAssignment, ctx EvalContext) []Violation {
	var violations []Violation
	for _, c := range m.constraints {
		if !c.Evaluate(a, ctx) {
			violations = append(violations, Violation{
				ConstraintID: c.ID(),
				Cost:         c.ViolationCost(a, ctx),
				Message:      c.Message(),
			})
		}
	}
	return violations
}

// IsValid reports whether the assignment violates no hard constraint.
func (m *ConstraintManager) IsValid(a LessonAssignment, ctx EvalContext) bool {
	for _, c := range m.constraints {
		if c.Kind() == Hard && !c.Evaluate(a, ctx) {
			return false
		}
	}
	return true
}

// TotalSoftCost sums the cost of every soft violation; returns +Inf if
// any hard constraint is violated.
func (m *ConstraintManager) TotalSoftCost(violations []Violation) float64 {
	total := 0.0
	for _, v := range violations {
		if math.IsInf(v.Cost, 1) {
			return math.Inf(1)
		}
		total += v.Cost
	}
	return total
}
