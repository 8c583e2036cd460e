package application

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/studiosoft/lessonscheduler/internal/scheduling/domain"
)

// ErrInvalidInput is the sentinel wrapped by Solve's returned error
// whenever ValidateInputs finds a structural problem; callers can
// errors.Is against it rather than matching on message text.
var ErrInvalidInput = errors.New("invalid solve request")

// SolveState names a stage in the orchestrator's state machine
// (spec §6): CREATED -> VALIDATED -> (REUSE_MATCH?) -> PREPROCESSED ->
// SEARCHING -> (OPTIMIZING) -> DONE.
type SolveState string

const (
	StateCreated      SolveState = "CREATED"
	StateValidated    SolveState = "VALIDATED"
	StatePreprocessed SolveState = "PREPROCESSED"
	StateSearching    SolveState = "SEARCHING"
	StateOptimizing   SolveState = "OPTIMIZING"
	StateDone         SolveState = "DONE"
)

// SolveOptions exposes every tunable named in spec §6.
type SolveOptions struct {
	PreprocessLevel    PreprocessLevel // 0 => RecommendedLevel(len(students))
	UseHeuristics      bool
	UseConstraintPropagation bool
	EnableLocalSearch  bool
	LocalSearchOptions LocalSearchOptions
	Termination        TerminationOptions
	ConstraintIDs      []string // empty => DefaultConstraintManager's full set
	CacheCapacity      int      // 0 => EvaluationCache default
	Prior              *PriorRun
	Now                time.Time // required: clock is supplied, never read from the system (keeps solves reproducible)
}

// Solver runs repeated solves for one teacher, reusing prior-run state
// for incremental requests.
type Solver struct {
	constraints *domain.ConstraintManager
	logger      *slog.Logger
}

// NewSolver builds a Solver over an explicit constraint set, or the
// default set when none is given.
func NewSolver(constraintIDs []string) *Solver {
	manager := domain.DefaultConstraintManager()
	if len(constraintIDs) > 0 {
		manager = manager.Filter(constraintIDs)
	}
	return &Solver{constraints: manager, logger: slog.Default()}
}

// WithLogger overrides the Solver's logger; a nil argument is ignored
// and the default logger is kept.
func (solver *Solver) WithLogger(logger *slog.Logger) *Solver {
	if logger != nil {
		solver.logger = logger
	}
	return solver
}

// ValidateInputs reports every structural problem with a request
// before any search begins (spec §6's INVALID_INPUT path): these never
// panic, they accumulate into a message list the caller can surface.
func ValidateInputs(teacher domain.TeacherConfig, students []domain.StudentConfig) []string {
	var problems []string

	if teacher.Availability.IsEmpty() {
		problems = append(problems, "teacher has no available time blocks")
	}
	seen := make(map[string]bool, len(students))
	for _, s := range students {
		if s.Person.ID == "" {
			problems = append(problems, "student is missing an id")
			continue
		}
		if seen[s.Person.ID] {
			problems = append(problems, fmt.Sprintf("duplicate student id %q", s.Person.ID))
		}
		seen[s.Person.ID] = true
		if s.PreferredDuration <= 0 {
			problems = append(problems, fmt.Sprintf("student %q has a non-positive preferred duration", s.Person.ID))
		}
		if s.Availability.IsEmpty() {
			problems = append(problems, fmt.Sprintf("student %q has no available time blocks", s.Person.ID))
		}
	}
	return problems
}

// Solve runs one full solve: validate, (plan reuse), preprocess,
// search, (optimize), and assemble the result. It never panics on bad
// input or on timeout: a timeout surfaces through Metadata.StopReason,
// invalid input through the returned error.
func (solver *Solver) Solve(teacher domain.TeacherConfig, students []domain.StudentConfig, options SolveOptions) (domain.ScheduleSolution, error) {
	runID := uuid.NewString()
	log := solver.logger.With("run_id", runID, "student_count", len(students))

	if problems := ValidateInputs(teacher, students); len(problems) > 0 {
		log.Warn("rejecting invalid solve request", "problems", problems)
		unscheduled := make([]string, 0, len(students))
		for _, s := range students {
			unscheduled = append(unscheduled, s.Person.ID)
		}
		return domain.ScheduleSolution{Unscheduled: unscheduled}, fmt.Errorf("%w: %v", ErrInvalidInput, problems)
	}

	plan := Plan(options.Prior, teacher, students)
	toSolve := students
	if options.Prior != nil {
		toSolve = plan.ToSolve
		log.Info("reuse plan computed", "pinned", len(plan.Pinned), "to_solve", len(plan.ToSolve))
	}

	level := options.PreprocessLevel
	if level == 0 {
		level = RecommendedLevel(len(students))
	}
	vars := domain.BuildVariables(teacher, toSolve)
	domainCache := NewDomainCache(options.CacheCapacity)
	preprocessor := NewPreprocessor(teacher, solver.constraints).WithDomainCache(domainCache)
	vars = preprocessor.Reduce(vars, level)

	cache := NewEvaluationCache(options.CacheCapacity)
	controller := NewTerminationController(options.Termination, options.Now)

	searcher := NewSearcher(teacher, vars, solver.constraints, SearchOptions{
		UseHeuristics:            options.UseHeuristics,
		UseConstraintPropagation: options.UseConstraintPropagation,
		Cache:                    cache,
	}, controller)
	searcher.PinAssignments(plan.Pinned)
	result := searcher.Solve()

	assignments := make([]domain.LessonAssignment, 0, len(result.Assignments))
	for _, placements := range result.Assignments {
		assignments = append(assignments, placements...)
	}

	strategy := "backtracking"
	if options.EnableLocalSearch {
		optimizer := NewLocalSearchOptimizer(teacher, vars, solver.constraints, options.LocalSearchOptions, controller)
		assignments = optimizer.Improve(assignments)
		strategy = "backtracking+local-search"
	}

	assertNoHardViolation(teacher, students, assignments, solver.constraints)

	metadata := solver.buildMetadata(teacher, students, assignments, result, cache, strategy, controller)
	metadata.RunID = runID
	log.Info("solve finished",
		"scheduled", metadata.ScheduledStudents,
		"unscheduled", len(result.Unscheduled),
		"backtracks", metadata.BacktrackCount,
		"strategy", metadata.StrategyUsed,
		"stop_reason", metadata.StopReason,
	)
	return domain.ScheduleSolution{
		Assignments: assignments,
		Unscheduled: result.Unscheduled,
		Metadata:    metadata,
	}, nil
}

// assertNoHardViolation re-checks every returned assignment against
// the active hard constraints before Solve hands the result back to
// the caller. The searcher and local search optimizer are both
// expected to only ever emit hard-constraint-clean assignments; a
// violation here means one of them has a bug, so this panics rather
// than returning a silently-broken solution (spec §7 "Internal
// invariant violation").
func assertNoHardViolation(teacher domain.TeacherConfig, students []domain.StudentConfig, assignments []domain.LessonAssignment, constraints *domain.ConstraintManager) {
	byID := make(map[string]domain.StudentConfig, len(students))
	for _, s := range students {
		byID[s.Person.ID] = s
	}

	for i, a := range assignments {
		placed := make([]domain.LessonAssignment, 0, len(assignments)-1)
		for j, other := range assignments {
			if j != i {
				placed = append(placed, other)
			}
		}
		ctx := domain.EvalContext{
			Constraints: teacher.Constraints,
			Teacher:     teacher.Availability,
			Student:     byID[a.StudentID],
			Placed:      placed,
		}
		if !constraints.IsValid(a, ctx) {
			panic(fmt.Sprintf("internal invariant violation: assignment %+v violates a hard constraint", a))
		}
	}
}

func (solver *Solver) buildMetadata(teacher domain.TeacherConfig, students []domain.StudentConfig, assignments []domain.LessonAssignment, result SearchResult, cache *EvaluationCache, strategy string, controller *TerminationController) domain.SolutionMetadata {
	teacherMinutes := teacher.Availability.TotalAvailableMinutes()
	usedMinutes := 0
	scheduledStudents := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		usedMinutes += a.DurationMinutes
		scheduledStudents[a.StudentID] = true
	}
	utilization := 0.0
	if teacherMinutes > 0 {
		utilization = float64(usedMinutes) / float64(teacherMinutes) * 100
	}

	return domain.SolutionMetadata{
		TotalStudents:             len(students),
		ScheduledStudents:         len(scheduledStudents),
		AverageUtilizationPercent: utilization,
		ComputeTimeMs:             controller.Elapsed().Milliseconds(),
		BacktrackCount:            result.BacktrackCount,
		StrategyUsed:              strategy,
		CacheHitRate:              cache.HitRate(),
		StopReason:                controller.Reason(),
	}
}
