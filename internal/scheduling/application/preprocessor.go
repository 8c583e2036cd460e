// Package application hosts the search and optimization layer that sits
// on top of the pure domain model: preprocessing, caching, the
// backtracking searcher, local search, incremental reuse, the
// termination controller, and the public orchestrator.
package application

import (
	"hash/fnv"
	"sort"

	"github.com/studiosoft/lessonscheduler/internal/scheduling/domain"
)

// PreprocessLevel selects one of the five progressively aggressive
// domain-pruning levels described in spec §4.4.
type PreprocessLevel int

const (
	LevelAvailabilityFilter PreprocessLevel = 1
	LevelMutualExclusion    PreprocessLevel = 2
	LevelPropagation        PreprocessLevel = 3
	LevelHeuristicRanking   PreprocessLevel = 4
	LevelAggressiveTrim     PreprocessLevel = 5

	// propagationIterationCap bounds L3's fixpoint loop.
	propagationIterationCap = 50
)

// RecommendedLevel maps a student-count to the preprocessing level
// recommended by spec §4.4.
func RecommendedLevel(studentCount int) PreprocessLevel {
	switch {
	case studentCount <= 10:
		return LevelMutualExclusion
	case studentCount <= 30:
		return LevelPropagation
	case studentCount <= 50:
		return LevelHeuristicRanking
	default:
		return LevelAggressiveTrim
	}
}

// Preprocessor reduces each variable's candidate domain before search
// begins, using the teacher's availability and the active hard
// constraints as the only ground truth.
type Preprocessor struct {
	constraints *domain.ConstraintManager
	teacher     domain.TeacherConfig
	domainCache *DomainCache
}

// NewPreprocessor builds a preprocessor bound to a teacher and its
// active constraint manager.
func NewPreprocessor(teacher domain.TeacherConfig, constraints *domain.ConstraintManager) *Preprocessor {
	return &Preprocessor{constraints: constraints, teacher: teacher}
}

// WithDomainCache attaches a cache for L1's per-student availability
// filter, the only preprocessing stage whose output is a pure function
// of (teacher, single student) independent of the rest of the
// population; a nil argument disables caching. L2 and beyond are
// joint across the whole student population and are not cached.
func (p *Preprocessor) WithDomainCache(cache *DomainCache) *Preprocessor {
	p.domainCache = cache
	return p
}

// Reduce applies levels 1..level in order and returns the pruned
// variables; the input slice is not mutated.
func (p *Preprocessor) Reduce(vars []domain.CSPVariable, level PreprocessLevel) []domain.CSPVariable {
	out := cloneVariables(vars)

	if level >= LevelAvailabilityFilter {
		out = p.availabilityFilter(out)
	}
	if level >= LevelMutualExclusion {
		out = p.mutualExclusion(out, 1)
	}
	if level >= LevelPropagation {
		out = p.propagate(out)
	}
	if level >= LevelHeuristicRanking {
		out = p.heuristicRanking(out)
	}
	if level >= LevelAggressiveTrim {
		out = p.aggressiveTrim(out)
	}
	return out
}

func cloneVariables(vars []domain.CSPVariable) []domain.CSPVariable {
	out := make([]domain.CSPVariable, len(vars))
	for i, v := range vars {
		domainCopy := make([]domain.CSPValue, len(v.Domain))
		copy(domainCopy, v.Domain)
		out[i] = domain.CSPVariable{StudentID: v.StudentID, Occurrence: v.Occurrence, Config: v.Config, Domain: domainCopy}
	}
	return out
}

// L1: drop values that fail the Availability hard constraint. The
// result is a pure function of (teacher, single student), so it is the
// only level safe to memoize across separate Reduce calls.
func (p *Preprocessor) availabilityFilter(vars []domain.CSPVariable) []domain.CSPVariable {
	avail := domain.NewAvailabilityConstraint()
	teacherHash := TeacherFingerprint(p.teacher)
	for i := range vars {
		var contextHash uint64
		if p.domainCache != nil {
			contextHash = combineFingerprints(teacherHash, StudentFingerprint(vars[i].Config))
			if cached, ok := p.domainCache.Get(vars[i].StudentID, contextHash); ok {
				vars[i].Domain = append([]domain.CSPValue(nil), cached...)
				continue
			}
		}

		kept := vars[i].Domain[:0]
		for _, v := range vars[i].Domain {
			assignment := v.ToAssignment(vars[i].StudentID)
			ctx := domain.EvalContext{Teacher: p.teacher.Availability, Student: vars[i].Config}
			if avail.Evaluate(assignment, ctx) {
				kept = append(kept, v)
			}
		}
		vars[i].Domain = kept

		if p.domainCache != nil {
			p.domainCache.Put(vars[i].StudentID, contextHash, append([]domain.CSPValue(nil), kept...))
		}
	}
	return vars
}

// combineFingerprints folds a teacher and student fingerprint into the
// single 64-bit context hash DomainCache keys on.
func combineFingerprints(teacherHash, studentHash string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(teacherHash))
	h.Write([]byte{0})
	h.Write([]byte(studentHash))
	return h.Sum64()
}

// L2: drop a value if pinning it would empty another student's domain.
func (p *Preprocessor) mutualExclusion(vars []domain.CSPVariable, rounds int) []domain.CSPVariable {
	for round := 0; round < rounds; round++ {
		changed := false
		for i := range vars {
			kept := vars[i].Domain[:0]
			for _, v := range vars[i].Domain {
				if p.wouldEmptyAnotherDomain(vars, i, v) {
					changed = true
					continue
				}
				kept = append(kept, v)
			}
			vars[i].Domain = kept
		}
		if !changed {
			break
		}
	}
	return vars
}

// wouldEmptyAnotherDomain reports whether pinning value v for
// variable i removes every remaining value from some other variable's
// domain (time-overlap conflict, same day, different student).
func (p *Preprocessor) wouldEmptyAnotherDomain(vars []domain.CSPVariable, i int, v domain.CSPValue) bool {
	interval := v.Interval()
	for j := range vars {
		if j == i {
			continue
		}
		survives := false
		for _, other := range vars[j].Domain {
			if other.Day != v.Day || !domain.Overlaps(interval, other.Interval()) {
				survives = true
				break
			}
		}
		if !survives && len(vars[j].Domain) > 0 {
			return true
		}
	}
	return false
}

// L3: iterate L2-style deletions until fixpoint or the iteration cap.
func (p *Preprocessor) propagate(vars []domain.CSPVariable) []domain.CSPVariable {
	return p.mutualExclusion(vars, propagationIterationCap)
}

// L4: score-and-rank values, keep the top 70% per student (floor of 10).
func (p *Preprocessor) heuristicRanking(vars []domain.CSPVariable) []domain.CSPVariable {
	for i := range vars {
		d := vars[i].Domain
		sort.SliceStable(d, func(a, b int) bool { return d[a].Cost < d[b].Cost })

		keep := int(float64(len(d)) * 0.7)
		if keep < 10 {
			keep = 10
		}
		if keep > len(d) {
			keep = len(d)
		}
		vars[i].Domain = append([]domain.CSPValue(nil), d[:keep]...)
	}
	return vars
}

// L5: cap any student's domain at 1.5x the population mean domain size.
func (p *Preprocessor) aggressiveTrim(vars []domain.CSPVariable) []domain.CSPVariable {
	if len(vars) == 0 {
		return vars
	}
	total := 0
	for _, v := range vars {
		total += len(v.Domain)
	}
	mean := float64(total) / float64(len(vars))
	cap := int(mean * 1.5)

	for i := range vars {
		if cap > 0 && len(vars[i].Domain) > cap {
			d := vars[i].Domain
			sort.SliceStable(d, func(a, b int) bool { return d[a].Cost < d[b].Cost })
			vars[i].Domain = append([]domain.CSPValue(nil), d[:cap]...)
		}
	}
	return vars
}
