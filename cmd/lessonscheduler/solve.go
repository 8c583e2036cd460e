package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"

	"github.com/studiosoft/lessonscheduler/internal/scheduling/application"
	"github.com/studiosoft/lessonscheduler/internal/scheduling/domain"
	"github.com/studiosoft/lessonscheduler/internal/scheduling/infrastructure/persistence"
	"github.com/studiosoft/lessonscheduler/pkg/config"
)

// solveRequest is the JSON request document: a teacher configuration
// and the roster of students to schedule against it.
type solveRequest struct {
	Teacher  domain.TeacherConfig   `json:"teacher"`
	Students []domain.StudentConfig `json:"students"`
	StudioID string                 `json:"studio_id"`
}

func newSolveCommand(cfg *config.Config) *cobra.Command {
	var (
		inputPath         string
		useHeuristics     bool
		useConstraintProp bool
		enableLocalSearch bool
		incremental       bool
	)

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a scheduling request and print the resulting schedule as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := readRequest(inputPath)
			if err != nil {
				return fmt.Errorf("reading request: %w", err)
			}

			if problems := application.ValidateInputs(request.Teacher, request.Students); len(problems) > 0 {
				return fmt.Errorf("invalid request: %v", problems)
			}

			var store *persistence.SQLiteSolutionStore
			var prior *application.PriorRun
			if incremental && cfg.IsSQLite() {
				dbConn, err := sql.Open("sqlite", cfg.SQLitePath)
				if err != nil {
					return fmt.Errorf("opening sqlite store: %w", err)
				}
				defer dbConn.Close()

				if err := persistence.Migrate(cmd.Context(), dbConn); err != nil {
					return fmt.Errorf("migrating sqlite store: %w", err)
				}
				store = persistence.NewSQLiteSolutionStore(dbConn)

				if previous, err := store.LoadLatest(cmd.Context(), request.StudioID); err == nil {
					run := application.Snapshot(request.Teacher, request.Students, previous)
					prior = &run
				}
			}

			solver := application.NewSolver(nil).WithLogger(logger)
			solution, err := solver.Solve(request.Teacher, request.Students, application.SolveOptions{
				UseHeuristics:            useHeuristics,
				UseConstraintPropagation: useConstraintProp,
				EnableLocalSearch:        enableLocalSearch,
				Termination: application.TerminationOptions{
					MaxDuration:      cfg.MaxSolveDuration,
					MaxBacktracks:    cfg.MaxBacktracks,
					QualityThreshold: cfg.QualityThreshold,
				},
				Prior: prior,
				Now:   time.Now(),
			})
			if err != nil {
				return fmt.Errorf("solving: %w", err)
			}

			if store != nil {
				if err := store.Save(cmd.Context(), request.StudioID, solution); err != nil {
					logger.Warn("failed to persist solution", "error", err)
				}
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(solution)
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "-", "path to the request JSON file, or - for stdin")
	cmd.Flags().BoolVar(&useHeuristics, "heuristics", true, "use MRV/LCV variable and value ordering")
	cmd.Flags().BoolVar(&useConstraintProp, "propagate", false, "run an AC-3-style constraint propagation pre-pass")
	cmd.Flags().BoolVar(&enableLocalSearch, "local-search", false, "run simulated-annealing local search after backtracking")
	cmd.Flags().BoolVar(&incremental, "incremental", false, "reuse the studio's previous solution where students are unchanged")

	return cmd
}

func readRequest(path string) (solveRequest, error) {
	var reader *os.File
	if path == "-" || path == "" {
		reader = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return solveRequest{}, err
		}
		defer f.Close()
		reader = f
	}

	var request solveRequest
	if err := json.NewDecoder(reader).Decode(&request); err != nil {
		return solveRequest{}, err
	}
	return request, nil
}
