package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/logging"
)

// Default stage names.
const (
	StageScan    = "scan"
	StageCompile = "compile"
	StageMerge   = "merge"
)

// StageFunc runs one stage against the state of a single file.
type StageFunc func(ctx context.Context, st *State) error

// Stage is a named step of the pipeline. A stage runs only after every stage
// it depends on has completed in the same run.
type Stage struct {
	Name      string
	DependsOn []string
	Run       StageFunc
}

// Pipeline is an ordered list of stages.
type Pipeline struct {
	stages []Stage
	logger logging.Logger
}

// NewPipeline creates a pipeline from stages in execution order.
func NewPipeline(logger logging.Logger, stages ...Stage) (*Pipeline, error) {
	p := &Pipeline{logger: logging.OrNop(logger).WithComponent("pipeline")}
	for _, s := range stages {
		if err := p.Add(s); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Add appends a stage. Stage names must be unique.
func (p *Pipeline) Add(s Stage) error {
	if s.Name == "" || s.Run == nil {
		return errors.NewInternalError(errors.ErrCodeUnknownStage, "stage needs a name and a run function", nil)
	}
	for _, existing := range p.stages {
		if existing.Name == s.Name {
			return errors.NewInternalError(errors.ErrCodeDuplicateStage,
				fmt.Sprintf("stage %q registered twice", s.Name), nil)
		}
	}
	p.stages = append(p.stages, s)
	return nil
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Run executes every stage in order. The first failure stops the run and is
// returned as an *Error naming the stage.
func (p *Pipeline) Run(ctx context.Context, st *State) error {
	if st.completed == nil {
		st.completed = make(map[string]bool, len(p.stages))
	}
	if st.Durations == nil {
		st.Durations = make(map[string]time.Duration, len(p.stages))
	}

	for _, s := range p.stages {
		for _, dep := range s.DependsOn {
			if !st.completed[dep] {
				return stageError(st.File, s.Name, errors.NewStageDependencyUnmet(s.Name, dep).WithFile(st.File))
			}
		}
		if err := ctx.Err(); err != nil {
			return stageError(st.File, s.Name, err)
		}

		perf := logging.StartOperation(p.logger, s.Name)
		err := s.Run(ctx, st)
		if err != nil {
			st.Durations[s.Name] = perf.EndWithError(ctx, err)
			return stageError(st.File, s.Name, err)
		}
		st.Durations[s.Name] = perf.End(ctx, "file", st.File)
		st.completed[s.Name] = true
	}
	return nil
}

// Completed reports whether the named stage finished in this run.
func (st *State) Completed(stage string) bool {
	return st.completed[stage]
}
