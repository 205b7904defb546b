package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/psd401/toolhub/internal/model"
)

// Store is the persistence surface the executor needs. *storage.DB
// satisfies it; tests provide an in-memory fake.
type Store interface {
	GetArchitectTool(ctx context.Context, id uuid.UUID) (model.ArchitectTool, error)
	ListInputFields(ctx context.Context, toolID uuid.UUID) ([]model.InputField, error)
	ListChainPrompts(ctx context.Context, toolID uuid.UUID) ([]model.ChainPrompt, error)
	MarkExecutionRunning(ctx context.Context, id uuid.UUID) error
	FinishExecution(ctx context.Context, id uuid.UUID, status model.ExecutionStatus, execErr *string) error
	InsertPromptResult(ctx context.Context, res model.PromptResult) (model.PromptResult, error)
}

// Executor runs tool executions to a terminal state.
type Executor struct {
	store       Store
	provider    ModelProvider
	logger      *slog.Logger
	maxParallel int
}

// New creates an Executor. maxParallel bounds concurrent model calls
// within a parallel group; values below 1 are treated as 1.
func New(store Store, provider ModelProvider, logger *slog.Logger, maxParallel int) *Executor {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Executor{store: store, provider: provider, logger: logger, maxParallel: maxParallel}
}

// stepResult is the in-memory outcome of one step within a run.
type stepResult struct {
	position int
	output   string
	failed   bool
}

// Run drives a pending execution to completed or failed. Each step gets a
// terminal prompt result row; steps depending (directly or transitively)
// on a failed step are recorded as DEPENDENCY_FAILED without being
// invoked. Terminal execution records never transition again; re-running
// a tool creates a new execution.
func (e *Executor) Run(ctx context.Context, exec model.ToolExecution) error {
	tool, err := e.store.GetArchitectTool(ctx, exec.ToolID)
	if err != nil {
		return e.fail(ctx, exec.ID, fmt.Errorf("load tool: %w", err))
	}
	fields, err := e.store.ListInputFields(ctx, exec.ToolID)
	if err != nil {
		return e.fail(ctx, exec.ID, fmt.Errorf("load input fields: %w", err))
	}
	prompts, err := e.store.ListChainPrompts(ctx, exec.ToolID)
	if err != nil {
		return e.fail(ctx, exec.ID, fmt.Errorf("load prompts: %w", err))
	}

	// Input validation failures terminate the execution before any step
	// runs; no prompt results are written.
	if err := validateInputs(fields, exec.InputValues); err != nil {
		return e.fail(ctx, exec.ID, err)
	}

	if err := e.store.MarkExecutionRunning(ctx, exec.ID); err != nil {
		return fmt.Errorf("executor: mark running: %w", err)
	}

	sort.Slice(prompts, func(i, j int) bool { return prompts[i].Position < prompts[j].Position })

	outputs := make(map[int]string)       // position -> completed output
	failedPositions := make(map[int]bool) // failed or skipped positions
	var failures []string

	for _, group := range groupSteps(tool, prompts) {
		var runnable []model.ChainPrompt
		for _, p := range group {
			if dep, blocked := failedDep(p, failedPositions); blocked {
				failedPositions[p.Position] = true
				e.recordSkipped(ctx, exec.ID, p, dep)
				continue
			}
			runnable = append(runnable, p)
		}

		for _, r := range e.runGroup(ctx, exec, runnable, outputs) {
			if r.failed {
				failedPositions[r.position] = true
			} else {
				outputs[r.position] = r.output
			}
		}
	}

	for _, p := range prompts {
		if failedPositions[p.Position] {
			failures = append(failures, fmt.Sprintf("%s (position %d)", p.Name, p.Position))
		}
	}

	if len(failures) > 0 {
		msg := "failed steps: " + strings.Join(failures, "; ")
		return e.store.FinishExecution(ctx, exec.ID, model.ExecutionFailed, &msg)
	}
	return e.store.FinishExecution(ctx, exec.ID, model.ExecutionCompleted, nil)
}

// fail terminates an execution without step results.
func (e *Executor) fail(ctx context.Context, id uuid.UUID, cause error) error {
	msg := cause.Error()
	e.logger.Warn("execution failed before any step ran", "execution_id", id, "error", cause)
	if err := e.store.FinishExecution(ctx, id, model.ExecutionFailed, &msg); err != nil {
		return fmt.Errorf("executor: finish execution: %w", err)
	}
	return nil
}

// groupSteps partitions prompts into execution waves. Sequential tools run
// one step per wave. Parallel tools wave by parallel_group tag; untagged
// steps run alone. Waves are ordered by the smallest position they contain.
func groupSteps(tool model.ArchitectTool, prompts []model.ChainPrompt) [][]model.ChainPrompt {
	if !tool.IsParallel {
		groups := make([][]model.ChainPrompt, len(prompts))
		for i, p := range prompts {
			groups[i] = []model.ChainPrompt{p}
		}
		return groups
	}

	type wave struct {
		minPos int
		steps  []model.ChainPrompt
	}
	byTag := make(map[int]*wave)
	var waves []*wave
	for _, p := range prompts {
		if p.ParallelGroup == nil {
			waves = append(waves, &wave{minPos: p.Position, steps: []model.ChainPrompt{p}})
			continue
		}
		w, ok := byTag[*p.ParallelGroup]
		if !ok {
			w = &wave{minPos: p.Position}
			byTag[*p.ParallelGroup] = w
			waves = append(waves, w)
		}
		w.steps = append(w.steps, p)
		if p.Position < w.minPos {
			w.minPos = p.Position
		}
	}

	sort.Slice(waves, func(i, j int) bool { return waves[i].minPos < waves[j].minPos })
	groups := make([][]model.ChainPrompt, len(waves))
	for i, w := range waves {
		groups[i] = w.steps
	}
	return groups
}

// failedDep returns a failed position this prompt depends on, if any.
func failedDep(p model.ChainPrompt, failed map[int]bool) (int, bool) {
	for _, dep := range stepDeps(p) {
		if failed[dep] {
			return dep, true
		}
	}
	return 0, false
}

// runGroup executes one wave of steps concurrently and returns their
// results. A failure in one step does not cancel its siblings: every step
// that starts runs to its own completion and is recorded.
func (e *Executor) runGroup(ctx context.Context, exec model.ToolExecution, steps []model.ChainPrompt, outputs map[int]string) []stepResult {
	if len(steps) == 0 {
		return nil
	}

	results := make([]stepResult, len(steps))
	var g errgroup.Group
	g.SetLimit(e.maxParallel)
	for i, p := range steps {
		g.Go(func() error {
			results[i] = e.runStep(ctx, exec, p, outputs)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runStep resolves a prompt's template, invokes the provider under the
// step's timeout, and records the terminal result row.
func (e *Executor) runStep(ctx context.Context, exec model.ToolExecution, prompt model.ChainPrompt, outputs map[int]string) stepResult {
	resolved, rendered := resolveStep(prompt, exec.InputValues, outputs)

	system := ""
	if prompt.SystemContext != nil {
		system = *prompt.SystemContext
	}

	started := time.Now().UTC()
	stepCtx, cancel := context.WithTimeout(ctx, prompt.Timeout())
	defer cancel()

	resp, err := e.provider.Complete(stepCtx, CompletionRequest{
		ModelID: prompt.ModelID,
		System:  system,
		Prompt:  rendered,
	})

	completed := time.Now().UTC()
	elapsed := completed.Sub(started).Milliseconds()

	res := model.PromptResult{
		ExecutionID:   exec.ID,
		PromptID:      prompt.ID,
		ResolvedInput: resolved,
		StartedAt:     &started,
		CompletedAt:   &completed,
		ElapsedMs:     &elapsed,
	}

	if err != nil {
		kind := model.ErrKindModelError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			kind = model.ErrKindTimeout
		}
		msg := err.Error()
		res.Status = model.ExecutionFailed
		res.Error = &msg
		res.ErrorKind = &kind
		e.logger.Warn("prompt step failed",
			"execution_id", exec.ID,
			"prompt", prompt.Name,
			"position", prompt.Position,
			"error_kind", kind,
			"error", err)
	} else {
		res.Status = model.ExecutionCompleted
		res.Output = resp.Output
	}

	e.persistResult(ctx, res, prompt)
	return stepResult{position: prompt.Position, output: res.Output, failed: err != nil}
}

// recordSkipped writes a DEPENDENCY_FAILED result for a step that never
// ran because an upstream step failed.
func (e *Executor) recordSkipped(ctx context.Context, execID uuid.UUID, prompt model.ChainPrompt, dep int) {
	kind := model.ErrKindDependencyFailed
	msg := fmt.Sprintf("dependency at position %d failed", dep)
	e.persistResult(ctx, model.PromptResult{
		ExecutionID: execID,
		PromptID:    prompt.ID,
		Status:      model.ExecutionFailed,
		Error:       &msg,
		ErrorKind:   &kind,
	}, prompt)
}

func (e *Executor) persistResult(ctx context.Context, res model.PromptResult, prompt model.ChainPrompt) {
	if _, err := e.store.InsertPromptResult(ctx, res); err != nil {
		e.logger.Error("failed to persist prompt result",
			"execution_id", res.ExecutionID,
			"prompt", prompt.Name,
			"error", err)
	}
}
