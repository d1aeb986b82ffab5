// Package workflows runs deployment steps as go-taskflow graphs. Steps are
// chained in order and the first failure short-circuits the rest.
package workflows

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	flow "github.com/noneback/go-taskflow"
)

// StepState is reported to observers as steps progress
type StepState string

const (
	StepStarted   StepState = "started"
	StepCompleted StepState = "completed"
	StepFailed    StepState = "failed"
	StepSkipped   StepState = "skipped"
)

// Observer is told about every step transition
type Observer func(step string, state StepState, err error)

// StepFunc is the body of a step
type StepFunc func(ctx context.Context) error

// StepError wraps the error of the step that stopped the plan
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Plan is an ordered set of steps executed on a taskflow executor
type Plan struct {
	*flow.TaskFlow

	ctx      context.Context
	observer Observer
	steps    []string
	last     *flow.Task

	mu  sync.Mutex
	err error
}

func NewPlan(ctx context.Context, name string) *Plan {
	return &Plan{
		TaskFlow: flow.NewTaskFlow(name),
		ctx:      ctx,
	}
}

// Observe sets the step observer
func (p *Plan) Observe(o Observer) *Plan {
	p.observer = o
	return p
}

// Steps returns step names in execution order
func (p *Plan) Steps() []string {
	return p.steps
}

func (p *Plan) failed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err != nil || p.ctx.Err() != nil
}

func (p *Plan) fail(step string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = &StepError{Step: step, Err: err}
	}
}

func (p *Plan) notify(step string, state StepState, err error) {
	if p.observer != nil {
		p.observer(step, state, err)
	}
}

// guard wraps fn so it is skipped after an earlier failure and records its
// own failure
func (p *Plan) guard(name string, fn StepFunc) func() {
	return func() {
		if p.failed() {
			p.notify(name, StepSkipped, nil)
			return
		}

		p.notify(name, StepStarted, nil)
		start := time.Now()

		if err := fn(p.ctx); err != nil {
			log.Debug("Step failed", "step", name, "error", err)
			p.fail(name, err)
			p.notify(name, StepFailed, err)
			return
		}

		log.Debug("Step completed", "step", name, "duration", time.Since(start))
		p.notify(name, StepCompleted, nil)
	}
}

func (p *Plan) chain(task *flow.Task, name string) *flow.Task {
	if p.last != nil {
		p.last.Precede(task)
	}
	p.last = task
	p.steps = append(p.steps, name)
	return task
}

// Step appends a step that runs after every previous one
func (p *Plan) Step(name string, fn StepFunc) *flow.Task {
	return p.chain(p.NewTask(name, p.guard(name, fn)), name)
}

// Branch appends a step that picks between install and upgrade the way a
// Helm release does: check returns true when the target already exists
func (p *Plan) Branch(name string, check func(ctx context.Context) (bool, error), install, upgrade StepFunc) *flow.Task {
	task := p.NewSubflow(name, func(sf *flow.Subflow) {
		exists := false
		checkName := "check-" + name

		check := sf.NewTask(checkName, p.guard(checkName, func(ctx context.Context) error {
			var err error
			exists, err = check(ctx)
			return err
		}))

		cond := sf.NewCondition("branch-"+name, func() uint {
			if exists {
				return 1
			}
			return 0
		})
		check.Precede(cond)

		cond.Precede(
			sf.NewTask("install-"+name, p.guard("install-"+name, install)),
			sf.NewTask("upgrade-"+name, p.guard("upgrade-"+name, upgrade)),
		)
	})

	return p.chain(task, name)
}

// Run executes the plan and returns the first step error
func (p *Plan) Run() error {
	executor := flow.NewExecutor(10)
	executor.Run(p.TaskFlow).Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	return p.ctx.Err()
}
