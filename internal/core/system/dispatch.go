package system

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/access"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/worker"
)

// DispatchState is the per-system lifecycle within one pass.
type DispatchState int

const (
	Idle DispatchState = iota
	Dispatching
	Dispatched
	Blocked
)

func (s DispatchState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dispatching:
		return "dispatching"
	case Dispatched:
		return "dispatched"
	case Blocked:
		return "blocked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the result of one dispatch attempt. When Blocked, Failed is the
// claim that could not be granted and Err says why; the Entry is untouched
// and may be retried. A Blocked outcome whose Err is not retryable is a
// programming error.
type Outcome struct {
	State  DispatchState
	Job    *Job
	Failed *access.Access
	Err    error
}

// Job is a dispatched system: its data is extracted and its guards are held.
// run captures only the extracted data, so Execute may be called on any goroutine.
type Job struct {
	entry   *Entry
	access  *access.Access
	guards  ecs.Guards
	run     func() error
	inline  bool
	elapsed time.Duration
}

func (j *Job) Entry() *Entry          { return j.entry }
func (j *Job) Access() *access.Access { return j.access }
func (j *Job) Guards() ecs.Guards     { return j.guards }
func (j *Job) Inline() bool           { return j.inline }

// body is what a worker executes. It records elapsed time on the job; the
// scheduler reads it only after receiving the outcome.
func (j *Job) body() error {
	start := time.Now()
	err := j.run()
	j.elapsed = time.Since(start)
	return err
}

// Execute runs the system body, converting a panic into a worker.PanicError.
func (j *Job) Execute() Result {
	err, perr := worker.Protect(j.body)
	if perr != nil {
		return Result{Job: j, Err: perr}
	}
	return Result{Job: j, Err: err}
}

// Result is a finished job. It still carries the guards; nothing is released
// until Consume is called on the scheduling goroutine.
type Result struct {
	Job *Job
	Err error
}

// Consume hands every guard back to its slot and records run statistics.
// A guard mismatch is fatal; Err from the body is returned alongside it.
func (r Result) Consume() error {
	j := r.Job
	var err error
	if herr := j.guards.HandBack(); herr != nil {
		err = fmt.Errorf("release %s: %w", j.entry.Name(), herr)
	}
	j.guards = nil
	j.entry.Runs++
	j.entry.LastRun = j.elapsed
	if r.Err != nil {
		var perr *worker.PanicError
		if errors.As(r.Err, &perr) {
			err = multierr.Append(err, fmt.Errorf("system %s: %w", j.entry.Name(), r.Err))
		} else {
			err = multierr.Append(err, fmt.Errorf("system %s: %w: %w", j.entry.Name(), ErrSystemFailed, r.Err))
		}
	}
	return err
}

// Dispatch tries to admit e against the in-flight accumulator and acquire its
// data. On success the accumulator already includes e's access; on any
// failure the accumulator and the world are left as they were.
func Dispatch(e *Entry, acc *access.Access, w *ecs.World, dt time.Duration) Outcome {
	decl := e.sys.Access()
	if err := acc.TryCombine(decl); err != nil {
		return Outcome{State: Blocked, Failed: conflictClaim(err, decl), Err: err}
	}

	run, guards, failed, err := e.sys.prepare(w, dt)
	if err != nil {
		acc.Remove(decl)
		if failed == nil {
			failed = decl
		}
		if errors.Is(err, ecs.ErrReacquired) {
			// One declaration cannot grant the same slot twice; retrying never helps.
			err = fmt.Errorf("%w: %w", ErrUndeclaredAccess, err)
		}
		return Outcome{State: Blocked, Failed: failed, Err: fmt.Errorf("dispatch %s: %w", e.Name(), err)}
	}

	held, err := guards.Access()
	if err != nil || !decl.Covers(held) {
		herr := guards.HandBack()
		acc.Remove(decl)
		if err == nil {
			err = fmt.Errorf("dispatch %s: acquired %s, declared %s: %w", e.Name(), held, decl, ErrUndeclaredAccess)
		}
		return Outcome{State: Blocked, Failed: held, Err: multierr.Append(err, herr)}
	}

	return Outcome{
		State: Dispatched,
		Job: &Job{
			entry:  e,
			access: decl,
			guards: guards,
			run:    run,
			inline: e.sys.inline(),
		},
	}
}

func conflictClaim(err error, decl *access.Access) *access.Access {
	var ce *access.ConflictError
	if errors.As(err, &ce) && !ce.All {
		return access.Single(ce.Type, ce.Requested)
	}
	return decl
}
