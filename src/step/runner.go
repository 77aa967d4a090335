package step

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Bookkeeper records step timing diagnostics. Recording failures are
// logged and never affect the step outcome.
type Bookkeeper interface {
	RecordStart(key string, at time.Time) error
	RecordDuration(key string, d time.Duration) error
}

// buildBookkeeper records into the build's diagnostic maps.
type buildBookkeeper struct{ b *Build }

func (k buildBookkeeper) RecordStart(key string, at time.Time) error {
	k.b.Timestamps[key] = at
	return nil
}

func (k buildBookkeeper) RecordDuration(key string, d time.Duration) error {
	k.b.Durations[key] = d
	return nil
}

// Runner executes one phase's plan against a build.
type Runner struct {
	Build    *Build
	Registry *Registry

	// Results is the phase result map. Successful step values land
	// here under the step key; Run returns the same map so later
	// phases can read earlier outputs.
	Results map[string]any

	// KeepGoing makes hard failures accumulate instead of aborting
	// the phase. The exit phase runs with this set.
	KeepGoing bool

	// BuildStepPhase enables the build-step special cases: the first
	// candidate to complete wins, and the build result is reported
	// through a *BuildOutcome rather than an error.
	BuildStepPhase bool

	// Bookkeeper defaults to recording into the build's maps.
	Bookkeeper Bookkeeper

	// now is swappable for tests.
	now func() time.Time
}

// NewRunner returns a runner writing successful results into results.
func NewRunner(b *Build, reg *Registry, results map[string]any) *Runner {
	return &Runner{Build: b, Registry: reg, Results: results}
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeTolerated
	outcomeFatal
	outcomeCanceled
	outcomeSkipped
)

// outcome classifies one step invocation. The runner switches on the
// kind; failure carries the message retained for end-of-phase
// aggregation.
type outcome struct {
	kind    outcomeKind
	value   any
	err     error
	failure string
}

// Run resolves reqs against the registry and executes the plan in
// order. It returns the phase result map, or a *FailedError carrying
// every fatal failure message of the phase.
func (r *Runner) Run(ctx context.Context, reqs []Request) (map[string]any, error) {
	plan, err := resolvePlan(r.Registry, reqs, r.Build.RecordStepError)
	if err != nil {
		return nil, err
	}

	var failed []string
	buildStepDone := false

	for _, p := range plan {
		out := r.invoke(ctx, p)
		key := p.desc.Key

		switch out.kind {
		case outcomeSuccess:
			if !r.BuildStepPhase {
				r.Results[key] = out.value
				continue
			}
			res, ok := out.value.(*BuildOutcome)
			if !ok {
				msg := fmt.Sprintf("step '%s' did not return a build outcome", key)
				r.Build.RecordStepError(key, errors.New(msg))
				return nil, &FailedError{Messages: []string{msg}}
			}
			r.Results[key] = res
			r.Build.BuildStepResult = res
			if res.Failed() {
				log.Error().Str("step", key).Str("reason", res.FailReason).Msg("build step failed")
				r.Build.RecordStepError(key, errors.New(res.FailReason))
				r.Build.BuildFailed = true
			} else {
				log.Debug().Str("step", key).Msg("stopping after first successful build step")
			}
			buildStepDone = true

		case outcomeSkipped:
			log.Debug().Str("step", key).Msg("build step is not appropriate for this build")
			if !r.BuildStepPhase {
				msg := fmt.Sprintf("step '%s' raised an exception: %v", key, out.err)
				r.Build.RecordStepError(key, out.err)
				return nil, &FailedError{Messages: []string{msg}}
			}

		case outcomeCanceled:
			r.Build.Canceled = true
			if r.BuildStepPhase {
				log.Error().Str("step", key).Msg("build was canceled during the build step")
				r.Build.RecordStepError(key, out.err)
			} else {
				log.Warn().Str("step", key).Msg("build was canceled")
			}
			return nil, fmt.Errorf("step '%s': %w", key, ErrBuildCanceled)

		case outcomeTolerated:
			// A keep-going override does not erase a hard failure; it
			// still surfaces at phase end.
			if out.failure != "" {
				failed = append(failed, out.failure)
			}

		case outcomeFatal:
			return nil, &FailedError{Messages: []string{out.failure}}
		}

		if buildStepDone {
			break
		}
	}

	if len(failed) > 0 {
		return nil, &FailedError{Messages: failed}
	}

	if r.BuildStepPhase && !buildStepDone {
		err := errors.New("no appropriate build step")
		r.Build.RecordStepError("buildstep", err)
		return nil, &FailedError{Messages: []string{err.Error()}}
	}

	return r.Results, nil
}

// invoke prepares, constructs, times, and classifies one planned step.
func (r *Runner) invoke(ctx context.Context, p planned) outcome {
	key := p.desc.Key
	log.Debug().Str("step", p.name).Msg("running step")

	start := r.timeNow()
	r.recordStart(key, start)

	value, err := r.construct(ctx, p)

	r.recordDuration(key, r.timeNow().Sub(start))

	switch {
	case err == nil:
		return outcome{kind: outcomeSuccess, value: value}
	case errors.Is(err, ErrInappropriateBuildStep):
		return outcome{kind: outcomeSkipped, err: err}
	case errors.Is(err, ErrBuildCanceled):
		return outcome{kind: outcomeCanceled, err: err}
	}

	msg := fmt.Sprintf("step '%s' raised an exception: %v", key, err)
	if !p.allowedToFail {
		r.Build.RecordStepError(key, err)
	}
	if p.allowedToFail || r.KeepGoing {
		log.Warn().Str("step", key).Msg(msg)
		log.Info().Msg("error is not fatal, continuing")
		out := outcome{kind: outcomeTolerated, err: err}
		if !p.allowedToFail {
			out.failure = msg
		}
		return out
	}
	log.Error().Str("step", key).Msg(msg)
	return outcome{kind: outcomeFatal, err: err, failure: msg}
}

// construct assembles the step's conf, builds the instance, and runs
// it. A factory error counts as an execution failure of the step.
func (r *Runner) construct(ctx context.Context, p planned) (any, error) {
	st, err := p.desc.New(r.Build, r.stepConf(p))
	if err != nil {
		return nil, fmt.Errorf("constructing step: %w", err)
	}
	return st.Run(ctx)
}

// stepConf assembles the constructor args for one step: plan args
// merged with user-param derived args (mapped values win, they come
// from authoritative build-wide state), then placeholder substitution
// on a deep copy. The plan's own args map is never mutated.
func (r *Runner) stepConf(p planned) map[string]any {
	conf := make(map[string]any, len(p.conf))
	for k, v := range p.conf {
		conf[k] = v
	}
	if p.desc.ArgsFromUserParams != nil {
		for k, v := range p.desc.ArgsFromUserParams(r.Build.UserParams) {
			conf[k] = v
		}
	}
	return substitute(conf, r.Build.placeholderValues()).(map[string]any)
}

func (r *Runner) timeNow() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func (r *Runner) bookkeeper() Bookkeeper {
	if r.Bookkeeper != nil {
		return r.Bookkeeper
	}
	return buildBookkeeper{r.Build}
}

// recordStart and recordDuration shield execution from bookkeeping
// failures: timing is diagnostic only and must never mask the real
// outcome, so errors and panics are logged and swallowed here.
func (r *Runner) recordStart(key string, at time.Time) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("step", key).Interface("panic", p).Msg("failed to save step timestamp")
		}
	}()
	if err := r.bookkeeper().RecordStart(key, at); err != nil {
		log.Error().Err(err).Str("step", key).Msg("failed to save step timestamp")
	}
}

func (r *Runner) recordDuration(key string, d time.Duration) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("step", key).Interface("panic", p).Msg("failed to save step duration")
		}
	}()
	if err := r.bookkeeper().RecordDuration(key, d); err != nil {
		log.Error().Err(err).Str("step", key).Msg("failed to save step duration")
	}
	log.Debug().Str("step", key).Dur("duration", d).Msg("step finished")
}
