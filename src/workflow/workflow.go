// Package workflow sequences the build phases: input, pre-build,
// build-step, pre-publish, post-build, and exit.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/sofmeright/forgeline/src/config"
	"github.com/sofmeright/forgeline/src/step"
)

// Phase names a stage of the build pipeline.
type Phase string

const (
	PhaseInput      Phase = "input"
	PhasePreBuild   Phase = "prebuild"
	PhaseBuildStep  Phase = "buildstep"
	PhasePrePublish Phase = "prepublish"
	PhasePostBuild  Phase = "postbuild"
	PhaseExit       Phase = "exit"
)

// phaseSpec is one row of the phase table: the single source of truth
// for phase order and behavior.
type phaseSpec struct {
	name      Phase
	keepGoing bool
	buildStep bool
	results   func(*step.Build) map[string]any
}

// phases lists every phase in execution order. The exit phase is the
// last row and the only one with keepGoing; the orchestrator drives
// it separately so it runs even after an abort.
var phases = []phaseSpec{
	{name: PhaseInput, results: func(b *step.Build) map[string]any { return b.InputResults }},
	{name: PhasePreBuild, results: func(b *step.Build) map[string]any { return b.PreBuildResults }},
	{name: PhaseBuildStep, buildStep: true, results: func(b *step.Build) map[string]any { return b.BuildStepResults }},
	{name: PhasePrePublish, results: func(b *step.Build) map[string]any { return b.PrePublishResults }},
	{name: PhasePostBuild, results: func(b *step.Build) map[string]any { return b.PostBuildResults }},
	{name: PhaseExit, keepGoing: true, results: func(b *step.Build) map[string]any { return b.ExitResults }},
}

// Workflow drives one image build through the fixed phase order.
type Workflow struct {
	Build    *step.Build
	Registry *step.Registry
	Plans    map[Phase][]step.Request
}

// New assembles a workflow from configuration.
func New(cfg *config.Config, reg *step.Registry) *Workflow {
	b := step.NewBuild()
	b.Image = cfg.Image
	b.SourcePath = cfg.Source.Path
	b.DockerfilePath = filepath.Join(cfg.Source.Path, cfg.Source.Dockerfile)
	for k, v := range cfg.UserParams {
		b.UserParams[k] = v
	}
	if cfg.Source.URI != "" {
		b.UserParams["git_uri"] = cfg.Source.URI
		if cfg.Source.Ref != "" {
			b.UserParams["git_ref"] = cfg.Source.Ref
		}
	}
	return &Workflow{
		Build:    b,
		Registry: reg,
		Plans: map[Phase][]step.Request{
			PhaseInput:      cfg.Phases.Input,
			PhasePreBuild:   cfg.Phases.PreBuild,
			PhaseBuildStep:  cfg.Phases.BuildStep,
			PhasePrePublish: cfg.Phases.PrePublish,
			PhasePostBuild:  cfg.Phases.PostBuild,
			PhaseExit:       cfg.Phases.Exit,
		},
	}
}

// Run executes every phase in order. The exit phase always runs to
// completion, whatever happened before it; when both an earlier phase
// and the exit phase fail, the earlier error is the one returned and
// the exit error is only logged.
func (w *Workflow) Run(ctx context.Context) (map[string]any, error) {
	runErr := w.runUntilExit(ctx)

	exitErr := w.runPhase(ctx, phases[len(phases)-1])
	if exitErr != nil {
		log.Error().Err(exitErr).Msg("one or more exit steps failed")
	}

	if runErr != nil {
		return nil, runErr
	}
	if exitErr != nil {
		return nil, exitErr
	}
	return w.mergedResults(), nil
}

// runUntilExit drives every phase before exit, stopping at the first
// fatal error or failed build.
func (w *Workflow) runUntilExit(ctx context.Context) error {
	for _, ph := range phases[:len(phases)-1] {
		if err := w.runPhase(ctx, ph); err != nil {
			if errors.Is(err, step.ErrBuildCanceled) {
				log.Warn().Str("phase", string(ph.name)).Msg("build canceled, skipping to exit steps")
			} else {
				log.Error().Err(err).Str("phase", string(ph.name)).Msg("phase failed, skipping to exit steps")
			}
			return err
		}

		if ph.buildStep {
			res := w.Build.BuildStepResult
			if res == nil {
				continue
			}
			if res.Failed() {
				// The build itself failed. Remaining phases are
				// skipped; exit steps observe the failure through
				// the build state.
				return fmt.Errorf("build step failed: %s", res.FailReason)
			}
			w.Build.ImageID = res.ImageID
		}
	}
	return nil
}

func (w *Workflow) runPhase(ctx context.Context, ph phaseSpec) error {
	reqs := w.Plans[ph.name]
	if ph.buildStep {
		reqs = buildStepRequests(reqs)
	}
	log.Info().Str("phase", string(ph.name)).Int("steps", len(reqs)).Msg("running phase")

	r := step.NewRunner(w.Build, w.Registry, ph.results(w.Build))
	r.KeepGoing = ph.keepGoing
	r.BuildStepPhase = ph.buildStep
	_, err := r.Run(ctx, reqs)
	return err
}

// buildStepRequests normalizes build-step candidates: a missing
// candidate is skipped without error, and a raising candidate is
// always fatal.
func buildStepRequests(reqs []step.Request) []step.Request {
	no := false
	out := make([]step.Request, len(reqs))
	for i, q := range reqs {
		q.Required = &no
		q.AllowedToFail = &no
		out[i] = q
	}
	return out
}

// mergedResults unions every phase's result map. Keys are step keys,
// so phases never collide.
func (w *Workflow) mergedResults() map[string]any {
	merged := map[string]any{}
	for _, ph := range phases {
		for k, v := range ph.results(w.Build) {
			merged[k] = v
		}
	}
	return merged
}
