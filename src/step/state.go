package step

import "time"

// Build is the shared mutable state of one image build. The workflow
// orchestrator creates it and passes it by reference into every step
// constructor. Execution is strictly sequential, so its maps need no
// locking; keys are step keys and each step only writes its own.
type Build struct {
	// Image is the target image reference ([registry/]name[:tag]).
	Image string

	// UserParams holds build-wide user supplied parameters. Steps opt
	// into them through Descriptor.ArgsFromUserParams.
	UserParams map[string]any

	// Runtime values filled in as the build progresses. Plans refer
	// to them through the reserved placeholder tokens.
	SourcePath     string
	DockerfilePath string
	ImageID        string

	// Per-phase result maps, keyed by step key.
	InputResults      map[string]any
	PreBuildResults   map[string]any
	BuildStepResults  map[string]any
	PrePublishResults map[string]any
	PostBuildResults  map[string]any
	ExitResults       map[string]any

	// BuildStepResult is the authoritative outcome of the build-step
	// phase, set by the runner when a candidate completes.
	BuildStepResult *BuildOutcome

	// Diagnostics, keyed by step key.
	Errors     map[string]string
	Timestamps map[string]time.Time
	Durations  map[string]time.Duration

	Canceled    bool
	StepFailed  bool
	BuildFailed bool
}

// NewBuild returns a Build with every map allocated.
func NewBuild() *Build {
	return &Build{
		UserParams:        map[string]any{},
		InputResults:      map[string]any{},
		PreBuildResults:   map[string]any{},
		BuildStepResults:  map[string]any{},
		PrePublishResults: map[string]any{},
		PostBuildResults:  map[string]any{},
		ExitResults:       map[string]any{},
		Errors:            map[string]string{},
		Timestamps:        map[string]time.Time{},
		Durations:         map[string]time.Duration{},
	}
}

// RecordStepError notes a hard step failure in the build error map.
func (b *Build) RecordStepError(key string, err error) {
	b.StepFailed = true
	if key != "" && err != nil {
		b.Errors[key] = err.Error()
	}
}

// Failed reports whether any aspect of the build has failed.
func (b *Build) Failed() bool { return b.BuildFailed || b.StepFailed }

// BuildOutcome is the result object produced by a build-step phase
// candidate. A candidate reports an unsuccessful build through
// FailReason rather than by returning an error, so the workflow can
// finish bookkeeping and run exit steps.
type BuildOutcome struct {
	ImageID    string
	FailReason string

	// Delegated marks a build performed by a remote builder on our
	// behalf; downstream steps skip local image handling.
	Delegated bool

	Logs []string
}

// Failed reports whether the build step failed.
func (o *BuildOutcome) Failed() bool { return o.FailReason != "" }
