package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sofmeright/forgeline/src/config"
	"github.com/sofmeright/forgeline/src/step"
)

type stubStep struct {
	key string
	fn  func(ctx context.Context) (any, error)
}

func (s stubStep) Key() string { return s.key }

func (s stubStep) Run(ctx context.Context) (any, error) { return s.fn(ctx) }

func stepDesc(key string, critical bool, fn func(ctx context.Context) (any, error)) step.Descriptor {
	return step.Descriptor{
		Key:      key,
		Critical: critical,
		New: func(b *step.Build, conf map[string]any) (step.Step, error) {
			return stubStep{key: key, fn: fn}, nil
		},
	}
}

func newTestWorkflow(t *testing.T, phases config.Phases, descs ...step.Descriptor) *Workflow {
	t.Helper()
	cfg := &config.Config{
		Image:  "registry.example/app:1",
		Source: config.SourceConfig{Path: ".", Dockerfile: "Dockerfile"},
		Phases: phases,
	}
	reg := step.NewRegistry(func() ([]step.Descriptor, error) { return descs, nil })
	return New(cfg, reg)
}

func okOutcome(id string) func(ctx context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return &step.BuildOutcome{ImageID: id}, nil
	}
}

func TestRunHappyPathPropagatesImageID(t *testing.T) {
	postSawID := ""
	wf := newTestWorkflow(t,
		config.Phases{
			PreBuild:  []step.Request{{Name: "prep"}},
			BuildStep: []step.Request{{Name: "builder"}},
			PostBuild: []step.Request{{Name: "post"}},
		},
		stepDesc("prep", false, func(ctx context.Context) (any, error) { return "prepped", nil }),
		stepDesc("builder", false, okOutcome("sha256:abc")),
		step.Descriptor{
			Key: "post",
			New: func(b *step.Build, conf map[string]any) (step.Step, error) {
				return stubStep{key: "post", fn: func(ctx context.Context) (any, error) {
					postSawID = b.ImageID
					return nil, nil
				}}, nil
			},
		},
	)

	res, err := wf.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if wf.Build.ImageID != "sha256:abc" {
		t.Errorf("ImageID = %q", wf.Build.ImageID)
	}
	if postSawID != "sha256:abc" {
		t.Errorf("post-build step saw ImageID %q", postSawID)
	}
	if res["prep"] != "prepped" {
		t.Errorf("merged results missing prebuild output: %v", res)
	}
	if _, ok := res["builder"]; !ok {
		t.Errorf("merged results missing build outcome: %v", res)
	}
}

func TestRunExitAlwaysRunsAfterFailure(t *testing.T) {
	exitRan := false
	wf := newTestWorkflow(t,
		config.Phases{
			PreBuild: []step.Request{{Name: "vital"}},
			Exit:     []step.Request{{Name: "cleanup"}},
		},
		stepDesc("vital", true, func(ctx context.Context) (any, error) {
			return nil, errors.New("boom")
		}),
		stepDesc("cleanup", false, func(ctx context.Context) (any, error) {
			exitRan = true
			return nil, nil
		}),
	)

	_, err := wf.Run(context.Background())
	if err == nil {
		t.Fatal("Run() = nil, want prebuild error")
	}
	if !strings.Contains(err.Error(), "step 'vital' raised an exception: boom") {
		t.Errorf("error = %q", err)
	}
	if !exitRan {
		t.Error("exit step did not run after the failure")
	}
}

func TestRunFirstErrorWinsOverExitError(t *testing.T) {
	wf := newTestWorkflow(t,
		config.Phases{
			PreBuild: []step.Request{{Name: "vital"}},
			Exit:     []step.Request{{Name: "cleanup"}},
		},
		stepDesc("vital", true, func(ctx context.Context) (any, error) {
			return nil, errors.New("boom")
		}),
		stepDesc("cleanup", true, func(ctx context.Context) (any, error) {
			return nil, errors.New("cleanup also failed")
		}),
	)

	_, err := wf.Run(context.Background())
	if err == nil {
		t.Fatal("Run() = nil")
	}
	if strings.Contains(err.Error(), "cleanup also failed") {
		t.Errorf("exit error masked the original failure: %q", err)
	}
}

func TestRunExitErrorSurfacesAlone(t *testing.T) {
	wf := newTestWorkflow(t,
		config.Phases{
			BuildStep: []step.Request{{Name: "builder"}},
			Exit:      []step.Request{{Name: "cleanup"}},
		},
		stepDesc("builder", false, okOutcome("sha256:abc")),
		stepDesc("cleanup", true, func(ctx context.Context) (any, error) {
			return nil, errors.New("cleanup failed")
		}),
	)

	_, err := wf.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "cleanup failed") {
		t.Fatalf("Run() = %v, want the exit error", err)
	}
}

func TestRunBuildFailureSkipsLaterPhasesButRunsExit(t *testing.T) {
	publishRan := false
	exitRan := false
	wf := newTestWorkflow(t,
		config.Phases{
			BuildStep:  []step.Request{{Name: "builder"}},
			PrePublish: []step.Request{{Name: "publish"}},
			Exit:       []step.Request{{Name: "cleanup"}},
		},
		stepDesc("builder", false, func(ctx context.Context) (any, error) {
			return &step.BuildOutcome{FailReason: "compile error"}, nil
		}),
		stepDesc("publish", false, func(ctx context.Context) (any, error) {
			publishRan = true
			return nil, nil
		}),
		stepDesc("cleanup", false, func(ctx context.Context) (any, error) {
			exitRan = true
			return nil, nil
		}),
	)

	_, err := wf.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "build step failed: compile error") {
		t.Fatalf("Run() = %v", err)
	}
	if publishRan {
		t.Error("pre-publish ran after a failed build")
	}
	if !exitRan {
		t.Error("exit step did not run after a failed build")
	}
	if !wf.Build.BuildFailed {
		t.Error("BuildFailed not set")
	}
}

func TestRunCancellationSkipsToExit(t *testing.T) {
	builderRan := false
	exitRan := false
	wf := newTestWorkflow(t,
		config.Phases{
			PreBuild:  []step.Request{{Name: "gate"}},
			BuildStep: []step.Request{{Name: "builder"}},
			Exit:      []step.Request{{Name: "cleanup"}},
		},
		stepDesc("gate", false, func(ctx context.Context) (any, error) {
			return nil, step.ErrBuildCanceled
		}),
		stepDesc("builder", false, func(ctx context.Context) (any, error) {
			builderRan = true
			return &step.BuildOutcome{}, nil
		}),
		stepDesc("cleanup", false, func(ctx context.Context) (any, error) {
			exitRan = true
			return nil, nil
		}),
	)

	_, err := wf.Run(context.Background())
	if !errors.Is(err, step.ErrBuildCanceled) {
		t.Fatalf("Run() = %v, want ErrBuildCanceled", err)
	}
	if builderRan {
		t.Error("build step ran after cancellation")
	}
	if !exitRan {
		t.Error("exit step did not run after cancellation")
	}
	if !wf.Build.Canceled {
		t.Error("Canceled not set")
	}
}

func TestRunMissingBuildStepCandidateIsSkipped(t *testing.T) {
	wf := newTestWorkflow(t,
		config.Phases{
			BuildStep: []step.Request{{Name: "ghost"}, {Name: "builder"}},
		},
		stepDesc("builder", false, okOutcome("sha256:abc")),
	)

	if _, err := wf.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if wf.Build.ImageID != "sha256:abc" {
		t.Errorf("ImageID = %q", wf.Build.ImageID)
	}
}

func TestNewInjectsSourceParams(t *testing.T) {
	cfg := &config.Config{
		Image: "registry.example/app:1",
		Source: config.SourceConfig{
			URI:        "https://git.example/app.git",
			Ref:        "main",
			Path:       "/tmp/src",
			Dockerfile: "Dockerfile",
		},
		UserParams: map[string]any{"team": "infra"},
	}
	wf := New(cfg, step.NewRegistry())

	if wf.Build.UserParams["git_uri"] != "https://git.example/app.git" {
		t.Errorf("git_uri = %v", wf.Build.UserParams["git_uri"])
	}
	if wf.Build.UserParams["git_ref"] != "main" {
		t.Errorf("git_ref = %v", wf.Build.UserParams["git_ref"])
	}
	if wf.Build.UserParams["team"] != "infra" {
		t.Errorf("team = %v", wf.Build.UserParams["team"])
	}
	if wf.Build.DockerfilePath != "/tmp/src/Dockerfile" {
		t.Errorf("DockerfilePath = %q", wf.Build.DockerfilePath)
	}
}
