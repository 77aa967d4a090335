package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "build.yml", `
image: registry.example/app:1
source:
  uri: https://git.example/app.git
  ref: main
  path: /tmp/src
  dockerfile: docker/Dockerfile
user_params:
  team: infra
phases:
  prebuild:
    - name: scan_secrets
      is_allowed_to_fail: false
      args:
        warn_only: true
  buildstep:
    - name: buildx
  exit:
    - name: status_badge
      required: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Image != "registry.example/app:1" {
		t.Errorf("Image = %q", cfg.Image)
	}
	if cfg.Source.Dockerfile != "docker/Dockerfile" {
		t.Errorf("Dockerfile = %q", cfg.Source.Dockerfile)
	}
	if cfg.UserParams["team"] != "infra" {
		t.Errorf("UserParams = %v", cfg.UserParams)
	}

	pre := cfg.Phases.PreBuild
	if len(pre) != 1 || pre[0].Name != "scan_secrets" {
		t.Fatalf("PreBuild = %+v", pre)
	}
	if pre[0].AllowedToFail == nil || *pre[0].AllowedToFail {
		t.Error("is_allowed_to_fail not decoded")
	}
	if pre[0].Args["warn_only"] != true {
		t.Errorf("Args = %v", pre[0].Args)
	}

	exit := cfg.Phases.Exit
	if len(exit) != 1 || exit[0].Required == nil || *exit[0].Required {
		t.Errorf("Exit = %+v", exit)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "build.toml", `
image = "registry.example/app:1"

[source]
path = "."
dockerfile = "Dockerfile"

[[phases.buildstep]]
name = "buildx"

[[phases.postbuild]]
name = "tag_and_push"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if len(cfg.Phases.BuildStep) != 1 || cfg.Phases.BuildStep[0].Name != "buildx" {
		t.Errorf("BuildStep = %+v", cfg.Phases.BuildStep)
	}
	if len(cfg.Phases.PostBuild) != 1 || cfg.Phases.PostBuild[0].Name != "tag_and_push" {
		t.Errorf("PostBuild = %+v", cfg.Phases.PostBuild)
	}
}

func TestLoadMissingDefaultFileGivesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Source.Path != "." || cfg.Source.Dockerfile != "Dockerfile" {
		t.Errorf("Source defaults = %+v", cfg.Source)
	}
	if len(cfg.Phases.BuildStep) != 1 || cfg.Phases.BuildStep[0].Name != "buildx" {
		t.Errorf("default build step = %+v", cfg.Phases.BuildStep)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("Load() = nil, want error for an explicit missing file")
	}
}

func TestLoadRejectsNamelessStep(t *testing.T) {
	path := writeConfig(t, "build.yml", `
phases:
  prebuild:
    - args:
        x: 1
`)
	if _, err := Load(path); err == nil {
		t.Error("Load() = nil, want validation error")
	}
}
