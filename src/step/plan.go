package step

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Request is one entry in a phase's declarative plan.
type Request struct {
	Name string         `yaml:"name" toml:"name"`
	Args map[string]any `yaml:"args" toml:"args"`

	// Required defaults to true: requesting an unknown required step
	// is a fatal configuration error.
	Required *bool `yaml:"required" toml:"required"`

	// AllowedToFail overrides the step's registered tolerance.
	AllowedToFail *bool `yaml:"is_allowed_to_fail" toml:"is_allowed_to_fail"`
}

func (q Request) required() bool { return q.Required == nil || *q.Required }

// planned is a request bound to its registered descriptor.
type planned struct {
	name          string
	desc          Descriptor
	conf          map[string]any
	allowedToFail bool
}

// resolvePlan binds requests to registered steps, preserving request
// order. An unknown required step aborts resolution entirely, before
// anything executes; an unknown optional step is skipped with a
// warning.
func resolvePlan(reg *Registry, reqs []Request, onFailed func(key string, err error)) ([]planned, error) {
	plan := make([]planned, 0, len(reqs))
	for _, q := range reqs {
		desc, ok := reg.Lookup(q.Name)
		if !ok {
			if q.required() {
				err := &FailedError{Messages: []string{
					fmt.Sprintf("no such step: '%s', did you set the correct step type?", q.Name),
				}}
				if onFailed != nil {
					onFailed(q.Name, err)
				}
				log.Error().Str("step", q.Name).Msg("required step is not registered")
				return nil, err
			}
			log.Warn().Str("step", q.Name).Msg("step requested but not available")
			continue
		}
		allowed := !desc.Critical
		if q.AllowedToFail != nil {
			allowed = *q.AllowedToFail
		}
		plan = append(plan, planned{
			name:          q.Name,
			desc:          desc,
			conf:          q.Args,
			allowedToFail: allowed,
		})
	}
	return plan, nil
}
