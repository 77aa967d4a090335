package step

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Source supplies step descriptors during registry construction. A
// source that fails only removes its own contributions.
type Source func() ([]Descriptor, error)

var (
	builtinMu sync.RWMutex
	builtin   = map[string]Descriptor{}
)

// Register adds a step to the builtin table.
// Called from init() in each step file.
func Register(d Descriptor) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	if d.Key == "" || d.New == nil {
		panic("step: registration needs a key and a factory")
	}
	if _, exists := builtin[d.Key]; exists {
		panic(fmt.Sprintf("step: duplicate registration: %s", d.Key))
	}
	builtin[d.Key] = d
}

// Builtin returns a source yielding a snapshot of the builtin table.
func Builtin() Source {
	return func() ([]Descriptor, error) {
		builtinMu.RLock()
		defer builtinMu.RUnlock()
		out := make([]Descriptor, 0, len(builtin))
		for _, d := range builtin {
			out = append(out, d)
		}
		return out, nil
	}
}

// Registry indexes the steps available to one build.
type Registry struct {
	steps map[string]Descriptor
}

// NewRegistry builds a registry from the builtin table plus any extra
// sources. Extra sources load in order and may shadow builtin keys
// (site-local replacements, test doubles). A source that fails to
// load is skipped with a warning; the rest of the registry still
// loads.
func NewRegistry(extra ...Source) *Registry {
	r := &Registry{steps: map[string]Descriptor{}}
	sources := append([]Source{Builtin()}, extra...)
	for i, src := range sources {
		descs, err := src()
		if err != nil {
			log.Warn().Err(err).Int("source", i).Msg("can't load step source, skipping it")
			continue
		}
		seen := map[string]bool{}
		for _, d := range descs {
			if d.Key == "" || d.New == nil {
				log.Warn().Int("source", i).Msg("step source yielded an incomplete descriptor, skipping it")
				continue
			}
			if seen[d.Key] {
				log.Warn().Str("step", d.Key).Int("source", i).Msg("duplicate key within step source, skipping it")
				continue
			}
			seen[d.Key] = true
			if _, shadowed := r.steps[d.Key]; shadowed {
				log.Debug().Str("step", d.Key).Msg("step shadows an earlier registration")
			}
			r.steps[d.Key] = d
		}
	}
	return r
}

// Lookup returns the descriptor registered under key.
func (r *Registry) Lookup(key string) (Descriptor, bool) {
	d, ok := r.steps[key]
	return d, ok
}

// Keys returns sorted keys of all registered steps.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.steps))
	for k := range r.steps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
