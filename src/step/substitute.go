package step

// Reserved plan-argument tokens, replaced with live runtime values
// just before a step is constructed. Plans use them for values that
// don't exist until the build is underway. Matching is exact and
// limited to this closed table.
const (
	TokenDockerfilePath = "BUILD_DOCKERFILE_PATH"
	TokenSourcePath     = "BUILD_SOURCE_PATH"
	TokenImageID        = "BUILT_IMAGE_ID"
)

// placeholderValues maps each reserved token to its current runtime
// value.
func (b *Build) placeholderValues() map[string]string {
	return map[string]string{
		TokenDockerfilePath: b.DockerfilePath,
		TokenSourcePath:     b.SourcePath,
		TokenImageID:        b.ImageID,
	}
}

// substitute returns a deep copy of v with reserved tokens replaced,
// recursing through maps and slices at any depth. The input is never
// mutated.
func substitute(v any, repl map[string]string) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = substitute(e, repl)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = substitute(e, repl)
		}
		return out
	case string:
		if r, ok := repl[t]; ok {
			return r
		}
		return t
	default:
		return v
	}
}
