// Package steps holds the builtin build steps. Each file registers
// one step with the engine from init(); importing this package for its
// side effects makes the full builtin set available.
package steps
