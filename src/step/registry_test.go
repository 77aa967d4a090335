package step

import (
	"context"
	"errors"
	"testing"
)

func noopFactory(key string) Factory {
	return func(b *Build, conf map[string]any) (Step, error) {
		return stubStep{key: key, fn: func(ctx context.Context) (any, error) {
			return nil, nil
		}}, nil
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	Register(Descriptor{Key: "registry_test_dup", New: noopFactory("registry_test_dup")})

	defer func() {
		if recover() == nil {
			t.Error("duplicate registration did not panic")
		}
	}()
	Register(Descriptor{Key: "registry_test_dup", New: noopFactory("registry_test_dup")})
}

func TestRegisterRejectsIncompleteDescriptors(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("registration without a factory did not panic")
		}
	}()
	Register(Descriptor{Key: "registry_test_incomplete"})
}

func TestNewRegistryIncludesBuiltins(t *testing.T) {
	Register(Descriptor{Key: "registry_test_builtin", New: noopFactory("registry_test_builtin")})

	reg := NewRegistry()
	if _, ok := reg.Lookup("registry_test_builtin"); !ok {
		t.Error("builtin step missing from registry")
	}
}

func TestNewRegistryExtraSourceShadowsBuiltin(t *testing.T) {
	Register(Descriptor{Key: "registry_test_shadow", New: noopFactory("builtin")})

	marker := errors.New("marker")
	reg := NewRegistry(func() ([]Descriptor, error) {
		return []Descriptor{{
			Key: "registry_test_shadow",
			New: func(b *Build, conf map[string]any) (Step, error) {
				return nil, marker
			},
		}}, nil
	})

	d, ok := reg.Lookup("registry_test_shadow")
	if !ok {
		t.Fatal("shadowed step missing")
	}
	if _, err := d.New(NewBuild(), nil); !errors.Is(err, marker) {
		t.Error("builtin was not shadowed by the extra source")
	}
}

func TestNewRegistryFailingSourceIsSkipped(t *testing.T) {
	reg := NewRegistry(
		func() ([]Descriptor, error) { return nil, errors.New("broken source") },
		func() ([]Descriptor, error) {
			return []Descriptor{{Key: "registry_test_survivor", New: noopFactory("registry_test_survivor")}}, nil
		},
	)
	if _, ok := reg.Lookup("registry_test_survivor"); !ok {
		t.Error("later source lost because an earlier one failed")
	}
}

func TestNewRegistryDuplicateWithinSourceSkipped(t *testing.T) {
	marker := errors.New("marker")
	reg := NewRegistry(func() ([]Descriptor, error) {
		return []Descriptor{
			{Key: "registry_test_within", New: func(b *Build, conf map[string]any) (Step, error) {
				return nil, marker
			}},
			{Key: "registry_test_within", New: noopFactory("registry_test_within")},
		}, nil
	})

	d, ok := reg.Lookup("registry_test_within")
	if !ok {
		t.Fatal("step missing")
	}
	// First registration within a source wins.
	if _, err := d.New(NewBuild(), nil); !errors.Is(err, marker) {
		t.Error("later duplicate replaced the first registration")
	}
}

func TestRegistryKeysSorted(t *testing.T) {
	reg := NewRegistry(func() ([]Descriptor, error) {
		return []Descriptor{
			{Key: "zz_registry_test", New: noopFactory("zz_registry_test")},
			{Key: "aa_registry_test", New: noopFactory("aa_registry_test")},
		}, nil
	})

	keys := reg.Keys()
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("keys not sorted: %v", keys)
		}
	}
}
