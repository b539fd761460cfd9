package maps_test

import (
	"testing"

	"github.com/loomml/loom/pkg/utils/cmp"
	"github.com/loomml/loom/pkg/utils/maps"
)

func TestOverlay(t *testing.T) {
	t.Run("keys in over win, keys only in base survive", func(t *testing.T) {
		base := map[string]any{"test_size": 0.2, "shuffle": true}
		over := map[string]any{"test_size": 0.5}

		actual := maps.Overlay(base, over)

		expected := map[string]any{"test_size": 0.5, "shuffle": true}
		if !cmp.MapEq(actual, expected) {
			t.Errorf("unmatch: (actual, expected) = (%v, %v)", actual, expected)
		}
	})

	t.Run("neither input is modified", func(t *testing.T) {
		base := map[string]int{"a": 1}
		over := map[string]int{"a": 2, "b": 3}

		maps.Overlay(base, over)

		if base["a"] != 1 || len(base) != 1 {
			t.Errorf("base is modified: %v", base)
		}
		if over["a"] != 2 || over["b"] != 3 || len(over) != 2 {
			t.Errorf("over is modified: %v", over)
		}
	})

	t.Run("nil maps are tolerated", func(t *testing.T) {
		actual := maps.Overlay[string, int](nil, nil)
		if len(actual) != 0 {
			t.Errorf("expected empty map: %v", actual)
		}
	})
}

func TestClone(t *testing.T) {
	orig := map[string]int{"a": 1}
	cloned := maps.Clone(orig)
	cloned["a"] = 42

	if orig["a"] != 1 {
		t.Errorf("clone shares storage with original: %v", orig)
	}
}
