package mutate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrubRemovesMarkersEverywhere(t *testing.T) {
	in := map[string]any{
		"apiAction": "create",
		"title":     "hello",
		"nested": map[string]any{
			"apiAction": "update",
			"deep":      []any{map[string]any{"apiAction": "delete", "id": 1}},
		},
	}
	out := Scrub(in).(map[string]any)
	assert.Equal(t, map[string]any{
		"title": "hello",
		"nested": map[string]any{
			"deep": []any{map[string]any{"id": 1}},
		},
	}, out)
	// Input untouched.
	assert.Contains(t, in, "apiAction")
}

func TestScrubLeavesScalarsAlone(t *testing.T) {
	assert.Equal(t, 42, Scrub(42))
	assert.Equal(t, "x", Scrub("x"))
	assert.Nil(t, Scrub(nil))
}

func TestContainsMarker(t *testing.T) {
	assert.True(t, containsMarker(map[string]any{"apiAction": "create"}))
	assert.True(t, containsMarker([]any{map[string]any{"a": map[string]any{"apiAction": "x"}}}))
	assert.False(t, containsMarker(map[string]any{"action": "create"}))
	assert.False(t, containsMarker("apiAction"))
}

func TestCloneIsDeep(t *testing.T) {
	in := map[string]any{"list": []any{map[string]any{"k": "v"}}}
	out := cloneMap(in)
	out["list"].([]any)[0].(map[string]any)["k"] = "changed"
	assert.Equal(t, "v", in["list"].([]any)[0].(map[string]any)["k"])
}
