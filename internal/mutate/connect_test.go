package mutate

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudapi/internal/schema"
)

func TestCanConnect(t *testing.T) {
	source := blogSource()

	tests := []struct {
		name      string
		entity    string
		candidate map[string]any
		want      bool
	}{
		{"id only", "Tag", map[string]any{"id": "t1"}, true},
		{"unique field only", "Tag", map[string]any{"label": "go"}, true},
		{"non-unique field only", "Tag", map[string]any{"color": "red"}, false},
		{"empty candidate", "Tag", map[string]any{}, false},
		{"two fields no marker", "Tag", map[string]any{"id": "t1", "color": "red"}, false},
		{"explicit connect marker", "Tag", map[string]any{"id": "t1", "color": "red", "apiAction": "connect"}, true},
		{"explicit create marker", "Tag", map[string]any{"id": "t1", "apiAction": "create"}, false},
		{"explicit update marker", "Tag", map[string]any{"id": "t1", "apiAction": "update"}, false},
		{"explicit delete marker", "Tag", map[string]any{"id": "t1", "apiAction": "delete"}, false},
		{"invalid marker", "Tag", map[string]any{"id": "t1", "apiAction": "bogus"}, false},
		{"unique field of other entity", "Category", map[string]any{"label": "go"}, false},
		{"unknown entity id", "Nope", map[string]any{"id": "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanConnect(source, tt.entity, tt.candidate))
		})
	}
}

// Connect minimality: over random field combinations, CanConnect holds
// iff the candidate has exactly one significant field that is the
// identity field or a declared unique one.
func TestCanConnectMinimality(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	fieldPool := []string{"id", "alpha", "beta", "gamma", "delta"}

	for trial := 0; trial < 200; trial++ {
		var unique []string
		for _, f := range fieldPool[1:] {
			if rng.Intn(2) == 0 {
				unique = append(unique, f)
			}
		}
		source := &stubSource{unique: map[string][]string{"Thing": unique}}
		uniqueSet := make(map[string]bool, len(unique))
		for _, f := range unique {
			uniqueSet[f] = true
		}

		candidate := map[string]any{}
		for _, f := range fieldPool {
			if rng.Intn(3) == 0 {
				candidate[f] = fmt.Sprintf("v%d", rng.Intn(10))
			}
		}

		want := false
		if len(candidate) == 1 {
			for f := range candidate {
				want = f == schema.IdentityField || uniqueSet[f]
			}
		}
		got := CanConnect(source, "Thing", candidate)
		require.Equalf(t, want, got, "candidate %v unique %v", candidate, unique)
	}
}

func TestIdentityPairPrefersID(t *testing.T) {
	source := blogSource()
	field, value, ok := identityPair(source, "Tag", map[string]any{"id": "t1", "label": "go"})
	require.True(t, ok)
	assert.Equal(t, "id", field)
	assert.Equal(t, "t1", value)
}

func TestIdentityPairDeclaredOrder(t *testing.T) {
	source := &stubSource{unique: map[string][]string{"Thing": {"first", "second"}}}
	field, value, ok := identityPair(source, "Thing", map[string]any{"second": "b", "first": "a"})
	require.True(t, ok)
	assert.Equal(t, "first", field)
	assert.Equal(t, "a", value)
}

func TestIdentityPairMissing(t *testing.T) {
	source := blogSource()
	_, _, ok := identityPair(source, "Comment", map[string]any{"body": "x"})
	assert.False(t, ok)
}
