package mutate

// Scrub deep-clones a value with every field named MarkerKey removed,
// from every object and every element of every array. All other
// structure and values are preserved. Pure and total: it never fails.
func Scrub(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			if key == MarkerKey {
				continue
			}
			out[key] = Scrub(inner)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = Scrub(inner)
		}
		return out
	default:
		return v
	}
}

// containsMarker reports whether a marker key occurs anywhere in the
// value. Used to reject markers at positions the resolver never
// interpreted as relation values.
func containsMarker(value any) bool {
	switch v := value.(type) {
	case map[string]any:
		for key, inner := range v {
			if key == MarkerKey {
				return true
			}
			if containsMarker(inner) {
				return true
			}
		}
	case []any:
		for _, inner := range v {
			if containsMarker(inner) {
				return true
			}
		}
	}
	return false
}
