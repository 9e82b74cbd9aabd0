package mutate

// Structural deep clone for the JSON-shaped trees the resolver works on
// (maps, slices, scalars). Cloning up front makes mutation-order bugs
// impossible: the caller's payload is never touched.

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		return cloneSlice(v)
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for key, value := range m {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneSlice(s []any) []any {
	if s == nil {
		return nil
	}
	out := make([]any, len(s))
	for i, value := range s {
		out[i] = cloneValue(value)
	}
	return out
}
