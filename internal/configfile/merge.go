package configfile

// Merge deep-merges documents left to right into a new document. Objects
// merge key by key and arrays merge index by index; any other value from a
// later document replaces the earlier one. Inputs are not modified.
func Merge(docs ...any) any {
	var out any
	for _, d := range docs {
		out = mergeValue(out, d)
	}
	return out
}

func mergeValue(dst, src any) any {
	switch s := src.(type) {
	case map[string]any:
		d, _ := dst.(map[string]any)
		out := make(map[string]any, len(d)+len(s))
		for k, v := range d {
			out[k] = v
		}
		for k, v := range s {
			out[k] = mergeValue(out[k], v)
		}
		return out
	case []any:
		d, _ := dst.([]any)
		n := max(len(d), len(s))
		out := make([]any, n)
		copy(out, d)
		for i, v := range s {
			out[i] = mergeValue(out[i], v)
		}
		return out
	default:
		return src
	}
}
