package configfile

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/Azure/AppConfiguration-Sync/internal/kvs"
)

// Flatten turns a nested document into separator-joined keys. Arrays
// flatten by index. When maxDepth is positive, containers at that depth
// are kept whole as values. Empty containers are kept as values. Object
// keys are emitted in sorted order.
func Flatten(doc any, separator string, maxDepth int) ([]kvs.KeyValue, error) {
	switch doc.(type) {
	case nil:
		return nil, nil
	case map[string]any, []any:
	default:
		return nil, &ArgumentError{Message: fmt.Sprintf("configuration root must be an object, got %T", doc)}
	}

	var out []kvs.KeyValue
	flattenInto(&out, doc, "", separator, maxDepth, 1)
	return out, nil
}

func flattenInto(out *[]kvs.KeyValue, v any, prev, sep string, maxDepth, depth int) {
	emit := func(key string, child any) {
		if prev != "" {
			key = prev + sep + key
		}
		if isNonEmptyContainer(child) && (maxDepth <= 0 || depth < maxDepth) {
			flattenInto(out, child, key, sep, maxDepth, depth+1)
			return
		}
		*out = append(*out, kvs.KeyValue{Key: key, Value: child})
	}

	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			emit(k, val[k])
		}
	case []any:
		for i, child := range val {
			emit(strconv.Itoa(i), child)
		}
	}
}

func isNonEmptyContainer(v any) bool {
	switch val := v.(type) {
	case map[string]any:
		return len(val) > 0
	case []any:
		return len(val) > 0
	}
	return false
}
