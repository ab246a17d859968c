package executor

// DeepMerge returns a new map holding base with override applied on top.
// Later keys win; when both sides hold a mapping under the same key the two
// mappings are merged recursively instead of replaced. Neither input is
// modified and the result shares no nested maps with them.
func DeepMerge(base, override map[string]any) map[string]any {
	merged := deepCopy(base)
	for k, v := range override {
		src, srcIsMap := asMap(v)
		dst, dstIsMap := asMap(merged[k])
		if srcIsMap && dstIsMap {
			merged[k] = DeepMerge(dst, src)
			continue
		}
		if srcIsMap {
			merged[k] = deepCopy(src)
			continue
		}
		merged[k] = v
	}
	return merged
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := asMap(v); ok {
			out[k] = deepCopy(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// asMap accepts both map[string]any and the map[any]any some decoders produce
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	}
	return nil, false
}
