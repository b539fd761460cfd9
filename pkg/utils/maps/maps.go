package maps

// Clone returns a shallow copy of m. A nil map yields an empty map.
func Clone[K comparable, V any](m map[K]V) map[K]V {
	ret := make(map[K]V, len(m))
	for k, v := range m {
		ret[k] = v
	}
	return ret
}

// Overlay returns a new map holding base's entries with over's entries
// laid on top of them. Keys missing from over keep their base value.
//
// Neither base nor over is modified.
func Overlay[K comparable, V any](base map[K]V, over map[K]V) map[K]V {
	ret := Clone(base)
	for k, v := range over {
		ret[k] = v
	}
	return ret
}

// Keys returns the keys of m in unspecified order.
func Keys[K comparable, V any](m map[K]V) []K {
	ret := make([]K, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	return ret
}
