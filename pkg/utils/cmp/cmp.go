package cmp

type BiPredicator[V any, U any] func(a V, b U) bool

// check a == b, element-wise and in order.
func SliceEq[T comparable](a []T, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// check a == b in order, in context of comparator
func SliceEqWith[V any, U any](a []V, b []U, comparator BiPredicator[V, U]) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !comparator(a[i], b[i]) {
			return false
		}
	}
	return true
}

// check a and b have same contents, ignoring order.
func SliceContentEq[T comparable](a []T, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	rest := make([]T, len(b))
	copy(rest, b)

next:
	for _, va := range a {
		for i, vb := range rest {
			if va == vb {
				rest = append(rest[:i], rest[i+1:]...)
				continue next
			}
		}
		return false
	}
	return true
}

// check a == b
func MapEq[K comparable, V comparable](a map[K]V, b map[K]V) bool {
	if len(a) != len(b) {
		return false
	}
	for ka, va := range a {
		vb, ok := b[ka]
		if !ok || vb != va {
			return false
		}
	}
	return true
}

// check a == b, in context of comparator
func MapEqWith[K comparable, V any, U any](a map[K]V, b map[K]U, comparator BiPredicator[V, U]) bool {
	if len(a) != len(b) {
		return false
	}
	for ka, va := range a {
		vb, ok := b[ka]
		if !ok || !comparator(va, vb) {
			return false
		}
	}
	return true
}
