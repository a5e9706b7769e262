package component

import "reflect"

// shallowEqual compares two maps one level deep. Reference types (maps,
// slices, pointers, funcs, channels) compare by identity, not content.
func shallowEqual[M ~map[string]any](a, b M) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !sameValue(av, bv) {
			return false
		}
	}
	return true
}

func sameValue(x, y any) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	vx, vy := reflect.ValueOf(x), reflect.ValueOf(y)
	if vx.Type() != vy.Type() {
		return false
	}

	switch vx.Kind() {
	case reflect.Slice:
		return vx.Len() == vy.Len() && (vx.Len() == 0 || vx.Pointer() == vy.Pointer())
	case reflect.Map, reflect.Pointer, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return vx.Pointer() == vy.Pointer()
	}

	if vx.Type().Comparable() {
		return x == y
	}
	// Structs or arrays holding reference types have no identity of
	// their own.
	return reflect.DeepEqual(x, y)
}

func merge[M ~map[string]any](base, partial M) M {
	out := make(M, len(base)+len(partial))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

func clone[M ~map[string]any](m M) M {
	out := make(M, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
