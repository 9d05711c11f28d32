package ir

// ShallowEqual compares scalars by value and composites one level deep.
// Nested composites never compare equal under shallow equality.
func ShallowEqual(a, b Value) bool {
	switch av := a.(type) {
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !scalarEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !scalarEqual(v, other) {
				return false
			}
		}
		return true
	}
	return scalarEqual(a, b)
}

func scalarEqual(a, b Value) bool {
	if isNull(a) || isNull(b) {
		return isNull(a) && isNull(b)
	}
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	}
	return false
}

func isNull(v Value) bool {
	switch v.(type) {
	case nil, Null:
		return true
	}
	return false
}

// DeepEqual compares the canonical hashes of two values.
// A value that cannot be serialized is never equal to anything, which
// forces re-animation instead of an error.
func DeepEqual(a, b Value) bool {
	ha, err := ValueHash(a)
	if err != nil {
		return false
	}
	hb, err := ValueHash(b)
	if err != nil {
		return false
	}
	return ha == hb
}

// Equal dispatches to DeepEqual or ShallowEqual.
func Equal(a, b Value, deep bool) bool {
	if deep {
		return DeepEqual(a, b)
	}
	return ShallowEqual(a, b)
}
