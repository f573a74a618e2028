package bencode

import "bytes"

// Equal reports whether a and b are structurally equal.
//
// Strings are compared byte by byte and dictionaries entry by entry,
// ignoring key order.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Integer:
		bv, ok := b.(Integer)
		return ok && av == bv

	case String:
		bv, ok := b.(String)
		return ok && bytes.Equal(av, bv)

	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true

	case *Dict:
		bv, ok := b.(*Dict)
		if !ok || av == nil || bv == nil {
			return ok && av == bv
		}
		if av.Len() != bv.Len() {
			return false
		}
		for _, key := range av.keys {
			other, found := bv.Get(key)
			if !found || !Equal(av.values[key], other) {
				return false
			}
		}
		return true

	default:
		return false
	}
}
