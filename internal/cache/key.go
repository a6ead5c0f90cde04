package cache

import "strings"

// Key is a structured query identifier: an operation name followed by its
// parameters, e.g. K("productReviews", productID). Invalidation matches by
// tuple prefix, so K("products") covers K("products") only, not
// K("productsByCategory", ...).
type Key []string

// K builds a key from its tuple parts.
func K(parts ...string) Key {
	return Key(parts)
}

func (k Key) String() string {
	return strings.Join(k, "/")
}

// HasPrefix reports whether k starts with the given tuple prefix,
// element-wise.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}

// Head returns the operation name, used as a bounded-cardinality metrics
// label.
func (k Key) Head() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}
