package version

import "github.com/cockroachdb/errors"

// Relation operators as used in package relationship fields.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-relationships.html#syntax-of-relationship-fields
const (
	OpStrictlyEarlier = "<<"
	OpEarlierOrEqual  = "<="
	OpExactlyEqual    = "="
	OpLaterOrEqual    = ">="
	OpStrictlyLater   = ">>"
)

// Satisfies reports whether v satisfies "op other". The obsolete operators
// "<" and ">" are read as "<=" and ">=", as dpkg does.
func (v Version) Satisfies(op string, other Version) (bool, error) {
	c := v.Compare(other)
	switch op {
	case OpStrictlyEarlier:
		return c < 0, nil
	case OpEarlierOrEqual, "<":
		return c <= 0, nil
	case OpExactlyEqual:
		return c == 0, nil
	case OpLaterOrEqual, ">":
		return c >= 0, nil
	case OpStrictlyLater:
		return c > 0, nil
	}
	return false, errors.Newf("unknown relation operator %q", op)
}
