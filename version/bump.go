package version

import "strings"

// BumpRevision increments the Debian revision of a version string. The
// result always sorts after v.
//
// Strategy:
//  1. If there is no revision (no hyphen), append "-1".
//  2. If the revision ends with digits, increment them ("1.0-1" -> "1.0-2",
//     "1.0-1.9" -> "1.0-1.10").
//  3. If it ends with a letter below 'z', bump that letter ("1.0-1a" -> "1.0-1b").
//  4. Otherwise append "+1" ("1.0-1z" -> "1.0-1z+1", "1.0-1~rc" -> "1.0-1~rc+1").
func BumpRevision(v string) string {
	idx := strings.LastIndex(v, "-")
	if idx == -1 {
		return v + "-1"
	}
	prefix, rev := v[:idx+1], v[idx+1:]
	return prefix + bumpRevision(rev)
}

func bumpRevision(rev string) string {
	if rev == "" {
		return "1"
	}
	if next := incrementTail(rev); next != "" && verrevcmp(next, rev) > 0 {
		return next
	}
	return rev + "+1"
}

// incrementTail bumps the trailing digit run or lowercase letter of rev,
// or returns "" when rev ends with neither.
func incrementTail(rev string) string {
	end := len(rev)
	start := end
	for start > 0 && isDigit(rev[start-1]) {
		start--
	}
	if start < end {
		return rev[:start] + incrementDigits(rev[start:end])
	}
	if c := rev[end-1]; c >= 'a' && c < 'z' {
		return rev[:end-1] + string(c+1)
	}
	return ""
}

// incrementDigits adds one to a decimal string of any length.
func incrementDigits(s string) string {
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < '9' {
			b[i]++
			return string(b)
		}
		b[i] = '0'
	}
	return "1" + string(b)
}

// Bump returns v with its revision bumped.
func (v Version) Bump() Version {
	v.Revision = bumpRevision(v.Revision)
	return v
}
