package catalogue

import "strings"

// Match reports whether name matches the wildcard pattern used throughout
// the catalogue namespace.
//
// The pattern grammar has exactly two metacharacters:
//
//	#  matches exactly one character
//	*  matches zero or more characters, consumed greedily up to the first
//	   occurrence of the next literal in the pattern
//
// Any other character matches itself. An empty pattern or "*" matches every
// name; an empty name matches only an empty (or all-*) pattern.
//
// The matcher deliberately does not backtrack: once a '*' has been resolved
// against the first occurrence of the following literal, later mismatches
// fail the whole match. This mirrors the host filing system's matcher, and
// round-trip equivalence with host utilities depends on it, so it must not
// be replaced by a general glob engine.
func Match(name, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	i := 0
	p := 0
	for p < len(pattern) {
		switch c := pattern[p]; c {
		case '#':
			if i >= len(name) {
				return false
			}
			i++
			p++
		case '*':
			p++
			for p < len(pattern) && pattern[p] == '*' {
				p++
			}
			if p == len(pattern) {
				// Trailing * consumes the rest of the name.
				return true
			}
			if pattern[p] == '#' {
				// '*' before '#' matches zero characters; the '#'s
				// consume their own input on the next iterations.
				continue
			}
			off := strings.IndexByte(name[i:], pattern[p])
			if off < 0 {
				return false
			}
			i += off
		default:
			if i >= len(name) || name[i] != c {
				return false
			}
			i++
			p++
		}
	}
	return i == len(name)
}
