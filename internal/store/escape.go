package store

import "strings"

// safePathPrefix renders s safe to embed directly in a SQL filter literal:
// backslashes are escaped, single quotes doubled, double quotes escaped,
// and any control character (<32 or ==127) is stripped outright. It is for
// literal interpolation only — a prefix bound as a query parameter must
// NOT be passed through this (the driver already escapes bound values;
// doing so again binds a mangled string that no longer matches the rows).
func safePathPrefix(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\'':
			b.WriteString("''")
		case r == '"':
			b.WriteString(`\"`)
		case r < 32 || r == 127:
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// escapeLikeWildcards backslash-escapes the LIKE metacharacters % and _ (and
// any literal backslash, so the escape character itself stays unambiguous)
// in a value that will be bound as a parameter to a LIKE predicate. Pair
// with "ESCAPE '\'" in the SQL so a prefix like "100%_done" matches itself
// literally instead of acting as wildcards.
func escapeLikeWildcards(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\', '%', '_':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
