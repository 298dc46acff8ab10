package matching

import "strings"

// SharedSegments counts the leading path segments that pattern accepts
// before the first segment it rejects. Placeholders and wildcards accept
// any single segment; "**" ends the count. It is a ranking aid for
// diagnostics, not a match: a full match may still score below the
// segment count of the path.
func SharedSegments(pattern, path string) int {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	rs := strings.Split(strings.Trim(path, "/"), "/")

	n := 0
	for i := 0; i < len(ps) && i < len(rs); i++ {
		seg := ps[i]
		if seg == "**" {
			break
		}
		if seg != rs[i] && !strings.ContainsAny(seg, "{*?") {
			break
		}
		n++
	}
	return n
}
