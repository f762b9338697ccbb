package nedb

import (
	"strings"
)

// splitByte splits s at the first occurrence of sep, mirroring the
// two-value split idiom used throughout dotted-path handling below.
func splitByte(s string, sep byte) (string, string, bool) {
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}
