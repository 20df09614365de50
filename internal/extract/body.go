package extract

import "bytes"

// Body returns the text between the first '{' at or after start and its
// matching '}'. Braces inside strings and comments are counted like any
// other. A body that never closes is returned as "".
func Body(src []byte, start int) string {
	if start < 0 || start >= len(src) {
		return ""
	}
	open := bytes.IndexByte(src[start:], '{')
	if open < 0 {
		return ""
	}
	open += start

	depth := 1
	for pos := open + 1; pos < len(src); pos++ {
		switch src[pos] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return string(src[open+1 : pos])
			}
		}
	}
	return ""
}
