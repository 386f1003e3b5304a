package healing

import (
	"bytes"
	"regexp"
)

// balanceBraces repairs brace imbalance with the smallest edit: extra
// closers are dropped right-to-left, missing closers are appended. The
// second return reports whether anything changed.
func balanceBraces(payload []byte) ([]byte, bool) {
	depth := 0
	var extraAt []int
	for i, c := range payload {
		switch c {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				extraAt = append(extraAt, i)
			} else {
				depth--
			}
		}
	}
	if len(extraAt) == 0 && depth == 0 {
		return payload, false
	}

	out := make([]byte, 0, len(payload)+depth)
	skip := make(map[int]bool, len(extraAt))
	for _, i := range extraAt {
		skip[i] = true
	}
	for i, c := range payload {
		if skip[i] {
			continue
		}
		out = append(out, c)
	}
	for i := 0; i < depth; i++ {
		out = append(out, '}')
	}
	return bytes.TrimRight(out, " \t"), true
}

var runawayLoopRe = regexp.MustCompile(`while\s*\(\s*(?:true|1)\s*\)|for\s*\(\s*;\s*;\s*\)`)

// boundLoops rewrites unbounded loop headers into a bounded guard so the
// patched payload can finish inside the sandbox deadline.
func boundLoops(payload []byte) ([]byte, bool) {
	if !runawayLoopRe.Match(payload) {
		return payload, false
	}
	patched := runawayLoopRe.ReplaceAll(payload, []byte("for (let _i = 0; _i < 1000; _i++)"))
	return patched, true
}
