package pyexec

import "strings"

// debianVercmp implements spec §4.I's "Debian-style component
// comparison": alternating runs of digits and non-digits are compared
// in turn, non-digit runs lexicographically and digit runs numerically
// (leading zeros ignored), returning -1/0/1 the way bb.utils.vercmp does.
func debianVercmp(a, b string) int {
	ai, bi := 0, 0
	for ai < len(a) || bi < len(b) {
		aStart := ai
		for ai < len(a) && !isDigitByte(a[ai]) {
			ai++
		}
		bStart := bi
		for bi < len(b) && !isDigitByte(b[bi]) {
			bi++
		}
		if as, bs := a[aStart:ai], b[bStart:bi]; as != bs {
			if as < bs {
				return -1
			}
			return 1
		}

		aStart = ai
		for ai < len(a) && isDigitByte(a[ai]) {
			ai++
		}
		bStart = bi
		for bi < len(b) && isDigitByte(b[bi]) {
			bi++
		}
		an := strings.TrimLeft(a[aStart:ai], "0")
		bn := strings.TrimLeft(b[bStart:bi], "0")
		if len(an) != len(bn) {
			if len(an) < len(bn) {
				return -1
			}
			return 1
		}
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	}
	return 0
}

func isDigitByte(c byte) bool { return c >= '0' && c <= '9' }
