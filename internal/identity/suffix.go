package identity

import "strconv"

// maxSuffix bounds the suffix sequence to two-digit values.
const maxSuffix = 99

// Suffixes returns the ordered suffix sequence appended to a base handle when the
// bare handle is taken. Values contain none of the digits 0, 2 or 4, so the first
// seven entries are 1,3,5,6,7,8,9 followed by the two-digit combinations 11..99.
// The returned slice is a copy.
func Suffixes() []int {
	return append([]int(nil), suffixSequence...)
}

var suffixSequence = buildSuffixes(maxSuffix)

func buildSuffixes(upper int) []int {
	out := make([]int, 0, 56)
	for n := 1; n <= upper; n++ {
		if allowedDigits(n) {
			out = append(out, n)
		}
	}
	return out
}

func allowedDigits(n int) bool {
	for _, r := range strconv.Itoa(n) {
		switch r {
		case '0', '2', '4':
			return false
		}
	}
	return true
}
