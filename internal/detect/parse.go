package detect

import "strconv"

// ParseOffset extracts the first signed decimal integer from line.
// Leading bytes that cannot start a number are skipped and anything after
// the digits is ignored. It reports false if the line holds no digits or
// the number does not fit in an int.
func ParseOffset(line string) (int, bool) {
	start := -1
	for i := 0; i < len(line); i++ {
		c := line[i]
		if isDigit(c) {
			start = i
			break
		}
		if c == '-' && i+1 < len(line) && isDigit(line[i+1]) {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}

	end := start
	if line[end] == '-' {
		end++
	}
	for end < len(line) && isDigit(line[end]) {
		end++
	}

	v, err := strconv.Atoi(line[start:end])
	if err != nil {
		return 0, false
	}
	return v, true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
