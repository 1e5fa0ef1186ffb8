package bridge

import "math"

// CopyCString implements the two-phase buffer query used by
// nyx_mobile_version and nyx_mobile_last_error. With an empty dst it writes
// nothing and returns len(s). Otherwise it copies at most len(dst)-1 bytes,
// NUL-terminates, and returns the number of bytes copied. A dst larger than
// math.MaxInt32 returns -1.
func CopyCString(dst []byte, s string) int {
	if len(dst) == 0 {
		return clampInt32(len(s))
	}
	if uint64(len(dst)) > math.MaxInt32 {
		return -1
	}
	n := copy(dst[:len(dst)-1], s)
	dst[n] = 0
	return n
}

func clampInt32(n int) int {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return n
}
