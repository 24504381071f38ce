// SPDX-License-Identifier: MIT
/*
Package bitint holds the power-of-two helpers used to size and check FFT
windows.

Usage:

	// Round a requested analysis window up to a usable FFT length
	windowSize := bitint.NextPowerOfTwo(5000) // Returns 8192

	// Verify a configured window size
	isValid := bitint.IsPowerOfTwo(windowSize)
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size. Sizes below 1
// return 1.
//
// Subtracting 1 first keeps exact powers of 2 unchanged:
//
//	Input  size-1  bits.Len  Output
//	8      0111    3         8
//	10     1001    4         16
//	1      0000    0         1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of 2 has
// exactly one bit set, so n & (n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
