/*
Package bitint provides the bit manipulation helpers the fixed-point transform
needs: power-of-two checks for the transform size, the stage count (log2) and
the bit-reversed permutation used to reorder input before the butterflies.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	// Verify transform size is valid
	isValid := bitint.IsPowerOfTwo(512)

	// Number of radix-2 stages for a 512-point transform
	stages := bitint.Log2(512) // Returns 9

	// Position of input sample 1 after bit reversal over 9 bits
	j := bitint.ReverseBits(1, 9) // Returns 256
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
// The subtraction (size-1) keeps exact powers of two unchanged:
// bits.Len(7) = 3 and 1<<3 = 8, whereas bits.Len(8) = 4 would double it.
//
// Examples:
//
//	Input  Output  Explanation
//	4      4      Already power of 2 (preserved)
//	5      8      Next power after 5
//	0      1      Handle zero case
//	-1     1      Handle negative case
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// Powers of 2 have exactly one bit set, so n & (n-1) clears it to zero.
//
// Examples:
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
//	-8     false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns floor(log2(n)) for n > 0 and -1 otherwise. For a power of two
// this is the number of radix-2 stages of an n-point transform.
func Log2(n int) int {
	if n <= 0 {
		return -1
	}
	return bits.Len(uint(n)) - 1
}

// ReverseBits reverses the lowest width bits of x. Bits above width are
// discarded.
func ReverseBits(x uint, width int) uint {
	if width <= 0 {
		return 0
	}
	return bits.Reverse(x) >> (bits.UintSize - width)
}
