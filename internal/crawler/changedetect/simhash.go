// Package changedetect fingerprints page text with a 64-bit SimHash and
// decides whether a fetched page is new, unchanged or updated relative to
// its stored version.
package changedetect

import (
	"crypto/md5"
	"encoding/binary"
	"math/bits"
	"strings"
)

// SimHash computes the 64-bit SimHash of text. Words are the
// whitespace-separated fields of the lower-cased text, weighted by their
// frequency. Empty text yields 0.
func SimHash(text string) uint64 {
	freq := make(map[uint64]int)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		freq[wordHash(w)]++
	}
	if len(freq) == 0 {
		return 0
	}

	var planes [64]int
	for h, weight := range freq {
		for i := 0; i < 64; i++ {
			if h>>uint(i)&1 == 1 {
				planes[i] += weight
			} else {
				planes[i] -= weight
			}
		}
	}

	var fp uint64
	for i, v := range planes {
		if v >= 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// wordHash reduces the MD5 digest of w to its low 64 bits.
func wordHash(w string) uint64 {
	sum := md5.Sum([]byte(w))
	return binary.BigEndian.Uint64(sum[8:])
}

// Hamming returns the number of differing bits between two fingerprints.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
