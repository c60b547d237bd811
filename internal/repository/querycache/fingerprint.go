package querycache

import (
	"fmt"
	"strconv"
	"strings"
)

// fingerprintComponents bounds how many leading vector components feed the key.
const fingerprintComponents = 16

// Fingerprint derives the deterministic cache key for a query: the first 16
// vector components formatted to 4 decimal digits, comma-joined, with the
// requested topK appended after a colon. Exact-vector equality is neither
// cheap nor likely to recur; a fixed-width, fixed-precision prefix tolerates
// sub-precision jitter while keeping the key bounded. Queries that differ
// only beyond the 16th component collide; near-duplicates above the
// precision window miss. Both are accepted trade-offs, not bugs.
func Fingerprint(vector []float32, topK int) string {
	n := len(vector)
	if n > fingerprintComponents {
		n = fingerprintComponents
	}

	var b strings.Builder
	b.Grow(n*8 + 4)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%.4f", vector[i])
	}
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(topK))
	return b.String()
}
