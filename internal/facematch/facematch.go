package facematch

import (
	"math"

	"github.com/example/face-attend/internal/faceencoder"
)

// DefaultTolerance is the largest embedding distance still treated as the
// same person. 0.6 is the conventional threshold for 128-d face embeddings.
const DefaultTolerance = 0.6

// Distance computes the Euclidean distance between two encodings.
// Mismatched or empty inputs yield +Inf so they can never match.
func Distance(a, b faceencoder.Encoding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Compare reports, for each known encoding, whether the probe is within
// tolerance. The result is aligned with the input order.
func Compare(known []faceencoder.Encoding, probe faceencoder.Encoding, tolerance float64) []bool {
	results := make([]bool, len(known))
	for i, enc := range known {
		results[i] = Distance(enc, probe) <= tolerance
	}
	return results
}

// BestMatch returns the index and distance of the known encoding closest to
// the probe within tolerance. Exact distance ties resolve to the earliest
// index, which keeps the outcome stable for the caller's enumeration order.
// ok is false when nothing is within tolerance.
func BestMatch(known []faceencoder.Encoding, probe faceencoder.Encoding, tolerance float64) (index int, distance float64, ok bool) {
	index = -1
	distance = math.Inf(1)
	for i, enc := range known {
		d := Distance(enc, probe)
		if d > tolerance {
			continue
		}
		if d < distance {
			index = i
			distance = d
		}
	}
	return index, distance, index >= 0
}
