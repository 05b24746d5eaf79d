// Package coverage decides whether a following-list scrape retrieved enough
// of the provider's reported total to be trusted.
package coverage

type Decision string

const (
	Accept            Decision = "accept"
	AcceptWithWarning Decision = "accept_with_warning"
	RequiresRetry     Decision = "requires_retry"
)

const (
	acceptThreshold  = 0.95
	warningThreshold = 0.90
)

type Report struct {
	Expected  int
	Retrieved int
	Ratio     float64
	Decision  Decision
	Shortfall int
}

// Verify computes the completeness of a retrieved identity set against the
// provider's expected count. Duplicate identities are counted once. An
// expected count of zero is treated as fully covered.
func Verify(expected int, retrieved []string) Report {
	seen := make(map[string]struct{}, len(retrieved))
	for _, id := range retrieved {
		seen[id] = struct{}{}
	}
	return verifyCount(expected, len(seen))
}

func verifyCount(expected, retrieved int) Report {
	r := Report{Expected: expected, Retrieved: retrieved}

	if expected <= 0 {
		r.Ratio = 1.0
		r.Decision = Accept
		return r
	}

	r.Ratio = float64(retrieved) / float64(expected)
	if shortfall := expected - retrieved; shortfall > 0 {
		r.Shortfall = shortfall
	}

	switch {
	case r.Ratio >= acceptThreshold:
		r.Decision = Accept
	case r.Ratio >= warningThreshold:
		r.Decision = AcceptWithWarning
	default:
		r.Decision = RequiresRetry
	}
	return r
}
