package engine

import (
	"fmt"
)

// DefaultMaxRounds is the default maximum number of rounds per stratum.
// A terminating program over finite inputs never needs this many; the
// limit exists to stop a misconfigured guard that invents values forever.
const DefaultMaxRounds = 10000

// RoundQuota counts the rounds of one stratum and enforces the limit.
//
// Each stratum gets its own RoundQuota. Check is called before every
// round, so at most limit rounds are evaluated.
type RoundQuota struct {
	stratum int
	limit   int
	current int
}

// NewRoundQuota creates a quota for the given stratum.
// A limit of zero or less means DefaultMaxRounds.
func NewRoundQuota(stratum, limit int) *RoundQuota {
	if limit <= 0 {
		limit = DefaultMaxRounds
	}
	return &RoundQuota{stratum: stratum, limit: limit}
}

// Check increments the round counter and validates it against the limit.
//
// Returns *RoundLimitError once the limit is exceeded.
func (q *RoundQuota) Check() error {
	q.current++
	if q.current > q.limit {
		return &RoundLimitError{
			Stratum: q.stratum,
			Rounds:  q.current,
			Limit:   q.limit,
		}
	}
	return nil
}

// Current returns the number of rounds started so far.
func (q *RoundQuota) Current() int {
	return q.current
}

// Limit returns the maximum number of rounds.
func (q *RoundQuota) Limit() int {
	return q.limit
}

// RoundLimitError is returned when a stratum does not converge within the
// round limit. The run is abandoned and no partial result is returned.
type RoundLimitError struct {
	Stratum int // Index of the stratum that did not converge
	Rounds  int // Rounds attempted
	Limit   int // Maximum allowed rounds
}

// Error implements the error interface.
func (e *RoundLimitError) Error() string {
	return fmt.Sprintf("stratum %d did not converge: %d rounds > %d limit",
		e.Stratum, e.Rounds, e.Limit)
}
