package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockHeld      = errors.New("lock already held")

	// Detection errors. Malformed input fails the current market only.
	ErrMalformedQuote = errors.New("malformed quote")
	ErrUnknownSource  = errors.New("source missing from reliability table")
	ErrStaleQuotes    = errors.New("quotes older than freshness window")

	// Allocation rejections. These identify the gate that failed; they are
	// expected outcomes, not faults.
	ErrUnknownBook      = errors.New("book missing from position snapshot")
	ErrUnreliableBook   = errors.New("book below minimum reliability score")
	ErrInvalidBook      = errors.New("book bet-size limits are inconsistent")
	ErrBelowMinProfit   = errors.New("profit below configured minimum")
	ErrNoViableStake    = errors.New("all stakes eliminated by constraints")
	ErrInfeasibleBounds = errors.New("stake bounds are mutually infeasible")
)
