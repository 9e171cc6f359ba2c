package engine

import "errors"

// Error kinds the engine returns. InsufficientCash, InsufficientShares and
// InsufficientLookback (the latter lives in package candlebuffer) are
// ordinary conditions a strategy must handle, not fatal engine bugs;
// LookaheadViolation and InvalidOrder indicate a strategy or caller bug.
// The engine returns all of these to the callback that caused them; a run
// aborts only when the callback returns the error, and the engine does not
// stop a run whose callback swallows one. DataSourceError is
// datasource.ErrDataSource, passed through from buffer/source calls
// (possibly wrapped with context) and matchable with errors.Is.
var (
	ErrInvalidConfig      = errors.New("engine: invalid configuration")
	ErrLookaheadViolation = errors.New("engine: getCandles requested a timestamp after the current bar")
	ErrInsufficientCash   = errors.New("engine: insufficient cash")
	ErrInsufficientShares = errors.New("engine: insufficient shares")
	ErrInvalidOrder       = errors.New("engine: invalid order")
)
