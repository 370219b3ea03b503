package services

import "errors"

// Ошибки сервисного слоя, общие для маппинга HTTP.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation: rejected before any write.
	ErrValidationFailed    = errors.New("validation failed")
	ErrInvalidGameWinner   = errors.New("invalid game winner code")
	ErrInvalidPlayerID     = errors.New("invalid player id")
	ErrSamePlayer          = errors.New("a player cannot play against themselves")
	ErrInvalidTournamentID = errors.New("invalid tournament id")

	// Referential: the unit of work aborts entirely.
	ErrGameNotFound         = errors.New("game result not found")
	ErrPlayerNotFound       = errors.New("player not found")
	ErrScheduleSlotNotFound = errors.New("schedule slot not found")

	// Consistency: the ledger was corrupt before this operation started.
	// The cascade must abort rather than re-derive a fresh baseline.
	ErrRatingLedgerCorrupted = errors.New("rating ledger is inconsistent; recompute aborted")

	// Resource: the unit of work exceeded its deadline and rolled back.
	ErrRecomputeTimeout = errors.New("recompute cascade timed out; no changes were applied, retry")

	ErrForbiddenOperation = errors.New("operation not allowed for the current user")
)
