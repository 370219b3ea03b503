// Package rating implements the ladder's rating arithmetic: a symmetric,
// zero-sum delta derived from the two players' current ratings, the game
// outcome and the game category. It performs no I/O; callers supply the
// current ratings and persist the results.
package rating

import (
	"math"

	"github.com/solidjuls/twilight-struggle-backend/models"
)

const (
	// Baseline is the rating assumed for a player with no snapshot history.
	Baseline = 5000

	// FriendlyTournamentID is the reserved category with halved stakes.
	FriendlyTournamentID = 47

	rankedStake   = 100
	friendlyStake = 50
	maxDelta      = 200
)

// StakeFor returns the base stake a win is worth in the given category.
func StakeFor(tournamentID int) int {
	if tournamentID == FriendlyTournamentID {
		return friendlyStake
	}
	return rankedStake
}

// roundHalfAway rounds to the nearest integer with halves away from zero,
// matching how the ladder has always rounded the raw movement. The clamp
// below is sensitive to this, so it must not change.
func roundHalfAway(v float64) int {
	return int(math.Round(v))
}

// Delta computes the stake-adjusted rating movement for a decided game:
// round((loser − winner) × 0.05), halved for friendlies, plus the base
// stake. With a non-zero stake the result is floored at 1 (a winner never
// loses points) and always capped at 200.
func Delta(loserRating, winnerRating, baseStake int, tournamentID int) int {
	movement := float64(loserRating-winnerRating) * 0.05
	if tournamentID == FriendlyTournamentID {
		movement /= 2
	}

	adjusted := roundHalfAway(movement) + baseStake

	if baseStake != 0 && adjusted <= 0 {
		return 1
	}
	if adjusted > maxDelta {
		return maxDelta
	}
	return adjusted
}

// ApplyOutcome returns both players' new ratings after one game. Wins are
// zero-sum: the winner gains exactly what the loser drops. A tie pulls the
// ratings toward each other: the lower-rated player gains the tie
// magnitude and the higher-rated player loses it; a tie between equal
// ratings moves nothing.
func ApplyOutcome(usaRating, ussrRating int, winner models.GameWinner, tournamentID int) (newUSA, newUSSR int) {
	switch winner {
	case models.WinnerUSA:
		d := Delta(ussrRating, usaRating, StakeFor(tournamentID), tournamentID)
		return usaRating + d, ussrRating - d
	case models.WinnerUSSR:
		d := Delta(usaRating, ussrRating, StakeFor(tournamentID), tournamentID)
		return usaRating - d, ussrRating + d
	case models.WinnerTie:
		lower, higher := usaRating, ussrRating
		if usaRating > ussrRating {
			lower, higher = ussrRating, usaRating
		}
		magnitude := abs(Delta(lower, higher, 0, tournamentID))
		if usaRating <= ussrRating {
			return usaRating + magnitude, ussrRating - magnitude
		}
		return usaRating - magnitude, ussrRating + magnitude
	}
	return usaRating, ussrRating
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
