package allocator

import "github.com/surebot/surebot/internal/domain"

// Liability returns the worst-case loss across a set of open positions:
// the largest single payout owed if that position's outcome wins, less the
// total already staked. Positive values mean money at risk; zero or below
// means the staked amounts cover every payout.
func Liability(positions []domain.OpenPosition) float64 {
	if len(positions) == 0 {
		return 0
	}
	var maxPayout, totalStaked float64
	for _, pos := range positions {
		if payout := pos.Stake * pos.Odds; payout > maxPayout {
			maxPayout = payout
		}
		totalStaked += pos.Stake
	}
	return maxPayout - totalStaked
}

// LiabilityByBook groups open positions by book and returns each book's
// worst-case liability. Books with no open positions are absent.
func LiabilityByBook(positions []domain.OpenPosition) map[string]float64 {
	byBook := make(map[string][]domain.OpenPosition)
	for _, pos := range positions {
		byBook[pos.Book] = append(byBook[pos.Book], pos)
	}
	out := make(map[string]float64, len(byBook))
	for book, group := range byBook {
		out[book] = Liability(group)
	}
	return out
}
