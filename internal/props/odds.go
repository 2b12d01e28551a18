package props

// ImpliedProbability converts American odds to the market-implied win
// probability: positive odds are the underdog payout, negative the favorite.
func ImpliedProbability(odds float64) float64 {
	if odds > 0 {
		return 100.0 / (odds + 100.0)
	}
	return -odds / (-odds + 100.0)
}

// impliedOr returns the implied probability for an odds cell, or breakeven
// 0.5 when the odds are missing.
func impliedOr(odds float64, ok bool) float64 {
	if !ok {
		return 0.5
	}
	return ImpliedProbability(odds)
}
