package govern

// inProposalPeriod reports whether the given level falls in an
// even-indexed period, where proposals are accepted. Odd-indexed periods
// accept votes.
func inProposalPeriod(level, periodLength int64) bool {
	return (level/periodLength)%2 == 0
}
