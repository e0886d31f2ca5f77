package game

// TermPolicy decides when a team needs a fresh leader election. Cadence is a
// pluggable strategy so new modes don't touch the round state machine.
type TermPolicy interface {
	NeedsElection(currentRound, lastElectionRound int) bool
}

// EveryNRounds re-runs the election once a leader has served n rounds.
// n == 1 is the classic elect-every-round mode.
type EveryNRounds struct {
	N int
}

func (p EveryNRounds) NeedsElection(currentRound, lastElectionRound int) bool {
	n := p.N
	if n < 1 {
		n = 1
	}
	if lastElectionRound == 0 {
		return true
	}
	return currentRound-lastElectionRound >= n
}
