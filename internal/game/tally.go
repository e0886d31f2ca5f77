package game

import (
	"sort"

	"github.com/google/uuid"
)

// Tally counts ballots by candidate and returns every candidate tied for the
// highest count. Winners come back sorted by id so runoff candidate order is
// deterministic regardless of ballot order.
func Tally(ballots []uuid.UUID) (winners []uuid.UUID, maxVotes int) {
	counts := make(map[uuid.UUID]int, len(ballots))
	for _, c := range ballots {
		counts[c]++
		if counts[c] > maxVotes {
			maxVotes = counts[c]
		}
	}

	for c, n := range counts {
		if n == maxVotes {
			winners = append(winners, c)
		}
	}
	sort.Slice(winners, func(i, j int) bool {
		return winners[i].String() < winners[j].String()
	})
	return winners, maxVotes
}

// Contains reports whether id is present in ids.
func Contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
