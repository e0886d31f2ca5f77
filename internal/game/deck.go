package game

import (
	"math/rand"

	"github.com/google/uuid"
)

// ShuffleDeck returns a shuffled copy of the card ids. The result is frozen
// on the session at start; ordering is never recomputed from card metadata
// afterwards.
func ShuffleDeck(cardIDs []uuid.UUID, rng *rand.Rand) []uuid.UUID {
	deck := make([]uuid.UUID, len(cardIDs))
	copy(deck, cardIDs)
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// RoundRobin deals player ids across teamCount buckets in order. Callers
// shuffle the players first; the deal itself keeps bucket sizes within one
// of each other.
func RoundRobin(playerIDs []uuid.UUID, teamCount int) [][]uuid.UUID {
	buckets := make([][]uuid.UUID, teamCount)
	for i, id := range playerIDs {
		b := i % teamCount
		buckets[b] = append(buckets[b], id)
	}
	return buckets
}
