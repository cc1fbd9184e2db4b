package game

import (
	"math/rand"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// ShuffleAlternatives permutes a dossier's alternatives so the correct ones
// don't always sit first. The permutation is a pure function of room code and
// round: every client and every request in the same room sees the same order
// without any stored state. Returns the shuffled list plus the correct
// indices remapped to their shuffled positions, ascending.
func ShuffleAlternatives(roomCode string, round int, alternatives []string, correct []int) ([]string, []int) {
	n := len(alternatives)
	seed := int64(xxhash.Sum64String(roomCode)) + int64(round)
	perm := rand.New(rand.NewSource(seed)).Perm(n)

	correctSet := make(map[int]struct{}, len(correct))
	for _, idx := range correct {
		correctSet[idx] = struct{}{}
	}

	shuffled := make([]string, n)
	var mapped []int
	for newIdx := 0; newIdx < n; newIdx++ {
		shuffled[newIdx] = alternatives[perm[newIdx]]
		if _, ok := correctSet[perm[newIdx]]; ok {
			mapped = append(mapped, newIdx)
		}
	}
	sort.Ints(mapped)
	return shuffled, mapped
}
