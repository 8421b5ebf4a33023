// Package mafia implements the social-deduction game engine: role
// assignment, the night/day/voting phase machine, and win evaluation.
package mafia

import (
	"crypto/rand"
	"math/big"
)

// Role is one of the four closed role variants.
type Role int

const (
	// RoleUnassigned marks a player before role assignment runs.
	RoleUnassigned Role = iota
	RoleMafia
	RoleDetective
	RoleDoctor
	RoleVillager
)

// String returns a lower-case role label for the wire format.
func (r Role) String() string {
	switch r {
	case RoleMafia:
		return "mafia"
	case RoleDetective:
		return "detective"
	case RoleDoctor:
		return "doctor"
	case RoleVillager:
		return "villager"
	default:
		return "unassigned"
	}
}

// RoleCounts holds the computed role distribution for a player count.
type RoleCounts struct {
	Mafia     int
	Detective int
	Doctor    int
	Villager  int
}

// Total returns the sum of all role counts.
//
// Postcondition: Total() equals the player count passed to CountsFor.
func (c RoleCounts) Total() int {
	return c.Mafia + c.Detective + c.Doctor + c.Villager
}

// CountsFor computes the role distribution for n players:
// mafia = max(1, n/4); one detective; one doctor iff n >= 6; rest villagers.
//
// Precondition: n >= MinPlayers.
// Postcondition: result.Total() == n.
func CountsFor(n int) RoleCounts {
	c := RoleCounts{Mafia: n / 4, Detective: 1}
	if c.Mafia < 1 {
		c.Mafia = 1
	}
	if n >= 6 {
		c.Doctor = 1
	}
	c.Villager = n - c.Mafia - c.Detective - c.Doctor
	return c
}

// roleDeck builds the flat role list for counts, in a fixed order. Shuffling
// is the caller's concern.
func roleDeck(c RoleCounts) []Role {
	deck := make([]Role, 0, c.Total())
	for i := 0; i < c.Mafia; i++ {
		deck = append(deck, RoleMafia)
	}
	for i := 0; i < c.Detective; i++ {
		deck = append(deck, RoleDetective)
	}
	for i := 0; i < c.Doctor; i++ {
		deck = append(deck, RoleDoctor)
	}
	for i := 0; i < c.Villager; i++ {
		deck = append(deck, RoleVillager)
	}
	return deck
}

// Source is the randomness provider for role shuffling.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// cryptoSource implements Source using crypto/rand.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is uniform in [0, n).
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0. Panics with "mafia: Intn called with n <= 0" if n <= 0.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("mafia: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("mafia: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// shuffle performs a Fisher-Yates permutation of deck using src.
func shuffle(deck []Role, src Source) {
	for i := len(deck) - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
}
