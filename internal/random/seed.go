// Package random provides seed generation and seeded generators.
//
// It uses crypto/rand to generate high-entropy seeds for unseeded runs and
// math/rand/v2 PCG sources so that a recorded seed replays the same
// character.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// streamSalt decorrelates the second PCG word from the seed.
const streamSalt = 0x9e3779b97f4a7c15

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return binary.LittleEndian.Uint64(b[:]), nil
}

// New returns a PCG-backed generator for seed.
func New(seed uint64) *rand.Rand {
	return rand.New(Source(seed))
}

// Source returns the PCG source behind New.
func Source(seed uint64) *rand.PCG {
	return rand.NewPCG(seed, seed^streamSalt)
}

// Resolve returns seed when set, otherwise a fresh crypto seed. The boolean
// reports whether the seed was generated.
func Resolve(seed uint64) (uint64, bool, error) {
	if seed != 0 {
		return seed, false, nil
	}
	fresh, err := NewSeed()
	if err != nil {
		return 0, false, err
	}
	return fresh, true, nil
}
