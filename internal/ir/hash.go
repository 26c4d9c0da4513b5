package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// algorithm to change without colliding with old hashes.
const (
	DomainProgram  = "dusa/program/v1"
	DomainSolution = "dusa/solution/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProgramHash identifies an encoded program. Two compilations of the same
// declarations hash identically regardless of interning order.
func ProgramHash(encoded []byte) string {
	return hashWithDomain(DomainProgram, encoded)
}

// SolutionHash identifies a solution by its canonical fact list.
func SolutionHash(facts Array) (string, error) {
	canonical, err := MarshalCanonical(facts)
	if err != nil {
		return "", fmt.Errorf("SolutionHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSolution, canonical), nil
}

// MustSolutionHash is like SolutionHash but panics on error.
// Use only in tests or when the facts came from EncodeData.
func MustSolutionHash(facts Array) string {
	h, err := SolutionHash(facts)
	if err != nil {
		panic(err)
	}
	return h
}
