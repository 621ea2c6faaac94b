package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed digests.
// Version suffix enables future algorithm migration.
const (
	DomainPlan     = "entrepo/plan/v1"
	DomainIdentity = "entrepo/identity/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest returns the domain-separated SHA-256 of v's canonical JSON.
func Digest(domain string, v IRValue) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// IdentityString renders an identifier tuple as the canonical JSON array used
// inside identity-map keys. Two tuples render equal iff they are Equal.
func IdentityString(id []IRValue) (string, error) {
	data, err := MarshalCanonical(IRArray(id))
	if err != nil {
		return "", fmt.Errorf("identity: %w", err)
	}
	return string(data), nil
}
