package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefix for content-addressed snapshot identity.
// Version suffix enables future algorithm migration.
const domainSnapshot = "accord/snapshot/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash computes the content-addressed identity of a record
// snapshot. Two replicas hold the same state exactly when their snapshot
// hashes match, which is how the conformance harness checks convergence.
func SnapshotHash(r NodeRecord) (string, error) {
	canonical, err := r.MarshalCanonical()
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: %w", err)
	}
	return hashWithDomain(domainSnapshot, canonical), nil
}
