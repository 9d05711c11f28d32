package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashing.
// Version suffix enables future algorithm migration.
const (
	DomainValue = "cadence/value/v1"
	DomainTrace = "cadence/trace/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ValueHash returns the content hash of a value's canonical form.
func ValueHash(v Value) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return hashWithDomain(DomainValue, data), nil
}

// TraceDigest hashes an ordered trace so harness runs can be compared
// without diffing every event.
func TraceDigest(events []TraceEvent) (string, error) {
	arr := make(Array, len(events))
	for i, ev := range events {
		arr[i] = ev.Object()
	}
	data, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal trace: %w", err)
	}
	return hashWithDomain(DomainTrace, data), nil
}
