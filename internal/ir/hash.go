package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows a future algorithm migration.
const (
	DomainAction    = "tagbridge/action/v1"
	DomainHistory   = "tagbridge/history/v1"
	DomainSignature = "tagbridge/signature/v1"
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

// ActionID computes the content-addressed ID of a replay-log entry. It is
// stable across processes given the same session and action.
func ActionID(sessionID string, a Action) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"session": sessionID,
		"action":  a,
	})
	if err != nil {
		return "", fmt.Errorf("ActionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

// HistoryDigest chains the IDs of every action in order. Two sessions
// with the same digest were built by the same sequence of operations.
func HistoryDigest(sessionID string, history []Action) (string, error) {
	ids := make([]any, len(history))
	for i, a := range history {
		id, err := ActionID(sessionID, a)
		if err != nil {
			return "", fmt.Errorf("HistoryDigest: action %d: %w", i, err)
		}
		ids[i] = id
	}
	canonical, err := MarshalCanonical(ids)
	if err != nil {
		return "", fmt.Errorf("HistoryDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainHistory, canonical), nil
}

// SignatureHash identifies a rendered signature independent of the host
// callable bound to it.
func SignatureHash(sig *FunctionSignature) string {
	canonical, err := MarshalCanonical(sig.String())
	if err != nil {
		// strings always marshal
		panic(err)
	}
	return hashWithDomain(DomainSignature, canonical)
}

// MustActionID is like ActionID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustActionID(sessionID string, a Action) string {
	id, err := ActionID(sessionID, a)
	if err != nil {
		panic(err)
	}
	return id
}
