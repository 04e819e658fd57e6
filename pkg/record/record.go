// Package record defines the DNS record model shared by the fetcher,
// reconciler, and sync loop.
package record

import (
	"encoding/json"
	"fmt"
)

// TypeA is the only record type this daemon manages. Records of any
// other type are filtered out at fetch time.
const TypeA = "A"

// SyncState is the per-record sync decision. It is three-valued: a
// record fresh from the provider has no decision yet, and a user
// decision (either way) is sticky across reconciliation cycles for as
// long as the provider keeps returning the record's id.
type SyncState int

const (
	// SyncUndecided means no human has decided yet. Undecided records
	// are never synced.
	SyncUndecided SyncState = iota
	// SyncEnabled means the record is opted into syncing.
	SyncEnabled
	// SyncDisabled means the record was explicitly opted out.
	SyncDisabled
)

// String returns the state name for logs.
func (s SyncState) String() string {
	switch s {
	case SyncEnabled:
		return "enabled"
	case SyncDisabled:
		return "disabled"
	default:
		return "undecided"
	}
}

// MarshalJSON encodes the state as the persisted `sync` value:
// null (undecided), true (enabled), or false (disabled).
func (s SyncState) MarshalJSON() ([]byte, error) {
	switch s {
	case SyncEnabled:
		return []byte("true"), nil
	case SyncDisabled:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes null/true/false back into the three states.
func (s *SyncState) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "null":
		*s = SyncUndecided
	case "true":
		*s = SyncEnabled
	case "false":
		*s = SyncDisabled
	default:
		return fmt.Errorf("record: invalid sync value %s", b)
	}
	return nil
}

// Record is one DNS record as reported by the provider, annotated with
// the local sync decision. Identity is ID: two records with the same ID
// across fetch cycles denote the same remote entity even if Name or
// Content changed.
type Record struct {
	// Type is the DNS record type. Only "A" records are admitted.
	Type string `json:"record_type"`
	// Name is the record's hostname.
	Name string `json:"name"`
	// Content is the record's current target, typically an IP literal.
	Content string `json:"content"`
	// Proxied reports whether the provider proxies the record.
	// nil means the provider reported something unrecognisable.
	Proxied *bool `json:"proxy_status"`
	// TTL is the record's time-to-live in seconds.
	TTL int32 `json:"ttl"`
	// ID is the provider-assigned, immutable record identifier.
	ID string `json:"id"`
	// Sync is the local sync decision for this record.
	Sync SyncState `json:"sync"`
}

// String returns a human-readable representation of the record.
func (r Record) String() string {
	proxied := "unknown"
	if r.Proxied != nil {
		proxied = fmt.Sprintf("%t", *r.Proxied)
	}
	return fmt.Sprintf("%s %s %s (proxied %s, TTL %d, sync %s)",
		r.Name, r.Type, r.Content, proxied, r.TTL, r.Sync)
}

var _ json.Marshaler = SyncState(0)

// Outcome classifies one record's fate within a single sync cycle.
// Outcomes are aggregated for the cycle summary and never persisted.
type Outcome int

const (
	// OutcomeUpdated means the provider accepted the update.
	OutcomeUpdated Outcome = iota
	// OutcomeSkipped means the record was not opted into syncing.
	OutcomeSkipped
	// OutcomeFailed means the update was attempted and failed.
	OutcomeFailed
)

// String returns the outcome name for logs and metric labels.
func (o Outcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}
