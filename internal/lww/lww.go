// Package lww implements the last-write-wins decision rule shared by all
// repositories. Every persisted write carries a millisecond timestamp; a
// write is applied only when no stored record is strictly newer, so
// out-of-order or retried writes never regress a record and concurrent
// writers converge on the same value regardless of arrival order.
package lww

import "encoding/json"

// Wins reports whether an incoming write should replace the stored record.
// Greater timestamp wins. Equal timestamps tie-break on the lexicographic
// order of the record fingerprints, a fixed rule independent of arrival
// order; an identical retry (same fingerprint) is a no-op.
func Wins(incomingTS, existingTS int64, incomingFP, existingFP string) bool {
	if incomingTS != existingTS {
		return incomingTS > existingTS
	}
	return incomingFP > existingFP
}

// Fingerprint renders a record as canonical JSON for tie-breaking.
// Struct field order is fixed per type, so equal records always produce
// equal fingerprints.
func Fingerprint(record interface{}) string {
	raw, err := json.Marshal(record)
	if err != nil {
		return ""
	}
	return string(raw)
}
