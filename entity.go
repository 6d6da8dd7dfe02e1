package steptrack

import "time"

// SchemaVersion is the item-model version stamped on every persisted
// record. Bump only on incompatible attribute changes.
const SchemaVersion = "1"

// Entity holds the audit stamps shared by all persisted records.
type Entity struct {
	SchemaVersion string    `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Timestamp renders t as an ISO-8601 UTC string at second precision with a
// trailing Z. Timestamps participate in sort-key identity, so the format
// must stay byte-stable.
func Timestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

// Clock supplies the current time. Production code uses time.Now; tests
// inject fixed clocks for deterministic identity timestamps and durations.
type Clock func() time.Time
